package ws

import (
	"encoding/base64"
	"fmt"
	"time"
)

// clientHandshakeState is the client-side handshake phase for a
// SecureClient's current session, named by what the client is waiting
// for next.
type clientHandshakeState int32

const (
	clientJustConnected        clientHandshakeState = iota // C0
	clientAwaitingSharedSecret                              // C1
	clientAwaitingChallenge                                 // C2
	clientAwaitingAuthResult                                // C3
	clientSteadyState                                       // C4
)

// dispatchClient advances the client-side handshake state machine, or
// once past C3, hands the packet to the application handler / liveness
// controller. The shared secret is unwrapped with c.privateKey, the RSA
// keypair generated at Connect time; the client's handshake state is
// advanced in place. frameWasEncrypted reports whether the
// outermost wire envelope the packet was decoded from carried the
// encrypted flag, so the steady-state receiver can enforce the same
// encryption requirement the server enforces on its side.
func (c *SecureClient) dispatchClient(packet Packet, frameWasEncrypted bool) error {
	state := c.getClientState()

	switch p := packet.(type) {
	case *PacketSharedSecret:
		if state != clientAwaitingSharedSecret {
			return fmt.Errorf("%w: unexpected PacketSharedSecret", ErrAuthState)
		}
		secret, err := UnwrapSharedSecret(p.EncryptedSecret, c.privateKey)
		if err != nil {
			return err
		}
		c.session.SetSharedKey(secret)
		c.setClientState(clientAwaitingChallenge)
		return nil

	case *PacketChallenge:
		if state != clientAwaitingChallenge {
			return fmt.Errorf("%w: unexpected PacketChallenge", ErrAuthState)
		}
		challenge, err := base64.StdEncoding.DecodeString(p.Challenge)
		if err != nil {
			return fmt.Errorf("%w: decode challenge: %v", ErrCrypto, err)
		}
		mac := HMACSHA256(challenge, []byte(c.cfg.APIKey))
		c.setClientState(clientAwaitingAuthResult)
		return c.session.Send(&PacketChallengeResponse{Response: base64.StdEncoding.EncodeToString(mac)}, NoCompression)

	case *PacketAuthSuccess:
		if state != clientAwaitingAuthResult {
			return fmt.Errorf("%w: unexpected PacketAuthSuccess", ErrAuthState)
		}
		c.session.setAuthenticated()
		c.setClientState(clientSteadyState)
		c.handler.fireAuthenticated(c.logger, c.session)

		if c.cfg.ClientIdentifier != "" {
			ident := &PacketIdentification{
				ClientIdentifier: c.cfg.ClientIdentifier,
				Metadata:         c.cfg.IdentificationMetadata,
			}
			return c.session.Send(ident, NoCompression)
		}
		return nil

	case *PacketAuthFailed:
		if state != clientAwaitingAuthResult {
			return fmt.Errorf("%w: unexpected PacketAuthFailed", ErrAuthState)
		}
		c.handler.fireDisconnect(c.logger, c.session)
		return fmt.Errorf("%w: %s", ErrHandshakeFailed, p.Reason)
	}

	if p, ok := packet.(*PacketVersion); ok {
		// Advisory only; never advances or regresses state. Still
		// subject to the same encryption requirement as any other
		// packet once the session is authenticated.
		if c.session.Authenticated() && !frameWasEncrypted {
			return fmt.Errorf("%w: authenticated session received unencrypted frame", ErrAuthState)
		}
		c.handler.fireVersionExchange(c.logger, c.session, p)
		return nil
	}

	if state != clientSteadyState {
		return fmt.Errorf("%w: received %s before handshake completed", ErrAuthState, packet.PacketTag())
	}

	if !frameWasEncrypted {
		return fmt.Errorf("%w: received unencrypted frame after handshake completed", ErrAuthState)
	}

	if p, ok := packet.(*PacketPong); ok {
		c.liveness.HandlePong(p, time.Now())
		return nil
	}

	if p, ok := packet.(*PacketPing); ok {
		return c.session.Send(&PacketPong{
			ClientTimestamp: p.Timestamp,
			ServerTimestamp: time.Now().UnixMilli(),
			SequenceID:      p.SequenceID,
		}, c.cfg.CompressionThreshold)
	}

	c.handler.firePacket(c.logger, c.session, packet)
	return nil
}

func (c *SecureClient) getClientState() clientHandshakeState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *SecureClient) setClientState(next clientHandshakeState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = next
}
