package ws

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

// dispatchServer advances the server-side handshake state machine (or,
// once in S2, hands the packet to the application handler) for one
// received message on session. It is the single entry point Server's
// read loop calls per frame; the caller is responsible for closing the
// transport with the returned close code when err is non-nil.
func (s *Server) dispatchServer(session *Session, packet Packet, frameWasEncrypted bool) (closeCode int, err error) {
	switch p := packet.(type) {
	case *PacketPublicKey:
		return s.handlePublicKey(session, p)

	case *PacketChallengeResponse:
		if !frameWasEncrypted {
			return 4001, fmt.Errorf("%w: PacketChallengeResponse must be encrypted", ErrAuthState)
		}
		return s.handleChallengeResponse(session, p)

	case *PacketVersion:
		// Advisory only; never advances or regresses state. Still
		// subject to the same encryption requirement as any other
		// packet once the session is authenticated.
		if session.Authenticated() && !frameWasEncrypted {
			return 4000, fmt.Errorf("%w: authenticated session received unencrypted frame", ErrAuthState)
		}
		return 0, nil
	}

	if !session.Authenticated() {
		return 4001, fmt.Errorf("%w: received %s before authentication", ErrAuthState, packet.PacketTag())
	}

	if !frameWasEncrypted {
		return 4000, fmt.Errorf("%w: authenticated session received unencrypted frame", ErrAuthState)
	}

	if p, ok := packet.(*PacketIdentification); ok {
		return s.handleIdentification(session, p)
	}

	// Ping origination is client-driven; the server only ever answers.
	if p, ok := packet.(*PacketPing); ok {
		pong := &PacketPong{
			ClientTimestamp: p.Timestamp,
			ServerTimestamp: time.Now().UnixMilli(),
			SequenceID:      p.SequenceID,
		}
		return 0, session.Send(pong, s.cfg.CompressionThreshold)
	}

	if _, ok := packet.(*PacketPong); ok {
		// The server never pings, so a stray pong has no ping to
		// correlate against; drop it rather than surfacing it as an
		// application packet.
		return 0, nil
	}

	// Any remaining handshake-only packet arriving here (e.g. a second
	// PacketPublicKey) is a protocol error.
	switch packet.(type) {
	case *PacketPublicKey, *PacketSharedSecret, *PacketChallenge, *PacketAuthSuccess, *PacketAuthFailed:
		return 4000, fmt.Errorf("%w: unexpected %s in authenticated state", ErrAuthState, packet.PacketTag())
	}

	s.invokeHandler("OnPacket", func() { s.handler.OnPacket(session, packet) })
	return 0, nil
}

func (s *Server) handlePublicKey(session *Session, p *PacketPublicKey) (int, error) {
	if session.getState() != stateAwaitingPublicKey {
		return 4000, fmt.Errorf("%w: unexpected PacketPublicKey", ErrAuthState)
	}

	clientPub, err := DecodePublicKeyBase64(p.PublicKey)
	if err != nil {
		return 4000, err
	}

	sharedKey, err := GenerateSharedSecret()
	if err != nil {
		return 4000, err
	}

	wrapped, err := WrapSharedSecret(sharedKey, clientPub)
	if err != nil {
		return 4000, err
	}

	if err := session.SendUnencrypted(&PacketSharedSecret{EncryptedSecret: wrapped}); err != nil {
		return 0, err
	}

	session.SetSharedKey(sharedKey)

	challenge, err := GenerateChallenge()
	if err != nil {
		return 4000, err
	}
	session.SetPendingChallenge(challenge)
	session.setState(stateAwaitingChallengeResponse)

	if err := session.Send(&PacketChallenge{Challenge: base64.StdEncoding.EncodeToString(challenge)}, NoCompression); err != nil {
		return 0, err
	}

	return 0, nil
}

func (s *Server) handleChallengeResponse(session *Session, p *PacketChallengeResponse) (int, error) {
	if session.getState() != stateAwaitingChallengeResponse {
		return 4001, fmt.Errorf("%w: unexpected PacketChallengeResponse", ErrAuthState)
	}

	challenge := session.PendingChallenge()
	session.ClearPendingChallenge()

	if challenge == nil {
		_ = session.Send(&PacketAuthFailed{Reason: "No pending challenge"}, NoCompression)
		return 4001, fmt.Errorf("%w: no pending challenge", ErrAuthState)
	}

	expected := base64.StdEncoding.EncodeToString(HMACSHA256(challenge, []byte(s.cfg.PreSharedSecret)))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(p.Response)) != 1 {
		_ = session.Send(&PacketAuthFailed{Reason: "Invalid credentials"}, NoCompression)
		return 4001, fmt.Errorf("%w: challenge response mismatch", ErrAuthState)
	}

	session.setAuthenticated()
	session.setState(stateAuthenticatedPhase)

	if err := session.Send(&PacketAuthSuccess{Message: "Authentication successful"}, NoCompression); err != nil {
		return 0, err
	}

	s.invokeHandler("OnAuthenticated", func() { s.handler.OnAuthenticated(session) })
	return 0, nil
}

func (s *Server) handleIdentification(session *Session, p *PacketIdentification) (int, error) {
	if s.sessions.HasIdentifier(p.ClientIdentifier) {
		_ = session.Send(&PacketAuthFailed{Reason: "Identifier already in use"}, NoCompression)
		return 4002, fmt.Errorf("%w: %s", ErrIdentifierConflict, p.ClientIdentifier)
	}

	session.setIdentifier(p.ClientIdentifier)
	s.sessions.bindIdentifier(p.ClientIdentifier, session)
	if p.Metadata != "" {
		session.setMetadata(p.Metadata)
	}

	s.invokeHandler("OnIdentified", func() { s.handler.OnIdentified(session, p.ClientIdentifier) })
	return 0, nil
}
