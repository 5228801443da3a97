package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteTimeout = 5 * time.Second

// handshakeState is the server-side handshake phase for a Session, named
// by what the server is waiting for next.
type handshakeState int32

const (
	stateAwaitingPublicKey handshakeState = iota // S0
	stateAwaitingChallengeResponse                // S1
	stateAuthenticatedPhase                       // S2
)

// Session is the per-connection state for one WebSocket peer, used on
// both the server (one per accepted client) and the client (one per
// dialed connection). Not every field is meaningful on every side: a
// client-side Session never populates Identifier via PacketIdentification
// receipt, for instance, since only the server assigns/tracks that.
type Session struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu               sync.Mutex
	sharedKey        []byte
	pendingChallenge []byte
	identifier       string
	metadata         string
	state            handshakeState

	authenticated atomic.Bool
}

// NewSession wraps conn with fresh, unauthenticated session state.
func NewSession(id string, conn *websocket.Conn) *Session {
	return &Session{id: id, conn: conn}
}

// ID returns the process-unique identifier minted for this session.
func (s *Session) ID() string { return s.id }

// Conn exposes the underlying transport handle for callers that need
// transport-level operations (closing with a code, reading remote addr).
func (s *Session) Conn() *websocket.Conn { return s.conn }

// Authenticated reports whether the handshake has completed successfully.
// The flag is monotonic: once true, it never reverts to false.
func (s *Session) Authenticated() bool { return s.authenticated.Load() }

func (s *Session) setAuthenticated() { s.authenticated.Store(true) }

// SharedKey returns the session's AES-256 key, or nil if the handshake
// has not yet reached the point of key delivery. Written once before
// Authenticated is ever observed true, so callers that see
// Authenticated()==true are guaranteed to see a non-nil key here.
func (s *Session) SharedKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharedKey
}

// SetSharedKey stores the session's AES-256 key. Called once, by the
// server after generating it and by the client after unwrapping it.
func (s *Session) SetSharedKey(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedKey = key
}

// PendingChallenge returns the challenge bytes the server is waiting to
// see MACed back, or nil if there is none outstanding.
func (s *Session) PendingChallenge() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingChallenge
}

// SetPendingChallenge records the challenge just sent to the client.
func (s *Session) SetPendingChallenge(challenge []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingChallenge = challenge
}

// ClearPendingChallenge drops the outstanding challenge. Called as soon
// as any PacketChallengeResponse is processed, regardless of outcome.
func (s *Session) ClearPendingChallenge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingChallenge = nil
}

// Identifier returns the peer-chosen short label, or "" if none was set.
func (s *Session) Identifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identifier
}

func (s *Session) setIdentifier(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identifier = id
}

// Metadata returns the free-form string attached at identification time,
// or "" if none was supplied.
func (s *Session) Metadata() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

func (s *Session) setMetadata(md string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = md
}

func (s *Session) getState() handshakeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next handshakeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// Send encodes msg using whatever shared key currently exists (nil before
// the handshake delivers one), applying compression per threshold only
// when there is no key, and writes the result as a single text frame.
// Sends on a session are serialized by writeMu; the core adds no further
// queuing beyond that.
func (s *Session) Send(msg Packet, compressionThreshold int) error {
	return s.encodeAndWrite(msg, s.SharedKey(), compressionThreshold)
}

// SendUnencrypted forces an unencrypted send regardless of any shared key
// on the session. Used for the two handshake messages (PacketPublicKey,
// PacketSharedSecret) that must cross the wire before encryption can be
// established, and for the PacketVersion a SecureClient sends on Connect.
func (s *Session) SendUnencrypted(msg Packet) error {
	return s.encodeAndWrite(msg, nil, NoCompression)
}

func (s *Session) encodeAndWrite(msg Packet, key []byte, compressionThreshold int) error {
	text, err := Encode(msg, key, compressionThreshold)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return ErrConnectionClosed
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnectionClosed, err)
	}
	return nil
}

// Close closes the underlying transport with the given application close
// code and reason. Close codes 4000/4001/4002 are the ones this package
// uses; any other value is a plain transport-level disconnect.
func (s *Session) Close(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return nil
	}
	closeMsg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeWriteTimeout))
	return s.conn.Close()
}

// PacketTagOf reports the wire tag msg would encode under, used by
// Session.Send callers that need to log without re-marshaling.
func PacketTagOf(msg Packet) string { return msg.PacketTag() }
