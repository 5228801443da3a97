package ws

import "errors"

var (
	// ErrConnectionClosed is returned by session/client operations performed
	// after the underlying transport has been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrCrypto covers any failure of a cryptographic primitive (key
	// generation, wrap/unwrap, encrypt/decrypt, MAC). Callers do not
	// distinguish sub-kinds.
	ErrCrypto = errors.New("crypto operation failed")

	// ErrCodec covers malformed JSON or a malformed envelope (missing
	// fields, wrong shape).
	ErrCodec = errors.New("codec error")

	// ErrUnknownPacketType is returned when a decoded envelope's type tag
	// is not present in the packet registry.
	ErrUnknownPacketType = errors.New("unknown packet type")

	// ErrAuthState is returned when a message arrives out of handshake
	// order, or an encrypted frame is expected but not received once
	// authenticated.
	ErrAuthState = errors.New("invalid authentication state")

	// ErrIdentifierConflict is returned when a client's chosen identifier
	// is already registered to another connected session.
	ErrIdentifierConflict = errors.New("identifier already in use")

	// ErrConnectionTimeout is returned when dialing the server fails,
	// including a dial that does not complete within the configured
	// timeout.
	ErrConnectionTimeout = errors.New("connection timed out")

	// ErrHandshakeFailed is returned by the client when the server rejects
	// authentication.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrMaxReconnectAttempts is returned when the reconnect scheduler
	// exhausts its configured attempt budget.
	ErrMaxReconnectAttempts = errors.New("max reconnect attempts reached")

	// ErrNoSharedKey is returned when an encrypted frame is received
	// before the handshake has established a shared key.
	ErrNoSharedKey = errors.New("no shared key established")
)
