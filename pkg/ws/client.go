package ws

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SecureClientConfig controls a SecureClient's transport, protocol, and
// liveness behavior.
type SecureClientConfig struct {
	URL string

	// APIKey is the pre-shared HMAC key proving this client's identity
	// during the challenge/response phase. It has no bearer-token
	// semantics beyond that.
	APIKey string

	AutoReconnect        bool
	MaxReconnectAttempts int // -1 means unlimited
	ReconnectDelay       time.Duration

	EnablePing   bool
	PingInterval time.Duration
	PingTimeout  time.Duration

	ConnectionTimeout time.Duration

	CompressionThreshold int // -1 disables

	ProtocolVersion string
	ClientName      string
	ClientVersion   string

	ClientIdentifier       string
	IdentificationMetadata string

	Logger *slog.Logger
}

// DefaultSecureClientConfig returns the documented defaults for every
// option; url and apiKey must still be supplied by the caller.
func DefaultSecureClientConfig(url, apiKey string) SecureClientConfig {
	return SecureClientConfig{
		URL:                  url,
		APIKey:               apiKey,
		AutoReconnect:        false,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       3 * time.Second,
		EnablePing:           true,
		PingInterval:         30 * time.Second,
		PingTimeout:          10 * time.Second,
		ConnectionTimeout:    10 * time.Second,
		CompressionThreshold: 512,
		ProtocolVersion:      "1.0",
		Logger:               slog.Default(),
	}
}

// SecureClient manages one WebSocket connection to a Server, driving the
// client-side handshake and, once authenticated, dispatching packets to
// a ClientHandler.
type SecureClient struct {
	cfg     SecureClientConfig
	handler *ClientHandler
	logger  *slog.Logger

	liveness *LivenessController

	connMu     sync.RWMutex
	session    *Session
	privateKey *rsa.PrivateKey

	stateMu sync.Mutex
	state   clientHandshakeState

	cancelPing context.CancelFunc

	closedMu sync.Mutex
	closed   bool
	done     chan struct{}
}

// NewSecureClient returns a client ready to Connect.
func NewSecureClient(cfg SecureClientConfig, handler *ClientHandler) *SecureClient {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if handler == nil {
		handler = &ClientHandler{}
	}

	livenessCfg := LivenessConfig{
		PingInterval:         cfg.PingInterval,
		PingTimeout:          cfg.PingTimeout,
		ReconnectInterval:    cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Logger:               cfg.Logger,
	}

	return &SecureClient{
		cfg:      cfg,
		handler:  handler,
		logger:   cfg.Logger,
		liveness: NewLivenessController(livenessCfg),
		done:     make(chan struct{}),
	}
}

// Liveness exposes the ping/latency/reconnect controller for callers
// that want to read latency stats directly.
func (c *SecureClient) Liveness() *LivenessController { return c.liveness }

// Session returns the client's current session, or nil before the first
// successful Connect.
func (c *SecureClient) Session() *Session {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.session
}

// Connect dials the server, generates a fresh keypair, and starts the
// handshake by sending PacketPublicKey. It returns once the connection
// is open; handshake completion is asynchronous and observed through the
// handler's OnAuthenticated hook.
func (c *SecureClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	dialCtx := ctx
	if c.cfg.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrConnectionTimeout, err)
	}

	privateKey, err := GenerateKeyPair()
	if err != nil {
		conn.Close()
		return err
	}

	session := NewSession(newSessionID(), conn)

	c.connMu.Lock()
	c.session = session
	c.privateKey = privateKey
	c.connMu.Unlock()

	c.setClientState(clientJustConnected)
	c.liveness.Reset()

	pubKeyB64, err := EncodePublicKeyBase64(&privateKey.PublicKey)
	if err != nil {
		conn.Close()
		return err
	}

	if err := session.SendUnencrypted(&PacketPublicKey{PublicKey: pubKeyB64}); err != nil {
		conn.Close()
		return err
	}
	c.setClientState(clientAwaitingSharedSecret)

	c.closedMu.Lock()
	c.closed = false
	c.done = make(chan struct{})
	c.closedMu.Unlock()

	c.handler.fireConnect(c.logger, session)

	pingCtx, cancel := context.WithCancel(context.Background())
	c.cancelPing = cancel

	go c.readLoop(session)

	if c.cfg.EnablePing {
		go c.liveness.RunPingLoop(pingCtx, func(p *PacketPing) error {
			return session.Send(p, c.cfg.CompressionThreshold)
		})
	}

	if c.cfg.ProtocolVersion != "" || c.cfg.ClientName != "" {
		_ = session.SendUnencrypted(&PacketVersion{
			ProtocolVersion: c.cfg.ProtocolVersion,
			ClientName:      c.cfg.ClientName,
			ClientVersion:   c.cfg.ClientVersion,
		})
	}

	return nil
}

func (c *SecureClient) readLoop(session *Session) {
	defer func() {
		if c.cancelPing != nil {
			c.cancelPing()
		}
		c.closedMu.Lock()
		c.closed = true
		close(c.done)
		c.closedMu.Unlock()

		wasAuthenticated := session.Authenticated()
		session.Conn().Close()
		if wasAuthenticated {
			c.handler.fireDisconnect(c.logger, session)
		}

		if c.cfg.AutoReconnect {
			go c.reconnectLoop()
		}
	}()

	for {
		_, data, err := session.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				c.logger.Warn("read error", "error", err)
			}
			return
		}

		raw := string(data)
		packet, err := Decode(raw, session.SharedKey())
		if err != nil {
			c.logger.Warn("decode failed", "error", err)
			continue
		}

		if err := c.dispatchClient(packet, frameIsEncrypted(raw)); err != nil {
			c.logger.Warn("handshake error", "error", err)
			return
		}
	}
}

func (c *SecureClient) reconnectLoop() {
	err := c.liveness.RunReconnectLoop(context.Background(), c.Connect)
	if err != nil {
		c.logger.Warn("reconnect abandoned", "error", err)
		c.handler.fireReconnectFailed(c.logger)
	}
}

// Close disconnects the client. Idempotent: calling it more than once,
// or on a client that never connected, is a no-op.
func (c *SecureClient) Close() error {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return nil
	}
	c.closed = true
	c.closedMu.Unlock()

	if c.cancelPing != nil {
		c.cancelPing()
	}

	c.connMu.RLock()
	session := c.session
	c.connMu.RUnlock()

	if session == nil {
		return nil
	}
	return session.Close(websocket.CloseNormalClosure, "client closing")
}

// Done returns a channel closed when the current connection's read loop
// exits.
func (c *SecureClient) Done() <-chan struct{} {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	return c.done
}
