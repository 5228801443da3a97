package ws

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// ServerConfig controls a Server's transport and protocol behavior.
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool

	// PreSharedSecret is the HMAC key used to verify a client's
	// PacketChallengeResponse. It has no bearer-token semantics; it is
	// used only as an HMAC key.
	PreSharedSecret string

	// CompressionThreshold is the uncompressed-size threshold, in
	// bytes, above which outgoing unencrypted frames are compressed.
	// NoCompression disables compression entirely.
	CompressionThreshold int

	Logger *slog.Logger
}

// DefaultServerConfig returns a config with permissive origin checking
// and compression enabled above 512 bytes; PreSharedSecret must still be
// set by the caller.
func DefaultServerConfig(preSharedSecret string) ServerConfig {
	return ServerConfig{
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
		CheckOrigin:          func(r *http.Request) bool { return true },
		PreSharedSecret:      preSharedSecret,
		CompressionThreshold: 512,
		Logger:               slog.Default(),
	}
}

// Server accepts WebSocket connections, drives the server-side handshake
// on each, and dispatches post-handshake packets to a Handler.
type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader
	handler  Handler
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewServer returns a Server that dispatches authenticated traffic to
// handler.
func NewServer(cfg ServerConfig, handler Handler) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		handler:  handler,
		sessions: NewSessionRegistry(cfg.Logger),
		logger:   cfg.Logger,
	}
}

// Sessions exposes the registry of live sessions, for broadcast and
// lookup from outside the read loop.
func (s *Server) Sessions() *SessionRegistry { return s.sessions }

// invokeHandler calls fn, recovering and logging any panic so a broken
// application callback cannot take down the connection's goroutine or
// the accept loop. hook names the callback being invoked, for logging.
func (s *Server) invokeHandler(hook string, fn func()) {
	defer recoverHandlerPanic(s.logger, hook)
	fn()
}

// ServeHTTP upgrades the request to a WebSocket and runs the connection
// until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	session := NewSession(newSessionID(), conn)
	s.sessions.Add(session)

	s.logger.Info("client connected", "session_id", session.ID(), "remote_addr", conn.RemoteAddr())

	s.handleConnection(session)

	s.sessions.Remove(session)
	wasAuthenticated := session.Authenticated()
	s.logger.Info("client disconnected", "session_id", session.ID(), "authenticated", wasAuthenticated)
	if wasAuthenticated {
		s.invokeHandler("OnDisconnect", func() { s.handler.OnDisconnect(session) })
	}
}

func (s *Server) handleConnection(session *Session) {
	conn := session.Conn()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				s.logger.Warn("read error", "session_id", session.ID(), "error", err)
			}
			return
		}

		raw := string(data)
		packet, err := Decode(raw, session.SharedKey())
		if err != nil {
			s.logger.Warn("decode failed", "session_id", session.ID(), "error", err)
			_ = session.Close(4000, "Protocol error")
			return
		}

		closeCode, err := s.dispatchServer(session, packet, frameIsEncrypted(raw))
		if err != nil {
			s.logger.Warn("handshake error", "session_id", session.ID(), "error", err)
			if closeCode != 0 {
				_ = session.Close(closeCode, err.Error())
				return
			}
		}
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing indicates a broken host; fall back to a
		// zero id rather than panicking a live accept loop.
		return fmt.Sprintf("session-%x", buf)
	}
	return hex.EncodeToString(buf)
}
