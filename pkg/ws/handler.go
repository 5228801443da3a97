package ws

import "log/slog"

// Handler is the set of lifecycle and message hooks a server-side
// embedding application implements. OnIdentified is optional; embed
// BaseHandler to get a no-op default for it.
type Handler interface {
	// OnAuthenticated fires once, when a session completes the
	// handshake successfully.
	OnAuthenticated(session *Session)

	// OnIdentified fires when an authenticated session successfully
	// claims an identifier via PacketIdentification.
	OnIdentified(session *Session, identifier string)

	// OnPacket fires for every post-handshake application message.
	OnPacket(session *Session, packet Packet)

	// OnDisconnect fires when a previously authenticated session's
	// transport closes. Sessions that never authenticated do not
	// trigger this hook.
	OnDisconnect(session *Session)
}

// BaseHandler supplies a no-op OnIdentified so embedders only need to
// implement the hooks they care about.
type BaseHandler struct{}

// OnIdentified is a no-op by default; override by defining a method of
// the same name on the embedding type.
func (BaseHandler) OnIdentified(*Session, string) {}

// ClientHandler is the set of lifecycle and message hooks a client-side
// embedding application implements. All fields are optional; a nil
// field is simply not called.
type ClientHandler struct {
	OnConnect         func(session *Session)
	OnPacket          func(session *Session, packet Packet)
	OnDisconnect      func(session *Session)
	OnAuthenticated   func(session *Session)
	OnVersionExchange func(session *Session, peer *PacketVersion)
	OnReconnectFailed func()
}

// recoverHandlerPanic logs a panic raised by an application callback
// instead of letting it unwind past the dispatch boundary and take the
// connection's goroutine down with it. Called via defer at every
// ClientHandler/Handler invocation point.
func recoverHandlerPanic(logger *slog.Logger, hook string) {
	if r := recover(); r != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("panic recovered in handler callback", "hook", hook, "panic", r)
	}
}

func (h *ClientHandler) fireConnect(logger *slog.Logger, s *Session) {
	if h == nil || h.OnConnect == nil {
		return
	}
	defer recoverHandlerPanic(logger, "OnConnect")
	h.OnConnect(s)
}

func (h *ClientHandler) firePacket(logger *slog.Logger, s *Session, p Packet) {
	if h == nil || h.OnPacket == nil {
		return
	}
	defer recoverHandlerPanic(logger, "OnPacket")
	h.OnPacket(s, p)
}

func (h *ClientHandler) fireDisconnect(logger *slog.Logger, s *Session) {
	if h == nil || h.OnDisconnect == nil {
		return
	}
	defer recoverHandlerPanic(logger, "OnDisconnect")
	h.OnDisconnect(s)
}

func (h *ClientHandler) fireAuthenticated(logger *slog.Logger, s *Session) {
	if h == nil || h.OnAuthenticated == nil {
		return
	}
	defer recoverHandlerPanic(logger, "OnAuthenticated")
	h.OnAuthenticated(s)
}

func (h *ClientHandler) fireVersionExchange(logger *slog.Logger, s *Session, v *PacketVersion) {
	if h == nil || h.OnVersionExchange == nil {
		return
	}
	defer recoverHandlerPanic(logger, "OnVersionExchange")
	h.OnVersionExchange(s, v)
}

func (h *ClientHandler) fireReconnectFailed(logger *slog.Logger) {
	if h == nil || h.OnReconnectFailed == nil {
		return
	}
	defer recoverHandlerPanic(logger, "OnReconnectFailed")
	h.OnReconnectFailed()
}
