package ws

import (
	"log/slog"
	"sync"
)

// SessionRegistry tracks every live session a Server is holding, indexed
// both by session id and by the optional identifier a client may claim
// via PacketIdentification. Only the server side needs this; a client
// has exactly one Session and holds it directly.
type SessionRegistry struct {
	mu           sync.RWMutex
	byID         map[string]*Session
	byIdentifier map[string]*Session
	logger       *slog.Logger
}

// NewSessionRegistry returns an empty registry that logs Broadcast
// failures through logger, defaulting to slog.Default() if nil.
func NewSessionRegistry(logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		byID:         make(map[string]*Session),
		byIdentifier: make(map[string]*Session),
		logger:       logger,
	}
}

// Add registers a newly accepted session by its id. Called as soon as a
// Session is created, before the handshake even begins, so the registry
// reflects every open transport, not just authenticated ones.
func (r *SessionRegistry) Add(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[session.ID()] = session
}

// Remove drops session from both indexes. Safe to call more than once.
func (r *SessionRegistry) Remove(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, session.ID())
	if id := session.Identifier(); id != "" {
		if existing, ok := r.byIdentifier[id]; ok && existing == session {
			delete(r.byIdentifier, id)
		}
	}
}

// Get looks up a session by its process-assigned id.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byID[id]
	return session, ok
}

// GetByIdentifier looks up a session by its claimed identifier.
func (r *SessionRegistry) GetByIdentifier(identifier string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byIdentifier[identifier]
	return session, ok
}

// HasIdentifier reports whether identifier is currently claimed by a
// live session, used by the handshake to reject a conflicting
// PacketIdentification before it takes effect.
func (r *SessionRegistry) HasIdentifier(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byIdentifier[identifier]
	return ok
}

// bindIdentifier claims identifier for session. Callers must have already
// checked HasIdentifier under whatever ordering they need; this method
// does not itself resolve conflicts.
func (r *SessionRegistry) bindIdentifier(identifier string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byIdentifier[identifier] = session
}

// Identifiers returns the identifiers currently claimed.
func (r *SessionRegistry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byIdentifier))
	for id := range r.byIdentifier {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked sessions, authenticated or not.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// AuthenticatedCount returns the number of tracked sessions that have
// completed the handshake.
func (r *SessionRegistry) AuthenticatedCount() int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	count := 0
	for _, s := range sessions {
		if s.Authenticated() {
			count++
		}
	}
	return count
}

// snapshot returns every tracked session at the time of the call. Used by
// Broadcast so sending never happens while holding the registry lock.
func (r *SessionRegistry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}

// Broadcast sends msg to every currently tracked, authenticated session,
// logging and swallowing per-recipient errors so one dead connection
// cannot block delivery to the rest. It returns the identifiers (or
// ids, if unidentified) of recipients the send failed for.
func (r *SessionRegistry) Broadcast(msg Packet, compressionThreshold int) []string {
	var failed []string
	for _, session := range r.snapshot() {
		if !session.Authenticated() {
			continue
		}
		if err := session.Send(msg, compressionThreshold); err != nil {
			label := session.Identifier()
			if label == "" {
				label = session.ID()
			}
			r.logger.Warn("broadcast send failed", "recipient", label, "tag", msg.PacketTag(), "error", err)
			failed = append(failed, label)
		}
	}
	return failed
}
