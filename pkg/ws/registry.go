package ws

import "sync"

// registry is the process-wide mapping from a short type tag to a
// constructor that produces an empty instance ready for JSON field
// population. It is written at package init for the protocol packets and
// by embedding applications registering their own kinds; steady-state
// lookups only read.
type registry struct {
	mu    sync.RWMutex
	types map[string]func() Packet
}

var defaultRegistry = &registry{types: make(map[string]func() Packet)}

// Register associates a type tag with a constructor. Registration is
// additive and idempotent: registering the same tag twice is not an
// error, it simply replaces the constructor (mirroring a plain map
// assignment, as the reference implementation's registry does).
func Register(tag string, ctor func() Packet) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.types[tag] = ctor
}

// Resolve looks up the constructor registered for tag.
func Resolve(tag string) (func() Packet, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	ctor, ok := defaultRegistry.types[tag]
	return ctor, ok
}

// RegisteredTags returns the set of currently registered type tags.
// Useful for diagnostics; not used on any hot path.
func RegisteredTags() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	tags := make([]string, 0, len(defaultRegistry.types))
	for tag := range defaultRegistry.types {
		tags = append(tags, tag)
	}
	return tags
}
