package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LivenessConfig controls how a LivenessController schedules pings and
// reconnect attempts on a client connection.
type LivenessConfig struct {
	PingInterval         time.Duration
	PingTimeout          time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	Logger               *slog.Logger
}

// DefaultLivenessConfig returns sane defaults, matching the reconnect
// cadence a demo client would want out of the box. MaxReconnectAttempts
// of -1 means unlimited.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		PingInterval:         30 * time.Second,
		PingTimeout:          10 * time.Second,
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		Logger:               slog.Default(),
	}
}

// LivenessController owns the ping/pong latency measurement and the
// reconnect backoff for one client connection. It does not itself open
// or close connections; SecureClient drives it and supplies a send
// function and a reconnect function.
type LivenessController struct {
	cfg LivenessConfig

	sequence atomic.Uint32

	mu           sync.Mutex
	pendingPings map[uint32]time.Time

	lastLatencyMs    atomic.Int64
	averageLatencyMs atomic.Int64
	pingsSent        atomic.Uint64
	pongsReceived    atomic.Uint64
}

// NewLivenessController returns a controller with no measurements yet.
func NewLivenessController(cfg LivenessConfig) *LivenessController {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	lc := &LivenessController{
		cfg:          cfg,
		pendingPings: make(map[uint32]time.Time),
	}
	lc.lastLatencyMs.Store(-1)
	lc.averageLatencyMs.Store(-1)
	return lc
}

// NextPing mints a PacketPing carrying a fresh sequence id and records
// its send time so a matching PacketPong can be timed. now is passed in
// by the caller instead of read from the clock here, so tests can drive
// the sequence deterministically.
func (lc *LivenessController) NextPing(now time.Time) *PacketPing {
	seq := lc.sequence.Add(1)

	lc.mu.Lock()
	lc.pendingPings[seq] = now
	lc.mu.Unlock()

	lc.pingsSent.Add(1)
	return &PacketPing{Timestamp: now.UnixMilli(), SequenceID: seq}
}

// HandlePong correlates an incoming PacketPong with its ping, updating
// the latency measurements. A pong with no matching sequence id (already
// timed out, or a duplicate) is ignored.
func (lc *LivenessController) HandlePong(pong *PacketPong, now time.Time) {
	lc.mu.Lock()
	sentAt, ok := lc.pendingPings[pong.SequenceID]
	if ok {
		delete(lc.pendingPings, pong.SequenceID)
	}
	lc.mu.Unlock()

	if !ok {
		return
	}

	latency := now.Sub(sentAt).Milliseconds()
	lc.lastLatencyMs.Store(latency)
	lc.pongsReceived.Add(1)

	if avg := lc.averageLatencyMs.Load(); avg < 0 {
		lc.averageLatencyMs.Store(latency)
	} else {
		lc.averageLatencyMs.Store((avg*7 + latency) / 8)
	}
}

// ExpirePings drops any outstanding ping older than the configured
// timeout, so they no longer count toward a future average once their
// pong can never arrive. Returns the number dropped.
func (lc *LivenessController) ExpirePings(now time.Time) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	dropped := 0
	for seq, sentAt := range lc.pendingPings {
		if now.Sub(sentAt) > lc.cfg.PingTimeout {
			delete(lc.pendingPings, seq)
			dropped++
		}
	}
	return dropped
}

// LastLatencyMillis returns the most recently measured round-trip time,
// or -1 if no pong has ever been received.
func (lc *LivenessController) LastLatencyMillis() int64 { return lc.lastLatencyMs.Load() }

// AverageLatencyMillis returns the exponential moving average round-trip
// time (weight 1/8 per sample), or -1 if no pong has ever been received.
func (lc *LivenessController) AverageLatencyMillis() int64 { return lc.averageLatencyMs.Load() }

// PacketLoss returns the fraction of sent pings that never received a
// pong, in the range [0, 1]. Returns 0 if no pings have been sent yet.
func (lc *LivenessController) PacketLoss() float64 {
	sent := lc.pingsSent.Load()
	if sent == 0 {
		return 0
	}
	received := lc.pongsReceived.Load()
	return float64(sent-received) / float64(sent)
}

// Reset clears all measurements and outstanding pings, called whenever a
// connection is reestablished so stale samples from before the drop
// don't bleed into the new connection's average.
func (lc *LivenessController) Reset() {
	lc.mu.Lock()
	lc.pendingPings = make(map[uint32]time.Time)
	lc.mu.Unlock()

	lc.sequence.Store(0)
	lc.lastLatencyMs.Store(-1)
	lc.averageLatencyMs.Store(-1)
	lc.pingsSent.Store(0)
	lc.pongsReceived.Store(0)
}

// RunPingLoop sends a ping on every PingInterval tick and expires
// overdue pings, until ctx is canceled. An error returned by send is
// logged and does not stop the loop.
// It is meant to run in its own goroutine for the lifetime of a
// connection; SecureClient starts a fresh one after every reconnect.
func (lc *LivenessController) RunPingLoop(ctx context.Context, send func(*PacketPing) error) {
	ticker := time.NewTicker(lc.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if dropped := lc.ExpirePings(now); dropped > 0 {
				lc.cfg.Logger.Debug("ping timed out", "count", dropped)
			}
			ping := lc.NextPing(now)
			if err := send(ping); err != nil {
				lc.cfg.Logger.Warn("failed to send ping", "error", err)
			}
		}
	}
}

// RunReconnectLoop repeatedly calls connect until it succeeds, ctx is
// canceled, or MaxReconnectAttempts is exceeded (-1 means unlimited).
// Grounded on the same connect/backoff/retry shape a plain client dialer
// uses, generalized to report attempts through the logger.
func (lc *LivenessController) RunReconnectLoop(ctx context.Context, connect func(context.Context) error) error {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lc.cfg.MaxReconnectAttempts >= 0 && attempts >= lc.cfg.MaxReconnectAttempts {
			return ErrMaxReconnectAttempts
		}

		err := connect(ctx)
		if err == nil {
			return nil
		}

		attempts++
		lc.cfg.Logger.Warn("reconnect failed, retrying", "attempt", attempts, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lc.cfg.ReconnectInterval):
		}
	}
}
