package ws_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lolyay/gma4j-go/pkg/ws"
)

func TestLivenessController_PongCorrelation(t *testing.T) {
	lc := ws.NewLivenessController(ws.DefaultLivenessConfig())

	start := time.Now()
	ping := lc.NextPing(start)

	lc.HandlePong(&ws.PacketPong{SequenceID: ping.SequenceID}, start.Add(50*time.Millisecond))

	if lc.LastLatencyMillis() != 50 {
		t.Errorf("expected 50ms latency, got %d", lc.LastLatencyMillis())
	}
	if lc.AverageLatencyMillis() != 50 {
		t.Errorf("expected average latency 50ms on first sample, got %d", lc.AverageLatencyMillis())
	}
}

func TestLivenessController_UnknownSequenceIgnored(t *testing.T) {
	lc := ws.NewLivenessController(ws.DefaultLivenessConfig())

	lc.HandlePong(&ws.PacketPong{SequenceID: 999}, time.Now())

	if lc.LastLatencyMillis() != -1 {
		t.Error("a pong with no matching ping must not update latency")
	}
}

func TestLivenessController_ExponentialMovingAverage(t *testing.T) {
	lc := ws.NewLivenessController(ws.DefaultLivenessConfig())
	start := time.Now()

	p1 := lc.NextPing(start)
	lc.HandlePong(&ws.PacketPong{SequenceID: p1.SequenceID}, start.Add(100*time.Millisecond))

	p2 := lc.NextPing(start)
	lc.HandlePong(&ws.PacketPong{SequenceID: p2.SequenceID}, start.Add(200*time.Millisecond))

	// avg after first sample = 100; after second = (100*7 + 200)/8 = 112
	if got := lc.AverageLatencyMillis(); got != 112 {
		t.Errorf("expected EMA of 112ms, got %d", got)
	}
}

func TestLivenessController_PacketLoss(t *testing.T) {
	lc := ws.NewLivenessController(ws.DefaultLivenessConfig())
	start := time.Now()

	for i := 0; i < 10; i++ {
		ping := lc.NextPing(start)
		if i < 8 {
			lc.HandlePong(&ws.PacketPong{SequenceID: ping.SequenceID}, start)
		}
	}

	if loss := lc.PacketLoss(); loss < 0.19 || loss > 0.21 {
		t.Errorf("expected packet loss near 0.2, got %f", loss)
	}
}

func TestLivenessController_ReconnectBound(t *testing.T) {
	cfg := ws.DefaultLivenessConfig()
	cfg.MaxReconnectAttempts = 3
	cfg.ReconnectInterval = time.Millisecond
	lc := ws.NewLivenessController(cfg)

	attempts := 0
	failingConnect := func(ctx context.Context) error {
		attempts++
		return errors.New("dial failed")
	}

	err := lc.RunReconnectLoop(context.Background(), failingConnect)
	if !errors.Is(err, ws.ErrMaxReconnectAttempts) {
		t.Fatalf("expected ErrMaxReconnectAttempts, got %v", err)
	}
	if attempts != cfg.MaxReconnectAttempts {
		t.Errorf("expected %d attempts, got %d", cfg.MaxReconnectAttempts, attempts)
	}
}

func TestLivenessController_ReconnectZeroAttemptsNeverDials(t *testing.T) {
	cfg := ws.DefaultLivenessConfig()
	cfg.MaxReconnectAttempts = 0
	cfg.ReconnectInterval = time.Millisecond
	lc := ws.NewLivenessController(cfg)

	calls := 0
	connect := func(ctx context.Context) error {
		calls++
		return errors.New("dial failed")
	}

	err := lc.RunReconnectLoop(context.Background(), connect)
	if !errors.Is(err, ws.ErrMaxReconnectAttempts) {
		t.Fatalf("expected ErrMaxReconnectAttempts, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected zero connect attempts with MaxReconnectAttempts=0, got %d", calls)
	}
}

func TestLivenessController_ReconnectSucceedsWithoutExhausting(t *testing.T) {
	cfg := ws.DefaultLivenessConfig()
	cfg.MaxReconnectAttempts = 5
	cfg.ReconnectInterval = time.Millisecond
	lc := ws.NewLivenessController(cfg)

	calls := 0
	connect := func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return nil
		}
		return errors.New("dial failed")
	}

	if err := lc.RunReconnectLoop(context.Background(), connect); err != nil {
		t.Fatalf("expected reconnect to succeed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestLivenessController_Reset(t *testing.T) {
	lc := ws.NewLivenessController(ws.DefaultLivenessConfig())
	start := time.Now()

	ping := lc.NextPing(start)
	lc.HandlePong(&ws.PacketPong{SequenceID: ping.SequenceID}, start.Add(10*time.Millisecond))

	lc.Reset()

	if lc.LastLatencyMillis() != -1 || lc.AverageLatencyMillis() != -1 {
		t.Error("expected latency stats to reset to -1")
	}
	if lc.PacketLoss() != 0 {
		t.Error("expected packet loss to reset to 0")
	}
}
