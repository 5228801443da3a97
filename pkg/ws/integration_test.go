package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lolyay/gma4j-go/internal/demopackets"
	"github.com/lolyay/gma4j-go/pkg/ws"
)

const testPreSharedSecret = "topsecret"

func newTestServer(t *testing.T, handler ws.Handler) (*ws.Server, *httptest.Server, string) {
	t.Helper()

	cfg := ws.DefaultServerConfig(testPreSharedSecret)
	server := ws.NewServer(cfg, handler)
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return server, ts, wsURL
}

type recordingHandler struct {
	ws.BaseHandler

	mu            sync.Mutex
	authenticated []*ws.Session
	identified    map[string]*ws.Session
	packets       []ws.Packet
	disconnected  int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{identified: make(map[string]*ws.Session)}
}

func (h *recordingHandler) OnAuthenticated(session *ws.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authenticated = append(h.authenticated, session)
}

func (h *recordingHandler) OnIdentified(session *ws.Session, identifier string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.identified[identifier] = session
}

func (h *recordingHandler) OnPacket(session *ws.Session, packet ws.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.packets = append(h.packets, packet)
}

func (h *recordingHandler) OnDisconnect(session *ws.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected++
}

func (h *recordingHandler) authenticatedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.authenticated)
}

func (h *recordingHandler) packetCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.packets)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

// Scenario A: a client with the correct pre-shared secret and no
// identifier completes the handshake and reaches steady state.
func TestIntegration_SuccessfulHandshakeNoIdentifier(t *testing.T) {
	handler := newRecordingHandler()
	_, _, wsURL := newTestServer(t, handler)

	authCh := make(chan struct{}, 1)
	client := ws.NewSecureClient(ws.DefaultSecureClientConfig(wsURL, testPreSharedSecret), &ws.ClientHandler{
		OnAuthenticated: func(*ws.Session) { authCh <- struct{}{} },
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-authCh:
	case <-time.After(3 * time.Second):
		t.Fatal("client never authenticated")
	}

	waitFor(t, 3*time.Second, func() bool { return handler.authenticatedCount() == 1 })
}

// Scenario B: a custom registered packet round-trips end to end, and the
// server observes it via OnPacket after both sides authenticate.
func TestIntegration_CustomPacketRoundTrip(t *testing.T) {
	type gameUpdate struct {
		Action string `json:"action"`
		Data   string `json:"data"`
	}

	handler := newRecordingHandler()
	_, _, wsURL := newTestServer(t, handler)

	authCh := make(chan struct{}, 1)
	client := ws.NewSecureClient(ws.DefaultSecureClientConfig(wsURL, testPreSharedSecret), &ws.ClientHandler{
		OnAuthenticated: func(*ws.Session) { authCh <- struct{}{} },
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-authCh:
	case <-time.After(3 * time.Second):
		t.Fatal("client never authenticated")
	}

	if err := client.Session().Send(&demopackets.PacketGameUpdate{Action: "restart", Data: "10s"}, ws.NoCompression); err != nil {
		t.Fatalf("send game update: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool { return handler.packetCount() >= 1 })
}

// Scenario C: a mismatched pre-shared secret is rejected with
// PacketAuthFailed and a 4001 close.
func TestIntegration_WrongSecretRejected(t *testing.T) {
	handler := newRecordingHandler()
	_, _, wsURL := newTestServer(t, handler)

	disconnectedCh := make(chan struct{}, 1)
	client := ws.NewSecureClient(ws.DefaultSecureClientConfig(wsURL, "wrong-secret"), &ws.ClientHandler{
		OnDisconnect: func(*ws.Session) { disconnectedCh <- struct{}{} },
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-client.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client connection never closed after auth failure")
	}

	if handler.authenticatedCount() != 0 {
		t.Fatal("a client with the wrong pre-shared secret must never authenticate")
	}
}

// Scenario D: two clients claiming the same identifier; the second is
// rejected while the first keeps its session.
func TestIntegration_DuplicateIdentifierRejected(t *testing.T) {
	handler := newRecordingHandler()
	_, _, wsURL := newTestServer(t, handler)

	connectAndIdentify := func(identifier string) (*ws.SecureClient, chan struct{}, chan struct{}) {
		authCh := make(chan struct{}, 1)
		disconnectedCh := make(chan struct{}, 1)
		client := ws.NewSecureClient(ws.DefaultSecureClientConfig(wsURL, testPreSharedSecret), &ws.ClientHandler{
			OnAuthenticated: func(session *ws.Session) {
				_ = session.Send(&ws.PacketIdentification{ClientIdentifier: identifier}, ws.NoCompression)
				authCh <- struct{}{}
			},
			OnDisconnect: func(*ws.Session) { disconnectedCh <- struct{}{} },
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Connect(ctx); err != nil {
			t.Fatalf("connect: %v", err)
		}
		return client, authCh, disconnectedCh
	}

	first, authCh1, _ := connectAndIdentify("duplicate-id")
	defer first.Close()
	select {
	case <-authCh1:
	case <-time.After(3 * time.Second):
		t.Fatal("first client never authenticated")
	}

	// Identification success carries no wire reply, so wait for the
	// server's own bookkeeping to observe the bind before racing a
	// second client for the same identifier.
	waitFor(t, 3*time.Second, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		_, ok := handler.identified["duplicate-id"]
		return ok
	})

	second, authCh2, _ := connectAndIdentify("duplicate-id")
	defer second.Close()
	select {
	case <-authCh2:
	case <-time.After(3 * time.Second):
		t.Fatal("second client never authenticated")
	}

	select {
	case <-second.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("second client's session was never closed for identifier conflict")
	}
}

// Scenario F: with a short ping interval, at least one ping/pong round
// trip completes and yields non-negative last and average latencies.
func TestIntegration_PingPongLatency(t *testing.T) {
	handler := newRecordingHandler()
	_, _, wsURL := newTestServer(t, handler)

	cfg := ws.DefaultSecureClientConfig(wsURL, testPreSharedSecret)
	cfg.EnablePing = true
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = 200 * time.Millisecond

	authCh := make(chan struct{}, 1)
	client := ws.NewSecureClient(cfg, &ws.ClientHandler{
		OnAuthenticated: func(*ws.Session) { authCh <- struct{}{} },
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-authCh:
	case <-time.After(3 * time.Second):
		t.Fatal("client never authenticated")
	}

	waitFor(t, 3*time.Second, func() bool {
		return client.Liveness().LastLatencyMillis() >= 0
	})

	if client.Liveness().AverageLatencyMillis() < 0 {
		t.Error("expected a non-negative average latency after at least one ping/pong")
	}
}
