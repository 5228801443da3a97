package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/lolyay/gma4j-go/pkg/ws"
)

func dialTestConn(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Keep the server side alive for the duration of the test by
		// blocking on a read that only returns once the client closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("dial: %v", err)
	}

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestSession_SendUnencryptedSucceedsWithSharedKeySet(t *testing.T) {
	conn, cleanup := dialTestConn(t)
	defer cleanup()

	session := ws.NewSession("test-session", conn)

	key, err := ws.GenerateSharedSecret()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	session.SetSharedKey(key)

	if err := session.SendUnencrypted(&ws.PacketPublicKey{PublicKey: "irrelevant"}); err != nil {
		t.Fatalf("send unencrypted: %v", err)
	}
}

func TestSession_FreshSessionNotAuthenticated(t *testing.T) {
	conn, cleanup := dialTestConn(t)
	defer cleanup()

	session := ws.NewSession("test-session", conn)

	if session.Authenticated() {
		t.Fatal("a fresh session must not report authenticated")
	}
}

func TestSession_PendingChallengeLifecycle(t *testing.T) {
	conn, cleanup := dialTestConn(t)
	defer cleanup()

	session := ws.NewSession("test-session", conn)

	if session.PendingChallenge() != nil {
		t.Fatal("a fresh session must have no pending challenge")
	}

	challenge := []byte("challenge-bytes")
	session.SetPendingChallenge(challenge)
	if string(session.PendingChallenge()) != string(challenge) {
		t.Fatal("pending challenge not stored")
	}

	session.ClearPendingChallenge()
	if session.PendingChallenge() != nil {
		t.Fatal("pending challenge not cleared")
	}
}
