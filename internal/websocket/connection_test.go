package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// createTestConnection dials a loopback server and returns the wrapped
// server-side connection plus a channel of frames read by the client peer.
func createTestConnection(t *testing.T) (*Connection, <-chan []byte) {
	t.Helper()

	serverConn := make(chan *Connection, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- NewConnection(wsConn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test server: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	received := make(chan []byte, 64)
	go func() {
		defer close(received)
		for {
			_, data, err := peer.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}()

	select {
	case conn := <-serverConn:
		t.Cleanup(func() { conn.Close() })
		return conn, received
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server connection")
		return nil, nil
	}
}

func TestConnectionSendDelivers(t *testing.T) {
	conn, received := createTestConnection(t)

	if err := conn.Send([]byte(`{"type":"test-end"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != `{"type":"test-end"}` {
			t.Errorf("Unexpected frame: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for frame")
	}
}

func TestConnectionSendPreservesOrder(t *testing.T) {
	conn, received := createTestConnection(t)

	for i := 0; i < 10; i++ {
		if err := conn.Send([]byte(fmt.Sprintf("frame-%d", i))); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case data := <-received:
			if string(data) != fmt.Sprintf("frame-%d", i) {
				t.Fatalf("Expected frame-%d, got %s", i, data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for frame %d", i)
		}
	}
}

func TestConnectionSendAfterClose(t *testing.T) {
	conn, _ := createTestConnection(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := conn.Send([]byte("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestConnectionCloseIdempotent(t *testing.T) {
	conn, _ := createTestConnection(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}

func TestConnectionConcurrentSenders(t *testing.T) {
	conn, received := createTestConnection(t)

	const senders = 10
	done := make(chan struct{}, senders)
	for i := 0; i < senders; i++ {
		go func(n int) {
			_ = conn.Send([]byte(fmt.Sprintf("sender-%d", n)))
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < senders; i++ {
		<-done
	}

	count := 0
	timeout := time.After(2 * time.Second)
	for count < senders {
		select {
		case <-received:
			count++
		case <-timeout:
			t.Fatalf("Expected %d frames, got %d", senders, count)
		}
	}
}
