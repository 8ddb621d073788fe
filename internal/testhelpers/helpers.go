// Package testhelpers provides WebSocket and HTTP utilities shared by the
// relay's tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultOrigin is the Origin header sent by ConnectWebSocket.
const DefaultOrigin = "http://localhost:3000"

// WebSocketURL converts an httptest server URL into a ws:// URL for path.
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// ConnectWebSocket dials url with DefaultOrigin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, DefaultOrigin)
}

// ConnectWebSocketWithOrigin dials url sending origin as the Origin header;
// an empty origin sends none.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// MustConnect dials n clients and registers cleanup that closes them.
func MustConnect(t *testing.T, url string, n int) []*websocket.Conn {
	t.Helper()

	conns := make([]*websocket.Conn, n)
	for i := range conns {
		conn, err := ConnectWebSocket(url)
		if err != nil {
			t.Fatalf("Failed to connect client %d: %v", i, err)
		}
		conns[i] = conn
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conns
}

// SendJSON marshals v and writes it as a text frame.
func SendJSON(t *testing.T, conn *websocket.Conn, v any) []byte {
	t.Helper()

	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal message: %v", err)
	}
	SendRaw(t, conn, websocket.TextMessage, payload)
	return payload
}

// SendRaw writes payload as a frame of messageType.
func SendRaw(t *testing.T, conn *websocket.Conn, messageType int, payload []byte) {
	t.Helper()

	if err := conn.WriteMessage(messageType, payload); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

// ReceiveRaw reads one frame, failing the test if none arrives in timeout.
func ReceiveRaw(t *testing.T, conn *websocket.Conn, timeout time.Duration) (int, []byte) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a message, got error: %v", err)
	}
	return messageType, payload
}

// ExpectNoMessage fails the test if a data frame arrives within timeout.
// The connection should not be read from afterwards, because a read deadline
// expiry leaves a gorilla connection unusable.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Errorf("Expected no message, got %q", payload)
	}
}

// CloseWebSocket sends a normal close frame and closes conn.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}
