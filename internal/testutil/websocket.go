// Package testutil provides helpers for integration tests against a running server.
package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a WebSocket test client that speaks the quiz JSON protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials ws://addr/ and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, addr string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(fmt.Sprintf("ws://%s/", addr), nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", addr, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send encodes msg as JSON and writes it as one text frame.
func (c *WSClient) Send(msg any) {
	c.t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("encoding %v: %v", msg, err)
	}
	c.SendRaw(data)
}

// SendRaw writes data as one text frame without encoding.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending %q: %v", data, err)
	}
}

// Read returns the next message decoded as a JSON object.
//
// Postcondition: Returns the decoded message, or fails the test on timeout or decode error.
func (c *WSClient) Read(timeout time.Duration) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("decoding %q: %v", data, err)
	}
	return msg
}

// ReadMethod reads messages until one with the given method arrives.
// Messages with other methods, such as periodic updates, are skipped.
func (c *WSClient) ReadMethod(method string, timeout time.Duration) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("no %q message within %s", method, timeout)
		}
		msg := c.Read(remaining)
		if msg["method"] == method {
			return msg
		}
	}
}

// ReadClose reads until the server closes the connection and returns the close code.
func (c *WSClient) ReadClose(timeout time.Duration) int {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code
			}
			c.t.Fatalf("waiting for close frame: %v", err)
		}
	}
}

// Close sends a normal close frame and closes the underlying connection.
func (c *WSClient) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}
