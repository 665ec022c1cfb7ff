package target

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saschahauer/barebox-bringup/pkg/console"
)

// WebSocketDriver attaches to a remote console endpoint that carries raw
// console bytes in binary WebSocket messages, as exposed by emulator
// gateways and BMC-style console proxies.
//
// The driver is used by exactly one reader (the session's console pump)
// and one writer (the session dispatcher), which matches the connection's
// concurrency contract.
type WebSocketDriver struct {
	url      string
	username string
	password string
	timeout  time.Duration

	conn     *websocket.Conn
	leftover []byte
}

// NewWebSocketDriver prepares a driver for the given ws:// or wss:// URL.
// Credentials, when both present, are sent as HTTP basic auth during the
// handshake.
func NewWebSocketDriver(rawURL, username, password string) *WebSocketDriver {
	return &WebSocketDriver{
		url:      rawURL,
		username: username,
		password: password,
		timeout:  30 * time.Second,
	}
}

// Activate dials the endpoint.
func (d *WebSocketDriver) Activate(ctx context.Context) error {
	u, err := url.Parse(d.url)
	if err != nil {
		return fmt.Errorf("invalid console URL %s: %w", d.url, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid WebSocket scheme %s (expected ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if d.username != "" && d.password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(d.username + ":" + d.password))
		headers.Set("Authorization", "Basic "+auth)
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: d.timeout,
		Subprotocols:     []string{"binary"},
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("connect to console at %s: %w", u.String(), err)
	}
	d.conn = conn
	return nil
}

func (d *WebSocketDriver) Console() console.Console {
	return d
}

// Read returns bytes from the next binary message, carrying any remainder
// over to subsequent calls. A normal close from the peer maps to io.EOF,
// matching the console end-of-stream contract.
func (d *WebSocketDriver) Read(p []byte) (int, error) {
	for len(d.leftover) == 0 {
		mt, data, err := d.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
			continue
		}
		d.leftover = data
	}
	n := copy(p, d.leftover)
	d.leftover = d.leftover[n:]
	return n, nil
}

func (d *WebSocketDriver) Write(p []byte) (int, error) {
	if err := d.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close announces a normal closure to the peer and closes the connection.
func (d *WebSocketDriver) Close() error {
	if d.conn == nil {
		return nil
	}
	d.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return d.conn.Close()
}
