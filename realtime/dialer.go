// ABOUTME: Websocket transport for the realtime channel
// ABOUTME: Authenticates with a token query parameter and decodes {"event","data"} frames

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/transport"
	"github.com/gorilla/websocket"
)

// Conn is one live transport-level connection
type Conn interface {
	// ReadEvent blocks until the next event arrives or the connection fails
	ReadEvent() (models.Event, error)
	Close() error
}

// Dialer opens a connection authenticated with token
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// HandshakeError reports a connection the server refused during the upgrade
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("realtime handshake rejected with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// authRejected reports whether err means the token itself was refused
func authRejected(err error) bool {
	var he *HandshakeError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden
	}
	return false
}

// WebsocketDialer dials the backend's /ws endpoint
type WebsocketDialer struct {
	URL              string
	NetDialContext   transport.DialContextFunc // optional, e.g. the SSH+SOCKS5 proxy
	HandshakeTimeout time.Duration
}

func (d *WebsocketDialer) Dial(ctx context.Context, token string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		NetDialContext:   d.NetDialContext,
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadEvent() (models.Event, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return models.Event{}, err
		}
		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			slog.Warn("Dropping malformed realtime frame", "bytes", len(data))
			continue
		}
		return ev, nil
	}
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
