package walkie

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer opens JSON message channels over WebSocket.
type WebSocketDialer struct {
	// Header is sent with the handshake request.
	Header http.Header
	// ReadLimit caps the size of one inbound message. Zero means 16 MiB.
	ReadLimit int64
}

// Dial connects to endpoint. The handshake is bounded by ctx.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (Channel, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: DefaultConnectTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("walkie: dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("walkie: dial %s: %w", endpoint, err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = 16 << 20
	}
	conn.SetReadLimit(limit)

	ch := &WebSocketChannel{
		conn:    conn,
		closeCh: make(chan struct{}),
		msgCh:   make(chan inboundOrError, 100),
	}
	go ch.readLoop()
	return ch, nil
}

// WebSocketChannel is a Channel over a WebSocket connection. Each text
// frame carries one JSON message.
type WebSocketChannel struct {
	conn      *websocket.Conn
	closeCh   chan struct{}
	msgCh     chan inboundOrError
	closeOnce sync.Once
	mu        sync.Mutex
}

type inboundOrError struct {
	msg *Inbound
	err error
}

// Messages returns an iterator over inbound messages. It stops after the
// first error.
func (c *WebSocketChannel) Messages() iter.Seq2[*Inbound, error] {
	return func(yield func(*Inbound, error) bool) {
		for {
			select {
			case <-c.closeCh:
				return
			case item, ok := <-c.msgCh:
				if !ok {
					return
				}
				if !yield(item.msg, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// Send writes msg as one JSON text frame.
func (c *WebSocketChannel) Send(ctx context.Context, msg *Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closeCh:
		return fmt.Errorf("walkie: send: %w", ErrClosed)
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	c.conn.SetWriteDeadline(deadline)

	slog.Debug("walkie: sending message", "type", msg.Type, "len", len(msg.Data))
	return c.conn.WriteJSON(msg)
}

// Close closes the connection. Messages ends without an error.
func (c *WebSocketChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WebSocketChannel) readLoop() {
	defer close(c.msgCh)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			select {
			case <-c.closeCh:
			case c.msgCh <- inboundOrError{err: fmt.Errorf("walkie: read: %w", err)}:
			}
			return
		}

		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			s := string(data)
			if len(s) > 200 {
				s = s[:200] + "..."
			}
			slog.Debug("walkie: received message", "len", len(data), "content", s)
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("walkie: dropping malformed message", "error", err, "len", len(data))
			continue
		}
		select {
		case <-c.closeCh:
			return
		case c.msgCh <- inboundOrError{msg: &msg}:
		}
	}
}
