package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"wsreplay/internal/replay"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClosed    = errors.New("ws: connection closed")
	ErrQueueFull = errors.New("ws: send queue full")
)

// client is the replay.Transport over one websocket. Send only enqueues;
// writePump owns every write to the socket.
type client struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	quit      chan struct{}
}

func newClient(id string, conn *websocket.Conn, sendBuf int, logger *zap.Logger) *client {
	return &client{
		id:     id,
		ws:     conn,
		send:   make(chan []byte, sendBuf),
		logger: logger,
		quit:   make(chan struct{}),
	}
}

func (c *client) Send(s replay.Sample) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		DroppedTotal.WithLabelValues("closed").Inc()
		return ErrClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		DroppedTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

// Close asks writePump to flush what is queued, send a close frame and
// drop the socket. It does not wait for that to happen.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.quit)
	})
	return nil
}

func (c *client) write(msgType int, b []byte, wait time.Duration) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(wait))
	if err := c.ws.WriteMessage(msgType, b); err != nil {
		WriteErrorsTotal.Inc()
		return err
	}
	MsgsOutTotal.Inc()
	BytesOutTotal.Add(float64(len(b)))
	return nil
}

// drain writes whatever is still queued, then the close frame.
func (c *client) drain(wait time.Duration) {
	for {
		select {
		case b := <-c.send:
			if err := c.write(websocket.TextMessage, b, wait); err != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay finished")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
			return
		}
	}
}
