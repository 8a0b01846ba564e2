package replayclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Sample is one replayed price update as sent by the server.
type Sample struct {
	Symbol    string  `json:"symbol"`
	LTP       float64 `json:"ltp"`
	Timestamp int64   `json:"timestamp"`
	Type      string  `json:"type"`
}

const sampleType = "sf"

// Client subscribes to a replay server and hands every sample to a handler.
type Client struct {
	url     string
	conn    *websocket.Conn
	handler func(Sample)
	logger  *zap.Logger
}

func NewClient(url string, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		logger: logger,
	}
}

// SetMessageHandler sets the function called for each received sample.
func (c *Client) SetMessageHandler(h func(Sample)) {
	c.handler = h
}

// Connect dials the server and sends the subscribe command. It does not
// start the listener.
func (c *Client) Connect(ctx context.Context, symbols []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("Failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		return err
	}
	c.conn = conn
	c.logger.Info("WebSocket connected", zap.String("url", c.url))

	subMsg := map[string]interface{}{
		"action":  "subscribe",
		"symbols": symbols,
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("websocket subscribe failed: %w", err)
	}
	return nil
}

// Listen reads until the server closes the stream. A normal close, which
// the server sends once the replay is exhausted, returns nil.
func (c *Client) Listen() error {
	if c.conn == nil {
		return errors.New("replayclient: not connected")
	}
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Info("replay finished")
				return nil
			}
			c.logger.Error("WebSocket read error", zap.Error(err))
			return err
		}

		s, ok := parseSample(msg)
		if !ok {
			c.logger.Debug("ignoring message", zap.ByteString("msg", msg))
			continue
		}
		if c.handler != nil {
			c.handler(s)
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	return c.conn.Close()
}

func parseSample(msg []byte) (Sample, bool) {
	if !gjson.ValidBytes(msg) {
		return Sample{}, false
	}
	r := gjson.ParseBytes(msg)
	if r.Get("type").String() != sampleType {
		return Sample{}, false
	}
	return Sample{
		Symbol:    r.Get("symbol").String(),
		LTP:       r.Get("ltp").Float(),
		Timestamp: r.Get("timestamp").Int(),
		Type:      sampleType,
	}, true
}
