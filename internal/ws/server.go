package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"wsreplay/config"
	"wsreplay/internal/replay"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests and binds each socket to its own
// replay.Connection.
type Server struct {
	Upgrader websocket.Upgrader

	manager *replay.Manager
	cfg     config.ServerConfig
	logger  *zap.Logger
	ctx     context.Context

	mu    sync.Mutex
	conns map[string]*replay.Connection
}

func NewServer(ctx context.Context, manager *replay.Manager, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Server{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		manager: manager,
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		conns:   make(map[string]*replay.Connection),
	}
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("conn_id", id))
	c := newClient(id, wsConn, s.cfg.SendBuffer, logger)
	conn := replay.NewConnection(id, c, s.manager, s.logger)

	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
	Conns.Inc()
	ConnOpenTotal.Inc()
	logger.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	inbox := make(chan []byte, inboxSize)
	go s.writePump(c)
	go s.dispatch(conn, inbox)
	go s.readPump(c, conn, inbox)
}

// inboxSize bounds the commands queued behind a subscribe that is loading.
const inboxSize = 16

// dispatch hands commands to conn in arrival order, off the read loop.
func (s *Server) dispatch(conn *replay.Connection, inbox <-chan []byte) {
	for b := range inbox {
		conn.HandleMessage(s.ctx, b)
	}
}

func (s *Server) readPump(c *client, conn *replay.Connection, inbox chan<- []byte) {
	defer func() {
		close(inbox)
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn.ID)
		s.mu.Unlock()
		Conns.Dec()
	}()

	c.ws.SetReadLimit(s.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		return nil
	})

	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.Info("websocket closed by client")
			case isTimeout(err):
				c.logger.Warn("websocket read timeout", zap.Error(err))
			default:
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		select {
		case inbox <- b:
		default:
			InboundDroppedTotal.Inc()
			c.logger.Debug("inbox full, dropping command")
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case b := <-c.send:
			if err := c.write(websocket.TextMessage, b, s.cfg.WriteWait); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
			PingSentTotal.Inc()
		case <-c.quit:
			c.drain(s.cfg.WriteWait)
			return
		}
	}
}

// Active is the number of open connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown tears down every open connection and waits, up to ctx, for them
// to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*replay.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
