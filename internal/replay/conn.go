package replay

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle position of a client connection.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the per-client context created at connect time. It owns at
// most one session for its whole life: IDLE -> STREAMING -> CLOSED, or
// IDLE -> CLOSED.
type Connection struct {
	ID string

	transport Transport
	manager   *Manager
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	loading   bool
	session   *Session
	scheduler *Scheduler

	// cancelled on teardown, aborts an in-flight load
	ctx    context.Context
	cancel context.CancelFunc

	teardownOnce sync.Once
	done         chan struct{}
}

func NewConnection(id string, transport Transport, manager *Manager, logger *zap.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:        id,
		transport: transport,
		manager:   manager,
		logger:    logger.With(zap.String("conn_id", id)),
		state:     StateIdle,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// HandleMessage processes one inbound message. A valid subscribe on an idle
// connection loads every series, then starts streaming. Anything else is
// dropped without a reply. It blocks for the duration of the load.
func (c *Connection) HandleMessage(ctx context.Context, raw []byte) {
	cmd, err := ParseCommand(raw)
	if err != nil {
		c.drop(dropReason(err), err)
		return
	}

	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		c.drop("closed", nil)
		return
	case c.state != StateIdle || c.loading:
		c.mu.Unlock()
		c.drop("already_subscribed", nil)
		return
	}
	c.loading = true
	c.mu.Unlock()

	SubscribeTotal.Inc()
	loadCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	session, err := c.manager.Open(loadCtx, cmd.Symbols)
	stop()
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		SubscribeFailuresTotal.Inc()
		c.logger.Warn("subscribe failed", zap.Strings("symbols", cmd.Symbols), zap.Error(err))
		return
	}
	if c.state == StateClosed {
		c.logger.Debug("connection closed while loading, discarding session")
		return
	}

	c.session = session
	c.scheduler = c.manager.NewScheduler(session, c.transport, c.logger)
	c.state = StateStreaming
	SessionsActive.Inc()
	c.logger.Info("session started",
		zap.Strings("symbols", cmd.Symbols),
		zap.Int("length", session.Len()),
	)
	c.scheduler.Start(func() { c.teardown("exhausted") })
}

func (c *Connection) drop(reason string, err error) {
	CommandsDroppedTotal.WithLabelValues(reason).Inc()
	c.logger.Debug("command dropped", zap.String("reason", reason), zap.Error(err))
}

// Close is called when the transport reports close or error. It is safe to
// call concurrently with an exhaustion teardown and more than once.
func (c *Connection) Close() {
	c.teardown("closed")
}

func (c *Connection) teardown(cause string) {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		prev := c.state
		c.state = StateClosed
		scheduler := c.scheduler
		c.session = nil
		c.mu.Unlock()

		c.cancel()
		if scheduler != nil {
			scheduler.Stop()
		}
		if err := c.transport.Close(); err != nil {
			c.logger.Debug("transport close", zap.Error(err))
		}

		if prev == StateStreaming {
			SessionsActive.Dec()
		}
		TeardownTotal.WithLabelValues(cause).Inc()
		c.logger.Info("connection torn down", zap.String("cause", cause), zap.Stringer("from", prev))
		close(c.done)
	})
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session, or nil when not streaming.
func (c *Connection) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Done is closed once teardown has completed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}
