package replay

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport is the client connection as the scheduler sees it.
// Send must not block on the network; Close must be idempotent.
type Transport interface {
	Send(s Sample) error
	Close() error
}

// Ticker is the periodic timer driving a scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker is the TickerFactory backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Scheduler plays one Session to a Transport, one Session.Tick per timer
// fire. Ticks of the same scheduler never overlap; schedulers share nothing.
type Scheduler struct {
	session   *Session
	transport Transport
	interval  time.Duration
	newTicker TickerFactory
	logger    *zap.Logger

	mu      sync.Mutex // held for the whole tick
	stopped bool
	ticker  Ticker

	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func NewScheduler(session *Session, transport Transport, interval time.Duration, newTicker TickerFactory, logger *zap.Logger) *Scheduler {
	if newTicker == nil {
		newTicker = NewTicker
	}
	return &Scheduler{
		session:   session,
		transport: transport,
		interval:  interval,
		newTicker: newTicker,
		logger:    logger,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start arms the timer and runs the tick loop. onExhausted is called once,
// from the loop goroutine, after the tick that found no data.
func (s *Scheduler) Start(onExhausted func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(s.done)
		return
	}
	s.ticker = s.newTicker(s.interval)
	s.mu.Unlock()

	go s.run(onExhausted)
}

func (s *Scheduler) run(onExhausted func()) {
	defer close(s.done)

	ticks := s.ticker.C()
	for {
		select {
		case <-s.quit:
			return
		case <-ticks:
			if s.tick() {
				continue
			}
			if s.Stop() && onExhausted != nil {
				onExhausted()
			}
			return
		}
	}
}

// tick reports whether the session should keep running.
func (s *Scheduler) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	TicksTotal.Inc()
	cursor := s.session.Cursor()
	dataLeft := s.session.Tick(func(sample Sample) {
		if err := s.transport.Send(sample); err != nil {
			SendErrorsTotal.Inc()
			s.logger.Warn("failed to send sample", zap.String("symbol", sample.Symbol), zap.Error(err))
			return
		}
		SamplesSentTotal.Inc()
	})
	s.logger.Debug("tick", zap.Int("cursor", cursor), zap.Bool("data_left", dataLeft))
	return dataLeft
}

// Stop cancels the timer. It is safe to call any number of times from any
// goroutine; once it returns no further tick runs. It reports whether this
// call was the one that stopped the scheduler.
func (s *Scheduler) Stop() bool {
	first := false
	s.stopOnce.Do(func() {
		first = true
		s.mu.Lock()
		s.stopped = true
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.mu.Unlock()
		close(s.quit)
	})
	return first
}

// Done is closed when the tick loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
