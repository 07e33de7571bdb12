package throttle

import (
	"errors"
	"sync"
	"time"
)

var (
	errMissingSend     = errors.New("throttle: send function is required")
	errInvalidInterval = errors.New("throttle: interval must be positive")
)

// Config configures a Publisher. Clock and Schedule exist for tests; the
// zero values use the wall clock and time.AfterFunc.
type Config[T any] struct {
	Interval time.Duration
	Send     func(T)
	Clock    func() time.Time
	Schedule func(delay time.Duration, fire func()) (cancel func())
}

// Publisher coalesces a high-frequency stream of values into at most one
// send per interval, last value wins. The first value in a quiescent
// period goes out immediately; values arriving inside an open window
// overwrite the pending slot and a single deferred flush delivers the
// latest one when the window closes. If the stream stops, the pending
// value is flushed exactly once — the final sample is never starved.
type Publisher[T any] struct {
	mu       sync.Mutex
	interval time.Duration
	send     func(T)
	clock    func() time.Time
	schedule func(time.Duration, func()) func()

	lastSend time.Time
	pending  *T
	cancel   func() // non-nil while a flush is armed
}

func NewPublisher[T any](cfg Config[T]) (*Publisher[T], error) {
	if cfg.Send == nil {
		return nil, errMissingSend
	}
	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	schedule := cfg.Schedule
	if schedule == nil {
		schedule = func(delay time.Duration, fire func()) func() {
			timer := time.AfterFunc(delay, fire)
			return func() { timer.Stop() }
		}
	}
	return &Publisher[T]{
		interval: cfg.Interval,
		send:     cfg.Send,
		clock:    clock,
		schedule: schedule,
	}, nil
}

// Publish offers a value. It either sends immediately, or replaces the
// pending value and (if necessary) arms the deferred flush.
func (p *Publisher[T]) Publish(value T) {
	p.mu.Lock()
	now := p.clock()
	if p.cancel == nil && now.Sub(p.lastSend) >= p.interval {
		p.lastSend = now
		p.mu.Unlock()
		p.send(value)
		return
	}

	p.pending = &value
	if p.cancel == nil {
		delay := p.lastSend.Add(p.interval).Sub(now)
		if delay < 0 {
			delay = 0
		}
		p.cancel = p.schedule(delay, p.flush)
	}
	p.mu.Unlock()
}

// Stop disarms a pending flush and drops the queued value.
func (p *Publisher[T]) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.pending = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Publisher[T]) flush() {
	p.mu.Lock()
	p.cancel = nil
	if p.pending == nil {
		p.mu.Unlock()
		return
	}
	value := *p.pending
	p.pending = nil
	p.lastSend = p.clock()
	p.mu.Unlock()
	p.send(value)
}
