package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Dispatcher decouples request handling from broker latency.  Publish only
// enqueues; a single worker forwards events to the wrapped Publisher.  When
// the buffer is full, events are dropped and counted.
type Dispatcher struct {
	next    Publisher
	logger  echo.Logger
	timeout time.Duration

	ch        chan AuthEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker goroutine.  Call Close to drain it.
func NewDispatcher(next Publisher, buffer int, logger echo.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	d := &Dispatcher{
		next:    next,
		logger:  logger,
		timeout: 5 * time.Second,
		ch:      make(chan AuthEvent, buffer),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.ch:
			d.forward(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.ch:
					d.forward(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) forward(ev AuthEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.next.Publish(ctx, ev); err != nil {
		d.logger.Warnf("events: publish %s failed: %v", ev.Type, err)
	}
}

// Publish enqueues ev without blocking.
func (d *Dispatcher) Publish(_ context.Context, ev AuthEvent) error {
	if d.closed.Load() {
		return nil
	}
	select {
	case d.ch <- ev:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
	return nil
}

// Dropped is the number of events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Close stops accepting events and flushes what is buffered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
