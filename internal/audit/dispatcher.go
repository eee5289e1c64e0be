// Package audit records security relevant events. Recording is best effort:
// it never blocks or fails the operation being audited.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
)

const writeTimeout = 5 * time.Second

// Recorder is what the rest of the application sees.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Dispatcher hands events to a Sink on a background goroutine. Sink errors
// are logged and counted, never returned.
type Dispatcher struct {
	sink       Sink
	log        *zap.Logger
	dropIfFull bool
	now        func() time.Time

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewDispatcher(cfg *config.AuditConfig, sink Sink, log *zap.Logger) *Dispatcher {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		sink:       sink,
		log:        log,
		dropIfFull: cfg.DropIfFull,
		now:        time.Now,
		ch:         make(chan Event, size),
		done:       make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.write(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.write(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("audit sink panicked", zap.Any("panic", r), zap.String("action", event.Action))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := d.sink.Write(ctx, &event); err != nil {
		d.failed.Add(1)
		d.log.Error("audit write failed",
			zap.String("module", event.Module),
			zap.String("action", event.Action),
			zap.Error(err))
	}
}

func (d *Dispatcher) Record(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = d.now()
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close drains queued events and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}
