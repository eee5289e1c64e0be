// Package janitor periodically deletes remember sessions, reset tokens and
// login attempt records that can no longer matter.
package janitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
)

type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type Target struct {
	Name   string
	Purger Purger
}

type Janitor struct {
	log       *zap.Logger
	interval  time.Duration
	retention time.Duration
	targets   []Target
	now       func() time.Time

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type Option func(*Janitor)

func WithClock(now func() time.Time) Option {
	return func(j *Janitor) { j.now = now }
}

func New(cfg *config.JanitorConfig, log *zap.Logger, targets []Target, opts ...Option) *Janitor {
	j := &Janitor{
		log:       log,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		targets:   targets,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Sweep purges every target once. A failing target is logged and the rest
// still run. It returns the number of deleted rows per target.
func (j *Janitor) Sweep(ctx context.Context) map[string]int64 {
	cutoff := j.now().Add(-j.retention)
	removed := make(map[string]int64, len(j.targets))
	for _, t := range j.targets {
		n, err := t.Purger.Purge(ctx, cutoff)
		if err != nil {
			j.log.Error("failed to purge",
				zap.String("target", t.Name),
				zap.Error(err))
			continue
		}
		removed[t.Name] = n
		if n > 0 {
			j.log.Info("purged stale rows",
				zap.String("target", t.Name),
				zap.Int64("count", n),
				zap.Time("before", cutoff))
		}
	}
	return removed
}

// Start runs Sweep every interval until Stop. It does nothing when the
// interval is not positive.
func (j *Janitor) Start() {
	if j.interval <= 0 {
		j.log.Info("janitor disabled")
		return
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), j.interval)
				j.Sweep(ctx)
				cancel()
			}
		}
	}()
}

func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	j.wg.Wait()
}
