// Package scheduler periodically kicks off scheduled campaigns whose
// send time has passed.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher starts every due campaign and reports how many it started.
type Dispatcher interface {
	StartDue(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	interval   time.Duration
	dispatcher Dispatcher
	log        *slog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, d Dispatcher, log *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if d == nil {
		return nil, errors.New("dispatcher must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		interval:   interval,
		dispatcher: d,
		log:        log,
		done:       make(chan struct{}),
	}, nil
}

// Start launches the tick loop; one immediate tick, then one per
// interval. Returns false when already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("campaign scheduler started", "interval", s.interval.String())

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				s.log.Info("campaign scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for it to exit. Returns false when
// not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.log.Info("campaign scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	started, err := s.dispatcher.StartDue(ctx, start)
	if err != nil {
		s.log.Error("scheduler tick failed", "err", err)
		return
	}
	if started > 0 {
		s.log.Info("scheduled campaigns started", "count", started, "duration_ms", time.Since(start).Milliseconds())
	}
}
