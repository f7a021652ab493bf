// Package sweeper reclaims capacity held by lapsed reservations.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 5 * time.Second

// Engine is the part of the allocation engine the sweeper drives.
type Engine interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	Now() time.Time
}

// Sweeper periodically expires due reservations. A sweep runs immediately on
// Start and then on every tick; failures are logged and the loop continues.
type Sweeper struct {
	engine   Engine
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(engine Engine, opts ...Option) *Sweeper {
	s := &Sweeper{
		engine:   engine,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start launches the background loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	s.done = done

	go func() {
		defer close(done)
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce performs a single sweep at the engine's current time and returns
// how many reservations were reclaimed.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	now := s.engine.Now()
	n, err := s.engine.SweepExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "expiry sweep failed",
			"error", err,
			"reclaimed", n,
		)
		return n
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expiry sweep reclaimed reservations", "reclaimed", n)
	}
	return n
}
