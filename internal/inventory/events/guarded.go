package events

import (
	"context"
	"log/slog"

	"stash/pkg/platform/circuit"
)

// Guarded sends events to a primary sink and, once the primary has failed
// often enough to open the breaker, to a fallback sink as well so the
// event is still recorded somewhere.
type Guarded struct {
	primary  Publisher
	fallback Publisher
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewGuarded(primary, fallback Publisher, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (g *Guarded) Publish(ctx context.Context, event Event) error {
	err := g.primary.Publish(ctx, event)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "event sink recovered", "sink", g.breaker.Name())
		}
		return nil
	}

	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "event sink circuit opened",
			"sink", g.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return err
	}
	return g.fallback.Publish(ctx, event)
}
