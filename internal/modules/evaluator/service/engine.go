package service

import (
	"context"

	"forwardtest/internal/models"
)

// Engine evaluates a strategy against a market series. Implementations are
// swappable per strategy; user-supplied code runs behind the runner client,
// isolation being the runner's concern, not ours. Whatever the implementation,
// errors stop at the orchestrator's call boundary.
type Engine interface {
	Evaluate(ctx context.Context, series models.Series, reverse bool) (models.Signal, error)
	Name() string
}
