package service

import (
	"forwardtest/internal/modules/config"
)

// Factory resolves the engine for a strategy. With a runner configured every
// strategy goes through it; otherwise the builtin crossover engine serves as
// the single local strategy.
type Factory struct {
	cfg *config.Config
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) ForStrategy(strategyID string) Engine {
	if f.cfg.Evaluator.RunnerURL != "" {
		return NewRunnerEngine(f.cfg.Evaluator.RunnerURL, strategyID)
	}
	return NewEMACross()
}
