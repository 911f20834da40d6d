package service

import (
	"context"
	"errors"
	"time"

	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"
)

// Sweeper is the background execution context: a periodic pass over all
// active sessions that runs a cycle for any session whose cadence window has
// elapsed. It covers sessions whose foreground loop died with the process;
// when both contexts evaluate the same slot the idempotency key makes the
// overlap harmless.
type Sweeper struct {
	loop     *Loop
	store    sessionssvc.Store
	interval time.Duration
}

func NewSweeper(loop *Loop, store sessionssvc.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		loop:     loop,
		store:    store,
		interval: interval,
	}
}

// RunOnce sweeps every active session that is due.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	active, err := s.store.List(ctx, sessionssvc.Filter{ActiveOnly: true})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, sess := range active {
		cadence := s.loop.CadenceFor(sess)
		if sess.LastExecutionAt != nil && now.Sub(*sess.LastExecutionAt) < cadence {
			continue
		}
		if err := s.loop.Cycle(ctx, sess.ID); err != nil && !errors.Is(err, ErrInactive) {
			logger.Error("sweep cycle for session %s: %v", sess.ID, err)
		}
	}
	return nil
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			logger.Error("sweep: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
