package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forwardtest/internal/helper"
	"forwardtest/internal/models"
	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	evalsvc "forwardtest/internal/modules/evaluator/service"
	executorsvc "forwardtest/internal/modules/executor/service"
	healthsvc "forwardtest/internal/modules/health/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// ErrInactive stops a foreground loop: the session it was driving is no
// longer armed.
var ErrInactive = errors.New("orchestrator: session inactive")

// CandleSource is the slice of the broker client the loop needs.
type CandleSource interface {
	GetCandles(ctx context.Context, account models.AccountRef, instrument, timeframe string, count int) (models.Series, error)
}

// Evaluators resolves the opaque engine for a strategy.
type Evaluators interface {
	ForStrategy(strategyID string) evalsvc.Engine
}

// QuoteSource serves fresh streamed mid prices. Optional: a nil source means
// signals keep the candle close they were computed from.
type QuoteSource interface {
	Mid(instrument string) (float64, bool)
}

// Loop runs the evaluation pipeline for one session: fetch candles, evaluate,
// execute, log, touch. The same Cycle serves both execution contexts; the
// idempotency key inside the executor keeps them from double-trading.
type Loop struct {
	candles CandleSource
	engines Evaluators
	exec    *executorsvc.Executor
	store   sessionssvc.Store
	quotes  QuoteSource
	health  *healthsvc.State
	cfg     *config.Config
}

func NewLoop(cfg *config.Config, candles CandleSource, engines Evaluators, exec *executorsvc.Executor, store sessionssvc.Store, quotes QuoteSource, health *healthsvc.State) *Loop {
	return &Loop{
		candles: candles,
		engines: engines,
		exec:    exec,
		store:   store,
		quotes:  quotes,
		health:  health,
		cfg:     cfg,
	}
}

// CadenceFor is the evaluation interval for a session: its timeframe
// duration, floored at the configured default. Both contexts must agree on
// it, the idempotency slot is derived from it.
func (l *Loop) CadenceFor(sess *models.Session) time.Duration {
	return helper.Cadence(sess.Timeframe, l.cfg.DefaultCadence)
}

// Cycle performs one evaluation for the session. Every cycle appends exactly
// one log entry, whatever the outcome. Returns ErrInactive when the session
// is disarmed so callers can stop scheduling it.
func (l *Loop) Cycle(ctx context.Context, sessionID string) error {
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("orchestrator: load session: %w", err)
	}
	if !sess.IsActive {
		return ErrInactive
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.cycle")
	span.SetTag("session_id", sess.ID)
	span.SetTag("instrument", sess.Instrument)
	defer span.Finish()

	now := time.Now().UTC()
	cadence := l.CadenceFor(sess)

	series, err := l.candles.GetCandles(ctx, sess.Account, sess.Instrument, sess.Timeframe, l.cfg.LookbackBars)
	if err != nil {
		l.logFailure(ctx, sess, now, fmt.Sprintf("market data: %v", err))
		if errors.Is(err, brokersvc.ErrAuth) {
			l.disarmOnAuth(ctx, sess)
		}
		l.touch(ctx, sess.ID, now)
		return nil
	}

	engine := l.engines.ForStrategy(sess.StrategyID)
	sig, err := engine.Evaluate(ctx, series, sess.Risk.ReverseSignals)
	if err != nil {
		// Evaluator failures are tolerated: log and wait for the next cycle.
		l.logFailure(ctx, sess, now, fmt.Sprintf("evaluator %s: %v", engine.Name(), err))
		l.touch(ctx, sess.ID, now)
		return nil
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = now
	}
	if sig.HasEntry && l.quotes != nil {
		// Prefer a live quote over the close the engine saw.
		if mid, ok := l.quotes.Mid(sess.Instrument); ok {
			sig.Price = mid
		}
	}

	entry := l.exec.Execute(ctx, sess, sig, cadence)
	if entry.ID == 0 {
		if aerr := l.store.AppendLog(ctx, entry); aerr != nil {
			logger.Error("append log for session %s: %v", sess.ID, aerr)
		}
	}
	span.SetTag("status", string(entry.Status))

	l.touch(ctx, sess.ID, now)
	if l.health != nil {
		l.health.MarkCycle()
	}
	return nil
}

// Run drives the foreground context: immediate first cycle, then one per
// cadence tick, until the context is cancelled or the session is disarmed.
func (l *Loop) Run(ctx context.Context, sessionID string, cadence time.Duration) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		if err := l.Cycle(ctx, sessionID); err != nil {
			if errors.Is(err, ErrInactive) || errors.Is(err, sessionssvc.ErrNotFound) {
				logger.Info("loop for session %s stopped: %v", sessionID, err)
				return
			}
			logger.Error("cycle for session %s: %v", sessionID, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Loop) logFailure(ctx context.Context, sess *models.Session, ts time.Time, reason string) {
	entry := &models.ExecutionLogEntry{
		SessionID:     sess.ID,
		Timestamp:     ts,
		Status:        models.ExecFailed,
		FailureReason: reason,
	}
	if err := l.store.AppendLog(ctx, entry); err != nil {
		logger.Error("append log for session %s: %v", sess.ID, err)
	}
}

func (l *Loop) disarmOnAuth(ctx context.Context, sess *models.Session) {
	reason := "AUTH_INVALID: broker rejected credentials"
	if err := l.store.Deactivate(ctx, sess.ID, reason); err != nil {
		logger.Error("deactivate session %s: %v", sess.ID, err)
	}
}

func (l *Loop) touch(ctx context.Context, id string, ts time.Time) {
	if err := l.store.Touch(ctx, id, ts); err != nil && !errors.Is(err, sessionssvc.ErrNotFound) {
		logger.Error("touch session %s: %v", id, err)
	}
}
