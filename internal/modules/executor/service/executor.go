package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"forwardtest/internal/helper"
	"forwardtest/internal/models"
	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/internal/notify"
	"forwardtest/pkg/logger"
)

// Broker is the slice of the broker client the executor needs.
type Broker interface {
	GetAccount(ctx context.Context, account models.AccountRef) (models.AccountSnapshot, error)
	SubmitOrder(ctx context.Context, account models.AccountRef, req models.OrderRequest) (models.OrderResult, error)
}

// Executor turns an entry signal into at most one broker order per cadence
// slot. It owns sizing, idempotency, retries and the failure taxonomy; the
// caller appends whatever entry comes back to the execution log.
type Executor struct {
	broker Broker
	store  sessionssvc.Store
	notify notify.Notifier

	minConfidence float64
	maxRetries    int
	retryBase     time.Duration
}

func New(cfg *config.Config, broker Broker, store sessionssvc.Store, n notify.Notifier) *Executor {
	return &Executor{
		broker:        broker,
		store:         store,
		notify:        n,
		minConfidence: cfg.MinConfidence,
		maxRetries:    cfg.MaxRetries,
		retryBase:     cfg.RetryBaseDelay,
	}
}

// Execute runs one signal through the pipeline and returns the log entry
// describing the outcome. EXECUTED and FAILED_PARTIAL entries are appended
// to the log here, before returning, to keep the duplicate-check window as
// small as possible; for every other status entry.ID stays zero and the
// caller appends it.
func (e *Executor) Execute(ctx context.Context, sess *models.Session, sig models.Signal, cadence time.Duration) *models.ExecutionLogEntry {
	entry := &models.ExecutionLogEntry{
		SessionID: sess.ID,
		Timestamp: sig.Timestamp,
		Signal:    sig,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if !sig.HasEntry {
		entry.Status = models.ExecSkipped
		entry.FailureReason = "no entry signal"
		return entry
	}
	if sig.Confidence < e.minConfidence {
		entry.Status = models.ExecSkipped
		entry.FailureReason = fmt.Sprintf("confidence %.2f below threshold %.2f", sig.Confidence, e.minConfidence)
		return entry
	}

	key := IdempotencyKey(sess.ID, sig.Direction, entry.Timestamp, cadence)
	entry.IdempotencyKey = key

	slot := helper.SlotStart(entry.Timestamp, cadence)
	done, err := e.store.HasExecuted(ctx, sess.ID, key, slot)
	if err != nil {
		entry.Status = models.ExecFailed
		entry.FailureReason = fmt.Sprintf("idempotency check: %v", err)
		return entry
	}
	if done {
		entry.Status = models.ExecSkipped
		entry.FailureReason = "duplicate suppressed"
		return entry
	}

	account, err := e.broker.GetAccount(ctx, sess.Account)
	if err != nil {
		e.classifyFailure(ctx, sess, entry, err)
		return entry
	}

	pip := helper.PipValue(sess.Instrument)
	units := ComputeUnits(account.Balance, sess.Risk, pip)
	if units == 0 {
		entry.Status = models.ExecSkipped
		entry.FailureReason = "position size below one unit"
		return entry
	}
	entry.Units = units

	sl, tp := BracketPrices(sig.Price, sig.Direction, sess.Risk, pip)
	req := models.OrderRequest{
		Instrument:      sess.Instrument,
		Units:           units,
		Side:            sig.Direction,
		StopLossPrice:   sl,
		TakeProfitPrice: tp,
	}

	result, err := e.submitWithRetry(ctx, sess.Account, req)
	if err != nil {
		if errors.Is(err, brokersvc.ErrBracket) {
			entry.Status = models.ExecFailedPartial
			entry.OrderID = result.OrderID
			entry.FailureReason = err.Error()
			e.append(ctx, entry)
			e.notify.Sendf("session %s: order %s filled but bracket attach failed: %v", sess.ID, result.OrderID, err)
			return entry
		}
		e.classifyFailure(ctx, sess, entry, err)
		return entry
	}

	entry.Status = models.ExecExecuted
	entry.OrderID = result.OrderID
	e.append(ctx, entry)
	e.notify.Sendf("session %s: %s %d %s @ %.5f (order %s)",
		sess.ID, sig.Direction, units, sess.Instrument, result.FillPrice, result.OrderID)
	return entry
}

// submitWithRetry retries transient broker failures with jittered
// exponential backoff; everything else returns on first attempt.
func (e *Executor) submitWithRetry(ctx context.Context, account models.AccountRef, req models.OrderRequest) (models.OrderResult, error) {
	var (
		result models.OrderResult
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, err = e.broker.SubmitOrder(ctx, account, req)
		if err == nil || !brokersvc.IsTransient(err) || attempt >= e.maxRetries {
			return result, err
		}

		delay := e.retryBase << attempt
		delay += time.Duration(rand.Int63n(int64(e.retryBase) + 1))
		logger.Error("order submit attempt %d failed, retrying in %s: %v", attempt+1, delay, err)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (e *Executor) classifyFailure(ctx context.Context, sess *models.Session, entry *models.ExecutionLogEntry, err error) {
	switch {
	case errors.Is(err, brokersvc.ErrAuth):
		entry.Status = models.ExecFailed
		entry.FailureReason = fmt.Sprintf("broker credentials rejected: %v", err)
		reason := "AUTH_INVALID: broker rejected credentials"
		if derr := e.store.Deactivate(ctx, sess.ID, reason); derr != nil {
			logger.Error("deactivate session %s after auth failure: %v", sess.ID, derr)
		}
		e.notify.Sendf("session %s disarmed: %s", sess.ID, reason)
	case errors.Is(err, brokersvc.ErrMarketClosed):
		entry.Status = models.ExecSkipped
		entry.FailureReason = "market closed"
	case errors.Is(err, brokersvc.ErrInsufficientMargin):
		entry.Status = models.ExecFailed
		entry.FailureReason = fmt.Sprintf("insufficient margin: %v", err)
	default:
		entry.Status = models.ExecFailed
		entry.FailureReason = err.Error()
	}
}

func (e *Executor) append(ctx context.Context, entry *models.ExecutionLogEntry) {
	if err := e.store.AppendLog(ctx, entry); err != nil {
		logger.Error("append execution log for session %s: %v", entry.SessionID, err)
	}
}
