package service

import (
	"context"
	"fmt"
	"time"

	"forwardtest/internal/helper"
	"forwardtest/internal/models"
	"forwardtest/internal/modules/config"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"
)

const logProbeLimit = 100

// AccountSource is the slice of the broker client diagnostics needs.
type AccountSource interface {
	GetAccount(ctx context.Context, account models.AccountRef) (models.AccountSnapshot, error)
}

// Service answers "why is my dashboard showing trades but my account is
// flat" (and its inverse). Strictly read-only: it inspects sessions, the
// execution log and broker positions, and never mutates any of them.
type Service struct {
	store  sessionssvc.Store
	broker AccountSource
	cfg    *config.Config
}

func New(cfg *config.Config, store sessionssvc.Store, broker AccountSource) *Service {
	return &Service{
		store:  store,
		broker: broker,
		cfg:    cfg,
	}
}

// Run inspects all of the user's sessions and returns one verdict, worst
// finding first: broker mismatch beats a dead loop beats all-coherent.
func (s *Service) Run(ctx context.Context, userID string) (*models.Verdict, error) {
	sessions, err := s.store.List(ctx, sessionssvc.Filter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("diagnostics: list sessions: %w", err)
	}

	v := &models.Verdict{
		GeneratedAt: time.Now().UTC(),
	}

	var active []*models.Session
	for _, sess := range sessions {
		if sess.IsActive {
			active = append(active, sess)
		}
	}
	v.SessionsChecked = len(active)

	if len(active) == 0 {
		v.Code = models.DiagNoActiveSession
		v.PrimaryIssue = "no active trading session"
		v.Description = fmt.Sprintf("user has %d sessions on record, none active; nothing is being evaluated or traded", len(sessions))
		v.RecommendedAction = "arm a session for the strategy and account you expect to be trading"
		return v, nil
	}

	var (
		stale        *models.Session
		mismatch     *models.Session
		mismatchDesc string
	)
	for _, sess := range active {
		finding, err := s.inspect(ctx, sess)
		if err != nil {
			return nil, err
		}
		switch finding.code {
		case models.DiagBrokerMismatch:
			if mismatch == nil {
				mismatch = sess
				mismatchDesc = finding.detail
			}
		case models.DiagActiveNoLogs:
			if stale == nil {
				stale = sess
			}
		}
	}

	switch {
	case mismatch != nil:
		v.Code = models.DiagBrokerMismatch
		v.PrimaryIssue = "broker state disagrees with the execution log"
		v.Description = fmt.Sprintf("session %s (%s): %s", mismatch.ID, mismatch.Instrument, mismatchDesc)
		v.RecommendedAction = "reconcile manually: check for trades placed outside the orchestrator, then review the session's execution log"
	case stale != nil:
		v.Code = models.DiagActiveNoLogs
		v.PrimaryIssue = "active session produces no execution log entries"
		v.Description = fmt.Sprintf("session %s is armed but has no log entries in the last %d cadence windows; no scheduler is evaluating it", stale.ID, s.cfg.DiagWindows)
		v.RecommendedAction = "check that the orchestrator and sweeper processes are running, then disarm and re-arm the session"
	default:
		v.Code = models.DiagActiveCoherent
		v.PrimaryIssue = ""
		v.Description = fmt.Sprintf("%d active sessions evaluated recently and broker positions match the log", len(active))
		v.RecommendedAction = "none"
	}
	return v, nil
}

type finding struct {
	code   models.DiagnosisCode
	detail string
}

func (s *Service) inspect(ctx context.Context, sess *models.Session) (finding, error) {
	entries, err := s.store.RecentLog(ctx, sess.ID, logProbeLimit)
	if err != nil {
		return finding{}, fmt.Errorf("diagnostics: recent log for %s: %w", sess.ID, err)
	}

	cadence := helper.Cadence(sess.Timeframe, s.cfg.DefaultCadence)
	cutoff := time.Now().UTC().Add(-time.Duration(s.cfg.DiagWindows) * cadence)

	var recent, executed bool
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			recent = true
		}
		if e.Status == models.ExecExecuted {
			executed = true
		}
	}
	if !recent {
		return finding{code: models.DiagActiveNoLogs}, nil
	}

	snapshot, err := s.broker.GetAccount(ctx, sess.Account)
	if err != nil {
		// Cross-check is best effort; an unreachable broker is not a verdict.
		logger.Error("diagnostics: account snapshot for %s: %v", sess.Account, err)
		return finding{code: models.DiagActiveCoherent}, nil
	}

	var open *models.OpenPosition
	for i := range snapshot.OpenPositions {
		if snapshot.OpenPositions[i].Instrument == sess.Instrument {
			open = &snapshot.OpenPositions[i]
			break
		}
	}

	if open != nil && !executed {
		return finding{
			code:   models.DiagBrokerMismatch,
			detail: fmt.Sprintf("broker holds %d units of %s but the log records no executed order", open.Units, open.Instrument),
		}, nil
	}
	return finding{code: models.DiagActiveCoherent}, nil
}
