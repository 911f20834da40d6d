package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forwardtest/internal/models"
	sessions "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// Store implements the session store on PostgreSQL. The active-tuple invariant
// is enforced twice: a row lock inside Create's tx and a partial unique index
// (see migrations) as the backstop.
type Store struct {
	tm *db.PgTxManager
}

func New(tm *db.PgTxManager) *Store {
	return &Store{tm: tm}
}

func (s *Store) Create(ctx context.Context, sess *models.Session) (err error) {
	defer func() {
		if err != nil && !errors.Is(err, sessions.ErrConflict) {
			err = fmt.Errorf("Sessions.Create: %w", err)
		}
	}()

	risk, err := sonic.Marshal(sess.Risk)
	if err != nil {
		return err
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	sess.IsActive = true

	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		var existing string
		lockErr := tx.QueryRow(ctxTx, `
			SELECT id FROM trading_sessions
			WHERE user_id = $1 AND strategy_id = $2
			  AND account_id = $3 AND environment = $4
			  AND is_active
			FOR UPDATE`,
			sess.UserID, sess.StrategyID, sess.Account.AccountID, sess.Account.Environment,
		).Scan(&existing)
		switch {
		case lockErr == nil:
			return sessions.ErrConflict
		case !errors.Is(lockErr, pgx.ErrNoRows):
			return lockErr
		}

		_, insErr := tx.Exec(ctxTx, `
			INSERT INTO trading_sessions
				(id, user_id, strategy_id, account_id, environment,
				 instrument, timeframe, risk_params, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)`,
			sess.ID, sess.UserID, sess.StrategyID,
			sess.Account.AccountID, sess.Account.Environment,
			sess.Instrument, sess.Timeframe, risk, sess.CreatedAt,
		)
		return insErr
	})
}

func (s *Store) Get(ctx context.Context, id string) (sess *models.Session, err error) {
	defer func() {
		if err != nil && !errors.Is(err, sessions.ErrNotFound) {
			err = fmt.Errorf("Sessions.Get: %w", err)
		}
	}()

	row := s.tm.Conn().QueryRow(ctx, `
		SELECT id, user_id, strategy_id, account_id, environment,
		       instrument, timeframe, risk_params, is_active,
		       COALESCE(stop_reason, ''), last_execution, created_at
		FROM trading_sessions WHERE id = $1`, id)

	sess, err = scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sessions.ErrNotFound
	}
	return sess, err
}

func (s *Store) List(ctx context.Context, f sessions.Filter) (out []*models.Session, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Sessions.List: %w", err)
		}
	}()

	rows, err := s.tm.Conn().Query(ctx, `
		SELECT id, user_id, strategy_id, account_id, environment,
		       instrument, timeframe, risk_params, is_active,
		       COALESCE(stop_reason, ''), last_execution, created_at
		FROM trading_sessions
		WHERE ($1 = '' OR user_id = $1)
		  AND (NOT $2 OR is_active)
		ORDER BY created_at`, f.UserID, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		sess, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) Deactivate(ctx context.Context, id, reason string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Sessions.Deactivate: %w", err)
		}
	}()

	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctxTx, `
			UPDATE trading_sessions
			SET is_active = FALSE, stop_reason = $2
			WHERE id = $1 AND is_active`, id, reason)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			// already inactive or unknown; keep idempotent, verify existence
			var one int
			if qErr := tx.QueryRow(ctxTx, `SELECT 1 FROM trading_sessions WHERE id = $1`, id).Scan(&one); qErr != nil {
				if errors.Is(qErr, pgx.ErrNoRows) {
					return sessions.ErrNotFound
				}
				return qErr
			}
		}
		return nil
	})
}

func (s *Store) Touch(ctx context.Context, id string, ts time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Sessions.Touch: %w", err)
		}
	}()

	_, err = s.tm.Conn().Exec(ctx, `
		UPDATE trading_sessions SET last_execution = $2 WHERE id = $1`, id, ts.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess    models.Session
		risk    []byte
		lastRun *time.Time
	)
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.StrategyID,
		&sess.Account.AccountID, &sess.Account.Environment,
		&sess.Instrument, &sess.Timeframe, &risk, &sess.IsActive,
		&sess.StopReason, &lastRun, &sess.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := sonic.Unmarshal(risk, &sess.Risk); err != nil {
		return nil, err
	}
	sess.LastExecutionAt = lastRun
	return &sess, nil
}
