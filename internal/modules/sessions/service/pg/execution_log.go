package pg

import (
	"context"
	"fmt"
	"time"

	"forwardtest/internal/models"

	"github.com/bytedance/sonic"
)

// Execution log: append-only, INSERT and SELECT are the only statements that
// ever touch the table.

func (s *Store) AppendLog(ctx context.Context, e *models.ExecutionLogEntry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Sessions.AppendLog: %w", err)
		}
	}()

	signal, err := sonic.Marshal(e.Signal)
	if err != nil {
		return err
	}

	return s.tm.Conn().QueryRow(ctx, `
		INSERT INTO trading_logs
			(session_id, ts, signal, idempotency_key, order_id, units, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.SessionID, e.Timestamp.UTC(), signal, e.IdempotencyKey,
		e.OrderID, e.Units, e.Status, e.FailureReason,
	).Scan(&e.ID)
}

func (s *Store) RecentLog(ctx context.Context, sessionID string, limit int) (out []*models.ExecutionLogEntry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Sessions.RecentLog: %w", err)
		}
	}()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.tm.Conn().Query(ctx, `
		SELECT id, session_id, ts, signal, idempotency_key,
		       COALESCE(order_id, ''), units, status, COALESCE(failure_reason, '')
		FROM trading_logs
		WHERE session_id = $1
		ORDER BY ts DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      models.ExecutionLogEntry
			signal []byte
		)
		if scanErr := rows.Scan(
			&e.ID, &e.SessionID, &e.Timestamp, &signal, &e.IdempotencyKey,
			&e.OrderID, &e.Units, &e.Status, &e.FailureReason,
		); scanErr != nil {
			return nil, scanErr
		}
		if umErr := sonic.Unmarshal(signal, &e.Signal); umErr != nil {
			return nil, umErr
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) HasExecuted(ctx context.Context, sessionID, key string, since time.Time) (found bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Sessions.HasExecuted: %w", err)
		}
	}()

	err = s.tm.Conn().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trading_logs
			WHERE session_id = $1 AND idempotency_key = $2
			  AND status = 'EXECUTED' AND ts >= $3
		)`, sessionID, key, since.UTC()).Scan(&found)
	return found, err
}
