package models

import "time"

type ExecStatus string

const (
	ExecExecuted      ExecStatus = "EXECUTED"
	ExecSkipped       ExecStatus = "SKIPPED"
	ExecFailed        ExecStatus = "FAILED"
	ExecFailedPartial ExecStatus = "FAILED_PARTIAL" // entry filled, bracket leg rejected
)

// ExecutionLogEntry is the append-only audit record for one evaluation cycle.
// Both execution contexts write to the same log; it is the canonical evidence
// for "did a trade happen".
type ExecutionLogEntry struct {
	ID             int64      `json:"id,omitempty"`
	SessionID      string     `json:"session_id"`
	Timestamp      time.Time  `json:"timestamp"`
	Signal         Signal     `json:"signal"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	OrderID        string     `json:"order_id,omitempty"`
	Units          int64      `json:"units,omitempty"`
	Status         ExecStatus `json:"status"`
	FailureReason  string     `json:"failure_reason,omitempty"`
}
