package models

import "time"

type DiagnosisCode string

const (
	DiagNoActiveSession DiagnosisCode = "NO_ACTIVE_SESSION"
	DiagActiveNoLogs    DiagnosisCode = "SESSION_ACTIVE_NO_LOGS"
	DiagActiveCoherent  DiagnosisCode = "SESSION_ACTIVE_WITH_LOGS_CONSISTENT"
	DiagBrokerMismatch  DiagnosisCode = "SESSION_ACTIVE_BROKER_MISMATCH"
)

// Verdict is diagnostic output only; producing one never mutates session or
// broker state.
type Verdict struct {
	Code              DiagnosisCode `json:"code"`
	PrimaryIssue      string        `json:"primary_issue"`
	Description       string        `json:"description"`
	RecommendedAction string        `json:"recommended_action"`
	SessionsChecked   int           `json:"sessions_checked"`
	GeneratedAt       time.Time     `json:"generated_at"`
}
