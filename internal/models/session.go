package models

import (
	"fmt"
	"time"
)

type Environment string

const (
	EnvPractice Environment = "practice"
	EnvLive     Environment = "live"
)

// AccountRef points at a broker account in a specific environment.
type AccountRef struct {
	AccountID   string      `json:"account_id"`
	Environment Environment `json:"environment"`
}

func (a AccountRef) String() string {
	return fmt.Sprintf("%s@%s", a.AccountID, a.Environment)
}

type RiskParams struct {
	RiskPerTrade    float64 `json:"risk_per_trade"` // percent of balance, 2.0 => 2%
	StopLossPips    float64 `json:"stop_loss_pips"`
	TakeProfitPips  float64 `json:"take_profit_pips"`
	MaxPositionSize int64   `json:"max_position_size"`
	ReverseSignals  bool    `json:"reverse_signals"`
}

// Session is one armed (user, strategy, account) combination under forward
// testing. At most one active session per Tuple at any instant.
type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	StrategyID string     `json:"strategy_id"`
	Account    AccountRef `json:"account"`

	Instrument string     `json:"instrument"`
	Timeframe  string     `json:"timeframe"`
	Risk       RiskParams `json:"risk"`

	IsActive   bool   `json:"is_active"`
	StopReason string `json:"stop_reason,omitempty"`

	LastExecutionAt *time.Time `json:"last_execution_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Tuple is the uniqueness key for the active-session invariant.
func (s *Session) Tuple() string {
	return s.UserID + "::" + s.StrategyID + "::" + s.Account.String()
}
