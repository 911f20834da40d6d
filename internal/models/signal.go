package models

import "time"

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite flips a direction; used when a session runs with reversed signals.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// Signal is the outcome of evaluating a strategy against one market series.
// It is ephemeral: never stored on its own, only embedded in a log entry.
type Signal struct {
	HasEntry   bool      `json:"has_entry"`
	Direction  Direction `json:"direction,omitempty"`
	Confidence float64   `json:"confidence"` // 0..1
	Price      float64   `json:"price"`      // price at evaluation
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason,omitempty"`
}
