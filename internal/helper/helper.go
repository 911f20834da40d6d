package helper

import (
	"math"
	"strings"
	"time"
)

// NormTF normalizes UI timeframe spellings ("60m" -> "1h", "candle5m" -> "5m").
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1h"
	case "1440m", "1d", "d":
		return "1d"
	default:
		return s
	}
}

// TFDuration maps a normalized timeframe to its wall duration. Zero when unknown.
func TFDuration(tf string) time.Duration {
	switch NormTF(tf) {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}

// Cadence is the evaluation interval for a timeframe, floored at def. Every
// component that buckets time by cadence must use the same value.
func Cadence(tf string, def time.Duration) time.Duration {
	d := TFDuration(tf)
	if d < def {
		return def
	}
	return d
}

// SlotStart floors t to the start of its cadence slot. Both schedulers see the
// same slot for the same nominal time regardless of when their tick fired.
func SlotStart(t time.Time, cadence time.Duration) time.Time {
	if cadence <= 0 {
		return t
	}
	sec := t.Unix()
	step := int64(cadence / time.Second)
	if step <= 0 {
		step = 1
	}
	sec -= sec % step
	return time.Unix(sec, 0).UTC()
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

// PipValue returns the price value of one pip for the given instrument.
// JPY-quoted pairs use two decimal places, everything else four.
func PipValue(instrument string) float64 {
	if strings.HasSuffix(strings.ToUpper(instrument), "JPY") {
		return 0.01
	}
	return 0.0001
}
