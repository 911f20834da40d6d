package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"forwardtest/internal/models"
)

const (
	emaShortPeriod = 12
	emaLongPeriod  = 26
)

// EMACross is the builtin fallback engine: classic 12/26 crossover with
// confidence from EMA separation.
type EMACross struct{}

func NewEMACross() *EMACross { return &EMACross{} }

func (e *EMACross) Name() string { return "ema_cross" }

func (e *EMACross) Evaluate(_ context.Context, series models.Series, reverse bool) (models.Signal, error) {
	closes := series.Closes()
	if len(closes) < emaLongPeriod+1 {
		return models.Signal{}, fmt.Errorf("ema_cross: need at least %d bars, got %d", emaLongPeriod+1, len(closes))
	}

	emaShort := ema(closes, emaShortPeriod)
	emaLong := ema(closes, emaLongPeriod)

	last := len(closes) - 1
	price := closes[last]

	sig := models.Signal{
		Price:     price,
		Timestamp: time.Now().UTC(),
	}

	separation := math.Abs(emaShort[last]-emaLong[last]) / price
	base := math.Min(separation*10000, 100)

	switch {
	case emaShort[last-1] <= emaLong[last-1] && emaShort[last] > emaLong[last]:
		sig.HasEntry = true
		sig.Direction = models.DirectionBuy
		sig.Confidence = math.Min(base+20, 95) / 100
		sig.Reason = "bullish ema crossover"
	case emaShort[last-1] >= emaLong[last-1] && emaShort[last] < emaLong[last]:
		sig.HasEntry = true
		sig.Direction = models.DirectionSell
		sig.Confidence = math.Min(base+20, 95) / 100
		sig.Reason = "bearish ema crossover"
	}

	if sig.HasEntry && reverse {
		sig.Direction = sig.Direction.Opposite()
		sig.Reason += " (reversed)"
	}

	return sig, nil
}

func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
