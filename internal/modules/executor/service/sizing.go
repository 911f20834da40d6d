package service

import (
	"forwardtest/internal/models"

	"github.com/shopspring/decimal"
)

// ComputeUnits sizes a position so the stop-loss risks RiskPerTrade percent
// of the balance: units = balance * risk% / (stopPips * pipValue), clamped to
// [1, MaxPositionSize]. Returns 0 when the size rounds below one unit.
func ComputeUnits(balance float64, risk models.RiskParams, pipValue float64) int64 {
	if balance <= 0 || risk.RiskPerTrade <= 0 || risk.StopLossPips <= 0 || pipValue <= 0 {
		return 0
	}

	riskAmount := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(risk.RiskPerTrade)).
		Div(decimal.NewFromInt(100))
	perUnit := decimal.NewFromFloat(risk.StopLossPips).
		Mul(decimal.NewFromFloat(pipValue))

	units := riskAmount.Div(perUnit).IntPart()
	if units < 1 {
		return 0
	}
	if risk.MaxPositionSize > 0 && units > risk.MaxPositionSize {
		units = risk.MaxPositionSize
	}
	return units
}

// BracketPrices derives stop-loss / take-profit levels from the entry price.
// Zero pips means no leg.
func BracketPrices(entry float64, dir models.Direction, risk models.RiskParams, pipValue float64) (sl, tp float64) {
	slDist := risk.StopLossPips * pipValue
	tpDist := risk.TakeProfitPips * pipValue

	if dir == models.DirectionBuy {
		if slDist > 0 {
			sl = entry - slDist
		}
		if tpDist > 0 {
			tp = entry + tpDist
		}
		return sl, tp
	}

	if slDist > 0 {
		sl = entry + slDist
	}
	if tpDist > 0 {
		tp = entry - tpDist
	}
	return sl, tp
}
