package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"forwardtest/internal/models"
)

// GetAccount returns balance plus the open-position set. Two calls; the
// snapshot carries its own fetch time so diagnostics can judge staleness.
func (c *Client) GetAccount(ctx context.Context, account models.AccountRef) (models.AccountSnapshot, error) {
	base := c.baseURL(account.Environment)

	var acc accountResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/v3/accounts/%s", base, account.AccountID), nil, &acc); err != nil {
		return models.AccountSnapshot{}, fmt.Errorf("get account %s: %w", account.AccountID, err)
	}

	var pos positionsResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/v3/accounts/%s/openPositions", base, account.AccountID), nil, &pos); err != nil {
		return models.AccountSnapshot{}, fmt.Errorf("get open positions %s: %w", account.AccountID, err)
	}

	snapshot := models.AccountSnapshot{
		Balance:      parseF(acc.Account.Balance),
		Currency:     acc.Account.Currency,
		UnrealizedPL: parseF(acc.Account.UnrealizedPL),
		FetchedAt:    time.Now().UTC(),
	}

	for _, p := range pos.Positions {
		longUnits := parseI(p.Long.Units)
		shortUnits := parseI(p.Short.Units)
		if longUnits != 0 {
			snapshot.OpenPositions = append(snapshot.OpenPositions, models.OpenPosition{
				Instrument: p.Instrument,
				Units:      longUnits,
				AvgPrice:   parseF(p.Long.AveragePrice),
			})
		}
		if shortUnits != 0 {
			snapshot.OpenPositions = append(snapshot.OpenPositions, models.OpenPosition{
				Instrument: p.Instrument,
				Units:      shortUnits,
				AvgPrice:   parseF(p.Short.AveragePrice),
			})
		}
	}

	return snapshot, nil
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseI(s string) int64 {
	v, _ := strconv.ParseFloat(s, 64)
	return int64(v)
}
