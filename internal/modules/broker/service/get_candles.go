package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"forwardtest/internal/helper"
	"forwardtest/internal/models"
)

// Granularity maps UI timeframes to the broker's candle granularity codes.
func Granularity(timeframe string) string {
	switch helper.NormTF(timeframe) {
	case "1m":
		return "M1"
	case "5m":
		return "M5"
	case "15m":
		return "M15"
	case "30m":
		return "M30"
	case "1h":
		return "H1"
	case "4h":
		return "H4"
	case "1d":
		return "D"
	default:
		return "M5"
	}
}

// GetCandles fetches the most recent count mid-price candles. Fails fast:
// the underlying client times out rather than hanging, and an empty candle
// set comes back as ErrNoData, distinct from ErrAuth.
func (c *Client) GetCandles(ctx context.Context, account models.AccountRef, instrument, timeframe string, count int) (models.Series, error) {
	if count <= 0 {
		count = 200
	}

	u := fmt.Sprintf("%s/v3/instruments/%s/candles?count=%d&granularity=%s&price=M",
		c.baseURL(account.Environment), url.PathEscape(instrument), count, Granularity(timeframe))

	var payload candlesResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &payload); err != nil {
		return nil, fmt.Errorf("get candles %s: %w", instrument, err)
	}

	if len(payload.Candles) == 0 {
		return nil, fmt.Errorf("get candles %s: %w", instrument, ErrNoData)
	}

	series := make(models.Series, 0, len(payload.Candles))
	for _, raw := range payload.Candles {
		o, err1 := strconv.ParseFloat(raw.Mid.O, 64)
		h, err2 := strconv.ParseFloat(raw.Mid.H, 64)
		l, err3 := strconv.ParseFloat(raw.Mid.L, 64)
		cl, err4 := strconv.ParseFloat(raw.Mid.C, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		series = append(series, models.Candle{
			Time:     parseCandleTime(raw.Time),
			Open:     o,
			High:     h,
			Low:      l,
			Close:    cl,
			Volume:   raw.Volume,
			Complete: raw.Complete,
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("get candles %s: %w", instrument, ErrNoData)
	}

	return series, nil
}

// parseCandleTime handles both unix-seconds ("1717171717.000000000") and
// RFC3339 spellings depending on the Accept-Datetime-Format the broker saw.
func parseCandleTime(raw string) time.Time {
	if sec, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Unix(int64(sec), 0).UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
