package models

import "time"

type Candle struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Complete bool      `json:"complete"`
}

type Series []Candle

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

func (s Series) Last() Candle {
	if len(s) == 0 {
		return Candle{}
	}
	return s[len(s)-1]
}

// OpenPosition is the broker-side view; Units is signed (short < 0).
type OpenPosition struct {
	Instrument string  `json:"instrument"`
	Units      int64   `json:"units"`
	AvgPrice   float64 `json:"avg_price"`
}

type AccountSnapshot struct {
	Balance       float64        `json:"balance"`
	Currency      string         `json:"currency"`
	UnrealizedPL  float64        `json:"unrealized_pl"`
	OpenPositions []OpenPosition `json:"open_positions"`
	FetchedAt     time.Time      `json:"fetched_at"`
}

// OrderRequest is a market order with optional bracket legs.
type OrderRequest struct {
	Instrument      string
	Units           int64
	Side            Direction
	StopLossPrice   float64
	TakeProfitPrice float64
}

type OrderResult struct {
	OrderID   string
	TradeID   string
	FillPrice float64
}
