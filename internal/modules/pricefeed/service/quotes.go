package service

import (
	"sync"
	"time"
)

// quoteTTL bounds how stale a streamed quote may be before callers fall back
// to candle closes.
const quoteTTL = 30 * time.Second

type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// Quotes is the live price cache fed by the stream and read by the
// evaluation loop.
type Quotes struct {
	mu sync.RWMutex
	m  map[string]Quote
}

func NewQuotes() *Quotes {
	return &Quotes{m: make(map[string]Quote)}
}

func (q *Quotes) Set(instrument string, quote Quote) {
	q.mu.Lock()
	q.m[instrument] = quote
	q.mu.Unlock()
}

func (q *Quotes) Get(instrument string) (Quote, bool) {
	q.mu.RLock()
	quote, ok := q.m[instrument]
	q.mu.RUnlock()
	return quote, ok
}

// Mid returns the current mid price, or false when there is no fresh quote.
func (q *Quotes) Mid(instrument string) (float64, bool) {
	quote, ok := q.Get(instrument)
	if !ok || quote.Bid <= 0 || quote.Ask <= 0 {
		return 0, false
	}
	if time.Since(quote.Time) > quoteTTL {
		return 0, false
	}
	return (quote.Bid + quote.Ask) / 2, true
}
