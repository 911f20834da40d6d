package service

import (
	"errors"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   error
	}{
		{401, "", ErrAuth},
		{403, "", ErrAuth},
		{429, "", ErrRateLimited},
		{200, "MARKET_HALTED", ErrMarketClosed},
		{400, "MARKET_CLOSED", ErrMarketClosed},
		{400, "INSUFFICIENT_MARGIN", ErrInsufficientMargin},
		{400, "INSUFFICIENT_FUNDS", ErrInsufficientMargin},
		{500, "", ErrNetwork},
		{503, "", ErrNetwork},
	}
	for _, c := range cases {
		err := classifyStatus(c.status, c.code, "msg")
		if !errors.Is(err, c.want) {
			t.Fatalf("status=%d code=%q: got %v, want %v", c.status, c.code, err, c.want)
		}
	}

	if err := classifyStatus(400, "SOMETHING_ELSE", "msg"); err == nil {
		t.Fatalf("unknown 4xx must still error")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(classifyStatus(503, "", "")) {
		t.Fatalf("5xx must be transient")
	}
	if !IsTransient(classifyStatus(429, "", "")) {
		t.Fatalf("429 must be transient")
	}
	if IsTransient(classifyStatus(401, "", "")) {
		t.Fatalf("auth must not be transient")
	}
	if IsTransient(classifyStatus(400, "MARKET_CLOSED", "")) {
		t.Fatalf("market closed must not be transient")
	}
}

func TestGranularity(t *testing.T) {
	cases := map[string]string{
		"1m":  "M1",
		"5m":  "M5",
		"15m": "M15",
		"30m": "M30",
		"1h":  "H1",
		"60m": "H1",
		"4h":  "H4",
		"1d":  "D",
	}
	for tf, want := range cases {
		if got := Granularity(tf); got != want {
			t.Fatalf("Granularity(%q) = %q, want %q", tf, got, want)
		}
	}
}
