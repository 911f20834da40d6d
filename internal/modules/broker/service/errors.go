package service

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy. Callers branch with errors.Is; everything transient is
// retried by the executor, never here.
var (
	ErrAuth               = errors.New("broker: invalid credentials")
	ErrRateLimited        = errors.New("broker: rate limited")
	ErrMarketClosed       = errors.New("broker: market closed")
	ErrInsufficientMargin = errors.New("broker: insufficient margin")
	ErrNetwork            = errors.New("broker: network failure")
	ErrNoData             = errors.New("broker: no data")

	// ErrBracket means the entry order filled but a bracket leg was not
	// attached. The position exists; callers must surface this distinctly.
	ErrBracket = errors.New("broker: bracket leg rejected after fill")
)

func classifyStatus(status int, brokerCode, brokerMsg string) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: http %d %s", ErrAuth, status, brokerMsg)
	case status == 429:
		return fmt.Errorf("%w: http %d", ErrRateLimited, status)
	}

	code := strings.ToUpper(brokerCode)
	switch {
	case strings.Contains(code, "MARKET_HALTED"), strings.Contains(code, "MARKET_CLOSED"):
		return fmt.Errorf("%w: %s", ErrMarketClosed, brokerMsg)
	case strings.Contains(code, "INSUFFICIENT_MARGIN"), strings.Contains(code, "INSUFFICIENT_FUNDS"):
		return fmt.Errorf("%w: %s", ErrInsufficientMargin, brokerMsg)
	}

	if status >= 500 {
		return fmt.Errorf("%w: http %d %s", ErrNetwork, status, brokerMsg)
	}
	return fmt.Errorf("broker error %d: %s %s", status, brokerCode, brokerMsg)
}

// IsTransient reports whether the failure is worth a local retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}
