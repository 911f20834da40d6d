package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"forwardtest/internal/models"

	"github.com/bytedance/sonic"
)

// RunnerEngine evaluates a user strategy through the external strategy-runner
// service. The runner owns the strategy code; we send the series and take the
// last element of each aligned result array.
type RunnerEngine struct {
	url        string
	strategyID string
	http       *http.Client
}

func NewRunnerEngine(url, strategyID string) *RunnerEngine {
	return &RunnerEngine{
		url:        url,
		strategyID: strategyID,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *RunnerEngine) Name() string { return "runner:" + r.strategyID }

type runnerRequest struct {
	StrategyID string    `json:"strategy_id"`
	Open       []float64 `json:"open"`
	High       []float64 `json:"high"`
	Low        []float64 `json:"low"`
	Close      []float64 `json:"close"`
	Reverse    bool      `json:"reverse_signals"`
}

type runnerResponse struct {
	Entry      []bool    `json:"entry"`
	Direction  []string  `json:"direction"`
	Confidence []float64 `json:"confidence"`
	Error      string    `json:"error"`
}

func (r *RunnerEngine) Evaluate(ctx context.Context, series models.Series, reverse bool) (models.Signal, error) {
	req := runnerRequest{
		StrategyID: r.strategyID,
		Open:       make([]float64, len(series)),
		High:       make([]float64, len(series)),
		Low:        make([]float64, len(series)),
		Close:      make([]float64, len(series)),
		Reverse:    reverse,
	}
	for i, c := range series {
		req.Open[i], req.High[i], req.Low[i], req.Close[i] = c.Open, c.High, c.Low, c.Close
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return models.Signal{}, fmt.Errorf("runner: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/evaluate", bytes.NewReader(payload))
	if err != nil {
		return models.Signal{}, fmt.Errorf("runner: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return models.Signal{}, fmt.Errorf("runner: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Signal{}, fmt.Errorf("runner: read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return models.Signal{}, fmt.Errorf("runner: http %d: %s", resp.StatusCode, string(data))
	}

	var out runnerResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return models.Signal{}, fmt.Errorf("runner: decode: %w", err)
	}
	if out.Error != "" {
		return models.Signal{}, fmt.Errorf("runner: strategy error: %s", out.Error)
	}
	if len(out.Entry) == 0 || len(out.Entry) != len(out.Direction) {
		return models.Signal{}, fmt.Errorf("runner: misaligned result arrays (entry=%d direction=%d)",
			len(out.Entry), len(out.Direction))
	}

	// only the last element matters for live evaluation
	last := len(out.Entry) - 1
	sig := models.Signal{
		Price:     series.Last().Close,
		Timestamp: time.Now().UTC(),
	}
	if !out.Entry[last] {
		return sig, nil
	}

	switch out.Direction[last] {
	case string(models.DirectionBuy):
		sig.Direction = models.DirectionBuy
	case string(models.DirectionSell):
		sig.Direction = models.DirectionSell
	default:
		return models.Signal{}, fmt.Errorf("runner: unknown direction %q", out.Direction[last])
	}
	sig.HasEntry = true
	sig.Reason = "runner entry"
	if len(out.Confidence) == len(out.Entry) {
		sig.Confidence = out.Confidence[last]
	}

	return sig, nil
}
