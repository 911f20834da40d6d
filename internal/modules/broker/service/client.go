package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"forwardtest/internal/models"
	"forwardtest/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Client talks to the broker REST API. One instance serves every account;
// methods take the AccountRef so both execution contexts share the limiter.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	limiter *rate.Limiter
	token   string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		// broker caps us at ~120 req/min per token
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		token:   cfg.Broker.Token,
	}
}

func (c *Client) baseURL(env models.Environment) string {
	return c.cfg.BrokerBaseURL(string(env))
}

// doJSON performs a single request and decodes into out. Transport failures
// map to ErrNetwork, HTTP/broker failures go through classifyStatus.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Datetime-Format", "UNIX")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode/100 != 2 {
		var e errorBody
		_ = sonic.Unmarshal(data, &e)
		return classifyStatus(resp.StatusCode, e.ErrorCode, e.ErrorMessage)
	}

	if out != nil {
		if err := sonic.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}
