package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"forwardtest/internal/models"
	"forwardtest/internal/modules/config"
	healthsvc "forwardtest/internal/modules/health/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
	idleRecheck  = 10 * time.Second
	watchRefresh = 5 * time.Minute
	msgTypePrice = "PRICE"
)

// Stream keeps one pricing connection open for the instruments of all active
// sessions and feeds the quote cache. It reconnects forever; the evaluation
// loop works off candles alone when the stream is down.
type Stream struct {
	cfg    *config.Config
	store  sessionssvc.Store
	quotes *Quotes
	health *healthsvc.State
}

func NewStream(cfg *config.Config, store sessionssvc.Store, quotes *Quotes, health *healthsvc.State) *Stream {
	return &Stream{
		cfg:    cfg,
		store:  store,
		quotes: quotes,
		health: health,
	}
}

type priceMsg struct {
	Type       string `json:"type"`
	Instrument string `json:"instrument"`
	Time       string `json:"time"`
	Bids       []struct {
		Price string `json:"price"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
}

func (s *Stream) Run(ctx context.Context) {
	backoff := reconnectMin
	for ctx.Err() == nil {
		account, instruments, err := s.watchlist(ctx)
		if err != nil {
			logger.Error("stream watchlist: %v", err)
		}
		if len(instruments) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleRecheck):
			}
			continue
		}

		started := time.Now()
		if err := s.connectAndRead(ctx, account, instruments); err != nil && ctx.Err() == nil {
			logger.Error("price stream: %v", err)
		}
		s.health.SetStreamConnected(false)

		if time.Since(started) > time.Minute {
			backoff = reconnectMin
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context, account models.AccountRef, instruments []string) error {
	url := fmt.Sprintf("%s/v3/accounts/%s/pricing/stream?instruments=%s",
		s.cfg.Broker.StreamURL, account.AccountID, strings.Join(instruments, ","))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Broker.Token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.health.SetStreamConnected(true)
	logger.Info("price stream connected: %d instruments", len(instruments))

	// Recycle the connection periodically so watchlist changes get picked up.
	readCtx, cancel := context.WithTimeout(ctx, watchRefresh)
	defer cancel()
	go func() {
		<-readCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if readCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var msg priceMsg
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			logger.Error("stream decode: %v", err)
			continue
		}
		if msg.Type != msgTypePrice || len(msg.Bids) == 0 || len(msg.Asks) == 0 {
			continue
		}

		bid, err1 := strconv.ParseFloat(msg.Bids[0].Price, 64)
		ask, err2 := strconv.ParseFloat(msg.Asks[0].Price, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		s.quotes.Set(msg.Instrument, Quote{
			Bid:  bid,
			Ask:  ask,
			Time: parseStreamTime(msg.Time),
		})
	}
}

// watchlist collects the distinct instruments of all active sessions. The
// first session's account carries the stream credentials.
func (s *Stream) watchlist(ctx context.Context) (models.AccountRef, []string, error) {
	active, err := s.store.List(ctx, sessionssvc.Filter{ActiveOnly: true})
	if err != nil || len(active) == 0 {
		return models.AccountRef{}, nil, err
	}

	seen := make(map[string]struct{})
	var instruments []string
	for _, sess := range active {
		if _, ok := seen[sess.Instrument]; ok {
			continue
		}
		seen[sess.Instrument] = struct{}{}
		instruments = append(instruments, sess.Instrument)
	}
	sort.Strings(instruments)
	return active[0].Account, instruments, nil
}

func parseStreamTime(raw string) time.Time {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
