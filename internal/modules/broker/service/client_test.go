package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"forwardtest/internal/models"
	"forwardtest/internal/modules/config"
)

func testClient(url string) *Client {
	cfg := &config.Config{}
	cfg.Broker.PracticeURL = url
	cfg.Broker.Token = "test-token"
	return NewClient(cfg)
}

var practiceAccount = models.AccountRef{AccountID: "acc-1", Environment: models.EnvPractice}

func TestGetCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header %q", got)
		}
		if r.URL.Path != "/v3/instruments/EUR_USD/candles" {
			t.Errorf("path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("granularity") != "M5" || q.Get("price") != "M" {
			t.Errorf("query %v", q)
		}
		w.Write([]byte(`{
			"instrument": "EUR_USD",
			"candles": [
				{"time": "1717171500.000000000", "volume": 10, "complete": true,
				 "mid": {"o": "1.0850", "h": "1.0860", "l": "1.0845", "c": "1.0855"}},
				{"time": "1717171800.000000000", "volume": 12, "complete": true,
				 "mid": {"o": "1.0855", "h": "1.0870", "l": "1.0850", "c": "1.0865"}}
			]
		}`))
	}))
	defer srv.Close()

	series, err := testClient(srv.URL).GetCandles(context.Background(), practiceAccount, "EUR_USD", "5m", 2)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("got %d candles", len(series))
	}
	if series.Last().Close != 1.0865 {
		t.Fatalf("last close %v", series.Last().Close)
	}
	if series[0].Time.Unix() != 1717171500 {
		t.Fatalf("time %v", series[0].Time)
	}
}

func TestGetCandlesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candles": []}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetCandles(context.Background(), practiceAccount, "EUR_USD", "5m", 10)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("got %v, want ErrNoData", err)
	}
}

func TestGetCandlesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessage": "Insufficient authorization to perform request."}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetCandles(context.Background(), practiceAccount, "EUR_USD", "5m", 10)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("got %v, want ErrAuth", err)
	}
}

func TestGetAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/accounts/acc-1":
			w.Write([]byte(`{"account": {"balance": "10000.50", "currency": "USD", "unrealizedPL": "12.3"}}`))
		case "/v3/accounts/acc-1/openPositions":
			w.Write([]byte(`{"positions": [
				{"instrument": "EUR_USD",
				 "long": {"units": "50000", "averagePrice": "1.0850"},
				 "short": {"units": "0", "averagePrice": "0"}}
			]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	snap, err := testClient(srv.URL).GetAccount(context.Background(), practiceAccount)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if snap.Balance != 10000.50 || snap.Currency != "USD" {
		t.Fatalf("snapshot %+v", snap)
	}
	if len(snap.OpenPositions) != 1 || snap.OpenPositions[0].Units != 50000 {
		t.Fatalf("positions %+v", snap.OpenPositions)
	}
}

func TestSubmitOrderFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/accounts/acc-1/orders" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{
			"orderCreateTransaction": {"id": "100"},
			"orderFillTransaction": {"id": "101", "price": "1.0855"},
			"stopLossOrderTransaction": {"id": "102"},
			"takeProfitOrderTransaction": {"id": "103"}
		}`))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).SubmitOrder(context.Background(), practiceAccount, models.OrderRequest{
		Instrument:      "EUR_USD",
		Units:           50000,
		Side:            models.DirectionBuy,
		StopLossPrice:   1.0815,
		TakeProfitPrice: 1.0935,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.OrderID != "100" || result.TradeID != "101" || result.FillPrice != 1.0855 {
		t.Fatalf("result %+v", result)
	}
}

func TestSubmitOrderCancelledMarketHalted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderCancelTransaction": {"reason": "MARKET_HALTED"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).SubmitOrder(context.Background(), practiceAccount, models.OrderRequest{
		Instrument: "EUR_USD", Units: 100, Side: models.DirectionBuy,
	})
	if !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("got %v, want ErrMarketClosed", err)
	}
}

func TestSubmitOrderBracketFollowupFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			// fill without the requested stop-loss transaction
			w.Write([]byte(`{
				"orderCreateTransaction": {"id": "100"},
				"orderFillTransaction": {"id": "101", "price": "1.0855"}
			}`))
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errorCode": "PRICE_BOUND_INVALID", "errorMessage": "bad price"}`))
		}
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).SubmitOrder(context.Background(), practiceAccount, models.OrderRequest{
		Instrument:    "EUR_USD",
		Units:         100,
		Side:          models.DirectionBuy,
		StopLossPrice: 1.0815,
	})
	if !errors.Is(err, ErrBracket) {
		t.Fatalf("got %v, want ErrBracket", err)
	}
	if result.OrderID != "100" {
		t.Fatalf("fill result must survive the bracket failure, got %+v", result)
	}
}

func TestNetworkErrorMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := testClient(srv.URL).GetCandles(context.Background(), practiceAccount, "EUR_USD", "5m", 10)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("got %v, want ErrNetwork", err)
	}
}
