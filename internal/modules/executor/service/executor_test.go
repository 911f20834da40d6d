package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"forwardtest/internal/models"
	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"
)

func TestMain(m *testing.M) {
	flush, err := logger.Init("executor-test")
	if err != nil {
		panic(err)
	}
	code := m.Run()
	flush()
	os.Exit(code)
}

type fakeBroker struct {
	balance    float64
	accountErr error

	submitErr error
	result    models.OrderResult
	submitted []models.OrderRequest
}

func (f *fakeBroker) GetAccount(context.Context, models.AccountRef) (models.AccountSnapshot, error) {
	if f.accountErr != nil {
		return models.AccountSnapshot{}, f.accountErr
	}
	return models.AccountSnapshot{Balance: f.balance, Currency: "USD"}, nil
}

func (f *fakeBroker) SubmitOrder(_ context.Context, _ models.AccountRef, req models.OrderRequest) (models.OrderResult, error) {
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return f.result, f.submitErr
	}
	return f.result, nil
}

type nopNotify struct{}

func (nopNotify) Send(string)          {}
func (nopNotify) Sendf(string, ...any) {}

func testConfig() *config.Config {
	return &config.Config{
		MinConfidence:  0,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
}

func testSession(t *testing.T, store sessionssvc.Store) *models.Session {
	t.Helper()
	sess := &models.Session{
		ID:         "sess-1",
		UserID:     "u1",
		StrategyID: "strat-1",
		Account:    models.AccountRef{AccountID: "acc-1", Environment: models.EnvPractice},
		Instrument: "EUR_USD",
		Timeframe:  "1m",
		Risk:       models.RiskParams{RiskPerTrade: 2, StopLossPips: 40, TakeProfitPips: 80},
	}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func entrySignal(ts time.Time) models.Signal {
	return models.Signal{
		HasEntry:   true,
		Direction:  models.DirectionBuy,
		Confidence: 0.8,
		Price:      1.1000,
		Timestamp:  ts,
	}
}

func TestExecuteSizesAndSubmits(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000, result: models.OrderResult{OrderID: "o-1", TradeID: "t-1", FillPrice: 1.1001}}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecExecuted {
		t.Fatalf("status %s (%s)", entry.Status, entry.FailureReason)
	}
	if entry.Units != 50000 {
		t.Fatalf("units %d, want 50000", entry.Units)
	}
	if entry.OrderID != "o-1" {
		t.Fatalf("order id %q", entry.OrderID)
	}
	if entry.ID == 0 {
		t.Fatalf("executed entry must be appended before returning")
	}
	if len(broker.submitted) != 1 {
		t.Fatalf("submitted %d orders", len(broker.submitted))
	}
	req := broker.submitted[0]
	if req.StopLossPrice >= req.TakeProfitPrice {
		t.Fatalf("buy brackets inverted: sl=%v tp=%v", req.StopLossPrice, req.TakeProfitPrice)
	}
}

func TestExecuteDuplicateSuppressed(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000, result: models.OrderResult{OrderID: "o-1"}}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	ts := time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC)
	first := exec.Execute(context.Background(), sess, entrySignal(ts), time.Minute)
	second := exec.Execute(context.Background(), sess, entrySignal(ts.Add(time.Second)), time.Minute)

	if first.Status != models.ExecExecuted {
		t.Fatalf("first: %s (%s)", first.Status, first.FailureReason)
	}
	if second.Status != models.ExecSkipped || second.FailureReason != "duplicate suppressed" {
		t.Fatalf("second: %s (%s)", second.Status, second.FailureReason)
	}
	if len(broker.submitted) != 1 {
		t.Fatalf("broker saw %d orders, want 1", len(broker.submitted))
	}
}

func TestExecuteDifferentSlotTrades(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	ts := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	exec.Execute(context.Background(), sess, entrySignal(ts), time.Minute)
	exec.Execute(context.Background(), sess, entrySignal(ts.Add(time.Minute)), time.Minute)

	if len(broker.submitted) != 2 {
		t.Fatalf("broker saw %d orders, want 2", len(broker.submitted))
	}
}

func TestExecuteNoEntrySkips(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, models.Signal{Timestamp: time.Now()}, time.Minute)
	if entry.Status != models.ExecSkipped {
		t.Fatalf("status %s", entry.Status)
	}
	if len(broker.submitted) != 0 {
		t.Fatalf("broker must not be called")
	}
}

func TestExecuteConfidenceBelowThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.MinConfidence = 0.9
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000}
	exec := New(cfg, broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecSkipped {
		t.Fatalf("status %s", entry.Status)
	}
	if len(broker.submitted) != 0 {
		t.Fatalf("broker must not be called")
	}
}

func TestExecuteAuthFailureDisarms(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{accountErr: fmt.Errorf("%w: http 401", brokersvc.ErrAuth)}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecFailed {
		t.Fatalf("status %s", entry.Status)
	}

	got, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive {
		t.Fatalf("session must be disarmed after auth failure")
	}
	if got.StopReason == "" {
		t.Fatalf("stop reason must record the cause")
	}
}

func TestExecuteMarketClosedSkips(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000, submitErr: fmt.Errorf("%w: weekend", brokersvc.ErrMarketClosed)}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecSkipped {
		t.Fatalf("status %s (%s)", entry.Status, entry.FailureReason)
	}

	got, _ := store.Get(context.Background(), sess.ID)
	if !got.IsActive {
		t.Fatalf("market closed must not disarm the session")
	}
}

func TestExecuteInsufficientMarginStaysActive(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000, submitErr: fmt.Errorf("%w: margin", brokersvc.ErrInsufficientMargin)}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecFailed {
		t.Fatalf("status %s", entry.Status)
	}
	got, _ := store.Get(context.Background(), sess.ID)
	if !got.IsActive {
		t.Fatalf("insufficient margin must not disarm the session")
	}
}

func TestExecuteBracketFailureIsPartial(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{
		balance:   10000,
		result:    models.OrderResult{OrderID: "o-9", TradeID: "t-9", FillPrice: 1.1},
		submitErr: fmt.Errorf("%w: stop-loss: rejected", brokersvc.ErrBracket),
	}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecFailedPartial {
		t.Fatalf("status %s", entry.Status)
	}
	if entry.OrderID != "o-9" {
		t.Fatalf("partial entry must keep the fill's order id, got %q", entry.OrderID)
	}
	if entry.ID == 0 {
		t.Fatalf("partial entry must be appended before returning")
	}
}

func TestExecuteRetriesTransient(t *testing.T) {
	store := sessionssvc.NewMemory()
	broker := &fakeBroker{balance: 10000, submitErr: fmt.Errorf("%w: http 503", brokersvc.ErrNetwork)}
	exec := New(testConfig(), broker, store, nopNotify{})
	sess := testSession(t, store)

	entry := exec.Execute(context.Background(), sess, entrySignal(time.Now().UTC()), time.Minute)
	if entry.Status != models.ExecFailed {
		t.Fatalf("status %s", entry.Status)
	}
	// first attempt plus MaxRetries
	if len(broker.submitted) != 3 {
		t.Fatalf("broker saw %d attempts, want 3", len(broker.submitted))
	}
}

func TestIdempotencyKeyStable(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC)
	a := IdempotencyKey("s1", models.DirectionBuy, ts, time.Minute)
	b := IdempotencyKey("s1", models.DirectionBuy, ts.Add(40*time.Second), time.Minute)
	if a != b {
		t.Fatalf("same slot must yield the same key: %q vs %q", a, b)
	}
	c := IdempotencyKey("s1", models.DirectionSell, ts, time.Minute)
	if a == c {
		t.Fatalf("direction must be part of the key")
	}
}
