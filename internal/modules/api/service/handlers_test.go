package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"forwardtest/internal/models"
	"forwardtest/internal/modules/config"
	diagsvc "forwardtest/internal/modules/diagnostics/service"
	evalsvc "forwardtest/internal/modules/evaluator/service"
	executorsvc "forwardtest/internal/modules/executor/service"
	orchsvc "forwardtest/internal/modules/orchestrator/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	flush, err := logger.Init("api-test")
	if err != nil {
		panic(err)
	}
	code := m.Run()
	flush()
	os.Exit(code)
}

type stubBroker struct{}

func (stubBroker) GetCandles(context.Context, models.AccountRef, string, string, int) (models.Series, error) {
	return models.Series{{Close: 1.1}}, nil
}
func (stubBroker) GetAccount(context.Context, models.AccountRef) (models.AccountSnapshot, error) {
	return models.AccountSnapshot{Balance: 10000}, nil
}
func (stubBroker) SubmitOrder(context.Context, models.AccountRef, models.OrderRequest) (models.OrderResult, error) {
	return models.OrderResult{OrderID: "o-1"}, nil
}
func (stubBroker) ClosePosition(context.Context, models.AccountRef, string) error { return nil }

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }
func (stubEngine) Evaluate(context.Context, models.Series, bool) (models.Signal, error) {
	return models.Signal{Timestamp: time.Now().UTC()}, nil
}

type stubFactory struct{}

func (stubFactory) ForStrategy(string) evalsvc.Engine { return stubEngine{} }

type nopNotify struct{}

func (nopNotify) Send(string)          {}
func (nopNotify) Sendf(string, ...any) {}

func testRouter(t *testing.T) (*gin.Engine, sessionssvc.Store) {
	t.Helper()
	cfg := &config.Config{
		DefaultCadence: time.Hour, // keep background loops from re-firing mid-test
		LookbackBars:   10,
		DiagWindows:    5,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}
	cfg.API.JWTSecret = testSecret

	store := sessionssvc.NewMemory()
	broker := stubBroker{}
	exec := executorsvc.New(cfg, broker, store, nopNotify{})
	loop := orchsvc.NewLoop(cfg, broker, stubFactory{}, exec, store, nil, nil)
	manager := orchsvc.NewManager(loop, store, nopNotify{})
	t.Cleanup(manager.Stop)
	diag := diagsvc.New(cfg, store, broker)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(cfg, manager, store, diag, broker).Register(r)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, user))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const armJSON = `{
	"strategy_id": "strat-1",
	"account_id": "acc-1",
	"environment": "practice",
	"instrument": "EUR_USD",
	"timeframe": "1m",
	"risk_per_trade": 2,
	"stop_loss_pips": 40
}`

func TestCreateSession(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", "u1", armJSON)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var sess models.Session
	if err := sonic.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.ID == "" || !sess.IsActive || sess.UserID != "u1" {
		t.Fatalf("session %+v", sess)
	}
}

func TestCreateSessionConflict(t *testing.T) {
	r, _ := testRouter(t)

	if w := doJSON(t, r, http.MethodPost, "/api/sessions", "u1", armJSON); w.Code != http.StatusCreated {
		t.Fatalf("first: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/sessions", "u1", armJSON); w.Code != http.StatusConflict {
		t.Fatalf("second: %d, want 409", w.Code)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", "u1",
		`{"strategy_id": "s", "account_id": "a", "instrument": "EUR_USD", "timeframe": "7x", "risk_per_trade": 2, "stop_loss_pips": 40}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad timeframe: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/sessions", "u1",
		`{"strategy_id": "s", "account_id": "a", "instrument": "EUR_USD", "timeframe": "1m"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero risk: %d", w.Code)
	}
}

func TestDeleteSessionOwnership(t *testing.T) {
	r, store := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions", "u1", armJSON)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var sess models.Session
	_ = sonic.Unmarshal(w.Body.Bytes(), &sess)

	// another user cannot see or delete it
	if w := doJSON(t, r, http.MethodDelete, "/api/sessions/"+sess.ID, "u2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: %d, want 404", w.Code)
	}

	if w := doJSON(t, r, http.MethodDelete, "/api/sessions/"+sess.ID, "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}

	got, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive {
		t.Fatalf("session must be inactive after delete")
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/diagnostics", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var v models.Verdict
	if err := sonic.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Code != models.DiagNoActiveSession {
		t.Fatalf("code %s", v.Code)
	}
}
