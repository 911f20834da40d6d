package service

import (
	"context"
	"sort"
	"sync"

	"forwardtest/internal/models"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/internal/notify"
	"forwardtest/pkg/logger"

	"github.com/google/uuid"
)

// ArmRequest carries everything needed to start forward testing a strategy.
type ArmRequest struct {
	UserID     string
	StrategyID string
	Account    models.AccountRef
	Instrument string
	Timeframe  string
	Risk       models.RiskParams
}

// Manager owns the foreground execution context: one goroutine per armed
// session. The store stays the source of truth for what is active; the
// manager only mirrors it with running loops.
type Manager struct {
	loop   *Loop
	store  sessionssvc.Store
	notify notify.Notifier

	mu      sync.Mutex
	rootCtx context.Context
	cancel  context.CancelFunc
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(loop *Loop, store sessionssvc.Store, n notify.Notifier) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		loop:    loop,
		store:   store,
		notify:  n,
		rootCtx: ctx,
		cancel:  cancel,
		running: make(map[string]context.CancelFunc),
	}
}

// Arm creates the session and starts its loop. The store enforces the
// one-active-per-tuple invariant; ErrConflict passes through untouched.
func (m *Manager) Arm(ctx context.Context, req ArmRequest) (*models.Session, error) {
	sess := &models.Session{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		StrategyID: req.StrategyID,
		Account:    req.Account,
		Instrument: req.Instrument,
		Timeframe:  req.Timeframe,
		Risk:       req.Risk,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	m.start(sess)
	m.notify.Sendf("session %s armed: %s %s on %s", sess.ID, sess.StrategyID, sess.Instrument, sess.Account)
	return sess, nil
}

// Disarm deactivates the session and stops its loop. Safe to call for a
// session whose loop is not running here (it may live in another process).
func (m *Manager) Disarm(ctx context.Context, id, reason string) error {
	if err := m.store.Deactivate(ctx, id, reason); err != nil {
		return err
	}

	m.mu.Lock()
	if cancel, ok := m.running[id]; ok {
		cancel()
		delete(m.running, id)
	}
	m.mu.Unlock()

	m.notify.Sendf("session %s disarmed: %s", id, reason)
	return nil
}

// Running lists the session ids with a live loop in this process.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resume starts loops for every session that was active when the process
// last stopped. Called once on startup.
func (m *Manager) Resume(ctx context.Context) error {
	active, err := m.store.List(ctx, sessionssvc.Filter{ActiveOnly: true})
	if err != nil {
		return err
	}
	for _, sess := range active {
		m.start(sess)
	}
	if len(active) > 0 {
		logger.Info("resumed %d active sessions", len(active))
	}
	return nil
}

// Stop cancels every loop and waits for them to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.mu.Lock()
	for id, cancel := range m.running {
		cancel()
		delete(m.running, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) start(sess *models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[sess.ID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(m.rootCtx)
	m.running[sess.ID] = cancel
	cadence := m.loop.CadenceFor(sess)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.running, sess.ID)
			m.mu.Unlock()
		}()
		m.loop.Run(ctx, sess.ID, cadence)
	}()
}
