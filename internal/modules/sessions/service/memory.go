package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"forwardtest/internal/models"
)

// Memory is the store used by tests and single-process runs. Same conflict
// rules as the pg store, one mutex instead of a transaction.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	active   map[string]string // tuple -> session id
	log      []*models.ExecutionLogEntry
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*models.Session),
		active:   make(map[string]string),
	}
}

func (m *Memory) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[s.Tuple()]; busy {
		return ErrConflict
	}

	cp := *s
	cp.IsActive = true
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.sessions[cp.ID] = &cp
	m.active[cp.Tuple()] = cp.ID
	*s = cp
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Session
	for _, s := range m.sessions {
		if f.UserID != "" && s.UserID != f.UserID {
			continue
		}
		if f.ActiveOnly && !s.IsActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Deactivate(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.IsActive {
		s.IsActive = false
		s.StopReason = reason
		delete(m.active, s.Tuple())
	}
	return nil
}

func (m *Memory) Touch(_ context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	t := ts.UTC()
	s.LastExecutionAt = &t
	return nil
}

func (m *Memory) AppendLog(_ context.Context, e *models.ExecutionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	cp := *e
	cp.ID = m.nextID
	m.log = append(m.log, &cp)
	e.ID = cp.ID
	return nil
}

func (m *Memory) RecentLog(_ context.Context, sessionID string, limit int) ([]*models.ExecutionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.ExecutionLogEntry
	for _, e := range m.log {
		if e.SessionID != sessionID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	// writers append with their own clocks; order on read
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) HasExecuted(_ context.Context, sessionID, key string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.log {
		if e.SessionID == sessionID && e.Status == models.ExecExecuted &&
			e.IdempotencyKey == key && !e.Timestamp.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
