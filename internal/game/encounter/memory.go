package encounter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is the in-process Store used when the game server runs as a
// single process. Sessions are held in a mutex-guarded map and stored as deep
// copies, so callers never share instances with the store. Expired sessions
// are reclaimed lazily on access and eagerly by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore with the given session TTL.
func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a deep copy of sess with a fresh expiry.
func (m *MemoryStore) Create(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[sess.ID]; ok && !existing.Expired(m.now()) {
		return ErrSessionExists
	}
	cp := sess.Clone()
	cp.ExpiresAt = m.now().Add(m.ttl)
	m.sessions[sess.ID] = cp
	sess.ExpiresAt = cp.ExpiresAt
	return nil
}

// FindByID returns a deep copy of the stored session. An expired session is
// reclaimed on the spot and reported as not found.
func (m *MemoryStore) FindByID(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if stored.Expired(m.now()) {
		delete(m.sessions, id)
		m.logger.Debug("reclaimed expired combat session", zap.String("session_id", id))
		return nil, ErrSessionNotFound
	}
	return stored.Clone(), nil
}

// Update replaces the stored record iff its turn counter equals expectedTurn,
// and pushes the expiry forward.
func (m *MemoryStore) Update(_ context.Context, sess *Session, expectedTurn int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[sess.ID]
	if !ok || stored.Expired(m.now()) {
		delete(m.sessions, sess.ID)
		return ErrSessionNotFound
	}
	if stored.Turn != expectedTurn {
		return ErrStaleSession
	}
	cp := sess.Clone()
	cp.ExpiresAt = m.now().Add(m.ttl)
	m.sessions[sess.ID] = cp
	sess.ExpiresAt = cp.ExpiresAt
	return nil
}

// Delete removes the session iff its turn counter equals expectedTurn.
func (m *MemoryStore) Delete(_ context.Context, id string, expectedTurn int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[id]
	if !ok || stored.Expired(m.now()) {
		delete(m.sessions, id)
		return ErrSessionNotFound
	}
	if stored.Turn != expectedTurn {
		return ErrStaleSession
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes every expired session and returns how many were reclaimed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("swept abandoned combat sessions", zap.Int("reclaimed", removed))
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled. It blocks;
// run it in its own goroutine.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
