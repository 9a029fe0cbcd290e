package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// maxReaders is the semaphore weight; an exclusive holder takes all of it
const maxReaders = 1 << 16

type memoryEntry struct {
	session *domain.Session
	result  *domain.CleaningResult
	lock    *semaphore.Weighted
	holders atomic.Int32
}

// MemoryStore is a process-local Store. Each session has a weighted
// semaphore acting as a read/write lock with FIFO fairness.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	ttl      time.Duration
	lockWait time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store
func NewMemoryStore(ttl, lockWait time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &MemoryStore{
		entries:  make(map[string]*memoryEntry),
		ttl:      ttl,
		lockWait: lockWait,
		now:      time.Now,
	}
}

// Create stores a new session under a fresh id
func (m *MemoryStore) Create(ctx context.Context, session *domain.Session) (string, error) {
	if session == nil {
		return "", apperrors.Internal("cannot store a nil session")
	}

	now := m.now()
	stored := *session
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.Touch(now, m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[stored.ID]; exists {
		return "", apperrors.Internal("session id already in use")
	}
	m.entries[stored.ID] = &memoryEntry{
		session: &stored,
		lock:    semaphore.NewWeighted(maxReaders),
	}
	return stored.ID, nil
}

// live returns the entry for id if it exists and has not expired.
// Callers hold m.mu.
func (m *MemoryStore) live(id string) (*memoryEntry, error) {
	e, ok := m.entries[id]
	if !ok || (e.holders.Load() == 0 && e.session.IsExpired(m.now())) {
		return nil, apperrors.SessionNotFound(id)
	}
	return e, nil
}

// Get returns a copy of the session
func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.live(id)
	if err != nil {
		return nil, err
	}
	s := *e.session
	return &s, nil
}

// PutResult replaces the session's result
func (m *MemoryStore) PutResult(ctx context.Context, id string, result *domain.CleaningResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.live(id)
	if err != nil {
		return err
	}
	e.result = result
	return nil
}

// GetResult returns the latest result
func (m *MemoryStore) GetResult(ctx context.Context, id string) (*domain.CleaningResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.live(id)
	if err != nil {
		return nil, err
	}
	if e.result == nil {
		return nil, apperrors.NoResult(id)
	}
	return e.result, nil
}

// Evict removes the session. Evicting an unknown id is a no-op.
func (m *MemoryStore) Evict(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

// Touch refreshes the idle expiry
func (m *MemoryStore) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.live(id)
	if err != nil {
		return err
	}
	e.session.Touch(m.now(), m.ttl)
	return nil
}

// Lock acquires the session's semaphore in the requested mode
func (m *MemoryStore) Lock(ctx context.Context, id string, mode LockMode) (func(), error) {
	m.mu.RLock()
	e, err := m.live(id)
	if err == nil {
		// Counted before waiting so a queued request keeps the session
		// out of the sweep.
		e.holders.Add(1)
	}
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	weight := int64(1)
	if mode == LockExclusive {
		weight = maxReaders
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.lockWait)
	defer cancel()

	if err := e.lock.Acquire(waitCtx, weight); err != nil {
		e.holders.Add(-1)
		return nil, apperrors.SessionBusy(id)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.lock.Release(weight)
			e.holders.Add(-1)
		})
	}, nil
}

// Expired lists expired sessions nobody holds or waits on
func (m *MemoryStore) Expired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0)
	for id, e := range m.entries {
		if e.holders.Load() == 0 && e.session.IsExpired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of stored sessions, expired ones included
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
