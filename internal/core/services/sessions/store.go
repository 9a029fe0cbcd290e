// Package sessions defines the session store used by the cleaning service
// and its in-memory implementation.
package sessions

import (
	"context"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
)

// LockMode selects shared or exclusive access to one session
type LockMode int

const (
	// LockShared is taken by download and report
	LockShared LockMode = iota
	// LockExclusive is taken by clean and evict
	LockExclusive
)

func (m LockMode) String() string {
	if m == LockExclusive {
		return "exclusive"
	}
	return "shared"
}

// Store keeps uploaded tables and their latest cleaning result, keyed by
// session id. Unknown or expired ids fail with SessionNotFound.
type Store interface {
	// Create stores a new session and returns its id
	Create(ctx context.Context, session *domain.Session) (string, error)

	// Get returns the session without refreshing its expiry
	Get(ctx context.Context, id string) (*domain.Session, error)

	// PutResult replaces the session's result
	PutResult(ctx context.Context, id string, result *domain.CleaningResult) error

	// GetResult returns the latest result, or NoResult before any clean
	GetResult(ctx context.Context, id string) (*domain.CleaningResult, error)

	// Evict removes the session and its result
	Evict(ctx context.Context, id string) error

	// Touch records activity and pushes the idle expiry forward
	Touch(ctx context.Context, id string) error

	// Lock waits for access in the given mode. The wait is bounded by the
	// store's lock wait and ctx; when exceeded it fails with SessionBusy.
	Lock(ctx context.Context, id string, mode LockMode) (func(), error)

	// Expired lists sessions idle past their expiry that are not locked
	Expired(ctx context.Context, now time.Time) ([]string, error)
}

// Default lifecycle settings
const (
	DefaultTTL      = 30 * time.Minute
	DefaultLockWait = 10 * time.Second
)
