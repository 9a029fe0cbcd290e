package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/sessions"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "phoneclean:session:"
	resultKeyPrefix  = "phoneclean:result:"
	lockKeyPrefix    = "phoneclean:lock:"

	lockPollInterval = 25 * time.Millisecond
	// A crashed holder's lock is released by Redis after this long
	defaultLockLease = 5 * time.Minute
)

// Deletes the lock only if it still holds our token
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionStore keeps sessions as JSON documents whose idle TTL is
// enforced by Redis itself. Both lock modes take the same exclusive key.
type RedisSessionStore struct {
	cache     *RedisCache
	ttl       time.Duration
	lockWait  time.Duration
	lockLease time.Duration
	logger    *slog.Logger
}

var _ sessions.Store = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a Redis backed session store
func NewRedisSessionStore(cache *RedisCache, ttl, lockWait time.Duration, logger *slog.Logger) *RedisSessionStore {
	if ttl <= 0 {
		ttl = sessions.DefaultTTL
	}
	if lockWait <= 0 {
		lockWait = sessions.DefaultLockWait
	}
	return &RedisSessionStore{
		cache:     cache,
		ttl:       ttl,
		lockWait:  lockWait,
		lockLease: defaultLockLease,
		logger:    logger,
	}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }
func resultKey(id string) string  { return resultKeyPrefix + id }
func lockKey(id string) string    { return lockKeyPrefix + id }

// Create stores a new session document
func (s *RedisSessionStore) Create(ctx context.Context, session *domain.Session) (string, error) {
	if session == nil {
		return "", apperrors.Internal("cannot store a nil session")
	}

	now := time.Now().UTC()
	stored := *session
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.Touch(now, s.ttl)

	payload, err := json.Marshal(&stored)
	if err != nil {
		return "", apperrors.InternalWrap(err, "failed to encode session")
	}

	ok, err := s.cache.SetNX(ctx, sessionKey(stored.ID), payload, s.ttl)
	if err != nil {
		return "", apperrors.InternalWrap(err, "failed to store session")
	}
	if !ok {
		return "", apperrors.Internal("session id already in use")
	}

	s.logger.Debug("session stored",
		slog.String("session_id", stored.ID),
		slog.Int("bytes", len(payload)),
	)
	return stored.ID, nil
}

// Get loads the session document
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	payload, err := s.cache.GetBytes(ctx, sessionKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.SessionNotFound(id)
	}
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load session")
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, apperrors.InternalWrap(err, "failed to decode session")
	}
	return &session, nil
}

// PutResult replaces the session's result. The result shares the
// session's remaining lifetime.
func (s *RedisSessionStore) PutResult(ctx context.Context, id string, result *domain.CleaningResult) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to encode result")
	}
	if err := s.cache.Set(ctx, resultKey(id), payload, s.ttl); err != nil {
		return apperrors.InternalWrap(err, "failed to store result")
	}
	return nil
}

// GetResult loads the latest result
func (s *RedisSessionStore) GetResult(ctx context.Context, id string) (*domain.CleaningResult, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	payload, err := s.cache.GetBytes(ctx, resultKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NoResult(id)
	}
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load result")
	}

	var result domain.CleaningResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, apperrors.InternalWrap(err, "failed to decode result")
	}
	return &result, nil
}

// Evict deletes the session and its result
func (s *RedisSessionStore) Evict(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, sessionKey(id), resultKey(id)); err != nil {
		return apperrors.InternalWrap(err, "failed to evict session")
	}
	return nil
}

// Touch rewrites the activity timestamps and refreshes both key TTLs
func (s *RedisSessionStore) Touch(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	session.Touch(time.Now().UTC(), s.ttl)
	payload, err := json.Marshal(session)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to encode session")
	}
	if err := s.cache.Set(ctx, sessionKey(id), payload, s.ttl); err != nil {
		return apperrors.InternalWrap(err, "failed to touch session")
	}
	// The result key may not exist yet; EXPIRE on a missing key is a no-op
	if err := s.cache.Expire(ctx, resultKey(id), s.ttl); err != nil {
		return apperrors.InternalWrap(err, "failed to touch result")
	}
	return nil
}

// Lock polls SET NX until the lock is free, the lock wait elapses or ctx ends
func (s *RedisSessionStore) Lock(ctx context.Context, id string, mode sessions.LockMode) (func(), error) {
	n, err := s.cache.Exists(ctx, sessionKey(id))
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to check session")
	}
	if n == 0 {
		return nil, apperrors.SessionNotFound(id)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	token := uuid.NewString()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := s.cache.SetNX(waitCtx, lockKey(id), token, s.lockLease)
		if err != nil && waitCtx.Err() == nil {
			return nil, apperrors.InternalWrap(err, "failed to acquire session lock")
		}
		if ok {
			break
		}

		select {
		case <-waitCtx.Done():
			s.logger.Warn("session lock wait exceeded",
				slog.String("session_id", id),
				slog.String("mode", mode.String()),
			)
			return nil, apperrors.SessionBusy(id)
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.cache.RunScript(releaseCtx, releaseLockScript, []string{lockKey(id)}, token); err != nil {
			s.logger.Error("failed to release session lock",
				slog.String("session_id", id),
				slog.Any("error", err),
			)
		}
	}, nil
}

// Expired always returns nothing: Redis expires idle sessions on its own
// and the expiry task cleans up files for ids that are gone.
func (s *RedisSessionStore) Expired(ctx context.Context, now time.Time) ([]string, error) {
	return nil, nil
}

// String identifies the backend in logs
func (s *RedisSessionStore) String() string {
	return fmt.Sprintf("redis(ttl=%s)", s.ttl)
}
