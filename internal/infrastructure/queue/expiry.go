package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeSessionExpire evicts an idle session and its files
const TaskTypeSessionExpire = "session:expire"

// SessionExpirePayload is the task body
type SessionExpirePayload struct {
	SessionID string `json:"session_id"`
}

// NewSessionExpireTask builds an expiry task for one session
func NewSessionExpireTask(sessionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SessionExpirePayload{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal expiry payload: %w", err)
	}
	return asynq.NewTask(TaskTypeSessionExpire, payload, asynq.MaxRetry(3)), nil
}

// Enqueuer is the part of the asynq client the scheduler needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExpiryScheduler schedules session expiry checks
type ExpiryScheduler struct {
	client Enqueuer
	logger *slog.Logger
}

// NewExpiryScheduler creates a scheduler on top of an asynq client
func NewExpiryScheduler(client Enqueuer, logger *slog.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		client: client,
		logger: logger,
	}
}

// ScheduleExpiry enqueues an expiry check to run after the given delay
func (s *ExpiryScheduler) ScheduleExpiry(ctx context.Context, sessionID string, after time.Duration) error {
	task, err := NewSessionExpireTask(sessionID)
	if err != nil {
		return err
	}

	if _, err := s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueMaintenance),
		asynq.ProcessIn(after),
	); err != nil {
		return fmt.Errorf("failed to schedule session expiry: %w", err)
	}
	return nil
}

// SessionExpirer evicts a session if it is idle past its TTL and reports
// how long a still-active session has left.
type SessionExpirer interface {
	ExpireSession(ctx context.Context, sessionID string) (remaining time.Duration, err error)
}

// SessionExpireHandler processes session:expire tasks
type SessionExpireHandler struct {
	expirer   SessionExpirer
	scheduler *ExpiryScheduler
	logger    *slog.Logger
}

// NewSessionExpireHandler creates the task handler
func NewSessionExpireHandler(expirer SessionExpirer, scheduler *ExpiryScheduler, logger *slog.Logger) *SessionExpireHandler {
	return &SessionExpireHandler{
		expirer:   expirer,
		scheduler: scheduler,
		logger:    logger,
	}
}

// ProcessTask implements asynq.Handler. A session touched since the task
// was scheduled is checked again when its new expiry is due.
func (h *SessionExpireHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload SessionExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid expiry payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("expiry payload without session id: %w", asynq.SkipRetry)
	}

	remaining, err := h.expirer.ExpireSession(ctx, payload.SessionID)
	if err != nil {
		return err
	}

	if remaining <= 0 {
		h.logger.Debug("session expired",
			slog.String("session_id", payload.SessionID))
		return nil
	}

	return h.scheduler.ScheduleExpiry(ctx, payload.SessionID, remaining)
}
