package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/pkg/logger"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueMaintenance}, nil
}

type stubExpirer struct {
	remaining time.Duration
	err       error
	calls     []string
}

func (s *stubExpirer) ExpireSession(ctx context.Context, sessionID string) (time.Duration, error) {
	s.calls = append(s.calls, sessionID)
	return s.remaining, s.err
}

func TestNewSessionExpireTask(t *testing.T) {
	task, err := NewSessionExpireTask("s1")
	require.NoError(t, err)

	assert.Equal(t, TaskTypeSessionExpire, task.Type())

	var payload SessionExpirePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "s1", payload.SessionID)
}

func TestExpiryScheduler_ScheduleExpiry(t *testing.T) {
	enq := &recordingEnqueuer{}
	scheduler := NewExpiryScheduler(enq, logger.Discard())

	require.NoError(t, scheduler.ScheduleExpiry(context.Background(), "s1", 30*time.Minute))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskTypeSessionExpire, enq.tasks[0].Type())
	assert.Len(t, enq.opts[0], 2)

	enq.err = errors.New("redis down")
	assert.Error(t, scheduler.ScheduleExpiry(context.Background(), "s2", time.Minute))
}

func TestSessionExpireHandler_Expired(t *testing.T) {
	enq := &recordingEnqueuer{}
	expirer := &stubExpirer{}
	handler := NewSessionExpireHandler(expirer, NewExpiryScheduler(enq, logger.Discard()), logger.Discard())

	task, err := NewSessionExpireTask("s1")
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"s1"}, expirer.calls)
	assert.Empty(t, enq.tasks)
}

func TestSessionExpireHandler_StillActive(t *testing.T) {
	enq := &recordingEnqueuer{}
	expirer := &stubExpirer{remaining: 10 * time.Minute}
	handler := NewSessionExpireHandler(expirer, NewExpiryScheduler(enq, logger.Discard()), logger.Discard())

	task, err := NewSessionExpireTask("s1")
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	require.Len(t, enq.tasks, 1, "active sessions are checked again later")
}

func TestSessionExpireHandler_BadPayload(t *testing.T) {
	handler := NewSessionExpireHandler(&stubExpirer{}, NewExpiryScheduler(&recordingEnqueuer{}, logger.Discard()), logger.Discard())

	err := handler.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSessionExpire, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSessionExpire, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSessionExpireHandler_ExpirerError(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("store unavailable")}
	handler := NewSessionExpireHandler(expirer, NewExpiryScheduler(&recordingEnqueuer{}, logger.Discard()), logger.Discard())

	task, err := NewSessionExpireTask("s1")
	require.NoError(t, err)

	assert.Error(t, handler.ProcessTask(context.Background(), task))
}
