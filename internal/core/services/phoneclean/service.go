// Package phoneclean is the application service behind the HTTP API. It
// ties ingestion, detection, cleaning and artifact rendering to sessions.
package phoneclean

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/artifacts"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/cleaning"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/detection"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/sessions"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/storage"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
)

// Service coordinates session operations
type Service struct {
	config    Config
	store     sessions.Store
	ingester  Ingester
	detector  *detection.Detector
	cleaner   cleaning.Cleaner
	renderer  artifacts.Renderer
	files     FileStorage
	recorder  RunRecorder
	scheduler ExpiryScheduler
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithFileStorage keeps uploads and artifacts on disk
func WithFileStorage(files FileStorage) Option {
	return func(s *Service) { s.files = files }
}

// WithRunRecorder records every successful clean
func WithRunRecorder(recorder RunRecorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithExpiryScheduler schedules an expiry check for every new session
func WithExpiryScheduler(scheduler ExpiryScheduler) Option {
	return func(s *Service) { s.scheduler = scheduler }
}

// NewService creates the application service
func NewService(
	config Config,
	store sessions.Store,
	ingester Ingester,
	detector *detection.Detector,
	cleaner cleaning.Cleaner,
	renderer artifacts.Renderer,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaults.SessionTTL
	}
	if config.PreviewRows <= 0 {
		config.PreviewRows = defaults.PreviewRows
	}
	if config.FileRetention <= 0 {
		config.FileRetention = defaults.FileRetention
	}

	s := &Service{
		config:   config,
		store:    store,
		ingester: ingester,
		detector: detector,
		cleaner:  cleaner,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload parses a file, detects phone columns and opens a session for it
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*UploadResponse, error) {
	parsed, err := s.ingester.Parse(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	scores := s.detector.Detect(parsed.Table)
	detected := make([]string, 0)
	for _, score := range scores {
		if score.Detected {
			detected = append(detected, score.Column)
		}
	}

	fileHash := hex.EncodeToString(sum[:])
	id, err := s.store.Create(ctx, &domain.Session{
		Filename:        filename,
		Format:          parsed.Format,
		FileSize:        int64(len(data)),
		FileHash:        fileHash,
		Table:           parsed.Table,
		DetectedColumns: detected,
	})
	if err != nil {
		return nil, err
	}

	if s.files != nil {
		if _, err := s.files.SaveUpload(ctx, id, filename, bytes.NewReader(data)); err != nil {
			s.logger.Warn("failed to keep raw upload",
				slog.String("session_id", id),
				slog.Any("error", err))
		}
	}
	if s.scheduler != nil {
		if err := s.scheduler.ScheduleExpiry(ctx, id, s.config.SessionTTL); err != nil {
			s.logger.Warn("failed to schedule session expiry",
				slog.String("session_id", id),
				slog.Any("error", err))
		}
	}

	var previous int64
	if s.recorder != nil {
		previous, err = s.recorder.CountByFileHash(ctx, fileHash)
		if err != nil {
			s.logger.Warn("failed to look up earlier cleans",
				slog.String("session_id", id),
				slog.Any("error", err))
		}
	}

	s.logger.Info("session created",
		slog.String("session_id", id),
		slog.String("filename", filename),
		slog.String("format", string(parsed.Format)),
		slog.Int("rows", parsed.TotalRows),
		slog.Int("skipped_rows", parsed.SkippedRows),
		slog.Any("detected_columns", detected))

	return &UploadResponse{
		SessionID:            id,
		Filename:             filename,
		FileSize:             int64(len(data)),
		DetectedPhoneColumns: detected,
		AllColumns:           append([]string(nil), parsed.Table.Columns...),
		ColumnScores:         scores,
		SkippedRows:          parsed.SkippedRows,
		PreviousCleans:       previous,
		Preview:              parsed.Table.Preview(s.config.PreviewRows),
	}, nil
}

// ResolveOptions applies a named preset on top of the requested columns
func ResolveOptions(req CleanRequest) (domain.CleaningOptions, error) {
	if req.Preset == "" {
		return req.CleaningOptions, nil
	}
	opts, ok := domain.PresetOptions(req.Preset, req.SelectedColumns)
	if !ok {
		return domain.CleaningOptions{}, apperrors.BadRequest("unknown preset '" + req.Preset + "'")
	}
	return opts, nil
}

// Clean applies the request options to the session's table under the
// session's exclusive lock. The previous result is replaced only on success.
func (s *Service) Clean(ctx context.Context, req CleanRequest) (*CleanResponse, error) {
	opts, err := ResolveOptions(req)
	if err != nil {
		return nil, err
	}

	unlock, err := s.store.Lock(ctx, req.SessionID, sessions.LockExclusive)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.Touch(ctx, req.SessionID); err != nil {
		return nil, err
	}
	session, err := s.store.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	cleanCtx := ctx
	if s.config.CleanTimeout > 0 {
		var cancel context.CancelFunc
		cleanCtx, cancel = context.WithTimeout(ctx, s.config.CleanTimeout)
		defer cancel()
	}

	start := s.now()
	result, err := s.cleaner.Clean(cleanCtx, session, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, apperrors.Timeout("cleaning", err)
		}
		return nil, err
	}
	elapsed := s.now().Sub(start)

	if err := s.store.PutResult(ctx, req.SessionID, result); err != nil {
		return nil, err
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, domain.NewCleaningRun(session, result, elapsed)); err != nil {
			// History is informational only
			s.logger.Warn("failed to record cleaning run",
				slog.String("session_id", req.SessionID),
				slog.Any("error", err))
		}
	}

	return &CleanResponse{
		SessionID:      req.SessionID,
		Metrics:        result.Metrics,
		BeforePreview:  result.BeforePreview,
		AfterPreview:   result.AfterPreview,
		CleanedColumns: result.CleanedColumns,
		Stages:         s.cleaner.Stages(opts),
	}, nil
}

// Download renders the latest result in the session's source format
func (s *Service) Download(ctx context.Context, sessionID string) (*artifacts.Artifact, error) {
	return s.render(ctx, sessionID, storage.KindCleaned, s.renderer.RenderFile)
}

// Report renders the plain-text summary of the latest result
func (s *Service) Report(ctx context.Context, sessionID string) (*artifacts.Artifact, error) {
	return s.render(ctx, sessionID, storage.KindReport, s.renderer.RenderReport)
}

func (s *Service) render(
	ctx context.Context,
	sessionID string,
	kind string,
	renderFn func(*domain.CleaningResult) (*artifacts.Artifact, error),
) (*artifacts.Artifact, error) {
	unlock, err := s.store.Lock(ctx, sessionID, sessions.LockShared)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.Touch(ctx, sessionID); err != nil {
		return nil, err
	}
	result, err := s.store.GetResult(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	artifact, err := renderFn(result)
	if err != nil {
		return nil, err
	}

	if s.files != nil {
		if _, err := s.files.SaveArtifact(ctx, sessionID, kind, artifact.Filename, artifact.Data); err != nil {
			s.logger.Warn("failed to keep artifact",
				slog.String("session_id", sessionID),
				slog.String("kind", kind),
				slog.Any("error", err))
		}
	}

	return artifact, nil
}

// History lists the recorded cleaning runs of a live session
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.CleaningRun, error) {
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.recorder == nil {
		return []domain.CleaningRun{}, nil
	}
	runs, err := s.recorder.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load cleaning history")
	}
	return runs, nil
}

// Stats aggregates every recorded run. Without a recorder all counts are zero.
func (s *Service) Stats(ctx context.Context) (*repositories.RunStats, error) {
	if s.recorder == nil {
		return &repositories.RunStats{}, nil
	}
	stats, err := s.recorder.Stats(ctx)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "could not load cleaning statistics")
	}
	return stats, nil
}

// Evict removes a session, its result and its files once no other
// operation holds it.
func (s *Service) Evict(ctx context.Context, sessionID string) error {
	unlock, err := s.store.Lock(ctx, sessionID, sessions.LockExclusive)
	if err != nil {
		return err
	}
	defer unlock()

	return s.remove(ctx, sessionID)
}

func (s *Service) remove(ctx context.Context, sessionID string) error {
	if err := s.store.Evict(ctx, sessionID); err != nil {
		return err
	}
	s.removeFiles(ctx, sessionID)

	s.logger.Info("session evicted", slog.String("session_id", sessionID))
	return nil
}

func (s *Service) removeFiles(ctx context.Context, sessionID string) {
	if s.files == nil {
		return
	}
	if err := s.files.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Warn("failed to delete session files",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}
}

// SweepExpired evicts every idle, unlocked session past its expiry.
// Expired sessions refuse new locks, so eviction needs none.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.store.Expired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		if err := s.remove(ctx, id); err != nil {
			s.logger.Error("failed to evict expired session",
				slog.String("session_id", id),
				slog.Any("error", err))
			continue
		}
		evicted++
	}
	return evicted, nil
}

// ExpireSession evicts a session idle past its expiry. For a session that
// is still active it returns the time left until it could expire.
func (s *Service) ExpireSession(ctx context.Context, sessionID string) (time.Duration, error) {
	session, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		// Already gone from the store; only files may remain
		s.removeFiles(ctx, sessionID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if remaining := session.ExpiresAt.Sub(s.now()); remaining > 0 {
		return remaining, nil
	}
	return 0, s.remove(ctx, sessionID)
}

// RunJanitor sweeps expired sessions and orphaned files every interval
// until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.logger.Info("session janitor started",
		slog.Duration("interval", interval),
		slog.Duration("file_retention", s.config.FileRetention))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	evicted, err := s.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", slog.Any("error", err))
	} else if evicted > 0 {
		s.logger.Info("expired sessions evicted", slog.Int("count", evicted))
	}

	if s.files == nil {
		return
	}
	removed, err := s.files.CleanupOldFiles(ctx, s.config.FileRetention)
	if err != nil {
		s.logger.Error("file cleanup failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		s.logger.Info("orphaned files removed", slog.Int("count", removed))
	}
}
