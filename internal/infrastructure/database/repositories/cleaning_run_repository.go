package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"gorm.io/gorm"
)

// CleaningRunRepository stores the cleaning audit trail using GORM
type CleaningRunRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// RunStats aggregates recorded runs
type RunStats struct {
	Runs              int64 `json:"runs"`
	TotalRecords      int64 `json:"total_records"`
	ValidNumbers      int64 `json:"valid_numbers"`
	DuplicatesRemoved int64 `json:"duplicates_removed"`
}

// NewCleaningRunRepository creates a new repository instance
func NewCleaningRunRepository(db *gorm.DB, logger *slog.Logger) *CleaningRunRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &CleaningRunRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts one cleaning run
func (r *CleaningRunRepository) Record(ctx context.Context, run *domain.CleaningRun) error {
	err := r.db.WithContext(ctx).
		Create(run).
		Error

	if err != nil {
		r.logger.Error("failed to record cleaning run",
			slog.String("session_id", run.SessionID),
			slog.Any("error", err))
		return fmt.Errorf("failed to insert cleaning run: %w", err)
	}

	r.logger.Debug("cleaning run recorded",
		slog.String("run_id", run.ID.String()),
		slog.String("session_id", run.SessionID))

	return nil
}

// ListBySession returns a session's runs, oldest first
func (r *CleaningRunRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.CleaningRun, error) {
	var runs []domain.CleaningRun

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&runs).
		Error

	if err != nil {
		r.logger.Error("failed to list cleaning runs",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return runs, nil
}

// CountByFileHash returns how often the same file content was cleaned
func (r *CleaningRunRepository) CountByFileHash(ctx context.Context, fileHash string) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&domain.CleaningRun{}).
		Where("file_hash = ?", fileHash).
		Count(&count).
		Error

	if err != nil {
		r.logger.Error("failed to count cleaning runs",
			slog.String("file_hash", fileHash),
			slog.Any("error", err))
		return 0, fmt.Errorf("database query failed: %w", err)
	}

	return count, nil
}

// Stats aggregates every recorded run
func (r *CleaningRunRepository) Stats(ctx context.Context) (*RunStats, error) {
	var stats RunStats

	err := r.db.WithContext(ctx).
		Model(&domain.CleaningRun{}).
		Select("COUNT(*) AS runs, " +
			"COALESCE(SUM(total_records), 0) AS total_records, " +
			"COALESCE(SUM(valid_numbers), 0) AS valid_numbers, " +
			"COALESCE(SUM(duplicates_removed), 0) AS duplicates_removed").
		Scan(&stats).
		Error

	if err != nil {
		r.logger.Error("failed to aggregate cleaning runs", slog.Any("error", err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return &stats, nil
}
