package phoneclean

import (
	"context"
	"io"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/detection"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/parsers"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/storage"
)

// Config for the application service
type Config struct {
	SessionTTL    time.Duration `json:"session_ttl"`    // Idle time before a session expires
	CleanTimeout  time.Duration `json:"clean_timeout"`  // Upper bound for one clean call, 0 disables
	PreviewRows   int           `json:"preview_rows"`   // Rows in the upload preview
	FileRetention time.Duration `json:"file_retention"` // Age after which orphaned files are removed
}

// DefaultConfig returns default service configuration
func DefaultConfig() Config {
	return Config{
		SessionTTL:    30 * time.Minute,
		CleanTimeout:  60 * time.Second,
		PreviewRows:   20,
		FileRetention: 24 * time.Hour,
	}
}

// Ingester turns uploaded bytes into a table
type Ingester interface {
	Parse(ctx context.Context, filename string, data []byte) (*parsers.ParseResult, error)
}

// FileStorage keeps raw uploads and rendered artifacts
type FileStorage interface {
	SaveUpload(ctx context.Context, sessionID string, filename string, reader io.Reader) (*storage.FileMetadata, error)
	SaveArtifact(ctx context.Context, sessionID string, kind string, filename string, data []byte) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CleanupOldFiles(ctx context.Context, olderThan time.Duration) (int, error)
}

// RunRecorder persists the cleaning run history
type RunRecorder interface {
	Record(ctx context.Context, run *domain.CleaningRun) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.CleaningRun, error)
	CountByFileHash(ctx context.Context, fileHash string) (int64, error)
	Stats(ctx context.Context) (*repositories.RunStats, error)
}

// ExpiryScheduler schedules a deferred expiry check for a session
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, sessionID string, after time.Duration) error
}

// UploadResponse describes a freshly created session
type UploadResponse struct {
	SessionID            string                  `json:"session_id"`
	Filename             string                  `json:"filename"`
	FileSize             int64                   `json:"file_size"`
	DetectedPhoneColumns []string                `json:"detected_phone_columns"`
	AllColumns           []string                `json:"all_columns"`
	ColumnScores         []detection.ColumnScore `json:"column_scores"`
	SkippedRows          int                     `json:"skipped_rows"`
	PreviousCleans       int64                   `json:"previous_cleans"` // Recorded cleans of identical content
	Preview              domain.Preview          `json:"preview"`
}

// CleanRequest selects a session and the options to clean it with.
// A non-empty Preset replaces the option switches but keeps the columns.
type CleanRequest struct {
	SessionID string `json:"session_id"`
	Preset    string `json:"preset,omitempty"`
	domain.CleaningOptions
}

// CleanResponse summarises one clean call
type CleanResponse struct {
	SessionID      string         `json:"session_id"`
	Metrics        domain.Metrics `json:"metrics"`
	BeforePreview  domain.Preview `json:"before_preview"`
	AfterPreview   domain.Preview `json:"after_preview"`
	CleanedColumns []string       `json:"cleaned_columns"`
	Stages         []string       `json:"stages"`
}
