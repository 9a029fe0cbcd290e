package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CleaningRun is the audit entry written for every successful clean call.
// It records counts and options only; no contact data is persisted.
type CleaningRun struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SessionID         string    `gorm:"type:varchar(64);not null;index:idx_cleaning_runs_session" json:"session_id"`
	Filename          string    `gorm:"type:varchar(500);not null" json:"filename"`
	FileHash          string    `gorm:"type:varchar(64);index:idx_cleaning_runs_file_hash" json:"file_hash"`
	Format            string    `gorm:"type:varchar(10);not null" json:"format"`
	Options           JSONB     `gorm:"type:jsonb" json:"options"`
	CleanedColumns    JSONB     `gorm:"type:jsonb" json:"cleaned_columns"`
	TotalRecords      int       `gorm:"default:0" json:"total_records"`
	ValidNumbers      int       `gorm:"default:0" json:"valid_numbers"`
	InvalidRemoved    int       `gorm:"default:0" json:"invalid_removed"`
	DuplicatesRemoved int       `gorm:"default:0" json:"duplicates_removed"`
	RowsAfterCleaning int       `gorm:"default:0" json:"rows_after_cleaning"`
	DurationMs        int64     `gorm:"default:0" json:"duration_ms"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index:idx_cleaning_runs_created" json:"created_at"`
}

// TableName specifies the table name for GORM
func (CleaningRun) TableName() string {
	return "cleaning_runs"
}

// BeforeCreate GORM hook - called before creating a record
func (r *CleaningRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NewCleaningRun builds the audit entry for a session's result
func NewCleaningRun(session *Session, result *CleaningResult, duration time.Duration) *CleaningRun {
	opts := result.Options
	return &CleaningRun{
		SessionID: session.ID,
		Filename:  session.Filename,
		FileHash:  session.FileHash,
		Format:    string(session.Format),
		Options: JSONB{
			"selected_columns":    opts.SelectedColumns,
			"keep_indian_only":    opts.KeepIndianOnly,
			"remove_country_code": opts.RemoveCountryCode,
			"merge_columns":       opts.MergeColumns,
			"remove_duplicates":   opts.RemoveDuplicates,
			"drop_empty_rows":     opts.DropEmptyRows,
			"whatsapp_format":     opts.WhatsAppFormat,
		},
		CleanedColumns:    JSONB{"columns": result.CleanedColumns},
		TotalRecords:      result.Metrics.TotalRecords,
		ValidNumbers:      result.Metrics.ValidNumbers,
		InvalidRemoved:    result.Metrics.InvalidRemoved,
		DuplicatesRemoved: result.Metrics.DuplicatesRemoved,
		RowsAfterCleaning: result.Metrics.RowsAfterCleaning,
		DurationMs:        duration.Milliseconds(),
	}
}

// JSONB is a custom type for JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}

	out := make(JSONB)
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal jsonb: %w", err)
	}
	*j = out
	return nil
}
