package domain

import "time"

// Metrics accounts for every evaluated cell of a clean call.
//
// EvaluatedUnits == ValidNumbers + InvalidRemoved + DuplicatesRemoved.
// TotalRecords is the input row count; RowsAfterCleaning <= TotalRecords.
type Metrics struct {
	TotalRecords      int `json:"total_records"`
	ValidNumbers      int `json:"valid_numbers"`
	InvalidRemoved    int `json:"invalid_removed"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	RowsAfterCleaning int `json:"rows_after_cleaning"`
	EvaluatedUnits    int `json:"evaluated_units"`
}

// CleaningResult is the outcome of one clean call on a session.
// A session keeps only its most recent result.
type CleaningResult struct {
	SessionID      string          `json:"session_id"`
	SourceFilename string          `json:"source_filename"`
	SourceFormat   FileFormat      `json:"source_format"`
	Options        CleaningOptions `json:"options"`
	CleanedTable   *Table          `json:"cleaned_table"`
	Metrics        Metrics         `json:"metrics"`
	BeforePreview  Preview         `json:"before_preview"`
	AfterPreview   Preview         `json:"after_preview"`
	CleanedColumns []string        `json:"cleaned_columns"`
	CreatedAt      time.Time       `json:"created_at"`
}
