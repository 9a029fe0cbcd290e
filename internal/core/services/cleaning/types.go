package cleaning

import (
	"context"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phone"
)

// Stage names, in execution order
const (
	StageNormalize = "normalize"
	StageMerge     = "merge"
	StageDedup     = "dedup"
	StageDrop      = "drop"
	StageFormat    = "format"
)

// MergedColumnName is the synthetic column produced by merging
const MergedColumnName = "merged_phone"

// Config for the cleaning engine
type Config struct {
	Workers      int                `json:"workers"`       // Parallel normalization workers
	ChunkSize    int                `json:"chunk_size"`    // Minimum rows per worker chunk
	PreviewRows  int                `json:"preview_rows"`  // Rows shown in before/after previews
	LengthPolicy phone.LengthPolicy `json:"length_policy"` // Digit count rule when the Indian filter is off

	CountryCodePolicy phone.CountryCodePolicy `json:"country_code_policy"` // Where 91 is kept with remove_country_code off
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		ChunkSize:    512,
		PreviewRows:  20,
		LengthPolicy: phone.LengthExact10,

		CountryCodePolicy: phone.CountryCodeDetected,
	}
}

// Cleaner defines the interface for cleaning operations
type Cleaner interface {
	// Clean applies options to the session's table and returns a new result.
	// The session is not modified.
	Clean(ctx context.Context, session *domain.Session, opts domain.CleaningOptions) (*domain.CleaningResult, error)

	// Stages returns the stage names that run for the given options
	Stages(opts domain.CleaningOptions) []string
}

// run is the working state of one Clean call
type run struct {
	source     *domain.Table
	opts       domain.CleaningOptions
	normalizer *phone.Normalizer

	selection []string
	selIdx    []int

	// cells[row][k] is the canonical value of phone column k
	cells  [][]phone.Result
	merged bool
	keep   []bool

	duplicates int
	output     *domain.Table
	outColumns []string
}

// stage is a named, optionally gated step of the pipeline
type stage struct {
	name    string
	enabled func(r *run) bool
	exec    func(ctx context.Context, r *run) error
}

func always(*run) bool { return true }
