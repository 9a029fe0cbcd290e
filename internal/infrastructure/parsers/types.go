package parsers

import (
	"context"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
)

// ParseResult contains the parsed table and parsing statistics
type ParseResult struct {
	Table       *domain.Table
	Format      domain.FileFormat
	TotalRows   int
	SkippedRows int
}

// FileParser is the interface all parsers must implement
type FileParser interface {
	// Parse parses an uploaded file held in memory
	Parse(ctx context.Context, data []byte) (*ParseResult, error)

	// SupportedFormats returns the file extensions this parser supports
	SupportedFormats() []string
}

// ParserConfig holds configuration for all parsers
type ParserConfig struct {
	// MaxRowsInMemory is the initial row capacity reserved per table
	MaxRowsInMemory int

	// SkipEmptyRows determines if rows with no present cell should be skipped
	SkipEmptyRows bool

	// MaxFileSize is the maximum file size in bytes (0 = unlimited)
	MaxFileSize int64
}

// DefaultParserConfig returns sensible defaults
func DefaultParserConfig() *ParserConfig {
	return &ParserConfig{
		MaxRowsInMemory: 10000,
		SkipEmptyRows:   true,
		MaxFileSize:     50 * 1024 * 1024, // 50 MB
	}
}
