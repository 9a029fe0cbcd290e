package parsers

import (
	"context"
	"path/filepath"
	"strings"

	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
)

// ParserFactory creates the appropriate parser based on file extension
type ParserFactory struct {
	config  *ParserConfig
	parsers map[string]FileParser
}

// NewParserFactory creates a new parser factory with all built-in parsers
func NewParserFactory(config *ParserConfig) *ParserFactory {
	if config == nil {
		config = DefaultParserConfig()
	}

	factory := &ParserFactory{
		config:  config,
		parsers: make(map[string]FileParser),
	}

	// Register built-in parsers
	factory.RegisterParser(NewCSVParser(config))
	factory.RegisterParser(NewExcelParser(config))

	return factory
}

// RegisterParser registers a custom parser
func (f *ParserFactory) RegisterParser(parser FileParser) {
	for _, ext := range parser.SupportedFormats() {
		f.parsers[normalizeExt(ext)] = parser
	}
}

// GetParser returns the appropriate parser for a file extension
func (f *ParserFactory) GetParser(fileExt string) (FileParser, error) {
	parser, exists := f.parsers[normalizeExt(fileExt)]
	if !exists {
		return nil, apperrors.UnsupportedFormat(fileExt)
	}
	return parser, nil
}

// Parse selects a parser from the filename and parses data. The size
// ceiling is enforced before any parsing happens.
func (f *ParserFactory) Parse(ctx context.Context, filename string, data []byte) (*ParseResult, error) {
	parser, err := f.GetParser(filepath.Ext(filename))
	if err != nil {
		return nil, err
	}

	if f.config.MaxFileSize > 0 && int64(len(data)) > f.config.MaxFileSize {
		return nil, apperrors.FileTooLarge(f.config.MaxFileSize / (1024 * 1024))
	}

	return parser.Parse(ctx, data)
}

// SupportedFormats returns all supported file extensions
func (f *ParserFactory) SupportedFormats() []string {
	formats := make([]string, 0, len(f.parsers))
	for ext := range f.parsers {
		formats = append(formats, ext)
	}
	return formats
}

// IsSupported checks if a file extension is supported
func (f *ParserFactory) IsSupported(fileExt string) bool {
	_, exists := f.parsers[normalizeExt(fileExt)]
	return exists
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
