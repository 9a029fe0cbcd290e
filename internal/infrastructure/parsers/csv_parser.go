package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser parses CSV files
type CSVParser struct {
	config *ParserConfig
}

// NewCSVParser creates a new CSV parser
func NewCSVParser(config *ParserConfig) *CSVParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &CSVParser{
		config: config,
	}
}

// Parse reads CSV data. UTF-8 input has its BOM stripped; anything that is
// not valid UTF-8 is decoded as ISO-8859-1.
func (p *CSVParser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.CorruptFile("the file is empty", nil)
	}

	csvReader := csv.NewReader(decodeText(data))
	csvReader.FieldsPerRecord = -1 // Allow variable number of fields per record

	// Read header row
	header, err := csvReader.Read()
	if err != nil {
		return nil, apperrors.CorruptFile("failed to read CSV header", err)
	}

	builder := newTableBuilder(p.config, header)

	// Read data rows
	for {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed record rejects the whole file, no partial table
			return nil, apperrors.CorruptFile("malformed CSV record", err)
		}

		builder.add(row)
	}

	return builder.result(domain.FormatCSV)
}

// SupportedFormats returns the file extensions this parser supports
func (p *CSVParser) SupportedFormats() []string {
	return []string{".csv"}
}

func decodeText(data []byte) io.Reader {
	if utf8.Valid(data) {
		return transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(data))
}
