package parsers

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
)

// Spreadsheet error tokens that carry no value
var errorTokens = map[string]bool{
	"#N/A":    true,
	"#NULL!":  true,
	"#VALUE!": true,
	"#REF!":   true,
	"#DIV/0!": true,
	"#NAME?":  true,
	"#NUM!":   true,
}

// normalizeHeader trims column names, names blank columns Column_<n> and
// suffixes repeats with _2, _3 ... so every name is unique.
func normalizeHeader(raw []string) []string {
	names := make([]string, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		names[i] = name
	}

	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = false
	}

	out := make([]string, len(names))
	for i, name := range names {
		if !taken[name] {
			taken[name] = true
			out[i] = name
			continue
		}
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s_%d", name, n)
			if _, exists := taken[candidate]; !exists {
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// toCell trims a raw value and maps blanks and error tokens to Absent
func toCell(raw string) domain.Cell {
	v := strings.TrimSpace(raw)
	if v == "" || errorTokens[strings.ToUpper(v)] {
		return domain.Absent()
	}
	return domain.Present(v)
}

// tableBuilder accumulates aligned rows under a fixed header
type tableBuilder struct {
	config  *ParserConfig
	columns []string
	rows    [][]domain.Cell
	total   int
	skipped int
}

func newTableBuilder(config *ParserConfig, header []string) *tableBuilder {
	capacity := config.MaxRowsInMemory
	if capacity <= 0 || capacity > 10000 {
		capacity = 1024
	}
	return &tableBuilder{
		config:  config,
		columns: normalizeHeader(header),
		rows:    make([][]domain.Cell, 0, capacity),
	}
}

// add converts one raw record. Extra trailing fields are dropped, missing
// ones are Absent.
func (b *tableBuilder) add(record []string) {
	b.total++

	row := make([]domain.Cell, len(b.columns))
	present := false
	for i := range b.columns {
		if i >= len(record) {
			break
		}
		row[i] = toCell(record[i])
		if row[i].IsPresent() {
			present = true
		}
	}

	if !present && b.config.SkipEmptyRows {
		b.skipped++
		return
	}
	b.rows = append(b.rows, row)
}

func (b *tableBuilder) result(format domain.FileFormat) (*ParseResult, error) {
	if len(b.rows) == 0 {
		return nil, apperrors.CorruptFile("the file has no data rows", nil)
	}
	return &ParseResult{
		Table:       domain.NewTable(b.columns, b.rows),
		Format:      format,
		TotalRows:   b.total,
		SkippedRows: b.skipped,
	}, nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
