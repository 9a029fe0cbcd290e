// Package artifacts renders cleaning results as downloadable files.
package artifacts

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Generator implements the Renderer interface
type Generator struct {
	logger *slog.Logger
}

var _ Renderer = (*Generator)(nil)

// NewGenerator creates a new artifact generator
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		logger: logger,
	}
}

// RenderFile writes the cleaned table as CSV or XLSX, matching the upload
func (g *Generator) RenderFile(result *domain.CleaningResult) (*Artifact, error) {
	if result == nil || result.CleanedTable == nil {
		return nil, apperrors.NoResult("")
	}

	var (
		data        []byte
		contentType string
		err         error
	)

	format := result.SourceFormat
	switch format {
	case domain.FormatXLSX:
		data, err = renderXLSX(result.CleanedTable)
		contentType = ContentTypeXLSX
	case domain.FormatCSV, "":
		format = domain.FormatCSV
		data, err = renderCSV(result.CleanedTable)
		contentType = ContentTypeCSV
	default:
		return nil, apperrors.UnsupportedFormat(string(format))
	}
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to render cleaned file")
	}

	artifact := &Artifact{
		Filename:    CleanedFilename(result.SourceFilename, format),
		ContentType: contentType,
		Data:        data,
	}

	g.logger.Debug("cleaned file rendered",
		slog.String("session_id", result.SessionID),
		slog.String("filename", artifact.Filename),
		slog.Int("bytes", artifact.Size()))

	return artifact, nil
}

// RenderReport writes the plain-text cleaning summary
func (g *Generator) RenderReport(result *domain.CleaningResult) (*Artifact, error) {
	if result == nil {
		return nil, apperrors.NoResult("")
	}

	m := result.Metrics
	rule := strings.Repeat("=", 40)

	var b strings.Builder
	lines := []string{
		"PhoneClean - Cleaning Summary Report",
		rule,
		fmt.Sprintf("Original File     : %s", result.SourceFilename),
		fmt.Sprintf("Total Records     : %d", m.TotalRecords),
		fmt.Sprintf("Valid Numbers     : %d", m.ValidNumbers),
		fmt.Sprintf("Invalid Removed   : %d", m.InvalidRemoved),
		fmt.Sprintf("Duplicates Removed: %d", m.DuplicatesRemoved),
		fmt.Sprintf("Rows After Clean  : %d", m.RowsAfterCleaning),
		rule,
		fmt.Sprintf("Cleaned Columns   : %s", strings.Join(result.CleanedColumns, ", ")),
		"Options:",
	}
	lines = append(lines, optionLines(result.Options)...)
	lines = append(lines, rule, "Generated by PhoneClean")

	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")

	return &Artifact{
		Filename:    ReportFilename,
		ContentType: ContentTypeText,
		Data:        []byte(b.String()),
	}, nil
}

func optionLines(o domain.CleaningOptions) []string {
	flags := []struct {
		label string
		on    bool
	}{
		{"Keep Indian Only", o.KeepIndianOnly},
		{"Remove Country Code", o.RemoveCountryCode},
		{"Merge Columns", o.MergeColumns},
		{"Remove Duplicates", o.RemoveDuplicates},
		{"Drop Empty Rows", o.DropEmptyRows},
		{"WhatsApp Format", o.WhatsAppFormat},
	}

	lines := make([]string, 0, len(flags))
	for _, f := range flags {
		state := "off"
		if f.on {
			state = "on"
		}
		lines = append(lines, fmt.Sprintf("  %-20s: %s", f.label, state))
	}
	return lines
}

// CleanedFilename derives "<base>_cleaned.<ext>" from the uploaded name
func CleanedFilename(original string, format domain.FileFormat) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "contacts"
	}
	return base + "_cleaned" + format.Extension()
}

func renderCSV(table *domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(table.Columns); err != nil {
		return nil, err
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, c := range row {
			record[i] = c.Text()
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderXLSX streams rows into a single sheet. Values are written as
// strings so numbers keep their leading "+" and are not reformatted.
func renderXLSX(table *domain.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	for r, row := range table.Rows {
		values := make([]interface{}, len(row))
		for i, c := range row {
			if text, ok := c.Value(); ok {
				values[i] = text
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
