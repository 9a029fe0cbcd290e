package parsers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ExcelParser parses .xlsx workbooks
type ExcelParser struct {
	config *ParserConfig
}

// NewExcelParser creates a new Excel parser
func NewExcelParser(config *ParserConfig) *ExcelParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &ExcelParser{
		config: config,
	}
}

// Parse reads the first sheet of a workbook held in memory
func (p *ExcelParser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	if len(data) == 0 {
		return nil, apperrors.CorruptFile("the file is empty", nil)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.CorruptFile("failed to open Excel workbook", err)
	}
	defer f.Close()

	return p.parseExcelFile(ctx, f)
}

// parseExcelFile extracts data from the first sheet of an Excel file.
// Raw cell values are used so long numbers are not reformatted.
func (p *ExcelParser) parseExcelFile(ctx context.Context, f *excelize.File) (*ParseResult, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, apperrors.CorruptFile("no sheets found in Excel file", nil)
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, apperrors.CorruptFile(fmt.Sprintf("failed to read sheet %s", sheetName), err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, apperrors.CorruptFile("the sheet is empty", rows.Error())
	}
	header, err := rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.CorruptFile("failed to read header row", err)
	}
	if len(header) == 0 {
		return nil, apperrors.CorruptFile("the header row is empty", nil)
	}

	builder := newTableBuilder(p.config, header)

	for rows.Next() {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		row, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.CorruptFile("failed to read row", err)
		}
		builder.add(row)
	}
	if err := rows.Error(); err != nil {
		return nil, apperrors.CorruptFile("failed to read rows", err)
	}

	return builder.result(domain.FormatXLSX)
}

// SupportedFormats returns the file extensions this parser supports
func (p *ExcelParser) SupportedFormats() []string {
	return []string{".xlsx"}
}
