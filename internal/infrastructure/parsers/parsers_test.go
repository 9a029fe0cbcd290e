package parsers

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCSVParser_Parse(t *testing.T) {
	csvContent := `Name,Phone,City
John Doe,9876543210,Mumbai
Jane Smith,+91 91234 56789,Pune
Bob Johnson,,Delhi
`
	parser := NewCSVParser(nil)
	result, err := parser.Parse(context.Background(), []byte(csvContent))

	require.NoError(t, err)
	require.NotNil(t, result.Table)
	assert.Equal(t, domain.FormatCSV, result.Format)
	assert.Equal(t, []string{"Name", "Phone", "City"}, result.Table.Columns)
	assert.Equal(t, 3, result.Table.TotalRows())

	assert.Equal(t, "+91 91234 56789", result.Table.Cell(1, "Phone").Text())
	assert.False(t, result.Table.Cell(2, "Phone").IsPresent())
}

func TestCSVParser_SkipEmptyRows(t *testing.T) {
	csvContent := `Name,Phone
John,9876543210
,
Jane,9123456789
 , 
`
	parser := NewCSVParser(nil)
	result, err := parser.Parse(context.Background(), []byte(csvContent))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Table.TotalRows())
	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.SkippedRows)
}

func TestCSVParser_TrimWhitespace(t *testing.T) {
	csvContent := `  Name  ,  Phone
  John  ,  9876543210
`
	result, err := NewCSVParser(nil).Parse(context.Background(), []byte(csvContent))

	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Phone"}, result.Table.Columns)
	assert.Equal(t, "John", result.Table.Cell(0, "Name").Text())
	assert.Equal(t, "9876543210", result.Table.Cell(0, "Phone").Text())
}

func TestCSVParser_MissingColumns(t *testing.T) {
	csvContent := `Name,Age,City
John,30,New York
Jane,25
Bob
`
	result, err := NewCSVParser(nil).Parse(context.Background(), []byte(csvContent))

	require.NoError(t, err)
	assert.Equal(t, 3, result.Table.TotalRows())
	assert.False(t, result.Table.Cell(1, "City").IsPresent())
	assert.False(t, result.Table.Cell(2, "Age").IsPresent())
}

func TestCSVParser_ErrorTokensAreAbsent(t *testing.T) {
	csvContent := "Name,Phone\nJohn,#N/A\nJane,#null!\n"
	result, err := NewCSVParser(nil).Parse(context.Background(), []byte(csvContent))

	require.NoError(t, err)
	assert.False(t, result.Table.Cell(0, "Phone").IsPresent())
	assert.False(t, result.Table.Cell(1, "Phone").IsPresent())
}

func TestCSVParser_HeaderDisambiguation(t *testing.T) {
	csvContent := "Phone,,Phone,Phone_2\n1,2,3,4\n"
	result, err := NewCSVParser(nil).Parse(context.Background(), []byte(csvContent))

	require.NoError(t, err)
	assert.Equal(t, []string{"Phone", "Column_2", "Phone_3", "Phone_2"}, result.Table.Columns)
}

func TestCSVParser_Encodings(t *testing.T) {
	t.Run("utf-8 with BOM", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Name,Phone\nJosé,9876543210\n")...)
		result, err := NewCSVParser(nil).Parse(context.Background(), data)

		require.NoError(t, err)
		assert.Equal(t, "Name", result.Table.Columns[0])
		assert.Equal(t, "José", result.Table.Cell(0, "Name").Text())
	})

	t.Run("latin-1 fallback", func(t *testing.T) {
		data := []byte("Name,Phone\nJos\xe9,9876543210\n")
		result, err := NewCSVParser(nil).Parse(context.Background(), data)

		require.NoError(t, err)
		assert.Equal(t, "José", result.Table.Cell(0, "Name").Text())
	})
}

func TestCSVParser_CorruptInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\n"},
		{"header only", "Name,Phone\n"},
		{"only blank rows", "Name,Phone\n,\n,\n"},
		{"bare quote", "Name,Phone\nJohn,\"98765\"43210\n"},
	}

	parser := NewCSVParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parser.Parse(context.Background(), []byte(tt.content))
			assert.Nil(t, result)
			assert.ErrorIs(t, err, apperrors.ErrCorruptFile)
		})
	}
}

func TestCSVParser_SupportedFormats(t *testing.T) {
	assert.Equal(t, []string{".csv"}, NewCSVParser(nil).SupportedFormats())
}

func TestExcelParser_Parse(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Name", "Mobile", " Notes "},
		{"Asha", int64(9876543210), "call"},
		{nil, nil, nil},
		{"Ravi", "+919123456789", "#N/A"},
	})

	result, err := NewExcelParser(nil).Parse(context.Background(), data)

	require.NoError(t, err)
	assert.Equal(t, domain.FormatXLSX, result.Format)
	assert.Equal(t, []string{"Name", "Mobile", "Notes"}, result.Table.Columns)
	assert.Equal(t, 2, result.Table.TotalRows())

	assert.Equal(t, "9876543210", result.Table.Cell(0, "Mobile").Text())
	assert.Equal(t, "+919123456789", result.Table.Cell(1, "Mobile").Text())
	assert.False(t, result.Table.Cell(1, "Notes").IsPresent())
}

func TestExcelParser_Corrupt(t *testing.T) {
	_, err := NewExcelParser(nil).Parse(context.Background(), []byte("not a zip archive"))
	assert.ErrorIs(t, err, apperrors.ErrCorruptFile)

	_, err = NewExcelParser(nil).Parse(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrCorruptFile)

	headerOnly := buildWorkbook(t, [][]interface{}{{"Name", "Phone"}})
	_, err = NewExcelParser(nil).Parse(context.Background(), headerOnly)
	assert.ErrorIs(t, err, apperrors.ErrCorruptFile)
}

func TestExcelParser_SupportedFormats(t *testing.T) {
	assert.Equal(t, []string{".xlsx"}, NewExcelParser(nil).SupportedFormats())
}

func TestParserFactory_GetParser(t *testing.T) {
	factory := NewParserFactory(nil)

	tests := []struct {
		ext      string
		expected FileParser
	}{
		{".csv", &CSVParser{}},
		{"csv", &CSVParser{}},
		{".CSV", &CSVParser{}},
		{".xlsx", &ExcelParser{}},
		{".XLSX", &ExcelParser{}},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			parser, err := factory.GetParser(tt.ext)
			require.NoError(t, err)
			assert.IsType(t, tt.expected, parser)
		})
	}
}

func TestParserFactory_Unsupported(t *testing.T) {
	factory := NewParserFactory(nil)

	for _, name := range []string{"contacts.xls", "contacts.json", "contacts.txt", "contacts"} {
		t.Run(name, func(t *testing.T) {
			_, err := factory.Parse(context.Background(), name, []byte("Phone\n9876543210\n"))
			assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
		})
	}
}

func TestParserFactory_Parse(t *testing.T) {
	factory := NewParserFactory(nil)

	result, err := factory.Parse(context.Background(), "Contacts.CSV", []byte("Phone\n9876543210\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatCSV, result.Format)

	xlsx := buildWorkbook(t, [][]interface{}{{"Phone"}, {"9876543210"}})
	result, err = factory.Parse(context.Background(), "contacts.xlsx", xlsx)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatXLSX, result.Format)
}

func TestParserFactory_MaxFileSize(t *testing.T) {
	config := DefaultParserConfig()
	config.MaxFileSize = 1024 * 1024

	factory := NewParserFactory(config)

	// Oversized and malformed: the size check wins because it runs first
	data := bytes.Repeat([]byte("\""), 2*1024*1024)
	_, err := factory.Parse(context.Background(), "big.csv", data)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
	assert.Contains(t, err.Error(), "1 MB")
}

func TestParserFactory_IsSupported(t *testing.T) {
	factory := NewParserFactory(nil)

	assert.True(t, factory.IsSupported(".csv"))
	assert.True(t, factory.IsSupported("XLSX"))
	assert.False(t, factory.IsSupported(".json"))
	assert.ElementsMatch(t, []string{".csv", ".xlsx"}, factory.SupportedFormats())
}

func TestContext_Cancellation(t *testing.T) {
	var b strings.Builder
	b.WriteString("Phone\n")
	for i := 0; i < 100; i++ {
		b.WriteString("9876543210\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVParser(nil).Parse(ctx, []byte(b.String()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultParserConfig(t *testing.T) {
	config := DefaultParserConfig()

	assert.Equal(t, 10000, config.MaxRowsInMemory)
	assert.True(t, config.SkipEmptyRows)
	assert.Equal(t, int64(50*1024*1024), config.MaxFileSize)
}
