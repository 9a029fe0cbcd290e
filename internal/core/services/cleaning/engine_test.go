package cleaning

import (
	"context"
	"fmt"
	"testing"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phone"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/alejandroruanova/phoneclean-service/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), logger.Discard())
}

func cell(v string) domain.Cell {
	if v == "" {
		return domain.Absent()
	}
	return domain.Present(v)
}

func sessionWith(columns []string, rows ...[]string) *domain.Session {
	cells := make([][]domain.Cell, len(rows))
	for i, row := range rows {
		cells[i] = make([]domain.Cell, len(row))
		for j, v := range row {
			cells[i][j] = cell(v)
		}
	}
	return &domain.Session{
		ID:       "session-1",
		Filename: "contacts.csv",
		Format:   domain.FormatCSV,
		Table:    domain.NewTable(columns, cells),
	}
}

func columnValues(t *testing.T, table *domain.Table, column string) []*string {
	t.Helper()
	idx, ok := table.ColumnIndex(column)
	require.True(t, ok, "missing column %s", column)

	out := make([]*string, len(table.Rows))
	for i, row := range table.Rows {
		out[i] = row[idx].Display()
	}
	return out
}

func str(s string) *string { return &s }

func TestClean_DedupWorkedExample(t *testing.T) {
	session := sessionWith([]string{"Phone"},
		[]string{"+919876543210"},
		[]string{"9876543210"},
		[]string{"12345"},
		[]string{""},
	)

	opts := domain.CleaningOptions{
		SelectedColumns:   []string{"Phone"},
		KeepIndianOnly:    true,
		RemoveCountryCode: true,
		RemoveDuplicates:  true,
	}

	result, err := newTestEngine().Clean(context.Background(), session, opts)
	require.NoError(t, err)

	assert.Equal(t, []*string{str("9876543210"), nil, nil, nil}, columnValues(t, result.CleanedTable, "Phone"))
	assert.Equal(t, domain.Metrics{
		TotalRecords:      4,
		ValidNumbers:      1,
		InvalidRemoved:    2,
		DuplicatesRemoved: 1,
		RowsAfterCleaning: 4,
		EvaluatedUnits:    4,
	}, result.Metrics)
	assert.Equal(t, []string{"Phone"}, result.CleanedColumns)
}

func TestClean_WhatsAppFormat(t *testing.T) {
	session := sessionWith([]string{"Phone"}, []string{"9876543210"})

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns: []string{"Phone"},
		KeepIndianOnly:  true,
		WhatsAppFormat:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []*string{str("+919876543210")}, columnValues(t, result.CleanedTable, "Phone"))
}

func TestClean_MergeColumns(t *testing.T) {
	session := sessionWith([]string{"Name", "Phone1", "Phone2"},
		[]string{"Asha", "abc", "9123456789"},
		[]string{"Ravi", "9876543210", "9000000001"},
		[]string{"Meena", "", "x"},
	)

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns:   []string{"Phone1", "Phone2"},
		KeepIndianOnly:    true,
		RemoveCountryCode: true,
		MergeColumns:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", MergedColumnName}, result.CleanedTable.Columns)
	assert.Equal(t, []string{MergedColumnName}, result.CleanedColumns)
	assert.Equal(t,
		[]*string{str("9123456789"), str("9876543210"), nil},
		columnValues(t, result.CleanedTable, MergedColumnName))

	// One evaluated unit per row when merging
	assert.Equal(t, 3, result.Metrics.EvaluatedUnits)
	assert.Equal(t, 2, result.Metrics.ValidNumbers)
	assert.Equal(t, 1, result.Metrics.InvalidRemoved)
}

func TestClean_MergeNameAvoidsCollision(t *testing.T) {
	session := sessionWith([]string{MergedColumnName, "A", "B"},
		[]string{"keep", "9876543210", "9123456789"},
	)

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns: []string{"A", "B"},
		KeepIndianOnly:  true,
		MergeColumns:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{MergedColumnName, MergedColumnName + "_2"}, result.CleanedTable.Columns)
}

func TestClean_MergeNeedsTwoColumns(t *testing.T) {
	session := sessionWith([]string{"Phone"}, []string{"9876543210"})
	opts := domain.CleaningOptions{SelectedColumns: []string{"Phone"}, KeepIndianOnly: true, MergeColumns: true}

	result, err := newTestEngine().Clean(context.Background(), session, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"Phone"}, result.CleanedTable.Columns)
	assert.NotContains(t, newTestEngine().Stages(opts), StageMerge)
}

func TestClean_DedupAcrossColumns(t *testing.T) {
	session := sessionWith([]string{"Primary", "Secondary"},
		[]string{"9876543210", "+91 98765 43210"},
		[]string{"09876543210", "9123456789"},
	)

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns:   []string{"Primary", "Secondary"},
		KeepIndianOnly:    true,
		RemoveCountryCode: true,
		RemoveDuplicates:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []*string{str("9876543210"), nil}, columnValues(t, result.CleanedTable, "Primary"))
	assert.Equal(t, []*string{nil, str("9123456789")}, columnValues(t, result.CleanedTable, "Secondary"))
	assert.Equal(t, 2, result.Metrics.DuplicatesRemoved)
	assert.Equal(t, 2, result.Metrics.ValidNumbers)
	assert.Equal(t, 4, result.Metrics.EvaluatedUnits)
}

func TestClean_DropEmptyRows(t *testing.T) {
	session := sessionWith([]string{"Name", "Phone"},
		[]string{"Asha", "9876543210"},
		[]string{"Ravi", "bad"},
		[]string{"Meena", "9876543210"},
		[]string{"Kiran", "7012345678"},
	)

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns:   []string{"Phone"},
		KeepIndianOnly:    true,
		RemoveCountryCode: true,
		RemoveDuplicates:  true,
		DropEmptyRows:     true,
	})
	require.NoError(t, err)

	// Ravi is invalid, Meena became a duplicate: both rows go
	assert.Equal(t, 2, result.Metrics.RowsAfterCleaning)
	assert.Equal(t, 4, result.Metrics.TotalRecords)
	assert.Equal(t, []*string{str("Asha"), str("Kiran")}, columnValues(t, result.CleanedTable, "Name"))
}

func TestClean_CountryCodeKept(t *testing.T) {
	session := sessionWith([]string{"Phone"}, []string{"+91 9876543210"}, []string{"9123456789"})

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns: []string{"Phone"},
		KeepIndianOnly:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []*string{str("919876543210"), str("9123456789")}, columnValues(t, result.CleanedTable, "Phone"))
}

func TestClean_CountryCodeAlways(t *testing.T) {
	config := DefaultConfig()
	config.CountryCodePolicy = phone.CountryCodeAlways
	engine := NewEngine(config, logger.Discard())

	session := sessionWith([]string{"Phone"},
		[]string{"9876543210"}, []string{"+919812345678"}, []string{"12345"})

	result, err := engine.Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns: []string{"Phone"},
		KeepIndianOnly:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []*string{str("919876543210"), str("919812345678"), nil},
		columnValues(t, result.CleanedTable, "Phone"))
}

func TestClean_NonSelectedColumnsUntouched(t *testing.T) {
	session := sessionWith([]string{"Name", "Phone", "Code"},
		[]string{"Asha", "9876543210", "12345"},
	)

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns: []string{"Phone"},
		KeepIndianOnly:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Phone", "Code"}, result.CleanedTable.Columns)
	assert.Equal(t, []*string{str("12345")}, columnValues(t, result.CleanedTable, "Code"))
	// Source table is not modified
	assert.Equal(t, "9876543210", session.Table.Cell(0, "Phone").Text())
}

func TestClean_Validation(t *testing.T) {
	session := sessionWith([]string{"Phone"}, []string{"9876543210"})
	engine := newTestEngine()

	_, err := engine.Clean(context.Background(), session, domain.CleaningOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNoColumnsSelected)

	_, err = engine.Clean(context.Background(), session, domain.CleaningOptions{SelectedColumns: []string{"Mobile"}})
	assert.ErrorIs(t, err, apperrors.ErrUnknownColumn)

	_, err = engine.Clean(context.Background(), &domain.Session{}, domain.CleaningOptions{SelectedColumns: []string{"Phone"}})
	assert.Error(t, err)
}

func TestClean_RepeatedSelectionCollapsed(t *testing.T) {
	session := sessionWith([]string{"Phone"}, []string{"9876543210"}, []string{"bad"})

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns: []string{"Phone", "Phone"},
		KeepIndianOnly:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metrics.EvaluatedUnits)
	assert.Equal(t, []string{"Phone"}, result.CleanedColumns)
}

func TestClean_EmptyTable(t *testing.T) {
	session := &domain.Session{ID: "s", Table: domain.NewTable([]string{"Phone"}, nil)}

	result, err := newTestEngine().Clean(context.Background(), session, domain.CleaningOptions{SelectedColumns: []string{"Phone"}})
	require.NoError(t, err)
	assert.Equal(t, domain.Metrics{}, result.Metrics)
}

func TestClean_Cancelled(t *testing.T) {
	session := sessionWith([]string{"Phone"}, []string{"9876543210"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().Clean(ctx, session, domain.CleaningOptions{SelectedColumns: []string{"Phone"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClean_ParallelKeepsOrder(t *testing.T) {
	rows := make([][]string, 5000)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("98%08d", i)}
	}
	session := sessionWith([]string{"Phone"}, rows...)

	engine := NewEngine(Config{Workers: 8, ChunkSize: 100, PreviewRows: 5}, logger.Discard())
	result, err := engine.Clean(context.Background(), session, domain.CleaningOptions{
		SelectedColumns:  []string{"Phone"},
		KeepIndianOnly:   true,
		RemoveDuplicates: true,
	})
	require.NoError(t, err)

	require.Equal(t, 5000, result.CleanedTable.TotalRows())
	for i := range rows {
		assert.Equal(t, rows[i][0], result.CleanedTable.Cell(i, "Phone").Text())
	}
	assert.Len(t, result.AfterPreview.Rows, 5)
	assert.Equal(t, 5000, result.AfterPreview.TotalRows)
}

func TestStages(t *testing.T) {
	engine := newTestEngine()

	assert.Equal(t, []string{StageNormalize, StageFormat},
		engine.Stages(domain.CleaningOptions{SelectedColumns: []string{"A"}}))

	assert.Equal(t, []string{StageNormalize, StageMerge, StageDedup, StageDrop, StageFormat},
		engine.Stages(domain.CleaningOptions{
			SelectedColumns:  []string{"A", "B"},
			MergeColumns:     true,
			RemoveDuplicates: true,
			DropEmptyRows:    true,
		}))
}
