package domain

// FileFormat identifies the family of an uploaded file
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
)

// Extension returns the file extension including the dot
func (f FileFormat) Extension() string {
	return "." + string(f)
}

// Table is an ordered, column-aligned grid of cells.
// Column names are unique. Tables are treated as immutable once built;
// derived tables are always new values.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// NewTable builds a table, padding short rows with absent cells and
// truncating long ones so every row aligns with the columns.
func NewTable(columns []string, rows [][]Cell) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)

	aligned := make([][]Cell, len(rows))
	for i, row := range rows {
		if len(row) == len(cols) {
			aligned[i] = row
			continue
		}
		fixed := make([]Cell, len(cols))
		copy(fixed, row)
		aligned[i] = fixed
	}

	return &Table{Columns: cols, Rows: aligned}
}

// TotalRows returns the number of data rows
func (t *Table) TotalRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Columns {
		if col == name {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the cell at row for the named column
func (t *Table) Cell(row int, column string) Cell {
	idx, ok := t.ColumnIndex(column)
	if !ok || row < 0 || row >= len(t.Rows) {
		return Absent()
	}
	return t.Rows[row][idx]
}

// Preview is a bounded window over a table, as shown to the client.
// Absent cells render as null.
type Preview struct {
	Columns   []string             `json:"columns"`
	Rows      []map[string]*string `json:"rows"`
	TotalRows int                  `json:"total_rows"`
}

// Preview returns the first limit rows of the table
func (t *Table) Preview(limit int) Preview {
	n := len(t.Rows)
	if limit >= 0 && limit < n {
		n = limit
	}

	rows := make([]map[string]*string, 0, n)
	for _, row := range t.Rows[:n] {
		record := make(map[string]*string, len(t.Columns))
		for i, col := range t.Columns {
			record[col] = row[i].Display()
		}
		rows = append(rows, record)
	}

	columns := make([]string, len(t.Columns))
	copy(columns, t.Columns)

	return Preview{
		Columns:   columns,
		Rows:      rows,
		TotalRows: len(t.Rows),
	}
}
