package domain

import (
	"bytes"
	"encoding/json"
)

// Cell is a single table value: either present text or absent.
// Invalid phone numbers are represented as Absent, never as a marker string.
type Cell struct {
	text    string
	present bool
}

// Present returns a cell holding text
func Present(text string) Cell {
	return Cell{text: text, present: true}
}

// Absent returns an empty cell
func Absent() Cell {
	return Cell{}
}

// Value returns the text and whether the cell is present
func (c Cell) Value() (string, bool) {
	return c.text, c.present
}

// Text returns the text, or "" for an absent cell
func (c Cell) Text() string {
	return c.text
}

// IsPresent reports whether the cell holds a value
func (c Cell) IsPresent() bool {
	return c.present
}

// Display returns a pointer suitable for previews: nil when absent
func (c Cell) Display() *string {
	if !c.present {
		return nil
	}
	text := c.text
	return &text
}

// MarshalJSON encodes present cells as strings and absent cells as null
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.present {
		return []byte("null"), nil
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON decodes a string or null
func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Absent()
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*c = Present(text)
	return nil
}
