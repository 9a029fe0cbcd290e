package detection

import (
	"fmt"
	"testing"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func column(values ...string) [][]domain.Cell {
	rows := make([][]domain.Cell, len(values))
	for i, v := range values {
		if v == "" {
			rows[i] = []domain.Cell{domain.Absent()}
			continue
		}
		rows[i] = []domain.Cell{domain.Present(v)}
	}
	return rows
}

func TestDetect_AllValidColumn(t *testing.T) {
	table := domain.NewTable([]string{"Values"}, column("9876543210", "+91 9123456789", "09988776655"))
	d := NewDetector(0, 0)

	scores := d.Detect(table)
	require.Len(t, scores, 1)
	assert.Equal(t, 3, scores[0].Sampled)
	assert.Equal(t, 3, scores[0].Valid)
	assert.Equal(t, 1.0, scores[0].Score)
	assert.True(t, scores[0].Detected)
}

func TestDetect_FreeTextColumnNeverDetected(t *testing.T) {
	table := domain.NewTable([]string{"Phone Notes"}, column("call after 5", "John Smith", "n/a"))
	d := NewDetector(0, 0)

	scores := d.Detect(table)
	require.Len(t, scores, 1)
	assert.True(t, scores[0].NameHint)
	assert.Equal(t, 0, scores[0].Valid)
	assert.False(t, scores[0].Detected)
}

func TestDetect_EmptyColumn(t *testing.T) {
	table := domain.NewTable([]string{"Mobile"}, column("", "", ""))
	scores := NewDetector(0, 0).Detect(table)

	require.Len(t, scores, 1)
	assert.Equal(t, 0, scores[0].Sampled)
	assert.False(t, scores[0].Detected)
}

func TestDetect_NameHintBoost(t *testing.T) {
	// Two of five valid: 0.4 alone, 0.6 with the hint
	values := column("9876543210", "9123456789", "x", "y", "z")

	plain := NewDetector(0, 0).Detect(domain.NewTable([]string{"Values"}, values))
	hinted := NewDetector(0, 0).Detect(domain.NewTable([]string{"Contact"}, values))

	assert.False(t, plain[0].Detected)
	assert.True(t, hinted[0].Detected)
	assert.InDelta(t, 0.6, hinted[0].Score, 1e-9)
}

func TestDetect_AbbreviationInsideWordIsNoHint(t *testing.T) {
	// Two of five valid stays below the threshold without a real hint
	values := column("9876543210", "9123456789", "x", "y", "z")

	alpha := NewDetector(0, 0).Detect(domain.NewTable([]string{"Alpha"}, values))
	assert.False(t, alpha[0].NameHint)
	assert.False(t, alpha[0].Detected)

	ph := NewDetector(0, 0).Detect(domain.NewTable([]string{"Ph"}, values))
	assert.True(t, ph[0].Detected)
}

func TestDetect_SampleBound(t *testing.T) {
	values := make([]string, 0, 80)
	for i := 0; i < 60; i++ {
		values = append(values, fmt.Sprintf("98765%05d", i))
	}
	for i := 0; i < 20; i++ {
		values = append(values, "garbage")
	}

	scores := NewDetector(50, 0.5).Detect(domain.NewTable([]string{"C"}, column(values...)))
	assert.Equal(t, 50, scores[0].Sampled)
	assert.Equal(t, 50, scores[0].Valid)
}

func TestDetectedColumns_KeepsColumnOrder(t *testing.T) {
	table := domain.NewTable(
		[]string{"Name", "Phone", "City", "Alt"},
		[][]domain.Cell{
			{domain.Present("Asha"), domain.Present("9876543210"), domain.Present("Pune"), domain.Present("7012345678")},
			{domain.Present("Ravi"), domain.Present("+919123456789"), domain.Present("Delhi"), domain.Absent()},
		},
	)

	assert.Equal(t, []string{"Phone", "Alt"}, NewDetector(0, 0).DetectedColumns(table))
	assert.Empty(t, NewDetector(0, 0).DetectedColumns(domain.NewTable([]string{"Name"}, nil)))
}

func TestHasNameHint(t *testing.T) {
	assert.True(t, HasNameHint("  Mobile No "))
	assert.True(t, HasNameHint("WhatsApp"))
	assert.True(t, HasNameHint("Emergency Contact"))
	assert.False(t, HasNameHint("City"))

	tests := []struct {
		header string
		want   bool
	}{
		{"Ph No", true},
		{"ph.no", true},
		{"mob_num", true},
		{"Tel", true},
		{"Cell", true},
		{"Alpha", false},
		{"Graph", false},
		{"Hotel", false},
		{"Cellar", false},
		{"Numeral", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, HasNameHint(tt.header))
		})
	}
}
