// Package detection scores table columns for phone-number content.
package detection

import (
	"strings"
	"unicode"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phone"
)

const (
	DefaultSampleSize = 50
	DefaultThreshold  = 0.5
	nameHintBoost     = 0.2
)

// nameKeywords are matched case-insensitively as substrings of the header
var nameKeywords = []string{
	"phone", "mobile", "contact", "number", "whatsapp", "alt no",
	"alternate", "primary", "secondary", "emergenc",
}

// nameTokens are abbreviations that only count as whole words, so
// "Ph No" is a hint while "Alpha" or "Hotel" are not
var nameTokens = map[string]bool{
	"ph": true, "mob": true, "mobi": true, "num": true,
	"tel": true, "cell": true, "fone": true,
}

// ColumnScore is the detection evidence for one column
type ColumnScore struct {
	Column   string  `json:"column"`
	Sampled  int     `json:"sampled"`
	Valid    int     `json:"valid"`
	Score    float64 `json:"score"`
	NameHint bool    `json:"name_hint"`
	Detected bool    `json:"detected"`
}

// Detector samples each column and validates the sample as phone numbers
type Detector struct {
	sampleSize int
	threshold  float64
	validate   func(string) bool
}

// NewDetector creates a detector. Non-positive values fall back to defaults.
func NewDetector(sampleSize int, threshold float64) *Detector {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{
		sampleSize: sampleSize,
		threshold:  threshold,
		validate:   phone.Validate,
	}
}

// Detect scores every column of the table, in column order
func (d *Detector) Detect(table *domain.Table) []ColumnScore {
	if table == nil {
		return nil
	}

	scores := make([]ColumnScore, 0, len(table.Columns))
	for idx, col := range table.Columns {
		scores = append(scores, d.scoreColumn(table, idx, col))
	}
	return scores
}

// DetectedColumns returns the names of detected columns, in column order
func (d *Detector) DetectedColumns(table *domain.Table) []string {
	detected := make([]string, 0)
	for _, s := range d.Detect(table) {
		if s.Detected {
			detected = append(detected, s.Column)
		}
	}
	return detected
}

func (d *Detector) scoreColumn(table *domain.Table, idx int, name string) ColumnScore {
	score := ColumnScore{
		Column:   name,
		NameHint: HasNameHint(name),
	}

	for _, row := range table.Rows {
		if score.Sampled >= d.sampleSize {
			break
		}
		text, ok := row[idx].Value()
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		score.Sampled++
		if d.validate(text) {
			score.Valid++
		}
	}

	if score.Sampled == 0 {
		return score
	}

	numeric := float64(score.Valid) / float64(score.Sampled)
	score.Score = numeric
	if score.NameHint {
		score.Score += nameHintBoost
	}
	if score.Score > 1 {
		score.Score = 1
	}

	// A header alone never detects a column
	score.Detected = numeric > 0 && score.Score >= d.threshold
	return score
}

// HasNameHint reports whether a header looks like a phone column
func HasNameHint(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, kw := range nameKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if nameTokens[w] {
			return true
		}
	}
	return false
}
