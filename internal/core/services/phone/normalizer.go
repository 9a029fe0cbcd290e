// Package phone normalizes and validates Indian mobile numbers.
//
// A value moves through a fixed, named sequence of stages:
//
//	coerce -> strip -> country_prefix -> validate_length -> validate_leading_digit
//	       -> country_code -> whatsapp
//
// The first five produce the canonical ten-digit residue used for
// validation and deduplication. The last two only format valid output.
package phone

import (
	"fmt"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
)

// LengthPolicy decides the accepted digit count when the Indian filter is off
type LengthPolicy string

const (
	// LengthExact10 always requires exactly ten digits
	LengthExact10 LengthPolicy = "exact10"
	// LengthLenient accepts 7-15 digits when keep_indian_only is off
	LengthLenient LengthPolicy = "lenient"
)

// ParseLengthPolicy converts a config value into a LengthPolicy
func ParseLengthPolicy(s string) (LengthPolicy, error) {
	switch LengthPolicy(s) {
	case LengthExact10, "":
		return LengthExact10, nil
	case LengthLenient:
		return LengthLenient, nil
	default:
		return "", fmt.Errorf("unknown length policy %q", s)
	}
}

// CountryCodePolicy decides which valid numbers get 91 written back when
// remove_country_code is off
type CountryCodePolicy string

const (
	// CountryCodeDetected re-adds 91 only where the input carried a prefix
	CountryCodeDetected CountryCodePolicy = "detected"
	// CountryCodeAlways writes every ten-digit number as 91 plus the number
	CountryCodeAlways CountryCodePolicy = "always"
)

// ParseCountryCodePolicy converts a config value into a CountryCodePolicy
func ParseCountryCodePolicy(s string) (CountryCodePolicy, error) {
	switch CountryCodePolicy(s) {
	case CountryCodeDetected, "":
		return CountryCodeDetected, nil
	case CountryCodeAlways:
		return CountryCodeAlways, nil
	default:
		return "", fmt.Errorf("unknown country code policy %q", s)
	}
}

// Options are the per-request switches the normalizer honours
type Options struct {
	KeepIndianOnly    bool
	RemoveCountryCode bool
	WhatsAppFormat    bool
	CountryCode       CountryCodePolicy
}

// OptionsFrom extracts normalizer options from cleaning options
func OptionsFrom(o domain.CleaningOptions) Options {
	return Options{
		KeepIndianOnly:    o.KeepIndianOnly,
		RemoveCountryCode: o.RemoveCountryCode,
		WhatsAppFormat:    o.WhatsAppFormat,
	}
}

// StrictOptions validates as an Indian mobile number with no formatting
var StrictOptions = Options{KeepIndianOnly: true, RemoveCountryCode: true}

// Stage is a named processing step
type Stage struct {
	Name string
	Step ProcessingStep
}

// Result is the canonical form of one value. Residue is the ten-digit
// national number (or the lenient digit string) and is the dedup key.
type Result struct {
	Residue        string
	HasCountryCode bool
	Valid          bool
}

// Normalizer runs the stage pipeline for one option set
type Normalizer struct {
	opts      Options
	canonical []Stage
	format    []Stage
}

// New creates a normalizer for the given options and length policy
func New(opts Options, policy LengthPolicy) *Normalizer {
	if policy == "" {
		policy = LengthExact10
	}
	nodes := NewProcessingNodes(opts, policy)

	return &Normalizer{
		opts: opts,
		canonical: []Stage{
			{Name: "coerce", Step: nodes.Coerce},
			{Name: "strip", Step: nodes.StripNonDigits},
			{Name: "country_prefix", Step: nodes.NormalizeCountryPrefix},
			{Name: "validate_length", Step: nodes.ValidateLength},
			{Name: "validate_leading_digit", Step: nodes.ValidateLeadingDigit},
		},
		format: []Stage{
			{Name: "country_code", Step: nodes.KeepCountryCode},
			{Name: "whatsapp", Step: nodes.WhatsAppFormat},
		},
	}
}

// Canonicalize runs the validation stages on a cell
func (nz *Normalizer) Canonicalize(cell domain.Cell) Result {
	raw, ok := cell.Value()
	if !ok {
		return Result{}
	}

	n := &number{raw: raw}
	for _, stage := range nz.canonical {
		stage.Step(n)
		if n.invalid {
			return Result{}
		}
	}

	return Result{
		Residue:        n.digits,
		HasCountryCode: n.hasCountryCode,
		Valid:          true,
	}
}

// Format renders a canonical result as an output cell
func (nz *Normalizer) Format(r Result) domain.Cell {
	if !r.Valid {
		return domain.Absent()
	}

	n := &number{digits: r.Residue, hasCountryCode: r.HasCountryCode}
	for _, stage := range nz.format {
		stage.Step(n)
	}
	return domain.Present(n.out)
}

// Normalize canonicalizes and formats a cell in one call.
// It never fails: anything unrecognisable comes back Absent.
func (nz *Normalizer) Normalize(cell domain.Cell) domain.Cell {
	return nz.Format(nz.Canonicalize(cell))
}

// Steps returns the stage names in execution order
func (nz *Normalizer) Steps() []string {
	steps := make([]string, 0, len(nz.canonical)+len(nz.format))
	for _, s := range nz.canonical {
		steps = append(steps, s.Name)
	}
	for _, s := range nz.format {
		steps = append(steps, s.Name)
	}
	return steps
}

var strict = New(StrictOptions, LengthExact10)

// Validate reports whether a raw value is a valid Indian mobile number,
// ignoring request options. Used by column detection.
func Validate(raw string) bool {
	return strict.Canonicalize(domain.Present(raw)).Valid
}
