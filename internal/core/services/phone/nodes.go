package phone

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Length bounds for the lenient policy
const (
	lenientMinDigits = 7
	lenientMaxDigits = 15
	nationalDigits   = 10
)

var (
	// Excel renders large integers as 9.87654321E+09
	scientificPattern = regexp.MustCompile(`^\+?\d+(\.\d+)?[eE]\+?\d+$`)
	// Numeric cells read back as floats: 9876543210.0
	trailingZeroPattern = regexp.MustCompile(`^\d+\.0+$`)
)

// number is the state threaded through the processing nodes
type number struct {
	raw            string
	text           string
	digits         string
	plusCountry    bool
	hasCountryCode bool
	invalid        bool
	out            string
}

// ProcessingStep is a single transformation of the number state
type ProcessingStep func(n *number)

// ProcessingNodes holds the stage implementations. Each node does one
// transformation and is a no-op when its option is off or the number is
// already invalid.
type ProcessingNodes struct {
	opts   Options
	policy LengthPolicy
}

// NewProcessingNodes creates nodes bound to one option set
func NewProcessingNodes(opts Options, policy LengthPolicy) *ProcessingNodes {
	return &ProcessingNodes{
		opts:   opts,
		policy: policy,
	}
}

// Coerce trims the raw value, folds full-width digits and recovers
// spreadsheet numeric renderings into plain integer text.
func (p *ProcessingNodes) Coerce(n *number) {
	s := strings.TrimSpace(n.raw)
	if s == "" {
		n.invalid = true
		return
	}

	s = width.Narrow.String(s)

	switch {
	case scientificPattern.MatchString(s):
		f, err := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
		if err == nil && f >= 0 && f < 1e16 {
			s = strconv.FormatFloat(f, 'f', 0, 64)
		}
	case trailingZeroPattern.MatchString(s):
		s = s[:strings.IndexByte(s, '.')]
	}

	n.text = s
}

// StripNonDigits removes every non-digit character. Whether the value
// carried an explicit "+91" is captured first, since stripping loses it.
func (p *ProcessingNodes) StripNonDigits(n *number) {
	if n.invalid {
		return
	}

	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' || r == '.' {
			return -1
		}
		return r
	}, n.text)
	n.plusCountry = strings.HasPrefix(compact, "+91")

	var b strings.Builder
	b.Grow(len(n.text))
	for _, r := range n.text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n.digits = b.String()

	if n.digits == "" {
		n.invalid = true
	}
}

// NormalizeCountryPrefix removes a recognised Indian prefix.
// A domestic trunk zero is dropped too but does not count as a country code.
func (p *ProcessingNodes) NormalizeCountryPrefix(n *number) {
	if n.invalid {
		return
	}

	d := n.digits
	switch {
	case strings.HasPrefix(d, "0091"):
		n.digits = d[4:]
		n.hasCountryCode = true
	case n.plusCountry && strings.HasPrefix(d, "91"):
		n.digits = d[2:]
		n.hasCountryCode = true
	case strings.HasPrefix(d, "91") && len(d) == nationalDigits+2:
		n.digits = d[2:]
		n.hasCountryCode = true
	case strings.HasPrefix(d, "091") && len(d) == nationalDigits+3:
		n.digits = d[3:]
		n.hasCountryCode = true
	case strings.HasPrefix(d, "0") && len(d) == nationalDigits+1:
		n.digits = d[1:]
	}
}

// ValidateLength applies the length policy. Exact ten digits is required
// whenever the Indian filter is on.
func (p *ProcessingNodes) ValidateLength(n *number) {
	if n.invalid {
		return
	}

	l := len(n.digits)
	if p.opts.KeepIndianOnly || p.policy != LengthLenient {
		if l != nationalDigits {
			n.invalid = true
		}
		return
	}
	if l < lenientMinDigits || l > lenientMaxDigits {
		n.invalid = true
	}
}

// ValidateLeadingDigit keeps Indian mobile numbers only (first digit 6-9)
func (p *ProcessingNodes) ValidateLeadingDigit(n *number) {
	if n.invalid || !p.opts.KeepIndianOnly {
		return
	}

	switch n.digits[0] {
	case '6', '7', '8', '9':
	default:
		n.invalid = true
	}
}

// KeepCountryCode re-prepends 91 when the caller did not ask for it to be
// removed: to detected prefixes only, or to every ten-digit number under
// CountryCodeAlways.
func (p *ProcessingNodes) KeepCountryCode(n *number) {
	if n.invalid {
		return
	}

	n.out = n.digits
	if p.opts.RemoveCountryCode {
		return
	}
	always := p.opts.CountryCode == CountryCodeAlways && len(n.digits) == nationalDigits
	if n.hasCountryCode || always {
		n.out = "91" + n.digits
	}
}

// WhatsAppFormat prefixes ten-digit numbers with +91. It runs last and
// overrides KeepCountryCode.
func (p *ProcessingNodes) WhatsAppFormat(n *number) {
	if n.invalid || !p.opts.WhatsAppFormat || len(n.digits) != nationalDigits {
		return
	}
	n.out = "+91" + n.digits
}
