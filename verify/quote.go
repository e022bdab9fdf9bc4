package verify

import (
	"html"
	"strings"
	"unicode"

	"github.com/jl-grey-man/smbintel"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

// Default quote fidelity thresholds.
const (
	DefaultPassThreshold    = 0.65
	DefaultPartialThreshold = 0.50
	DefaultLongQuoteLen     = 50
)

// Scores assigned by the half-split test for long quotes.
const (
	BothHalvesScore = 0.85
	OneHalfScore    = 0.70
)

// Normalize applies the text pipeline used before every quote comparison:
// decode HTML entities, compose to NFC, collapse all whitespace (including
// non-breaking spaces) to single spaces, trim, and lowercase.
func Normalize(s string) string {
	s = html.UnescapeString(s)
	s = norm.NFC.String(s)
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	return strings.ToLower(s)
}

// Similarity returns the difflib ratio 2*M/T between two strings, compared
// rune by rune.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(runeSeq(a), runeSeq(b))
	return m.Ratio()
}

func runeSeq(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// QuoteScore measures how faithfully quote appears in source. Both inputs
// are normalized first. An exact substring scores 1.0. Otherwise a window
// of the quote's length slides across the source in quarter-quote steps and
// the best ratio is kept. Quotes longer than longQuoteLen runes are also
// split in half: both halves present scores BothHalvesScore, one half
// OneHalfScore, whichever is higher than the window ratio.
func QuoteScore(quote, source string, longQuoteLen int) float64 {
	q := Normalize(quote)
	src := Normalize(source)
	if q == "" || src == "" {
		return 0
	}
	if strings.Contains(src, q) {
		return 1
	}

	qr := []rune(q)
	sr := []rune(src)
	best := slidingRatio(qr, sr)

	if len(qr) > longQuoteLen {
		half := len(qr) / 2
		first := strings.Contains(src, string(qr[:half]))
		second := strings.Contains(src, string(qr[half:]))
		switch {
		case first && second:
			best = max(best, BothHalvesScore)
		case first || second:
			best = max(best, OneHalfScore)
		}
	}
	return best
}

func slidingRatio(q, src []rune) float64 {
	n := len(q)
	if len(src) <= n {
		return Similarity(string(q), string(src))
	}

	qs := make([]string, n)
	for i, r := range q {
		qs[i] = string(r)
	}
	ss := make([]string, len(src))
	for i, r := range src {
		ss[i] = string(r)
	}

	step := max(1, n/4)
	m := difflib.NewMatcher(nil, qs)
	var best float64
	for i := 0; i+n <= len(ss); i += step {
		m.SetSeq1(ss[i : i+n])
		if r := m.Ratio(); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Classify maps a score to a verdict. The pass threshold is inclusive.
func Classify(score, pass, partial float64) smbintel.QuoteVerdict {
	switch {
	case score >= pass:
		return smbintel.QuotePassed
	case score >= partial:
		return smbintel.QuotePartial
	default:
		return smbintel.QuoteFailed
	}
}
