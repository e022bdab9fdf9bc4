// Package keyword maintains the exploitation and exploration keyword pools.
//
// The Manager is the only writer of the keyword configuration. It reads
// past-cycle performance from a UsageHistory and writes every change as a
// new immutable version through a KeywordStore.
package keyword

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jl-grey-man/smbintel"
	"golang.org/x/text/unicode/norm"
)

// Term limits enforced on proposed keywords.
const (
	MaxTermRunes = 60
	MaxTermWords = 6
)

// Selection weights.
const (
	NewWeight  = 1.5
	ColdWeight = 0.3
	BaseWeight = 1.0

	// ColdMinUses is the use count after which a keyword without hits is
	// sampled at ColdWeight.
	ColdMinUses = 5
)

// Budget splits a query total between the pools. The exploit share is
// floor(total*ratio) and the explore share is the remainder, independent
// of pool sizes.
func Budget(total int, ratio float64) (exploit, explore int) {
	if total <= 0 {
		return 0, 0
	}
	ratio = min(max(ratio, 0), 1)
	// 20*0.65 is 12.999999999999998 in float64.
	exploit = int(math.Floor(float64(total)*ratio + 1e-9))
	exploit = min(exploit, total)
	return exploit, total - exploit
}

// Weight returns the sampling weight of a keyword.
func Weight(rec *smbintel.KeywordRecord) float64 {
	switch {
	case rec.Uses == 0:
		return NewWeight
	case rec.Hits == 0 && rec.Uses >= ColdMinUses:
		return ColdWeight
	default:
		return BaseWeight + rec.HitRate()
	}
}

// breaksQuery reports characters that break search query syntax.
func breaksQuery(r rune) bool {
	if unicode.IsControl(r) {
		return true
	}
	return strings.ContainsRune(`"'():*~\^[]{}<>|`, r)
}

// Sanitize normalizes a proposed term and enforces the term limits.
// Query syntax characters are replaced by spaces before whitespace is
// collapsed.
func Sanitize(term string) (string, error) {
	term = norm.NFC.String(term)
	term = strings.Map(func(r rune) rune {
		if breaksQuery(r) {
			return ' '
		}
		return r
	}, term)

	words := strings.Fields(term)
	if len(words) == 0 {
		return "", smbintel.Errorf(smbintel.EINVALID, "empty term")
	}
	if len(words) > MaxTermWords {
		return "", smbintel.Errorf(smbintel.EINVALID, "term has %d words, max %d", len(words), MaxTermWords)
	}
	term = strings.Join(words, " ")
	if n := utf8.RuneCountInString(term); n > MaxTermRunes {
		return "", smbintel.Errorf(smbintel.EINVALID, "term has %d characters, max %d", n, MaxTermRunes)
	}
	return term, nil
}

// termKey is the case-insensitive identity of a term.
func termKey(term string) string {
	return strings.ToLower(term)
}
