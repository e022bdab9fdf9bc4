// Package readability extracts article text with go-readability.
package readability

import (
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/jl-grey-man/smbintel"
)

// Ensure Extractor implements smbintel.Extractor at compile time.
var _ smbintel.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the article text.
func (e *Extractor) Extract(rawHTML string) (*smbintel.ExtractResult, error) {
	if rawHTML == "" {
		return nil, smbintel.Errorf(smbintel.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "extract: %v", err)
	}

	var lines []string
	for line := range strings.Lines(article.TextContent) {
		if s := strings.TrimSpace(line); s != "" {
			lines = append(lines, s)
		}
	}

	return &smbintel.ExtractResult{
		Title: article.Title,
		Text:  strings.Join(lines, "\n"),
	}, nil
}
