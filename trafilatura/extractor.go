// Package trafilatura extracts main page text with go-trafilatura.
package trafilatura

import (
	"strings"

	"github.com/jl-grey-man/smbintel"
	"github.com/markusmobius/go-trafilatura"
)

// Ensure Extractor implements smbintel.Extractor at compile time.
var _ smbintel.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content as text.
func (e *Extractor) Extract(rawHTML string) (*smbintel.ExtractResult, error) {
	if rawHTML == "" {
		return nil, smbintel.Errorf(smbintel.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback: true,
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "extract: %v", err)
	}

	return &smbintel.ExtractResult{
		Title: result.Metadata.Title,
		Text:  strings.TrimSpace(result.ContentText),
	}, nil
}
