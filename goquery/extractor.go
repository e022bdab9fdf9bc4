// Package goquery extracts page text and registry data with CSS selectors.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jl-grey-man/smbintel"
	"golang.org/x/net/html"
)

// boilerplate lists elements removed before text is taken.
const boilerplate = "script, style, nav, footer, header, aside, noscript"

// Ensure Extractor implements smbintel.Extractor at compile time.
var _ smbintel.Extractor = (*Extractor)(nil)

// Extractor strips boilerplate elements and returns the text of the first
// article, main, or body element, one text fragment per line.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses rawHTML and returns its title and main text.
func (e *Extractor) Extract(rawHTML string) (*smbintel.ExtractResult, error) {
	if rawHTML == "" {
		return nil, smbintel.Errorf(smbintel.EINVALID, "empty HTML input")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "failed to parse HTML: %v", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(boilerplate).Remove()

	var main *goquery.Selection
	for _, sel := range []string{"article", "main", "body"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			main = s
			break
		}
	}

	var lines []string
	if main != nil {
		for _, n := range main.Nodes {
			lines = appendText(lines, n)
		}
	}

	return &smbintel.ExtractResult{
		Title: title,
		Text:  strings.Join(lines, "\n"),
	}, nil
}

// appendText appends every non-blank text node under n, trimmed.
func appendText(lines []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			lines = append(lines, s)
		}
		return lines
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = appendText(lines, c)
	}
	return lines
}
