package smbintel

// ExtractResult holds the readable content of an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// Text is the main content as plain text, one block per line.
	// Boilerplate (nav, footer, sidebar, scripts) has been removed.
	Text string
}

// Extractor extracts main text content from HTML pages.
type Extractor interface {
	Extract(html string) (*ExtractResult, error)
}
