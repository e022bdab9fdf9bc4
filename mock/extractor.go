package mock

import "github.com/jl-grey-man/smbintel"

var _ smbintel.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of smbintel.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*smbintel.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*smbintel.ExtractResult, error) {
	return e.ExtractFn(html)
}
