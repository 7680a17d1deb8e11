package metadata

import "github.com/nao1215/onepage/internal/model"

// Inspector is implemented by EXIFInspector and ContentInspector.
type Inspector interface {
	Inspect(p string, content []byte) []model.Finding
}

// Chain runs several inspectors on the same file and concatenates their
// findings. Nil inspectors are ignored.
type Chain []Inspector

// NewChain creates a Chain of inspectors.
func NewChain(inspectors ...Inspector) Chain {
	c := make(Chain, 0, len(inspectors))
	for _, in := range inspectors {
		if in != nil {
			c = append(c, in)
		}
	}
	return c
}

// Inspect returns the findings of every inspector.
func (c Chain) Inspect(p string, content []byte) []model.Finding {
	var findings []model.Finding
	for _, in := range c {
		findings = append(findings, in.Inspect(p, content)...)
	}
	return findings
}
