// Package modelinfo extracts a model card from GGUF metadata for startup
// diagnostics, the status endpoint, and the page footer.
package modelinfo

import (
	"fmt"
	"regexp"
	"strings"

	parser "github.com/gpustack/gguf-parser-go"
)

// Info is the model card shown to users. All fields other than Name may be
// empty when no GGUF file is available for inspection.
type Info struct {
	Name         string `json:"name"`
	Architecture string `json:"architecture,omitempty"`
	Parameters   string `json:"parameters,omitempty"`
	Quantization string `json:"quantization,omitempty"`
	Size         string `json:"size,omitempty"`
	License      string `json:"license,omitempty"`
}

// Fallback builds a card carrying only the configured model name, for
// deployments where the model weights live on the engine host.
func Fallback(model string) *Info {
	return &Info{Name: model}
}

// FromGGUF reads the model card from a GGUF file.
func FromGGUF(path string) (*Info, error) {
	gguf, err := parser.ParseGGUFFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GGUF file: %w", err)
	}

	md := gguf.Metadata()
	info := &Info{
		Name:         strings.TrimSpace(md.Name),
		Architecture: strings.TrimSpace(md.Architecture),
		Parameters:   normalizeUnitString(md.Parameters.String()),
		Quantization: strings.TrimSpace(md.FileType.String()),
		Size:         normalizeUnitString(md.Size.String()),
		License:      strings.TrimSpace(md.License),
	}
	return info, nil
}

// String renders the card as a single line for startup logs.
func (i *Info) String() string {
	parts := []string{i.Name}
	if i.Architecture != "" {
		parts = append(parts, i.Architecture)
	}
	if i.Parameters != "" {
		parts = append(parts, i.Parameters)
	}
	if i.Quantization != "" {
		parts = append(parts, i.Quantization)
	}
	if i.Size != "" {
		parts = append(parts, i.Size)
	}
	return strings.Join(parts, ", ")
}

// spaceBeforeUnitRegex matches one or more spaces between a valid number and
// a letter (unit).
var spaceBeforeUnitRegex = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s+([A-Za-z]+)`)

// normalizeUnitString removes spaces between numbers and units for
// consistent formatting, e.g. "7.62 B" -> "7.62B", "4.36 GiB" -> "4.36GiB".
func normalizeUnitString(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return s
	}
	return spaceBeforeUnitRegex.ReplaceAllString(s, "$1$2")
}
