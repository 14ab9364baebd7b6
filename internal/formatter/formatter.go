package formatter

import (
	"fmt"
	"strings"

	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/surface"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// Backend is the availability of one runtime backend on this host.
type Backend struct {
	Name      string `json:"name" yaml:"name"`
	Available bool   `json:"available" yaml:"available"`
	Selected  bool   `json:"selected" yaml:"selected"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

type Formatter interface {
	FormatSurfaces([]*surface.Surface) (string, error)
	FormatPackages([]packages.Package) (string, error)
	FormatBackends([]Backend) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

func descriptors(surfaces []*surface.Surface) []surface.Descriptor {
	out := make([]surface.Descriptor, 0, len(surfaces))
	for _, s := range surfaces {
		out = append(out, s.Descriptor())
	}
	return out
}
