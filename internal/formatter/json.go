package formatter

import (
	"encoding/json"

	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/surface"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatSurfaces(surfaces []*surface.Surface) (string, error) {
	return marshalJSON(descriptors(surfaces))
}

func (f *JSONFormatter) FormatPackages(pkgs []packages.Package) (string, error) {
	if pkgs == nil {
		pkgs = []packages.Package{}
	}
	return marshalJSON(pkgs)
}

func (f *JSONFormatter) FormatBackends(backends []Backend) (string, error) {
	if backends == nil {
		backends = []Backend{}
	}
	return marshalJSON(backends)
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
