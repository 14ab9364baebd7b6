package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/surface"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatSurfaces(surfaces []*surface.Surface) (string, error) {
	return marshalYAML(descriptors(surfaces))
}

func (f *YAMLFormatter) FormatPackages(pkgs []packages.Package) (string, error) {
	return marshalYAML(pkgs)
}

func (f *YAMLFormatter) FormatBackends(backends []Backend) (string, error) {
	return marshalYAML(backends)
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
