package bootstrap

import (
	"strings"

	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

type ConfigEntry struct {
	Key   string
	Value string
}

// Plan describes one launch.
type Plan struct {
	// Packages go through the bulk channel in a single call.
	Packages       []string
	CheckIntegrity bool

	// Resolve names packages for the environment's own package manager,
	// installed one at a time after the bulk channel.
	Resolve []string

	Surface string

	// Config entries are written in order, after the surface is attached.
	Config []ConfigEntry

	Source string
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Source) == "" {
		return igniteErrors.InvalidInput("plan has no program source")
	}
	if strings.TrimSpace(p.Surface) == "" {
		return igniteErrors.InvalidInput("plan has no output surface")
	}
	for _, e := range p.Config {
		if err := environment.ValidateConfigKey(e.Key); err != nil {
			return err
		}
	}
	for _, name := range append(append([]string{}, p.Packages...), p.Resolve...) {
		if strings.TrimSpace(name) == "" {
			return igniteErrors.InvalidInput("plan lists an empty package name")
		}
	}
	return nil
}
