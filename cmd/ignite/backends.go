package main

import (
	"fmt"

	"github.com/harunnryd/ignite/cmd/ignite/runtime"

	"github.com/harunnryd/ignite/internal/formatter"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show which runtime backends this host can run",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		f, err := newFormatter()
		if err != nil {
			return err
		}

		return executeWithRuntime(loadedCfg, nil, func(components *runtime.RuntimeComponents) error {
			var backends []formatter.Backend
			for _, name := range components.Environments.Names() {
				b := formatter.Backend{Name: name, Selected: name == components.Backend}
				if _, err := components.Environments.Get(name); err != nil {
					b.Error = err.Error()
				} else {
					b.Available = true
				}
				backends = append(backends, b)
			}

			out, err := f.FormatBackends(backends)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
