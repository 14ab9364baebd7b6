package main

import (
	"fmt"

	"github.com/harunnryd/ignite/cmd/ignite/runtime"

	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/packages"

	"github.com/spf13/cobra"
)

var packagesCmd = &cobra.Command{
	Use:   "packages [name...]",
	Short: "Show the bulk package index",
	Long: `Without arguments, list every package in packages.index_url. With names,
print their dependency closure in install order.`,
	SilenceUsage: true,
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
			if components.Installer == nil {
				return igniteErrors.InvalidInput("packages.index_url is not configured")
			}
			index, err := components.Installer.LoadIndex(components.Ctx)
			if err != nil {
				return err
			}

			var pkgs []packages.Package
			if len(args) == 0 {
				pkgs = index.List()
			} else if pkgs, err = index.Resolve(args); err != nil {
				return err
			}

			out, err := f.FormatPackages(pkgs)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(packagesCmd)
}
