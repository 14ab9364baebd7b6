package main

import (
	"fmt"

	"github.com/harunnryd/ignite/internal/formatter"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/spf13/cobra"
)

var outputFormat string

var surfacesCmd = &cobra.Command{
	Use:   "surfaces",
	Short: "List configured output surfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		registry, err := surface.NewRegistryFromConfig(loadedCfg.Output.Surfaces)
		if err != nil {
			return err
		}
		defer registry.Close()

		f, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := f.FormatSurfaces(registry.List())
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func newFormatter() (formatter.Formatter, error) {
	format, err := formatter.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return formatter.NewFormatterFactory().Create(format)
}

func init() {
	// Not "output": that name is a config section and flags are layered into config.
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", string(formatter.OutputFormatTable), "output format for listings (table, json, yaml)")
	rootCmd.AddCommand(surfacesCmd)
}
