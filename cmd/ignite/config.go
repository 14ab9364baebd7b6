package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed templates/config.yaml
var embeddedDefaultConfig []byte

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the ignite configuration file.`,
}

var configSections = []string{"log", "runtime", "packages", "output", "artifact"}

var configViewCmd = &cobra.Command{
	Use:       "view [section]",
	Short:     "Dump fully resolved configuration",
	Long:      `Display the configuration with defaults, the config file, IGNITE_ variables and flags applied. Pass a section (log, runtime, packages, output, artifact) to print only that part. Object store keys and URL passwords are masked.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: configSections,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if loadedCfg == nil {
			return fmt.Errorf("config is not initialized; run 'ignite config init' first")
		}

		var doc interface{} = redactConfigSecrets(loadedCfg)
		if len(args) == 1 {
			doc, err = configSection(doc, args[0])
			if err != nil {
				return err
			}
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

func configSection(doc interface{}, name string) (interface{}, error) {
	if !slices.Contains(configSections, name) {
		return nil, igniteErrors.InvalidInput(fmt.Sprintf("unknown config section %q (have %s)", name, strings.Join(configSections, ", ")))
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var sections map[string]interface{}
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return map[string]interface{}{name: sections[name]}, nil
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long:  `Write the default configuration to $HOME/.ignite/config.yaml. An existing file is left alone unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		configDir := filepath.Join(home, config.DefaultConfigDirName)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}

		out := cmd.OutOrStdout()
		configPath := filepath.Join(configDir, config.DefaultConfigFileName)
		_, statErr := os.Stat(configPath)
		switch {
		case statErr == nil && !configInitForce:
			fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite)\n", configPath)
			return nil
		case statErr != nil && !os.IsNotExist(statErr):
			return fmt.Errorf("failed to check config file: %w", statErr)
		}

		defaultConfig := strings.TrimSpace(string(embeddedDefaultConfig)) + "\n"
		if err := atomic.WriteFile(configPath, bytes.NewReader([]byte(defaultConfig))); err != nil {
			return fmt.Errorf("failed to write config to %s: %w", configPath, err)
		}

		fmt.Fprintf(out, "✓ Wrote config to %s\n", configPath)
		fmt.Fprintf(out, "  backend %s, surface %s, %s=%s\n",
			config.DefaultRuntimeBackend, config.DefaultOutputSurface, config.DefaultOutputDriverKey, config.DefaultOutputDriver)
		fmt.Fprintln(out, "\nBefore the first launch:")
		fmt.Fprintln(out, "  - set packages.index_url if programs need bulk packages")
		fmt.Fprintln(out, "  - set artifact.base to where programs are served from")
		fmt.Fprintln(out, "  - run 'ignite backends' to see which runtimes this host can start")
		return nil
	},
}

// redactConfigSecrets masks the object store keys and any password carried
// in the userinfo of the index or artifact locations.
func redactConfigSecrets(in *config.Config) *config.Config {
	if in == nil {
		return nil
	}

	out := *in
	out.Artifact.S3.AccessKey = maskSecret(out.Artifact.S3.AccessKey)
	out.Artifact.S3.SecretKey = maskSecret(out.Artifact.S3.SecretKey)
	out.Artifact.Base = redactLocation(out.Artifact.Base)
	out.Artifact.Source = redactLocation(out.Artifact.Source)
	out.Packages.IndexURL = redactLocation(out.Packages.IndexURL)
	return &out
}

func redactLocation(loc string) string {
	if !strings.Contains(loc, "://") {
		return loc
	}
	u, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	if _, ok := u.User.Password(); !ok {
		return loc
	}
	return u.Redacted()
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
