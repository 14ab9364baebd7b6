package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Runtime  RuntimeConfig  `koanf:"runtime" yaml:"runtime"`
	Packages PackagesConfig `koanf:"packages" yaml:"packages"`
	Output   OutputConfig   `koanf:"output" yaml:"output"`
	Artifact ArtifactConfig `koanf:"artifact" yaml:"artifact"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
}

type RuntimeConfig struct {
	Backend     string                 `koanf:"backend" yaml:"backend"`
	SandboxPath string                 `koanf:"sandbox_path" yaml:"sandbox_path"`
	KeepSandbox bool                   `koanf:"keep_sandbox" yaml:"keep_sandbox"`
	LockTimeout string                 `koanf:"lock_timeout" yaml:"lock_timeout"`
	Process     ProcessRuntimeConfig   `koanf:"process" yaml:"process"`
	Container   ContainerRuntimeConfig `koanf:"container" yaml:"container"`
}

type ProcessRuntimeConfig struct {
	Command string `koanf:"command" yaml:"command"`
}

type ContainerRuntimeConfig struct {
	Image       string `koanf:"image" yaml:"image"`
	Pull        bool   `koanf:"pull" yaml:"pull"`
	StopTimeout string `koanf:"stop_timeout" yaml:"stop_timeout"`
}

type PackagesConfig struct {
	IndexURL       string   `koanf:"index_url" yaml:"index_url"`
	CheckIntegrity bool     `koanf:"check_integrity" yaml:"check_integrity"`
	Install        []string `koanf:"install" yaml:"install"`
	Resolve        []string `koanf:"resolve" yaml:"resolve"`
	CacheDir       string   `koanf:"cache_dir" yaml:"cache_dir"`
}

type OutputConfig struct {
	Surface   string          `koanf:"surface" yaml:"surface"`
	DriverKey string          `koanf:"driver_key" yaml:"driver_key"`
	Driver    string          `koanf:"driver" yaml:"driver"`
	Env       []EnvEntry      `koanf:"env" yaml:"env"`
	Surfaces  []SurfaceConfig `koanf:"surfaces" yaml:"surfaces"`
}

type EnvEntry struct {
	Key   string `koanf:"key" yaml:"key"`
	Value string `koanf:"value" yaml:"value"`
}

type SurfaceConfig struct {
	ID     string `koanf:"id" yaml:"id"`
	Kind   string `koanf:"kind" yaml:"kind"`
	Target string `koanf:"target" yaml:"target,omitempty"`
}

type ArtifactConfig struct {
	Source   string   `koanf:"source" yaml:"source"`
	Base     string   `koanf:"base" yaml:"base"`
	Timeout  string   `koanf:"timeout" yaml:"timeout"`
	MaxBytes int64    `koanf:"max_bytes" yaml:"max_bytes"`
	Prefetch bool     `koanf:"prefetch" yaml:"prefetch"`
	S3       S3Config `koanf:"s3" yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `koanf:"endpoint" yaml:"endpoint"`
	AccessKey string `koanf:"access_key" yaml:"access_key"`
	SecretKey string `koanf:"secret_key" yaml:"secret_key"`
	Region    string `koanf:"region" yaml:"region"`
	UseSSL    bool   `koanf:"use_ssl" yaml:"use_ssl"`
}

const (
	DefaultLogLevel               = "info"
	DefaultRuntimeBackend         = "process"
	DefaultRuntimeLockTimeout     = "5s"
	DefaultProcessCommand         = "python3 -u"
	DefaultContainerImage         = "python:3.12-slim"
	DefaultContainerPull          = true
	DefaultContainerStopTimeout   = "10s"
	DefaultPackagesCheckIntegrity = true
	DefaultOutputSurface          = "canvas"
	DefaultOutputDriverKey        = "SDL_VIDEODRIVER"
	DefaultOutputDriver           = "canvas"
	DefaultArtifactTimeout        = "30s"
	DefaultArtifactMaxBytes       = 16 * 1024 * 1024
	DefaultArtifactPrefetch       = false
	DefaultArtifactS3Region       = "us-east-1"
	DefaultSurfaceKindTerminal    = "terminal"
	DefaultSurfaceKindNull        = "null"
	DefaultConfigDirName          = ".ignite"
	DefaultSandboxDirName         = "sandboxes"
	DefaultCacheDirName           = "cache"
	DefaultConfigFileName         = "config.yaml"
	EnvPrefix                     = "IGNITE_"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log.level":                      DefaultLogLevel,
		"runtime.backend":                DefaultRuntimeBackend,
		"runtime.sandbox_path":           filepath.Join(os.Getenv("HOME"), DefaultConfigDirName, DefaultSandboxDirName),
		"runtime.keep_sandbox":           false,
		"runtime.lock_timeout":           DefaultRuntimeLockTimeout,
		"runtime.process.command":        DefaultProcessCommand,
		"runtime.container.image":        DefaultContainerImage,
		"runtime.container.pull":         DefaultContainerPull,
		"runtime.container.stop_timeout": DefaultContainerStopTimeout,
		"packages.check_integrity":       DefaultPackagesCheckIntegrity,
		"packages.cache_dir":             filepath.Join(os.Getenv("HOME"), DefaultConfigDirName, DefaultCacheDirName, "packages"),
		"output.surface":                 DefaultOutputSurface,
		"output.driver_key":              DefaultOutputDriverKey,
		"output.driver":                  DefaultOutputDriver,
		"output.surfaces": []SurfaceConfig{
			{ID: DefaultOutputSurface, Kind: DefaultSurfaceKindTerminal},
			{ID: DefaultSurfaceKindNull, Kind: DefaultSurfaceKindNull},
		},
		"artifact.timeout":   DefaultArtifactTimeout,
		"artifact.max_bytes": DefaultArtifactMaxBytes,
		"artifact.prefetch":  DefaultArtifactPrefetch,
		"artifact.s3.region": DefaultArtifactS3Region,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, DefaultConfigDirName, DefaultConfigFileName)
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// IGNITE_ARTIFACT_BASE -> artifact.base; only the first underscore after a
	// section name is a separator, so multi-word keys stay intact.
	k.Load(env.Provider(EnvPrefix, ".", envKey), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, s := range cfg.Output.Surfaces {
		if s.Kind == "" {
			cfg.Output.Surfaces[i].Kind = DefaultSurfaceKindTerminal
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var sections = []string{"log", "runtime", "packages", "output", "artifact"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		prefix := section + "_"
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		for _, nested := range []string{"process_", "container_", "s3_"} {
			if strings.HasPrefix(rest, nested) {
				return section + "." + strings.TrimSuffix(nested, "_") + "." + strings.TrimPrefix(rest, nested)
			}
		}
		return section + "." + rest
	}
	return strings.ReplaceAll(key, "_", ".")
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	sandboxPath, err := ExpandPath(cfg.Runtime.SandboxPath)
	if err != nil {
		return err
	}
	if sandboxPath != "" {
		cfg.Runtime.SandboxPath = sandboxPath
	}

	cacheDir, err := ExpandPath(cfg.Packages.CacheDir)
	if err != nil {
		return err
	}
	cfg.Packages.CacheDir = cacheDir

	if !hasScheme(cfg.Artifact.Base) {
		base, err := ExpandPath(cfg.Artifact.Base)
		if err != nil {
			return err
		}
		if base != "" {
			cfg.Artifact.Base = base
		}
	}

	if !hasScheme(cfg.Packages.IndexURL) {
		index, err := ExpandPath(cfg.Packages.IndexURL)
		if err != nil {
			return err
		}
		if index != "" {
			cfg.Packages.IndexURL = index
		}
	}

	for i := range cfg.Output.Surfaces {
		if cfg.Output.Surfaces[i].Kind != "file" {
			continue
		}
		target, err := ExpandPath(cfg.Output.Surfaces[i].Target)
		if err != nil {
			return err
		}
		if target != "" {
			cfg.Output.Surfaces[i].Target = target
		}
	}

	return nil
}

func hasScheme(s string) bool {
	return strings.Contains(s, "://")
}
