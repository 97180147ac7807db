package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures engine options sourced from the config file, the
// environment, and CLI flags, in that precedence order.
type Config struct {
	Pipelines []string `yaml:"pipelines"`

	ArtifactRoot   string        `yaml:"artifact_root"`
	DatabasePath   string        `yaml:"database_path"`
	Dedupe         bool          `yaml:"dedupe"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	Port    int    `yaml:"port"`
	Format  string `yaml:"format"`
	DryRun  bool   `yaml:"dry_run"`
	Verbose bool   `yaml:"verbose"`
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
)

// Default returns the baseline configuration used when no file, env, or
// flags specify values.
func Default() Config {
	return Config{
		ArtifactRoot:   ".conveyor/artifacts",
		DatabasePath:   ".conveyor/conveyor.db",
		DefaultTimeout: 10 * time.Minute,
		Port:           8080,
		Format:         FormatPretty,
	}
}

// Load reads conveyor.yml from the project root when present. Missing
// files are ignored; environment overrides are applied afterwards.
func Load(root string) (Config, error) {
	cfg := Default()
	path := filepath.Join(root, "conveyor.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)
	applyEnv(&cfg)
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	if len(override.Pipelines) > 0 {
		out.Pipelines = append([]string{}, override.Pipelines...)
	}
	if override.ArtifactRoot != "" {
		out.ArtifactRoot = override.ArtifactRoot
	}
	if override.DatabasePath != "" {
		out.DatabasePath = override.DatabasePath
	}
	if override.Dedupe {
		out.Dedupe = true
	}
	if override.DefaultTimeout != 0 {
		out.DefaultTimeout = override.DefaultTimeout
	}
	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}

	return out
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONVEYOR_ARTIFACT_ROOT"); v != "" {
		cfg.ArtifactRoot = v
	}
	if v := os.Getenv("CONVEYOR_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("CONVEYOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("CONVEYOR_DEDUPE"); v != "" {
		if dedupe, err := strconv.ParseBool(v); err == nil {
			cfg.Dedupe = dedupe
		}
	}
}

// ApplyFlags mutates cfg by applying values from CLI flags when they
// were set explicitly.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if len(flags.Pipelines.Values) > 0 {
		cfg.Pipelines = append([]string{}, flags.Pipelines.Values...)
	}
	if flags.ArtifactRoot.Set {
		cfg.ArtifactRoot = flags.ArtifactRoot.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.Dedupe.Set {
		cfg.Dedupe = flags.Dedupe.Value
	}
	if flags.Port.Set {
		cfg.Port = flags.Port.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag
// was set explicitly.
type FlagValues struct {
	Pipelines    SliceFlag
	ArtifactRoot StringFlag
	Format       StringFlag
	DryRun       BoolFlag
	Verbose      BoolFlag
	Dedupe       BoolFlag
	Port         IntFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}
