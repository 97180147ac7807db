package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ArtifactRoot != ".conveyor/artifacts" {
		t.Fatalf("unexpected artifact root %q", cfg.ArtifactRoot)
	}
	if cfg.DatabasePath != ".conveyor/conveyor.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.DefaultTimeout != 10*time.Minute {
		t.Fatalf("unexpected default timeout %s", cfg.DefaultTimeout)
	}
	if cfg.Port != 8080 || cfg.Format != FormatPretty {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Dedupe || cfg.DryRun || cfg.Verbose {
		t.Fatalf("boolean options default to off: %+v", cfg)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	content := `
pipelines:
  - ci.pipeline.yml
artifact_root: /tmp/artifacts
default_timeout: 30s
port: 9090
format: json
dedupe: true
`
	if err := os.WriteFile(filepath.Join(root, "conveyor.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Pipelines) != 1 || cfg.Pipelines[0] != "ci.pipeline.yml" {
		t.Fatalf("unexpected pipelines %v", cfg.Pipelines)
	}
	if cfg.ArtifactRoot != "/tmp/artifacts" {
		t.Fatalf("unexpected artifact root %q", cfg.ArtifactRoot)
	}
	if cfg.DefaultTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.DefaultTimeout)
	}
	if cfg.Port != 9090 || cfg.Format != FormatJSON || !cfg.Dedupe {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Fields absent from the file keep their defaults.
	if cfg.DatabasePath != ".conveyor/conveyor.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "conveyor.yml"), []byte("port: [not a number"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(root); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "conveyor.yml"), []byte("port: 9090"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONVEYOR_PORT", "7070")
	t.Setenv("CONVEYOR_ARTIFACT_ROOT", "/var/artifacts")
	t.Setenv("CONVEYOR_DEDUPE", "true")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("env should beat the file, got port %d", cfg.Port)
	}
	if cfg.ArtifactRoot != "/var/artifacts" || !cfg.Dedupe {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("CONVEYOR_PORT", "loud")
	t.Setenv("CONVEYOR_DEDUPE", "perhaps")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Dedupe {
		t.Fatalf("unparseable env values must be ignored: %+v", cfg)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	ApplyFlags(&cfg, FlagValues{
		Pipelines:    SliceFlag{Values: []string{"a.pipeline.yml"}},
		ArtifactRoot: StringFlag{Value: "/flag/artifacts", Set: true},
		Format:       StringFlag{Value: FormatJSON, Set: true},
		Verbose:      BoolFlag{Value: true, Set: true},
		Port:         IntFlag{Value: 6060, Set: true},
	})

	if len(cfg.Pipelines) != 1 || cfg.Pipelines[0] != "a.pipeline.yml" {
		t.Fatalf("unexpected pipelines %v", cfg.Pipelines)
	}
	if cfg.ArtifactRoot != "/flag/artifacts" || cfg.Format != FormatJSON || !cfg.Verbose || cfg.Port != 6060 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Unset flags leave the config alone.
	if cfg.Dedupe || cfg.DryRun {
		t.Fatalf("unset flags must not mutate config: %+v", cfg)
	}
}

func TestApplyFlagsUnsetIsNoOp(t *testing.T) {
	cfg := Default()
	cfg.Format = FormatJSON
	ApplyFlags(&cfg, FlagValues{Format: StringFlag{Value: FormatPretty, Set: false}})
	if cfg.Format != FormatJSON {
		t.Fatalf("unset flag overwrote config: %q", cfg.Format)
	}
}
