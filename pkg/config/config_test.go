package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// TestDefault verifies the built-in configuration values.
func TestDefault(t *testing.T) {
	cfg := Default()

	if !reflect.DeepEqual(cfg.Types, []string{"region", "product"}) {
		t.Errorf("types = %v", cfg.Types)
	}
	if cfg.StateDir != "state" {
		t.Errorf("state dir = %q", cfg.StateDir)
	}
	if cfg.Format != "markdown" {
		t.Errorf("format = %q", cfg.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadFile verifies file values layer over the defaults.
func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
regions:
  - ap-southeast-2
  - us-west-2
types:
  - product
  - api
format: json
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Regions, []string{"ap-southeast-2", "us-west-2"}) {
		t.Errorf("regions = %v", cfg.Regions)
	}
	if !reflect.DeepEqual(cfg.Types, []string{"product", "api"}) {
		t.Errorf("types = %v", cfg.Types)
	}
	if cfg.Format != "json" {
		t.Errorf("format = %q", cfg.Format)
	}
	// Untouched keys keep their defaults.
	if cfg.StateDir != DefaultStateDir {
		t.Errorf("state dir = %q, want default", cfg.StateDir)
	}
}

// TestLoadFileRejectsUnknownKeys verifies config typos fail loudly.
func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, "state_dirr: elsewhere\n")

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

// TestLoadFileMissing verifies a clear error for an absent config file.
func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestValidateRejectsBadValues verifies struct-tag validation catches bad
// types, formats and endpoints.
func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown type", func(c *Config) { c.Types = []string{"product", "bogus"} }},
		{"unknown format", func(c *Config) { c.Format = "yaml" }},
		{"bad endpoint", func(c *Config) { c.Endpoint = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestParseTypes verifies normalisation and rejection of the comma-separated
// type flag.
func TestParseTypes(t *testing.T) {
	got, err := ParseTypes(" Region, PRODUCT ,api ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"region", "product", "api"}) {
		t.Errorf("types = %v", got)
	}

	if _, err := ParseTypes("product,bogus,nonsense"); err == nil {
		t.Fatal("expected error for unknown types")
	} else if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q should name the invalid type", err)
	}

	if _, err := ParseTypes(" , "); err == nil {
		t.Fatal("expected error for empty type list")
	}
}

// TestPerRegionTypes verifies the global region type is filtered out of the
// per-region fetch list.
func TestPerRegionTypes(t *testing.T) {
	cfg := &Config{Types: []string{"region", "product", "api"}}
	if got := cfg.PerRegionTypes(); !reflect.DeepEqual(got, []string{"product", "api"}) {
		t.Errorf("per-region types = %v", got)
	}
	if !cfg.TracksRegions() {
		t.Error("expected region tracking")
	}

	cfg = &Config{Types: []string{"product"}}
	if cfg.TracksRegions() {
		t.Error("unexpected region tracking")
	}
}

// TestDefaultRegion verifies the AWS CLI environment precedence.
func TestDefaultRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "ap-southeast-2")
	t.Setenv("AWS_DEFAULT_REGION", "us-west-2")

	if region, ok := DefaultRegion(); !ok || region != "ap-southeast-2" {
		t.Errorf("DefaultRegion() = (%q, %v), want ap-southeast-2", region, ok)
	}

	t.Setenv("AWS_REGION", "")
	if region, ok := DefaultRegion(); !ok || region != "us-west-2" {
		t.Errorf("DefaultRegion() = (%q, %v), want us-west-2", region, ok)
	}
}

// TestDefaultRegionFromConfigFile verifies fallback to the default profile of
// ~/.aws/config.
func TestDefaultRegionFromConfigFile(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")

	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".aws"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(home, ".aws", "config"),
		[]byte("[default]\nregion = eu-central-1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if region, ok := DefaultRegion(); !ok || region != "eu-central-1" {
		t.Errorf("DefaultRegion() = (%q, %v), want eu-central-1", region, ok)
	}
}

// TestDefaultRegionUnset verifies the not-found path when nothing is
// configured anywhere.
func TestDefaultRegionUnset(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("HOME", t.TempDir())

	if region, ok := DefaultRegion(); ok {
		t.Errorf("DefaultRegion() = (%q, true), want not found", region)
	}
}
