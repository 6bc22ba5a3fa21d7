// Package config holds the run configuration for the region watcher.
//
// Configuration comes from three layers: built-in defaults, an optional YAML
// config file, and command-line flags (applied by the command layer, flags
// winning). Struct-tag validation catches bad values before a run starts.
// The package also owns default-region detection, which follows the AWS CLI
// precedence: AWS_REGION, AWS_DEFAULT_REGION, then the default profile of
// ~/.aws/config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// DefaultStateDir is the state directory used when none is configured.
const DefaultStateDir = "state"

// DefaultTypes are the resource types tracked when none are configured.
var DefaultTypes = []string{"region", "product"}

// ValidTypes enumerates the trackable resource types.
var ValidTypes = []string{"api", "product", "region"}

var validate = validator.New()

// Config is the resolved run configuration.
type Config struct {
	// Regions are the region identifiers to monitor.
	Regions []string `yaml:"regions"`

	// Types are the resource types to track (region, product, api).
	Types []string `yaml:"types" validate:"omitempty,dive,oneof=region product api"`

	// StateDir is the directory holding snapshot files.
	StateDir string `yaml:"state_dir"`

	// Format selects the report encoding (markdown or json).
	Format string `yaml:"format" validate:"omitempty,oneof=markdown json"`

	// Endpoint overrides the knowledge service URL. Empty means the
	// production endpoint.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Types:    append([]string(nil), DefaultTypes...),
		StateDir: DefaultStateDir,
		Format:   "markdown",
	}
}

// LoadFile reads a YAML config file over the defaults. Unknown keys are
// rejected so typos surface instead of silently doing nothing.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// PerRegionTypes returns the tracked types that are fetched per region,
// i.e. everything except the global "region" type.
func (c *Config) PerRegionTypes() []string {
	types := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		if t != "region" {
			types = append(types, t)
		}
	}
	return types
}

// TracksRegions reports whether the global region list is tracked.
func (c *Config) TracksRegions() bool {
	for _, t := range c.Types {
		if t == "region" {
			return true
		}
	}
	return false
}

// ParseTypes parses a comma-separated type list, normalising case and
// whitespace and rejecting unknown types.
func ParseTypes(value string) ([]string, error) {
	var types []string
	var invalid []string
	for _, raw := range strings.Split(value, ",") {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if !isValidType(t) {
			invalid = append(invalid, t)
			continue
		}
		types = append(types, t)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid type(s): %s (valid types: %s)",
			strings.Join(invalid, ", "), strings.Join(ValidTypes, ", "))
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no types given (valid types: %s)", strings.Join(ValidTypes, ", "))
	}
	return types, nil
}

func isValidType(t string) bool {
	i := sort.SearchStrings(ValidTypes, t)
	return i < len(ValidTypes) && ValidTypes[i] == t
}

// DefaultRegion detects the default region using the AWS CLI precedence:
// AWS_REGION, AWS_DEFAULT_REGION, then the default profile of ~/.aws/config.
// Reports false when no region is configured anywhere.
func DefaultRegion() (string, bool) {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region, true
	}
	if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		return region, true
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(home, ".aws", "config")
	file, err := ini.Load(path)
	if err != nil {
		return "", false
	}
	region := file.Section("default").Key("region").String()
	if region == "" {
		return "", false
	}
	return region, true
}
