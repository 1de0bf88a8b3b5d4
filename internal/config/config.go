// Package config loads settings for the mcworld command.
//
// Settings come from three layers, later layers winning:
//   - a configuration file (YAML or JSON)
//   - environment variables with the MCWORLD_ prefix
//   - command line flags
//
// Example file:
//
//	log:
//	  level: debug
//	  format: json
//	temp_dir: /var/tmp
//	cache:
//	  dir: ~/.cache/mcworld
//	  max_size: 512MB
//	registry:
//	  plain_http: true
//	jobs: 8
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MCWORLD_"

// Config holds the command configuration.
type Config struct {
	// Log configures logging.
	Log LogConfig `json:"log" yaml:"log"`

	// TempDir is the root for scratch directories. Empty uses the OS default.
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	// Cache configures the on-disk result cache.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Registry configures OCI registry access.
	Registry RegistryConfig `json:"registry" yaml:"registry"`

	// Jobs bounds how many archives are inspected at once.
	Jobs int `json:"jobs" yaml:"jobs"`

	// IgnoreChecksums skips block and record checksum verification.
	IgnoreChecksums bool `json:"ignore_checksums" yaml:"ignore_checksums"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `json:"level" yaml:"level"`

	// Format is one of "text", "json", "logfmt".
	Format string `json:"format" yaml:"format"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Dir enables caching when non-empty.
	Dir string `json:"dir" yaml:"dir"`

	// MaxSize bounds the cache (e.g. "512MB"). Empty or "0" is unlimited.
	MaxSize string `json:"max_size" yaml:"max_size"`
}

// RegistryConfig configures registry access.
type RegistryConfig struct {
	// PlainHTTP talks to registries without TLS.
	PlainHTTP bool `json:"plain_http" yaml:"plain_http"`

	// Anonymous disables credential lookups.
	Anonymous bool `json:"anonymous" yaml:"anonymous"`

	// MaxWorldSize bounds pulled archives (e.g. "1GB"). "0" is unlimited.
	MaxWorldSize string `json:"max_world_size" yaml:"max_world_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Registry: RegistryConfig{
			MaxWorldSize: "1GB",
		},
		Jobs: runtime.GOMAXPROCS(0),
	}
}

// Load reads a configuration file over the defaults. The format follows the
// file extension; unknown extensions are tried as YAML, then JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
			cfg = Default()
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config (tried YAML and JSON): %w", errors.Join(yerr, err))
			}
		}
	}
	return cfg, nil
}

// LoadFromEnv applies MCWORLD_* overrides:
//   - MCWORLD_LOG_LEVEL, MCWORLD_LOG_FORMAT
//   - MCWORLD_TEMP_DIR
//   - MCWORLD_CACHE_DIR, MCWORLD_CACHE_MAX_SIZE
//   - MCWORLD_REGISTRY_PLAIN_HTTP, MCWORLD_REGISTRY_ANONYMOUS,
//     MCWORLD_REGISTRY_MAX_WORLD_SIZE
//   - MCWORLD_JOBS
//   - MCWORLD_IGNORE_CHECKSUMS
//
// Malformed numbers and booleans are reported rather than ignored.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"LOG_LEVEL":               &c.Log.Level,
		"LOG_FORMAT":              &c.Log.Format,
		"TEMP_DIR":                &c.TempDir,
		"CACHE_DIR":               &c.Cache.Dir,
		"CACHE_MAX_SIZE":          &c.Cache.MaxSize,
		"REGISTRY_MAX_WORLD_SIZE": &c.Registry.MaxWorldSize,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"REGISTRY_PLAIN_HTTP": &c.Registry.PlainHTTP,
		"REGISTRY_ANONYMOUS":  &c.Registry.Anonymous,
		"IGNORE_CHECKSUMS":    &c.IgnoreChecksums,
	}
	var errs []error
	for name, dst := range bools {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			continue
		}
		*dst = b
	}

	if v := os.Getenv(EnvPrefix + "JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sJOBS: %w", EnvPrefix, err))
		} else {
			c.Jobs = n
		}
	}
	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format %q (must be text, json, or logfmt)", c.Log.Format)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if _, err := ParseSize(c.Cache.MaxSize); err != nil {
		return fmt.Errorf("invalid cache.max_size: %w", err)
	}
	if _, err := ParseSize(c.Registry.MaxWorldSize); err != nil {
		return fmt.Errorf("invalid registry.max_world_size: %w", err)
	}
	return nil
}

// CacheMaxBytes returns the parsed cache size limit.
func (c *Config) CacheMaxBytes() int64 {
	n, _ := ParseSize(c.Cache.MaxSize) //nolint:errcheck // checked by Validate
	return n
}

// MaxWorldBytes returns the parsed pull size limit.
func (c *Config) MaxWorldBytes() int64 {
	n, _ := ParseSize(c.Registry.MaxWorldSize) //nolint:errcheck // checked by Validate
	return n
}

// sizeUnits is ordered so two-letter suffixes match before one-letter ones.
var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"T", 1 << 40},
	{"G", 1 << 30},
	{"M", 1 << 20},
	{"K", 1 << 10},
	{"B", 1},
}

// ParseSize parses a human-readable size such as "512MB" or "1.5G" into
// bytes. Units are binary. Empty means zero.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}
	for _, u := range sizeUnits {
		num, ok := strings.CutSuffix(s, u.suffix)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return int64(f * float64(u.mult)), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}
