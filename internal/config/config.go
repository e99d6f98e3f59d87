// Package config loads the weedhost TOML configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/weed"
)

type HostConfig struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Verbosity   int32    `toml:"verbosity"`
	LogLevel    string   `toml:"log_level"`
	AdminAddr   string   `toml:"admin_addr"`
	CorsOrigins []string `toml:"cors_origins"`
	// AdminToken, when set, is required as a bearer token on every
	// admin route except /health.
	AdminToken string `toml:"admin_token"`

	LinearGamma  bool `toml:"supports_linear_gamma"`
	PremultAlpha bool `toml:"supports_premult_alpha"`

	ABI       bootstrap.Range `toml:"abi"`
	API       bootstrap.Range `toml:"api"`
	Memory    MemoryConfig    `toml:"memory"`
	Instances InstanceConfig  `toml:"instances"`
	Plugins   []PluginConfig  `toml:"plugins"`
}

// MemoryConfig bounds what each plugin may allocate. Zero means no
// limit.
type MemoryConfig struct {
	MaxBytes int `toml:"max_bytes"`
}

// InstanceConfig limits live instances per filter class. Zero means no
// limit.
type InstanceConfig struct {
	MaxPerFilter int `toml:"max_per_filter"`
}

// PluginConfig overrides settings for one plugin. A plugin with no
// entry, or with enabled left out, is loaded.
type PluginConfig struct {
	Name     string `toml:"name"`
	Enabled  *bool  `toml:"enabled"`
	MaxBytes int    `toml:"max_bytes"`
}

func (p PluginConfig) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// Plugin returns the entry for name, or an enabled zero entry.
func (c HostConfig) Plugin(name string) PluginConfig {
	for _, p := range c.Plugins {
		if strings.TrimSpace(p.Name) == name {
			return p
		}
	}
	return PluginConfig{Name: name}
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		Name:      "weedhost",
		Version:   "1.0.0",
		Verbosity: weed.VerbosityWarn,
		AdminAddr: ":9300",
		ABI:       bootstrap.Range{Min: 100, Max: bootstrap.ABIVersion},
		API:       bootstrap.Range{Min: 100, Max: bootstrap.FilterAPIVersion},
	}
}

// LoadHostConfig reads path over the defaults. Keys absent from the file
// keep their default value.
func LoadHostConfig(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return HostConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return HostConfig{}, fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("host config missing name")
	}
	if strings.TrimSpace(cfg.AdminAddr) == "" {
		return fmt.Errorf("host config missing admin_addr")
	}
	if err := validateRange("abi", cfg.ABI, bootstrap.ABIVersion); err != nil {
		return err
	}
	if err := validateRange("api", cfg.API, bootstrap.FilterAPIVersion); err != nil {
		return err
	}
	if cfg.Verbosity < weed.VerbositySilent || cfg.Verbosity > weed.VerbosityDebug {
		return fmt.Errorf("verbosity %d out of range [%d, %d]", cfg.Verbosity, weed.VerbositySilent, weed.VerbosityDebug)
	}
	if cfg.Memory.MaxBytes < 0 {
		return fmt.Errorf("memory.max_bytes must not be negative")
	}
	if cfg.Instances.MaxPerFilter < 0 {
		return fmt.Errorf("instances.max_per_filter must not be negative")
	}
	seen := make(map[string]bool, len(cfg.Plugins))
	for i, p := range cfg.Plugins {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("plugin[%d] invalid: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("plugin[%d] invalid: duplicate name %q", i, name)
		}
		if p.MaxBytes < 0 {
			return fmt.Errorf("plugin[%d] invalid: max_bytes must not be negative", i)
		}
		seen[name] = true
	}
	return nil
}

func validateRange(name string, r bootstrap.Range, newest int32) error {
	if r.Min <= 0 || r.Max <= 0 {
		return fmt.Errorf("%s range must be positive, got [%d, %d]", name, r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s range inverted: [%d, %d]", name, r.Min, r.Max)
	}
	if r.Min > newest {
		return fmt.Errorf("%s range [%d, %d] starts above supported version %d", name, r.Min, r.Max, newest)
	}
	return nil
}
