// Package config provides configuration loading and validation for lexa.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (LEXA_* prefix)
//  2. YAML config file (if specified with --config, default lexa.hcl)
//  3. Hardcoded defaults
//
// All configuration is validated during Load() to ensure correctness early;
// a ConfigLoad failure is fatal at startup per the error-handling design.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultSuffix is the zone suffix used when server.lxd.suffix is unset.
const DefaultSuffix = "lexa"

// initConfig sets up the config loader with defaults, env binding, and the
// config file contents.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// LEXA_SERVER_LXD_SUFFIX -> server.lxd.suffix
	v.SetEnvPrefix("LEXA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		// The documented default extension is .hcl but the on-disk grammar
		// is YAML-equivalent (see SPEC_FULL §10); tell viper explicitly so
		// the extension doesn't drive format sniffing.
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				return nil, fmt.Errorf("config file not found: %s", configPath)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures every default named in SPEC_FULL §6.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.lxd.suffix", DefaultSuffix)
	v.SetDefault("server.lxd.bind.host", "0.0.0.0")
	v.SetDefault("server.lxd.bind.port", 8443)

	v.SetDefault("server.tls.bind.host", "0.0.0.0")
	v.SetDefault("server.tls.bind.port", 8443)
	v.SetDefault("server.tls.so_reuse_port", false)

	v.SetDefault("server.dns.bind.host", "0.0.0.0")
	v.SetDefault("server.dns.bind.port", 53)

	v.SetDefault("server.log.level", "info")
	v.SetDefault("server.log.out", "stdout")
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load loads configuration from a YAML-equivalent file with environment
// variable overrides. This is the main entry point for loading configuration.
// An empty path loads defaults only (no file is read).
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}

// normalizeConfig validates and fills in derived defaults.
func normalizeConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.LXD.Suffix) == "" {
		cfg.Server.LXD.Suffix = DefaultSuffix
	}
	cfg.Server.LXD.Suffix = strings.Trim(cfg.Server.LXD.Suffix, ".")

	if cfg.Server.DNS.Bind.Port <= 0 || cfg.Server.DNS.Bind.Port > 65535 {
		return errors.New("server.dns.bind.port must be 1..65535")
	}

	if cfg.Server.DNS.DoH != nil && strings.TrimSpace(cfg.Server.DNS.DoH.Hostname) == "" {
		return errors.New("server.dns.doh.hostname is required when doh is configured")
	}

	if cfg.Server.Log.Level == "" {
		cfg.Server.Log.Level = "info"
	}
	cfg.Server.Log.Level = strings.ToLower(cfg.Server.Log.Level)
	if cfg.Server.Log.Out == "" {
		cfg.Server.Log.Out = "stdout"
	}

	return nil
}
