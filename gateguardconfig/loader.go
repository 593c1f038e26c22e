// Package gateguardconfig loads a gateguard.Config from Go values,
// environment variables, or a config file.
package gateguardconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gateguard/gateguard/gateguard"
)

// Loader loads a gateguard.Config from a source. Every loader validates
// the result before returning it.
type Loader interface {
	Load() (*gateguard.Config, error)
}

// goLoader returns a static config.
type goLoader struct {
	cfg gateguard.Config
}

// FromGo creates a Loader that returns the provided config directly.
func FromGo(cfg gateguard.Config) Loader {
	return &goLoader{cfg: cfg}
}

func (l *goLoader) Load() (*gateguard.Config, error) {
	cfg := l.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// envLoader reads settings from environment variables under a prefix,
// e.g. GATEGUARD_AUDIENCE, GATEGUARD_ALLOWED_ISSUERS (comma-separated),
// GATEGUARD_JWKS_URLS (comma-separated), GATEGUARD_JWKS_CACHE_TTL_SEC,
// GATEGUARD_JWKS_REFRESH_SEC, GATEGUARD_MAX_CLOCK_SKEW_SEC,
// GATEGUARD_LOG_LEVEL.
type envLoader struct {
	prefix string
}

// FromEnv creates a Loader backed by environment variables with the
// given prefix (defaults to "GATEGUARD" when empty).
func FromEnv(prefix string) Loader {
	if prefix == "" {
		prefix = "GATEGUARD"
	}
	return &envLoader{prefix: prefix}
}

func (l *envLoader) Load() (*gateguard.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(l.prefix)
	v.AutomaticEnv()

	cfg := gateguard.Config{
		Audience:       v.GetString("audience"),
		AllowedIssuers: splitList(v.GetString("allowed_issuers")),
		JWKSURLs:       splitList(v.GetString("jwks_urls")),
		LogLevel:       v.GetString("log_level"),
	}
	if sec := v.GetInt("jwks_cache_ttl_sec"); sec > 0 {
		cfg.CacheTTL = time.Duration(sec) * time.Second
	}
	if sec := v.GetInt("jwks_refresh_sec"); sec > 0 {
		cfg.RefreshInterval = time.Duration(sec) * time.Second
	}
	if sec := v.GetInt("max_clock_skew_sec"); sec > 0 {
		cfg.ClockSkew = time.Duration(sec) * time.Second
	}
	if sec := v.GetInt("result_cache_ttl_sec"); sec > 0 {
		cfg.ResultCacheTTL = time.Duration(sec) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// fileLoader reads settings from a yaml/json/toml file.
type fileLoader struct {
	path string
}

// FromFile creates a Loader that reads config from the given file; the
// format is inferred from the extension.
func FromFile(path string) Loader {
	return &fileLoader{path: path}
}

// fileConfig mirrors gateguard.Config for file deserialization, with
// durations expressed in seconds like the environment surface.
type fileConfig struct {
	Audience          string            `mapstructure:"audience"`
	AllowedIssuers    []string          `mapstructure:"allowed_issuers"`
	JWKSURLs          []string          `mapstructure:"jwks_urls"`
	JWKSCacheTTLSec   int               `mapstructure:"jwks_cache_ttl_sec"`
	JWKSRefreshSec    int               `mapstructure:"jwks_refresh_sec"`
	MaxClockSkewSec   int               `mapstructure:"max_clock_skew_sec"`
	ResultCacheTTLSec int               `mapstructure:"result_cache_ttl_sec"`
	ResultCacheSize   int64             `mapstructure:"result_cache_size"`
	LogLevel          string            `mapstructure:"log_level"`
	JWKSExtraHeaders  map[string]string `mapstructure:"jwks_extra_headers"`
}

func (l *fileLoader) Load() (*gateguard.Config, error) {
	v := viper.New()
	v.SetConfigFile(l.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg := gateguard.Config{
		Audience:         fc.Audience,
		AllowedIssuers:   fc.AllowedIssuers,
		JWKSURLs:         fc.JWKSURLs,
		CacheTTL:         time.Duration(fc.JWKSCacheTTLSec) * time.Second,
		RefreshInterval:  time.Duration(fc.JWKSRefreshSec) * time.Second,
		ClockSkew:        time.Duration(fc.MaxClockSkewSec) * time.Second,
		ResultCacheTTL:   time.Duration(fc.ResultCacheTTLSec) * time.Second,
		ResultCacheSize:  fc.ResultCacheSize,
		LogLevel:         fc.LogLevel,
		JWKSExtraHeaders: fc.JWKSExtraHeaders,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
