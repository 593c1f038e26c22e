package gateguardconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gateguard/gateguard/gateguard"
)

func TestFromGo(t *testing.T) {
	cfg, err := FromGo(gateguard.Config{
		Audience:       "TSIAM",
		AllowedIssuers: []string{"https://idp/issuer"},
		JWKSURLs:       []string{"https://idp/jwks"},
	}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audience != "TSIAM" {
		t.Errorf("audience = %q", cfg.Audience)
	}

	_, err = FromGo(gateguard.Config{Audience: "TSIAM"}).Load()
	if err == nil || !strings.Contains(err.Error(), "issuer") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GATEGUARD_AUDIENCE", "TSIAM")
	t.Setenv("GATEGUARD_ALLOWED_ISSUERS", "https://idp/a, https://idp/b")
	t.Setenv("GATEGUARD_JWKS_URLS", "https://idp/jwks")
	t.Setenv("GATEGUARD_JWKS_CACHE_TTL_SEC", "900")
	t.Setenv("GATEGUARD_MAX_CLOCK_SKEW_SEC", "120")

	cfg, err := FromEnv("").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audience != "TSIAM" {
		t.Errorf("audience = %q", cfg.Audience)
	}
	if len(cfg.AllowedIssuers) != 2 || cfg.AllowedIssuers[1] != "https://idp/b" {
		t.Errorf("issuers = %v", cfg.AllowedIssuers)
	}
	if cfg.CacheTTL != 900*time.Second {
		t.Errorf("ttl = %v", cfg.CacheTTL)
	}
	if cfg.ClockSkew != 120*time.Second {
		t.Errorf("skew = %v", cfg.ClockSkew)
	}
}

func TestFromEnvRejectsPlainHTTP(t *testing.T) {
	t.Setenv("GATEGUARD_AUDIENCE", "TSIAM")
	t.Setenv("GATEGUARD_ALLOWED_ISSUERS", "https://idp/a")
	t.Setenv("GATEGUARD_JWKS_URLS", "http://idp/jwks")

	_, err := FromEnv("").Load()
	if err == nil || !strings.Contains(err.Error(), "https") {
		t.Errorf("expected https validation error, got %v", err)
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateguard.yaml")
	doc := `audience: TSIAM
allowed_issuers:
  - https://idp/issuer
jwks_urls:
  - https://idp/jwks
jwks_cache_ttl_sec: 300
max_clock_skew_sec: 60
log_level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := FromFile(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audience != "TSIAM" || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CacheTTL != 300*time.Second || cfg.ClockSkew != 60*time.Second {
		t.Errorf("durations = %v / %v", cfg.CacheTTL, cfg.ClockSkew)
	}

	if _, err := FromFile(filepath.Join(dir, "missing.yaml")).Load(); err == nil {
		t.Error("expected error for missing file")
	}
}
