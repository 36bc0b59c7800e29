package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Getenv: envMap(nil)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.DashboardPrefix != "https://connect.prusa3d.com/" {
		t.Fatalf("unexpected prefix %q", cfg.DashboardPrefix)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "exporter.yaml")
	if err := os.WriteFile(cfgPath, []byte(strings.Join([]string{
		"tab_url: https://connect.prusa3d.com/app/dashboard",
		"output_dir: /from/yaml",
		"log_level: warn",
		"request_timeout: 30s",
		"timezone: UTC",
	}, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("OUTPUT_DIR=/from/dotenv\nPRUSA_SESSION_COOKIE=SESSID=abc\nLOG_LEVEL=error\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		DotEnvPath: envPath,
		Getenv:     envMap(map[string]string{"LOG_LEVEL": "debug", "OVERWRITE": "true"}),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TabURL != "https://connect.prusa3d.com/app/dashboard" {
		t.Fatalf("expected tab url from yaml, got %q", cfg.TabURL)
	}
	if cfg.OutputDir != "/from/dotenv" {
		t.Fatalf("expected .env to override yaml, got %q", cfg.OutputDir)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected environment to override .env, got %q", cfg.LogLevel)
	}
	if cfg.SessionCookie != "SESSID=abc" {
		t.Fatalf("unexpected cookie %q", cfg.SessionCookie)
	}
	if !cfg.Overwrite {
		t.Fatal("expected overwrite from environment")
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	if _, err := Load(LoadOptions{DotEnvPath: filepath.Join(t.TempDir(), ".env"), Getenv: envMap(nil)}); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestLoad_RejectsUnknownYAMLFields(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("tab_uri: typo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(LoadOptions{ConfigPath: p, Getenv: envMap(nil)}); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"overwrite": {"OVERWRITE": "maybe"},
		"timeout":   {"REQUEST_TIMEOUT": "soon"},
		"base url":  {"PRUSA_BASE_URL": "connect.prusa3d.com"},
		"timezone":  {"TIMEZONE": "Mars/Olympus_Mons"},
		"format":    {"LOG_FORMAT": "xml"},
	}
	for name, env := range cases {
		if _, err := Load(LoadOptions{Getenv: envMap(env)}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
