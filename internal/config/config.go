// Package config loads exporter settings from an optional YAML file, an
// optional .env file and the process environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"printer_history/exporter-go/internal/connect"
	"printer_history/exporter-go/internal/session"
)

type Config struct {
	// TabURL stands in for the focused browser tab.
	TabURL          string `yaml:"tab_url"`
	DashboardPrefix string `yaml:"dashboard_prefix"`
	BaseURL         string `yaml:"base_url"`
	SessionCookie   string `yaml:"session_cookie"`

	OutputDir string `yaml:"output_dir"`
	Overwrite bool   `yaml:"overwrite"`

	// HTTPAddr enables the local panel when set.
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// RequestTimeout of zero leaves API requests unbounded.
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Timezone        string        `yaml:"timezone"`
	TimestampLayout string        `yaml:"timestamp_layout"`
}

func Defaults() Config {
	return Config{
		DashboardPrefix: session.DefaultPrefix,
		BaseURL:         connect.DefaultBaseURL,
		OutputDir:       ".",
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

type LoadOptions struct {
	ConfigPath string
	DotEnvPath string
	Getenv     func(string) string
}

// Load builds a Config. Missing config or .env files are not an error when
// their paths were not given explicitly by the caller.
func Load(opts LoadOptions) (Config, error) {
	cfg := Defaults()

	if opts.ConfigPath != "" {
		if err := readYAML(opts.ConfigPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	if opts.DotEnvPath != "" {
		m, err := godotenv.Read(opts.DotEnvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", opts.DotEnvPath, err)
		}
		if m != nil {
			dotenv = m
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) string) error {
	strs := map[string]*string{
		"TAB_URL":              &cfg.TabURL,
		"DASHBOARD_PREFIX":     &cfg.DashboardPrefix,
		"PRUSA_BASE_URL":       &cfg.BaseURL,
		"PRUSA_SESSION_COOKIE": &cfg.SessionCookie,
		"OUTPUT_DIR":           &cfg.OutputDir,
		"HTTP_ADDR":            &cfg.HTTPAddr,
		"LOG_LEVEL":            &cfg.LogLevel,
		"LOG_FORMAT":           &cfg.LogFormat,
		"TIMEZONE":             &cfg.Timezone,
		"TIMESTAMP_LAYOUT":     &cfg.TimestampLayout,
	}
	for key, dst := range strs {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}

	if v := lookup("OVERWRITE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OVERWRITE: %w", err)
		}
		cfg.Overwrite = b
	}
	if v := lookup("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q must be an absolute url", c.BaseURL)
	}
	if strings.TrimSpace(c.DashboardPrefix) == "" {
		return errors.New("dashboard_prefix must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log_format %q must be json or console", c.LogFormat)
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, defaulting to the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
