package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Env holds validated settings for the CLI and the dev backend.
type Env struct {
	BaseURL    string
	Token      string
	ConfigID   int64
	Listen     string
	Database   string
	ProfileDir string
	// ConfigFiles lists config files remembered in tgimport.toml.
	ConfigFiles []ConfigFileRef
}

const (
	defaultBaseURL    = "http://127.0.0.1:5000"
	defaultListen     = ":5000"
	defaultDatabase   = "points.db"
	defaultProfileDir = "profiles"
	DefaultTomlPath   = "tgimport.toml"
)

// LoadEnv reads environment variables, merges tgimport.toml from the working directory, applies defaults and
// validates values. Environment variables win over the file.
func LoadEnv() (Env, error) {
	env := Env{
		BaseURL:    strings.TrimSpace(os.Getenv("TGIMPORT_BASE_URL")),
		Token:      strings.TrimSpace(os.Getenv("TGIMPORT_TOKEN")),
		Listen:     strings.TrimSpace(os.Getenv("TGIMPORT_LISTEN")),
		Database:   strings.TrimSpace(os.Getenv("TGIMPORT_DB")),
		ProfileDir: strings.TrimSpace(os.Getenv("TGIMPORT_PROFILE_DIR")),
	}
	if raw := strings.TrimSpace(os.Getenv("TGIMPORT_CONFIG_ID")); raw != "" {
		id, err := parseConfigID(raw)
		if err != nil {
			return Env{}, fmt.Errorf("TGIMPORT_CONFIG_ID: %w", err)
		}
		env.ConfigID = id
	}

	if err := mergeTomlConfig(&env, filepath.Join(".", DefaultTomlPath)); err != nil {
		return Env{}, err
	}

	if env.BaseURL == "" {
		env.BaseURL = defaultBaseURL
	}
	if env.Listen == "" {
		env.Listen = defaultListen
	}
	if env.Database == "" {
		env.Database = defaultDatabase
	}
	if env.ProfileDir == "" {
		env.ProfileDir = defaultProfileDir
	}

	if err := validateURL(env.BaseURL, "TGIMPORT_BASE_URL"); err != nil {
		return Env{}, err
	}
	return env, nil
}

func validateURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be a valid absolute URL, got %q", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, raw)
	}
	return nil
}

func parseConfigID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	return id, nil
}

func mergeTomlConfig(env *Env, path string) error {
	cfg, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if base := strings.TrimSpace(cfg.Defaults.BaseURL); base != "" && env.BaseURL == "" {
		env.BaseURL = base
	}
	if token := strings.TrimSpace(cfg.Defaults.Token); token != "" && env.Token == "" {
		env.Token = token
	}
	if cfg.Defaults.ConfigID != 0 && env.ConfigID == 0 {
		if cfg.Defaults.ConfigID < 0 {
			return fmt.Errorf("%s: defaults.config_id must be positive, got %d", path, cfg.Defaults.ConfigID)
		}
		env.ConfigID = cfg.Defaults.ConfigID
	}
	if listen := strings.TrimSpace(cfg.Serve.Listen); listen != "" && env.Listen == "" {
		env.Listen = listen
	}
	if db := strings.TrimSpace(cfg.Serve.Database); db != "" && env.Database == "" {
		env.Database = db
	}
	if dir := strings.TrimSpace(cfg.Mapping.ProfileDir); dir != "" && env.ProfileDir == "" {
		env.ProfileDir = dir
	}
	env.ConfigFiles = append(env.ConfigFiles, cfg.ConfigFiles...)
	return nil
}
