package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TGIMPORT_BASE_URL", "TGIMPORT_TOKEN", "TGIMPORT_CONFIG_ID", "TGIMPORT_LISTEN",
		"TGIMPORT_DB", "TGIMPORT_PROFILE_DIR"} {
		t.Setenv(key, "")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	clearEnv(t)
	withChdir(t, t.TempDir())

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.BaseURL != defaultBaseURL {
		t.Fatalf("expected default base url %q, got %q", defaultBaseURL, env.BaseURL)
	}
	if env.Listen != defaultListen || env.Database != defaultDatabase || env.ProfileDir != defaultProfileDir {
		t.Fatalf("unexpected defaults: %#v", env)
	}
	if env.ConfigID != 0 {
		t.Fatalf("expected no config id, got %d", env.ConfigID)
	}
}

func TestLoadEnvTomlMerge(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	withChdir(t, dir)

	content := `
[defaults]
base_url = "https://backend.example.com"
token = "file-token"
config_id = 12

[serve]
listen = "127.0.0.1:8080"
database = "dev.db"

[mapping]
profile_dir = "mappings"

[[config_files]]
id = 12
file_name = "plc.conf"
`
	if err := os.WriteFile(filepath.Join(dir, DefaultTomlPath), []byte(content), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	t.Setenv("TGIMPORT_TOKEN", "env-token")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.BaseURL != "https://backend.example.com" {
		t.Fatalf("base url not merged: %q", env.BaseURL)
	}
	if env.Token != "env-token" {
		t.Fatalf("env token should win, got %q", env.Token)
	}
	if env.ConfigID != 12 || env.Listen != "127.0.0.1:8080" || env.Database != "dev.db" || env.ProfileDir != "mappings" {
		t.Fatalf("unexpected env: %#v", env)
	}
	if id, ok := env.LookupConfigFile("PLC.conf"); !ok || id != 12 {
		t.Fatalf("expected remembered config file, got %d %v", id, ok)
	}
}

func TestLoadEnvInvalidValues(t *testing.T) {
	clearEnv(t)
	withChdir(t, t.TempDir())

	t.Setenv("TGIMPORT_CONFIG_ID", "abc")
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected error for non-numeric config id")
	}

	t.Setenv("TGIMPORT_CONFIG_ID", "")
	t.Setenv("TGIMPORT_BASE_URL", "ftp://backend")
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected error for non-http base url")
	}
}

func TestLoadEnvBrokenToml(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	withChdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, DefaultTomlPath), []byte("[defaults\n"), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
