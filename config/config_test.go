package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
http:
  port: 9090
model:
  path: models/risk-bundle.json
`)
	config, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", config.Http.Port)
	}
	if config.Http.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", config.Http.Timeout)
	}
	if config.Model.CacheSize != 128 {
		t.Fatalf("expected default cache size, got %d", config.Model.CacheSize)
	}
	if config.Frontend.Language != "es" {
		t.Fatalf("expected default language es, got %s", config.Frontend.Language)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
http:
  port: 8081
  timeout: 5s
  allowed_origins: ["http://localhost:3000"]
log:
  level: debug
  file: logs/safedrive.log
model:
  path: /srv/models/bundle.json
  cache_size: 0
  watch: true
  exit_on_load_error: true
frontend:
  title: Risk
  language: en
`)
	config, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", config.Http.Timeout)
	}
	if len(config.Http.AllowedOrigins) != 1 || config.Http.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", config.Http.AllowedOrigins)
	}
	if !config.Model.Watch || !config.Model.ExitOnLoadError || config.Model.CacheSize != 0 {
		t.Fatalf("unexpected model config: %+v", config.Model)
	}
	if config.Log.Level != "debug" || config.Frontend.Language != "en" {
		t.Fatalf("unexpected config: %+v", config)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"port":       "http:\n  port: 70000\n",
		"cache size": "model:\n  cache_size: -1\n",
		"empty path": "model:\n  path: \"\"\n",
		"bad yaml":   "http: [port\n",
	}
	for name, body := range cases {
		path := writeConfig(t, t.TempDir(), body)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "config.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestResolveRebasesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
model:
  path: models/risk-bundle.json
log:
  file: logs/app.log
`)
	config, found, err := Resolve(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != path {
		t.Fatalf("expected %s, got %s", path, found)
	}
	if want := filepath.Join(dir, "models", "risk-bundle.json"); config.Model.Path != want {
		t.Fatalf("expected %s, got %s", want, config.Model.Path)
	}
	if want := filepath.Join(dir, "logs", "app.log"); config.Log.File != want {
		t.Fatalf("expected %s, got %s", want, config.Log.File)
	}
}
