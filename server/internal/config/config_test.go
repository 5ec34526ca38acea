package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `dataset:
  path: data.csv
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Session.TTL != DefaultSessionTTL {
		t.Errorf("session.ttl: got %v, want %v", cfg.Session.TTL, DefaultSessionTTL)
	}
	if cfg.Stream.Interval != DefaultStreamInterval {
		t.Errorf("stream.interval: got %v, want %v", cfg.Stream.Interval, DefaultStreamInterval)
	}
	if cfg.Ledger.Backend != "none" {
		t.Errorf("ledger.backend: got %q, want none", cfg.Ledger.Backend)
	}
	if cfg.Dataset.Path != "data.csv" {
		t.Errorf("dataset.path: got %q, want data.csv", cfg.Dataset.Path)
	}
	if len(cfg.Server.CORS.AllowedOrigins) != 1 || cfg.Server.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("cors: got %v, want [*]", cfg.Server.CORS.AllowedOrigins)
	}
	if cfg.Log.SlogLevel() != slog.LevelInfo {
		t.Errorf("log level: got %v, want info", cfg.Log.SlogLevel())
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-gs-key
  cors:
    allowed_origins: ["https://plant.example"]
dataset:
  path: runs.xlsx
  sheet: Runs
  watch: true
session:
  ttl: 10m
stream:
  interval: 2s
ledger:
  backend: sqlite
  dsn_env: LEDGER_DSN
notify:
  webhooks:
    - type: slack
      url_env: SLACK_URL
log:
  level: debug
  format: text
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-gs-key" {
		t.Errorf("header: got %q, want x-gs-key", cfg.Server.Auth.EffectiveHeader())
	}
	if got := cfg.Server.CORS.AllowedOrigins; len(got) != 1 || got[0] != "https://plant.example" {
		t.Errorf("cors: got %v", got)
	}
	if cfg.Dataset.Sheet != "Runs" || !cfg.Dataset.Watch {
		t.Errorf("dataset: got %+v", cfg.Dataset)
	}
	if cfg.Session.TTL != 10*time.Minute {
		t.Errorf("session.ttl: got %v, want 10m", cfg.Session.TTL)
	}
	if cfg.Stream.Interval != 2*time.Second {
		t.Errorf("stream.interval: got %v, want 2s", cfg.Stream.Interval)
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Errorf("ledger.backend: got %q, want sqlite", cfg.Ledger.Backend)
	}
	if len(cfg.Notify.Webhooks) != 1 || cfg.Notify.Webhooks[0].Type != "slack" {
		t.Errorf("webhooks: got %+v", cfg.Notify.Webhooks)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug || cfg.Log.Format != "text" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	t.Setenv("TEST_LEDGER_DSN", "/tmp/ledger.db")
	t.Setenv("TEST_HOOK_URL", "https://hooks.example/x")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
ledger:
  backend: sqlite
  dsn_env: TEST_LEDGER_DSN
notify:
  webhooks:
    - type: http
      url_env: TEST_HOOK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
	if d := cfg.Ledger.DSN(); d != "/tmp/ledger.db" {
		t.Errorf("DSN(): got %q", d)
	}
	if u := cfg.Notify.Webhooks[0].URL(); u != "https://hooks.example/x" {
		t.Errorf("URL(): got %q", u)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n"},
		{"apikey without key_env", "server:\n  auth:\n    mode: apikey\n"},
		{"port out of range", "server:\n  http_port: 70000\n"},
		{"empty dataset path", "dataset:\n  path: \"\"\n"},
		{"zero ttl", "session:\n  ttl: 0s\n"},
		{"negative interval", "stream:\n  interval: -1s\n"},
		{"unknown ledger", "ledger:\n  backend: mongo\n"},
		{"sqlite without dsn_env", "ledger:\n  backend: sqlite\n"},
		{"unknown webhook type", "notify:\n  webhooks:\n    - type: pagerduty\n      url_env: X\n"},
		{"webhook without url_env", "notify:\n  webhooks:\n    - type: slack\n"},
		{"unknown log format", "log:\n  format: xml\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := validate(Default()); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	reloaded := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(path string) error {
			if path != p {
				t.Errorf("reload path: got %q, want %q", path, p)
			}
			if calls.Add(1) == 1 {
				return errors.New("half written")
			}
			reloaded <- struct{}{}
			return nil
		})
	}()

	// Keep writing until the watcher is registered and a reload succeeds.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-reloaded:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(p, []byte("b"), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_SurvivesAtomicReplace(t *testing.T) {
	p := writeConfig(t, "v0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 64)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(path string) error {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			select {
			case seen <- string(b):
			default:
			}
			return nil
		})
	}()

	replace := func(content string) {
		tmp := p + ".tmp"
		if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
			t.Fatalf("write tmp: %v", err)
		}
		if err := os.Rename(tmp, p); err != nil {
			t.Fatalf("rename: %v", err)
		}
	}
	write := func(content string) {
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// waitFor repeats step until a reload observes want.
	waitFor := func(want string, step func(string)) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case got := <-seen:
				if got == want {
					return
				}
			case <-tick.C:
				step(want)
			case <-deadline:
				t.Fatalf("no reload with content %q", want)
			}
		}
	}

	waitFor("replaced", replace)
	// The watch must still be alive after the rename.
	waitFor("written", write)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	p := writeConfig(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, p, func(string) error { calls.Add(1); return nil }) //nolint:errcheck

	sibling := filepath.Join(filepath.Dir(p), "other.csv")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(sibling, []byte("x"), 0o600); err != nil {
			t.Fatalf("write sibling: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("reload calls for sibling writes: got %d, want 0", n)
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/dataset.csv", func(string) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
