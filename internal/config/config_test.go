package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "nested", "config.json")
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected defaults written to %s: %v", path, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	if cfg.Playback.Speed != 1.0 || cfg.Playback.RetryAttempts != 3 || cfg.Playback.EventBuffer != 64 {
		t.Errorf("unexpected defaults: %+v", cfg.Playback)
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := Default()
	original.LogLevel = "debug"
	original.Playback.Speed = 2.5
	original.Playback.Loops = 3
	original.Browser.URL = "https://example.com"
	original.Server.AllowedOrigins = []string{"http://a", "http://b"}

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LogLevel != "debug" || loaded.Playback.Speed != 2.5 || loaded.Playback.Loops != 3 {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
	if loaded.Browser.URL != "https://example.com" || len(loaded.Server.AllowedOrigins) != 2 {
		t.Errorf("round trip mismatch: %+v %+v", loaded.Browser, loaded.Server)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"playback": {"loops": 4}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Playback.Loops != 4 {
		t.Errorf("expected loops 4, got %d", cfg.Playback.Loops)
	}
	if cfg.Playback.Speed != 1.0 || cfg.Browser.Width != 1280 {
		t.Error("expected untouched keys to keep defaults")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DESKREPLAY_SPEED", "3")
	t.Setenv("DESKREPLAY_LOOPS", "2")
	t.Setenv("DESKREPLAY_BROWSER_HEADLESS", "false")
	t.Setenv("DESKREPLAY_ALLOWED_ORIGINS", "http://x, http://y,")
	t.Setenv("DESKREPLAY_RETRY_DELAY_MS", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Playback.Speed != 3 || cfg.Playback.Loops != 2 {
		t.Errorf("env overrides not applied: %+v", cfg.Playback)
	}
	if cfg.Browser.Headless {
		t.Error("expected headless disabled")
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://y" {
		t.Errorf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.RetryDelay() != 100*time.Millisecond {
		t.Errorf("invalid env value should fall back, got %v", cfg.RetryDelay())
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid log level to fail")
	}

	cfg = Default()
	cfg.Playback.RetryAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero retry attempts to fail")
	}
}

func TestInterActionDelay(t *testing.T) {
	cfg := Default()
	if cfg.InterActionDelay() != 0 {
		t.Error("zero should keep the platform default")
	}
	cfg.Playback.InterActionDelayMs = -5
	if cfg.InterActionDelay() >= 0 {
		t.Error("negative should disable the delay")
	}
	cfg.Playback.InterActionDelayMs = 15
	if cfg.InterActionDelay() != 15*time.Millisecond {
		t.Errorf("got %v", cfg.InterActionDelay())
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	if err != nil || lvl != slog.LevelWarn {
		t.Errorf("ParseLevel(WARN) = %v, %v", lvl, err)
	}
}
