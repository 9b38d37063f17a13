package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/fsnotify/fsnotify"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParseMergesOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
app:
  id: board-demo
glasses:
  fov: 50
  gameboard: xe_raised
  auto_connect: [T5-A, T5-B]
device:
  retry_delay: 5ms
  list_retries: 3
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.App.ID != "board-demo" || cfg.App.Version != "0.1.0" {
		t.Errorf("app = %+v, want id overridden and version defaulted", cfg.App)
	}
	if cfg.Glasses.Width != device.DefaultTextureWidth {
		t.Errorf("width = %d, want default %d", cfg.Glasses.Width, device.DefaultTextureWidth)
	}
	if cfg.Gameboard() != device.GameboardXERaised {
		t.Errorf("Gameboard() = %v, want xe_raised", cfg.Gameboard())
	}
	if got := len(cfg.Glasses.AutoConnect); got != 2 {
		t.Errorf("auto_connect has %d entries, want 2", got)
	}
	p := cfg.RetryPolicy()
	if p.Delay != 5*time.Millisecond || p.List != 3 || p.Context != 100 {
		t.Errorf("RetryPolicy() = %+v", p)
	}
	if cfg.MapTimeout() != 16*time.Millisecond {
		t.Errorf("MapTimeout() = %v, want 16ms", cfg.MapTimeout())
	}
	if cfg.TickInterval() != time.Second/60 {
		t.Errorf("TickInterval() = %v", cfg.TickInterval())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty app id", "app: {id: ''}", "app.id"},
		{"unknown driver", "device: {driver: usb}", "device.driver"},
		{"bad delay", "device: {retry_delay: soon}", "device.retry_delay"},
		{"zero width", "glasses: {width: 0}", "glasses size"},
		{"wide fov", "glasses: {fov: 180}", "glasses.fov"},
		{"unknown board", "glasses: {gameboard: huge}", "glasses.gameboard"},
		{"negative timeout", "glasses: {map_timeout: -1ms}", "glasses.map_timeout"},
		{"nul auto connect", "glasses: {auto_connect: [\"a\\0b\"]}", "auto_connect"},
		{"zero tick rate", "engine: {tick_rate: 0}", "engine.tick_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSimulatedSettingsIgnoredForNativeDriver(t *testing.T) {
	if _, err := Parse([]byte("device: {driver: native}\nsimulated: {orbit_period: never}")); err != nil {
		t.Errorf("Parse() error = %v, want simulated section ignored", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() of a missing file succeeded")
	}
}

func TestIsReload(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "t5.yaml")
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: abs, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: abs, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: abs, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: abs + ".swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := isReload(tt.ev, abs); got != tt.want {
			t.Errorf("isReload(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}

func TestWatchDeliversValidEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t5.yaml")
	if err := os.WriteFile(path, []byte("glasses: {auto_connect: []}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	changes := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { changes <- c }) }()

	// Rewrite until the watcher has picked up the change; the watch may not be armed yet.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changes:
			if len(cfg.Glasses.AutoConnect) != 1 || cfg.Glasses.AutoConnect[0] != "T5-A" {
				t.Fatalf("reloaded auto_connect = %v, want [T5-A]", cfg.Glasses.AutoConnect)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() = %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("glasses: {auto_connect: [T5-A]}\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
