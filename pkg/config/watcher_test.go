package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")

	changes := make(chan *Config, 4)
	w := NewWatcher(path, nil, func(cfg *Config) { changes <- cfg })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Telemetry.Logging.Level != "debug" {
			t.Errorf("expected reloaded level debug, got %q", cfg.Telemetry.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned error: %v", err)
	}
}

func TestWatcher_IgnoresInvalidFile(t *testing.T) {
	path := writeConfig(t, "proxy:\n  mode: domain\n")

	called := false
	w := NewWatcher(path, nil, func(*Config) { called = true })

	if err := os.WriteFile(path, []byte("proxy:\n  mode: nope\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	w.reload()

	if called {
		t.Error("callback should not run for an invalid configuration")
	}
}
