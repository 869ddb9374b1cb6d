package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("expected default driver postgres, got %s", cfg.Store.Driver)
	}
	if cfg.Worker.CompletionDelay != 30*time.Second {
		t.Errorf("expected default completion delay 30s, got %s", cfg.Worker.CompletionDelay)
	}
	if cfg.Worker.Count != 8 {
		t.Errorf("expected default worker count 8, got %d", cfg.Worker.Count)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("COMPLETION_DELAY", "150ms")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected driver memory, got %s", cfg.Store.Driver)
	}
	if cfg.Worker.CompletionDelay != 150*time.Millisecond {
		t.Errorf("expected completion delay 150ms, got %s", cfg.Worker.CompletionDelay)
	}
	if cfg.Worker.Count != 2 {
		t.Errorf("expected worker count 2, got %d", cfg.Worker.Count)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Errorf("expected shutdown timeout 3s, got %s", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("COMPLETION_DELAY", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
