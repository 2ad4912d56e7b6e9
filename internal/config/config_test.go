package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PHYSICS_TWIN_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.AI.Enabled {
		t.Error("classifier must be disabled without an API key")
	}
	if cfg.Physics.Enabled {
		t.Error("physics reference must be disabled without a URL")
	}
	if cfg.Database.URL != "" {
		t.Errorf("database URL = %q, want empty", cfg.Database.URL)
	}
	if cfg.AI.Timeout != 12*time.Second {
		t.Errorf("classifier timeout = %v, want 12s", cfg.AI.Timeout)
	}
}

func TestLoadEnabledCollaborators(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("GEMINI_TIMEOUT_MS", "5000")
	t.Setenv("PHYSICS_TWIN_URL", "http://localhost:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !cfg.AI.Enabled {
		t.Error("classifier should be enabled with an API key")
	}
	if cfg.AI.Timeout != 5*time.Second {
		t.Errorf("classifier timeout = %v, want 5s", cfg.AI.Timeout)
	}
	if !cfg.Physics.Enabled {
		t.Error("physics reference should be enabled with a URL")
	}
}

func TestLoadExplicitOptOut(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AI.Enabled {
		t.Error("GEMINI_ENABLED=false must win over a present key")
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_TIMEOUT_MS", "-100")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for negative timeout")
	}
}
