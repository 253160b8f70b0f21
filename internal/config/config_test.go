package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.JWTTTLHours != 168 {
		t.Fatalf("expected default token ttl 168h, got %d", cfg.JWTTTLHours)
	}
	if cfg.LegacyCompensation {
		t.Fatalf("legacy compensation must default to off")
	}
}

func TestBoolEnv(t *testing.T) {
	t.Setenv("DEDUPE_ALERTS", "TRUE")
	if !Load().DedupeAlerts {
		t.Fatalf("expected DEDUPE_ALERTS=TRUE to enable dedupe")
	}
}
