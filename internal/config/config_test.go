package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker.Queue != "script_events" {
		t.Errorf("broker queue = %q", cfg.Broker.Queue)
	}
	if cfg.Services.TimeoutSec != 30 || cfg.Services.MaxRetries != 3 {
		t.Errorf("service client settings = %d, %d", cfg.Services.TimeoutSec, cfg.Services.MaxRetries)
	}
	if cfg.RateLimit.SubmitPerMin != 30 || cfg.RateLimit.ConfigPerMin != 60 {
		t.Errorf("rate limits = %d, %d", cfg.RateLimit.SubmitPerMin, cfg.RateLimit.ConfigPerMin)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_SUBMIT_PER_MIN", "5")
	t.Setenv("RATE_LIMIT_CONFIG_PER_MIN", "7")
	t.Setenv("BROKER_QUEUE", "other_queue")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RateLimit.SubmitPerMin != 5 {
		t.Errorf("submit limit = %d, want 5", cfg.RateLimit.SubmitPerMin)
	}
	if cfg.RateLimit.ConfigPerMin != 7 {
		t.Errorf("config limit = %d, want 7", cfg.RateLimit.ConfigPerMin)
	}
	if cfg.Broker.Queue != "other_queue" {
		t.Errorf("broker queue = %q, want other_queue", cfg.Broker.Queue)
	}
}
