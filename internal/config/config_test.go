package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Session.ReconnectGrace != 30*time.Second || cfg.Session.TickInterval != time.Second {
		t.Fatalf("session defaults %+v", cfg.Session)
	}
	if cfg.Match.RatingRange != 1000 || cfg.Match.ChallengeTTL != time.Minute {
		t.Fatalf("match defaults %+v", cfg.Match)
	}
	if cfg.Reward.Queue != "arena:rewards" {
		t.Fatalf("reward queue %q", cfg.Reward.Queue)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("REDIS_URL", " redis://localhost:6379/2 ")
	t.Setenv("RECONNECT_GRACE", "45s")
	t.Setenv("ORACLE_CONCURRENCY", "4")
	t.Setenv("ALLOWED_ORIGINS", "a.example,b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.RedisURL != "redis://localhost:6379/2" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.Session.ReconnectGrace != 45*time.Second || cfg.Oracle.Concurrency != 4 {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Session, cfg.Oracle)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"ORACLE_CONCURRENCY": "0",
		"RECONNECT_GRACE":    "0s",
		"ANALYSIS_WORKERS":   "0",
		"RATING_RANGE":       "-1",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}
