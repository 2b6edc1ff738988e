package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFromDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://iv1201-vt24-backend.vercel.app" {
		t.Fatalf("unexpected default base url %q", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != 0 {
		t.Fatalf("expected no timeout by default, got %v", cfg.HTTPTimeout)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
	if !strings.HasSuffix(cfg.SessionFile, "recruit/session.json") {
		t.Fatalf("unexpected session file %q", cfg.SessionFile)
	}
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"RECRUIT_API_URL":      "http://localhost:4000",
		"RECRUIT_HTTP_TIMEOUT": "5s",
		"RECRUIT_SESSION_FILE": "/tmp/s.json",
		"RECRUIT_TOKEN_SECRET": "k",
		"LOG_LEVEL":            "debug",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Config{
		APIBaseURL:  "http://localhost:4000",
		HTTPTimeout: 5 * time.Second,
		SessionFile: "/tmp/s.json",
		TokenSecret: "k",
		LogLevel:    "debug",
	}
	if cfg != want {
		t.Fatalf("expected %+v, got %+v", want, cfg)
	}
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	for _, v := range []string{"soon", "-1s"} {
		_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
			"RECRUIT_HTTP_TIMEOUT": v,
			"RECRUIT_SESSION_FILE": "/tmp/s.json",
		}))
		if err == nil {
			t.Fatalf("expected error for timeout %q", v)
		}
	}
}
