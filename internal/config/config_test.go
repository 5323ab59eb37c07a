package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Database.DSN = "host=localhost user=pw dbname=pw"
	cfg.OCR.URL = "https://ocr.example.com/v1/plate-reader"
	cfg.OCR.Token = "secret"
	cfg.Vision.URL = "http://localhost:8000"
	cfg.Recognition.Strategy = StrategyConcurrent
	cfg.Recognition.TimeoutSeconds = 30
	cfg.Capture.IntervalMillis = 1000
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"valid gated", func(c *Config) { c.Recognition.Strategy = StrategyGated }, ""},
		{"missing ocr url", func(c *Config) { c.OCR.URL = "" }, "ocr.url"},
		{"missing ocr token", func(c *Config) { c.OCR.Token = "" }, "ocr.token"},
		{"missing vision url", func(c *Config) { c.Vision.URL = "" }, "vision.url"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad strategy", func(c *Config) { c.Recognition.Strategy = "race" }, "recognition.strategy"},
		{"zero timeout", func(c *Config) { c.Recognition.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"zero interval", func(c *Config) { c.Capture.IntervalMillis = 0 }, "interval_millis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLATEWATCH_OCR_URL", "https://ocr.example.com/v1/plate-reader")
	t.Setenv("PLATEWATCH_OCR_TOKEN", "tok")
	t.Setenv("PLATEWATCH_VISION_URL", "http://vision:8000")
	t.Setenv("PLATEWATCH_DATABASE_DSN", "host=db user=pw dbname=pw")
	t.Setenv("PLATEWATCH_RECOGNITION_STRATEGY", "gated")
	t.Setenv("PLATEWATCH_CAPTURE_INTERVAL_MILLIS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Strategy != StrategyGated {
		t.Errorf("strategy = %q, want gated", cfg.Recognition.Strategy)
	}
	if cfg.Capture.IntervalMillis != 250 {
		t.Errorf("interval = %d, want 250", cfg.Capture.IntervalMillis)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port default = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("PLATEWATCH_OCR_URL", "")
	t.Setenv("PLATEWATCH_OCR_TOKEN", "")
	t.Setenv("PLATEWATCH_VISION_URL", "")
	t.Setenv("PLATEWATCH_DATABASE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected configuration error, got nil")
	}
}
