package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Gateway strategies. Concurrent fires both upstreams in parallel;
// gated calls vision first and skips OCR when no vehicle was detected.
const (
	StrategyConcurrent = "concurrent"
	StrategyGated      = "gated"
)

type ServerConfig struct {
	Port int
	Mode string
}

type DatabaseConfig struct {
	DSN string
}

type OCRConfig struct {
	URL   string
	Token string
}

type VisionConfig struct {
	URL string
}

type RecognitionConfig struct {
	Strategy       string
	TimeoutSeconds int
}

type CaptureConfig struct {
	IntervalMillis int
	SnapshotURL    string
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level string
}

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	OCR         OCRConfig
	Vision      VisionConfig
	Recognition RecognitionConfig
	Capture     CaptureConfig
	Auth        AuthConfig
	Log         LogConfig
}

// Load reads configuration from an optional config.yaml in the working
// directory plus PLATEWATCH_* environment variables, then validates it.
// Missing upstream credentials are a startup error, not a per-request
// one.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.dsn", "")
	v.SetDefault("ocr.url", "")
	v.SetDefault("ocr.token", "")
	v.SetDefault("vision.url", "")
	v.SetDefault("recognition.strategy", StrategyConcurrent)
	v.SetDefault("recognition.timeout_seconds", 30)
	v.SetDefault("capture.interval_millis", 1000)
	v.SetDefault("capture.snapshot_url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("PLATEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("server.port"),
			Mode: v.GetString("server.mode"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		OCR: OCRConfig{
			URL:   v.GetString("ocr.url"),
			Token: v.GetString("ocr.token"),
		},
		Vision: VisionConfig{
			URL: v.GetString("vision.url"),
		},
		Recognition: RecognitionConfig{
			Strategy:       v.GetString("recognition.strategy"),
			TimeoutSeconds: v.GetInt("recognition.timeout_seconds"),
		},
		Capture: CaptureConfig{
			IntervalMillis: v.GetInt("capture.interval_millis"),
			SnapshotURL:    v.GetString("capture.snapshot_url"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OCR.URL == "" {
		return errors.New("ocr.url is required")
	}
	if c.OCR.Token == "" {
		return errors.New("ocr.token is required")
	}
	if c.Vision.URL == "" {
		return errors.New("vision.url is required")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Recognition.Strategy {
	case StrategyConcurrent, StrategyGated:
	default:
		return fmt.Errorf("recognition.strategy must be %q or %q, got %q",
			StrategyConcurrent, StrategyGated, c.Recognition.Strategy)
	}
	if c.Recognition.TimeoutSeconds <= 0 {
		return errors.New("recognition.timeout_seconds must be positive")
	}
	if c.Capture.IntervalMillis <= 0 {
		return errors.New("capture.interval_millis must be positive")
	}
	return nil
}

func (c *Config) RecognitionTimeout() time.Duration {
	return time.Duration(c.Recognition.TimeoutSeconds) * time.Second
}

func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalMillis) * time.Millisecond
}
