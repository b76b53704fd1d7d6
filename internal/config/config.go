package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	CORSOrigins  []string `yaml:"cors_origins"`
	RateLimit    int      `yaml:"rate_limit_per_minute"`
	MaxJSONBytes int64    `yaml:"max_json_bytes"`
}

type StorageConfig struct {
	DataPath             string `yaml:"data_path"`
	ScratchPath          string `yaml:"scratch_path"`
	DBPath               string `yaml:"db_path"`
	HistoryRetentionDays int    `yaml:"history_retention_days"`
}

type AuthConfig struct {
	Required      bool   `yaml:"required"`
	JWTSecret     string `yaml:"jwt_secret"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

type MediaConfig struct {
	FFmpegPath         string `yaml:"ffmpeg_path"`
	FFprobePath        string `yaml:"ffprobe_path"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
	MaxDownloadBytes   int64  `yaml:"max_download_bytes"`
	DownloadTimeoutSec int    `yaml:"download_timeout_sec"`
}

// EngineConfig selects a recognition or diarization backend
type EngineConfig struct {
	Backend    string `yaml:"backend"` // none, mock, http, whisper.cpp, exec
	URL        string `yaml:"url"`
	Command    string `yaml:"command"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

func (e EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

type TranscriptionConfig struct {
	DefaultLanguage  string   `yaml:"default_language"`
	Languages        []string `yaml:"languages"`
	MergeThreshold   float64  `yaml:"merge_threshold"` // seconds
	EngineTimeoutSec int      `yaml:"engine_timeout_sec"`
	MaxConcurrent    int      `yaml:"max_concurrent"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"` // host:port, or "stdout"
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	Metrics      bool   `yaml:"metrics"`
}

type EventsConfig struct {
	NATSURL        string `yaml:"nats_url"`
	Subject        string `yaml:"subject"`
	Token          string `yaml:"token"`
	ConnectTimeout int    `yaml:"connect_timeout_ms"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Media         MediaConfig         `yaml:"media"`
	Recognizer    EngineConfig        `yaml:"recognizer"`
	Diarizer      EngineConfig        `yaml:"diarizer"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Events        EventsConfig        `yaml:"events"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         7869,
			CORSOrigins:  []string{"*"},
			RateLimit:    30,
			MaxJSONBytes: 1 << 20,
		},
		Storage: StorageConfig{
			DataPath:             "/data",
			HistoryRetentionDays: 30,
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
			AdminPassword: "admin",
		},
		Media: MediaConfig{
			FFmpegPath:         "ffmpeg",
			FFprobePath:        "ffprobe",
			MaxUploadBytes:     2 << 30,
			MaxDownloadBytes:   2 << 30,
			DownloadTimeoutSec: 300,
		},
		Recognizer: EngineConfig{Backend: "none", TimeoutSec: 600},
		Diarizer:   EngineConfig{Backend: "none", TimeoutSec: 600},
		Transcription: TranscriptionConfig{
			DefaultLanguage:  "zh",
			Languages:        []string{"zh", "en"},
			MergeThreshold:   8,
			EngineTimeoutSec: 1800,
			MaxConcurrent:    4,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "asr-api",
			OTLPInsecure: true,
			Metrics:      true,
		},
		Events: EventsConfig{
			Subject:        "asr.transcriptions",
			ConnectTimeout: 2000,
		},
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides and derived defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %w", err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	fillDerived(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Server.Host, "HOST")
	overrideInt(&cfg.Server.Port, "PORT")
	overrideStringSlice(&cfg.Server.CORSOrigins, "CORS_ORIGINS")
	overrideInt(&cfg.Server.RateLimit, "RATE_LIMIT_PER_MINUTE")
	overrideString(&cfg.Storage.DataPath, "DATA_PATH")
	overrideString(&cfg.Storage.ScratchPath, "SCRATCH_PATH")
	overrideString(&cfg.Storage.DBPath, "DB_PATH")
	overrideInt(&cfg.Storage.HistoryRetentionDays, "HISTORY_RETENTION_DAYS")
	overrideBool(&cfg.Auth.Required, "AUTH_REQUIRED")
	overrideString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.Auth.AdminUsername, "ADMIN_USERNAME")
	overrideString(&cfg.Auth.AdminPassword, "ADMIN_PASSWORD")
	overrideString(&cfg.Media.FFmpegPath, "FFMPEG_PATH")
	overrideString(&cfg.Media.FFprobePath, "FFPROBE_PATH")
	overrideInt64(&cfg.Media.MaxUploadBytes, "MAX_UPLOAD_BYTES")
	overrideInt64(&cfg.Media.MaxDownloadBytes, "MAX_DOWNLOAD_BYTES")
	overrideInt(&cfg.Media.DownloadTimeoutSec, "DOWNLOAD_TIMEOUT_SEC")
	overrideString(&cfg.Recognizer.Backend, "RECOGNIZER_BACKEND")
	overrideString(&cfg.Recognizer.URL, "RECOGNIZER_URL")
	overrideString(&cfg.Recognizer.Command, "RECOGNIZER_COMMAND")
	overrideInt(&cfg.Recognizer.TimeoutSec, "RECOGNIZER_TIMEOUT_SEC")
	overrideString(&cfg.Diarizer.Backend, "DIARIZER_BACKEND")
	overrideString(&cfg.Diarizer.URL, "DIARIZER_URL")
	overrideString(&cfg.Diarizer.Command, "DIARIZER_COMMAND")
	overrideInt(&cfg.Diarizer.TimeoutSec, "DIARIZER_TIMEOUT_SEC")
	overrideString(&cfg.Transcription.DefaultLanguage, "DEFAULT_LANGUAGE")
	overrideStringSlice(&cfg.Transcription.Languages, "LANGUAGES")
	overrideFloat(&cfg.Transcription.MergeThreshold, "MERGE_THRESHOLD")
	overrideInt(&cfg.Transcription.EngineTimeoutSec, "ENGINE_TIMEOUT_SEC")
	overrideInt(&cfg.Transcription.MaxConcurrent, "MAX_CONCURRENT")
	overrideString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "OTEL_EXPORTER_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.Metrics, "METRICS_ENABLED")
	overrideString(&cfg.Events.NATSURL, "NATS_URL")
	overrideString(&cfg.Events.Subject, "NATS_SUBJECT")
	overrideString(&cfg.Events.Token, "NATS_TOKEN")
	overrideInt(&cfg.Events.ConnectTimeout, "NATS_CONNECT_TIMEOUT_MS")
}

// fillDerived sets paths that default relative to the data path and
// generates a JWT secret when none is configured
func fillDerived(cfg *Config) {
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(cfg.Storage.DataPath, "asr.db")
	}
	if cfg.Storage.ScratchPath == "" {
		cfg.Storage.ScratchPath = filepath.Join(cfg.Storage.DataPath, "scratch")
	}
	if cfg.Auth.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatalf("Failed to generate random JWT secret: %v", err)
		}
		cfg.Auth.JWTSecret = hex.EncodeToString(b)
		log.Println("WARNING: JWT_SECRET not set, using random secret. Sessions will not survive restarts. Set JWT_SECRET env var for persistent sessions.")
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if cfg.Media.MaxUploadBytes <= 0 || cfg.Media.MaxDownloadBytes <= 0 {
		return errors.New("media size limits must be positive")
	}
	if cfg.Media.DownloadTimeoutSec <= 0 {
		return errors.New("media.download_timeout_sec must be positive")
	}
	if cfg.Transcription.MergeThreshold < 0 {
		return errors.New("transcription.merge_threshold must not be negative")
	}
	if cfg.Transcription.MaxConcurrent <= 0 {
		return errors.New("transcription.max_concurrent must be at least 1")
	}
	if len(cfg.Transcription.Languages) == 0 {
		return errors.New("transcription.languages must not be empty")
	}
	if !cfg.SupportsLanguage(cfg.Transcription.DefaultLanguage) {
		return fmt.Errorf("transcription.default_language %q is not in transcription.languages", cfg.Transcription.DefaultLanguage)
	}
	if cfg.Server.RateLimit < 0 {
		return errors.New("server.rate_limit_per_minute must not be negative")
	}
	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		return errors.New("events.subject is required when events.nats_url is set")
	}
	return nil
}

// SupportsLanguage reports whether lang is one of the configured languages
func (c *Config) SupportsLanguage(lang string) bool {
	for _, l := range c.Transcription.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Transcription.EngineTimeoutSec) * time.Second
}

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Media.DownloadTimeoutSec) * time.Second
}
