package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Event feed.
	FeedURL      string
	PollInterval time.Duration
	FeedTimeout  time.Duration

	// Alert fan-out.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string

	// Settings persistence. A non-empty RedisAddr selects the Redis store
	// over the settings file.
	SettingsFile string
	RedisAddr    string
	RedisKey     string

	// Simulated playback.
	ClipDuration time.Duration
	SpeechWPM    int
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "60s")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	clipDuration, err := parsePositiveDuration("PLAYBACK_CLIP_DURATION", "3s")
	if err != nil {
		return nil, err
	}

	speechWPM, err := strconv.Atoi(sharedcfg.EnvOrDefault("PLAYBACK_SPEECH_WPM", "160"))
	if err != nil || speechWPM <= 0 {
		return nil, errors.New("invalid PLAYBACK_SPEECH_WPM")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedURL:      sharedcfg.EnvOrDefault("FEED_URL", "https://sigtor.org/v1/events"),
		PollInterval: pollInterval,
		FeedTimeout:  feedTimeout,

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "storm-alerts"),

		SettingsFile: sharedcfg.EnvOrDefault("SETTINGS_FILE", "settings.yaml"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisKey:     sharedcfg.EnvOrDefault("REDIS_KEY", "storm-alerts:settings:v2"),

		ClipDuration: clipDuration,
		SpeechWPM:    speechWPM,
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaAlertTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_ALERT_TOPIC is empty")
		}
	}
	if cfg.RedisAddr == "" && cfg.SettingsFile == "" {
		return nil, errors.New("one of SETTINGS_FILE or REDIS_ADDR is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
