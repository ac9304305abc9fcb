package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-alert-service/internal/adapter/http"
	"github.com/couchcryptid/storm-alert-service/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/storm-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/storm-alert-service/internal/adapter/playback"
	"github.com/couchcryptid/storm-alert-service/internal/adapter/settings"
	"github.com/couchcryptid/storm-alert-service/internal/config"
	"github.com/couchcryptid/storm-alert-service/internal/dispatch"
	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	"github.com/couchcryptid/storm-alert-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openSettingsStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open settings store", "error", err)
		os.Exit(1)
	}
	defer closeStore.Close()

	current, err := store.Load(ctx)
	if err != nil {
		logger.Warn("settings unreadable, using defaults", "error", err)
		current = domain.DefaultSettings()
	}

	player := playback.NewLogPlayer(clock, logger, cfg.ClipDuration, cfg.SpeechWPM)
	dispatcher := dispatch.New(player, clock, logger, metrics)

	// Alert fan-out is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		dispatcher.OnAlert(writer.Publish)
		logger.Info("kafka alert fan-out enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka alert fan-out disabled")
	}

	p := pipeline.New(dispatcher, current, clock, logger, metrics)

	client := feed.NewClient(cfg.FeedURL, cfg.FeedTimeout, metrics, logger)
	poller := feed.NewPoller(client, p, cfg.PollInterval, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, dispatcher, store, clock, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start feed poller.
	go func() {
		if err := poller.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	dispatcher.SetEnabled(false)
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSettingsStore returns the Redis store when REDIS_ADDR is set, otherwise
// the YAML file store.
func openSettingsStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (settings.Store, io.Closer, error) {
	if cfg.RedisAddr == "" {
		logger.Info("settings stored in file", "path", cfg.SettingsFile)
		return settings.NewFileStore(cfg.SettingsFile), nopCloser{}, nil
	}

	rs, err := settings.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisKey, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("settings stored in redis", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
	return rs, rs, nil
}
