package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps settings as a JSON document under a single key.
type RedisStore struct {
	client *goredis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, addr, key string, logger *slog.Logger) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		if cerr := rdb.Close(); cerr != nil {
			logger.Warn("redis close failed", "error", cerr)
		}
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info("connected to redis", "addr", addr, "key", key)

	return &RedisStore{client: rdb, key: key}, nil
}

// Load reads the settings document. A missing key yields defaults.
func (r *RedisStore) Load(ctx context.Context) (domain.Settings, error) {
	s := domain.DefaultSettings()

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return s, nil
		}
		return s, fmt.Errorf("get settings: %w", err)
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return domain.DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	if err := Validate(s); err != nil {
		return domain.DefaultSettings(), err
	}
	return s, nil
}

// Save overwrites the settings document with no expiry.
func (r *RedisStore) Save(ctx context.Context, s domain.Settings) error {
	if err := Validate(s); err != nil {
		return err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
