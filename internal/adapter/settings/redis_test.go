//go:build integration

package settings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStore_Integration(t *testing.T) {
	addr := startRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store, err := NewRedisStore(ctx, addr, "storm-alerts:settings:test", logger)
	require.NoError(t, err)
	defer store.Close()

	s, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)

	want := domain.Settings{HideMinorReports: true, DistanceFilter: true, ManualLat: ptr(35.2), ManualLon: ptr(-97.4)}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := store.client.Get(ctx, "storm-alerts:settings:test").Result()
	require.NoError(t, err)
	assert.Contains(t, raw, `"hideMinorReports":true`)
}

func TestRedisStore_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, "127.0.0.1:1", "k", logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}
