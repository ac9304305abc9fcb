//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/adapter/feed"
	"github.com/couchcryptid/storm-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/storm-alert-service/internal/config"
	"github.com/couchcryptid/storm-alert-service/internal/dispatch"
	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/geo"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	"github.com/couchcryptid/storm-alert-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testAlertTopic = "test-storm-alerts"

var fixtureNow = time.Date(2024, 4, 26, 22, 0, 0, 0, time.UTC)

// publishedAlert holds a deserialized message read from the alert topic.
type publishedAlert struct {
	Alert   domain.Alert
	Key     string
	Headers map[string]string
}

type instantPlayer struct{}

func (instantPlayer) PlayClip(_ string, done func(error)) { done(nil) }

func (instantPlayer) Speak(_ string, done func(error)) {
	if done != nil {
		done(nil)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("storm-alerts-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func serveFixture(t *testing.T) *httptest.Server {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", "events_240426.json"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/0" {
			_, _ = w.Write([]byte("[]"))
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readAlert reads a single message from the alert topic and deserializes it.
func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedAlert {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var alert domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &alert), "unmarshal alert message")

	return publishedAlert{Alert: alert, Key: string(msg.Key), Headers: headers}
}

// TestAlertFanOut runs the feed fixture through the client, pipeline, and
// dispatcher and checks every alert that played reached the Kafka topic.
func TestAlertFanOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	clock := clockwork.NewFakeClockAt(fixtureNow)
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaAlertTopic: testAlertTopic}
	writer := kafka.NewWriter(cfg, logger, metrics)

	d := dispatch.New(instantPlayer{}, clock, logger, metrics)
	d.OnAlert(writer.Publish)

	settings := domain.Settings{AudioAlerts: true, DistanceFilter: true, HideAFDs: true, HideMinorReports: true}
	p := pipeline.New(d, settings, clock, logger, metrics)
	p.SetLocation(&geo.Point{Lat: 41.2565, Lon: -95.9345})

	client := feed.NewClient(serveFixture(t).URL, 5*time.Second, metrics, logger)
	batch, err := client.Fetch(ctx, p.LastIngestTS())
	require.NoError(t, err)
	require.Len(t, batch.Events, 10)
	require.Empty(t, batch.Skipped)
	p.Ingest(ctx, batch.Events)

	require.Eventually(t, func() bool {
		clock.Advance(dispatch.Cooldown)
		return !d.Busy() && d.Pending() == 0
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, writer.Close())

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	defer consumer.Close()

	const wantAlerts = 8
	got := make([]publishedAlert, 0, wantAlerts)
	for range wantAlerts {
		got = append(got, readAlert(ctx, t, consumer))
	}

	kinds := map[string]int{}
	for _, a := range got {
		assert.Equal(t, a.Alert.ID, a.Key)
		assert.Equal(t, a.Alert.Kind.String(), a.Headers["alert_kind"])
		assert.Equal(t, a.Alert.EventType, a.Headers["event_type"])
		assert.Equal(t, fixtureNow.Format(time.RFC3339), a.Headers["composed_at"])
		assert.False(t, a.Alert.Empty())
		kinds[a.Headers["alert_kind"]]++
	}
	assert.Equal(t, map[string]int{"clip": 2, "speech": 6}, kinds)

	first := got[0]
	assert.Equal(t, domain.TypeOutlook, first.Alert.EventType)
	assert.Equal(t, []string{"The Storm Prediction Center has issued mesoscale discussion 520 with 95% watch chance."}, first.Alert.Segments)
}
