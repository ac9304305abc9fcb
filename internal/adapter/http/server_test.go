package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/storm-alert-service/internal/adapter/http"
	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/geo"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu       sync.Mutex
	readyErr error
	events   []domain.Event
	settings domain.Settings
	gps      *geo.Point
	lastTS   int64
}

func (f *fakePipeline) CheckReadiness(_ context.Context) error { return f.readyErr }
func (f *fakePipeline) DisplayEvents() []domain.Event          { return f.events }
func (f *fakePipeline) LastIngestTS() int64                    { return f.lastTS }

func (f *fakePipeline) Settings() domain.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakePipeline) SetSettings(s domain.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s
}

func (f *fakePipeline) SetLocation(loc *geo.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gps = loc
}

func (f *fakePipeline) LocationStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings.LocationStatus(f.gps)
}

type fakeQueue struct {
	pending int
	busy    bool
}

func (q fakeQueue) Pending() int { return q.pending }
func (q fakeQueue) Busy() bool   { return q.busy }

type memStore struct {
	saved []domain.Settings
	err   error
}

func (m *memStore) Load(_ context.Context) (domain.Settings, error) {
	return domain.DefaultSettings(), nil
}

func (m *memStore) Save(_ context.Context, s domain.Settings) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

var testNow = time.Date(2024, 4, 26, 21, 7, 0, 0, time.UTC)

func newTestServer(p *fakePipeline, store *memStore) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", p, fakeQueue{pending: 2, busy: true}, store, clockwork.NewFakeClockAt(testNow), logger)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	p := &fakePipeline{readyErr: fmt.Errorf("no events fetched from the feed yet")}
	rec := do(t, newTestServer(p, &memStore{}), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no events fetched from the feed yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEvents(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodGet, "/events", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("display events", func(t *testing.T) {
		p := &fakePipeline{events: []domain.Event{
			{EventType: domain.TypeSevereStatement, IngestTS: 2},
			{EventType: domain.TypeWatch, IngestTS: 1},
		}}
		rec := do(t, newTestServer(p, &memStore{}), http.MethodGet, "/events", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, domain.TypeSevereStatement, got[0]["event_type"])
		assert.Equal(t, domain.TypeWatch, got[1]["event_type"])
	})
}

func TestStatus(t *testing.T) {
	p := &fakePipeline{lastTS: 1714165200000000, gps: &geo.Point{Lat: 41.2565, Lon: -95.9345}}
	rec := do(t, newTestServer(p, &memStore{}), http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"clock": "2107Z",
		"location_status": "41.257, -95.934",
		"last_ingest_ts": 1714165200000000,
		"queue_pending": 2,
		"playing": true
	}`, rec.Body.String())
}

func TestGetSettings(t *testing.T) {
	p := &fakePipeline{settings: domain.DefaultSettings()}
	rec := do(t, newTestServer(p, &memStore{}), http.MethodGet, "/settings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["audioAlerts"])
	assert.Equal(t, false, got["distanceFilter"])
}

func TestPutSettings(t *testing.T) {
	t.Run("applies and saves", func(t *testing.T) {
		p := &fakePipeline{settings: domain.DefaultSettings()}
		store := &memStore{}
		rec := do(t, newTestServer(p, store), http.MethodPut, "/settings",
			`{"gpsLocation":true,"manualLat":35.22,"manualLon":-97.44,"distanceFilter":true}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, p.Settings().DistanceFilter)
		assert.False(t, p.Settings().AudioAlerts)
		require.Len(t, store.saved, 1)
		assert.Equal(t, p.Settings(), store.saved[0])
		assert.Equal(t, "Manual", p.LocationStatus())
	})

	t.Run("out of range latitude", func(t *testing.T) {
		p := &fakePipeline{settings: domain.DefaultSettings()}
		store := &memStore{}
		rec := do(t, newTestServer(p, store), http.MethodPut, "/settings", `{"manualLat":95,"manualLon":0}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid settings")
		assert.Equal(t, domain.DefaultSettings(), p.Settings())
		assert.Empty(t, store.saved)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodPut, "/settings", `{"audioAlerts":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodPut, "/settings", `{"volume":11}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure leaves settings unchanged", func(t *testing.T) {
		p := &fakePipeline{settings: domain.DefaultSettings()}
		rec := do(t, newTestServer(p, &memStore{err: errors.New("disk full")}), http.MethodPut, "/settings",
			`{"audioAlerts":false,"distanceFilter":true}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "disk full")
		assert.Equal(t, domain.DefaultSettings(), p.Settings())
	})
}

func TestPutLocation(t *testing.T) {
	t.Run("sets fix", func(t *testing.T) {
		p := &fakePipeline{}
		rec := do(t, newTestServer(p, &memStore{}), http.MethodPut, "/location", `{"lat":41.2565,"lon":-95.9345}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"location_status":"41.257, -95.934"}`, rec.Body.String())
		require.NotNil(t, p.gps)
		assert.InDelta(t, 41.2565, p.gps.Lat, 1e-9)
	})

	t.Run("empty object clears fix", func(t *testing.T) {
		p := &fakePipeline{gps: &geo.Point{Lat: 1, Lon: 2}}
		rec := do(t, newTestServer(p, &memStore{}), http.MethodPut, "/location", `{}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, p.gps)
		assert.JSONEq(t, `{"location_status":"Waiting for GPS..."}`, rec.Body.String())
	})

	tests := []struct {
		name string
		body string
	}{
		{"latitude out of range", `{"lat":91,"lon":0}`},
		{"longitude out of range", `{"lat":0,"lon":-181}`},
		{"latitude only", `{"lat":10}`},
		{"longitude only", `{"lon":10}`},
		{"not json", `lat=1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{gps: &geo.Point{Lat: 1, Lon: 2}}
			rec := do(t, newTestServer(p, &memStore{}), http.MethodPut, "/location", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, &geo.Point{Lat: 1, Lon: 2}, p.gps)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&fakePipeline{}, &memStore{}), http.MethodPost, "/settings", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
