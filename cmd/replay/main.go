// Command replay runs a JSON fixture of feed events through the pipeline at a
// fixed time and location and prints the alerts it would announce.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -fixture internal/pipeline/testdata/events_240426.json \
//	  -loc 41.2565,-95.9345 \
//	  -at 2024-04-26T22:00:00Z \
//	  -settings settings.yaml \
//	  -out display.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/adapter/settings"
	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/geo"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	"github.com/couchcryptid/storm-alert-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// collector records alerts in the order the pipeline composes them.
type collector struct {
	enabled bool
	alerts  []domain.Alert
}

func (c *collector) Enqueue(a domain.Alert) {
	if c.enabled && !a.Empty() {
		c.alerts = append(c.alerts, a)
	}
}

func (c *collector) SetEnabled(enabled bool) { c.enabled = enabled }

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fixture := flag.String("fixture", "", "path to a JSON array of feed events")
	loc := flag.String("loc", "", "watcher location as lat,lon (empty for unknown)")
	at := flag.String("at", "", "processing time, RFC3339 (default: latest ingest time)")
	settingsPath := flag.String("settings", "", "optional settings YAML file")
	out := flag.String("out", "", "optional output path for the display list JSON")
	flag.Parse()

	if *fixture == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -fixture")
	}

	data, err := os.ReadFile(*fixture)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	batch, err := domain.DecodeBatch(data)
	if err != nil {
		return err
	}
	for _, r := range batch.Skipped {
		log.Printf("skipped record %d: %v", r.Index, r.Err)
	}
	events := batch.Events

	now, err := replayTime(*at, events)
	if err != nil {
		return err
	}

	s := domain.DefaultSettings()
	if *settingsPath != "" {
		s, err = settings.NewFileStore(*settingsPath).Load(context.Background())
		if err != nil {
			return err
		}
	}
	// Replays always report what would be announced.
	s.AudioAlerts = true

	point, err := parseLocation(*loc)
	if err != nil {
		return err
	}

	clock := clockwork.NewFakeClockAt(now)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := &collector{}
	p := pipeline.New(c, s, clock, logger, observability.NewMetricsForTesting())
	p.SetLocation(point)
	p.Ingest(context.Background(), events)

	display := p.DisplayEvents()
	log.Printf("replayed %d events at %s from %s", len(events), domain.ZuluClock(now), p.LocationStatus())
	log.Printf("display: %d events, alerts: %d", len(display), len(c.alerts))

	for i, a := range c.alerts {
		switch a.Kind {
		case domain.AlertClip:
			fmt.Printf("%2d  %-8s [clip %s]\n", i+1, a.EventType, a.Clip)
		default:
			fmt.Printf("%2d  %-8s %s\n", i+1, a.EventType, strings.Join(a.Segments, " "))
		}
	}

	if *out != "" {
		if err := writeJSON(*out, display); err != nil {
			return fmt.Errorf("writing display list: %w", err)
		}
		log.Printf("wrote display list: %s", *out)
	}
	return nil
}

func replayTime(at string, events []domain.Event) (time.Time, error) {
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -at: %w", err)
		}
		return t, nil
	}

	var latest int64
	for _, e := range events {
		latest = max(latest, e.IngestTS)
	}
	if latest == 0 {
		return time.Now(), nil
	}
	return time.UnixMicro(latest).UTC(), nil
}

func parseLocation(s string) (*geo.Point, error) {
	if s == "" {
		return nil, nil
	}
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("invalid -loc %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid -loc latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("invalid -loc longitude %q", lonStr)
	}
	return &geo.Point{Lat: lat, Lon: lon}, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
