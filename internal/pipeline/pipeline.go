package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/geo"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Retention is how long an event stays in the log after ingestion.
const Retention = 3 * time.Hour

// Notifier consumes composed alerts.
type Notifier interface {
	Enqueue(a domain.Alert)
	SetEnabled(enabled bool)
}

// Pipeline owns the event log, the watcher's settings and location, and runs
// the processing cycle: truncate, refresh, filter, alert. All methods are
// safe for concurrent use; cycles never interleave.
type Pipeline struct {
	notifier Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	mu       sync.Mutex
	log      eventLog
	settings domain.Settings
	gps      *geo.Point
	lastTS   int64
	display  []domain.Event
}

// New creates a Pipeline with the given starting settings and pushes the
// audio preference to the notifier.
func New(n Notifier, settings domain.Settings, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	n.SetEnabled(settings.AudioAlerts)
	return &Pipeline{
		notifier: n,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		settings: settings,
	}
}

// CheckReadiness returns nil once at least one batch has been ingested,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no events fetched from the feed yet")
	}
	return nil
}

// Ingest normalizes and appends a batch of events, then runs a cycle.
// An empty batch still runs a cycle so time-dependent fields stay current.
func (p *Pipeline) Ingest(_ context.Context, events []domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range events {
		e := events[i]
		domain.Normalize(&e)
		p.log.append(e)
		if e.IngestTS > p.lastTS {
			p.lastTS = e.IngestTS
		}
	}
	p.metrics.EventsIngested.Add(float64(len(events)))
	if len(events) > 0 {
		p.logger.Debug("events ingested", "count", len(events), "last_ingest_ts", p.lastTS)
	}
	p.ready.Store(true)

	p.process()
}

// SetSettings replaces the settings and re-runs the cycle.
func (p *Pipeline) SetSettings(s domain.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.settings = s
	p.notifier.SetEnabled(s.AudioAlerts)
	p.process()
}

// Settings returns the current settings.
func (p *Pipeline) Settings() domain.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// SetLocation records the latest GPS fix and re-runs the cycle. nil means
// the fix was lost.
func (p *Pipeline) SetLocation(loc *geo.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if loc != nil {
		cp := *loc
		loc = &cp
	}
	p.gps = loc
	p.process()
}

// CurrentLocation returns the authoritative location, or nil when unknown.
func (p *Pipeline) CurrentLocation() *geo.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.CurrentLocation(p.gps)
}

// LocationStatus describes the location source for display.
func (p *Pipeline) LocationStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.LocationStatus(p.gps)
}

// LastIngestTS is the newest ingest_ts seen, used as the feed cursor.
func (p *Pipeline) LastIngestTS() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTS
}

// Process runs a cycle without new input, e.g. on a timer so time-ago
// labels and retention advance.
func (p *Pipeline) Process() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.process()
}

// DisplayEvents returns the relevant events from the last cycle, newest first.
func (p *Pipeline) DisplayEvents() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.display)
}

// process runs one cycle. Caller holds p.mu.
func (p *Pipeline) process() {
	start := p.clock.Now()

	if dropped := p.log.truncate(start.Add(-Retention)); dropped > 0 {
		p.metrics.EventsTruncated.Add(float64(dropped))
		p.logger.Debug("events expired", "dropped", dropped, "retained", p.log.len())
	}
	p.metrics.EventsRetained.Set(float64(p.log.len()))

	loc := p.settings.CurrentLocation(p.gps)
	display := make([]domain.Event, 0, p.log.len())

	for i := range p.log.entries {
		en := &p.log.entries[i]
		domain.Refresh(&en.event, start, loc)

		relevant := domain.IsRelevant(en.event, loc, p.settings)
		if relevant {
			display = append(display, en.event)
		}
		if en.markSeen() && relevant {
			p.alert(en.event)
		}
	}

	slices.Reverse(display)
	p.display = display
	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
}

func (p *Pipeline) alert(e domain.Event) {
	for _, a := range domain.ComposeAlerts(e) {
		p.logger.Info("alert composed",
			"alert_id", a.ID,
			"kind", a.Kind.String(),
			"event_type", e.EventType,
			"ingest_ts", e.IngestTS,
		)
		p.metrics.AlertsComposed.WithLabelValues(a.Kind.String()).Inc()
		p.notifier.Enqueue(a)
	}
}
