// Package dispatch plays alerts one at a time through a Player, with a fixed
// cooldown between items.
package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Cooldown is the pause between the end of one item and the start of the next.
const Cooldown = 2 * time.Second

// Player is the playback primitive. Implementations call done exactly once
// when playback finishes or fails; done may be nil, and may be called on any
// goroutine, including synchronously.
type Player interface {
	PlayClip(clip string, done func(error))
	Speak(segment string, done func(error))
}

// Dispatcher is a FIFO of alerts with at most one item in flight.
type Dispatcher struct {
	player  Player
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	queue   []domain.Alert
	busy    bool
	enabled bool
	hooks   []func(domain.Alert)
}

// New creates an enabled Dispatcher.
func New(player Player, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		player:  player,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		enabled: true,
	}
}

// OnAlert registers fn to be called each time an alert begins playing.
func (d *Dispatcher) OnAlert(fn func(domain.Alert)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// SetEnabled turns playback on or off. Disabling drops pending alerts; an
// item already playing runs to completion.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled == enabled {
		return
	}
	d.enabled = enabled
	if !enabled && len(d.queue) > 0 {
		d.logger.Info("audio alerts disabled, dropping queue", "pending", len(d.queue))
		d.queue = nil
		d.metrics.QueueDepth.Set(0)
	}
}

// Enqueue appends an alert and starts playback if the dispatcher is idle.
// Empty alerts, and all alerts while disabled, are ignored.
func (d *Dispatcher) Enqueue(a domain.Alert) {
	d.mu.Lock()
	if !d.enabled || a.Empty() {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, a)
	if d.busy {
		d.metrics.QueueDepth.Set(float64(len(d.queue)))
		d.mu.Unlock()
		return
	}
	d.busy = true
	next := d.pop()
	d.mu.Unlock()

	d.play(next)
}

// Pending returns the number of alerts waiting behind the one in flight.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Busy reports whether an item is playing or waiting out the cooldown.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// pop removes the head of the queue. Caller holds d.mu and has checked len > 0.
func (d *Dispatcher) pop() domain.Alert {
	a := d.queue[0]
	d.queue[0] = domain.Alert{}
	d.queue = d.queue[1:]
	d.metrics.QueueDepth.Set(float64(len(d.queue)))
	return a
}

func (d *Dispatcher) play(a domain.Alert) {
	d.mu.Lock()
	hooks := append([]func(domain.Alert){}, d.hooks...)
	d.mu.Unlock()

	d.logger.Debug("alert playing", "alert_id", a.ID, "kind", a.Kind.String(), "event_type", a.EventType)
	d.metrics.AlertsPlayed.WithLabelValues(a.Kind.String()).Inc()
	for _, fn := range hooks {
		fn(a)
	}

	var once sync.Once
	done := func(err error) {
		once.Do(func() { d.finish(a, err) })
	}

	switch a.Kind {
	case domain.AlertClip:
		d.player.PlayClip(a.Clip, done)
	case domain.AlertSpeech:
		last := len(a.Segments) - 1
		for _, seg := range a.Segments[:last] {
			d.player.Speak(seg, nil)
		}
		d.player.Speak(a.Segments[last], done)
	}
}

// finish runs once per item, on success or failure. With nothing waiting the
// dispatcher goes idle at once; otherwise the next item starts after the cooldown.
func (d *Dispatcher) finish(a domain.Alert, err error) {
	if err != nil {
		d.logger.Warn("alert playback failed", "alert_id", a.ID, "kind", a.Kind.String(), "error", err)
		d.metrics.PlaybackErrors.Inc()
	}

	d.mu.Lock()
	if len(d.queue) == 0 {
		d.busy = false
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.clock.AfterFunc(Cooldown, d.advance)
}

func (d *Dispatcher) advance() {
	d.mu.Lock()
	if len(d.queue) == 0 {
		d.busy = false
		d.mu.Unlock()
		return
	}
	next := d.pop()
	d.mu.Unlock()

	d.play(next)
}
