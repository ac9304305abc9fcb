// Package playback provides a headless Player that logs what it would play.
package playback

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LogPlayer logs clips and utterances and reports completion after a
// simulated playback time on the clock. Like a speech engine, it plays
// requests back to back: each starts when the previous one would end.
type LogPlayer struct {
	clock        clockwork.Clock
	logger       *slog.Logger
	clipDuration time.Duration
	wordsPerMin  int

	mu        sync.Mutex
	busyUntil time.Time
}

// NewLogPlayer creates a LogPlayer. Speech takes one minute per wordsPerMin words.
func NewLogPlayer(clock clockwork.Clock, logger *slog.Logger, clipDuration time.Duration, wordsPerMin int) *LogPlayer {
	return &LogPlayer{
		clock:        clock,
		logger:       logger,
		clipDuration: clipDuration,
		wordsPerMin:  wordsPerMin,
	}
}

// PlayClip logs the clip token and completes after the clip duration.
func (p *LogPlayer) PlayClip(clip string, done func(error)) {
	p.logger.Info("playing clip", "clip", clip, "duration", p.clipDuration)
	p.finishAfter(p.clipDuration, done)
}

// Speak logs the utterance and completes after its estimated speaking time.
func (p *LogPlayer) Speak(segment string, done func(error)) {
	d := p.speechDuration(segment)
	p.logger.Info("speaking", "text", segment, "duration", d)
	p.finishAfter(d, done)
}

func (p *LogPlayer) speechDuration(segment string) time.Duration {
	words := len(strings.Fields(segment))
	if words == 0 || p.wordsPerMin <= 0 {
		return 0
	}
	return time.Duration(words) * time.Minute / time.Duration(p.wordsPerMin)
}

// finishAfter appends d to the playback timeline and calls done when the
// timeline reaches the end of this request.
func (p *LogPlayer) finishAfter(d time.Duration, done func(error)) {
	p.mu.Lock()
	now := p.clock.Now()
	start := now
	if p.busyUntil.After(now) {
		start = p.busyUntil
	}
	p.busyUntil = start.Add(d)
	wait := p.busyUntil.Sub(now)
	p.mu.Unlock()

	if done == nil {
		return
	}
	if wait <= 0 {
		done(nil)
		return
	}
	p.clock.AfterFunc(wait, func() { done(nil) })
}
