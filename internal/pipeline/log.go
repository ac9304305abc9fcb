package pipeline

import (
	"slices"
	"sort"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
)

// AlertState is the per-event alerting state. The only legal transition is
// Unseen to Seen, made the first time the event is evaluated.
type AlertState uint8

const (
	Unseen AlertState = iota
	Seen
)

func (s AlertState) String() string {
	if s == Seen {
		return "seen"
	}
	return "unseen"
}

type entry struct {
	event domain.Event
	state AlertState
}

// markSeen moves the entry to Seen and reports whether it was Unseen.
func (en *entry) markSeen() bool {
	if en.state == Seen {
		return false
	}
	en.state = Seen
	return true
}

// eventLog holds events in ascending ingest_ts order and owns their alert state.
type eventLog struct {
	entries []entry
}

// append adds e as Unseen after every entry with the same or an earlier
// ingest_ts, so a late event never reorders existing ones.
func (l *eventLog) append(e domain.Event) {
	n := len(l.entries)
	if n == 0 || l.entries[n-1].event.IngestTS <= e.IngestTS {
		l.entries = append(l.entries, entry{event: e})
		return
	}
	i := sort.Search(n, func(i int) bool { return l.entries[i].event.IngestTS > e.IngestTS })
	l.entries = slices.Insert(l.entries, i, entry{event: e})
}

// truncate drops the prefix of events ingested at or before cutoff and
// returns how many were dropped.
func (l *eventLog) truncate(cutoff time.Time) int {
	c := cutoff.UnixMicro()
	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].event.IngestTS > c })
	if i == 0 {
		return 0
	}
	l.entries = slices.Delete(l.entries, 0, i)
	return i
}

func (l *eventLog) len() int { return len(l.entries) }
