package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/geo"
)

// Refresh recomputes the fields that depend on the current time and the
// watcher's location. Distance fields are cleared when either the location
// or the event point is unknown.
func Refresh(e *Event, now time.Time, loc *geo.Point) {
	d := &e.Derived
	d.TimeAgo = TimeAgo(now, e.IngestTS)
	d.Distance, d.Bearing, d.BearingAbbrev, d.DistanceLabel = nil, "", "", ""

	point, ok := e.Point()
	if loc == nil || !ok {
		return
	}

	dist := geo.Distance(*loc, point)
	if math.IsNaN(dist) {
		return
	}
	miles := int(dist)
	compass := geo.Bearing(*loc, point)

	d.Distance = &miles
	d.Bearing = compass.Name
	d.BearingAbbrev = compass.Abbrev
	d.DistanceLabel = fmt.Sprintf("%dmi %s", miles, compass.Abbrev)
}

// TimeAgo renders the age of a microsecond timestamp as "<1m", "12m", "3h" or "1d+".
func TimeAgo(now time.Time, tsMicros int64) string {
	delta := now.Sub(time.UnixMicro(tsMicros))
	switch {
	case delta < time.Minute:
		return "<1m"
	case delta < time.Hour:
		return fmt.Sprintf("%dm", int(delta/time.Minute))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh", int(delta/time.Hour))
	default:
		return "1d+"
	}
}
