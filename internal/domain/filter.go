package domain

import "github.com/couchcryptid/storm-alert-service/internal/geo"

// DistanceFilterMiles is the radius of the distance filter.
const DistanceFilterMiles = 120

// Minor-report thresholds.
const (
	minHailInches = 1.75
	minWindMPH    = 70
)

// filterableTypes are the event types the distance filter applies to.
// Outlooks, watches and statements are regional and always pass.
var filterableTypes = map[string]bool{
	TypeAFD:               true,
	TypeFlashFloodWarning: true,
	TypeFloodWarning:      true,
	TypeStormReport:       true,
	TypeSevereWarning:     true,
	TypeTornadoWarning:    true,
	TypeSpotterReport:     true,
}

// IsRelevant reports whether an event should be shown and alerted on for
// the given location and settings. loc may be nil when no location is known.
func IsRelevant(e Event, loc *geo.Point, s Settings) bool {
	return passesDistanceFilter(e, loc, s) &&
		passesAFDFilter(e, s) &&
		passesMinorReportFilter(e, s)
}

// passesDistanceFilter rejects filterable events more than
// DistanceFilterMiles away. Polygon-only events get their half-edge distance
// added to the radius.
func passesDistanceFilter(e Event, loc *geo.Point, s Settings) bool {
	if !s.DistanceFilter || !filterableTypes[e.EventType] || loc == nil {
		return true
	}

	// Written as !(d > r) so a NaN distance passes.
	if point, ok := e.Point(); ok {
		return !(geo.Distance(*loc, point) > DistanceFilterMiles)
	}
	if e.Derived.Point != nil {
		return !(geo.Distance(*loc, *e.Derived.Point) > DistanceFilterMiles+e.Derived.HalfEdgeDistance)
	}
	return true
}

func passesAFDFilter(e Event, s Settings) bool {
	return !(s.HideAFDs && e.EventType == TypeAFD)
}

// passesMinorReportFilter keeps only tornado-related, flash flood, large
// hail and high wind reports when minor reports are hidden.
func passesMinorReportFilter(e Event, s Settings) bool {
	if !s.HideMinorReports {
		return true
	}
	if e.EventType != TypeStormReport && e.EventType != TypeSpotterReport {
		return true
	}

	r, ok := e.Report()
	if !ok {
		return false
	}
	switch r.Hazard {
	case HazardTornado, HazardFunnel, HazardWallCloud, HazardFlashFlood:
		return true
	case HazardHail:
		return r.Magnitude >= minHailInches
	case HazardWind:
		return r.Magnitude >= minWindMPH
	default:
		return false
	}
}
