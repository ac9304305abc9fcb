package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/geo"
)

// SevereHailInches is the hail size at which a report is treated as
// significant.
const SevereHailInches = 2.0

var torRelatedHazards = map[string]bool{
	HazardTornado:   true,
	HazardWallCloud: true,
	HazardFunnel:    true,
}

// Normalize attaches the stable derived fields to a freshly ingested event:
// importance, tornado relation, display time, product link and polygon
// geometry. Running it again on the same event yields the same result and
// leaves the per-cycle fields alone.
func Normalize(e *Event) {
	d := &e.Derived
	d.IsImportant = isImportant(*e)
	d.IsTorRelated = isTorRelated(*e)
	d.ParsedDT = ZuluClock(time.UnixMicro(e.EventTS))
	d.Link = productLink(*e)

	d.Point, d.Bounds, d.HalfEdgeDistance = nil, nil, 0
	if e.Location == nil {
		return
	}
	bounds, ok := geo.PolygonBounds(e.Location.Poly)
	if !ok {
		return
	}
	center, _ := geo.PolygonCentroid(e.Location.Poly)
	d.Point = &center
	d.Bounds = &bounds
	d.HalfEdgeDistance = bounds.HalfDiagonal()
}

// ZuluClock formats t as a UTC "HHMMZ" string.
func ZuluClock(t time.Time) string {
	return t.UTC().Format("1504") + "Z"
}

func isImportant(e Event) bool {
	switch e.EventType {
	case TypeOutlook:
		switch p := e.Product.(type) {
		case *MesoscaleDiscussion:
			return strings.HasPrefix(p.Concerning, mdNewPrefix)
		case *Outlook:
			return p.SwoType == OutlookDay1
		}
	case TypeSpotterReport, TypeStormReport:
		r, ok := e.Report()
		if !ok {
			return false
		}
		switch r.Hazard {
		case HazardTornado, HazardWallCloud:
			return true
		case HazardHail:
			return r.Magnitude > SevereHailInches
		}
	case TypeTornadoWarning:
		return true
	case TypeWatch:
		w, ok := e.Product.(*Watch)
		return ok && w.Status == WatchIssued
	}
	return false
}

func isTorRelated(e Event) bool {
	if r, ok := e.Report(); ok && torRelatedHazards[r.Hazard] {
		return true
	}

	switch e.EventType {
	case TypeTornadoWarning, TypeSevereStatement:
		return true
	case TypeWatch:
		w, ok := e.Product.(*Watch)
		return ok && w.WatchType == WatchTornado && w.Status == WatchIssued
	}
	return false
}

// productLink builds the SPC page URL for watches and mesoscale discussions.
func productLink(e Event) string {
	switch p := e.Product.(type) {
	case *Watch:
		if e.EventType == TypeWatch {
			return fmt.Sprintf("https://www.spc.noaa.gov/products/watch/ww%04d.html", p.ID)
		}
	case *MesoscaleDiscussion:
		if e.EventType == TypeOutlook {
			year := time.UnixMicro(e.EventTS).UTC().Year()
			return fmt.Sprintf("https://www.spc.noaa.gov/products/md/%d/md%04d.html", year, p.ID)
		}
	}
	return ""
}
