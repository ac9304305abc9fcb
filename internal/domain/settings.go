package domain

import (
	"fmt"

	"github.com/couchcryptid/storm-alert-service/internal/geo"
)

// Settings are the watcher's toggles. JSON keys match the settings store
// schema so saved documents stay readable across versions.
type Settings struct {
	// ManualLocation switches the current location from GPS to ManualLat/ManualLon.
	ManualLocation   bool     `json:"gpsLocation" yaml:"gps_location"`
	HideAFDs         bool     `json:"hideAfds" yaml:"hide_afds"`
	HideMinorReports bool     `json:"hideMinorReports" yaml:"hide_minor_reports"`
	DistanceFilter   bool     `json:"distanceFilter" yaml:"distance_filter"`
	AudioAlerts      bool     `json:"audioAlerts" yaml:"audio_alerts"`
	ManualLat        *float64 `json:"manualLat,omitempty" yaml:"manual_lat,omitempty" validate:"omitempty,latitude"`
	ManualLon        *float64 `json:"manualLon,omitempty" yaml:"manual_lon,omitempty" validate:"omitempty,longitude"`
}

// DefaultSettings returns the first-run settings: everything off except audio alerts.
func DefaultSettings() Settings {
	return Settings{AudioAlerts: true}
}

// CurrentLocation picks the one authoritative location: the manual
// coordinates when ManualLocation is on and both are set, otherwise the last
// GPS fix. nil means unknown.
func (s Settings) CurrentLocation(gps *geo.Point) *geo.Point {
	if s.ManualLocation && s.ManualLat != nil && s.ManualLon != nil {
		return &geo.Point{Lat: *s.ManualLat, Lon: *s.ManualLon}
	}
	return gps
}

// LocationStatus describes where the current location comes from, for display.
func (s Settings) LocationStatus(gps *geo.Point) string {
	if s.ManualLocation {
		return "Manual"
	}
	if gps == nil {
		return "Waiting for GPS..."
	}
	return fmt.Sprintf("%.3f, %.3f", gps.Lat, gps.Lon)
}
