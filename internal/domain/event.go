package domain

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/storm-alert-service/internal/geo"
)

// Event types published by the feed.
const (
	TypeAFD               = "NwsAfd"
	TypeFlashFloodWarning = "NwsFfw"
	TypeFloodWarning      = "NwsFlw"
	TypeStormReport       = "NwsLsr"
	TypeWatch             = "NwsSel"
	TypeSevereWarning     = "NwsSvr"
	TypeSevereStatement   = "NwsSvs"
	TypeOutlook           = "NwsSwo"
	TypeTornadoWarning    = "NwsTor"
	TypeSpotterReport     = "SnReport"
)

// Report hazards.
const (
	HazardTornado    = "Tornado"
	HazardWallCloud  = "WallCloud"
	HazardFunnel     = "Funnel"
	HazardFlashFlood = "FlashFlood"
	HazardHail       = "Hail"
	HazardWind       = "Wind"
)

const (
	WatchIssued  = "Issued"
	WatchTornado = "Tornado"
	OutlookDay1  = "Day1"
	mdNewPrefix  = "New"
)

// Location is where an event happened: a point, a polygon, or both.
type Location struct {
	Point  *geo.Point  `json:"point,omitempty"`
	Poly   []geo.Point `json:"poly,omitempty"`
	County string      `json:"county,omitempty"`
}

// Product is the type-specific payload of an event. The set of
// implementations is closed: *Report, *Watch, *Outlook,
// *MesoscaleDiscussion and *Warning.
type Product interface {
	productKind() string
}

// Report is a storm report from an NWS office (LSR) or a spotter.
type Report struct {
	Hazard         string  `json:"hazard"`
	Magnitude      float64 `json:"magnitude,omitempty"`
	Reporter       string  `json:"reporter,omitempty"`
	IsTorEmergency bool    `json:"is_tor_emergency,omitempty"`
}

// Watch is an SPC severe thunderstorm or tornado watch.
type Watch struct {
	ID        int    `json:"id"`
	WatchType string `json:"watch_type"`
	Status    string `json:"status"`
	IsPDS     bool   `json:"is_pds,omitempty"`
	IssuedFor string `json:"issued_for,omitempty"`
}

// Outlook is an SPC convective outlook.
type Outlook struct {
	SwoType string `json:"swo_type"`
	MaxRisk string `json:"max_risk,omitempty"`
}

// MesoscaleDiscussion is an SPC mesoscale discussion. A zero
// WatchIssuanceProbability means none was given.
type MesoscaleDiscussion struct {
	ID                       int    `json:"id"`
	Concerning               string `json:"concerning"`
	WatchIssuanceProbability int    `json:"watch_issuance_probability,omitempty"`
}

// Warning is an NWS warning polygon product.
type Warning struct {
	IssuedFor string `json:"issued_for,omitempty"`
	IsPDS     bool   `json:"is_pds,omitempty"`
}

func (*Report) productKind() string              { return "report" }
func (*Watch) productKind() string               { return "watch" }
func (*Outlook) productKind() string             { return "outlook" }
func (*MesoscaleDiscussion) productKind() string { return "md" }
func (*Warning) productKind() string             { return "warning" }

// Derived holds everything the pipeline computes for an event. The first
// group is set once by Normalize, the second recomputed by Refresh.
type Derived struct {
	IsImportant      bool        `json:"is_important"`
	IsTorRelated     bool        `json:"is_tor_related"`
	ParsedDT         string      `json:"parsed_dt"`
	Link             string      `json:"link,omitempty"`
	Point            *geo.Point  `json:"point,omitempty"`
	Bounds           *geo.Bounds `json:"bounds,omitempty"`
	HalfEdgeDistance float64     `json:"half_edge_distance,omitempty"`

	TimeAgo       string `json:"time_ago"`
	Distance      *int   `json:"distance,omitempty"`
	Bearing       string `json:"bearing,omitempty"`
	BearingAbbrev string `json:"bearing_abbrev,omitempty"`
	DistanceLabel string `json:"distance_label,omitempty"`

	// Selected belongs to the presentation layer and is never written here.
	Selected bool `json:"selected,omitempty"`
}

// Event is one record from the feed plus its derived fields.
type Event struct {
	EventType string
	IngestTS  int64 // microseconds since epoch
	EventTS   int64 // microseconds since epoch
	Title     string
	Text      string
	ExtURI    string
	Location  *Location
	Product   Product
	Derived   Derived
}

// Report returns the event's report payload, if it has one.
func (e Event) Report() (*Report, bool) {
	r, ok := e.Product.(*Report)
	return r, ok && r != nil
}

// Point returns the event's reported point location, if any.
func (e Event) Point() (geo.Point, bool) {
	if e.Location == nil || e.Location.Point == nil {
		return geo.Point{}, false
	}
	return *e.Location.Point, true
}

// County returns the event's county name or "".
func (e Event) County() string {
	if e.Location == nil {
		return ""
	}
	return e.Location.County
}

type wireEvent struct {
	EventType string               `json:"event_type"`
	IngestTS  int64                `json:"ingest_ts"`
	EventTS   int64                `json:"event_ts"`
	Title     string               `json:"title,omitempty"`
	Text      string               `json:"text,omitempty"`
	ExtURI    string               `json:"ext_uri,omitempty"`
	Location  *Location            `json:"location,omitempty"`
	Report    *Report              `json:"report,omitempty"`
	Watch     *Watch               `json:"watch,omitempty"`
	Outlook   *Outlook             `json:"outlook,omitempty"`
	MD        *MesoscaleDiscussion `json:"md,omitempty"`
	Warning   *Warning             `json:"warning,omitempty"`
	Derived   *Derived             `json:"derived,omitempty"`
}

// UnmarshalJSON decodes the feed schema. When more than one payload is
// present the first of report, outlook, md, watch, warning wins.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	*e = Event{
		EventType: w.EventType,
		IngestTS:  w.IngestTS,
		EventTS:   w.EventTS,
		Title:     w.Title,
		Text:      w.Text,
		ExtURI:    w.ExtURI,
		Location:  w.Location,
	}

	switch {
	case w.Report != nil:
		e.Product = w.Report
	case w.Outlook != nil:
		e.Product = w.Outlook
	case w.MD != nil:
		e.Product = w.MD
	case w.Watch != nil:
		e.Product = w.Watch
	case w.Warning != nil:
		e.Product = w.Warning
	}
	return nil
}

// MarshalJSON encodes the event in the feed schema with a "derived" object.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		EventType: e.EventType,
		IngestTS:  e.IngestTS,
		EventTS:   e.EventTS,
		Title:     e.Title,
		Text:      e.Text,
		ExtURI:    e.ExtURI,
		Location:  e.Location,
		Derived:   &e.Derived,
	}

	switch p := e.Product.(type) {
	case *Report:
		w.Report = p
	case *Outlook:
		w.Outlook = p
	case *MesoscaleDiscussion:
		w.MD = p
	case *Watch:
		w.Watch = p
	case *Warning:
		w.Warning = p
	case nil:
	}
	return json.Marshal(w)
}

// Batch is one decoded feed response. Records that fail to decode land in
// Skipped and never fail the rest of the batch.
type Batch struct {
	Events  []Event
	Skipped []SkippedRecord
}

// SkippedRecord is a feed record that could not be decoded. IngestTS is 0
// when the record's own ingest_ts is unreadable.
type SkippedRecord struct {
	Index    int
	IngestTS int64
	Err      error
}

// Cursor returns the highest ingest_ts in the batch, skipped records included.
func (b Batch) Cursor() int64 {
	var ts int64
	for _, e := range b.Events {
		ts = max(ts, e.IngestTS)
	}
	for _, r := range b.Skipped {
		ts = max(ts, r.IngestTS)
	}
	return ts
}

// DecodeBatch parses a feed response body element by element. Only a body
// that is not a JSON array is an error.
func DecodeBatch(data []byte) (Batch, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return Batch{}, fmt.Errorf("decode events: %w", err)
	}

	b := Batch{Events: make([]Event, 0, len(raws))}
	for i, raw := range raws {
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			var ts struct {
				IngestTS int64 `json:"ingest_ts"`
			}
			_ = json.Unmarshal(raw, &ts) //nolint:errcheck // zero cursor on failure
			b.Skipped = append(b.Skipped, SkippedRecord{Index: i, IngestTS: ts.IngestTS, Err: err})
			continue
		}
		b.Events = append(b.Events, e)
	}
	return b, nil
}

// DecodeEvents parses a feed response body, dropping records that fail to decode.
func DecodeEvents(data []byte) ([]Event, error) {
	b, err := DecodeBatch(data)
	if err != nil {
		return nil, err
	}
	return b.Events, nil
}

// ProductKind names the payload carried by e ("report", "watch", "outlook",
// "md", "warning"), or "" when there is none.
func (e Event) ProductKind() string {
	if e.Product == nil {
		return ""
	}
	return e.Product.productKind()
}
