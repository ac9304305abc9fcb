// Package domain models severe-weather events from the sigtor event feed and
// the rules that decide which of them matter to one watcher at one location.
//
// # Data Source
//
// The feed is a JSON array of events ordered by ingest time. Each event carries
// an event type, two microsecond timestamps, an optional location and at most
// one type-specific product payload:
//
//	{"event_type":"SnReport","ingest_ts":1714143000000000,"event_ts":1714142940000000,
//	 "location":{"point":{"lat":35.22,"lon":-97.44},"county":"Cleveland"},
//	 "report":{"hazard":"Hail","magnitude":2.5,"reporter":"spotter"}}
//
// # Event Types
//
//	NwsAfd    Area Forecast Discussion (text product)
//	NwsFfw    Flash Flood Warning
//	NwsFlw    Flood Warning
//	NwsLsr    Local Storm Report          → report
//	NwsSel    SPC watch                   → watch
//	NwsSvr    Severe Thunderstorm Warning
//	NwsSvs    Severe Weather Statement
//	NwsSwo    SPC outlook or mesoscale discussion → outlook | md
//	NwsTor    Tornado Warning             → warning
//	SnReport  Spotter Network report      → report
//
// # Products
//
// The product payloads form a closed set ([Report], [Watch], [Outlook],
// [MesoscaleDiscussion], [Warning]); code that needs one switches on the
// concrete type of [Event.Product].
//
// # Derived Fields
//
// [Normalize] runs once per event at ingestion and attaches the stable
// classification (importance, tornado relation, display time, product link,
// polygon geometry). [Refresh] runs every cycle and recomputes what depends on
// the wall clock and the watcher's position.
//
// # Units
//
//	Hail magnitude: inches (2.5 = 2.5 inch diameter)
//	Wind magnitude: mph
//	Distances:      statute miles, floored to whole miles
package domain
