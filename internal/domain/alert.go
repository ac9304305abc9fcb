package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlarmClip is the token for the short attention tone played before watch
// and severe-weather-statement announcements.
const AlarmClip = "eas"

// AlertKind tells the dispatcher how to play an alert.
type AlertKind uint8

const (
	AlertClip AlertKind = iota + 1
	AlertSpeech
)

func (k AlertKind) String() string {
	switch k {
	case AlertClip:
		return "clip"
	case AlertSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k AlertKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name; unknown names are an error.
func (k *AlertKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "clip":
		*k = AlertClip
	case "speech":
		*k = AlertSpeech
	default:
		return fmt.Errorf("unknown alert kind %q", b)
	}
	return nil
}

// Alert is one item for the notification queue: either the alarm clip or an
// ordered list of sentences to speak.
type Alert struct {
	ID         string    `json:"id"`
	Kind       AlertKind `json:"kind"`
	Clip       string    `json:"clip,omitempty"`
	Segments   []string  `json:"segments,omitempty"`
	EventType  string    `json:"event_type"`
	ComposedAt time.Time `json:"composed_at"`
}

// Empty reports whether the alert has nothing to play.
func (a Alert) Empty() bool {
	switch a.Kind {
	case AlertClip:
		return a.Clip == ""
	case AlertSpeech:
		return len(a.Segments) == 0
	default:
		return true
	}
}

// Alert sentence templates. Placeholders in braces are substituted and the
// result tidied, so empty values leave no stray spaces.
const (
	tornadoReportTemplate = "A tornado has been reported {place} {reporter}."
	torEmergencyTemplate  = "The National Weather Service has issued a Tornado Emergency."
	severeHailTemplate    = "{mag} inch severe hail has been reported {place}."
	outlookTemplate       = "The Storm Prediction Center has issued a new Day 1 outlook, {risk}."
	mdTemplate            = "The Storm Prediction Center has issued mesoscale discussion {number} {probability}."
	torWarningTemplate    = "The National Weather Service has issued a {pds} Tornado Warning for: {place}"
	watchTemplate         = "The Storm Prediction Center has issued a new {pds} {watch_type} watch for {place}."
	statementTemplate     = "The National Weather Service has issued a PDS severe weather statement."
)

var riskWords = map[string]string{
	"MRGL": "there is a Marginal Risk of severe thunderstorms",
	"SLGT": "there is a Slight Risk of severe thunderstorms",
	"ENH":  "there is an Enhanced Risk of severe thunderstorms",
	"MDT":  "there is a Moderate Risk of severe thunderstorms",
	"HIGH": "there is a High Risk of severe thunderstorms",
}

// RiskWords turns an SPC categorical risk code into a spoken phrase, or ""
// for unknown codes.
func RiskWords(code string) string {
	return riskWords[code]
}

// ComposeAlerts picks at most one announcement for a relevant event, in
// priority order: tornado report, severe hail report, Day 1 outlook, new
// mesoscale discussion, tornado warning, issued watch, severe weather
// statement. Watches and statements are preceded by the alarm clip. When the
// event's distance is known and non-zero a second sentence gives distance and
// direction.
// Relevance and seen-tracking are the caller's job.
func ComposeAlerts(e Event) []Alert {
	text, alarm := announcement(e)
	if text == "" {
		return nil
	}

	now := clock.Now()
	alerts := make([]Alert, 0, 2)
	if alarm {
		alerts = append(alerts, Alert{
			ID:         uuid.NewString(),
			Kind:       AlertClip,
			Clip:       AlarmClip,
			EventType:  e.EventType,
			ComposedAt: now,
		})
	}

	segments := []string{text}
	if d := e.Derived; d.Distance != nil && *d.Distance > 0 && d.BearingAbbrev != "" {
		segments = append(segments, fmt.Sprintf("%d miles to the %s", *d.Distance, d.BearingAbbrev))
	}
	alerts = append(alerts, Alert{
		ID:         uuid.NewString(),
		Kind:       AlertSpeech,
		Segments:   segments,
		EventType:  e.EventType,
		ComposedAt: now,
	})
	return alerts
}

// announcement returns the sentence for e and whether it deserves the alarm clip.
func announcement(e Event) (string, bool) {
	switch p := e.Product.(type) {
	case *Report:
		return reportAnnouncement(e, p), false
	case *Outlook:
		if p.SwoType == OutlookDay1 {
			return fill(outlookTemplate, map[string]string{"risk": RiskWords(p.MaxRisk)}), false
		}
	case *MesoscaleDiscussion:
		if strings.HasPrefix(p.Concerning, mdNewPrefix) {
			return fill(mdTemplate, map[string]string{
				"number":      strconv.Itoa(p.ID),
				"probability": probabilityPhrase(p.WatchIssuanceProbability),
			}), false
		}
	case *Watch:
		// A tornado warning outranks a watch riding on the same event.
		if e.EventType != TypeTornadoWarning && p.Status == WatchIssued {
			return fill(watchTemplate, map[string]string{
				"pds":        pdsWord(p.IsPDS),
				"watch_type": p.WatchType,
				"place":      p.IssuedFor,
			}), true
		}
	case *Warning, nil:
	}

	switch e.EventType {
	case TypeTornadoWarning:
		var issuedFor string
		var pds bool
		if w, ok := e.Product.(*Warning); ok {
			issuedFor, pds = w.IssuedFor, w.IsPDS
		}
		return fill(torWarningTemplate, map[string]string{
			"pds":   pdsWord(pds),
			"place": issuedFor,
		}), false
	case TypeSevereStatement:
		return statementTemplate, true
	}
	return "", false
}

func reportAnnouncement(e Event, r *Report) string {
	switch {
	case r.Hazard == HazardTornado:
		reporter := ""
		if r.Reporter != "" {
			reporter = "by " + r.Reporter
		}
		text := fill(tornadoReportTemplate, map[string]string{
			"place":    countyPhrase(e.County()),
			"reporter": reporter,
		})
		if r.IsTorEmergency {
			text += " " + torEmergencyTemplate
		}
		return text
	case r.Hazard == HazardHail && r.Magnitude >= SevereHailInches:
		return fill(severeHailTemplate, map[string]string{
			"mag":   strconv.FormatFloat(r.Magnitude, 'f', -1, 64),
			"place": countyPhrase(e.County()),
		})
	default:
		return ""
	}
}

func countyPhrase(county string) string {
	if county == "" {
		return ""
	}
	return "for " + county + " county"
}

func probabilityPhrase(pct int) string {
	if pct == 0 {
		return ""
	}
	return fmt.Sprintf("with %d%% watch chance", pct)
}

func pdsWord(pds bool) string {
	if pds {
		return "PDS"
	}
	return ""
}

// fill substitutes {name} placeholders and tidies whitespace left by empty values.
func fill(template string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	s := strings.NewReplacer(pairs...).Replace(template)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " .", ".")
	s = strings.ReplaceAll(s, ",.", ".")
	return s
}
