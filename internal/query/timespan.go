package query

import (
	"regexp"
	"strings"
	"time"
)

// Timespan is an ISO-8601 duration or interval. The empty value defers the
// time range to the query text.
type Timespan struct {
	Value string
	Label string
}

var Timespans = []Timespan{
	{Value: "", Label: "Set in query"},
	{Value: "PT1H", Label: "Last hour"},
	{Value: "PT4H", Label: "Last 4 hours"},
	{Value: "PT12H", Label: "Last 12 hours"},
	{Value: "P1D", Label: "Last 24 hours"},
	{Value: "P2D", Label: "Last 2 days"},
	{Value: "P3D", Label: "Last 3 days"},
	{Value: "P7D", Label: "Last 7 days"},
	{Value: "P30D", Label: "Last 30 days"},
}

var durationRe = regexp.MustCompile(`^P(?:\d+Y)?(?:\d+M)?(?:\d+W)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)

// TimespanLabel returns the label of a vocabulary entry, or the raw value.
func TimespanLabel(value string) string {
	for _, ts := range Timespans {
		if ts.Value == value {
			return ts.Label
		}
	}
	return value
}

// NextTimespan cycles through the vocabulary. Custom values restart at the
// first entry.
func NextTimespan(value string) string {
	for i, ts := range Timespans {
		if ts.Value == value {
			return Timespans[(i+1)%len(Timespans)].Value
		}
	}
	return Timespans[0].Value
}

// ValidTimespan accepts the empty sentinel, an ISO-8601 duration or a
// start/end interval whose parts are RFC 3339 instants or durations.
func ValidTimespan(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		return validDuration(parts[0])
	case 2:
		if validDuration(parts[0]) && validDuration(parts[1]) {
			return false
		}
		return (validInstant(parts[0]) || validDuration(parts[0])) &&
			(validInstant(parts[1]) || validDuration(parts[1]))
	default:
		return false
	}
}

func validDuration(s string) bool {
	if s == "P" || strings.HasSuffix(s, "T") {
		return false
	}
	return durationRe.MatchString(s)
}

func validInstant(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}
