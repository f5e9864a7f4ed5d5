package overgangsstonad

import (
	"time"
)

const (
	dateLayout = "2006-01-02"

	// Sentinels for unbounded ranges as written by upstream producers.
	minDateSentinel = "-999999999-01-01"
	maxDateSentinel = "+999999999-12-31"
)

var (
	// DefaultFom replaces an unbounded or unreadable start date.
	DefaultFom = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	// DefaultTom replaces an unbounded or unreadable end date.
	DefaultTom = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// parseDate reads an ISO calendar date. The sentinel and unreadable input
// both give fallback; ok is false only for unreadable input.
func parseDate(raw, sentinel string, fallback time.Time) (date time.Time, ok bool) {
	if raw == sentinel {
		return fallback, true
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fallback, false
	}
	return date, true
}

// NormalizeFom turns the inbound start date into a concrete date.
func NormalizeFom(raw string) (time.Time, bool) {
	return parseDate(raw, minDateSentinel, DefaultFom)
}

// NormalizeTom turns the inbound end date into a concrete date.
func NormalizeTom(raw string) (time.Time, bool) {
	return parseDate(raw, maxDateSentinel, DefaultTom)
}
