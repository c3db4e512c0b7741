// Package ics turns a calendar feed into canonical event records: parsing
// via the iCalendar library, recurrence expansion, and the normalization
// rules (validation, flags, staleness, ordering).
package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Entry is a raw calendar entry as tokenized from the feed, before any
// normalization. Field values are carried verbatim; interpretation
// (privacy, cancellation, staleness) happens in Normalize.
type Entry struct {
	UID       string
	Summary   string
	Organizer string
	Location  string

	// Class is the iCalendar CLASS value, e.g. "PRIVATE".
	Class string
	// Transparency is the TRANSP value, e.g. "TRANSPARENT".
	Transparency string

	Start time.Time
	End   time.Time

	// RRule is the raw recurrence rule, empty for one-off entries.
	RRule string
}

// ParseFeed parses an ICS payload into raw entries. Component-level
// parse failures abort the whole feed; per-field oddities are left for
// Normalize to judge.
func ParseFeed(body []byte) ([]Entry, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		entries = append(entries, parseVEvent(ve))
	}
	return entries, nil
}

func parseVEvent(ve *ical.VEvent) Entry {
	var e Entry

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		e.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		e.Location = p.Value
	}
	if p := ve.GetProperty("ORGANIZER"); p != nil {
		e.Organizer = organizerName(p.Value)
	}
	if p := ve.GetProperty("CLASS"); p != nil {
		e.Class = p.Value
	}
	if p := ve.GetProperty("TRANSP"); p != nil {
		e.Transparency = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		e.RRule = p.Value
	}

	// The library resolves VTIMEZONE/TZID handling for us.
	if start, err := ve.GetStartAt(); err == nil {
		e.Start = start
	}
	if end, err := ve.GetEndAt(); err == nil {
		e.End = end
	}

	return e
}

// organizerName strips the mailto: scheme some feeds put in ORGANIZER so
// that fingerprints stay stable across export styles.
func organizerName(v string) string {
	return strings.TrimPrefix(v, "mailto:")
}
