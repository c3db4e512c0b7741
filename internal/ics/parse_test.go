package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//worklink//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func TestParseFeed(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:uid-1",
		"SUMMARY:定例会",
		"LOCATION:会議室A",
		"ORGANIZER:mailto:alice@example.com",
		"CLASS:PRIVATE",
		"TRANSP:TRANSPARENT",
		"RRULE:FREQ=WEEKLY;COUNT=3",
		"DTSTART:20240304T010000Z",
		"DTEND:20240304T020000Z",
		"END:VEVENT",
	)

	entries, err := ParseFeed(body)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "uid-1", e.UID)
	assert.Equal(t, "定例会", e.Summary)
	assert.Equal(t, "会議室A", e.Location)
	assert.Equal(t, "alice@example.com", e.Organizer, "mailto: prefix stripped")
	assert.Equal(t, "PRIVATE", e.Class)
	assert.Equal(t, "TRANSPARENT", e.Transparency)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=3", e.RRule)
	assert.Equal(t, time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC), e.Start.UTC())
	assert.Equal(t, time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC), e.End.UTC())
}

func TestParseFeedSparseEvent(t *testing.T) {
	// Missing fields stay zero-valued; judging them is Normalize's job.
	body := feed(
		"BEGIN:VEVENT",
		"UID:uid-2",
		"DTSTART:20240304T010000Z",
		"END:VEVENT",
	)

	entries, err := ParseFeed(body)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Summary)
	assert.True(t, entries[0].End.IsZero())
}

func TestParseFeedRejectsEmptyBody(t *testing.T) {
	_, err := ParseFeed(nil)
	assert.Error(t, err)
}
