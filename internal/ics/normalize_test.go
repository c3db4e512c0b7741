package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func entryAt(summary string, start time.Time, dur time.Duration) Entry {
	return Entry{UID: "uid-" + summary, Summary: summary, Start: start, End: start.Add(dur)}
}

func TestNormalizeValidation(t *testing.T) {
	start := testNow.Add(-24 * time.Hour)
	entries := []Entry{
		entryAt("ok", start, time.Hour),
		{UID: "no-name", Start: start, End: start.Add(time.Hour)},
		{UID: "no-start", Summary: "開始なし", End: start},
		{UID: "no-end", Summary: "終了なし", Start: start},
		{UID: "inverted", Summary: "逆転", Start: start, End: start.Add(-time.Hour)},
	}

	events, skipped := Normalize(entries, NormalizeConfig{Now: testNow}, zap.NewNop())
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Name)

	require.Len(t, skipped, 4)
	assert.Equal(t, "end precedes start", skipped[3].Reason)
}

func TestNormalizeFlags(t *testing.T) {
	start := testNow.Add(-24 * time.Hour)
	entries := []Entry{
		func() Entry {
			e := entryAt("非公開", start, time.Hour)
			e.Class = "PRIVATE"
			return e
		}(),
		func() Entry {
			e := entryAt("暇つぶし", start, time.Hour)
			e.Transparency = "TRANSPARENT"
			return e
		}(),
		entryAt("Canceled: 定例会", start, time.Hour),
		entryAt("キャンセル済み: 定例会", start, time.Hour),
		entryAt("普通の会議", start, time.Hour),
	}

	events, skipped := Normalize(entries, NormalizeConfig{Now: testNow}, zap.NewNop())
	require.Len(t, events, 5)
	require.Empty(t, skipped)

	byName := make(map[string]bool)
	for _, ev := range events {
		byName[ev.Name] = ev.IsPrivate || ev.IsCancelled
	}
	assert.True(t, byName["非公開"])
	assert.True(t, byName["暇つぶし"])
	assert.True(t, byName["Canceled: 定例会"])
	assert.True(t, byName["キャンセル済み: 定例会"])
	assert.False(t, byName["普通の会議"])
}

func TestNormalizeStaleness(t *testing.T) {
	entries := []Entry{
		entryAt("新しい", testNow.AddDate(0, 0, -5), time.Hour),
		entryAt("古い", testNow.AddDate(0, 0, -45), time.Hour),
	}

	events, skipped := Normalize(entries, NormalizeConfig{Now: testNow, StalenessDays: 30}, zap.NewNop())
	require.Len(t, events, 1)
	assert.Equal(t, "新しい", events[0].Name)
	require.Len(t, skipped, 1)
	assert.Equal(t, "older than the staleness window", skipped[0].Reason)
}

func TestNormalizeRecurrenceKeepsOldBase(t *testing.T) {
	// The base occurrence is far outside the staleness window, but the
	// rule still produces recent occurrences, so the entry survives.
	old := entryAt("週次", testNow.AddDate(0, -6, 0), time.Hour)
	old.RRule = "FREQ=WEEKLY"

	events, skipped := Normalize([]Entry{old}, NormalizeConfig{Now: testNow}, zap.NewNop())
	require.Len(t, events, 1)
	require.Empty(t, skipped)

	rec := events[0].Recurrence
	require.NotEmpty(t, rec)
	for i, occ := range rec {
		assert.False(t, occ.After(testNow), "occurrence %d is in the future", i)
		if i > 0 {
			assert.True(t, occ.After(rec[i-1]), "occurrences ascend")
		}
	}
}

func TestNormalizeBrokenRuleDegradesToOneOff(t *testing.T) {
	e := entryAt("壊れた", testNow.AddDate(0, 0, -2), time.Hour)
	e.RRule = "FREQ=NOPE"

	events, skipped := Normalize([]Entry{e}, NormalizeConfig{Now: testNow}, zap.NewNop())
	require.Len(t, events, 1)
	require.Empty(t, skipped)
	assert.Empty(t, events[0].Recurrence)
}

func TestNormalizeOrdering(t *testing.T) {
	base := testNow.Add(-24 * time.Hour)
	entries := []Entry{
		entryAt("後", base.Add(2*time.Hour), time.Hour),
		entryAt("同時刻で長い", base, 2*time.Hour),
		entryAt("同時刻で短い", base, 30*time.Minute),
		entryAt("先", base.Add(-time.Hour), time.Hour),
	}

	events, _ := Normalize(entries, NormalizeConfig{Now: testNow}, zap.NewNop())
	require.Len(t, events, 4)

	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"先", "同時刻で短い", "同時刻で長い", "後"}, names)
}

func TestExpandRecurrenceCaps(t *testing.T) {
	start := testNow.AddDate(-5, 0, 0)
	occ, err := expandRecurrence("FREQ=DAILY", start, testNow)
	require.NoError(t, err)
	assert.Len(t, occ, MaxOccurrences)
}
