package ics

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"worklink/internal/model"
)

// DefaultStalenessDays is the look-back window beyond which non-recurring
// entries are discarded as obsolete.
const DefaultStalenessDays = 30

const privateMarker = "PRIVATE"
const cancelledMarker = "TRANSPARENT"

// cancelledPrefixes are the name conventions calendar clients use when a
// cancelled meeting is left on the calendar.
var cancelledPrefixes = []string{"Canceled:", "キャンセル済み:"}

// NormalizeConfig parametrizes normalization.
type NormalizeConfig struct {
	// Now is the reference instant; occurrences and staleness are judged
	// against it.
	Now time.Time
	// StalenessDays overrides DefaultStalenessDays when positive.
	StalenessDays int
}

// Skipped records one raw entry that did not survive normalization.
type Skipped struct {
	Summary string
	Reason  string
}

// Normalize turns raw entries into canonical event records:
//
//  1. name, start and end are required; end must not precede start
//  2. privacy and cancellation flags are derived from CLASS / TRANSP /
//     name-prefix conventions
//  3. recurrence rules are expanded forward from the entry's own start,
//     capped, keeping only occurrences at or before now
//  4. non-recurring entries whose calendar day precedes the staleness
//     cutoff are skipped
//  5. the result is sorted by start ascending, then duration ascending
//
// The ordering in step 5 is load-bearing: day partitioning downstream
// assumes events at the same instant are visited shortest-first.
func Normalize(entries []Entry, cfg NormalizeConfig, logger *zap.Logger) ([]model.Event, []Skipped) {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	days := cfg.StalenessDays
	if days <= 0 {
		days = DefaultStalenessDays
	}
	cutoff := dayOf(now.AddDate(0, 0, -days))

	events := make([]model.Event, 0, len(entries))
	skipped := make([]Skipped, 0)

	skip := func(e Entry, reason string) {
		logger.Debug("skipping calendar entry", zap.String("summary", e.Summary), zap.String("reason", reason))
		skipped = append(skipped, Skipped{Summary: e.Summary, Reason: reason})
	}

	for _, e := range entries {
		if e.Summary == "" || e.Start.IsZero() || e.End.IsZero() {
			skip(e, "missing name, start or end")
			continue
		}
		if e.End.Before(e.Start) {
			skip(e, "end precedes start")
			continue
		}

		schedule, err := model.NewSchedule(e.Start, e.End, false, false)
		if err != nil {
			skip(e, err.Error())
			continue
		}

		var recurrence []time.Time
		if e.RRule != "" {
			recurrence, err = expandRecurrence(e.RRule, e.Start, now)
			if err != nil {
				// A broken rule degrades the entry to non-recurring; the
				// base occurrence is still real.
				logger.Warn("unparseable recurrence rule",
					zap.String("summary", e.Summary), zap.Error(err))
				recurrence = nil
			}
		}

		if len(recurrence) == 0 && dayOf(e.Start).Before(cutoff) {
			skip(e, "older than the staleness window")
			continue
		}

		events = append(events, model.Event{
			ID:          e.UID,
			Name:        e.Summary,
			Organizer:   e.Organizer,
			Location:    e.Location,
			IsPrivate:   e.Class == privateMarker,
			IsCancelled: isCancelled(e),
			Schedule:    schedule,
			Recurrence:  recurrence,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		si, sj := events[i].Schedule, events[j].Schedule
		if !si.Start.Equal(sj.Start) {
			return si.Start.Before(sj.Start)
		}
		return si.Duration() < sj.Duration()
	})

	return events, skipped
}

func isCancelled(e Entry) bool {
	if e.Transparency == cancelledMarker {
		return true
	}
	for _, prefix := range cancelledPrefixes {
		if strings.HasPrefix(e.Summary, prefix) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
