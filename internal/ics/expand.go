package ics

import (
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps recurrence expansion so an unbounded RRULE cannot
// stall a run. Hitting the cap truncates silently.
const MaxOccurrences = 1000

// expandRecurrence materializes a recurrence rule forward from the
// entry's own start. Occurrences after "now" are not materialized: only
// past instances matter for reconciling recorded time.
func expandRecurrence(rawRule string, dtstart, now time.Time) ([]time.Time, error) {
	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(dtstart)

	out := make([]time.Time, 0)
	next := r.Iterator()
	for {
		t, ok := next()
		if !ok || t.After(now) {
			break
		}
		out = append(out, t)
		if len(out) >= MaxOccurrences {
			break
		}
	}
	return out, nil
}
