// Package attendance turns raw attendance-report text into canonical
// per-day schedule records: one nominal work-time schedule and one
// stamp-time schedule per day, index-aligned by date.
//
// The source text carries no year; the current calendar year of the
// reference instant is assumed. This is a known limitation of the report
// format, not something to silently correct.
package attendance

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"worklink/internal/model"
)

// Diagnostics attached to days without a usable time pair.
const (
	diagNoStampData       = "no stamp data"
	diagStampTimeNotFound = "stamp time not found"
	diagWorkTimeNotFound  = "work time not found"
)

var (
	// Date anchor: a bare "M/D" line followed by a single-kanji weekday
	// line marks the start of one day's entry.
	dayPattern     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	weekdayPattern = regexp.MustCompile(`^[月火水木金土日]$`)

	// "designated holiday" and paid-leave markers inside an entry.
	designatedHolidayPattern = regexp.MustCompile(`^所定休日$`)
	paidLeavePattern         = regexp.MustCompile(`^＜休暇＞$`)
	noStampPattern           = regexp.MustCompile(`打刻情報なし`)

	// Stamp pair ("09:45 -- 18:46") and nominal work-time pair
	// ("09時45分 ～ 18時46分").
	stampPattern   = regexp.MustCompile(`(\d{1,2}:\d{2})\s*--\s*(\d{1,2}:\d{2})`)
	nominalPattern = regexp.MustCompile(`(\d{1,2})時(\d{2})分\s*[～〜]\s*(\d{1,2})時(\d{2})分`)
)

// Result holds the two parallel per-day lists. Both have the same length
// and the i-th elements describe the same calendar day.
type Result struct {
	Schedules []model.Schedule // nominal work time
	Stamps    []model.Schedule // stamp record
}

// Extract scans the attendance text for date-anchored entries. Each entry
// spans from its anchor to the next anchor (or end of text). Unparseable
// entries degrade to error-carrying schedules; they never fail the run.
func Extract(text string, now time.Time, logger *zap.Logger) Result {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	anchors := findAnchors(lines)

	var result Result
	for idx, anchor := range anchors {
		end := len(lines)
		if idx+1 < len(anchors) {
			end = anchors[idx+1]
		}
		nominal, stamp := extractDay(lines[anchor:end], now, logger)
		result.Schedules = append(result.Schedules, nominal)
		result.Stamps = append(result.Stamps, stamp)
	}

	logger.Debug("attendance extracted", zap.Int("days", len(result.Schedules)))
	return result
}

// findAnchors returns indexes of day lines immediately followed by a
// weekday line.
func findAnchors(lines []string) []int {
	var anchors []int
	for i := 0; i+1 < len(lines); i++ {
		if dayPattern.MatchString(lines[i]) && weekdayPattern.MatchString(lines[i+1]) {
			anchors = append(anchors, i)
		}
	}
	return anchors
}

// extractDay interprets one entry block. lines[0] is the "M/D" line and
// lines[1] the weekday line.
func extractDay(lines []string, now time.Time, logger *zap.Logger) (nominal, stamp model.Schedule) {
	m := dayPattern.FindStringSubmatch(lines[0])
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	weekday := lines[1]

	base := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())

	isHoliday := weekday == "土" || weekday == "日"
	isPaidLeave := false
	noStamp := false
	var stampLine, nominalLine string

	for _, line := range lines[2:] {
		switch {
		case designatedHolidayPattern.MatchString(line):
			isHoliday = true
		case paidLeavePattern.MatchString(line):
			isPaidLeave = true
			isHoliday = true // paid leave implies holiday
		case noStampPattern.MatchString(line):
			noStamp = true
		}
		if stampLine == "" && stampPattern.MatchString(line) {
			stampLine = line
		}
		if nominalLine == "" && nominalPattern.MatchString(line) {
			nominalLine = line
		}
	}

	nominal = nominalSchedule(base, nominalLine, isHoliday, isPaidLeave, logger)
	stamp = stampSchedule(base, stampLine, noStamp, isHoliday, isPaidLeave, logger)
	return nominal, stamp
}

func nominalSchedule(base time.Time, line string, isHoliday, isPaidLeave bool, logger *zap.Logger) model.Schedule {
	if line == "" {
		return errorSchedule(base, diagWorkTimeNotFound, isHoliday, isPaidLeave)
	}
	m := nominalPattern.FindStringSubmatch(line)
	start := atTime(base, m[1], m[2])
	end := atTime(base, m[3], m[4])

	s, err := model.NewSchedule(start, end, isHoliday, isPaidLeave)
	if err != nil {
		logger.Debug("invalid nominal time pair", zap.String("line", line), zap.Error(err))
		return errorSchedule(base, err.Error(), isHoliday, isPaidLeave)
	}
	return s
}

func stampSchedule(base time.Time, line string, noStamp, isHoliday, isPaidLeave bool, logger *zap.Logger) model.Schedule {
	if noStamp {
		return errorSchedule(base, diagNoStampData, isHoliday, isPaidLeave)
	}
	if line == "" {
		return errorSchedule(base, diagStampTimeNotFound, isHoliday, isPaidLeave)
	}
	m := stampPattern.FindStringSubmatch(line)
	start := atClock(base, m[1])
	end := atClock(base, m[2])

	s, err := model.NewSchedule(start, end, isHoliday, isPaidLeave)
	if err != nil {
		logger.Debug("invalid stamp time pair", zap.String("line", line), zap.Error(err))
		return errorSchedule(base, err.Error(), isHoliday, isPaidLeave)
	}
	return s
}

// errorSchedule builds the midnight-anchored open schedule that carries a
// diagnostic for days without a usable time pair.
func errorSchedule(base time.Time, message string, isHoliday, isPaidLeave bool) model.Schedule {
	return model.Schedule{
		Start:        base,
		IsHoliday:    isHoliday,
		IsPaidLeave:  isPaidLeave,
		ErrorMessage: message,
	}
}

// atTime combines the base day with "HH" and "MM" strings.
func atTime(base time.Time, hh, mm string) time.Time {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

// atClock combines the base day with an "HH:MM" string.
func atClock(base time.Time, clock string) time.Time {
	parts := strings.SplitN(clock, ":", 2)
	return atTime(base, parts[0], parts[1])
}
