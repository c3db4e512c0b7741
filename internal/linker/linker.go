// Package linker implements the reconciliation and auto-linking resolver:
// it partitions canonical events and schedules by day, applies the
// exclusion rules, and resolves each remaining event to a work item via
// the fixed three-tier priority (time-off pattern → history →
// work-schedule anchor).
package linker

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"worklink/internal/history"
	"worklink/internal/model"
	"worklink/internal/pattern"
)

// Method says which tier produced a link.
type Method string

const (
	MethodTimeOffPattern Method = "timeOffPattern"
	MethodHistory        Method = "history"
	MethodWorkSchedule   Method = "workScheduleAnchor"
)

// ExcludeReason classifies why an event was excluded from linking.
type ExcludeReason string

const (
	ReasonIgnored       ExcludeReason = "ignored"
	ReasonOutOfSchedule ExcludeReason = "outOfSchedule"
	ReasonInvalid       ExcludeReason = "invalid"
)

// Linked pairs an event with its resolved work item.
type Linked struct {
	Event    model.Event
	WorkItem model.WorkItem
	Method   Method
}

// Excluded records an event removed before linking, with the reason.
type Excluded struct {
	Event  model.Event
	Reason ExcludeReason
	Detail string
}

// TimeOffConfig names the patterns that identify time-off events and the
// work item they book to.
type TimeOffConfig struct {
	Patterns   []pattern.Rule `yaml:"patterns"`
	WorkItemID string         `yaml:"work_item_id"`
}

// WorkScheduleConfig names the single work item that work-schedule
// anchor events book to.
type WorkScheduleConfig struct {
	WorkItemID string `yaml:"work_item_id"`
}

// PaidLeaveConfig controls synthetic paid-leave events.
type PaidLeaveConfig struct {
	WorkItemID string `yaml:"work_item_id"`
	StartTime  string `yaml:"start_time"` // "HH:MM"
	EndTime    string `yaml:"end_time"`   // "HH:MM"
}

// Settings is the per-run linking configuration.
type Settings struct {
	IgnoreRules    []pattern.Rule
	TimeOff        *TimeOffConfig
	HistoryLinking bool
	WorkSchedule   WorkScheduleConfig
	PaidLeave      *PaidLeaveConfig
}

// Input is one reconciliation run's worth of data. The work-item
// directory is supplied fresh for every run.
type Input struct {
	Events    []model.Event
	Schedules []model.Schedule // nominal attendance schedules, one per day
	Directory *model.Directory
	Settings  Settings
}

// Result is the outcome of one run. Every input event appears in exactly
// one of Linked, Unlinked or Excluded, except work-schedule anchors
// whose configured work item does not resolve; those are dropped with a
// log line (see Resolve).
type Result struct {
	Linked   []Linked
	Unlinked []model.Event
	Excluded []Excluded
	Days     []model.DayTask
}

// Resolver runs the reconciliation pipeline. It owns no state across
// runs beyond the injected history store, and must not be invoked
// concurrently against the same store.
type Resolver struct {
	history *history.Store
	logger  *zap.Logger
}

// New creates a Resolver over the given history store.
func New(hist *history.Store, logger *zap.Logger) *Resolver {
	return &Resolver{history: hist, logger: logger}
}

// Resolve executes one reconciliation run. It is deterministic: with
// identical inputs and an untouched history store it yields identical
// partitions in identical order.
func (r *Resolver) Resolve(input Input) Result {
	var result Result

	// 1. Exclusion pass: ignore rules plus private/cancelled events.
	enabled := r.excludePass(input.Events, input.Settings.IgnoreRules, &result)

	// 2. Schedule gating set. An empty set means there is no attendance
	// data at all and every day is in range (calendar-only mode).
	days := scheduleDaySet(input.Schedules)

	// 3. Day partitioning.
	tasks := partitionByDay(enabled)

	if len(days) > 0 {
		tasks = r.gateBySchedule(tasks, days, &result)
	}

	// The tier pool is collected before paid-leave synthesis: synthetic
	// events are linked at synthesis and must not re-enter the tiers.
	remaining := make([]model.Event, 0)
	anchors := make([]model.Event, 0)
	for _, task := range tasks {
		remaining = append(remaining, task.Events...)
		anchors = append(anchors, task.WorkScheduleEvents...)
	}

	// 4. Synthetic paid-leave tasks join the day list pre-linked.
	tasks = append(tasks, r.paidLeaveTasks(input, &result)...)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].BaseDate.Before(tasks[j].BaseDate) })
	result.Days = tasks

	// 5. Priority linking over the collected pool.
	remaining = r.linkTimeOff(remaining, input, &result)
	remaining = r.linkFromHistory(remaining, input, &result)
	r.linkWorkSchedule(anchors, input, &result)

	// 6. Whatever no tier claimed is unlinked.
	result.Unlinked = append(result.Unlinked, remaining...)

	r.logger.Info("reconciliation finished",
		zap.Int("linked", len(result.Linked)),
		zap.Int("unlinked", len(result.Unlinked)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Int("days", len(result.Days)),
	)
	return result
}

func (r *Resolver) excludePass(events []model.Event, ignoreRules []pattern.Rule, result *Result) []model.Event {
	rules := pattern.Compact(ignoreRules)

	enabled := make([]model.Event, 0, len(events))
	for _, ev := range events {
		switch {
		case ev.IsPrivate:
			result.Excluded = append(result.Excluded, Excluded{Event: ev, Reason: ReasonInvalid, Detail: "private event"})
		case ev.IsCancelled:
			result.Excluded = append(result.Excluded, Excluded{Event: ev, Reason: ReasonInvalid, Detail: "cancelled event"})
		case pattern.Matches(rules, ev.Name):
			result.Excluded = append(result.Excluded, Excluded{Event: ev, Reason: ReasonIgnored, Detail: "matches ignore rule"})
		default:
			enabled = append(enabled, ev)
		}
	}
	return enabled
}

// scheduleDaySet collects the calendar days carrying usable attendance
// data: holidays and days with extraction diagnostics do not count.
func scheduleDaySet(schedules []model.Schedule) map[string]struct{} {
	days := make(map[string]struct{})
	for _, s := range schedules {
		if s.IsHoliday || s.IsError() {
			continue
		}
		days[dayKey(s.BaseDate())] = struct{}{}
	}
	return days
}

// partitionByDay groups events into one task per calendar day, keeping
// work-schedule anchors separate from regular events. Events spanning
// midnight are assumed pre-split by the upstream day-task producer.
func partitionByDay(events []model.Event) []model.DayTask {
	byDay := make(map[string]*model.DayTask)
	order := make([]string, 0)

	for _, ev := range events {
		key := dayKey(ev.BaseDate())
		task, ok := byDay[key]
		if !ok {
			task = &model.DayTask{BaseDate: ev.BaseDate()}
			byDay[key] = task
			order = append(order, key)
		}
		if ev.Role != model.RoleNone {
			task.WorkScheduleEvents = append(task.WorkScheduleEvents, ev)
		} else {
			task.Events = append(task.Events, ev)
		}
	}

	sort.Strings(order)
	tasks := make([]model.DayTask, 0, len(byDay))
	for _, key := range order {
		tasks = append(tasks, *byDay[key])
	}
	return tasks
}

func (r *Resolver) gateBySchedule(tasks []model.DayTask, days map[string]struct{}, result *Result) []model.DayTask {
	kept := make([]model.DayTask, 0, len(tasks))
	for _, task := range tasks {
		if _, ok := days[dayKey(task.BaseDate)]; ok {
			kept = append(kept, task)
			continue
		}
		for _, ev := range task.Events {
			result.Excluded = append(result.Excluded, Excluded{Event: ev, Reason: ReasonOutOfSchedule, Detail: "outside attendance schedule"})
		}
		for _, ev := range task.WorkScheduleEvents {
			result.Excluded = append(result.Excluded, Excluded{Event: ev, Reason: ReasonOutOfSchedule, Detail: "outside attendance schedule"})
		}
	}
	return kept
}

// paidLeaveNamespace derives stable ids for synthetic events; runs over
// the same day must produce byte-identical results.
var paidLeaveNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("worklink/paid-leave"))

const paidLeaveEventName = "有給休暇"

// paidLeaveTasks synthesizes one pre-linked event per paid-leave day. A
// missing or non-leaf configured work item skips synthesis silently (no
// task, no error) with a log line.
func (r *Resolver) paidLeaveTasks(input Input, result *Result) []model.DayTask {
	cfg := input.Settings.PaidLeave
	if cfg == nil {
		return nil
	}
	item, ok := input.Directory.ResolveLeaf(cfg.WorkItemID)
	if !ok {
		r.logger.Warn("paid-leave work item does not resolve to a leaf, skipping synthesis",
			zap.String("work_item_id", cfg.WorkItemID))
		return nil
	}

	var tasks []model.DayTask
	for _, s := range input.Schedules {
		if !s.IsPaidLeave {
			continue
		}
		base := s.BaseDate()
		schedule, err := model.NewSchedule(atClock(base, cfg.StartTime), atClock(base, cfg.EndTime), true, true)
		if err != nil {
			r.logger.Warn("invalid paid-leave time configuration, skipping synthesis",
				zap.String("start_time", cfg.StartTime),
				zap.String("end_time", cfg.EndTime),
				zap.Error(err))
			continue
		}
		ev := model.Event{
			ID:        uuid.NewSHA1(paidLeaveNamespace, []byte(base.Format("2006-01-02"))).String(),
			Name:      paidLeaveEventName,
			Organizer: "Automatic",
			Schedule:  schedule,
		}
		tasks = append(tasks, model.DayTask{BaseDate: base, Events: []model.Event{ev}})

		// Synthetic paid leave is time off by definition; it is linked
		// at synthesis rather than left to pattern matching.
		result.Linked = append(result.Linked, Linked{Event: ev, WorkItem: item, Method: MethodTimeOffPattern})
	}
	return tasks
}

// linkTimeOff is tier (a): events whose name matches a time-off pattern
// book to the configured time-off work item. The tier only runs with at
// least one non-empty pattern and a resolvable leaf target.
func (r *Resolver) linkTimeOff(events []model.Event, input Input, result *Result) []model.Event {
	cfg := input.Settings.TimeOff
	if cfg == nil {
		return events
	}
	rules := pattern.Compact(cfg.Patterns)
	if len(rules) == 0 {
		r.logger.Debug("time-off config has no usable patterns")
		return events
	}
	item, ok := input.Directory.ResolveLeaf(cfg.WorkItemID)
	if !ok {
		r.logger.Warn("time-off work item does not resolve to a leaf, skipping tier",
			zap.String("work_item_id", cfg.WorkItemID))
		return events
	}

	remaining := events[:0:0]
	for _, ev := range events {
		if pattern.Matches(rules, ev.Name) {
			result.Linked = append(result.Linked, Linked{Event: ev, WorkItem: item, Method: MethodTimeOffPattern})
		} else {
			remaining = append(remaining, ev)
		}
	}
	return remaining
}

// linkFromHistory is tier (b): fingerprint lookups against the history
// store, honored only while the stored work item still exists as a leaf.
func (r *Resolver) linkFromHistory(events []model.Event, input Input, result *Result) []model.Event {
	if !input.Settings.HistoryLinking {
		return events
	}

	remaining := events[:0:0]
	for _, ev := range events {
		id, found := r.history.Lookup(ev)
		if !found {
			remaining = append(remaining, ev)
			continue
		}
		item, ok := input.Directory.ResolveLeaf(id)
		if !ok {
			remaining = append(remaining, ev)
			continue
		}
		result.Linked = append(result.Linked, Linked{Event: ev, WorkItem: item, Method: MethodHistory})
	}
	return remaining
}

// linkWorkSchedule is tier (c): every anchor event books to the single
// configured schedule work item. When that work item does not resolve,
// anchors are dropped, not unlinked and not excluded. They are generated
// filler, and surfacing them would only invite hand-linking of events no
// user created.
func (r *Resolver) linkWorkSchedule(anchors []model.Event, input Input, result *Result) {
	if len(anchors) == 0 {
		return
	}
	item, ok := input.Directory.ResolveLeaf(input.Settings.WorkSchedule.WorkItemID)
	if !ok {
		r.logger.Warn("work-schedule work item does not resolve to a leaf, dropping anchor events",
			zap.String("work_item_id", input.Settings.WorkSchedule.WorkItemID),
			zap.Int("dropped", len(anchors)))
		return
	}
	for _, ev := range anchors {
		result.Linked = append(result.Linked, Linked{Event: ev, WorkItem: item, Method: MethodWorkSchedule})
	}
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

// atClock combines a midnight base with an "HH:MM" clock string. A
// malformed clock collapses to the base itself.
func atClock(base time.Time, clock string) time.Time {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return base
	}
	return base.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}
