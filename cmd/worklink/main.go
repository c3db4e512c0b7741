package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"worklink/internal/attendance"
	"worklink/internal/config"
	"worklink/internal/history"
	"worklink/internal/ics"
	"worklink/internal/linker"
	"worklink/internal/logging"
	"worklink/internal/model"
	"worklink/internal/storage"
)

type flagConfig struct {
	configPath string
	feedSource string
	attendance string
	once       bool
	commit     bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", flags.configPath, err)
		os.Exit(1)
	}

	// CLI overrides take precedence over the config file.
	if flags.feedSource != "" {
		conf.FeedSource = flags.feedSource
	}
	if flags.attendance != "" {
		conf.AttendancePath = flags.attendance
	}

	logger, err := logging.New(logging.Config{Level: conf.Log.Level, Format: conf.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("worklink starting",
		zap.String("config_path", flags.configPath),
		zap.String("feed_source", conf.FeedSource),
		zap.String("attendance_path", conf.AttendancePath),
		zap.String("timezone", conf.Timezone),
		zap.Bool("once", flags.once),
		zap.Bool("commit", flags.commit),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	app, err := newApp(ctx, conf, flags.commit, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer app.Close()

	if flags.once {
		if err := app.runOnce(ctx); err != nil {
			logger.Error("reconciliation failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	runDaemon(ctx, app, conf.RefreshCron, logger)
	logger.Info("worklink exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./worklink.yaml", "Path to config file")
	flag.StringVar(&cfg.feedSource, "feed", "", "Calendar feed URL or ICS file (overrides config if set)")
	flag.StringVar(&cfg.attendance, "attendance", "", "Attendance record text file (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one reconciliation cycle and exit")
	flag.BoolVar(&cfg.commit, "commit", false, "Record produced links into history and persist it")

	flag.Parse()

	return cfg
}

// app wires the pipeline components for repeated runs.
type app struct {
	conf    *config.Config
	commit  bool
	loc     *time.Location
	fetcher *ics.Fetcher
	db      *storage.SQLiteStore
	history *history.Store
	logger  *zap.Logger
}

func newApp(ctx context.Context, conf *config.Config, commit bool, logger *zap.Logger) (*app, error) {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", conf.Timezone, err)
	}

	db, err := storage.OpenSQLite(ctx, conf.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", conf.DatabasePath, err)
	}

	return &app{
		conf:    conf,
		commit:  commit,
		loc:     loc,
		fetcher: ics.NewFetcher(conf.CacheDir, logger.Named("fetch")),
		db:      db,
		history: history.NewStore(db, logger.Named("history"), history.Config{MaxSize: conf.History.MaxSize}),
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
}

// runOnce performs one full reconciliation cycle: fetch and normalize
// the feed, extract attendance, load the catalog, resolve links, and
// optionally commit them to history.
func (a *app) runOnce(ctx context.Context) error {
	now := time.Now().In(a.loc)

	if a.conf.FeedSource == "" {
		return fmt.Errorf("no feed source configured")
	}

	body, err := a.fetcher.Fetch(ctx, a.conf.FeedSource)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	entries, err := ics.ParseFeed(body)
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}
	events, skipped := ics.Normalize(entries, ics.NormalizeConfig{
		Now:           now,
		StalenessDays: a.conf.StalenessDays,
	}, a.logger.Named("normalize"))
	a.logger.Info("feed normalized",
		zap.Int("events", len(events)),
		zap.Int("skipped", len(skipped)),
	)

	var schedules []model.Schedule
	if a.conf.AttendancePath != "" {
		text, err := os.ReadFile(a.conf.AttendancePath)
		if err != nil {
			return fmt.Errorf("read attendance record: %w", err)
		}
		extracted := attendance.Extract(string(text), now, a.logger.Named("attendance"))
		schedules = extracted.Schedules

		// Stamp coverage is reporting-only; linking gates on the nominal
		// schedules.
		var missingStamps int
		for _, s := range extracted.Stamps {
			if s.IsError() {
				missingStamps++
			}
		}
		a.logger.Info("attendance extracted",
			zap.Int("days", len(schedules)),
			zap.Int("days_without_stamps", missingStamps),
		)
	} else {
		a.logger.Info("no attendance record configured, running calendar-only")
	}

	directory, err := model.LoadCatalog(a.conf.CatalogPath)
	if err != nil {
		return fmt.Errorf("load work-item catalog %s: %w", a.conf.CatalogPath, err)
	}

	a.history.Load(ctx)
	a.history.ReconcileAgainst(directory.LeafIDs())

	resolver := linker.New(a.history, a.logger.Named("linker"))
	result := resolver.Resolve(linker.Input{
		Events:    events,
		Schedules: schedules,
		Directory: directory,
		Settings:  a.conf.Settings(),
	})

	for _, l := range result.Linked {
		a.logger.Info("linked",
			zap.String("event", l.Event.Name),
			zap.String("work_item", l.WorkItem.Name),
			zap.String("method", string(l.Method)),
		)
	}
	for _, ev := range result.Unlinked {
		a.logger.Info("unlinked", zap.String("event", ev.Name))
	}
	for _, ex := range result.Excluded {
		a.logger.Debug("excluded",
			zap.String("event", ex.Event.Name),
			zap.String("reason", string(ex.Reason)),
			zap.String("detail", ex.Detail),
		)
	}

	byMethod := make(map[linker.Method]int)
	for _, l := range result.Linked {
		byMethod[l.Method]++
	}
	byReason := make(map[linker.ExcludeReason]int)
	for _, ex := range result.Excluded {
		byReason[ex.Reason]++
	}
	a.logger.Info("run summary",
		zap.Int("days", len(result.Days)),
		zap.Int("linked_time_off", byMethod[linker.MethodTimeOffPattern]),
		zap.Int("linked_history", byMethod[linker.MethodHistory]),
		zap.Int("linked_work_schedule", byMethod[linker.MethodWorkSchedule]),
		zap.Int("unlinked", len(result.Unlinked)),
		zap.Int("excluded_ignored", byReason[linker.ReasonIgnored]),
		zap.Int("excluded_out_of_schedule", byReason[linker.ReasonOutOfSchedule]),
		zap.Int("excluded_invalid", byReason[linker.ReasonInvalid]),
	)

	if a.commit {
		for _, l := range result.Linked {
			a.history.Record(l.Event, l.WorkItem.ID)
		}
		a.history.Persist(ctx)
		a.logger.Info("history committed", zap.Int("entries", a.history.Len()))
	}

	return nil
}

// serialize wraps fn so that overlapping invocations are skipped instead
// of running concurrently. The history store is not safe for concurrent
// mutation, so at most one reconciliation run may be in flight.
func serialize(logger *zap.Logger, fn func()) func() {
	var busy atomic.Bool
	return func() {
		if !busy.CompareAndSwap(false, true) {
			logger.Warn("previous reconciliation still running, skipping this run")
			return
		}
		defer busy.Store(false)
		fn()
	}
}

// runDaemon reconciles on the configured cron schedule until the context
// is cancelled. The first run fires immediately. Cron fires each job in
// its own goroutine, so ticks that arrive while a slow run is still in
// flight are skipped.
func runDaemon(ctx context.Context, a *app, spec string, logger *zap.Logger) {
	run := serialize(logger, func() {
		if err := a.runOnce(ctx); err != nil {
			logger.Error("reconciliation failed", zap.Error(err))
		}
	})
	run()

	c := cron.New()
	if _, err := c.AddFunc(spec, run); err != nil {
		logger.Error("invalid refresh schedule", zap.String("refresh", spec), zap.Error(err))
		return
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
}
