// Package scheduler owns the daily trigger: it resolves the configured send
// time and timezone from settings, installs the cron entries, and re-installs
// them when configuration changes.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adekerz/FreshTrack-sub004/internal/db"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// sendTimePattern validates a HH:MM wall-clock time, 24-hour.
var sendTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// defaultSendTime is used when no send time is configured.
const defaultSendTime = "09:00"

// sweepSpec drives the delivery sweep between daily runs so retry backoffs
// are honored with minute-level granularity.
const sweepSpec = "@every 5m"

// SettingsSource reads the send time and timezone configuration.
type SettingsSource interface {
	GetWithFallback(ctx context.Context, hotelID *string, key string) (string, bool, error)
}

// Evaluator runs one rule evaluation pass.
type Evaluator interface {
	Evaluate(ctx context.Context) (int, error)
}

// Sweeper runs one delivery sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Reporter runs one daily report cycle.
type Reporter interface {
	Run(ctx context.Context) (types.ReportResult, error)
}

// Status describes the installed daily trigger.
type Status struct {
	Active   bool      `json:"active"`
	SendTime string    `json:"send_time,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
	NextRun  time.Time `json:"next_run,omitempty"`
}

// Service schedules the daily evaluation/report run and the periodic
// delivery sweep. The daily entry is keyed by its resolved send time and
// timezone; Reschedule is a no-op while both are unchanged.
type Service struct {
	settings SettingsSource
	eval     Evaluator
	sweeper  Sweeper
	reporter Reporter
	hotelID  *string
	clock    types.Clock
	logger   types.Logger

	mu         sync.Mutex
	cron       *cron.Cron
	dailyEntry cron.EntryID
	sweepEntry cron.EntryID
	sendTime   string
	timezone   string
	started    bool
}

// ServiceConfig holds the dependencies needed to create a Service.
// PrimaryHotelID optionally scopes settings resolution to one hotel before
// the system fallback.
type ServiceConfig struct {
	Settings       SettingsSource
	Evaluator      Evaluator
	Sweeper        Sweeper
	Reporter       Reporter
	PrimaryHotelID string
	Clock          types.Clock
	Logger         types.Logger
}

// NewService creates a stopped Service.
func NewService(cfg ServiceConfig) *Service {
	var hotelID *string
	if cfg.PrimaryHotelID != "" {
		h := cfg.PrimaryHotelID
		hotelID = &h
	}
	return &Service{
		settings: cfg.Settings,
		eval:     cfg.Evaluator,
		sweeper:  cfg.Sweeper,
		reporter: cfg.Reporter,
		hotelID:  hotelID,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		cron:     cron.New(),
	}
}

// SetJobs installs the job hooks after construction. The engine's location
// resolution points back at this service, so the jobs cannot exist before it
// does; call SetJobs before Start.
func (s *Service) SetJobs(eval Evaluator, sweeper Sweeper, reporter Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eval = eval
	s.sweeper = sweeper
	s.reporter = reporter
}

// Start resolves the configured schedule, installs the daily and sweep
// entries, and starts the cron runner.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := s.installDailyLocked(ctx); err != nil {
		return err
	}

	id, err := s.cron.AddFunc(sweepSpec, func() { s.runSweep() })
	if err != nil {
		return fmt.Errorf("scheduler: install sweep: %w", err)
	}
	s.sweepEntry = id

	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started",
		"send_time", s.sendTime, "timezone", s.timezone)
	return nil
}

// Stop halts the cron runner and waits for a running job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("scheduler stopped")
}

// Reschedule re-resolves the send time and timezone and re-installs the
// daily entry when either changed. Unchanged configuration leaves the
// installed entry untouched, so a run already in progress is never disturbed
// by redundant calls.
func (s *Service) Reschedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sendTime, tz, err := s.resolveSchedule(ctx)
	if err != nil {
		return err
	}
	if sendTime == s.sendTime && tz == s.timezone && s.dailyEntry != 0 {
		return nil
	}

	if s.dailyEntry != 0 {
		s.cron.Remove(s.dailyEntry)
		s.dailyEntry = 0
	}
	return s.installEntryLocked(sendTime, tz)
}

// Status reports whether the daily trigger is installed and when it fires
// next.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Active:   s.started && s.dailyEntry != 0,
		SendTime: s.sendTime,
		Timezone: s.timezone,
	}
	if st.Active {
		st.NextRun = s.cron.Entry(s.dailyEntry).Next
	}
	return st
}

// RunEvaluationNow triggers one evaluation pass outside the schedule.
func (s *Service) RunEvaluationNow(ctx context.Context) (int, error) {
	return s.eval.Evaluate(ctx)
}

// RunSweepNow triggers one delivery sweep outside the schedule.
func (s *Service) RunSweepNow(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx)
}

// RunDailyReportNow triggers one report cycle outside the schedule.
func (s *Service) RunDailyReportNow(ctx context.Context) (types.ReportResult, error) {
	return s.reporter.Run(ctx)
}

// Location resolves the engine's working timezone through the settings
// chain. Implements the evaluation and report location resolution.
func (s *Service) Location(ctx context.Context) *time.Location {
	name := s.resolveTimezone(ctx)
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Warn("configured timezone invalid, using UTC", "timezone", name)
		return time.UTC
	}
	return loc
}

func (s *Service) installDailyLocked(ctx context.Context) error {
	sendTime, tz, err := s.resolveSchedule(ctx)
	if err != nil {
		return err
	}
	return s.installEntryLocked(sendTime, tz)
}

// installEntryLocked installs the daily entry for the given wall-clock time.
// Callers hold s.mu.
func (s *Service) installEntryLocked(sendTime, tz string) error {
	var hh, mm int
	fmt.Sscanf(sendTime, "%d:%d", &hh, &mm)

	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, mm, hh)
	id, err := s.cron.AddFunc(spec, func() { s.runDaily() })
	if err != nil {
		return fmt.Errorf("scheduler: install daily entry: %w", err)
	}

	s.dailyEntry = id
	s.sendTime = sendTime
	s.timezone = tz
	s.logger.Info("daily trigger installed", "send_time", sendTime, "timezone", tz)
	return nil
}

// runDaily executes one full daily cycle in order: evaluate rules, sweep the
// fresh pending records, then deliver the reports. Failures in one stage are
// logged and do not block the next.
func (s *Service) runDaily() {
	ctx := context.Background()

	if created, err := s.eval.Evaluate(ctx); err != nil {
		s.logger.Error("scheduled evaluation failed", "error", err.Error())
	} else {
		s.logger.Info("scheduled evaluation done", "notifications_created", created)
	}

	s.runSweep()

	if result, err := s.reporter.Run(ctx); err != nil {
		s.logger.Error("scheduled daily report failed", "error", err.Error())
	} else {
		s.logger.Info("scheduled daily report done",
			"telegram_sent", result.TelegramSent, "email_sent", result.EmailSent)
	}
}

func (s *Service) runSweep() {
	if delivered, err := s.sweeper.Sweep(context.Background()); err != nil {
		s.logger.Error("scheduled sweep failed", "error", err.Error())
	} else if delivered > 0 {
		s.logger.Info("scheduled sweep done", "delivered", delivered)
	}
}

// resolveSchedule reads the configured send time and timezone. A configured
// send time that fails validation is an error; a missing one defaults.
func (s *Service) resolveSchedule(ctx context.Context) (string, string, error) {
	sendTime, err := s.resolveSendTime(ctx)
	if err != nil {
		return "", "", err
	}
	return sendTime, s.resolveTimezone(ctx), nil
}

func (s *Service) resolveSendTime(ctx context.Context) (string, error) {
	for _, key := range []string{db.SettingSendTimeTelegram, db.SettingSendTime} {
		v, ok, err := s.settings.GetWithFallback(ctx, s.hotelID, key)
		if err != nil {
			return "", fmt.Errorf("scheduler: read %s: %w", key, err)
		}
		if !ok || v == "" {
			continue
		}
		if !sendTimePattern.MatchString(v) {
			return "", types.NewAppError(types.ErrCodeValidationSendTime,
				fmt.Sprintf("configured send time %q is not HH:MM", v), nil)
		}
		return v, nil
	}
	return defaultSendTime, nil
}

// resolveTimezone walks the fallback chain: hotel display timezone, system
// locale timezone, the host timezone, then UTC.
func (s *Service) resolveTimezone(ctx context.Context) string {
	if s.hotelID != nil {
		if v, ok, err := s.settings.GetWithFallback(ctx, s.hotelID, db.SettingTimezoneHotel); err == nil && ok && v != "" {
			return v
		}
	}
	if v, ok, err := s.settings.GetWithFallback(ctx, nil, db.SettingTimezoneSystem); err == nil && ok && v != "" {
		return v
	}
	if name := time.Now().Location().String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}
