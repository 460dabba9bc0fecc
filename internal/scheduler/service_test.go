package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

type mockLogger struct{}

func (l *mockLogger) Info(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) {}
func (l *mockLogger) Warn(msg string, args ...any)  {}
func (l *mockLogger) With(args ...any) types.Logger { return l }

// mockSettings keys values by "<hotel>/<key>"; a hotel miss falls back to
// the system scope, mirroring the repository's fallback behavior.
type mockSettings struct {
	values map[string]string
}

func (m *mockSettings) GetWithFallback(ctx context.Context, hotelID *string, key string) (string, bool, error) {
	if hotelID != nil {
		if v, ok := m.values[*hotelID+"/"+key]; ok {
			return v, true, nil
		}
	}
	v, ok := m.values["/"+key]
	return v, ok, nil
}

type countingEvaluator struct {
	calls int
}

func (e *countingEvaluator) Evaluate(ctx context.Context) (int, error) {
	e.calls++
	return 0, nil
}

type countingSweeper struct {
	calls int
}

func (s *countingSweeper) Sweep(ctx context.Context) (int, error) {
	s.calls++
	return 0, nil
}

type countingReporter struct {
	calls int
}

func (r *countingReporter) Run(ctx context.Context) (types.ReportResult, error) {
	r.calls++
	return types.ReportResult{}, nil
}

func newTestService(settings map[string]string) *Service {
	return NewService(ServiceConfig{
		Settings:  &mockSettings{values: settings},
		Evaluator: &countingEvaluator{},
		Sweeper:   &countingSweeper{},
		Reporter:  &countingReporter{},
		Clock:     types.RealClock{},
		Logger:    &mockLogger{},
	})
}

func TestStart_InstallsDailyAndSweep(t *testing.T) {
	s := newTestService(map[string]string{
		"/notify.sendTime": "10:30",
		"/locale.timezone": "Europe/Berlin",
	})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := s.Status()
	if !st.Active {
		t.Fatal("expected active schedule")
	}
	if st.SendTime != "10:30" {
		t.Errorf("send time = %q, want 10:30", st.SendTime)
	}
	if st.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q, want Europe/Berlin", st.Timezone)
	}

	// Next run must land exactly on the configured wall-clock time.
	berlin, _ := time.LoadLocation("Europe/Berlin")
	next := st.NextRun.In(berlin)
	if next.Hour() != 10 || next.Minute() != 30 {
		t.Errorf("next run = %s, want 10:30 local", next.Format("15:04"))
	}
}

func TestStart_DefaultSendTime(t *testing.T) {
	s := newTestService(nil)
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Status().SendTime; got != "09:00" {
		t.Errorf("send time = %q, want default 09:00", got)
	}
}

func TestStart_InvalidSendTimeRejected(t *testing.T) {
	for _, bad := range []string{"25:00", "9:00", "12:60", "noon"} {
		s := newTestService(map[string]string{"/notify.sendTime": bad})
		err := s.Start(context.Background())
		if !types.IsCode(err, types.ErrCodeValidationSendTime) {
			t.Errorf("send time %q: expected validation error, got %v", bad, err)
		}
	}
}

func TestSendTimeKeyPrecedence(t *testing.T) {
	// The telegram-specific send time wins over the generic one.
	s := newTestService(map[string]string{
		"/notify.telegram.sendTime": "08:15",
		"/notify.sendTime":          "12:00",
	})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Status().SendTime; got != "08:15" {
		t.Errorf("send time = %q, want 08:15", got)
	}
}

func TestReschedule_UnchangedIsNoOp(t *testing.T) {
	s := newTestService(map[string]string{"/notify.sendTime": "10:30"})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := s.Status().NextRun

	if err := s.Reschedule(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Status().NextRun; !got.Equal(before) {
		t.Errorf("reschedule with unchanged config moved next run: %v -> %v", before, got)
	}
}

func TestReschedule_AppliesNewSendTime(t *testing.T) {
	settings := &mockSettings{values: map[string]string{"/notify.sendTime": "10:30"}}
	s := NewService(ServiceConfig{
		Settings:  settings,
		Evaluator: &countingEvaluator{},
		Sweeper:   &countingSweeper{},
		Reporter:  &countingReporter{},
		Clock:     types.RealClock{},
		Logger:    &mockLogger{},
	})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings.values["/notify.sendTime"] = "17:45"
	if err := s.Reschedule(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Status().SendTime; got != "17:45" {
		t.Errorf("send time = %q, want 17:45", got)
	}
}

func TestTimezoneChain_HotelOverride(t *testing.T) {
	settings := &mockSettings{values: map[string]string{
		"hotel_1/display.timezone": "Asia/Tokyo",
		"/locale.timezone":         "Europe/Berlin",
	}}
	s := NewService(ServiceConfig{
		Settings:       settings,
		Evaluator:      &countingEvaluator{},
		Sweeper:        &countingSweeper{},
		Reporter:       &countingReporter{},
		PrimaryHotelID: "hotel_1",
		Clock:          types.RealClock{},
		Logger:         &mockLogger{},
	})

	loc := s.Location(context.Background())
	if loc.String() != "Asia/Tokyo" {
		t.Errorf("location = %s, want Asia/Tokyo", loc)
	}

	delete(settings.values, "hotel_1/display.timezone")
	loc = s.Location(context.Background())
	if loc.String() != "Europe/Berlin" {
		t.Errorf("location = %s, want Europe/Berlin", loc)
	}
}

func TestLocation_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	s := newTestService(map[string]string{"/locale.timezone": "Not/AZone"})
	if loc := s.Location(context.Background()); loc != time.UTC {
		t.Errorf("location = %s, want UTC", loc)
	}
}

func TestRunNow_Triggers(t *testing.T) {
	eval := &countingEvaluator{}
	sweep := &countingSweeper{}
	rep := &countingReporter{}
	s := NewService(ServiceConfig{
		Settings:  &mockSettings{},
		Evaluator: eval,
		Sweeper:   sweep,
		Reporter:  rep,
		Clock:     types.RealClock{},
		Logger:    &mockLogger{},
	})

	if _, err := s.RunEvaluationNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunSweepNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunDailyReportNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if eval.calls != 1 || sweep.calls != 1 || rep.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/1/1", eval.calls, sweep.calls, rep.calls)
	}
}
