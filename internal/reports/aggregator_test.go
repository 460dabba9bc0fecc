package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

type mockLogger struct{}

func (l *mockLogger) Info(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) {}
func (l *mockLogger) Warn(msg string, args ...any)  {}
func (l *mockLogger) With(args ...any) types.Logger { return l }

type utcResolver struct{}

func (utcResolver) Location(ctx context.Context) *time.Location { return time.UTC }

type mockHealth struct {
	summary *types.HealthSummary
	stats   *types.DepartmentStats
}

func (m *mockHealth) HealthSummary(ctx context.Context, hotelID string, departmentID *string, dayStart, warningCutoff time.Time) (*types.HealthSummary, error) {
	return m.summary, nil
}

func (m *mockHealth) DepartmentStats(ctx context.Context, departmentID string, dayStart, warningCutoff time.Time) (*types.DepartmentStats, error) {
	return m.stats, nil
}

type mockBindings struct {
	bindings []*types.ChatBinding
}

func (m *mockBindings) ListActive(ctx context.Context, hotelID string, departmentID *string) ([]*types.ChatBinding, error) {
	return m.bindings, nil
}

type mockInboxes struct {
	inboxes []*types.DepartmentInbox
}

func (m *mockInboxes) ListDepartmentInboxes(ctx context.Context) ([]*types.DepartmentInbox, error) {
	return m.inboxes, nil
}

// mockSettings keys values by "<hotel>/<key>"; system scope uses an empty
// hotel segment.
type mockSettings struct {
	values map[string]string
}

func (m *mockSettings) Get(ctx context.Context, hotelID *string, key string) (string, bool, error) {
	scope := ""
	if hotelID != nil {
		scope = *hotelID
	}
	v, ok := m.values[scope+"/"+key]
	return v, ok, nil
}

func (m *mockSettings) GetBool(ctx context.Context, hotelID *string, key string, def bool) (bool, error) {
	v, ok, _ := m.Get(ctx, hotelID, key)
	if !ok {
		return def, nil
	}
	return v == "true", nil
}

type mockChat struct {
	sent   []string
	to     []int64
	silent []bool
}

func (m *mockChat) SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error) {
	m.sent = append(m.sent, text)
	m.to = append(m.to, chatID)
	m.silent = append(m.silent, silent)
	return "1", nil
}

type mockMail struct {
	sent []external.EmailMessage
}

func (m *mockMail) Send(ctx context.Context, msg external.EmailMessage) (string, error) {
	m.sent = append(m.sent, msg)
	return "mail_1", nil
}

func newTestAggregator(health *mockHealth, bindings []*types.ChatBinding, inboxes []*types.DepartmentInbox, settings map[string]string) (*Aggregator, *mockChat, *mockMail) {
	chat := &mockChat{}
	mail := &mockMail{}
	a := NewAggregator(AggregatorConfig{
		Health:    health,
		Bindings:  &mockBindings{bindings: bindings},
		Inboxes:   &mockInboxes{inboxes: inboxes},
		Settings:  &mockSettings{values: settings},
		Chat:      chat,
		Mail:      mail,
		Locations: utcResolver{},
		Clock:     &mockClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		Logger:    &mockLogger{},
	})
	return a, chat, mail
}

func TestRun_ChatSummaryDefaultTemplate(t *testing.T) {
	health := &mockHealth{summary: &types.HealthSummary{Good: 6, Warning: 3, Expired: 1}}
	bindings := []*types.ChatBinding{{ID: "bind_1", ChatID: -100, HotelID: "hotel_1", Active: true}}

	a, chat, _ := newTestAggregator(health, bindings, nil, nil)

	result, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TelegramSent != 1 {
		t.Fatalf("expected 1 chat summary, got %d", result.TelegramSent)
	}
	if got := chat.sent[0]; got != "✅6 ⚠️3 🔴1" {
		t.Errorf("summary = %q, want %q", got, "✅6 ⚠️3 🔴1")
	}
}

func TestRun_CustomTemplate(t *testing.T) {
	health := &mockHealth{summary: &types.HealthSummary{Good: 6, Warning: 3, Expired: 1}}
	bindings := []*types.ChatBinding{{ID: "bind_1", ChatID: -100, HotelID: "hotel_1", Active: true}}
	settings := map[string]string{
		"hotel_1/notify.templates": `{"dailyReport":"Good: {good}, Warning: {warning}, Expired: {expired}"}`,
	}

	a, chat, _ := newTestAggregator(health, bindings, nil, settings)

	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := chat.sent[0]; got != "Good: 6, Warning: 3, Expired: 1" {
		t.Errorf("summary = %q", got)
	}
}

func TestRun_SilentBindingAndChannelGate(t *testing.T) {
	health := &mockHealth{summary: &types.HealthSummary{Good: 1}}
	bindings := []*types.ChatBinding{
		{ID: "bind_1", ChatID: -100, HotelID: "hotel_1", Active: true, Silent: true},
		{ID: "bind_2", ChatID: -200, HotelID: "hotel_2", Active: true},
	}
	settings := map[string]string{
		"hotel_2/notify.channels.telegram": "false",
	}

	a, chat, _ := newTestAggregator(health, bindings, nil, settings)

	result, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TelegramSent != 1 {
		t.Fatalf("expected 1 summary after channel gate, got %d", result.TelegramSent)
	}
	if chat.to[0] != -100 {
		t.Errorf("expected push to -100, got %d", chat.to[0])
	}
	if !chat.silent[0] {
		t.Error("expected silent push for silent binding")
	}
}

func TestRun_DepartmentEmails(t *testing.T) {
	health := &mockHealth{
		summary: &types.HealthSummary{},
		stats:   &types.DepartmentStats{TotalBatches: 12, ExpiringCount: 3, ExpiredCount: 1, CollectionsToday: 2},
	}
	inboxes := []*types.DepartmentInbox{
		{DepartmentID: "dept_1", HotelID: "hotel_1", Name: "Kitchen", Email: "kitchen@x.io"},
	}

	a, _, mail := newTestAggregator(health, nil, inboxes, nil)

	result, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EmailSent != 1 {
		t.Fatalf("expected 1 email, got %d", result.EmailSent)
	}

	msg := mail.sent[0]
	if msg.To != "kitchen@x.io" {
		t.Errorf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Kitchen") {
		t.Errorf("subject = %q, want department name", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "Total batches: 12") {
		t.Errorf("body = %q, want batch count", msg.TextBody)
	}
	if !strings.Contains(msg.TextBody, "Collections today: 2") {
		t.Errorf("body = %q, want collections count", msg.TextBody)
	}
}

func TestRun_EmailChannelDisabledGlobally(t *testing.T) {
	health := &mockHealth{summary: &types.HealthSummary{}, stats: &types.DepartmentStats{}}
	inboxes := []*types.DepartmentInbox{
		{DepartmentID: "dept_1", HotelID: "hotel_1", Name: "Kitchen", Email: "kitchen@x.io"},
	}
	settings := map[string]string{
		"/notify.channels.email": "false",
	}

	a, _, mail := newTestAggregator(health, nil, inboxes, settings)

	result, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EmailSent != 0 || len(mail.sent) != 0 {
		t.Errorf("expected no emails, got %d", len(mail.sent))
	}
}
