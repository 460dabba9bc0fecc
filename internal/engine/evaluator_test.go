package engine

import (
	"context"
	"testing"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// mockClock implements types.Clock for deterministic testing.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

// mockLogger implements types.Logger as a no-op for tests.
type mockLogger struct{}

func (l *mockLogger) Info(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) {}
func (l *mockLogger) Warn(msg string, args ...any)  {}
func (l *mockLogger) With(args ...any) types.Logger { return l }

// utcResolver resolves every evaluation to UTC.
type utcResolver struct{}

func (utcResolver) Location(ctx context.Context) *time.Location { return time.UTC }

type mockRuleSource struct {
	rules []*types.NotificationRule
}

func (m *mockRuleSource) ListEnabled(ctx context.Context) ([]*types.NotificationRule, error) {
	return m.rules, nil
}

type mockBatchSource struct {
	batches []*types.Batch
}

func (m *mockBatchSource) ListExpiringBatches(ctx context.Context, cutoff time.Time, hotelID, departmentID *string) ([]*types.Batch, error) {
	var out []*types.Batch
	for _, b := range m.batches {
		if !b.ExpiryDate.After(cutoff) {
			out = append(out, b)
		}
	}
	return out, nil
}

type mockRecipientSource struct {
	recipients []*types.Recipient
}

func (m *mockRecipientSource) ResolveForScope(ctx context.Context, roles types.RoleSet, hotelID string, departmentID *string) ([]*types.Recipient, error) {
	return m.recipients, nil
}

// memoryStore is an in-memory NotificationStore enforcing the fingerprint
// uniqueness the database's partial index provides in production.
type memoryStore struct {
	created []*types.Notification
	byFP    map[string]*types.Notification
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byFP: make(map[string]*types.Notification)}
}

func (m *memoryStore) CreateIfNotDuplicate(ctx context.Context, n *types.Notification) (bool, error) {
	if existing, ok := m.byFP[n.DedupFingerprint]; ok && existing.Status != types.StatusFailed {
		return false, nil
	}
	m.byFP[n.DedupFingerprint] = n
	m.created = append(m.created, n)
	return true, nil
}

func (m *memoryStore) ExistsActiveFingerprint(ctx context.Context, fingerprint string, since time.Time) (bool, error) {
	existing, ok := m.byFP[fingerprint]
	if !ok {
		return false, nil
	}
	return existing.Status != types.StatusFailed && existing.CreatedAt.After(since), nil
}

type mockBindingSource struct {
	bindings []*types.ChatBinding
}

func (m *mockBindingSource) ListActive(ctx context.Context, hotelID string, departmentID *string) ([]*types.ChatBinding, error) {
	return m.bindings, nil
}

type mockChatGateway struct {
	sent []string
	to   []int64
}

func (m *mockChatGateway) SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error) {
	m.sent = append(m.sent, text)
	m.to = append(m.to, chatID)
	return "1", nil
}

func newTestEvaluator(rules []*types.NotificationRule, batches []*types.Batch, recipients []*types.Recipient, bindings []*types.ChatBinding, now time.Time) (*Evaluator, *memoryStore, *mockChatGateway) {
	store := newMemoryStore()
	clock := &mockClock{now: now}
	chat := &mockChatGateway{}

	e := NewEvaluator(EvaluatorConfig{
		Rules:      &mockRuleSource{rules: rules},
		Batches:    &mockBatchSource{batches: batches},
		Recipients: &mockRecipientSource{recipients: recipients},
		Store:      store,
		Dedup:      NewDeduplicator(store, clock),
		Bindings:   &mockBindingSource{bindings: bindings},
		Chat:       chat,
		Locations:  utcResolver{},
		Clock:      clock,
		Logger:     &mockLogger{},
	})
	return e, store, chat
}

func expiryRule(warning, critical int, channels types.ChannelSet) *types.NotificationRule {
	return &types.NotificationRule{
		ID:             "rule_1",
		Type:           types.RuleExpiry,
		WarningDays:    warning,
		CriticalDays:   critical,
		Channels:       channels,
		RecipientRoles: types.RoleSet{"manager"},
		Enabled:        true,
	}
}

func batchExpiring(id string, daysFromNow int, now time.Time) *types.Batch {
	return &types.Batch{
		ID:          id,
		HotelID:     "hotel_1",
		ProductName: "Milk",
		Quantity:    4,
		Unit:        "l",
		ExpiryDate:  now.AddDate(0, 0, daysFromNow),
		Status:      types.BatchActive,
	}
}

func TestClassify_ThresholdTieBreaks(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		wantType  types.NotificationType
		wantPrio  types.Priority
		wantOK    bool
	}{
		{"expired today", 0, types.TypeExpired, types.PriorityUrgent, true},
		{"negative remaining", -2, types.TypeExpired, types.PriorityUrgent, true},
		{"exactly critical is critical", 3, types.TypeExpiryCritical, types.PriorityHigh, true},
		{"below critical", 1, types.TypeExpiryCritical, types.PriorityHigh, true},
		{"exactly warning is warning", 7, types.TypeExpiryWarning, types.PriorityNormal, true},
		{"between critical and warning", 5, types.TypeExpiryWarning, types.PriorityNormal, true},
		{"outside window", 8, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotPrio, ok := classify(tt.remaining, 7, 3)
			if ok != tt.wantOK {
				t.Fatalf("classify(%d) ok = %v, want %v", tt.remaining, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if gotType != tt.wantType {
				t.Errorf("classify(%d) type = %s, want %s", tt.remaining, gotType, tt.wantType)
			}
			if gotPrio != tt.wantPrio {
				t.Errorf("classify(%d) priority = %d, want %d", tt.remaining, gotPrio, tt.wantPrio)
			}
		})
	}
}

func TestEvaluate_WarningWindowScenario(t *testing.T) {
	// Rule {warningDays:7, criticalDays:3}, batch expiring in 5 days:
	// one expiry_warning notification of normal priority per eligible
	// (recipient, channel) pair.
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rule := expiryRule(7, 3, types.ChannelSet{types.ChannelApp, types.ChannelEmail})
	batch := batchExpiring("batch_1", 5, now)
	recipients := []*types.Recipient{
		{ID: "user_1", HotelID: "hotel_1", Role: "manager", Email: "a@x.io"},
		{ID: "user_2", HotelID: "hotel_1", Role: "manager", Email: "b@x.io"},
	}

	e, store, _ := newTestEvaluator(
		[]*types.NotificationRule{rule},
		[]*types.Batch{batch},
		recipients, nil, now,
	)

	created, err := e.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 4 {
		t.Fatalf("expected 4 notifications (2 recipients x 2 channels), got %d", created)
	}

	for _, n := range store.created {
		if n.Type != types.TypeExpiryWarning {
			t.Errorf("expected expiry_warning, got %s", n.Type)
		}
		if n.Priority != types.PriorityNormal {
			t.Errorf("expected normal priority, got %d", n.Priority)
		}
		if n.Status != types.StatusPending {
			t.Errorf("expected pending status, got %s", n.Status)
		}
	}
}

func TestEvaluate_DedupIdempotence(t *testing.T) {
	// Running evaluation twice within the same calendar day must not produce
	// two non-failed records with the same fingerprint.
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rule := expiryRule(7, 3, types.ChannelSet{types.ChannelApp})
	batch := batchExpiring("batch_1", 5, now)
	recipients := []*types.Recipient{{ID: "user_1", HotelID: "hotel_1", Role: "manager"}}

	e, store, _ := newTestEvaluator(
		[]*types.NotificationRule{rule},
		[]*types.Batch{batch},
		recipients, nil, now,
	)

	first, err := e.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != 1 {
		t.Errorf("first run: expected 1 created, got %d", first)
	}
	if second != 0 {
		t.Errorf("second run: expected 0 created, got %d", second)
	}
	if len(store.created) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(store.created))
	}
}

func TestEvaluate_ExpiredBatchIsUrgent(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rule := expiryRule(7, 3, types.ChannelSet{types.ChannelApp})
	batch := batchExpiring("batch_1", -1, now)
	recipients := []*types.Recipient{{ID: "user_1", HotelID: "hotel_1", Role: "manager"}}

	e, store, _ := newTestEvaluator(
		[]*types.NotificationRule{rule},
		[]*types.Batch{batch},
		recipients, nil, now,
	)

	if _, err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.created))
	}
	if store.created[0].Type != types.TypeExpired {
		t.Errorf("expected expired, got %s", store.created[0].Type)
	}
	if store.created[0].Priority != types.PriorityUrgent {
		t.Errorf("expected urgent priority, got %d", store.created[0].Priority)
	}
}

func TestEvaluate_ChatPushAggregatesAndSkipsDedup(t *testing.T) {
	// Chat-binding pushes aggregate all matching batches into one message
	// per binding and are sent on every run (not deduplicated).
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rule := expiryRule(7, 3, types.ChannelSet{types.ChannelChat})
	batches := []*types.Batch{
		batchExpiring("batch_1", 5, now),
		batchExpiring("batch_2", 2, now),
	}
	recipients := []*types.Recipient{{ID: "user_1", HotelID: "hotel_1", Role: "manager", ChatID: 99}}
	bindings := []*types.ChatBinding{{ID: "bind_1", ChatID: -100, HotelID: "hotel_1", Active: true}}

	e, _, chat := newTestEvaluator(
		[]*types.NotificationRule{rule},
		batches, recipients, bindings, now,
	)

	if _, err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("expected 1 aggregated push, got %d", len(chat.sent))
	}
	if chat.to[0] != -100 {
		t.Errorf("expected push to chat -100, got %d", chat.to[0])
	}

	// Second run must push again even though per-user records deduplicate.
	if _, err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chat.sent) != 2 {
		t.Errorf("expected second push, got %d total", len(chat.sent))
	}
}

func TestEvaluate_BindingTypeFilter(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rule := expiryRule(7, 3, types.ChannelSet{types.ChannelChat})
	batch := batchExpiring("batch_1", 5, now) // classifies as expiry_warning
	bindings := []*types.ChatBinding{{
		ID: "bind_1", ChatID: -100, HotelID: "hotel_1", Active: true,
		Types: types.TypeFilter{types.TypeExpired},
	}}

	e, _, chat := newTestEvaluator(
		[]*types.NotificationRule{rule},
		[]*types.Batch{batch},
		nil, bindings, now,
	)

	if _, err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chat.sent) != 0 {
		t.Errorf("expected no push for filtered type, got %d", len(chat.sent))
	}
}

func TestEffectiveRule_Precedence(t *testing.T) {
	hotel := "hotel_1"
	dept := "dept_1"
	system := &types.NotificationRule{ID: "sys"}
	hotelRule := &types.NotificationRule{ID: "hot", HotelID: &hotel}
	deptRule := &types.NotificationRule{ID: "dep", HotelID: &hotel, DepartmentID: &dept}
	rules := []*types.NotificationRule{system, hotelRule, deptRule}

	if got := effectiveRule(rules, "hotel_1", &dept); got != deptRule {
		t.Errorf("department rule should win, got %v", got.ID)
	}
	other := "dept_2"
	if got := effectiveRule(rules, "hotel_1", &other); got != hotelRule {
		t.Errorf("hotel rule should win for other department, got %v", got.ID)
	}
	if got := effectiveRule(rules, "hotel_2", nil); got != system {
		t.Errorf("system rule should win for other hotel, got %v", got.ID)
	}
}

func TestFingerprint_StablePerDay(t *testing.T) {
	day := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	later := time.Date(2026, 4, 1, 23, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 4, 2, 1, 0, 0, 0, time.UTC)

	a := Fingerprint("b1", "u1", types.ChannelEmail, day, time.UTC)
	b := Fingerprint("b1", "u1", types.ChannelEmail, later, time.UTC)
	c := Fingerprint("b1", "u1", types.ChannelEmail, nextDay, time.UTC)

	if a != b {
		t.Error("fingerprints within the same calendar day must match")
	}
	if a == c {
		t.Error("fingerprints across calendar days must differ")
	}
	if a == Fingerprint("b1", "u1", types.ChannelChat, day, time.UTC) {
		t.Error("fingerprints across channels must differ")
	}
}
