package types

import (
	"testing"
	"time"
)

func TestBatch_DaysUntilExpiry(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name   string
		now    time.Time
		expiry time.Time
		want   int
	}{
		{
			name:   "five days out",
			now:    time.Date(2026, 3, 10, 9, 0, 0, 0, loc),
			expiry: time.Date(2026, 3, 15, 0, 0, 0, 0, loc),
			want:   5,
		},
		{
			name: "tomorrow late evening still counts as one day",
			// 23:50 now vs 00:10 expiry next day is still "tomorrow".
			now:    time.Date(2026, 3, 10, 23, 50, 0, 0, loc),
			expiry: time.Date(2026, 3, 11, 0, 10, 0, 0, loc),
			want:   1,
		},
		{
			name:   "expires today",
			now:    time.Date(2026, 3, 10, 8, 0, 0, 0, loc),
			expiry: time.Date(2026, 3, 10, 22, 0, 0, 0, loc),
			want:   0,
		},
		{
			name:   "already expired",
			now:    time.Date(2026, 3, 10, 8, 0, 0, 0, loc),
			expiry: time.Date(2026, 3, 7, 0, 0, 0, 0, loc),
			want:   -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Batch{ExpiryDate: tt.expiry}
			got := b.DaysUntilExpiry(tt.now, loc)
			if got != tt.want {
				t.Errorf("DaysUntilExpiry() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNotificationRule_Validate(t *testing.T) {
	rule := &NotificationRule{
		Type:         RuleExpiry,
		WarningDays:  7,
		CriticalDays: 3,
		Channels:     ChannelSet{ChannelApp, ChannelEmail},
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rule.CriticalDays = 10
	err := rule.Validate()
	if err == nil {
		t.Fatal("expected error when critical_days > warning_days")
	}
	if !IsCode(err, ErrCodeValidationRule) {
		t.Errorf("expected validation_invalid_rule code, got %v", err)
	}

	rule.CriticalDays = 3
	rule.Channels = nil
	if err := rule.Validate(); err == nil {
		t.Fatal("expected error for empty channel set")
	}
}

func TestDeliveryStatus_Terminal(t *testing.T) {
	for _, s := range []DeliveryStatus{StatusPending, StatusSending, StatusRetry} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []DeliveryStatus{StatusDelivered, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestBatchStatus_Resolved(t *testing.T) {
	if BatchActive.Resolved() {
		t.Error("active batch must not be resolved")
	}
	if !BatchCollected.Resolved() || !BatchWrittenOff.Resolved() {
		t.Error("collected and written_off batches must be resolved")
	}
}
