// Package reports builds and delivers the daily digests: a one-line health
// summary pushed to every bound chat and a statistics email sent to each
// department's report inbox.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/db"
	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// defaultSummaryTemplate is used when a hotel has no configured template.
// Placeholders {good}, {warning}, and {expired} are substituted with counts.
const defaultSummaryTemplate = "✅{good} ⚠️{warning} 🔴{expired}"

// summaryTemplateKey names the daily-report template inside the hotel's
// configured template map.
const summaryTemplateKey = "dailyReport"

// reportWarningDays is the fixed look-ahead used when counting "warning"
// batches for the digests.
const reportWarningDays = 7

// HealthSource supplies the inventory snapshots the digests are built from.
type HealthSource interface {
	HealthSummary(ctx context.Context, hotelID string, departmentID *string, dayStart, warningCutoff time.Time) (*types.HealthSummary, error)
	DepartmentStats(ctx context.Context, departmentID string, dayStart, warningCutoff time.Time) (*types.DepartmentStats, error)
}

// BindingSource lists the chats the summary is pushed to.
type BindingSource interface {
	ListActive(ctx context.Context, hotelID string, departmentID *string) ([]*types.ChatBinding, error)
}

// InboxSource lists the department report inboxes.
type InboxSource interface {
	ListDepartmentInboxes(ctx context.Context) ([]*types.DepartmentInbox, error)
}

// SettingsSource reads per-hotel report configuration.
type SettingsSource interface {
	Get(ctx context.Context, hotelID *string, key string) (string, bool, error)
	GetBool(ctx context.Context, hotelID *string, key string, def bool) (bool, error)
}

// ChatGateway pushes a summary to a bound chat.
type ChatGateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error)
}

// MailGateway sends a department statistics email.
type MailGateway interface {
	Send(ctx context.Context, msg external.EmailMessage) (string, error)
}

// LocationResolver supplies the timezone day boundaries are computed in.
type LocationResolver interface {
	Location(ctx context.Context) *time.Location
}

// Aggregator assembles and delivers the daily reports.
type Aggregator struct {
	health   HealthSource
	bindings BindingSource
	inboxes  InboxSource
	settings SettingsSource
	chat     ChatGateway
	mail     MailGateway
	locs     LocationResolver
	clock    types.Clock
	logger   types.Logger
}

// AggregatorConfig holds the dependencies needed to create an Aggregator.
type AggregatorConfig struct {
	Health    HealthSource
	Bindings  BindingSource
	Inboxes   InboxSource
	Settings  SettingsSource
	Chat      ChatGateway
	Mail      MailGateway
	Locations LocationResolver
	Clock     types.Clock
	Logger    types.Logger
}

// NewAggregator creates an Aggregator with the given dependencies.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	return &Aggregator{
		health:   cfg.Health,
		bindings: cfg.Bindings,
		inboxes:  cfg.Inboxes,
		settings: cfg.Settings,
		chat:     cfg.Chat,
		mail:     cfg.Mail,
		locs:     cfg.Locations,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Run delivers one daily report cycle: a summary to every bound chat with the
// telegram report channel enabled, then a statistics email to every
// department inbox when the email channel is enabled. A failed delivery is
// logged and never blocks the others.
func (a *Aggregator) Run(ctx context.Context) (types.ReportResult, error) {
	var result types.ReportResult

	loc := a.locs.Location(ctx)
	now := a.clock.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	warningCutoff := dayStart.AddDate(0, 0, reportWarningDays)

	sent, err := a.sendChatSummaries(ctx, dayStart, warningCutoff)
	if err != nil {
		return result, err
	}
	result.TelegramSent = sent

	result.EmailSent = a.sendDepartmentEmails(ctx, dayStart, warningCutoff)

	a.logger.Info("daily report cycle complete",
		"telegram_sent", result.TelegramSent,
		"email_sent", result.EmailSent,
	)
	return result, nil
}

func (a *Aggregator) sendChatSummaries(ctx context.Context, dayStart, warningCutoff time.Time) (int, error) {
	bindings, err := a.bindings.ListActive(ctx, "", nil)
	if err != nil {
		return 0, fmt.Errorf("daily report: list bindings: %w", err)
	}

	sent := 0
	for _, b := range bindings {
		hotelID := b.HotelID
		enabled, err := a.settings.GetBool(ctx, &hotelID, db.SettingChannelTelegram, true)
		if err != nil {
			a.logger.Error("report channel setting lookup failed", "hotel_id", hotelID, "error", err.Error())
			continue
		}
		if !enabled {
			continue
		}

		summary, err := a.health.HealthSummary(ctx, b.HotelID, b.DepartmentID, dayStart, warningCutoff)
		if err != nil {
			a.logger.Error("health summary failed", "hotel_id", hotelID, "error", err.Error())
			continue
		}

		text := a.renderSummary(ctx, &hotelID, summary)
		if _, err := a.chat.SendMessage(ctx, b.ChatID, text, b.Silent); err != nil {
			if types.IsCode(err, types.ErrCodeGatewayUnconfigured) {
				a.logger.Warn("chat gateway not configured, skipping chat summaries")
				return sent, nil
			}
			a.logger.Error("summary push failed", "chat_id", b.ChatID, "error", err.Error())
			continue
		}
		sent++
	}
	return sent, nil
}

func (a *Aggregator) sendDepartmentEmails(ctx context.Context, dayStart, warningCutoff time.Time) int {
	enabled, err := a.settings.GetBool(ctx, nil, db.SettingChannelEmail, true)
	if err != nil {
		a.logger.Error("email channel setting lookup failed", "error", err.Error())
		return 0
	}
	if !enabled {
		return 0
	}

	inboxes, err := a.inboxes.ListDepartmentInboxes(ctx)
	if err != nil {
		a.logger.Error("department inbox listing failed", "error", err.Error())
		return 0
	}

	sent := 0
	for _, inbox := range inboxes {
		stats, err := a.health.DepartmentStats(ctx, inbox.DepartmentID, dayStart, warningCutoff)
		if err != nil {
			a.logger.Error("department stats failed", "department_id", inbox.DepartmentID, "error", err.Error())
			continue
		}

		msg := external.EmailMessage{
			To:       inbox.Email,
			Subject:  fmt.Sprintf("Daily inventory report: %s", inbox.Name),
			HTMLBody: renderStatsHTML(inbox.Name, stats, dayStart),
			TextBody: renderStatsText(inbox.Name, stats, dayStart),
		}
		if _, err := a.mail.Send(ctx, msg); err != nil {
			if types.IsCode(err, types.ErrCodeGatewayUnconfigured) {
				a.logger.Warn("mail gateway not configured, skipping report emails")
				return sent
			}
			a.logger.Error("report email failed", "to", inbox.Email, "error", err.Error())
			continue
		}
		sent++
	}
	return sent
}

// renderSummary applies the hotel's summary template, falling back to the
// default. Template maps are stored as JSON under the notify.templates key.
func (a *Aggregator) renderSummary(ctx context.Context, hotelID *string, s *types.HealthSummary) string {
	tmpl := defaultSummaryTemplate
	if raw, ok, err := a.settings.Get(ctx, hotelID, db.SettingTemplates); err == nil && ok {
		var templates map[string]string
		if json.Unmarshal([]byte(raw), &templates) == nil {
			if custom, ok := templates[summaryTemplateKey]; ok && custom != "" {
				tmpl = custom
			}
		}
	}

	return strings.NewReplacer(
		"{good}", fmt.Sprintf("%d", s.Good),
		"{warning}", fmt.Sprintf("%d", s.Warning),
		"{expired}", fmt.Sprintf("%d", s.Expired),
	).Replace(tmpl)
}

func renderStatsHTML(name string, s *types.DepartmentStats, day time.Time) string {
	return fmt.Sprintf(
		"<html><body><h2>%s — %s</h2><ul>"+
			"<li>Total batches: %d</li>"+
			"<li>Expiring within %d days: %d</li>"+
			"<li>Expired: %d</li>"+
			"<li>Collections today: %d</li>"+
			"</ul></body></html>",
		name, day.Format("2 Jan 2006"),
		s.TotalBatches, reportWarningDays, s.ExpiringCount, s.ExpiredCount, s.CollectionsToday,
	)
}

func renderStatsText(name string, s *types.DepartmentStats, day time.Time) string {
	return fmt.Sprintf(
		"%s — %s\nTotal batches: %d\nExpiring within %d days: %d\nExpired: %d\nCollections today: %d\n",
		name, day.Format("2 Jan 2006"),
		s.TotalBatches, reportWarningDays, s.ExpiringCount, s.ExpiredCount, s.CollectionsToday,
	)
}
