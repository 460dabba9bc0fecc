package delivery

import (
	"context"
	"fmt"

	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// Channel delivers one notification over a single transport. Send returns
// the provider message id when the transport assigns one.
type Channel interface {
	Type() types.Channel
	Send(ctx context.Context, n *types.Notification, rcpt *types.Recipient) (string, error)
}

// AppChannel records in-app notifications. The persisted row is itself the
// delivery; there is no external gateway to call.
type AppChannel struct{}

func (AppChannel) Type() types.Channel { return types.ChannelApp }

func (AppChannel) Send(ctx context.Context, n *types.Notification, rcpt *types.Recipient) (string, error) {
	return "", nil
}

// ChatSender is the slice of the chat gateway the chat channel needs.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error)
}

// ChatChannel delivers over the chat bot to a recipient's private chat.
type ChatChannel struct {
	gateway ChatSender
}

// NewChatChannel creates a chat channel over the given gateway.
func NewChatChannel(gateway ChatSender) *ChatChannel {
	return &ChatChannel{gateway: gateway}
}

func (c *ChatChannel) Type() types.Channel { return types.ChannelChat }

func (c *ChatChannel) Send(ctx context.Context, n *types.Notification, rcpt *types.Recipient) (string, error) {
	if rcpt == nil || rcpt.ChatID == 0 {
		return "", types.NewAppError(types.ErrCodeNoChannelAddress,
			"recipient has no linked chat", nil)
	}
	text := fmt.Sprintf("<b>%s</b>\n%s", n.Title, n.Message)
	silent := n.Priority <= types.PriorityLow
	return c.gateway.SendMessage(ctx, rcpt.ChatID, text, silent)
}

// MailSender is the slice of the mail gateway the email channel needs.
type MailSender interface {
	Send(ctx context.Context, msg external.EmailMessage) (string, error)
}

// EmailChannel delivers over the transactional mail provider.
type EmailChannel struct {
	gateway MailSender
}

// NewEmailChannel creates an email channel over the given gateway.
func NewEmailChannel(gateway MailSender) *EmailChannel {
	return &EmailChannel{gateway: gateway}
}

func (c *EmailChannel) Type() types.Channel { return types.ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, n *types.Notification, rcpt *types.Recipient) (string, error) {
	if rcpt == nil || rcpt.Email == "" {
		return "", types.NewAppError(types.ErrCodeNoChannelAddress,
			"recipient has no email address", nil)
	}
	if rcpt.EmailBlocked {
		return "", types.NewAppError(types.ErrCodeNoChannelAddress,
			"recipient email is blocked", nil)
	}
	return c.gateway.Send(ctx, external.EmailMessage{
		To:       rcpt.Email,
		Subject:  n.Title,
		HTMLBody: renderEmailHTML(n),
		TextBody: n.Message,
	})
}

func renderEmailHTML(n *types.Notification) string {
	return fmt.Sprintf(
		"<html><body><h2>%s</h2><p>%s</p><p style=\"color:#888;font-size:12px\">Priority: %s</p></body></html>",
		n.Title, n.Message, n.Priority.String(),
	)
}

// Dispatcher routes a notification to the channel matching its Channel field.
type Dispatcher struct {
	channels map[types.Channel]Channel
}

// NewDispatcher builds a dispatcher over the given channels. Later channels
// with a duplicate type override earlier ones.
func NewDispatcher(channels ...Channel) *Dispatcher {
	m := make(map[types.Channel]Channel, len(channels))
	for _, ch := range channels {
		m[ch.Type()] = ch
	}
	return &Dispatcher{channels: m}
}

// Dispatch sends the notification over its channel and returns the provider
// message id. An unknown channel is a permanent validation failure.
func (d *Dispatcher) Dispatch(ctx context.Context, n *types.Notification, rcpt *types.Recipient) (string, error) {
	ch, ok := d.channels[n.Channel]
	if !ok {
		return "", types.NewAppError(types.ErrCodeValidationChannelSet,
			fmt.Sprintf("no dispatcher for channel %q", n.Channel), nil)
	}
	return ch.Send(ctx, n, rcpt)
}
