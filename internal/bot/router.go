// Package bot handles the chat-bot side of the engine: parsing the /link,
// /unlink, /status, and /help commands, maintaining bindings, and consuming
// updates via webhook or long polling.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// BindingStore persists chat bindings.
type BindingStore interface {
	Upsert(ctx context.Context, b *types.ChatBinding) error
	GetByChatID(ctx context.Context, chatID int64) (*types.ChatBinding, error)
	Deactivate(ctx context.Context, chatID int64) error
}

// Directory resolves the human-facing codes used in /link arguments.
type Directory interface {
	ResolveHotelCode(ctx context.Context, code string) (string, error)
	ResolveDepartmentCode(ctx context.Context, hotelID, code string) (string, error)
}

// Replier sends the router's responses back to the originating chat.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error)
}

// Router dispatches inbound updates to command handlers.
type Router struct {
	bindings BindingStore
	dir      Directory
	replier  Replier
	logger   types.Logger
}

// NewRouter creates a Router with the given dependencies.
func NewRouter(bindings BindingStore, dir Directory, replier Replier, logger types.Logger) *Router {
	return &Router{bindings: bindings, dir: dir, replier: replier, logger: logger}
}

const helpText = `<b>Inventory notification bot</b>

/link hotel:&lt;code&gt; [department:&lt;code&gt;] — bind this chat to a hotel or one of its departments
/unlink — remove this chat's binding
/status — show this chat's binding
/help — this message`

// HandleUpdate routes one inbound update. Unknown commands and plain chatter
// are ignored. Errors are replied to the chat and logged, never returned:
// the update stream must keep moving.
func (r *Router) HandleUpdate(ctx context.Context, u *external.Update) {
	if u.MyChatMember != nil {
		r.handleMembership(ctx, u.MyChatMember)
		return
	}
	if u.Message == nil {
		return
	}

	cmd, args := parseCommand(u.Message.Text)
	if cmd == "" {
		return
	}

	chatID := u.Message.Chat.ID
	var reply string
	var err error

	switch cmd {
	case "/link":
		reply, err = r.link(ctx, chatID, args)
	case "/unlink":
		reply, err = r.unlink(ctx, chatID)
	case "/status":
		reply, err = r.status(ctx, chatID)
	case "/help", "/start":
		reply = helpText
	default:
		return
	}

	if err != nil {
		r.logger.Warn("command failed", "command", cmd, "chat_id", chatID, "error", err.Error())
		reply = commandErrorText(err)
	}
	if _, err := r.replier.SendMessage(ctx, chatID, reply, false); err != nil {
		r.logger.Error("reply failed", "chat_id", chatID, "error", err.Error())
	}
}

// handleMembership deactivates the binding when the bot is removed from a
// chat, so pushes stop without an explicit /unlink.
func (r *Router) handleMembership(ctx context.Context, m *external.MemberUpdated) {
	status := m.NewChatMember.Status
	if status != "left" && status != "kicked" {
		return
	}
	if err := r.bindings.Deactivate(ctx, m.Chat.ID); err != nil && !types.IsCode(err, types.ErrCodeNotFoundBinding) {
		r.logger.Error("binding deactivation failed", "chat_id", m.Chat.ID, "error", err.Error())
		return
	}
	r.logger.Info("binding deactivated, bot removed from chat", "chat_id", m.Chat.ID)
}

func (r *Router) link(ctx context.Context, chatID int64, args map[string]string) (string, error) {
	hotelCode, ok := args["hotel"]
	if !ok || hotelCode == "" {
		return "", types.NewAppError(types.ErrCodeValidationLinkTarget,
			"usage: /link hotel:<code> [department:<code>]", nil)
	}

	hotelID, err := r.dir.ResolveHotelCode(ctx, hotelCode)
	if err != nil {
		return "", err
	}

	var departmentID *string
	if deptCode, ok := args["department"]; ok && deptCode != "" {
		id, err := r.dir.ResolveDepartmentCode(ctx, hotelID, deptCode)
		if err != nil {
			return "", err
		}
		departmentID = &id
	}

	b := &types.ChatBinding{
		ID:           "bind_" + uuid.NewString(),
		ChatID:       chatID,
		HotelID:      hotelID,
		DepartmentID: departmentID,
		Active:       true,
	}
	if err := r.bindings.Upsert(ctx, b); err != nil {
		return "", err
	}

	scope := fmt.Sprintf("hotel <b>%s</b>", hotelCode)
	if departmentID != nil {
		scope += fmt.Sprintf(", department <b>%s</b>", args["department"])
	}
	return "✅ Chat linked to " + scope + ". Expiry alerts and daily reports will arrive here.", nil
}

func (r *Router) unlink(ctx context.Context, chatID int64) (string, error) {
	if err := r.bindings.Deactivate(ctx, chatID); err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundBinding) {
			return "This chat has no binding.", nil
		}
		return "", err
	}
	return "Chat unlinked. No further alerts will arrive here.", nil
}

func (r *Router) status(ctx context.Context, chatID int64) (string, error) {
	b, err := r.bindings.GetByChatID(ctx, chatID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundBinding) {
			return "This chat has no binding. Use /link hotel:<code> to create one.", nil
		}
		return "", err
	}
	if !b.Active {
		return "This chat's binding is inactive. Use /link hotel:<code> to re-activate it.", nil
	}

	text := fmt.Sprintf("Linked to hotel <code>%s</code>", b.HotelID)
	if b.DepartmentID != nil {
		text += fmt.Sprintf(", department <code>%s</code>", *b.DepartmentID)
	}
	if b.Silent {
		text += " (silent)"
	}
	return text, nil
}

// parseCommand splits a message into its leading /command and key:value
// arguments. A @botname suffix on the command is stripped so commands work
// in group chats.
func parseCommand(text string) (string, map[string]string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	cmd := fields[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	args := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		args[strings.ToLower(k)] = v
	}
	return strings.ToLower(cmd), args
}

func commandErrorText(err error) string {
	if appErr, ok := err.(*types.AppError); ok {
		switch appErr.Code {
		case types.ErrCodeValidationLinkTarget:
			return "⚠️ " + appErr.Message
		case types.ErrCodeNotFoundHotel:
			return "⚠️ Unknown hotel code."
		case types.ErrCodeNotFoundDepartment:
			return "⚠️ Unknown department code for that hotel."
		}
	}
	return "⚠️ Something went wrong, try again later."
}
