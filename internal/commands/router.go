package commands

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/subscription"
)

// Prefix starts every command.
const Prefix = "/"

// Chatter is the default conversational handler.
type Chatter interface {
	Chat(ctx context.Context, text string) (string, error)
}

// Ledger is the usage ledger as seen by commands.
type Ledger interface {
	Check(ctx context.Context, resource subscription.Resource, org *models.Organization, incoming int64) subscription.Decision
	Record(ctx context.Context, resource subscription.Resource, org *models.Organization, amount int64) error
	FeatureAllowed(org *models.Organization, feature subscription.Feature) subscription.Decision
}

// Router dispatches chat text to commands or to the AI chat fallback.
type Router struct {
	registry *Registry
	ledger   Ledger
	chat     Chatter
	logger   *zap.Logger
}

// NewRouter creates a router over an already validated registry.
func NewRouter(registry *Registry, ledger Ledger, chat Chatter, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{registry: registry, ledger: ledger, chat: chat, logger: logger}
}

// IsCommand reports whether text carries the command prefix.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), Prefix)
}

// Dispatch returns the reply for text. ok is false when the message must be dropped silently:
// in groups only prefixed commands or messages mentioning the bot are answered.
func (r *Router) Dispatch(ctx context.Context, text string, org *models.Organization, src Source) (reply string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	isCommand := IsCommand(text)
	if src.IsGroup && !isCommand && !src.MentionsBot {
		return "", false
	}
	if !isCommand {
		return r.defaultChat(ctx, text, org), true
	}

	token, args := splitCommand(strings.TrimPrefix(text, Prefix))
	cmd, args, found := r.registry.Lookup(token, args)
	if !found {
		r.logger.Debug("unknown command", zap.String("token", token))
		return MsgUnknownCommand, true
	}
	inv := Invocation{Command: cmd.Name, Args: args, Org: org, Source: src}
	return r.run(ctx, cmd, inv), true
}

func (r *Router) run(ctx context.Context, cmd *Command, inv Invocation) (reply string) {
	log := r.logger.With(zap.String("command", cmd.Name), zap.String("conversation", inv.Source.ConversationID))
	defer func() {
		if p := recover(); p != nil {
			log.Error("command panicked", zap.Any("panic", p))
			reply = MsgGenericError
		}
	}()
	out, err := cmd.Handler(ctx, inv)
	if err != nil {
		log.Error("command failed", zap.Error(err))
		return userMessage(err)
	}
	return out
}

// defaultChat answers free text through the assistant, gated by the daily AI quota.
// Quota is consumed only after the assistant produced a reply.
func (r *Router) defaultChat(ctx context.Context, text string, org *models.Organization) string {
	if d := r.ledger.Check(ctx, subscription.ResourceAIChat, org, 0); !d.Allowed {
		return d.Message
	}
	reply, err := r.chat.Chat(ctx, text)
	if err != nil {
		r.logger.Error("ai chat failed", zap.Error(err))
		return MsgAIUnavailable
	}
	if err := r.ledger.Record(ctx, subscription.ResourceAIChat, org, 1); err != nil {
		r.logger.Warn("ai chat usage not recorded", zap.String("org_id", org.ID.String()), zap.Error(err))
	}
	return reply
}

// splitCommand separates the first token from the rest of the text.
func splitCommand(s string) (token, args string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// Usage formats a "how to use" hint.
func Usage(format string, a ...any) string {
	return "กรุณาระบุรูปแบบ: " + fmt.Sprintf(format, a...)
}
