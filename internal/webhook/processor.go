package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/commands"
	"github.com/arkai-assistant/backend/internal/files"
	"github.com/arkai-assistant/backend/internal/line"
	"github.com/arkai-assistant/backend/internal/models"
)

const (
	// DedupTTL is how long a webhookEventId stays claimed.
	DedupTTL = 24 * time.Hour
	// EventTimeout bounds the processing of one event.
	EventTimeout = 30 * time.Second

	dedupPrefix = "line:event:"
)

// Reply texts for non-command events.
const (
	MsgWelcome         = "สวัสดีครับ 👋 ผม Arkai ผู้ช่วยจัดการงานของทีม\nพิมพ์ /help เพื่อดูคำสั่งทั้งหมด"
	MsgStorageDisabled = "❌ ระบบเก็บไฟล์ยังไม่เปิดใช้งาน กรุณาติดต่อแอดมิน"
	MsgFileTooLarge    = "❌ ไฟล์ใหญ่เกินไป (สูงสุด %dMB)"
	MsgFileSaveFailed  = "❌ เก็บไฟล์ไม่สำเร็จ กรุณาลองใหม่อีกครั้ง"
)

// OrgResolver maps a conversation to its organization. It never fails.
type OrgResolver interface {
	Resolve(ctx context.Context, externalID string, isGroup bool) *models.Organization
}

// MessageSaver persists chat lines.
type MessageSaver interface {
	Save(ctx context.Context, m *models.Message) error
}

// Dispatcher turns text into reply text.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string, org *models.Organization, src commands.Source) (string, bool)
}

// Messenger is the chat platform as seen by the pipeline.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Content(ctx context.Context, messageID string, maxBytes int64) (*line.Content, error)
}

// FileSaver stores media attachments.
type FileSaver interface {
	Enabled() bool
	MaxFileBytes() int64
	Save(ctx context.Context, org *models.Organization, up files.Upload) (*models.StoredFile, string, error)
}

// Deduper claims a key once per ttl.
type Deduper interface {
	SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ProcessorConfig wires the pipeline collaborators. Files and Dedup may be nil.
type ProcessorConfig struct {
	Resolver  OrgResolver
	Messages  MessageSaver
	Router    Dispatcher
	Messenger Messenger
	Files     FileSaver
	Dedup     Deduper
	BotUserID string
	Logger    *zap.Logger
}

// Processor runs signature-verified webhook bodies through the event pipeline.
type Processor struct {
	resolver  OrgResolver
	messages  MessageSaver
	router    Dispatcher
	messenger Messenger
	files     FileSaver
	dedup     Deduper
	botUserID string
	logger    *zap.Logger
}

// NewProcessor creates an event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		resolver:  cfg.Resolver,
		messages:  cfg.Messages,
		router:    cfg.Router,
		messenger: cfg.Messenger,
		files:     cfg.Files,
		dedup:     cfg.Dedup,
		botUserID: cfg.BotUserID,
		logger:    logger,
	}
}

// Process handles every event of one delivery. Only an undecodable envelope is an error;
// a failing event is logged and does not affect its siblings.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	payload, err := line.ParsePayload(body)
	if err != nil {
		return err
	}
	for i, raw := range payload.Events {
		ev, err := line.ParseEvent(raw)
		if err != nil {
			p.logger.Warn("skipping malformed event", zap.Int("index", i), zap.Error(err))
			continue
		}
		p.handle(ctx, ev)
	}
	return nil
}

func (p *Processor) handle(ctx context.Context, ev *line.Event) {
	log := p.logger.With(
		zap.String("event_type", ev.Type),
		zap.String("event_id", ev.WebhookEventID),
		zap.String("conversation", ev.Source.ConversationID()),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", zap.Any("panic", r))
		}
	}()
	if !p.claim(ctx, ev, log) {
		log.Debug("duplicate delivery dropped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, EventTimeout)
	defer cancel()

	var err error
	switch ev.Kind {
	case line.KindText:
		err = p.handleText(ctx, ev)
	case line.KindMedia:
		err = p.handleMedia(ctx, ev)
	case line.KindFollow, line.KindJoin:
		err = p.reply(ctx, ev, MsgWelcome)
	case line.KindUnfollow, line.KindLeave:
		log.Info("bot removed from conversation")
	default:
		log.Debug("event ignored")
	}
	if err != nil {
		log.Error("event processing failed", zap.Error(err))
	}
}

// claim reports whether this delivery is the first for its webhookEventId. Redis errors fail open.
func (p *Processor) claim(ctx context.Context, ev *line.Event, log *zap.Logger) bool {
	if p.dedup == nil || ev.WebhookEventID == "" {
		return true
	}
	ok, err := p.dedup.SetOnce(ctx, dedupPrefix+ev.WebhookEventID, DedupTTL)
	if err != nil {
		log.Warn("event dedup unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (p *Processor) handleText(ctx context.Context, ev *line.Event) error {
	src := ev.Source
	conv := src.ConversationID()
	if conv == "" {
		return nil
	}
	org := p.resolver.Resolve(ctx, conv, src.IsGroup())

	if err := p.messages.Save(ctx, &models.Message{OrgID: conv, Sender: src.UserID, Text: ev.Message.Text}); err != nil {
		p.logger.Warn("save message failed", zap.String("conversation", conv), zap.Error(err))
	}

	reply, ok := p.router.Dispatch(ctx, ev.TextWithoutBotMention(p.botUserID), org, p.source(ev))
	if !ok {
		return nil
	}
	return p.reply(ctx, ev, reply)
}

func (p *Processor) source(ev *line.Event) commands.Source {
	src := commands.Source{
		ConversationID: ev.Source.ConversationID(),
		UserID:         ev.Source.UserID,
		IsGroup:        ev.Source.IsGroup(),
		MentionsBot:    ev.MentionsBot(p.botUserID),
	}
	for _, m := range ev.Mentions() {
		if p.botUserID != "" && m.UserID == p.botUserID {
			continue
		}
		src.Mentions = append(src.Mentions, commands.Mention{UserID: m.UserID, Text: ev.MentionText(m)})
	}
	return src
}

func (p *Processor) handleMedia(ctx context.Context, ev *line.Event) error {
	conv := ev.Source.ConversationID()
	if conv == "" {
		return nil
	}
	if p.files == nil || !p.files.Enabled() {
		// groups share media constantly; only answer individual chats
		if ev.Source.IsGroup() {
			return nil
		}
		return p.reply(ctx, ev, MsgStorageDisabled)
	}
	org := p.resolver.Resolve(ctx, conv, ev.Source.IsGroup())
	maxBytes := p.files.MaxFileBytes()

	content, err := p.messenger.Content(ctx, ev.Message.ID, maxBytes)
	if errors.Is(err, line.ErrContentTooLarge) {
		return p.reply(ctx, ev, fmt.Sprintf(MsgFileTooLarge, maxBytes/(1024*1024)))
	}
	if err != nil {
		return errors.Join(fmt.Errorf("download content %s: %w", ev.Message.ID, err), p.reply(ctx, ev, MsgFileSaveFailed))
	}

	f, link, err := p.files.Save(ctx, org, files.Upload{
		Filename:    ev.Message.FileName,
		ContentType: content.ContentType,
		MediaType:   ev.Message.Type,
		Data:        content.Data,
	})
	var quota *files.QuotaError
	switch {
	case errors.As(err, &quota):
		return p.reply(ctx, ev, quota.Message)
	case errors.Is(err, files.ErrTooLarge):
		return p.reply(ctx, ev, fmt.Sprintf(MsgFileTooLarge, maxBytes/(1024*1024)))
	case errors.Is(err, files.ErrStorageDisabled):
		return p.reply(ctx, ev, MsgStorageDisabled)
	case err != nil:
		return errors.Join(err, p.reply(ctx, ev, MsgFileSaveFailed))
	}
	return p.reply(ctx, ev, files.SavedReply(f, link))
}

func (p *Processor) reply(ctx context.Context, ev *line.Event, text string) error {
	if ev.ReplyToken == "" || text == "" {
		return nil
	}
	if err := p.messenger.Reply(ctx, ev.ReplyToken, text); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}
