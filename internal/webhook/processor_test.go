package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkai-assistant/backend/internal/commands"
	"github.com/arkai-assistant/backend/internal/files"
	"github.com/arkai-assistant/backend/internal/line"
	"github.com/arkai-assistant/backend/internal/models"
)

type resolveCall struct {
	id      string
	isGroup bool
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []resolveCall
}

func (f *fakeResolver) Resolve(_ context.Context, externalID string, isGroup bool) *models.Organization {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, resolveCall{externalID, isGroup})
	return &models.Organization{Plan: models.PlanFree}
}

type fakeMessages struct {
	saved []models.Message
	err   error
}

func (f *fakeMessages) Save(_ context.Context, m *models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *m)
	return nil
}

type dispatchCall struct {
	text string
	src  commands.Source
}

type fakeRouter struct {
	calls []dispatchCall
	reply func(text string) (string, bool)
}

func (f *fakeRouter) Dispatch(_ context.Context, text string, _ *models.Organization, src commands.Source) (string, bool) {
	f.calls = append(f.calls, dispatchCall{text, src})
	if f.reply != nil {
		return f.reply(text)
	}
	return "echo: " + text, true
}

type fakeMessenger struct {
	replies    map[string]string
	content    *line.Content
	contentErr error
	replyErr   error
}

func (f *fakeMessenger) Reply(_ context.Context, token, text string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	if f.replies == nil {
		f.replies = map[string]string{}
	}
	f.replies[token] = text
	return nil
}

func (f *fakeMessenger) Content(context.Context, string, int64) (*line.Content, error) {
	return f.content, f.contentErr
}

type fakeFiles struct {
	enabled bool
	saved   []files.Upload
	err     error
}

func (f *fakeFiles) Enabled() bool       { return f.enabled }
func (f *fakeFiles) MaxFileBytes() int64 { return 20 * 1024 * 1024 }

func (f *fakeFiles) Save(_ context.Context, _ *models.Organization, up files.Upload) (*models.StoredFile, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.saved = append(f.saved, up)
	name := up.Filename
	if name == "" {
		name = "photo.jpg"
	}
	return &models.StoredFile{Filename: name, SizeBytes: int64(len(up.Data))}, "https://files.example/" + name, nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeDedup) SetOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type pipeline struct {
	resolver  *fakeResolver
	messages  *fakeMessages
	router    *fakeRouter
	messenger *fakeMessenger
	files     *fakeFiles
	dedup     *fakeDedup
	processor *Processor
}

func newPipeline() *pipeline {
	p := &pipeline{
		resolver:  &fakeResolver{},
		messages:  &fakeMessages{},
		router:    &fakeRouter{},
		messenger: &fakeMessenger{},
		files:     &fakeFiles{enabled: true},
		dedup:     &fakeDedup{},
	}
	p.processor = NewProcessor(ProcessorConfig{
		Resolver:  p.resolver,
		Messages:  p.messages,
		Router:    p.router,
		Messenger: p.messenger,
		Files:     p.files,
		Dedup:     p.dedup,
		BotUserID: "Ubot",
	})
	return p
}

func body(events ...string) []byte {
	out := `{"destination":"Ubot","events":[`
	for i, ev := range events {
		if i > 0 {
			out += ","
		}
		out += ev
	}
	return []byte(out + "]}")
}

func textEvent(id, token, source, text string) string {
	return fmt.Sprintf(`{"type":"message","webhookEventId":%q,"replyToken":%q,"source":%s,
		"message":{"id":"m-%s","type":"text","text":%q}}`, id, token, source, id, text)
}

const (
	userSrc  = `{"type":"user","userId":"U1"}`
	groupSrc = `{"type":"group","groupId":"C1","userId":"U1"}`
)

func TestProcessTextMessageInUserChat(t *testing.T) {
	p := newPipeline()

	require.NoError(t, p.processor.Process(t.Context(), body(textEvent("e1", "r1", userSrc, "/help"))))

	assert.Equal(t, []resolveCall{{"U1", false}}, p.resolver.calls)
	require.Len(t, p.messages.saved, 1)
	assert.Equal(t, models.Message{OrgID: "U1", Sender: "U1", Text: "/help"}, p.messages.saved[0])
	require.Len(t, p.router.calls, 1)
	assert.Equal(t, "/help", p.router.calls[0].text)
	assert.False(t, p.router.calls[0].src.IsGroup)
	assert.Equal(t, "echo: /help", p.messenger.replies["r1"])
}

func TestProcessGroupMentionIsStripped(t *testing.T) {
	p := newPipeline()
	ev := `{"type":"message","webhookEventId":"e1","replyToken":"r1","source":` + groupSrc + `,
		"message":{"id":"m1","type":"text","text":"@Arkai /assign @Bob ส่งงาน",
		"mention":{"mentionees":[{"index":0,"length":6,"userId":"Ubot"},{"index":15,"length":4,"userId":"Ubob"}]}}}`

	require.NoError(t, p.processor.Process(t.Context(), body(ev)))

	require.Len(t, p.router.calls, 1)
	call := p.router.calls[0]
	assert.Equal(t, "/assign @Bob ส่งงาน", call.text)
	assert.True(t, call.src.IsGroup)
	assert.True(t, call.src.MentionsBot)
	assert.Equal(t, "C1", call.src.ConversationID)
	assert.Equal(t, []commands.Mention{{UserID: "Ubob", Text: "@Bob"}}, call.src.Mentions)
	assert.Equal(t, []resolveCall{{"C1", true}}, p.resolver.calls)
	assert.Equal(t, "C1", p.messages.saved[0].OrgID)
}

func TestProcessSilentDispatchSendsNoReply(t *testing.T) {
	p := newPipeline()
	p.router.reply = func(string) (string, bool) { return "", false }

	require.NoError(t, p.processor.Process(t.Context(), body(textEvent("e1", "r1", groupSrc, "lunch?"))))

	assert.Empty(t, p.messenger.replies)
	assert.Len(t, p.messages.saved, 1, "group chatter is still stored for summaries")
}

func TestProcessDropsRedelivery(t *testing.T) {
	p := newPipeline()
	ev := textEvent("e1", "r1", userSrc, "hi")

	require.NoError(t, p.processor.Process(t.Context(), body(ev)))
	require.NoError(t, p.processor.Process(t.Context(), body(ev)))

	assert.Len(t, p.router.calls, 1)
}

func TestProcessDedupFailsOpen(t *testing.T) {
	p := newPipeline()
	p.dedup.err = errors.New("redis down")
	ev := textEvent("e1", "r1", userSrc, "hi")

	require.NoError(t, p.processor.Process(t.Context(), body(ev, ev)))

	assert.Len(t, p.router.calls, 2)
}

func TestProcessIsolatesEventFailures(t *testing.T) {
	p := newPipeline()
	p.router.reply = func(text string) (string, bool) {
		if text == "boom" {
			panic("handler exploded")
		}
		return "ok", true
	}

	err := p.processor.Process(t.Context(), body(
		`{"type":1}`,
		textEvent("e1", "r1", userSrc, "boom"),
		textEvent("e2", "r2", userSrc, "fine"),
	))

	require.NoError(t, err)
	assert.Len(t, p.router.calls, 2)
	assert.Equal(t, "ok", p.messenger.replies["r2"])
	assert.NotContains(t, p.messenger.replies, "r1")
}

func TestProcessMessageSaveFailureStillReplies(t *testing.T) {
	p := newPipeline()
	p.messages.err = errors.New("db down")

	require.NoError(t, p.processor.Process(t.Context(), body(textEvent("e1", "r1", userSrc, "hi"))))

	assert.Equal(t, "echo: hi", p.messenger.replies["r1"])
}

func TestProcessRejectsBadEnvelope(t *testing.T) {
	p := newPipeline()
	assert.Error(t, p.processor.Process(t.Context(), []byte(`{"events":`)))
}

func TestProcessLifecycleEvents(t *testing.T) {
	p := newPipeline()

	require.NoError(t, p.processor.Process(t.Context(), body(
		`{"type":"follow","webhookEventId":"e1","replyToken":"r1","source":`+userSrc+`}`,
		`{"type":"join","webhookEventId":"e2","replyToken":"r2","source":`+groupSrc+`}`,
		`{"type":"leave","webhookEventId":"e3","source":`+groupSrc+`}`,
		`{"type":"postback","webhookEventId":"e4","replyToken":"r4","source":`+userSrc+`}`,
	)))

	assert.Equal(t, map[string]string{"r1": MsgWelcome, "r2": MsgWelcome}, p.messenger.replies)
	assert.Empty(t, p.router.calls)
}

func mediaEvent(id, token, source, kind, filename string) string {
	return fmt.Sprintf(`{"type":"message","webhookEventId":%q,"replyToken":%q,"source":%s,
		"message":{"id":"m-%s","type":%q,"fileName":%q}}`, id, token, source, id, kind, filename)
}

func TestProcessMediaAutoSave(t *testing.T) {
	p := newPipeline()
	p.messenger.content = &line.Content{Data: []byte("pdfbytes"), ContentType: "application/pdf"}

	require.NoError(t, p.processor.Process(t.Context(), body(mediaEvent("e1", "r1", userSrc, "file", "report.pdf"))))

	require.Len(t, p.files.saved, 1)
	assert.Equal(t, files.Upload{Filename: "report.pdf", ContentType: "application/pdf", MediaType: "file", Data: []byte("pdfbytes")}, p.files.saved[0])
	assert.Contains(t, p.messenger.replies["r1"], "report.pdf")
	assert.Contains(t, p.messenger.replies["r1"], "https://files.example/report.pdf")
}

func TestProcessMediaFailures(t *testing.T) {
	tests := []struct {
		name       string
		contentErr error
		saveErr    error
		want       string
	}{
		{"too large download", line.ErrContentTooLarge, nil, fmt.Sprintf(MsgFileTooLarge, 20)},
		{"download error", errors.New("timeout"), nil, MsgFileSaveFailed},
		{"quota", nil, &files.QuotaError{Message: "พื้นที่เต็ม"}, "พื้นที่เต็ม"},
		{"upload error", nil, errors.New("s3 down"), MsgFileSaveFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline()
			p.messenger.content = &line.Content{Data: []byte("x")}
			p.messenger.contentErr = tt.contentErr
			p.files.err = tt.saveErr

			require.NoError(t, p.processor.Process(t.Context(), body(mediaEvent("e1", "r1", userSrc, "image", ""))))

			assert.Equal(t, tt.want, p.messenger.replies["r1"])
		})
	}
}

func TestProcessMediaWithStorageDisabled(t *testing.T) {
	p := newPipeline()
	p.files.enabled = false

	require.NoError(t, p.processor.Process(t.Context(), body(
		mediaEvent("e1", "r1", userSrc, "image", ""),
		mediaEvent("e2", "r2", groupSrc, "image", ""),
	)))

	assert.Equal(t, map[string]string{"r1": MsgStorageDisabled}, p.messenger.replies)
}
