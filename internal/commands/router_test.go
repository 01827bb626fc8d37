package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkai-assistant/backend/internal/ai"
	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/subscription"
)

func TestDispatchTaskViaThaiOrEnglishAlias(t *testing.T) {
	for _, text := range []string{"/task ส่งรายงานพรุ่งนี้", "/งาน ส่งรายงานพรุ่งนี้", "/สร้างงาน ส่งรายงานพรุ่งนี้"} {
		f := newFixture()
		o := org(models.PlanFree)

		reply, ok := f.router.Dispatch(context.Background(), text, o, userSource())
		require.True(t, ok, text)
		assert.Contains(t, reply, "ส่งรายงาน", text)
		assert.Contains(t, reply, "11/03/2025", text)

		require.Len(t, f.tasks.tasks, 1, text)
		assert.Equal(t, "ส่งรายงาน", f.tasks.tasks[0].Title)
		assert.Equal(t, 1, f.counters.taskInc)
	}
}

func TestDispatchQuotaDeniedSkipsAI(t *testing.T) {
	f := newFixture()
	o := org(models.PlanFree)
	o.AIChatsToday = 10

	reply, ok := f.router.Dispatch(context.Background(), "สวัสดีครับ ช่วยอะไรได้บ้าง", o, userSource())
	require.True(t, ok)
	assert.Contains(t, reply, "AI ครบโควต้าวันนี้แล้ว (10 ครั้ง)")
	assert.Equal(t, 0, f.assistant.chats)
	assert.Equal(t, 10, o.AIChatsToday)
	assert.Equal(t, 0, f.counters.aiInc)
}

func TestDispatchChatConsumesQuotaAfterReply(t *testing.T) {
	f := newFixture()
	o := org(models.PlanFree)

	reply, ok := f.router.Dispatch(context.Background(), "hello", o, userSource())
	require.True(t, ok)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 1, f.assistant.chats)
	assert.Equal(t, 1, o.AIChatsToday)
}

func TestDispatchChatFailureDoesNotConsumeQuota(t *testing.T) {
	f := newFixture()
	f.assistant.chatErr = errors.New("upstream timeout")
	o := org(models.PlanFree)

	reply, ok := f.router.Dispatch(context.Background(), "hello", o, userSource())
	require.True(t, ok)
	assert.Equal(t, MsgAIUnavailable, reply)
	assert.Equal(t, 0, o.AIChatsToday)
}

func TestDispatchChatLogsUnrecordedUsage(t *testing.T) {
	counters := &countersStore{err: errors.New("db down")}
	strict := subscription.Policy{FailOpenChecks: true}
	ledger := subscription.NewLedger(counters, strict, bangkok, nil)
	core, logs := observer.New(zap.WarnLevel)
	assistant := &countingAssistant{Assistant: ai.NewAssistant(bangkok)}
	r := NewRouter(MustRegistry(nil), ledger, assistant, zap.New(core))

	reply, ok := r.Dispatch(context.Background(), "hello", org(models.PlanFree), userSource())
	require.True(t, ok)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 1, assistant.chats)
	assert.Equal(t, 1, logs.FilterMessage("ai chat usage not recorded").Len())
}

func TestDispatchGroupPlainTextIsSilent(t *testing.T) {
	f := newFixture()

	reply, ok := f.router.Dispatch(context.Background(), "ประชุมกี่โมง", org(models.PlanFree), groupSource())
	assert.False(t, ok)
	assert.Empty(t, reply)
	assert.Equal(t, 0, f.assistant.chats)
}

func TestDispatchGroupMentionAnswers(t *testing.T) {
	f := newFixture()
	src := groupSource()
	src.MentionsBot = true

	reply, ok := f.router.Dispatch(context.Background(), "ช่วยด้วย", org(models.PlanFree), src)
	require.True(t, ok)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 1, f.assistant.chats)
}

func TestDispatchGroupCommandAnswers(t *testing.T) {
	f := newFixture()

	reply, ok := f.router.Dispatch(context.Background(), "/help", org(models.PlanFree), groupSource())
	require.True(t, ok)
	assert.Equal(t, helpText, reply)
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture()

	reply, ok := f.router.Dispatch(context.Background(), "/frobnicate now", org(models.PlanFree), userSource())
	require.True(t, ok)
	assert.Equal(t, MsgUnknownCommand, reply)
}

func TestDispatchEmptyText(t *testing.T) {
	f := newFixture()
	_, ok := f.router.Dispatch(context.Background(), "   ", org(models.PlanFree), userSource())
	assert.False(t, ok)
}

func testRouter(t *testing.T, h HandlerFunc) *Router {
	t.Helper()
	reg := MustRegistry([]Command{{Name: "x", Handler: h}})
	ledger := subscription.NewLedger(&countersStore{}, subscription.DefaultPolicy, bangkok, nil)
	return NewRouter(reg, ledger, &countingAssistant{}, nil)
}

func TestDispatchUserErrorShowsMessage(t *testing.T) {
	r := testRouter(t, func(context.Context, Invocation) (string, error) {
		return "", Userf("❌ ลองใหม่", errBoom)
	})
	reply, _ := r.Dispatch(context.Background(), "/x", org(models.PlanFree), userSource())
	assert.Equal(t, "❌ ลองใหม่", reply)
}

func TestDispatchInternalErrorIsGeneric(t *testing.T) {
	r := testRouter(t, func(context.Context, Invocation) (string, error) {
		return "", errBoom
	})
	reply, _ := r.Dispatch(context.Background(), "/x", org(models.PlanFree), userSource())
	assert.Equal(t, MsgGenericError, reply)
	assert.NotContains(t, reply, "10.0.0.5")
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := testRouter(t, func(context.Context, Invocation) (string, error) {
		panic("nil map")
	})
	reply, ok := r.Dispatch(context.Background(), "/x", org(models.PlanFree), userSource())
	assert.True(t, ok)
	assert.Equal(t, MsgGenericError, reply)
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("  /help"))
	assert.False(t, IsCommand("help"))
}
