package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/ai"
	"github.com/arkai-assistant/backend/internal/files"
	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/notes"
	"github.com/arkai-assistant/backend/internal/payments"
	"github.com/arkai-assistant/backend/internal/reminders"
	"github.com/arkai-assistant/backend/internal/subscription"
)

const (
	recentFilesLimit = 5
	findFilesLimit   = 10
	topicLimit       = 50
	agreementsLimit  = 5
	whoLimit         = 10
)

// Assistant is the AI collaborator.
type Assistant interface {
	Chatter
	ExtractTask(text string, now time.Time) ai.TaskDraft
	Summarize(text string) string
}

// TaskStore persists tasks.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	ListPending(ctx context.Context, orgID, assignee string) ([]models.Task, error)
	ListByAssignee(ctx context.Context, orgID, assignee string) ([]models.Task, error)
	MarkDone(ctx context.Context, orgID string, id uuid.UUID) (bool, error)
}

// NoteStore persists notes.
type NoteStore interface {
	Create(ctx context.Context, n *models.Note) error
	Count(ctx context.Context, orgID string) (int, error)
	Search(ctx context.Context, orgID, noteType, term string, limit int) ([]models.Note, error)
}

// ReminderStore persists reminders.
type ReminderStore interface {
	Create(ctx context.Context, r *models.Reminder) error
	CountActive(ctx context.Context, orgID string) (int, error)
}

// MessageStore reads the stored chat history.
type MessageStore interface {
	Between(ctx context.Context, orgID string, from, to time.Time) ([]models.Message, error)
	Search(ctx context.Context, orgID, term string, limit int) ([]models.Message, error)
}

// FileService lists and looks up stored files.
type FileService interface {
	Enabled() bool
	MaxFileBytes() int64
	Recent(ctx context.Context, orgID string, limit int) ([]models.StoredFile, error)
	Find(ctx context.Context, orgID, query string, limit int) ([]models.StoredFile, bool, error)
	Stats(ctx context.Context, orgID string) (files.Stats, error)
	Link(ctx context.Context, f models.StoredFile) string
}

// Checkout starts a plan purchase.
type Checkout interface {
	Start(ctx context.Context, org *models.Organization, req payments.CheckoutRequest) (*payments.CheckoutResult, error)
}

// Handlers implements the command catalogue.
type Handlers struct {
	Ledger    Ledger
	Assistant Assistant
	Tasks     TaskStore
	Notes     NoteStore
	Reminders ReminderStore
	Messages  MessageStore
	Files     FileService
	Checkout  Checkout // nil disables /upgrade checkout
	Location  *time.Location
	Now       func() time.Time
	Logger    *zap.Logger
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().In(h.loc())
	}
	return time.Now().In(h.loc())
}

func (h *Handlers) loc() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

func (h *Handlers) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// --- status ---

func (h *Handlers) Help(_ context.Context, _ Invocation) (string, error) {
	return helpText, nil
}

func (h *Handlers) Plan(_ context.Context, inv Invocation) (string, error) {
	return subscription.PlanStatus(inv.Org, h.loc()), nil
}

func (h *Handlers) Storage(ctx context.Context, inv Invocation) (string, error) {
	stats, err := h.Files.Stats(ctx, inv.OrgID())
	if err != nil {
		return "", fmt.Errorf("file stats: %w", err)
	}
	limits := subscription.LimitsFor(inv.Org.Plan)
	used := inv.Org.StorageUsedBytes
	remaining := 100.0
	if limits.StorageBytes > 0 {
		remaining = 100 - float64(used)*100/float64(limits.StorageBytes)
	}
	return fmt.Sprintf("📊 พื้นที่จัดเก็บ\nใช้ไป: %s\nโควต้า: %s\nคงเหลือ: %.0f%% (%d ไฟล์)",
		files.FormatSize(used), files.FormatSize(limits.StorageBytes), max(remaining, 0), stats.Count), nil
}

// --- files ---

func (h *Handlers) SaveFile(_ context.Context, _ Invocation) (string, error) {
	if !h.Files.Enabled() {
		return "❌ ระบบเก็บไฟล์ยังไม่เปิดใช้งาน กรุณาติดต่อแอดมิน", nil
	}
	return fmt.Sprintf("📎 ส่งไฟล์ รูป วิดีโอ หรือเสียงเข้ามาในแชทได้เลย ระบบจะเก็บให้อัตโนมัติ (สูงสุด %dMB)",
		h.Files.MaxFileBytes()/(1024*1024)), nil
}

func (h *Handlers) RecentFiles(ctx context.Context, inv Invocation) (string, error) {
	list, err := h.Files.Recent(ctx, inv.OrgID(), recentFilesLimit)
	if err != nil {
		return "", fmt.Errorf("recent files: %w", err)
	}
	if len(list) == 0 {
		return "📭 ยังไม่มีไฟล์ที่เก็บไว้ ส่งไฟล์หรือรูปเข้ามาในแชทเพื่อเก็บอัตโนมัติ", nil
	}
	return "📂 ไฟล์ล่าสุด:\n" + h.fileList(ctx, list), nil
}

func (h *Handlers) FindFile(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return "กรุณาระบุชื่อไฟล์ที่ต้องการค้นหา เช่น: /หาไฟล์ report.pdf", nil
	}
	list, fallback, err := h.Files.Find(ctx, inv.OrgID(), inv.Args, findFilesLimit)
	if err != nil {
		return "", fmt.Errorf("find files: %w", err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("🔍 ไม่พบไฟล์ \"%s\"", inv.Args), nil
	}
	header := fmt.Sprintf("🔍 ผลการค้นหา \"%s\":\n", inv.Args)
	if fallback {
		header = fmt.Sprintf("🔍 ไม่พบไฟล์ \"%s\" แสดงไฟล์ล่าสุดแทน:\n", inv.Args)
	}
	return header + h.fileList(ctx, list), nil
}

func (h *Handlers) fileList(ctx context.Context, list []models.StoredFile) string {
	lines := make([]string, 0, len(list))
	for i, f := range list {
		line := fmt.Sprintf("%d. %s (%s)", i+1, f.Filename, files.FormatSize(f.SizeBytes))
		if link := h.Files.Link(ctx, f); link != "" {
			line += "\n   " + link
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// --- summaries ---

func (h *Handlers) Today(ctx context.Context, inv Invocation) (string, error) {
	if d := h.Ledger.FeatureAllowed(inv.Org, subscription.FeatureSummaryToday); !d.Allowed {
		return d.Message, nil
	}
	now := h.now()
	return h.summarizeRange(ctx, inv.OrgID(), startOfDay(now), now.Add(time.Second), "📭 ยังไม่มีการพูดคุยในวันนี้เลยครับ")
}

func (h *Handlers) Yesterday(ctx context.Context, inv Invocation) (string, error) {
	if d := h.Ledger.FeatureAllowed(inv.Org, subscription.FeatureSummaryYesterday); !d.Allowed {
		return d.Message, nil
	}
	today := startOfDay(h.now())
	return h.summarizeRange(ctx, inv.OrgID(), today.AddDate(0, 0, -1), today, "📭 ไม่มีบันทึกการพูดคุยของเมื่อวานครับ")
}

func (h *Handlers) summarizeRange(ctx context.Context, orgID string, from, to time.Time, empty string) (string, error) {
	msgs, err := h.Messages.Between(ctx, orgID, from, to)
	if err != nil {
		return "", fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		return empty, nil
	}
	return h.Assistant.Summarize(joinTexts(msgs)), nil
}

func (h *Handlers) Topic(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return "กรุณาระบุหัวข้อที่ต้องการสรุป เช่น: /สรุปเรื่อง ประชุมลูกค้า", nil
	}
	msgs, err := h.Messages.Search(ctx, inv.OrgID(), inv.Args, topicLimit)
	if err != nil {
		return "", fmt.Errorf("search messages: %w", err)
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("📭 ไม่พบการพูดคุยเรื่อง \"%s\" ในแชทนี้ครับ", inv.Args), nil
	}
	return h.Assistant.Summarize(joinTexts(msgs)), nil
}

func joinTexts(msgs []models.Message) string {
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	return strings.Join(texts, "\n")
}

func (h *Handlers) WorkOf(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return "กรุณาระบุชื่อผู้ใช้ เช่น: /สรุปงานของ @username", nil
	}
	assignee, label := resolveAssignee(inv.Args, inv.Source.Mentions)
	list, err := h.Tasks.ListByAssignee(ctx, inv.OrgID(), assignee)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("📭 ไม่พบงานของ %s ครับ", label), nil
	}
	lines := make([]string, len(list))
	for i, t := range list {
		lines[i] = fmt.Sprintf("%d. %s [สถานะ: %s]", i+1, t.Title, statusText(t.Status))
	}
	return fmt.Sprintf("📝 สรุปงานของ %s:\n%s", label, strings.Join(lines, "\n")), nil
}

func statusText(s string) string {
	if s == models.TaskStatusDone {
		return "เสร็จแล้ว"
	}
	return "รอดำเนินการ"
}

// --- tasks ---

const taskTemplate = "ฟอร์มสร้างงาน:\n1. ชื่องาน: ___\n2. รายละเอียด: ___\n3. กำหนดส่ง: ___\n\nหรือใช้รูปแบบเร็ว: /งาน: ส่งรายงานพรุ่งนี้"

func (h *Handlers) Task(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return taskTemplate, nil
	}
	if d := h.Ledger.Check(ctx, subscription.ResourceTask, inv.Org, 0); !d.Allowed {
		return d.Message, nil
	}
	draft := h.Assistant.ExtractTask(inv.Args, h.now())
	t := &models.Task{
		OrgID:       inv.OrgID(),
		Title:       draft.Title,
		Description: draft.Description,
		DueDate:     draft.DueDate,
		CreatedBy:   inv.Source.UserID,
		Status:      models.TaskStatusPending,
	}
	if err := h.Tasks.Create(ctx, t); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	_ = h.Ledger.Record(ctx, subscription.ResourceTask, inv.Org, 1)

	reply := fmt.Sprintf("✅ สร้างงานใหม่: \"%s\"", t.Title)
	if t.DueDate != nil {
		reply += "\nกำหนดส่ง: " + formatDate(*t.DueDate, h.loc())
	}
	return reply, nil
}

func (h *Handlers) Assign(ctx context.Context, inv Invocation) (string, error) {
	if d := h.Ledger.FeatureAllowed(inv.Org, subscription.FeatureAssignTask); !d.Allowed {
		return d.Message, nil
	}
	who, rest := splitCommand(inv.Args)
	if who == "" || rest == "" {
		return Usage("/มอบหมาย @ชื่อ รายละเอียดงาน วันเวลา"), nil
	}
	if d := h.Ledger.Check(ctx, subscription.ResourceTask, inv.Org, 0); !d.Allowed {
		return d.Message, nil
	}
	assignee, label := resolveAssignee(who, inv.Source.Mentions)
	draft := h.Assistant.ExtractTask(rest, h.now())
	t := &models.Task{
		OrgID:       inv.OrgID(),
		Title:       draft.Title,
		Description: draft.Description,
		DueDate:     draft.DueDate,
		Assignee:    assignee,
		CreatedBy:   inv.Source.UserID,
		Status:      models.TaskStatusPending,
	}
	if err := h.Tasks.Create(ctx, t); err != nil {
		return "", fmt.Errorf("assign task: %w", err)
	}
	_ = h.Ledger.Record(ctx, subscription.ResourceTask, inv.Org, 1)
	return fmt.Sprintf("✅ มอบหมายงาน \"%s\" ให้ %s เรียบร้อย", t.Title, label), nil
}

// resolveAssignee maps "@name" to the mentioned user id when the platform supplied one.
func resolveAssignee(arg string, mentions []Mention) (id, label string) {
	label = strings.TrimSpace(arg)
	for _, m := range mentions {
		if m.UserID != "" && strings.HasPrefix(label, m.Text) {
			return m.UserID, m.Text
		}
	}
	name := strings.TrimPrefix(strings.Fields(label + " ")[0], "@")
	return name, "@" + name
}

func (h *Handlers) MyTasks(ctx context.Context, inv Invocation) (string, error) {
	user := inv.Source.UserID
	if user == "" {
		user = "unknown"
	}
	list, err := h.Tasks.ListPending(ctx, inv.OrgID(), user)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if len(list) == 0 {
		return "📝 คุณไม่มีงานค้างอยู่ในขณะนี้", nil
	}
	lines := make([]string, len(list))
	for i, t := range list {
		lines[i] = fmt.Sprintf("%d. %s", i+1, t.Title)
		if t.DueDate != nil {
			lines[i] += fmt.Sprintf(" (เสร็จภายใน %s)", formatDate(*t.DueDate, h.loc()))
		}
	}
	return "📝 งานของคุณ:\n" + strings.Join(lines, "\n"), nil
}

func (h *Handlers) AllTasks(ctx context.Context, inv Invocation) (string, error) {
	list, err := h.Tasks.ListPending(ctx, inv.OrgID(), "")
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if len(list) == 0 {
		return "📝 ไม่มีงานในกลุ่มขณะนี้", nil
	}
	lines := make([]string, len(list))
	for i, t := range list {
		lines[i] = fmt.Sprintf("%d. %s", i+1, t.Title)
		if t.Assignee != "" {
			lines[i] += fmt.Sprintf(" (@%s)", t.Assignee)
		}
	}
	return "📝 งานประจำกลุ่ม:\n" + strings.Join(lines, "\n") + "\n\nพิมพ์ /done [หมายเลข] เมื่อทำเสร็จ", nil
}

// Done completes the N-th task of the /alltasks listing.
func (h *Handlers) Done(ctx context.Context, inv Invocation) (string, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(inv.Args, "#"))
	if err != nil || n < 1 {
		return Usage("/done [หมายเลขงานจาก /alltasks]"), nil
	}
	list, err := h.Tasks.ListPending(ctx, inv.OrgID(), "")
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if n > len(list) {
		return fmt.Sprintf("❌ ไม่พบงานหมายเลข %d", n), nil
	}
	t := list[n-1]
	ok, err := h.Tasks.MarkDone(ctx, inv.OrgID(), t.ID)
	if err != nil {
		return "", fmt.Errorf("mark done: %w", err)
	}
	if !ok {
		return fmt.Sprintf("❌ ไม่พบงานหมายเลข %d", n), nil
	}
	return fmt.Sprintf("🎉 ปิดงาน \"%s\" เรียบร้อย", t.Title), nil
}

// --- reminders ---

func (h *Handlers) Remind(ctx context.Context, inv Invocation) (string, error) {
	return h.addReminder(ctx, inv, false)
}

func (h *Handlers) Daily(ctx context.Context, inv Invocation) (string, error) {
	return h.addReminder(ctx, inv, true)
}

func (h *Handlers) addReminder(ctx context.Context, inv Invocation, daily bool) (string, error) {
	if inv.Args == "" {
		if daily {
			return Usage("/เตือนทุกวัน [เรื่อง]"), nil
		}
		return Usage("/เตือนพรุ่งนี้ [เรื่อง]"), nil
	}
	limits := subscription.LimitsFor(inv.Org.Plan)
	count, err := h.Reminders.CountActive(ctx, inv.OrgID())
	if err != nil {
		h.log().Warn("count reminders failed, allowing", zap.Error(err))
	} else if count >= limits.MaxReminders {
		return fmt.Sprintf("⏰ ตั้งเตือนครบจำนวนของแผนแล้ว (%d รายการ)\n💡 อัพเกรดเพื่อเพิ่มจำนวน /plan", limits.MaxReminders), nil
	}
	rem := &models.Reminder{
		OrgID:    inv.OrgID(),
		Topic:    inv.Args,
		RemindAt: reminders.NextAt(h.now(), h.loc()),
		Daily:    daily,
	}
	if err := h.Reminders.Create(ctx, rem); err != nil {
		return "", fmt.Errorf("create reminder: %w", err)
	}
	if daily {
		return fmt.Sprintf("⏰ ตั้งเตือนทุกวันสำหรับเรื่อง \"%s\" สำเร็จ (ทุกวัน %02d:00)", rem.Topic, reminders.DefaultHour), nil
	}
	return fmt.Sprintf("⏰ ตั้งเตือนพรุ่งนี้สำหรับเรื่อง \"%s\" สำเร็จ (%s %02d:00)", rem.Topic, formatDate(rem.RemindAt, h.loc()), reminders.DefaultHour), nil
}

// --- memory ---

func (h *Handlers) Note(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return Usage("/บันทึกว่า [ข้อตกลงหรือความจำ]"), nil
	}
	limits := subscription.LimitsFor(inv.Org.Plan)
	count, err := h.Notes.Count(ctx, inv.OrgID())
	if err != nil {
		h.log().Warn("count notes failed, allowing", zap.Error(err))
	} else if count >= limits.MaxNotes {
		return fmt.Sprintf("🧠 บันทึกครบจำนวนของแผนแล้ว (%d รายการ)\n💡 อัพเกรดเพื่อเพิ่มจำนวน /plan", limits.MaxNotes), nil
	}
	n := &models.Note{OrgID: inv.OrgID(), Text: inv.Args, Type: notes.Classify(inv.Args)}
	if err := h.Notes.Create(ctx, n); err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}
	return fmt.Sprintf("✅ บันทึกความจำ: \"%s\" เรียบร้อยครับ", n.Text), nil
}

func (h *Handlers) Agreements(ctx context.Context, inv Invocation) (string, error) {
	list, err := h.Notes.Search(ctx, inv.OrgID(), models.NoteTypeAgreement, "", agreementsLimit)
	if err != nil {
		return "", fmt.Errorf("list agreements: %w", err)
	}
	if len(list) == 0 {
		return "🧠 ยังไม่มีข้อตกลงที่ถูกบันทึกไว้ในกลุ่มนี้ครับ", nil
	}
	return "🤝 ข้อตกลงล่าสุดที่เราบันทึกไว้:\n" + noteList(list), nil
}

// Who looks up responsibilities mentioning the term, widening to any note when none match.
func (h *Handlers) Who(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return Usage("/ใครรับผิดชอบ [โปรเจค/งาน]"), nil
	}
	list, err := h.Notes.Search(ctx, inv.OrgID(), models.NoteTypeResponsibility, inv.Args, whoLimit)
	if err != nil {
		return "", fmt.Errorf("search responsibilities: %w", err)
	}
	if len(list) > 0 {
		return fmt.Sprintf("📌 ความรับผิดชอบเกี่ยวกับ \"%s\":\n%s", inv.Args, noteList(list)), nil
	}
	list, err = h.Notes.Search(ctx, inv.OrgID(), "", inv.Args, whoLimit)
	if err != nil {
		return "", fmt.Errorf("search notes: %w", err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("🤷 ไม่พบผู้รับผิดชอบสำหรับงานหรือโปรเจคที่มีคำว่า \"%s\" ครับ", inv.Args), nil
	}
	return fmt.Sprintf("📌 ไม่พบผู้รับผิดชอบโดยตรง แต่มีบันทึกที่เกี่ยวกับ \"%s\":\n%s", inv.Args, noteList(list)), nil
}

func noteList(list []models.Note) string {
	lines := make([]string, len(list))
	for i, n := range list {
		lines[i] = fmt.Sprintf("%d. %s", i+1, n.Text)
	}
	return strings.Join(lines, "\n")
}

// --- billing ---

const upgradeOptions = "💳 อัพเกรดแผน:\n" +
	"⭐ /upgrade basic: ฿200/เดือน, ฿2,000/ปี\n" +
	"🔥 /upgrade pro: ฿300/เดือน, ฿3,000/ปี\n" +
	"💎 /upgrade business: ฿500/เดือน, ฿2,500/ปี\n\n" +
	"เพิ่ม yearly เพื่อจ่ายรายปี, qr เพื่อจ่ายด้วยพร้อมเพย์\nเช่น /upgrade pro yearly qr"

func (h *Handlers) Upgrade(ctx context.Context, inv Invocation) (string, error) {
	if inv.Args == "" {
		return upgradeOptions, nil
	}
	req, ok := parseUpgrade(inv.Args)
	if !ok {
		return "❌ แผนไม่ถูกต้อง กรุณาเลือก: basic, pro, business", nil
	}
	if h.Checkout == nil {
		return "❌ ระบบชำระเงินยังไม่พร้อม กรุณาติดต่อแอดมิน", nil
	}
	if inv.Org.IsSentinel() {
		return "", Userf("❌ ระบบขัดข้องชั่วคราว กรุณาลองใหม่อีกครั้ง", errors.New("checkout for sentinel organization"))
	}
	res, err := h.Checkout.Start(ctx, inv.Org, req)
	switch {
	case errors.Is(err, payments.ErrProviderUnavailable):
		return "❌ ระบบชำระเงินยังไม่พร้อม กรุณาติดต่อแอดมิน", nil
	case errors.Is(err, payments.ErrUnknownPlan):
		return "❌ แผนไม่ถูกต้อง กรุณาเลือก: basic, pro, business", nil
	case errors.Is(err, payments.ErrChargeFailed):
		return "❌ ชำระเงินไม่สำเร็จ กรุณาตรวจสอบข้อมูลแล้วลองใหม่", nil
	case err != nil:
		return "", Userf("❌ สร้างลิงก์ชำระเงินไม่สำเร็จ ลองใหม่อีกครั้ง", err)
	}
	return checkoutReply(req, res), nil
}

func parseUpgrade(args string) (payments.CheckoutRequest, bool) {
	fields := strings.Fields(strings.ToLower(args))
	plan, ok := models.ParsePlan(fields[0])
	if !ok || plan == models.PlanFree {
		return payments.CheckoutRequest{}, false
	}
	req := payments.CheckoutRequest{Plan: plan, Period: models.PeriodMonthly}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "yearly", "year", "รายปี", "ปี":
			req.Period = models.PeriodYearly
		case "monthly", "month", "รายเดือน", "เดือน":
			req.Period = models.PeriodMonthly
		case "qr", "promptpay", "พร้อมเพย์":
			req.Method = payments.MethodPromptPay
		case "card", "บัตร":
			req.Method = payments.MethodCard
			if i+1 < len(fields) {
				req.CardToken = strings.Fields(args)[i+1]
				i++
			}
		}
	}
	return req, true
}

func checkoutReply(req payments.CheckoutRequest, res *payments.CheckoutResult) string {
	periodLabel := "รายเดือน"
	if req.Period == models.PeriodYearly {
		periodLabel = "รายปี"
	}
	baht, _ := subscription.PriceFor(req.Plan, req.Period)
	label := subscription.PlanLabel(req.Plan)
	switch {
	case res.Completed:
		return fmt.Sprintf("✅ ชำระเงินสำเร็จ แผน %s (%s) เปิดใช้งานแล้ว\nพิมพ์ /plan เพื่อดูรายละเอียด", label, periodLabel)
	case res.Provider == models.PaymentProviderStripe:
		return fmt.Sprintf("💳 ชำระเงินอัพเกรด %s\n\n💰 ราคา: ฿%d (%s)\n🔗 กดลิงก์ด้านล่างเพื่อชำระเงิน:\n%s\n\n"+
			"⏰ ลิงก์ชำระเงินใช้ได้ 30 นาที\n✅ รองรับ: บัตรเครดิต/เดบิต, พร้อมเพย์\n🔒 ชำระเงินผ่าน Stripe",
			label, baht, periodLabel, res.URL)
	case req.Method == payments.MethodCard:
		return fmt.Sprintf("🔐 ยืนยันการชำระเงิน %s ฿%d (%s) ที่ลิงก์นี้:\n%s", label, baht, periodLabel, res.URL)
	default:
		return fmt.Sprintf("📱 สแกน QR พร้อมเพย์เพื่อชำระ %s ฿%d (%s)\n%s\n\n✅ ระบบจะอัพเกรดให้อัตโนมัติเมื่อชำระสำเร็จ",
			label, baht, periodLabel, res.URL)
	}
}
