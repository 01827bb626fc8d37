package commands

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkai-assistant/backend/internal/ai"
	"github.com/arkai-assistant/backend/internal/files"
	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/payments"
	"github.com/arkai-assistant/backend/internal/subscription"
)

var bangkok = time.FixedZone("ICT", 7*3600)

type countersStore struct {
	aiInc, taskInc int
	err            error
}

func (c *countersStore) ResetAIChats(context.Context, uuid.UUID, time.Time, time.Time) error { return c.err }
func (c *countersStore) ResetTasks(context.Context, uuid.UUID, time.Time, time.Time) error   { return c.err }

func (c *countersStore) IncrementAIChats(_ context.Context, _ uuid.UUID, n int) error {
	if c.err != nil {
		return c.err
	}
	c.aiInc += n
	return nil
}

func (c *countersStore) IncrementTasks(_ context.Context, _ uuid.UUID, n int) error {
	if c.err != nil {
		return c.err
	}
	c.taskInc += n
	return nil
}

func (c *countersStore) AddStorageBytes(context.Context, uuid.UUID, int64) error { return c.err }

// countingAssistant wraps the rule-based assistant and counts chat calls.
type countingAssistant struct {
	*ai.Assistant
	chats   int
	chatErr error
}

func (a *countingAssistant) Chat(ctx context.Context, text string) (string, error) {
	a.chats++
	if a.chatErr != nil {
		return "", a.chatErr
	}
	return a.Assistant.Chat(ctx, text)
}

type memTasks struct {
	mu    sync.Mutex
	tasks []*models.Task
	seq   int
}

func (m *memTasks) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = uuid.New()
	t.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *t
	m.tasks = append(m.tasks, &cp)
	return nil
}

func (m *memTasks) ListPending(_ context.Context, orgID, assignee string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.OrgID != orgID || t.Status != models.TaskStatusPending {
			continue
		}
		if assignee != "" && t.Assignee != assignee && !(t.Assignee == "" && t.CreatedBy == assignee) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memTasks) ListByAssignee(_ context.Context, orgID, assignee string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.OrgID == orgID && t.Assignee == assignee {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTasks) MarkDone(_ context.Context, orgID string, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id && t.OrgID == orgID && t.Status == models.TaskStatusPending {
			t.Status = models.TaskStatusDone
			return true, nil
		}
	}
	return false, nil
}

type memNotes struct {
	notes    []models.Note
	countErr error
}

func (m *memNotes) Create(_ context.Context, n *models.Note) error {
	n.ID = uuid.New()
	m.notes = append(m.notes, *n)
	return nil
}

func (m *memNotes) Count(_ context.Context, orgID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	c := 0
	for _, n := range m.notes {
		if n.OrgID == orgID {
			c++
		}
	}
	return c, nil
}

func (m *memNotes) Search(_ context.Context, orgID, noteType, term string, limit int) ([]models.Note, error) {
	var out []models.Note
	for i := len(m.notes) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.notes[i]
		if n.OrgID != orgID || (noteType != "" && n.Type != noteType) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(n.Text), strings.ToLower(term)) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

type memReminders struct {
	reminders []models.Reminder
}

func (m *memReminders) Create(_ context.Context, r *models.Reminder) error {
	r.ID = uuid.New()
	m.reminders = append(m.reminders, *r)
	return nil
}

func (m *memReminders) CountActive(_ context.Context, orgID string) (int, error) {
	c := 0
	for _, r := range m.reminders {
		if r.OrgID == orgID && r.SentAt == nil {
			c++
		}
	}
	return c, nil
}

type memMessages struct {
	messages []models.Message
}

func (m *memMessages) Between(_ context.Context, orgID string, from, to time.Time) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.OrgID == orgID && !msg.CreatedAt.Before(from) && msg.CreatedAt.Before(to) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) Search(_ context.Context, orgID, term string, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.OrgID == orgID && strings.Contains(msg.Text, term) && len(out) < limit {
			out = append(out, msg)
		}
	}
	return out, nil
}

type fakeFiles struct {
	enabled  bool
	files    []models.StoredFile
	fallback bool
	stats    files.Stats
}

func (f *fakeFiles) Enabled() bool       { return f.enabled }
func (f *fakeFiles) MaxFileBytes() int64 { return 20 * 1024 * 1024 }

func (f *fakeFiles) Recent(context.Context, string, int) ([]models.StoredFile, error) {
	return f.files, nil
}

func (f *fakeFiles) Find(context.Context, string, string, int) ([]models.StoredFile, bool, error) {
	return f.files, f.fallback, nil
}

func (f *fakeFiles) Stats(context.Context, string) (files.Stats, error) { return f.stats, nil }

func (f *fakeFiles) Link(_ context.Context, sf models.StoredFile) string {
	return "https://files.example/" + sf.ObjectKey
}

type fakeCheckout struct {
	req payments.CheckoutRequest
	res *payments.CheckoutResult
	err error
}

func (f *fakeCheckout) Start(_ context.Context, _ *models.Organization, req payments.CheckoutRequest) (*payments.CheckoutResult, error) {
	f.req = req
	return f.res, f.err
}

type fixture struct {
	handlers  *Handlers
	router    *Router
	counters  *countersStore
	assistant *countingAssistant
	tasks     *memTasks
	notes     *memNotes
	reminders *memReminders
	messages  *memMessages
	files     *fakeFiles
	checkout  *fakeCheckout
	now       time.Time
}

func newFixture() *fixture {
	now := time.Date(2025, 3, 10, 14, 30, 0, 0, bangkok)
	f := &fixture{
		counters:  &countersStore{},
		assistant: &countingAssistant{Assistant: ai.NewAssistant(bangkok)},
		tasks:     &memTasks{},
		notes:     &memNotes{},
		reminders: &memReminders{},
		messages:  &memMessages{},
		files:     &fakeFiles{enabled: true},
		checkout:  &fakeCheckout{},
		now:       now,
	}
	ledger := subscription.NewLedger(f.counters, subscription.DefaultPolicy, bangkok, nil)
	f.handlers = &Handlers{
		Ledger:    ledger,
		Assistant: f.assistant,
		Tasks:     f.tasks,
		Notes:     f.notes,
		Reminders: f.reminders,
		Messages:  f.messages,
		Files:     f.files,
		Checkout:  f.checkout,
		Location:  bangkok,
		Now:       func() time.Time { return now },
	}
	f.router = NewRouter(MustRegistry(Catalogue(f.handlers)), ledger, f.assistant, nil)
	return f
}

func org(plan models.Plan) *models.Organization {
	now := time.Now()
	user := "U1"
	return &models.Organization{
		ID:             uuid.New(),
		LineUserID:     &user,
		Plan:           plan,
		AIChatsResetAt: now,
		TasksResetAt:   now,
	}
}

func userSource() Source {
	return Source{ConversationID: "U1", UserID: "U1"}
}

func groupSource() Source {
	return Source{ConversationID: "C1", UserID: "U1", IsGroup: true}
}

var errBoom = errors.New("connection refused: 10.0.0.5:5432")
