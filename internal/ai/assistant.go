// Package ai is the built-in rule-based assistant: keyword chat replies, task
// extraction from free text, and plain-text chat summaries.
package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxTitleRunes   = 80
	maxSummaryLines = 15
	maxLineRunes    = 100
)

// TaskDraft is the structured form of a task sentence.
type TaskDraft struct {
	Title       string
	Description string
	DueDate     *time.Time
}

type rule struct {
	keywords []string
	reply    string
}

var chatRules = []rule{
	{[]string{"สวัสดี", "หวัดดี", "hello", "hi", "hey"}, "👋 สวัสดีครับ! ผม Arkai ผู้ช่วยทำงานของคุณ\n\nพิมพ์ /help เพื่อดูคำสั่งทั้งหมด 📚"},
	{[]string{"ขอบคุณ", "thank", "thanks", "thx"}, "😊 ยินดีครับ! มีอะไรให้ช่วยอีกก็บอกได้เลยนะ"},
	{[]string{"งาน", "task", "todo", "ต้องทำ"}, "✅ จัดการงานได้ด้วยคำสั่ง:\n• /task [รายละเอียด] — สร้างงาน\n• /mytasks — ดูงานของคุณ\n• /alltasks — ดูงานทั้งหมด"},
	{[]string{"ไฟล์", "file", "รูป", "เอกสาร", "document"}, "📁 จัดการไฟล์:\n• ส่งไฟล์/รูปเข้ามา → เก็บอัตโนมัติ\n• /files — ดูไฟล์ทั้งหมด\n• /file pdf — ดูเฉพาะ PDF"},
	{[]string{"สรุป", "summary", "recap"}, "📝 สรุปแชท:\n• /summary — สรุปแชทวันนี้\n• /yesterday — สรุปเมื่อวาน"},
	{[]string{"เตือน", "remind", "alarm", "นัด"}, "⏰ ตั้งเตือน:\n• /remind [เรื่อง] — เตือนพรุ่งนี้ 09:00\n• /daily [เรื่อง] — เตือนทุกวัน 09:00"},
	{[]string{"จำ", "บันทึก", "note", "remember", "จด"}, "🧠 บันทึกความจำ:\n• /note [ข้อความ] — บันทึก\n• /agreements — ดูข้อตกลง"},
	{[]string{"ราคา", "price", "แพ็ค", "plan", "upgrade", "อัพเกรด"}, "📊 ดูแผน/ราคา:\n• /plan — ดูแผนปัจจุบันและอัพเกรด"},
	{[]string{"ใช้ยังไง", "วิธีใช้", "how", "help", "ช่วย", "ทำอะไรได้"}, "พิมพ์ /help เพื่อดูคำสั่งทั้งหมด 📚"},
}

const defaultReply = "💬 ผม Arkai ผู้ช่วยทำงานครับ!\n\nผมช่วยได้เรื่อง:\n📁 เก็บไฟล์ • ✅ จัดการงาน • 📝 สรุปแชท\n🧠 บันทึกความจำ • ⏰ เตือนความจำ\n\nพิมพ์ /help เพื่อดูคำสั่งทั้งหมด"

// Ordered longest phrase first so "day after tomorrow" does not match as "tomorrow".
var dueKeywords = []struct {
	phrases []string
	days    int
}{
	{[]string{"day after tomorrow", "มะรืน"}, 2},
	{[]string{"next week", "สัปดาห์หน้า"}, 7},
	{[]string{"tomorrow", "พรุ่งนี้"}, 1},
}

var dueStrip = regexp.MustCompile(`(?i)day after tomorrow|มะรืนนี้|มะรืน|next week|สัปดาห์หน้า|tomorrow|พรุ่งนี้`)

var asciiWord = regexp.MustCompile(`^[a-z]+$`)

// Assistant answers free text without an external model.
type Assistant struct {
	loc *time.Location
}

// NewAssistant creates an assistant that schedules due dates in loc.
func NewAssistant(loc *time.Location) *Assistant {
	if loc == nil {
		loc = time.UTC
	}
	return &Assistant{loc: loc}
}

// Chat returns a keyword-matched reply pointing at the relevant commands.
func (a *Assistant) Chat(_ context.Context, text string) (string, error) {
	lower := strings.ToLower(text)
	for _, r := range chatRules {
		if matchesAny(lower, r.keywords) {
			return r.reply, nil
		}
	}
	return defaultReply, nil
}

// ExtractTask derives a title and optional 09:00 due date from a task sentence.
func (a *Assistant) ExtractTask(text string, now time.Time) TaskDraft {
	lower := strings.ToLower(text)
	var draft TaskDraft
	for _, k := range dueKeywords {
		if containsAny(lower, k.phrases) {
			d := now.In(a.loc).AddDate(0, 0, k.days)
			due := time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, a.loc)
			draft.DueDate = &due
			break
		}
	}

	title := strings.Join(strings.Fields(dueStrip.ReplaceAllString(text, " ")), " ")
	if title == "" {
		title = strings.TrimSpace(text)
	}
	draft.Title = truncateRunes(title, maxTitleRunes)
	if utf8.RuneCountInString(text) > maxTitleRunes {
		draft.Description = text
	}
	return draft
}

// Summarize lists the last lines of a transcript with a total count.
func (a *Assistant) Summarize(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return "📭 ไม่มีข้อความให้สรุป"
	}
	total := len(lines)
	preview := lines
	if total > maxSummaryLines {
		preview = lines[total-maxSummaryLines:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 สรุปแชท (%d ข้อความ):\n\n", total)
	for i, l := range preview {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, truncateRunes(l, maxLineRunes))
	}
	if total > maxSummaryLines {
		fmt.Fprintf(&b, "\n\n... และอีก %d ข้อความก่อนหน้า", total-maxSummaryLines)
	}
	return b.String()
}

// matchesAny matches latin keywords as whole words and Thai keywords as substrings, since Thai has no word spacing.
func matchesAny(lower string, keywords []string) bool {
	var words map[string]bool
	for _, kw := range keywords {
		if !asciiWord.MatchString(kw) {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if words == nil {
			words = map[string]bool{}
			for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return r < 'a' || r > 'z' }) {
				words[w] = true
			}
		}
		if words[kw] {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
