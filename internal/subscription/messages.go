package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/arkai-assistant/backend/internal/models"
)

// User-facing texts.
const (
	MsgQuotaUnavailable = "❌ ตรวจสอบโควต้าไม่สำเร็จ กรุณาลองใหม่"

	MsgSummaryTodayLocked = "📋 สรุปแชท เป็นฟีเจอร์สำหรับแผน Basic ขึ้นไป\n" +
		"⭐ Basic ฿200/เดือน → สรุปวันนี้\n" +
		"🔥 Pro ฿300/เดือน → สรุปวันนี้+เมื่อวาน"
	MsgSummaryYesterdayLocked = "📋 สรุปเมื่อวาน เป็นฟีเจอร์สำหรับแผน Pro ขึ้นไป\n" +
		"🔥 Pro ฿300/เดือน → สรุปวันนี้+เมื่อวาน"
	MsgAssignLocked = "👤 มอบหมายงาน เป็นฟีเจอร์สำหรับแผน Basic ขึ้นไป\n⭐ Basic ฿200/เดือน"
)

var planEmoji = map[models.Plan]string{
	models.PlanFree:     "🆓",
	models.PlanBasic:    "⭐",
	models.PlanPro:      "🔥",
	models.PlanBusiness: "💎",
}

// PlanLabel renders "⭐ BASIC".
func PlanLabel(plan models.Plan) string {
	emoji, ok := planEmoji[plan]
	if !ok {
		emoji = planEmoji[models.PlanFree]
	}
	return emoji + " " + strings.ToUpper(string(plan))
}

func aiQuotaMessage(plan models.Plan, limits Limits) string {
	name := string(plan)
	if plan == models.PlanFree || name == "" {
		name = "Free"
	}
	return fmt.Sprintf("⚡ AI ครบโควต้าวันนี้แล้ว (%d ครั้ง)\n📌 แผนปัจจุบัน: %s\n\n"+
		"💡 อัพเกรดเพื่อใช้ AI เพิ่ม:\n"+
		"⭐ Basic ฿200/เดือน → 50 ครั้ง/วัน\n"+
		"🔥 Pro ฿300/เดือน → 200 ครั้ง/วัน\n"+
		"💎 Business ฿500/เดือน → ไม่จำกัด", limits.AIChatsPerDay, name)
}

func taskQuotaMessage(limits Limits) string {
	return fmt.Sprintf("📋 สร้างงานครบโควต้าเดือนนี้ (%d งาน)\n💡 อัพเกรดเพื่อสร้างงานเพิ่ม", limits.TasksPerMonth)
}

func storageQuotaMessage(used int64, limits Limits) string {
	return fmt.Sprintf("📁 พื้นที่เก็บไฟล์เต็ม (%dMB / %dMB)\n💡 อัพเกรดเพื่อเพิ่มพื้นที่", used/mb, limits.StorageBytes/mb)
}

func limitText(n int) string {
	if n >= Unlimited {
		return "∞"
	}
	return fmt.Sprintf("%d", n)
}

// FormatMB renders bytes as megabytes with one decimal.
func FormatMB(n int64) string {
	return fmt.Sprintf("%.1fMB", float64(n)/mb)
}

// PlanStatus renders the /plan reply.
func PlanStatus(org *models.Organization, loc *time.Location) string {
	limits := LimitsFor(org.Plan)
	var expires string
	if org.PlanExpiresAt != nil {
		expires = "\n📅 หมดอายุ: " + org.PlanExpiresAt.In(loc).Format("02/01/2006")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 แผนของคุณ: %s%s\n\n", PlanLabel(org.Plan), expires)
	fmt.Fprintf(&b, "🤖 AI แชท: %d/%s วันนี้\n", org.AIChatsToday, limitText(limits.AIChatsPerDay))
	fmt.Fprintf(&b, "✅ งาน: %d/%s เดือนนี้\n", org.TasksThisMonth, limitText(limits.TasksPerMonth))
	fmt.Fprintf(&b, "📁 พื้นที่: %s / %dMB\n\n", FormatMB(org.StorageUsedBytes), limits.StorageBytes/mb)
	b.WriteString("────────────────\n💡 อัพเกรดแผน:\n")
	b.WriteString("⭐ Basic ฿200/เดือน — AI 50/วัน, 5GB\n")
	b.WriteString("🔥 Pro ฿300/เดือน — AI 200/วัน, 15GB\n")
	b.WriteString("💎 Business ฿500/เดือน — ไม่จำกัด, 50GB\n")
	b.WriteString("💎 Business ฿2,500/ปี (save ฿3,500)\n\n")
	b.WriteString("📩 อัพเกรด: /upgrade basic|pro|business [monthly|yearly]")
	return b.String()
}

// UpgradeConfirmation is pushed once a payment completes.
func UpgradeConfirmation(plan models.Plan, period models.Period, expiresAt time.Time, loc *time.Location) string {
	periodText := "1 เดือน"
	if period == models.PeriodYearly {
		periodText = "1 ปี"
	}
	label := PlanLabel(plan)
	return fmt.Sprintf("%s อัพเกรดสำเร็จ!\n\n📊 แผนใหม่: %s\n📅 ใช้ได้ถึง: %s (%s)\n\n"+
		"🎉 ขอบคุณที่สนับสนุน Arkai!\nตอนนี้คุณสามารถใช้ฟีเจอร์ใหม่ได้ทันทีครับ\nพิมพ์ /plan เพื่อดูรายละเอียดแผนของคุณ",
		planEmoji[plan], label, expiresAt.In(loc).Format("02/01/2006"), periodText)
}
