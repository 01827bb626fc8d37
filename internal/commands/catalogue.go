package commands

// Catalogue returns the full command table bound to h.
func Catalogue(h *Handlers) []Command {
	return []Command{
		{Name: "help", Aliases: []string{"help", "วิธีใช้", "ช่วยเหลือ"}, Handler: h.Help},
		{Name: "plan", Aliases: []string{"plan", "แผน", "สถานะแพ็กเกจ", "package"}, Handler: h.Plan},
		{Name: "upgrade", Aliases: []string{"upgrade", "อัพเกรด"}, Handler: h.Upgrade},
		{Name: "storage", Aliases: []string{"storage", "พื้นที่เหลือเท่าไร"}, Handler: h.Storage},
		{Name: "files", Aliases: []string{"files", "เปิดไฟล์ล่าสุด"}, Handler: h.RecentFiles},
		{Name: "findfile", Aliases: []string{"findfile", "file", "หาไฟล์"}, Handler: h.FindFile},
		{Name: "savefile", Aliases: []string{"savefile", "เก็บไฟล์นี้", "เก็บไฟล์"}, Handler: h.SaveFile},
		{Name: "today", Aliases: []string{"today", "sum", "summary", "สรุปวันนี้"}, Handler: h.Today},
		{Name: "yesterday", Aliases: []string{"yesterday", "สรุปเมื่อวาน"}, Handler: h.Yesterday},
		{Name: "topic", Aliases: []string{"topic", "สรุปเรื่อง"}, Handler: h.Topic},
		{Name: "workof", Aliases: []string{"workof", "สรุปงานของ"}, Handler: h.WorkOf},
		{Name: "task", Aliases: []string{"task", "newtask", "งาน", "งาน:", "สร้างงาน"}, Handler: h.Task},
		{Name: "assign", Aliases: []string{"assign", "มอบหมาย"}, Handler: h.Assign},
		{Name: "mytasks", Aliases: []string{"mytasks", "tasks", "งานของฉัน"}, Handler: h.MyTasks},
		{Name: "alltasks", Aliases: []string{"alltasks", "งานทั้งหมด"}, Handler: h.AllTasks},
		{Name: "done", Aliases: []string{"done", "เสร็จ"}, Handler: h.Done},
		{Name: "remind", Aliases: []string{"remind", "เตือนพรุ่งนี้"}, Handler: h.Remind},
		{Name: "daily", Aliases: []string{"daily", "เตือนทุกวัน"}, Handler: h.Daily},
		{Name: "note", Aliases: []string{"note", "จด", "บันทึกว่า"}, Handler: h.Note},
		{Name: "agreements", Aliases: []string{"agreements", "เราตกลงอะไร"}, Handler: h.Agreements},
		{Name: "who", Aliases: []string{"who", "ใครรับผิดชอบ"}, Handler: h.Who},
	}
}

const helpText = `🤖 คำสั่งทั้งหมด

📌 งาน
/งาน [รายละเอียด] สร้างงาน
/มอบหมาย @ชื่อ [งาน] มอบหมายงาน
/งานของฉัน ดูงานของฉัน
/งานทั้งหมด ดูงานทั้งกลุ่ม
/done [หมายเลข] ปิดงาน

⏰ เตือน
/เตือนพรุ่งนี้ [เรื่อง]
/เตือนทุกวัน [เรื่อง]

🧠 ความจำ
/บันทึกว่า [ข้อความ]
/เราตกลงอะไร
/ใครรับผิดชอบ [เรื่อง]

📝 สรุป
/สรุปวันนี้
/สรุปเมื่อวาน
/สรุปเรื่อง [หัวข้อ]
/สรุปงานของ @ชื่อ

📂 ไฟล์
/เก็บไฟล์ /เปิดไฟล์ล่าสุด /หาไฟล์ [ชื่อ]
/storage ดูพื้นที่

💳 แพ็กเกจ
/plan ดูแผนปัจจุบัน
/upgrade อัพเกรดแผน

💬 พิมพ์ข้อความทั่วไปเพื่อคุยกับ AI (ในกลุ่มให้ @ถึงบอท)`
