package commands

import "errors"

// Replies of the router itself.
const (
	MsgUnknownCommand = "ไม่รู้จักคำสั่ง พิมพ์ /help เพื่อดูรายการคำสั่ง"
	MsgGenericError   = "❌ เกิดข้อผิดพลาด กรุณาลองใหม่อีกครั้ง"
	MsgAIUnavailable  = "😅 ขออภัย ตอนนี้ตอบไม่ได้ กรุณาลองใหม่อีกครั้ง"
)

// UserError is a handler failure whose message is safe to show in chat.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

// Userf wraps err with a chat-safe message.
func Userf(message string, err error) error {
	return &UserError{Message: message, Err: err}
}

// userMessage returns the chat-safe text of err, or the generic apology.
func userMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return MsgGenericError
}
