package line

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

// Kind is the classified type of an inbound event.
type Kind string

const (
	KindText     Kind = "text"
	KindMedia    Kind = "media"
	KindFollow   Kind = "follow"
	KindUnfollow Kind = "unfollow"
	KindJoin     Kind = "join"
	KindLeave    Kind = "leave"
	KindOther    Kind = "other"
)

// Payload is one webhook delivery body.
type Payload struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// Source identifies where an event came from.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// IsGroup reports whether the event came from a group or multi-person room.
func (s Source) IsGroup() bool { return s.Type == "group" || s.Type == "room" }

// ConversationID is the tenant identity: the group or room id for shared chats, otherwise the user id.
func (s Source) ConversationID() string {
	switch {
	case s.GroupID != "":
		return s.GroupID
	case s.RoomID != "":
		return s.RoomID
	default:
		return s.UserID
	}
}

// Mentionee is one @-mention inside a text message.
type Mentionee struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	UserID string `json:"userId,omitempty"`
	Type   string `json:"type,omitempty"`
	IsSelf bool   `json:"isSelf,omitempty"`
}

// Message is the message object of a message event.
type Message struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	Mention  *struct {
		Mentionees []Mentionee `json:"mentionees"`
	} `json:"mention,omitempty"`
}

// DeliveryContext tells whether LINE is redelivering an event.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Event is a decoded webhook event.
type Event struct {
	Type            string          `json:"type"`
	Mode            string          `json:"mode,omitempty"`
	Timestamp       int64           `json:"timestamp"`
	Source          Source          `json:"source"`
	WebhookEventID  string          `json:"webhookEventId,omitempty"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
	ReplyToken      string          `json:"replyToken,omitempty"`
	Message         *Message        `json:"message,omitempty"`

	Kind Kind            `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

var mediaTypes = map[string]bool{"image": true, "video": true, "audio": true, "file": true}

// ParsePayload decodes the envelope. Individual events stay raw so one malformed event does not poison the batch.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return &p, nil
}

// ParseEvent decodes and classifies one raw event.
func ParseEvent(raw json.RawMessage) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	ev.Raw = raw
	ev.Kind = Classify(&ev)
	return &ev, nil
}

// Classify maps LINE event types onto Kind.
func Classify(ev *Event) Kind {
	switch ev.Type {
	case "message":
		if ev.Message == nil {
			return KindOther
		}
		if ev.Message.Type == "text" {
			return KindText
		}
		if mediaTypes[ev.Message.Type] {
			return KindMedia
		}
		return KindOther
	case "follow":
		return KindFollow
	case "unfollow":
		return KindUnfollow
	case "join":
		return KindJoin
	case "leave":
		return KindLeave
	}
	return KindOther
}

// MentionsBot reports whether a text message mentions the bot, either flagged isSelf or by bot user id.
func (ev *Event) MentionsBot(botUserID string) bool {
	if ev.Message == nil || ev.Message.Mention == nil {
		return false
	}
	for _, m := range ev.Message.Mention.Mentionees {
		if m.IsSelf || (botUserID != "" && m.UserID == botUserID) {
			return true
		}
	}
	return false
}

// Mentions returns the user ids mentioned in a text message, excluding the bot.
func (ev *Event) Mentions() []Mentionee {
	if ev.Message == nil || ev.Message.Mention == nil {
		return nil
	}
	out := make([]Mentionee, 0, len(ev.Message.Mention.Mentionees))
	for _, m := range ev.Message.Mention.Mentionees {
		if !m.IsSelf {
			out = append(out, m)
		}
	}
	return out
}

// MentionText returns the surface text of m ("@name"). Offsets are UTF-16 code units.
func (ev *Event) MentionText(m Mentionee) string {
	if ev.Message == nil {
		return ""
	}
	units := utf16.Encode([]rune(ev.Message.Text))
	if m.Index < 0 || m.Length <= 0 || m.Index+m.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[m.Index : m.Index+m.Length]))
}

// TextWithoutBotMention returns the message text with every mention of the bot cut out.
func (ev *Event) TextWithoutBotMention(botUserID string) string {
	if ev.Message == nil {
		return ""
	}
	if ev.Message.Mention == nil {
		return strings.TrimSpace(ev.Message.Text)
	}
	units := utf16.Encode([]rune(ev.Message.Text))
	var bot []Mentionee
	for _, m := range ev.Message.Mention.Mentionees {
		if (m.IsSelf || (botUserID != "" && m.UserID == botUserID)) && m.Index >= 0 && m.Length > 0 && m.Index+m.Length <= len(units) {
			bot = append(bot, m)
		}
	}
	// cut from the end so earlier offsets stay valid
	sort.Slice(bot, func(i, j int) bool { return bot[i].Index > bot[j].Index })
	for _, m := range bot {
		joined := joinAtCut(string(utf16.Decode(units[:m.Index])), string(utf16.Decode(units[m.Index+m.Length:])))
		units = utf16.Encode([]rune(joined))
	}
	return strings.TrimSpace(string(utf16.Decode(units)))
}

// joinAtCut closes the gap left by a removed mention. Line breaks on either side are kept.
func joinAtCut(left, right string) string {
	left = strings.TrimRight(left, inlineSpace)
	right = strings.TrimLeft(right, inlineSpace)
	if left == "" || right == "" || strings.HasSuffix(left, "\n") || strings.HasPrefix(right, "\n") {
		return left + right
	}
	return left + " " + right
}

const inlineSpace = " \t\u00a0\u3000"
