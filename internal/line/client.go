package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// MaxReplyRunes keeps replies under the platform's 5000 character limit with room for the marker.
	MaxReplyRunes = 4900
	// TruncationMarker is appended to cut replies.
	TruncationMarker = "\n...(ตัดข้อความเนื่องจากยาวเกินไป)"
)

// ErrContentTooLarge is returned when downloaded content exceeds the caller's limit.
var ErrContentTooLarge = errors.New("content exceeds size limit")

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api status %d: %s", e.Status, e.Body)
}

// Content is a downloaded message attachment.
type Content struct {
	Data        []byte
	ContentType string
}

// Config holds Messaging API endpoints and credentials.
type Config struct {
	AccessToken string
	APIBaseURL  string
	DataBaseURL string
	Timeout     time.Duration
}

// Client calls the Messaging API.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a client whose every call is bounded by cfg.Timeout.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.line.me"
	}
	if cfg.DataBaseURL == "" {
		cfg.DataBaseURL = "https://api-data.line.me"
	}
	return &Client{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg, logger: logger}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Truncate cuts text to MaxReplyRunes and appends TruncationMarker when it was longer.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxReplyRunes {
		return text
	}
	r := []rune(text)
	return string(r[:MaxReplyRunes]) + TruncationMarker
}

// Reply answers an event through its reply token. Reply tokens expire quickly, so failures are returned, never retried.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return errors.New("empty reply token")
	}
	return c.post(ctx, c.cfg.APIBaseURL+"/v2/bot/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: Truncate(text)}},
	})
}

// Push sends an unsolicited message to a user, group or room id.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if to == "" {
		return errors.New("empty push target")
	}
	return c.post(ctx, c.cfg.APIBaseURL+"/v2/bot/message/push", pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: Truncate(text)}},
	})
}

// Content downloads the binary body of a media message, refusing anything larger than maxBytes.
func (c *Client) Content(ctx context.Context, messageID string, maxBytes int64) (*Content, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.cfg.DataBaseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download content: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, ErrContentTooLarge
	}
	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrContentTooLarge
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Content{Data: data, ContentType: contentType}, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
