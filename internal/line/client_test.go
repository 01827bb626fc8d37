package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	short := strings.Repeat("ก", MaxReplyRunes)
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("ข", MaxReplyRunes+50)
	got := Truncate(long)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.Equal(t, MaxReplyRunes+utf8.RuneCountInString(TruncationMarker), utf8.RuneCountInString(got))
}

func TestReplySendsTruncatedText(t *testing.T) {
	var got replyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "tok", APIBaseURL: srv.URL}, nil)
	require.NoError(t, c.Reply(context.Background(), "rt", strings.Repeat("a", 6000)))
	assert.Equal(t, "rt", got.ReplyToken)
	require.Len(t, got.Messages, 1)
	assert.True(t, strings.HasSuffix(got.Messages[0].Text, TruncationMarker))
}

func TestPushReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"invalid to"}`)
	}))
	defer srv.Close()

	err := NewClient(Config{APIBaseURL: srv.URL}, nil).Push(context.Background(), "U1", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestReplyRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	assert.Error(t, c.Reply(context.Background(), "rt", "hi"))
}

func TestContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/m1/content", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	c := NewClient(Config{DataBaseURL: srv.URL}, nil)
	content, err := c.Content(context.Background(), "m1", 10)
	require.NoError(t, err)
	assert.Equal(t, "image/png", content.ContentType)
	assert.Len(t, content.Data, 10)

	_, err = c.Content(context.Background(), "m1", 9)
	assert.ErrorIs(t, err, ErrContentTooLarge)
}
