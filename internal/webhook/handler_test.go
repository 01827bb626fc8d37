package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkai-assistant/backend/config"
	"github.com/arkai-assistant/backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "channel-secret"

var lineCfg = config.LineConfig{ChannelSecret: testSecret, AccessToken: "token"}

type fakeQueue struct {
	bodies [][]byte
	err    error
}

func (f *fakeQueue) EnqueueLineEvents(_ context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

type chanProcessor struct {
	bodies chan []byte
}

func newChanProcessor() *chanProcessor {
	return &chanProcessor{bodies: make(chan []byte, 4)}
}

func (c *chanProcessor) Process(_ context.Context, body []byte) error {
	c.bodies <- body
	return nil
}

func (c *chanProcessor) wait(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-c.bodies:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("body was not processed")
		return nil
	}
}

func serve(h *Handler, payload []byte, headers map[string]string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/webhook", h.Receive)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReceiveWithoutSecretsIs500(t *testing.T) {
	proc := newChanProcessor()
	h := NewHandler(config.LineConfig{}, 0, nil, proc, nil)
	payload := []byte(`{"events":[]}`)

	w := serve(h, payload, map[string]string{HeaderLineSignature: auth.SignLine(payload, testSecret)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, proc.bodies)
}

func TestReceiveBadSignatureIs401(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandler(lineCfg, 0, q, newChanProcessor(), nil)
	payload := []byte(`{"events":[]}`)

	for _, headers := range []map[string]string{
		nil,
		{HeaderLineSignature: auth.SignLine(payload, "other-secret")},
		{HeaderLineSignature: auth.SignLine([]byte(`{"events":[ ]}`), testSecret)},
	} {
		w := serve(h, payload, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	assert.Empty(t, q.bodies)
}

func TestReceiveEnqueuesVerifiedBody(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandler(lineCfg, 0, q, newChanProcessor(), nil)
	payload := []byte(`{"destination":"Ubot","events":[{"type":"follow"}]}`)

	w := serve(h, payload, map[string]string{HeaderLineSignature: auth.SignLine(payload, testSecret)})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, q.bodies, 1)
	assert.Equal(t, payload, q.bodies[0])
}

func TestReceiveFallsBackToInProcess(t *testing.T) {
	payload := []byte(`{"events":[]}`)
	headers := map[string]string{HeaderSignature: auth.SignLine(payload, testSecret)}

	t.Run("enqueue error", func(t *testing.T) {
		proc := newChanProcessor()
		h := NewHandler(lineCfg, 0, &fakeQueue{err: errors.New("redis down")}, proc, nil)

		w := serve(h, payload, headers)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, payload, proc.wait(t))
	})
	t.Run("no queue", func(t *testing.T) {
		proc := newChanProcessor()
		h := NewHandler(lineCfg, 0, nil, proc, nil)

		w := serve(h, payload, headers)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, payload, proc.wait(t))
	})
}

func TestReceiveOversizedBody(t *testing.T) {
	h := NewHandler(lineCfg, 8, &fakeQueue{}, newChanProcessor(), nil)
	payload := []byte(`{"events":[{"type":"follow"}]}`)

	w := serve(h, payload, map[string]string{HeaderLineSignature: auth.SignLine(payload, testSecret)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
