package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatRouter(o *Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Route("/chat", NewHandler(o, nil).Routes)
	return r
}

func postChat(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	o, _ := newTestOrchestrator(t, NewStubLLMClient())
	router := newChatRouter(o)

	rec := postChat(t, router, `{"message":"Do you have parking?"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["sessionId"])
	assert.NotEmpty(t, body["message"])
	assert.Len(t, body, 2)
}

func TestChatHandlerRejectsBadInput(t *testing.T) {
	o, _ := newTestOrchestrator(t, NewStubLLMClient())
	router := newChatRouter(o)

	for _, payload := range []string{`{"message":"   "}`, `{}`, `not json`} {
		rec := postChat(t, router, payload, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func TestChatHandlerCompletionUnavailable(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{errs: []error{errors.New("throttled")}})
	router := newChatRouter(o)

	rec := postChat(t, router, `{"message":"hello","sessionId":"s-1"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestChatHandlerIdempotencyKeyHeader(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"first reply", "second reply"}}
	o, _ := newTestOrchestrator(t, llm)
	router := newChatRouter(o)

	header := map[string]string{"Idempotency-Key": "req-7"}
	first := postChat(t, router, `{"message":"hello","sessionId":"s-1"}`, header)
	second := postChat(t, router, `{"message":"hello","sessionId":"s-1"}`, header)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, llm.calls)
}

func TestGreetingHandler(t *testing.T) {
	o, store := newTestOrchestrator(t, NewStubLLMClient())
	router := newChatRouter(o)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/greeting", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "South Oak Apartments")
	_, err := store.Get(context.Background(), body.SessionID)
	assert.NoError(t, err)
}
