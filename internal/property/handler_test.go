package property

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

func newTestRouter(store Store) http.Handler {
	r := chi.NewRouter()
	NewHandler(store, logging.Default()).Routes(r)
	return r
}

func TestUpdateConfigPartial(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPut, "/config", strings.NewReader(`{"assistant_name":"Ava","max_sentences":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cfg, _ := store.Get(context.Background())
	if cfg.AssistantName != "Ava" || cfg.MaxSentences != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.PropertyName != DefaultConfig().PropertyName {
		t.Fatalf("expected property name untouched, got %q", cfg.PropertyName)
	}
}

func TestKnowledgeEndpoints(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store)

	put := httptest.NewRequest(http.MethodPut, "/knowledge", strings.NewReader(`{"content":"Two pools and a gym."}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, put)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/knowledge", nil))
	var body knowledgeBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Content != "Two pools and a gym." {
		t.Fatalf("unexpected knowledge %q", body.Content)
	}
}

func TestUpdateTemplateRequiresValue(t *testing.T) {
	router := newTestRouter(NewMemoryStore())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/confirmation-template", strings.NewReader(`{"template":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/confirmation-template", strings.NewReader(`{"template":"See you {name}!"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/confirmation-template", nil))
	if !strings.Contains(rec.Body.String(), "See you {name}!") {
		t.Fatalf("unexpected template body %s", rec.Body.String())
	}
}
