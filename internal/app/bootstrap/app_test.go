package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/conversation"
	"github.com/wolfman30/leasing-ai-platform/internal/crmsync"
	"github.com/wolfman30/leasing-ai-platform/internal/notify"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		SessionBackend:      "memory",
		LeadsBackend:        "memory",
		SessionsTable:       "chat_sessions",
		LLMProvider:         "stub",
		LLMMaxTokens:        200,
		CompletionTimeout:   5 * time.Second,
		LeadQualifyPolicy:   "phone|email",
		CompletePolicy:      "first_name,phone,email,tour_date,tour_time",
		LeadSyncMode:        "inline",
		LeadSyncTimeout:     time.Second,
		LeadSyncMaxAttempts: 1,
		LeadSource:          "website-chat",
		AdminJWTSecret:      "secret",
	}
}

func postChat(t *testing.T, h http.Handler, body string) map[string]string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewInMemoryApp(t *testing.T) {
	app, err := New(context.Background(), testConfig(), Options{Logger: logging.New("error")})
	require.NoError(t, err)
	defer app.Close()

	resp := postChat(t, app.Handler(), `{"message":"Hi, I'm Maya. 509-555-1212"}`)
	assert.NotEmpty(t, resp["sessionId"])
	app.Drain()

	sess, err := app.Sessions.Get(context.Background(), resp["sessionId"])
	require.NoError(t, err)
	assert.NotEmpty(t, sess.LeadID)
	assert.NotNil(t, app.Sync.Inline)
	assert.Nil(t, app.RateLimiter)
}

func TestNewWithRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.ChatRateLimit = 5
	cfg.ChatRateBurst = 5

	app, err := New(context.Background(), cfg, Options{Logger: logging.New("error")})
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)

	resp := postChat(t, app.Handler(), `{"message":"Do you allow cats?"}`)
	assert.True(t, mr.Exists("session:"+resp["sessionId"]))

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["redis"])
}

func TestNewRedisBackendRequiresRedis(t *testing.T) {
	cfg := testConfig()
	cfg.SessionBackend = "redis"

	_, err := New(context.Background(), cfg, Options{Logger: logging.New("error")})
	assert.Error(t, err)
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cases := map[string]func(*appconfig.Config){
		"session":  func(c *appconfig.Config) { c.SessionBackend = "mongo" },
		"leads":    func(c *appconfig.Config) { c.LeadsBackend = "sqlite" },
		"provider": func(c *appconfig.Config) { c.LLMProvider = "openai" },
		"mode":     func(c *appconfig.Config) { c.LeadSyncMode = "batch" },
		"policy":   func(c *appconfig.Config) { c.LeadQualifyPolicy = "phone|fax" },
		"dynamo":   func(c *appconfig.Config) { c.SessionBackend = "dynamodb" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(cfg)
			_, err := New(context.Background(), cfg, Options{Logger: logging.New("error")})
			assert.Error(t, err)
		})
	}
}

func TestAdminLoginNeedsFullConfig(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, adminLogin(cfg, nil))

	hash, err := bcrypt.GenerateFromPassword([]byte("tour-desk-42"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminEmail = "manager@southoak.example"
	cfg.AdminPasswordHash = string(hash)
	cfg.AdminTokenTTL = time.Hour
	require.NotNil(t, adminLogin(cfg, nil))

	app, err := New(context.Background(), cfg, Options{Logger: logging.New("error")})
	require.NoError(t, err)
	defer app.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"email":"manager@southoak.example","password":"tour-desk-42"}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cfg.AdminJWTSecret = ""
	assert.Nil(t, adminLogin(cfg, nil))
}

func TestBuildRules(t *testing.T) {
	cfg := testConfig()
	cfg.AskMoveInDate = true
	rules, err := BuildRules(cfg)
	require.NoError(t, err)
	assert.Equal(t, conversation.DefaultPipeline(true), rules.Pipeline)

	cfg.CollectionPipeline = "phone,first_name"
	rules, err = BuildRules(cfg)
	require.NoError(t, err)
	assert.Len(t, rules.Pipeline, 2)

	cfg.CollectionPipeline = "phone,shoe_size"
	_, err = BuildRules(cfg)
	assert.ErrorIs(t, err, conversation.ErrInvalidPolicy)
}

func TestBuildLLMClientFallbackUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.LLMFallback = "gemini"

	client, closers, err := BuildLLMClient(context.Background(), cfg, nil, logging.New("error"))
	require.NoError(t, err)
	assert.Empty(t, closers)
	assert.IsType(t, &conversation.StubLLMClient{}, client)
}

func TestBuildLLMClientBedrockNeedsModel(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "bedrock"

	_, _, err := BuildLLMClient(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestBuildSyncStackQueueInProcess(t *testing.T) {
	cfg := testConfig()
	cfg.LeadSyncMode = "queue"

	stack, err := BuildSyncStack(cfg, SyncDeps{Sessions: conversation.NewMemorySessionStore()}, nil)
	require.NoError(t, err)
	assert.Equal(t, crmsync.ModeQueue, stack.Mode)
	assert.IsType(t, &crmsync.MemoryQueue{}, stack.Queue)
	assert.NotNil(t, stack.Worker)
	assert.Nil(t, stack.Inline)
}

func TestBuildSyncStackQueueNeedsAWSForSQS(t *testing.T) {
	cfg := testConfig()
	cfg.LeadSyncMode = "queue"
	cfg.LeadSyncQueueURL = "https://sqs.us-east-1.amazonaws.com/123/lead-sync"

	_, err := BuildSyncStack(cfg, SyncDeps{Sessions: conversation.NewMemorySessionStore()}, nil)
	assert.Error(t, err)
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	cfg := testConfig()
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(cfg, nil, nil))

	cfg.SendGridAPIKey = "SG.test"
	cfg.SendGridFromEmail = "leasing@southoak.example"
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(cfg, nil, nil))
}

func TestBuildLeadNotifierDisabledWithoutRecipient(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, BuildLeadNotifier(cfg, nil, "South Oak Apartments", nil))

	cfg.LeadNotifyEmail = "manager@southoak.example"
	assert.NotNil(t, BuildLeadNotifier(cfg, nil, "South Oak Apartments", nil))
}
