package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/leasing-ai-platform/internal/crmsync"
	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
	"github.com/wolfman30/leasing-ai-platform/internal/leads"
	"github.com/wolfman30/leasing-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/leasing-ai-platform/internal/property"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

var (
	// ErrEmptyMessage rejects a turn without visitor text.
	ErrEmptyMessage = errors.New("conversation: message is required")
	// ErrCompletionUnavailable means the model call failed or timed out. Nothing was
	// persisted, so the client may retry with the same request id.
	ErrCompletionUnavailable = errors.New("conversation: completion service unavailable")
)

const (
	defaultCompletionTimeout = 20 * time.Second
	defaultMaxTokens         = 200
	defaultNotifyTimeout     = 10 * time.Second
)

// TurnRequest is one inbound visitor message.
type TurnRequest struct {
	Message   string
	SessionID string
	RequestID string
	Source    string
}

// TurnResponse is the assistant reply for a turn. Replayed is set when the reply was
// recorded by an earlier delivery of the same request.
type TurnResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Replayed  bool   `json:"-"`
	State     State  `json:"-"`
}

// LeadRepository is the subset of leads.Repository the orchestrator writes to.
type LeadRepository interface {
	Create(ctx context.Context, req *leads.CreateLeadRequest) (*leads.Lead, error)
	Update(ctx context.Context, id string, req *leads.UpdateLeadRequest) (*leads.Lead, error)
}

// LeadNotifier is told about each newly created lead.
type LeadNotifier interface {
	NotifyNewLead(ctx context.Context, lead *leads.Lead) error
}

// PropertyConfigSource supplies the operator configuration.
type PropertyConfigSource interface {
	Get(ctx context.Context) (*property.Config, error)
}

// Orchestrator runs one chat turn: extract, derive, prompt, complete, persist, sync.
type Orchestrator struct {
	sessions   SessionStore
	llm        LLMClient
	leads      LeadRepository
	dispatcher crmsync.Dispatcher
	notifier   LeadNotifier
	properties PropertyConfigSource
	prompts    *PromptBuilder
	rules      Rules
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger
	now        func() time.Time

	completionTimeout time.Duration
	notifyTimeout     time.Duration
	maxTokens         int32
	model             string
	source            string
	companyID         string
	propertyInterest  string

	alerts sync.WaitGroup
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithRules(r Rules) OrchestratorOption {
	return func(o *Orchestrator) {
		o.rules = r
	}
}

func WithLeadRepository(repo LeadRepository) OrchestratorOption {
	return func(o *Orchestrator) {
		o.leads = repo
	}
}

func WithSyncDispatcher(d crmsync.Dispatcher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.dispatcher = d
	}
}

func WithLeadNotifier(n LeadNotifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithNotifyTimeout bounds a background new-lead alert.
func WithNotifyTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.notifyTimeout = d
		}
	}
}

func WithPropertyConfig(src PropertyConfigSource) OrchestratorOption {
	return func(o *Orchestrator) {
		o.properties = src
	}
}

func WithMetrics(m *metrics.ChatMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(l *logging.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCompletion sets the model id, token cap and timeout for the completion call.
func WithCompletion(model string, maxTokens int, timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.model = model
		if maxTokens > 0 {
			o.maxTokens = int32(maxTokens)
		}
		if timeout > 0 {
			o.completionTimeout = timeout
		}
	}
}

// WithLeadSource sets the attribution stamped on local leads and CRM payloads.
func WithLeadSource(source, companyID, propertyInterest string) OrchestratorOption {
	return func(o *Orchestrator) {
		if source != "" {
			o.source = source
		}
		o.companyID = companyID
		o.propertyInterest = propertyInterest
	}
}

func NewOrchestrator(sessions SessionStore, llm LLMClient, opts ...OrchestratorOption) *Orchestrator {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	o := &Orchestrator{
		sessions:          sessions,
		llm:               llm,
		rules:             DefaultRules(),
		logger:            logging.Default(),
		now:               func() time.Time { return time.Now().UTC() },
		completionTimeout: defaultCompletionTimeout,
		notifyTimeout:     defaultNotifyTimeout,
		maxTokens:         defaultMaxTokens,
		source:            "website-chat",
	}
	for _, opt := range opts {
		opt(o)
	}
	o.prompts = NewPromptBuilder(o.rules)
	return o
}

// HandleTurn processes one visitor message. Only an empty message or a failed completion
// fail the turn; storage, lead and sync problems are logged and the reply still goes out.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	started := time.Now()
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess := o.loadSession(ctx, req.SessionID)
	logger := o.logger.With("session_id", sess.SessionID)

	if reply, ok := sess.ReplyFor(req.RequestID); ok {
		logger.Info("replaying recorded reply", "request_id", req.RequestID)
		st := DeriveSessionState(sess, o.rules)
		o.metrics.ObserveTurn(string(st.Phase), "replayed", time.Since(started).Seconds())
		return &TurnResponse{Message: reply, SessionID: sess.SessionID, Replayed: true, State: st}, nil
	}

	asked := DeriveState(sess.CollectedFields, o.rules).NextField
	extracted := leadfields.Extract(text, leadfields.WithNameExpected(asked == leadfields.FirstName))
	added := sess.MergeFields(extracted)
	st := DeriveState(sess.CollectedFields, o.rules)

	cfg := o.propertyConfig(ctx, logger)
	system := o.prompts.Build(cfg, sess.CollectedFields, st, text)

	reply, err := o.complete(ctx, system, sess.Messages, text)
	if err != nil {
		logger.Error("completion failed", "error", err)
		o.metrics.ObserveTurn(string(st.Phase), "completion_failed", time.Since(started).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}
	if st.IsComplete {
		reply = FillTemplate(reply, sess.CollectedFields)
	}

	sess.AppendTurn(text, reply, req.RequestID, o.now())
	if st.LeadQualified {
		sess.LeadCaptured = true
		if sess.CollectedFields.Has(leadfields.TourDate) {
			sess.TourBooked = true
		}
	}
	o.persistLead(ctx, sess, st, logger)

	if err := o.sessions.Save(ctx, sess); err != nil {
		o.metrics.ObserveStoreError("save")
		logger.Error("failed to save session", "error", err)
	}

	if st.LeadQualified && !sess.LeadSyncedToExternal {
		o.dispatchSync(ctx, sess, req.Source, logger)
	}

	for _, f := range added {
		o.metrics.ObserveFieldCaptured(string(f))
	}
	o.metrics.ObserveTurn(string(st.Phase), "ok", time.Since(started).Seconds())
	return &TurnResponse{Message: reply, SessionID: sess.SessionID, State: st}, nil
}

// Greeting returns the operator greeting and pre-creates an empty session.
func (o *Orchestrator) Greeting(ctx context.Context) (*TurnResponse, error) {
	cfg := o.propertyConfig(ctx, o.logger)
	sess := NewSession("", o.now())
	if err := o.sessions.Save(ctx, sess); err != nil {
		o.metrics.ObserveStoreError("save")
		o.logger.Error("failed to pre-create session", "error", err, "session_id", sess.SessionID)
	}
	return &TurnResponse{
		Message:   cfg.Greeting,
		SessionID: sess.SessionID,
		State:     DeriveSessionState(sess, o.rules),
	}, nil
}

func (o *Orchestrator) loadSession(ctx context.Context, id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		return NewSession("", o.now())
	}
	sess, err := o.sessions.Get(ctx, id)
	if err == nil {
		if sess.CollectedFields == nil {
			sess.CollectedFields = leadfields.Fields{}
		}
		return sess
	}
	if !errors.Is(err, ErrSessionNotFound) {
		o.metrics.ObserveStoreError("get")
		o.logger.Error("failed to load session, starting fresh", "error", err, "session_id", id)
	}
	return NewSession(id, o.now())
}

func (o *Orchestrator) propertyConfig(ctx context.Context, logger *logging.Logger) *property.Config {
	if o.properties == nil {
		return property.DefaultConfig()
	}
	cfg, err := o.properties.Get(ctx)
	if err != nil {
		logger.Warn("failed to load property config, using defaults", "error", err)
		return property.DefaultConfig()
	}
	return cfg.WithDefaults()
}

func (o *Orchestrator) complete(ctx context.Context, system string, history []ChatMessage, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.completionTimeout)
	defer cancel()
	started := time.Now()
	resp, err := o.llm.Complete(callCtx, leasingRequest(o.model, system, history, text, o.maxTokens))
	if err != nil {
		o.metrics.ObserveCompletion("error", time.Since(started).Seconds())
		return "", err
	}
	o.metrics.ObserveCompletion("ok", time.Since(started).Seconds())
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", errors.New("empty completion")
	}
	return reply, nil
}

// persistLead creates the lead the first time the qualify policy holds and updates it afterwards.
func (o *Orchestrator) persistLead(ctx context.Context, sess *Session, st State, logger *logging.Logger) {
	if o.leads == nil || !st.LeadQualified {
		return
	}
	fields := sess.CollectedFields
	if sess.LeadID != "" {
		_, err := o.leads.Update(ctx, sess.LeadID, &leads.UpdateLeadRequest{
			FirstName:  fields.Get(leadfields.FirstName),
			LastName:   fields.Get(leadfields.LastName),
			Phone:      fields.Get(leadfields.Phone),
			Email:      fields.Get(leadfields.Email),
			MoveInDate: fields.Get(leadfields.MoveInDate),
			TourDate:   fields.Get(leadfields.TourDate),
			TourTime:   fields.Get(leadfields.TourTime),
			Transcript: sess.Transcript(),
		})
		if err != nil {
			logger.Error("failed to update lead", "error", err, "lead_id", sess.LeadID)
		}
		return
	}

	lead, err := o.leads.Create(ctx, &leads.CreateLeadRequest{
		FirstName:        fields.Get(leadfields.FirstName),
		LastName:         fields.Get(leadfields.LastName),
		Phone:            fields.Get(leadfields.Phone),
		Email:            fields.Get(leadfields.Email),
		MoveInDate:       fields.Get(leadfields.MoveInDate),
		TourDate:         fields.Get(leadfields.TourDate),
		TourTime:         fields.Get(leadfields.TourTime),
		Transcript:       sess.Transcript(),
		Source:           o.source,
		PropertyInterest: o.propertyInterest,
		SessionID:        sess.SessionID,
	})
	if err != nil {
		logger.Error("failed to create lead", "error", err)
		return
	}
	sess.SetLeadID(lead.ID)
	o.metrics.ObserveLeadCaptured()
	logger.Info("lead captured", "lead_id", lead.ID)

	if o.notifier != nil {
		o.notifyNewLead(ctx, *lead, logger)
	}
}

// notifyNewLead sends the alert off the request path. The request context only
// contributes values.
func (o *Orchestrator) notifyNewLead(ctx context.Context, lead leads.Lead, logger *logging.Logger) {
	base := context.WithoutCancel(ctx)
	o.alerts.Add(1)
	go func() {
		defer o.alerts.Done()
		ctx, cancel := context.WithTimeout(base, o.notifyTimeout)
		defer cancel()
		if err := o.notifier.NotifyNewLead(ctx, &lead); err != nil {
			logger.Warn("new lead alert failed", "error", err, "lead_id", lead.ID)
		}
	}()
}

// Wait blocks until background new-lead alerts finish.
func (o *Orchestrator) Wait() {
	o.alerts.Wait()
}

func (o *Orchestrator) dispatchSync(ctx context.Context, sess *Session, source string, logger *logging.Logger) {
	if o.dispatcher == nil {
		return
	}
	if source == "" {
		source = o.source
	}
	job := crmsync.Job{
		SessionID:        sess.SessionID,
		LeadID:           sess.LeadID,
		Fields:           sess.CollectedFields.Clone(),
		Source:           source,
		CompanyID:        o.companyID,
		PropertyInterest: o.propertyInterest,
		CreatedAt:        o.now(),
	}
	if err := o.dispatcher.Dispatch(ctx, job); err != nil {
		logger.Error("lead sync dispatch failed", "error", err)
	}
}
