package crmsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
	"github.com/wolfman30/leasing-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// SessionMarker reads and flips the per-session sync flag.
type SessionMarker interface {
	LeadSynced(ctx context.Context, sessionID string) (bool, error)
	MarkLeadSynced(ctx context.Context, sessionID, externalID string) error
}

// LeadLinker stores the CRM id on the local lead row.
type LeadLinker interface {
	SetExternalID(ctx context.Context, leadID, externalID string) error
}

type leadSyncer interface {
	Sync(ctx context.Context, lead Lead) (Result, error)
}

// Processor runs one job: post to the CRM, then record the outcome.
type Processor struct {
	gateway    leadSyncer
	sessions   SessionMarker
	leads      LeadLinker
	metrics    *metrics.ChatMetrics
	normalizer *leadfields.Normalizer
	logger     *logging.Logger
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithLeadLinker writes the CRM id back to local lead rows.
func WithLeadLinker(l LeadLinker) ProcessorOption {
	return func(p *Processor) {
		p.leads = l
	}
}

// WithMetrics records sync outcomes.
func WithMetrics(m *metrics.ChatMetrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithNormalizer overrides the clock used for relative tour dates.
func WithNormalizer(n *leadfields.Normalizer) ProcessorOption {
	return func(p *Processor) {
		if n != nil {
			p.normalizer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewProcessor(gateway leadSyncer, sessions SessionMarker, opts ...ProcessorOption) *Processor {
	if gateway == nil {
		panic("crmsync: gateway cannot be nil")
	}
	if sessions == nil {
		panic("crmsync: session marker cannot be nil")
	}
	p := &Processor{
		gateway:    gateway,
		sessions:   sessions,
		normalizer: leadfields.NewNormalizer(),
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process syncs the job unless the session was already synced. The session flag
// only flips after a successful post.
func (p *Processor) Process(ctx context.Context, job Job) error {
	logger := p.logger.With("session_id", job.SessionID, "job_id", job.ID)

	synced, err := p.sessions.LeadSynced(ctx, job.SessionID)
	if err != nil {
		p.metrics.ObserveSync("failed")
		logger.Error("lead sync state unavailable", "error", err)
		return fmt.Errorf("crmsync: read session sync state: %w", err)
	}
	if synced {
		p.metrics.ObserveSync("deduped")
		logger.Debug("lead already synced, skipping")
		return nil
	}

	res, err := p.gateway.Sync(ctx, LeadFromJob(job, p.normalizer))
	if errors.Is(err, ErrNotConfigured) {
		p.metrics.ObserveSync("skipped")
		logger.Debug("lead sync skipped: no crm endpoint configured")
		return nil
	}
	if err != nil {
		p.metrics.ObserveSync("failed")
		logger.Error("lead sync failed", "error", err, "status", res.Status)
		return err
	}

	if err := p.sessions.MarkLeadSynced(ctx, job.SessionID, res.ExternalID); err != nil {
		p.metrics.ObserveSync("unrecorded")
		logger.Error("lead synced but session flag not updated", "error", err)
		return fmt.Errorf("crmsync: mark session synced: %w", err)
	}
	if p.leads != nil && job.LeadID != "" && res.ExternalID != "" {
		if err := p.leads.SetExternalID(ctx, job.LeadID, res.ExternalID); err != nil {
			logger.Warn("failed to link crm id to lead", "error", err, "lead_id", job.LeadID)
		}
	}

	p.metrics.ObserveSync("success")
	logger.Info("lead synced to crm", "external_id", res.ExternalID, "status", res.Status)
	return nil
}
