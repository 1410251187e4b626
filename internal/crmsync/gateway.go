package crmsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
	defaultTimeout     = 10 * time.Second
	maxResponseBytes   = 64 << 10
)

// ErrNotConfigured is returned when no CRM endpoint is set.
var ErrNotConfigured = errors.New("crmsync: lead sync url not configured")

// StatusError is a non-2xx CRM response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crmsync: crm responded %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsPermanent reports whether retrying err is pointless.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Temporary()
	}
	return false
}

// Lead is the body the CRM intake endpoint accepts.
type Lead struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	PropertyInterest string `json:"propertyInterest"`
	Source           string `json:"source"`
	CompanyID        string `json:"companyId"`
	Message          string `json:"message"`
	PreferredDate    string `json:"preferredDate,omitempty"`
	PreferredTime    string `json:"preferredTime,omitempty"`
	ExternalRef      string `json:"externalRef"`
}

// LeadFromJob maps collected fields to the CRM payload, normalizing tour date and time.
func LeadFromJob(job Job, norm *leadfields.Normalizer) Lead {
	if norm == nil {
		norm = leadfields.NewNormalizer()
	}
	fields := norm.Fields(job.Fields)
	message := job.Message
	if message == "" {
		message = "Interested via website chat"
	}
	return Lead{
		FirstName:        fields.Get(leadfields.FirstName),
		LastName:         fields.Get(leadfields.LastName),
		Phone:            fields.Get(leadfields.Phone),
		Email:            fields.Get(leadfields.Email),
		PropertyInterest: job.PropertyInterest,
		Source:           job.Source,
		CompanyID:        job.CompanyID,
		Message:          message,
		PreferredDate:    fields.Get(leadfields.TourDate),
		PreferredTime:    fields.Get(leadfields.TourTime),
		ExternalRef:      job.ExternalRef(),
	}
}

// Result describes a completed sync.
type Result struct {
	Success    bool
	ExternalID string
	Status     int
}

// GatewayConfig controls how the CRM client behaves.
type GatewayConfig struct {
	URL         string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// Gateway posts qualified leads to the external CRM with bounded retries.
type Gateway struct {
	url         string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *logging.Logger
	jitter      func(max time.Duration) time.Duration
}

// NewGateway creates a Gateway with defaults for unset values.
func NewGateway(cfg GatewayConfig) *Gateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		url:         strings.TrimSpace(cfg.URL),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		httpClient:  httpClient,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		logger:      logger,
		jitter:      fullJitter,
	}
}

// Configured reports whether a CRM endpoint is set.
func (g *Gateway) Configured() bool {
	return g != nil && g.url != ""
}

// Sync posts the lead. Network errors, 429 and 5xx are retried with exponential
// backoff and full jitter; other statuses fail immediately.
func (g *Gateway) Sync(ctx context.Context, lead Lead) (Result, error) {
	if !g.Configured() {
		return Result{}, ErrNotConfigured
	}
	body, err := json.Marshal(lead)
	if err != nil {
		return Result{}, fmt.Errorf("crmsync: marshal lead: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, attempt); err != nil {
				return Result{}, err
			}
		}
		res, err := g.post(ctx, body, lead.ExternalRef)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !shouldRetry(err) {
			return res, err
		}
		lastErr = err
		g.logger.Warn("lead sync retry",
			"attempt", attempt+1,
			"status", res.Status,
			"external_ref", lead.ExternalRef,
			"error", err,
		)
	}
	return Result{}, fmt.Errorf("crmsync: giving up after %d attempts: %w", g.maxAttempts, lastErr)
}

func (g *Gateway) post(ctx context.Context, body []byte, externalRef string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("crmsync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if externalRef != "" {
		req.Header.Set("Idempotency-Key", externalRef)
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("crmsync: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{Status: resp.StatusCode}, fmt.Errorf("crmsync: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Status: resp.StatusCode}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var parsed struct {
		LeadID string `json:"leadId"`
	}
	// A 2xx with a body that is not JSON still counts as delivered.
	_ = json.Unmarshal(data, &parsed)
	return Result{Success: true, ExternalID: parsed.LeadID, Status: resp.StatusCode}, nil
}

func (g *Gateway) sleep(ctx context.Context, attempt int) error {
	ceiling := g.baseDelay << (attempt - 1)
	if ceiling <= 0 || ceiling > g.maxDelay {
		ceiling = g.maxDelay
	}
	timer := time.NewTimer(g.jitter(ceiling))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}

func shouldRetry(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return !errors.Is(err, context.Canceled)
}
