package crmsync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
)

// Job is one request to forward a qualified session to the external CRM.
type Job struct {
	ID               string            `json:"id"`
	SessionID        string            `json:"session_id"`
	LeadID           string            `json:"lead_id,omitempty"`
	Fields           leadfields.Fields `json:"fields"`
	Source           string            `json:"source"`
	CompanyID        string            `json:"company_id"`
	PropertyInterest string            `json:"property_interest"`
	Message          string            `json:"message"`
	CreatedAt        time.Time         `json:"created_at"`
}

// ExternalRef is the stable dedupe key the CRM sees for this session.
func (j Job) ExternalRef() string {
	return fmt.Sprintf("%s:%s:%s", j.Source, j.CompanyID, j.SessionID)
}

func encodeJob(job Job) (Job, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("crmsync: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("crmsync: failed to decode job: %w", err)
	}
	if strings.TrimSpace(job.SessionID) == "" {
		return Job{}, fmt.Errorf("crmsync: job %s has no session id", job.ID)
	}
	return job, nil
}
