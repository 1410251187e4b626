package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/leasing-ai-platform/internal/leads"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// Service alerts the property manager about new leads.
type Service struct {
	email     EmailSender
	recipient string
	property  string
	logger    *logging.Logger
}

// NewService creates a notification service. A blank recipient disables alerts.
func NewService(email EmailSender, recipient, propertyName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:     email,
		recipient: strings.TrimSpace(recipient),
		property:  propertyName,
		logger:    logger,
	}
}

// NotifyNewLead emails a summary of a freshly captured lead.
func (s *Service) NotifyNewLead(ctx context.Context, lead *leads.Lead) error {
	if s == nil || s.email == nil || s.recipient == "" || lead == nil {
		return nil
	}

	name := strings.TrimSpace(lead.FirstName + " " + lead.LastName)
	if name == "" {
		name = "A visitor"
	}
	subject := fmt.Sprintf("New lead from website chat - %s", name)
	if s.property != "" {
		subject = fmt.Sprintf("New lead for %s - %s", s.property, name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s just shared their details with the leasing assistant.\n\n", name)
	writeLine(&b, "Phone", lead.Phone)
	writeLine(&b, "Email", lead.Email)
	writeLine(&b, "Move-in", lead.MoveInDate)
	tour := strings.TrimSpace(strings.Join(nonEmpty(lead.TourDate, lead.TourTime), " at "))
	writeLine(&b, "Tour", tour)
	writeLine(&b, "Source", lead.Source)
	writeLine(&b, "Lead ID", lead.ID)

	if err := s.email.Send(ctx, EmailMessage{To: s.recipient, Subject: subject, Body: b.String()}); err != nil {
		s.logger.Error("notify: failed to send new lead alert", "error", err, "lead_id", lead.ID)
		return fmt.Errorf("notify: new lead alert: %w", err)
	}
	return nil
}

func writeLine(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
