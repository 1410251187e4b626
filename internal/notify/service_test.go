package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/leasing-ai-platform/internal/leads"
)

type captureSender struct {
	msgs []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestNotifyNewLead(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, "pm@example.com", "South Oak Apartments", nil)

	err := svc.NotifyNewLead(context.Background(), &leads.Lead{
		ID:        "lead-1",
		FirstName: "Frank",
		Phone:     "5095551212",
		TourDate:  "tomorrow",
		TourTime:  "2:00 PM",
		Source:    "website-chat",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.msgs))
	}
	msg := sender.msgs[0]
	if msg.To != "pm@example.com" || msg.Subject != "New lead for South Oak Apartments - Frank" {
		t.Fatalf("unexpected message header: %+v", msg)
	}
	for _, want := range []string{"Phone: 5095551212", "Tour: tomorrow at 2:00 PM", "Lead ID: lead-1"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "Email:") {
		t.Errorf("blank fields should be omitted:\n%s", msg.Body)
	}
}

func TestNotifyNewLead_DisabledWithoutRecipient(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, " ", "", nil)
	if err := svc.NotifyNewLead(context.Background(), &leads.Lead{ID: "lead-1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.msgs) != 0 {
		t.Fatal("expected no email without a recipient")
	}

	var nilSvc *Service
	if err := nilSvc.NotifyNewLead(context.Background(), &leads.Lead{}); err != nil {
		t.Fatalf("nil service: %v", err)
	}
}

func TestNotifyNewLead_PropagatesSendError(t *testing.T) {
	sender := &captureSender{err: errors.New("quota")}
	svc := NewService(sender, "pm@example.com", "", nil)
	err := svc.NotifyNewLead(context.Background(), &leads.Lead{ID: "lead-1", Email: "a@b.co"})
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
	if got := sender.msgs[0].Subject; got != "New lead from website chat - A visitor" {
		t.Errorf("unexpected subject %q", got)
	}
}
