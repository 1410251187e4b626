package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "leasing@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "leasing@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Leasing Assistant" {
		t.Errorf("expected default from name, got %q", sender.fromName)
	}
}

type fakeSendGrid struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	cases := []struct {
		name    string
		api     *fakeSendGrid
		msg     EmailMessage
		wantErr bool
		sends   int
	}{
		{name: "accepted", api: &fakeSendGrid{status: 202}, msg: EmailMessage{To: "pm@example.com", Subject: "s", Body: "b"}, sends: 1},
		{name: "rejected", api: &fakeSendGrid{status: 401}, msg: EmailMessage{To: "pm@example.com"}, wantErr: true, sends: 1},
		{name: "transport error", api: &fakeSendGrid{err: errors.New("dial")}, msg: EmailMessage{To: "pm@example.com"}, wantErr: true, sends: 1},
		{name: "no recipient", api: &fakeSendGrid{status: 202}, msg: EmailMessage{Subject: "s"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &SendGridSender{client: tc.api, fromEmail: "leasing@example.com", fromName: "Leasing", logger: logging.Default()}
			err := sender.Send(context.Background(), tc.msg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if len(tc.api.sent) != tc.sends {
				t.Fatalf("expected %d sends, got %d", tc.sends, len(tc.api.sent))
			}
		})
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	if err := sender.Send(context.Background(), EmailMessage{To: "pm@example.com"}); err == nil {
		t.Error("expected error when client is nil")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	if NewSESSender(&fakeSES{}, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without a from address")
	}

	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "leasing@example.com"}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "pm@example.com", Subject: "New lead", Body: "Frank"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "Leasing Assistant <leasing@example.com>" {
		t.Errorf("unexpected from address %q", got)
	}
	if api.input.Content.Simple.Body.Html != nil {
		t.Error("expected no html part")
	}
	if got := aws.ToString(api.input.Content.Simple.Body.Text.Data); got != "Frank" {
		t.Errorf("unexpected text body %q", got)
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "pm@example.com"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}
