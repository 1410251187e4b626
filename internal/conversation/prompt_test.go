package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
	"github.com/wolfman30/leasing-ai-platform/internal/property"
)

func TestPromptBuilderDeterministic(t *testing.T) {
	b := NewPromptBuilder(DefaultRules())
	fields := leadfields.Fields{leadfields.FirstName: "Frank", leadfields.Phone: "5095551212"}
	st := DeriveState(fields, DefaultRules())

	first := b.Build(property.DefaultConfig(), fields, st, "I'm Frank")
	second := NewPromptBuilder(DefaultRules()).Build(property.DefaultConfig(), fields.Clone(), st, "I'm Frank")
	if first != second {
		t.Fatal("same inputs produced different prompts")
	}
	for _, want := range []string{
		"You are Sona, the virtual leasing assistant for South Oak Apartments.",
		"- First name: Frank",
		"- Phone: 5095551212",
		"- Tour date",
		"NEXT ACTION: " + nextActions[leadfields.TourDate],
		"- Reply in at most 3 sentences.",
		"2 bed/1 bath - $1,200/month",
	} {
		if !strings.Contains(first, want) {
			t.Fatalf("prompt missing %q:\n%s", want, first)
		}
	}
}

func TestPromptBuilderKnowledgeReplacesHighlights(t *testing.T) {
	cfg := property.DefaultConfig()
	cfg.Knowledge = strings.Repeat("Rent for the two bedroom is $1,250 and parking is free. ", 3)
	st := DeriveState(leadfields.Fields{}, DefaultRules())

	prompt := NewPromptBuilder(DefaultRules()).Build(cfg, leadfields.Fields{}, st, "hi")
	if !strings.Contains(prompt, "PROPERTY KNOWLEDGE") || !strings.Contains(prompt, "$1,250") {
		t.Fatalf("knowledge not used:\n%s", prompt)
	}
	if strings.Contains(prompt, "$1,200/month") {
		t.Fatal("highlights should not appear when knowledge is present")
	}
	if !strings.Contains(prompt, "- nothing yet") {
		t.Fatal("expected empty collected list")
	}
}

func TestPromptBuilderShortKnowledgeFallsBack(t *testing.T) {
	cfg := property.DefaultConfig()
	cfg.Knowledge = "Short note."
	st := DeriveState(leadfields.Fields{}, DefaultRules())

	prompt := NewPromptBuilder(DefaultRules()).Build(cfg, leadfields.Fields{}, st, "hi")
	if strings.Contains(prompt, "PROPERTY KNOWLEDGE") {
		t.Fatal("short knowledge must not drive the prompt")
	}
	if !strings.Contains(prompt, "offer to have the leasing team follow up") {
		t.Fatalf("missing fallback instruction:\n%s", prompt)
	}
}

func TestPromptBuilderTimeNudge(t *testing.T) {
	fields := leadfields.Fields{leadfields.TourDate: "saturday"}
	st := DeriveState(fields, DefaultRules())
	b := NewPromptBuilder(DefaultRules())

	if prompt := b.Build(nil, fields, st, "Saturday works"); !strings.Contains(prompt, "gave a day without a time") {
		t.Fatalf("expected time nudge:\n%s", prompt)
	}
	if prompt := b.Build(nil, fields, st, "thanks"); strings.Contains(prompt, "gave a day without a time") {
		t.Fatal("nudge only applies to the message that named the day")
	}
}

func TestPromptBuilderComplete(t *testing.T) {
	fields := leadfields.Fields{
		leadfields.FirstName: "Frank",
		leadfields.Phone:     "5095551212",
		leadfields.Email:     "frank@example.com",
		leadfields.TourDate:  "saturday",
		leadfields.TourTime:  "2pm",
	}
	st := DeriveState(fields, DefaultRules())
	prompt := NewPromptBuilder(DefaultRules()).Build(nil, fields, st, "frank@example.com")
	if !strings.Contains(prompt, "NEXT ACTION: Everything is collected") {
		t.Fatalf("expected confirmation action:\n%s", prompt)
	}
	if !strings.Contains(prompt, "STILL NEEDED:\n- nothing") {
		t.Fatal("expected nothing still needed")
	}
}

func TestFillTemplate(t *testing.T) {
	fields := leadfields.Fields{
		leadfields.FirstName: "Frank",
		leadfields.LastName:  "Smith",
		leadfields.Phone:     "5095551212",
		leadfields.TourDate:  "saturday",
	}
	got := FillTemplate("Thanks {name}! {first_name} at {phone} on {tour_date} {tour_time}", fields)
	want := "Thanks Frank Smith! Frank at 5095551212 on saturday {tour_time}"
	if got != want {
		t.Fatalf("FillTemplate() = %q, want %q", got, want)
	}
}

func TestStubLLMClientFollowsNextAction(t *testing.T) {
	stub := NewStubLLMClient()
	b := NewPromptBuilder(DefaultRules())

	fields := leadfields.Fields{leadfields.TourDate: "saturday"}
	system := b.Build(nil, fields, DeriveState(fields, DefaultRules()), "Saturday")
	resp, err := stub.Complete(context.Background(), LLMRequest{System: []string{system}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != stubReplies[nextActions[leadfields.TourTime]] {
		t.Fatalf("reply = %q", resp.Text)
	}

	done := leadfields.Fields{
		leadfields.FirstName: "Frank",
		leadfields.Phone:     "5095551212",
		leadfields.Email:     "frank@example.com",
		leadfields.TourDate:  "saturday",
		leadfields.TourTime:  "2pm",
	}
	system = b.Build(nil, done, DeriveState(done, DefaultRules()), "2pm")
	resp, err = stub.Complete(context.Background(), LLMRequest{System: []string{system}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != property.DefaultConfirmationTemplate {
		t.Fatalf("reply = %q, want confirmation template", resp.Text)
	}
}

type scriptedLLM struct {
	replies []string
	errs    []error
	calls   int
	last    LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	i := s.calls
	s.calls++
	s.last = req
	if i < len(s.errs) && s.errs[i] != nil {
		return LLMResponse{}, s.errs[i]
	}
	if i < len(s.replies) {
		return LLMResponse{Text: s.replies[i]}, nil
	}
	return LLMResponse{Text: "ok"}, nil
}

func TestFallbackLLMClient(t *testing.T) {
	primary := &scriptedLLM{errs: []error{errors.New("throttled"), nil}, replies: []string{"", "from primary"}}
	fallback := &scriptedLLM{replies: []string{"from fallback"}}
	client := NewFallbackLLMClient(primary, fallback, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{})
	if err != nil || resp.Text != "from fallback" {
		t.Fatalf("first call = %q, %v", resp.Text, err)
	}
	resp, err = client.Complete(context.Background(), LLMRequest{})
	if err != nil || resp.Text != "from primary" {
		t.Fatalf("second call = %q, %v", resp.Text, err)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", fallback.calls)
	}
}

func TestFallbackLLMClientSkipsFallbackAfterDeadline(t *testing.T) {
	primary := &scriptedLLM{errs: []error{context.DeadlineExceeded}}
	fallback := &scriptedLLM{}
	client := NewFallbackLLMClient(primary, fallback, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Complete(ctx, LLMRequest{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not run once the context is done")
	}
}
