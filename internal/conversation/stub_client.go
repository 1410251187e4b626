package conversation

import (
	"context"
	"strconv"
	"strings"
)

var stubReplies = map[string]string{
	nextActions["move_in_date"]: "Happy to help! When are you hoping to move in?",
	nextActions["tour_date"]:    "I'd love to show you around. What day works best for a tour?",
	nextActions["tour_time"]:    "Great! What time works best that day, morning or afternoon?",
	nextActions["first_name"]:   "Perfect. May I have your first name?",
	nextActions["last_name"]:    "Thanks! And your last name?",
	nextActions["phone"]:        "What's the best phone number to reach you?",
	nextActions["email"]:        "And your email address so I can send the confirmation?",
}

// StubLLMClient answers from the NEXT ACTION line of the system prompt without calling a
// model. Used for local development and as the last fallback.
type StubLLMClient struct{}

func NewStubLLMClient() *StubLLMClient {
	return &StubLLMClient{}
}

func (StubLLMClient) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	system := strings.Join(req.System, "\n")
	action := promptLine(system, "NEXT ACTION: ")
	if strings.HasPrefix(action, "Everything is collected") {
		if tmpl, err := strconv.Unquote("\"" + promptLine(system, "\"")); err == nil && tmpl != "" {
			return LLMResponse{Text: tmpl, StopReason: "stub"}, nil
		}
	}
	if reply, ok := stubReplies[action]; ok {
		return LLMResponse{Text: reply, StopReason: "stub"}, nil
	}
	return LLMResponse{Text: "Thanks for reaching out! How can I help with your apartment search?", StopReason: "stub"}, nil
}

// promptLine returns the remainder of the first line starting with prefix.
func promptLine(text, prefix string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
