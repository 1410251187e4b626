package conversation

import "context"

// Roles stored on transcript entries. System entries never reach the transcript; the
// leasing prompt is rebuilt from property config on every turn.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// maxHistoryMessages bounds the prospect transcript sent with each completion. It is even
// so the window opens on a prospect message.
const maxHistoryMessages = 40

// ChatMessage is one entry of a prospect's session transcript. The same shape is persisted
// by every session store and replayed to the completion service.
type ChatMessage struct {
	Role    string `json:"role" dynamodbav:"role"`
	Content string `json:"content" dynamodbav:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a single stateless completion call: the leasing prompt plus the recent
// transcript ending in the prospect's latest message.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the opaque completion service behind the leasing assistant. Bedrock, Gemini
// and the offline stub all satisfy it.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// leasingRequest trims history to the prompt window and appends the prospect's message.
// Field extraction has already run on text, so the model sees what was just captured.
func leasingRequest(model, prompt string, history []ChatMessage, text string, maxTokens int32) LLMRequest {
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: text})
	return LLMRequest{
		Model:     model,
		System:    []string{prompt},
		Messages:  messages,
		MaxTokens: maxTokens,
	}
}
