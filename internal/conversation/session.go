package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
)

// maxRecentRequests bounds the per-session replay log.
const maxRecentRequests = 20

// ErrSessionNotFound is returned by SessionStore.Get when the id is unknown.
var ErrSessionNotFound = errors.New("conversation: session not found")

// RecentRequest remembers the reply produced for a client request id.
type RecentRequest struct {
	RequestID string `json:"requestId" dynamodbav:"requestId"`
	Reply     string `json:"reply" dynamodbav:"reply"`
}

// Session is the durable per-conversation record.
type Session struct {
	SessionID            string            `json:"sessionId" dynamodbav:"sessionId"`
	Messages             []ChatMessage     `json:"messages" dynamodbav:"messages"`
	CollectedFields      leadfields.Fields `json:"collectedFields" dynamodbav:"collectedFields"`
	LeadID               string            `json:"leadId,omitempty" dynamodbav:"leadId,omitempty"`
	LeadSyncedToExternal bool              `json:"leadSyncedToExternal" dynamodbav:"leadSyncedToExternal"`
	ExternalLeadID       string            `json:"externalLeadId,omitempty" dynamodbav:"externalLeadId,omitempty"`
	MessageCount         int               `json:"messageCount" dynamodbav:"messageCount"`
	UserMessageCount     int               `json:"userMessageCount" dynamodbav:"userMessageCount"`
	LeadCaptured         bool              `json:"leadCaptured" dynamodbav:"leadCaptured"`
	TourBooked           bool              `json:"tourBooked" dynamodbav:"tourBooked"`
	RecentRequests       []RecentRequest   `json:"recentRequests,omitempty" dynamodbav:"recentRequests,omitempty"`
	CreatedAt            time.Time         `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt" dynamodbav:"updatedAt"`
}

// NewSession creates an empty session. A blank id gets a fresh UUID.
func NewSession(id string, now time.Time) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		SessionID:       id,
		CollectedFields: leadfields.Fields{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MergeFields applies first-write-wins and returns the fields newly set.
func (s *Session) MergeFields(extracted leadfields.Fields) []leadfields.Field {
	if s.CollectedFields == nil {
		s.CollectedFields = leadfields.Fields{}
	}
	return leadfields.Merge(s.CollectedFields, extracted)
}

// AppendTurn records one completed exchange and bumps the counters once.
func (s *Session) AppendTurn(userText, reply, requestID string, now time.Time) {
	s.Messages = append(s.Messages,
		ChatMessage{Role: ChatRoleUser, Content: userText},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	)
	s.MessageCount++
	s.UserMessageCount++
	if requestID != "" {
		s.RecentRequests = append(s.RecentRequests, RecentRequest{RequestID: requestID, Reply: reply})
		if over := len(s.RecentRequests) - maxRecentRequests; over > 0 {
			s.RecentRequests = append([]RecentRequest(nil), s.RecentRequests[over:]...)
		}
	}
	s.UpdatedAt = now
}

// ReplyFor returns the reply already produced for requestID.
func (s *Session) ReplyFor(requestID string) (string, bool) {
	if requestID == "" {
		return "", false
	}
	for i := len(s.RecentRequests) - 1; i >= 0; i-- {
		if s.RecentRequests[i].RequestID == requestID {
			return s.RecentRequests[i].Reply, true
		}
	}
	return "", false
}

// SetLeadID records the lead back-reference once.
func (s *Session) SetLeadID(id string) {
	if s.LeadID == "" {
		s.LeadID = id
	}
}

// UserMessages returns the visitor's messages in order.
func (s *Session) UserMessages() []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == ChatRoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

// Transcript renders the conversation as "role: content" lines.
func (s *Session) Transcript() string {
	var b strings.Builder
	for _, m := range s.Messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// absorb folds a previously stored copy into s so that a whole-document save never
// loses values written concurrently: stored fields win, the lead id and the sync flag are kept.
func (s *Session) absorb(stored *Session) {
	if stored == nil {
		return
	}
	merged := stored.CollectedFields.Clone()
	leadfields.Merge(merged, s.CollectedFields)
	s.CollectedFields = merged
	if stored.LeadID != "" {
		s.LeadID = stored.LeadID
	}
	if stored.LeadSyncedToExternal {
		s.LeadSyncedToExternal = true
		if s.ExternalLeadID == "" {
			s.ExternalLeadID = stored.ExternalLeadID
		}
	}
	s.LeadCaptured = s.LeadCaptured || stored.LeadCaptured
	s.TourBooked = s.TourBooked || stored.TourBooked
	if stored.CreatedAt.Before(s.CreatedAt) && !stored.CreatedAt.IsZero() {
		s.CreatedAt = stored.CreatedAt
	}
}

// clone returns a deep copy.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]ChatMessage(nil), s.Messages...)
	out.CollectedFields = s.CollectedFields.Clone()
	out.RecentRequests = append([]RecentRequest(nil), s.RecentRequests...)
	return &out
}

// SessionStore persists sessions as whole documents keyed by id.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Save writes the session. Implementations keep already stored field values,
	// the lead id and a true sync flag.
	Save(ctx context.Context, s *Session) error
	// MarkLeadSynced flips the sync flag and records the external id.
	MarkLeadSynced(ctx context.Context, id, externalID string) error
	// LeadSynced reports the sync flag. A missing session reports false.
	LeadSynced(ctx context.Context, id string) (bool, error)
}

func leadSynced(ctx context.Context, get func(context.Context, string) (*Session, error), id string) (bool, error) {
	sess, err := get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.LeadSyncedToExternal, nil
}
