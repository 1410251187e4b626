package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
)

// PostgresSessionStore keeps one row per session. The upsert never replaces a stored
// field value, never clears lead_id and never resets the sync flag.
type PostgresSessionStore struct {
	db     *sql.DB
	table  string
	tracer trace.Tracer
}

var _ SessionStore = (*PostgresSessionStore)(nil)

func NewPostgresSessionStore(db *sql.DB, table string, tracer trace.Tracer) *PostgresSessionStore {
	if db == nil {
		panic("conversation: sql db cannot be nil")
	}
	if table == "" {
		table = "chat_sessions"
	}
	if tracer == nil {
		tracer = otel.Tracer("leasing.internal.conversation.sessions")
	}
	return &PostgresSessionStore{db: db, table: pq.QuoteIdentifier(table), tracer: tracer}
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_session", trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	query := fmt.Sprintf(`
		SELECT session_id, messages, collected_fields, lead_id, lead_synced_to_external, external_lead_id,
			message_count, user_message_count, lead_captured, tour_booked, recent_requests, created_at, updated_at
		FROM %s
		WHERE session_id = $1
	`, s.table)

	var (
		sess                     Session
		messages, fields, recent []byte
		leadID, externalLeadID   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.SessionID,
		&messages,
		&fields,
		&leadID,
		&sess.LeadSyncedToExternal,
		&externalLeadID,
		&sess.MessageCount,
		&sess.UserMessageCount,
		&sess.LeadCaptured,
		&sess.TourBooked,
		&recent,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	sess.LeadID = leadID.String
	sess.ExternalLeadID = externalLeadID.String

	if err := decodeJSONColumn(messages, &sess.Messages); err != nil {
		return nil, err
	}
	sess.CollectedFields = leadfields.Fields{}
	if err := decodeJSONColumn(fields, &sess.CollectedFields); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(recent, &sess.RecentRequests); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()
	if sess == nil || sess.SessionID == "" {
		return errors.New("conversation: session id required")
	}
	span.SetAttributes(attribute.String("session_id", sess.SessionID))

	messages, err := json.Marshal(nonNilMessages(sess.Messages))
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal messages: %w", err)
	}
	fields, err := json.Marshal(nonNilFields(sess.CollectedFields))
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal fields: %w", err)
	}
	recent, err := json.Marshal(nonNilRecent(sess.RecentRequests))
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal recent requests: %w", err)
	}

	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (
			session_id, messages, collected_fields, lead_id, lead_synced_to_external, external_lead_id,
			message_count, user_message_count, lead_captured, tour_booked, recent_requests, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
			messages = EXCLUDED.messages,
			collected_fields = EXCLUDED.collected_fields || %[1]s.collected_fields,
			lead_id = COALESCE(%[1]s.lead_id, EXCLUDED.lead_id),
			lead_synced_to_external = %[1]s.lead_synced_to_external OR EXCLUDED.lead_synced_to_external,
			external_lead_id = COALESCE(%[1]s.external_lead_id, EXCLUDED.external_lead_id),
			message_count = GREATEST(%[1]s.message_count, EXCLUDED.message_count),
			user_message_count = GREATEST(%[1]s.user_message_count, EXCLUDED.user_message_count),
			lead_captured = %[1]s.lead_captured OR EXCLUDED.lead_captured,
			tour_booked = %[1]s.tour_booked OR EXCLUDED.tour_booked,
			recent_requests = EXCLUDED.recent_requests,
			updated_at = EXCLUDED.updated_at
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		sess.SessionID,
		string(messages),
		string(fields),
		nullString(sess.LeadID),
		sess.LeadSyncedToExternal,
		nullString(sess.ExternalLeadID),
		sess.MessageCount,
		sess.UserMessageCount,
		sess.LeadCaptured,
		sess.TourBooked,
		string(recent),
		createdAt,
		updatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) LeadSynced(ctx context.Context, id string) (bool, error) {
	return leadSynced(ctx, s.Get, id)
}

func (s *PostgresSessionStore) MarkLeadSynced(ctx context.Context, id, externalID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.mark_lead_synced", trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	query := fmt.Sprintf(`
		UPDATE %s
		SET lead_synced_to_external = TRUE,
			external_lead_id = COALESCE(external_lead_id, $2),
			updated_at = $3
		WHERE session_id = $1
	`, s.table)
	res, err := s.db.ExecContext(ctx, query, id, nullString(externalID), time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to mark lead synced: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func decodeJSONColumn(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("conversation: failed to decode session column: %w", err)
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nonNilMessages(m []ChatMessage) []ChatMessage {
	if m == nil {
		return []ChatMessage{}
	}
	return m
}

func nonNilFields(f leadfields.Fields) leadfields.Fields {
	if f == nil {
		return leadfields.Fields{}
	}
	return f
}

func nonNilRecent(r []RecentRequest) []RecentRequest {
	if r == nil {
		return []RecentRequest{}
	}
	return r
}
