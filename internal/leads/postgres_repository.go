package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q}
}

const leadColumns = `id, first_name, last_name, phone, email, move_in_date, tour_date, tour_time,
	message, transcript, source, property_interest, session_id, status, external_id, created_at, updated_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO leads (id, first_name, last_name, phone, email, move_in_date, tour_date, tour_time,
			message, transcript, source, property_interest, session_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + leadColumns
	row := r.pool.QueryRow(ctx, query,
		uuid.New().String(),
		req.FirstName,
		req.LastName,
		req.Phone,
		req.Email,
		req.MoveInDate,
		req.TourDate,
		req.TourTime,
		req.Message,
		req.Transcript,
		req.Source,
		req.PropertyInterest,
		req.SessionID,
		string(StatusNew),
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	return lead, nil
}

// Update fills blank columns only with non-blank values from the request.
func (r *PostgresRepository) Update(ctx context.Context, id string, req *UpdateLeadRequest) (*Lead, error) {
	query := `
		UPDATE leads SET
			first_name = COALESCE(NULLIF($2, ''), first_name),
			last_name = COALESCE(NULLIF($3, ''), last_name),
			phone = COALESCE(NULLIF($4, ''), phone),
			email = COALESCE(NULLIF($5, ''), email),
			move_in_date = COALESCE(NULLIF($6, ''), move_in_date),
			tour_date = COALESCE(NULLIF($7, ''), tour_date),
			tour_time = COALESCE(NULLIF($8, ''), tour_time),
			transcript = COALESCE(NULLIF($9, ''), transcript),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + leadColumns
	row := r.pool.QueryRow(ctx, query,
		id,
		req.FirstName,
		req.LastName,
		req.Phone,
		req.Email,
		req.MoveInDate,
		req.TourDate,
		req.TourTime,
		req.Transcript,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: update failed: %w", err)
	}
	return lead, nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first, optionally filtered by status.
func (r *PostgresRepository) List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("leads: update status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (r *PostgresRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	query := `
		UPDATE leads
		SET external_id = CASE WHEN external_id = '' THEN $2 ELSE external_id END,
			updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, externalID)
	if err != nil {
		return fmt.Errorf("leads: set external id failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead   Lead
		status string
	)
	if err := row.Scan(
		&lead.ID,
		&lead.FirstName,
		&lead.LastName,
		&lead.Phone,
		&lead.Email,
		&lead.MoveInDate,
		&lead.TourDate,
		&lead.TourTime,
		&lead.Message,
		&lead.Transcript,
		&lead.Source,
		&lead.PropertyInterest,
		&lead.SessionID,
		&status,
		&lead.ExternalID,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Status = Status(status)
	return &lead, nil
}
