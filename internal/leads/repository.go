package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	Update(ctx context.Context, id string, req *UpdateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// SetExternalID records the CRM id once; later calls keep the first value.
	SetExternalID(ctx context.Context, id, externalID string) error
}

// InMemoryRepository is an implementation of Repository using in-memory storage
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
	now   func() time.Time
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.now()
	lead := &Lead{
		ID:               uuid.New().String(),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		Email:            req.Email,
		MoveInDate:       req.MoveInDate,
		TourDate:         req.TourDate,
		TourTime:         req.TourTime,
		Message:          req.Message,
		Transcript:       req.Transcript,
		Source:           req.Source,
		PropertyInterest: req.PropertyInterest,
		SessionID:        req.SessionID,
		Status:           StatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	out := *lead
	return &out, nil
}

// Update fills in values gathered on later turns.
func (r *InMemoryRepository) Update(ctx context.Context, id string, req *UpdateLeadRequest) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	req.apply(lead)
	lead.UpdatedAt = r.now()
	out := *lead
	return &out, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

// List returns leads newest first.
func (r *InMemoryRepository) List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error) {
	r.mu.RLock()
	out := make([]*Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		cp := *lead
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*Lead{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	lead.Status = status
	lead.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	if lead.ExternalID == "" {
		lead.ExternalID = externalID
		lead.UpdatedAt = r.now()
	}
	return nil
}
