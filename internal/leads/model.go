package leads

import (
	"strings"
	"time"
)

// Status tracks a lead through the leasing funnel.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusScheduled Status = "scheduled"
	StatusToured    Status = "toured"
	StatusApplied   Status = "applied"
	StatusClosed    Status = "closed"
)

var validStatuses = map[Status]bool{
	StatusNew:       true,
	StatusContacted: true,
	StatusScheduled: true,
	StatusToured:    true,
	StatusApplied:   true,
	StatusClosed:    true,
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !validStatuses[s] {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Lead is a prospective resident captured from chat or an external intake.
type Lead struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	MoveInDate       string    `json:"move_in_date"`
	TourDate         string    `json:"tour_date"`
	TourTime         string    `json:"tour_time"`
	Message          string    `json:"message"`
	Transcript       string    `json:"transcript"`
	Source           string    `json:"source"`
	PropertyInterest string    `json:"property_interest"`
	SessionID        string    `json:"session_id"`
	Status           Status    `json:"status"`
	ExternalID       string    `json:"external_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateLeadRequest represents a new lead row
type CreateLeadRequest struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	MoveInDate       string `json:"move_in_date"`
	TourDate         string `json:"tour_date"`
	TourTime         string `json:"tour_time"`
	Message          string `json:"message"`
	Transcript       string `json:"transcript"`
	Source           string `json:"source"`
	PropertyInterest string `json:"property_interest"`
	SessionID        string `json:"session_id"`
}

// Validate requires a way to reach the lead. Chat leads may not have a name yet.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}

// UpdateLeadRequest carries values gathered on later turns. Blank values leave the
// stored column untouched.
type UpdateLeadRequest struct {
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	MoveInDate string
	TourDate   string
	TourTime   string
	Transcript string
}

func (u *UpdateLeadRequest) apply(lead *Lead) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&lead.FirstName, u.FirstName)
	set(&lead.LastName, u.LastName)
	set(&lead.Phone, u.Phone)
	set(&lead.Email, u.Email)
	set(&lead.MoveInDate, u.MoveInDate)
	set(&lead.TourDate, u.TourDate)
	set(&lead.TourTime, u.TourTime)
	set(&lead.Transcript, u.Transcript)
}

// ListLeadsFilter narrows the admin listing.
type ListLeadsFilter struct {
	Status Status
	Limit  int
	Offset int
}
