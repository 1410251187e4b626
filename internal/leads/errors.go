package leads

import "errors"

var (
	// ErrInvalidName is returned when the first name is missing
	ErrInvalidName = errors.New("leads: first name is required")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("leads: either email or phone is required")

	// ErrMissingPhone is returned by the external intake when no phone is given
	ErrMissingPhone = errors.New("leads: phone is required")

	// ErrInvalidStatus is returned for a status outside the lead lifecycle
	ErrInvalidStatus = errors.New("leads: invalid status")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("leads: lead not found")
)
