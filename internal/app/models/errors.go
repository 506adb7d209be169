package models

import "errors"

// Domain errors shared by repositories, services and handlers.
var (
	ErrNotFound              = errors.New("requested item not found")
	ErrConflict              = errors.New("item already exists or conflict")
	ErrUnauthenticated       = errors.New("authentication required or invalid credentials")
	ErrForbidden             = errors.New("action forbidden")
	ErrValidation            = errors.New("validation failed")
	ErrStorage               = errors.New("storage failure")
	ErrConnectionUnavailable = errors.New("database connection unavailable")
)
