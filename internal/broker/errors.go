package broker

import "errors"

var (
	// ErrUnauthorized is returned when the shared secret is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformed is returned when a request carries unusable fields.
	ErrMalformed = errors.New("malformed request")
	// ErrStorage is returned when the backing store fails. No record is changed.
	ErrStorage = errors.New("storage failure")
)
