package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller does not own the resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a resource or active session is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidReference indicates a referenced resource does not belong
	// to the expected parent (e.g. a question list outside the class).
	ErrInvalidReference = errors.New("invalid reference")
	// ErrEmailTaken is returned on registration with a known email.
	ErrEmailTaken = errors.New("email already exists")
	// ErrDuplicateResult guards the one-result-per-(sessie, vraag,
	// leerling) invariant; callers surface it as a non-fatal outcome.
	ErrDuplicateResult = errors.New("result already recorded")
)
