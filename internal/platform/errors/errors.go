package apperrors

import "errors"

// Persistence-level sentinels. Stores return these; the log service translates
// them into the inbound port's project errors.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
