package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrConflictRetryable = errors.New("transaction conflict")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
