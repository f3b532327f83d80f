package domain

import "errors"

var (
	ErrAlreadyMarked     = errors.New("rame_already_marked")
	ErrInvalidTransition = errors.New("rame_invalid_transition")
	ErrInvalidMarkedBy   = errors.New("invalid_marked_by")
)
