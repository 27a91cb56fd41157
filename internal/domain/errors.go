package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned by stores when an insert hits a unique key.
	// Services translate it into ErrConflict.
	ErrDuplicate = errors.New("duplicate key")
)
