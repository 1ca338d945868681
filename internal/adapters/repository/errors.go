package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("progress version conflict")
	ErrDuplicate       = errors.New("already exists")
)
