package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateSession  = errors.New("duplicate session id")
	ErrDuplicateOpenFlag = errors.New("open flag already exists")
)
