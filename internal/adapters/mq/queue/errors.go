package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed      = errors.New("queue closed")
	ErrJobNotFound = errors.New("job not found")
)
