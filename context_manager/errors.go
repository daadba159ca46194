package context_manager

import "errors"

var (
	ErrInvalidLimits    = errors.New("invalid context limits")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)
