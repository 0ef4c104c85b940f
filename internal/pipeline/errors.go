package pipeline

import "errors"

// Stage lifecycle errors.
var (
	ErrNotInitialized = errors.New("stage not initialized")
	ErrInvalidInput   = errors.New("invalid stage input")
	ErrEmptyOutput    = errors.New("stage produced no output")
	ErrCancelled      = errors.New("stage call cancelled")
)
