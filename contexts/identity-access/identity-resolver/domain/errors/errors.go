package errors

import "errors"

var (
	ErrInvalidAddress = errors.New("invalid network address")
	ErrMissingVote    = errors.New("vote id required")
	ErrMissingSalt    = errors.New("identity salt not configured")
)
