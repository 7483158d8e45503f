package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput                = errors.New("invalid vote engine input")
	ErrVoteNotFound                = errors.New("vote not found")
	ErrOptionNotFound              = errors.New("vote option not found")
	ErrFlagNotFound                = errors.New("flag not found")
	ErrSnapshotNotFound            = errors.New("result snapshot not found")
	ErrForbidden                   = errors.New("caller is not allowed to perform this operation")
	ErrInvalidStateTransition      = errors.New("invalid vote state transition")
	ErrNotEnoughOptions            = errors.New("vote needs at least two options to publish")
	ErrVoteNotAcceptingSubmissions = errors.New("vote is not accepting submissions")
	ErrDuplicateIdentity           = errors.New("identity already submitted a response set for this vote")
	ErrIncompleteResponseSet       = errors.New("response set must cover every option exactly once")
	ErrOutOfRangeScore             = errors.New("response score is outside the allowed range")
	ErrInvalidModerationAction     = errors.New("invalid moderation action")
	ErrInvalidReviewDecision       = errors.New("invalid flag review decision")
	ErrNotPending                  = errors.New("flag is not pending")
	ErrBatchTooLarge               = errors.New("bulk action batch is too large")
	ErrStorageUnavailable          = errors.New("storage unavailable")
	ErrConflict                    = errors.New("vote engine conflict")
)

// ErrFlagAlreadyReviewed matches ErrNotPending under errors.Is.
var ErrFlagAlreadyReviewed = fmt.Errorf("flag already reviewed: %w", ErrNotPending)
