package entities

import (
	"time"

	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
)

type IdentityKind string

const (
	IdentityKindAnonymous IdentityKind = "anonymous"
	IdentityKindUser      IdentityKind = "user"
)

// Identity is a kind-tagged participant. Anonymous values are per-vote
// address hashes; user values are account IDs. The two never compare equal.
type Identity struct {
	Kind  IdentityKind
	Value string
}

func (i Identity) Valid() bool {
	if i.Value == "" {
		return false
	}
	return i.Kind == IdentityKindAnonymous || i.Kind == IdentityKindUser
}

func (i Identity) Key() string {
	return string(i.Kind) + ":" + i.Value
}

type ResponseSet struct {
	ResponseSetID string
	VoteID        string
	Identity      Identity
	Values        map[string]int
	SubmittedAt   time.Time
}

type ScorePolicy struct {
	Min int
	Max int
}

func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{Min: -2, Max: 2}
}

func (p ScorePolicy) Contains(score int) bool {
	return score >= p.Min && score <= p.Max
}

// ValidateResponseSet requires exactly one value per option and every value
// inside the policy range. Coverage is checked before range.
func ValidateResponseSet(options []VoteOption, values map[string]int, policy ScorePolicy) error {
	if len(options) == 0 || len(values) != len(options) {
		return domainerrors.ErrIncompleteResponseSet
	}
	for _, option := range options {
		if _, ok := values[option.OptionID]; !ok {
			return domainerrors.ErrIncompleteResponseSet
		}
	}
	for _, score := range values {
		if !policy.Contains(score) {
			return domainerrors.ErrOutOfRangeScore
		}
	}
	return nil
}
