package entities

import "time"

type ActionType string

const (
	ActionClose   ActionType = "close"
	ActionDisable ActionType = "disable"
	ActionHide    ActionType = "hide"
	ActionRestore ActionType = "restore"
)

// moderationTransitions is the closed action table. Restore never reopens a
// vote; it lands in closed.
var moderationTransitions = map[ActionType]Transition{
	ActionClose: {
		From: []VoteStatus{VoteStatusActive},
		To:   VoteStatusClosed,
	},
	ActionDisable: {
		From: []VoteStatus{VoteStatusDraft, VoteStatusActive, VoteStatusClosed, VoteStatusHidden},
		To:   VoteStatusDisabled,
	},
	ActionHide: {
		From: []VoteStatus{VoteStatusDraft, VoteStatusActive, VoteStatusClosed, VoteStatusDisabled},
		To:   VoteStatusHidden,
	},
	ActionRestore: {
		From: []VoteStatus{VoteStatusDisabled, VoteStatusHidden},
		To:   VoteStatusClosed,
	},
}

// TransitionFor returns the lifecycle move caused by a moderation action.
func (a ActionType) TransitionFor() (Transition, bool) {
	transition, ok := moderationTransitions[a]
	return transition, ok
}

type ModerationAction struct {
	ActionID   string
	VoteID     string
	ActionType ActionType
	Reason     string
	ActorID    string
	FromStatus VoteStatus
	ToStatus   VoteStatus
	CreatedAt  time.Time
}

type FlagStatus string

const (
	FlagStatusPending  FlagStatus = "pending"
	FlagStatusApproved FlagStatus = "approved"
	FlagStatusRejected FlagStatus = "rejected"
)

type FlagType string

const (
	FlagTypeSpam          FlagType = "spam"
	FlagTypeAbuse         FlagType = "abuse"
	FlagTypeMisleading    FlagType = "misleading"
	FlagTypeInappropriate FlagType = "inappropriate"
	FlagTypeOther         FlagType = "other"
)

func (t FlagType) Valid() bool {
	switch t {
	case FlagTypeSpam, FlagTypeAbuse, FlagTypeMisleading, FlagTypeInappropriate, FlagTypeOther:
		return true
	default:
		return false
	}
}

type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

// ResultingStatus maps a review decision to the flag's terminal status.
func (d ReviewDecision) ResultingStatus() (FlagStatus, bool) {
	switch d {
	case ReviewApprove:
		return FlagStatusApproved, true
	case ReviewReject:
		return FlagStatusRejected, true
	default:
		return "", false
	}
}

type Flag struct {
	FlagID      string
	VoteID      string
	FlagType    FlagType
	ReportedBy  string
	Reason      string
	Status      FlagStatus
	CreatedAt   time.Time
	ReviewedBy  string
	ReviewNotes string
	ReviewedAt  *time.Time
}

// FlagReview is the single durable decision recorded on a pending flag.
type FlagReview struct {
	FlagID     string
	ReviewerID string
	Status     FlagStatus
	Notes      string
	ReviewedAt time.Time
}
