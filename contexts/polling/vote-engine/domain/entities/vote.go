package entities

import "time"

type VoteStatus string

const (
	VoteStatusDraft    VoteStatus = "draft"
	VoteStatusActive   VoteStatus = "active"
	VoteStatusClosed   VoteStatus = "closed"
	VoteStatusDisabled VoteStatus = "disabled"
	VoteStatusHidden   VoteStatus = "hidden"
)

// MinPublishOptions is the smallest option set a vote can be published with.
const MinPublishOptions = 2

type Vote struct {
	VoteID      string
	Slug        string
	OwnerID     string
	Title       string
	Description string
	Status      VoteStatus
	OptionCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
	ClosedAt    *time.Time
}

type VoteOption struct {
	OptionID  string
	VoteID    string
	Title     string
	Content   string
	Position  int
	CreatedAt time.Time
}

func (v Vote) IsOwner(userID string) bool {
	return userID != "" && v.OwnerID == userID
}

func (s VoteStatus) Valid() bool {
	switch s {
	case VoteStatusDraft, VoteStatusActive, VoteStatusClosed, VoteStatusDisabled, VoteStatusHidden:
		return true
	default:
		return false
	}
}

// Viewer describes who is reading a vote. Operators are platform moderators.
type Viewer struct {
	UserID   string
	Operator bool
}

// CanView applies status visibility: the public sees active and closed votes,
// owners also see their drafts and hidden votes, and disabled votes are
// operator-only.
func (v Vote) CanView(viewer Viewer) bool {
	if viewer.Operator {
		return true
	}
	switch v.Status {
	case VoteStatusActive, VoteStatusClosed:
		return true
	case VoteStatusDraft, VoteStatusHidden:
		return v.IsOwner(viewer.UserID)
	default:
		return false
	}
}

// CanReadResults limits tallies to the vote owner and operators.
func (v Vote) CanReadResults(viewer Viewer) bool {
	return viewer.Operator || v.IsOwner(viewer.UserID)
}
