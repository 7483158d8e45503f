package entities

// Transition is a single status move. From lists every status the move is
// legal from; storage applies it only if the current status is in From.
type Transition struct {
	From []VoteStatus
	To   VoteStatus
}

func (t Transition) Allows(status VoteStatus) bool {
	for _, from := range t.From {
		if from == status {
			return true
		}
	}
	return false
}

func (t Transition) FromStrings() []string {
	items := make([]string, 0, len(t.From))
	for _, from := range t.From {
		items = append(items, string(from))
	}
	return items
}

var (
	PublishTransition = Transition{
		From: []VoteStatus{VoteStatusDraft},
		To:   VoteStatusActive,
	}
	CreatorCloseTransition = Transition{
		From: []VoteStatus{VoteStatusActive},
		To:   VoteStatusClosed,
	}
)

// OptionEditStatuses returns the statuses in which options may be appended.
// Removal is always draft-only.
func OptionEditStatuses(freezeOnPublish bool) []VoteStatus {
	if freezeOnPublish {
		return []VoteStatus{VoteStatusDraft}
	}
	return []VoteStatus{VoteStatusDraft, VoteStatusActive}
}
