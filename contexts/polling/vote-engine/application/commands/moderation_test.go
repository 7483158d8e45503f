package commands_test

import (
	"context"
	"errors"
	"testing"

	"pollwarden/contexts/polling/vote-engine/application/commands"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
)

func TestSecondReviewKeepsFirstDecision(t *testing.T) {
	f := newFixture()
	vote, _ := f.activeVote(t)
	flag, err := f.moderation.SubmitFlag(context.Background(), commands.SubmitFlagCommand{
		VoteID:     vote.VoteID,
		ReporterID: "user-9",
		FlagType:   entities.FlagTypeSpam,
		Reason:     "ads",
	})
	if err != nil {
		t.Fatalf("submit flag failed: %v", err)
	}
	if flag.Status != entities.FlagStatusPending {
		t.Fatalf("expected pending flag, got %s", flag.Status)
	}

	approved, err := f.moderation.ReviewFlag(context.Background(), commands.ReviewFlagCommand{
		FlagID:     flag.FlagID,
		ReviewerID: "op-1",
		Decision:   entities.ReviewApprove,
	})
	if err != nil {
		t.Fatalf("first review failed: %v", err)
	}
	if approved.Status != entities.FlagStatusApproved || approved.ReviewedAt == nil {
		t.Fatalf("expected approved flag, got %+v", approved)
	}

	_, err = f.moderation.ReviewFlag(context.Background(), commands.ReviewFlagCommand{
		FlagID:     flag.FlagID,
		ReviewerID: "op-2",
		Decision:   entities.ReviewReject,
	})
	if !errors.Is(err, domainerrors.ErrFlagAlreadyReviewed) || !errors.Is(err, domainerrors.ErrNotPending) {
		t.Fatalf("expected already reviewed, got %v", err)
	}
	stored, _ := f.store.GetFlag(context.Background(), flag.FlagID)
	if stored.Status != entities.FlagStatusApproved || stored.ReviewedBy != "op-1" {
		t.Fatalf("expected first decision to stand, got %+v", stored)
	}
}

func TestReviewValidation(t *testing.T) {
	f := newFixture()
	_, err := f.moderation.ReviewFlag(context.Background(), commands.ReviewFlagCommand{
		FlagID:     "missing",
		ReviewerID: "op-1",
		Decision:   entities.ReviewApprove,
	})
	if !errors.Is(err, domainerrors.ErrFlagNotFound) {
		t.Fatalf("expected flag not found, got %v", err)
	}
	_, err = f.moderation.ReviewFlag(context.Background(), commands.ReviewFlagCommand{
		FlagID:     "missing",
		ReviewerID: "op-1",
		Decision:   "escalate",
	})
	if !errors.Is(err, domainerrors.ErrInvalidReviewDecision) {
		t.Fatalf("expected invalid decision, got %v", err)
	}
}

func TestFlagRequiresKnownVoteAndType(t *testing.T) {
	f := newFixture()
	_, err := f.moderation.SubmitFlag(context.Background(), commands.SubmitFlagCommand{
		VoteID:     "missing",
		ReporterID: "user-1",
		FlagType:   entities.FlagTypeAbuse,
	})
	if !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected vote not found, got %v", err)
	}
	_, err = f.moderation.SubmitFlag(context.Background(), commands.SubmitFlagCommand{
		VoteID:     "vote-1",
		ReporterID: "user-1",
		FlagType:   "boring",
	})
	if !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestActionAndStatusChangeTogether(t *testing.T) {
	f := newFixture()
	vote, _ := f.activeVote(t)

	f.store.SetWriteFailure(domainerrors.ErrStorageUnavailable)
	_, err := f.moderation.ApplyAction(context.Background(), commands.ApplyActionCommand{
		VoteID:  vote.VoteID,
		ActorID: "op-1",
		Action:  entities.ActionHide,
		Reason:  "spam",
	})
	if !errors.Is(err, domainerrors.ErrStorageUnavailable) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	f.store.SetWriteFailure(nil)

	stored, _ := f.store.GetVote(context.Background(), vote.VoteID)
	actions, _ := f.store.ListModerationActions(context.Background(), vote.VoteID)
	if stored.Status != entities.VoteStatusActive || len(actions) != 0 {
		t.Fatalf("expected no partial write, got status %s and %d actions", stored.Status, len(actions))
	}

	hidden, err := f.moderation.ApplyAction(context.Background(), commands.ApplyActionCommand{
		VoteID:  vote.VoteID,
		ActorID: "op-1",
		Action:  entities.ActionHide,
		Reason:  "spam",
	})
	if err != nil {
		t.Fatalf("hide failed: %v", err)
	}
	actions, _ = f.store.ListModerationActions(context.Background(), vote.VoteID)
	if hidden.Status != entities.VoteStatusHidden || len(actions) != 1 {
		t.Fatalf("expected hidden vote with one action, got %s and %d", hidden.Status, len(actions))
	}
	if actions[0].FromStatus != entities.VoteStatusActive || actions[0].ToStatus != entities.VoteStatusHidden {
		t.Fatalf("unexpected audit row %+v", actions[0])
	}
}

func TestRestoreLandsOnClosed(t *testing.T) {
	f := newFixture()
	vote, _ := f.activeVote(t)
	for _, action := range []entities.ActionType{entities.ActionDisable, entities.ActionRestore} {
		if _, err := f.moderation.ApplyAction(context.Background(), commands.ApplyActionCommand{
			VoteID:  vote.VoteID,
			ActorID: "op-1",
			Action:  action,
		}); err != nil {
			t.Fatalf("apply %s failed: %v", action, err)
		}
	}
	stored, _ := f.store.GetVote(context.Background(), vote.VoteID)
	if stored.Status != entities.VoteStatusClosed {
		t.Fatalf("expected restored vote to be closed, got %s", stored.Status)
	}
	_, err := f.moderation.ApplyAction(context.Background(), commands.ApplyActionCommand{
		VoteID:  vote.VoteID,
		ActorID: "op-1",
		Action:  entities.ActionRestore,
	})
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected restore of closed vote to fail, got %v", err)
	}
}

func TestBulkCloseReportsEachItem(t *testing.T) {
	f := newFixture()
	first, _ := f.activeVote(t)
	second, _ := f.activeVote(t)
	if _, err := f.moderation.ApplyAction(context.Background(), commands.ApplyActionCommand{
		VoteID:  second.VoteID,
		ActorID: "op-1",
		Action:  entities.ActionDisable,
	}); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	result, err := f.moderation.ApplyBulkAction(context.Background(), commands.BulkActionCommand{
		VoteIDs: []string{first.VoteID, second.VoteID},
		ActorID: "op-1",
		Action:  entities.ActionClose,
	})
	if err != nil {
		t.Fatalf("bulk close failed: %v", err)
	}
	if len(result.Items) != 2 || result.Succeeded() != 1 {
		t.Fatalf("expected one success out of two, got %+v", result)
	}
	if result.Items[0].VoteID != first.VoteID || result.Items[0].Err != nil {
		t.Fatalf("expected first item to succeed, got %+v", result.Items[0])
	}
	if result.Items[0].Vote.Status != entities.VoteStatusClosed {
		t.Fatalf("expected first vote closed, got %s", result.Items[0].Vote.Status)
	}
	if result.Items[1].VoteID != second.VoteID || !errors.Is(result.Items[1].Err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected second item to fail with invalid transition, got %+v", result.Items[1])
	}
	stored, _ := f.store.GetVote(context.Background(), second.VoteID)
	if stored.Status != entities.VoteStatusDisabled {
		t.Fatalf("expected second vote to stay disabled, got %s", stored.Status)
	}
}

func TestBulkBatchCapCheckedUpFront(t *testing.T) {
	f := newFixture()
	vote, _ := f.activeVote(t)
	_, err := f.moderation.ApplyBulkAction(context.Background(), commands.BulkActionCommand{
		VoteIDs: []string{vote.VoteID, "a", "b", "c"},
		ActorID: "op-1",
		Action:  entities.ActionClose,
	})
	if !errors.Is(err, domainerrors.ErrBatchTooLarge) {
		t.Fatalf("expected batch too large, got %v", err)
	}
	stored, _ := f.store.GetVote(context.Background(), vote.VoteID)
	if stored.Status != entities.VoteStatusActive {
		t.Fatalf("expected no item to run, got status %s", stored.Status)
	}
}

func TestBulkMissingVoteIsPerItem(t *testing.T) {
	f := newFixture()
	vote, _ := f.activeVote(t)
	result, err := f.moderation.ApplyBulkAction(context.Background(), commands.BulkActionCommand{
		VoteIDs: []string{"missing", vote.VoteID},
		ActorID: "op-1",
		Action:  entities.ActionHide,
	})
	if err != nil {
		t.Fatalf("bulk hide failed: %v", err)
	}
	if !errors.Is(result.Items[0].Err, domainerrors.ErrVoteNotFound) || result.Items[1].Err != nil {
		t.Fatalf("unexpected bulk result %+v", result.Items)
	}
}
