package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "pollwarden/contexts/polling/vote-engine/application"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxBatchSize    = 100
	defaultBulkConcurrency = 8
)

type SubmitFlagCommand struct {
	VoteID     string
	ReporterID string
	FlagType   entities.FlagType
	Reason     string
}

type ReviewFlagCommand struct {
	FlagID     string
	ReviewerID string
	Decision   entities.ReviewDecision
	Notes      string
}

type ApplyActionCommand struct {
	VoteID  string
	ActorID string
	Action  entities.ActionType
	Reason  string
}

type BulkActionCommand struct {
	VoteIDs []string
	ActorID string
	Action  entities.ActionType
	Reason  string
}

type BulkItemResult struct {
	VoteID string
	Vote   entities.Vote
	Err    error
}

// BulkActionResult keeps the input order of vote IDs.
type BulkActionResult struct {
	Items []BulkItemResult
}

func (r BulkActionResult) Succeeded() int {
	count := 0
	for _, item := range r.Items {
		if item.Err == nil {
			count++
		}
	}
	return count
}

// ModerationUseCase handles flag intake and review and applies operator
// actions to votes. Every action writes its audit row in the same storage
// unit as the status change it causes.
type ModerationUseCase struct {
	Votes           ports.VoteRepository
	Flags           ports.FlagRepository
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	MaxBatchSize    int
	BulkConcurrency int
	Logger          *slog.Logger
}

// SubmitFlag records a report against a vote in any status.
func (uc ModerationUseCase) SubmitFlag(ctx context.Context, cmd SubmitFlagCommand) (entities.Flag, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	reporterID := strings.TrimSpace(cmd.ReporterID)
	if voteID == "" || reporterID == "" || !cmd.FlagType.Valid() {
		logger.Warn("flag submit validation failed",
			"event", "vote_flag_validation_failed",
			"module", "polling/vote-engine",
			"layer", "application",
			"vote_id", voteID,
			"flag_type", string(cmd.FlagType),
		)
		return entities.Flag{}, domainerrors.ErrInvalidInput
	}

	now := resolveNow(uc.Clock)
	flagID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Flag{}, err
	}
	flag := entities.Flag{
		FlagID:     flagID,
		VoteID:     voteID,
		FlagType:   cmd.FlagType,
		ReportedBy: reporterID,
		Reason:     strings.TrimSpace(cmd.Reason),
		Status:     entities.FlagStatusPending,
		CreatedAt:  now,
	}
	event, err := buildEvent(ctx, uc.IDGen, EventFlagSubmitted, voteID, now, map[string]any{
		"vote_id":   voteID,
		"flag_id":   flagID,
		"flag_type": string(cmd.FlagType),
	})
	if err != nil {
		return entities.Flag{}, err
	}
	if err := uc.Flags.CreateFlag(ctx, flag, event); err != nil {
		return entities.Flag{}, err
	}

	logger.Info("flag submitted",
		"event", "vote_flag_submitted",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", voteID,
		"flag_id", flagID,
		"flag_type", string(cmd.FlagType),
	)
	return flag, nil
}

// ReviewFlag records exactly one decision per flag. A second review, whatever
// its decision, leaves the first one untouched.
func (uc ModerationUseCase) ReviewFlag(ctx context.Context, cmd ReviewFlagCommand) (entities.Flag, error) {
	logger := application.ResolveLogger(uc.Logger)
	flagID := strings.TrimSpace(cmd.FlagID)
	reviewerID := strings.TrimSpace(cmd.ReviewerID)
	if flagID == "" || reviewerID == "" {
		return entities.Flag{}, domainerrors.ErrInvalidInput
	}
	status, ok := cmd.Decision.ResultingStatus()
	if !ok {
		return entities.Flag{}, domainerrors.ErrInvalidReviewDecision
	}

	existing, err := uc.Flags.GetFlag(ctx, flagID)
	if err != nil {
		return entities.Flag{}, err
	}
	if existing.Status != entities.FlagStatusPending {
		logger.Warn("flag review rejected",
			"event", "vote_flag_review_rejected",
			"module", "polling/vote-engine",
			"layer", "application",
			"flag_id", flagID,
			"status", string(existing.Status),
		)
		return entities.Flag{}, domainerrors.ErrFlagAlreadyReviewed
	}

	now := resolveNow(uc.Clock)
	event, err := buildEvent(ctx, uc.IDGen, EventFlagReviewed, existing.VoteID, now, map[string]any{
		"vote_id":     existing.VoteID,
		"flag_id":     flagID,
		"status":      string(status),
		"reviewer_id": reviewerID,
	})
	if err != nil {
		return entities.Flag{}, err
	}

	reviewed, err := uc.Flags.ReviewFlag(ctx, entities.FlagReview{
		FlagID:     flagID,
		ReviewerID: reviewerID,
		Status:     status,
		Notes:      strings.TrimSpace(cmd.Notes),
		ReviewedAt: now,
	}, event)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotPending) {
			logger.Warn("flag review lost race",
				"event", "vote_flag_review_conflict",
				"module", "polling/vote-engine",
				"layer", "application",
				"flag_id", flagID,
			)
		}
		return entities.Flag{}, err
	}

	logger.Info("flag reviewed",
		"event", "vote_flag_reviewed",
		"module", "polling/vote-engine",
		"layer", "application",
		"flag_id", flagID,
		"vote_id", reviewed.VoteID,
		"status", string(reviewed.Status),
		"reviewer_id", reviewerID,
	)
	return reviewed, nil
}

func (uc ModerationUseCase) ApplyAction(ctx context.Context, cmd ApplyActionCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if voteID == "" || actorID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}
	transition, ok := cmd.Action.TransitionFor()
	if !ok {
		return entities.Vote{}, domainerrors.ErrInvalidModerationAction
	}

	now := resolveNow(uc.Clock)
	actionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	eventType := EventVoteModerated
	if transition.To == entities.VoteStatusClosed {
		eventType = EventVoteClosed
	}
	event, err := buildEvent(ctx, uc.IDGen, eventType, voteID, now, map[string]any{
		"vote_id":     voteID,
		"action_id":   actionID,
		"action_type": string(cmd.Action),
		"to_status":   string(transition.To),
		"actor_id":    actorID,
	})
	if err != nil {
		return entities.Vote{}, err
	}

	updated, err := uc.Votes.TransitionVote(ctx, ports.TransitionRequest{
		VoteID:     voteID,
		Transition: transition,
		Action: &entities.ModerationAction{
			ActionID:   actionID,
			VoteID:     voteID,
			ActionType: cmd.Action,
			Reason:     strings.TrimSpace(cmd.Reason),
			ActorID:    actorID,
			ToStatus:   transition.To,
			CreatedAt:  now,
		},
		Event: event,
		At:    now,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
			logger.Warn("moderation action rejected",
				"event", "vote_moderation_action_rejected",
				"module", "polling/vote-engine",
				"layer", "application",
				"vote_id", voteID,
				"action_type", string(cmd.Action),
			)
		}
		return entities.Vote{}, err
	}

	logger.Info("moderation action applied",
		"event", "vote_moderation_action_applied",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", voteID,
		"action_id", actionID,
		"action_type", string(cmd.Action),
		"status", string(updated.Status),
		"actor_id", actorID,
	)
	return updated, nil
}

// ApplyBulkAction applies one action to many votes. The batch cap is checked
// before any item runs; after that each item succeeds or fails on its own.
func (uc ModerationUseCase) ApplyBulkAction(ctx context.Context, cmd BulkActionCommand) (BulkActionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if len(cmd.VoteIDs) == 0 {
		return BulkActionResult{}, domainerrors.ErrInvalidInput
	}
	maxBatch := uc.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	if len(cmd.VoteIDs) > maxBatch {
		logger.Warn("bulk moderation batch rejected",
			"event", "vote_bulk_action_batch_too_large",
			"module", "polling/vote-engine",
			"layer", "application",
			"batch_size", len(cmd.VoteIDs),
			"max_batch_size", maxBatch,
		)
		return BulkActionResult{}, domainerrors.ErrBatchTooLarge
	}
	if _, ok := cmd.Action.TransitionFor(); !ok {
		return BulkActionResult{}, domainerrors.ErrInvalidModerationAction
	}

	concurrency := uc.BulkConcurrency
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}

	items := make([]BulkItemResult, len(cmd.VoteIDs))
	var group errgroup.Group
	group.SetLimit(concurrency)
	for i, voteID := range cmd.VoteIDs {
		group.Go(func() error {
			vote, err := uc.ApplyAction(ctx, ApplyActionCommand{
				VoteID:  voteID,
				ActorID: cmd.ActorID,
				Action:  cmd.Action,
				Reason:  cmd.Reason,
			})
			items[i] = BulkItemResult{VoteID: voteID, Vote: vote, Err: err}
			return nil
		})
	}
	_ = group.Wait()

	result := BulkActionResult{Items: items}
	logger.Info("bulk moderation action completed",
		"event", "vote_bulk_action_completed",
		"module", "polling/vote-engine",
		"layer", "application",
		"action_type", string(cmd.Action),
		"batch_size", len(items),
		"succeeded", result.Succeeded(),
	)
	return result, nil
}
