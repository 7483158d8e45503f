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
)

type OptionInput struct {
	Title   string
	Content string
}

// CreateVoteCommand creates a draft vote with an optional initial option set.
type CreateVoteCommand struct {
	OwnerID     string
	Title       string
	Description string
	Options     []OptionInput
}

type AddOptionCommand struct {
	VoteID  string
	ActorID string
	Title   string
	Content string
}

type RemoveOptionCommand struct {
	VoteID   string
	OptionID string
	ActorID  string
}

// CreatorTransitionCommand is a publish or close requested by the vote owner.
type CreatorTransitionCommand struct {
	VoteID  string
	ActorID string
}

// LifecycleUseCase owns creator-driven status changes. Moderation-driven
// changes go through ModerationUseCase and share the same storage primitive.
type LifecycleUseCase struct {
	Votes                  ports.VoteRepository
	Clock                  ports.Clock
	IDGen                  ports.IDGenerator
	SlugSalt               string
	FreezeOptionsOnPublish bool
	Logger                 *slog.Logger
}

func (uc LifecycleUseCase) CreateVote(ctx context.Context, cmd CreateVoteCommand) (entities.Vote, []entities.VoteOption, error) {
	logger := application.ResolveLogger(uc.Logger)
	ownerID := strings.TrimSpace(cmd.OwnerID)
	title := strings.TrimSpace(cmd.Title)
	if ownerID == "" || title == "" {
		logger.Warn("vote create validation failed",
			"event", "vote_create_validation_failed",
			"module", "polling/vote-engine",
			"layer", "application",
			"owner_id", ownerID,
		)
		return entities.Vote{}, nil, domainerrors.ErrInvalidInput
	}

	now := resolveNow(uc.Clock)
	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, nil, err
	}

	options := make([]entities.VoteOption, 0, len(cmd.Options))
	for i, input := range cmd.Options {
		optionTitle := strings.TrimSpace(input.Title)
		if optionTitle == "" {
			return entities.Vote{}, nil, domainerrors.ErrInvalidInput
		}
		optionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Vote{}, nil, err
		}
		options = append(options, entities.VoteOption{
			OptionID:  optionID,
			VoteID:    voteID,
			Title:     optionTitle,
			Content:   strings.TrimSpace(input.Content),
			Position:  i,
			CreatedAt: now,
		})
	}

	vote := entities.Vote{
		VoteID:      voteID,
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(cmd.Description),
		Status:      entities.VoteStatusDraft,
		OptionCount: len(options),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	event, err := buildEvent(ctx, uc.IDGen, EventVoteCreated, voteID, now, map[string]any{
		"vote_id":      voteID,
		"owner_id":     ownerID,
		"option_count": len(options),
	})
	if err != nil {
		return entities.Vote{}, nil, err
	}
	if err := uc.Votes.CreateVote(ctx, vote, options, event); err != nil {
		return entities.Vote{}, nil, err
	}

	logger.Info("vote created",
		"event", "vote_created",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", voteID,
		"owner_id", ownerID,
		"option_count", len(options),
	)
	return vote, options, nil
}

func (uc LifecycleUseCase) AddOption(ctx context.Context, cmd AddOptionCommand) (entities.VoteOption, error) {
	logger := application.ResolveLogger(uc.Logger)
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return entities.VoteOption{}, domainerrors.ErrInvalidInput
	}
	vote, err := uc.ownedVote(ctx, cmd.VoteID, cmd.ActorID)
	if err != nil {
		return entities.VoteOption{}, err
	}

	now := resolveNow(uc.Clock)
	optionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.VoteOption{}, err
	}
	event, err := buildEvent(ctx, uc.IDGen, EventVoteOptionAdded, vote.VoteID, now, map[string]any{
		"vote_id":   vote.VoteID,
		"option_id": optionID,
	})
	if err != nil {
		return entities.VoteOption{}, err
	}

	option, err := uc.Votes.AddOption(ctx, entities.VoteOption{
		OptionID:  optionID,
		VoteID:    vote.VoteID,
		Title:     title,
		Content:   strings.TrimSpace(cmd.Content),
		CreatedAt: now,
	}, entities.OptionEditStatuses(uc.FreezeOptionsOnPublish), event)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
			logger.Warn("vote option add rejected",
				"event", "vote_option_add_rejected",
				"module", "polling/vote-engine",
				"layer", "application",
				"vote_id", vote.VoteID,
				"status", string(vote.Status),
			)
		}
		return entities.VoteOption{}, err
	}

	logger.Info("vote option added",
		"event", "vote_option_added",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", vote.VoteID,
		"option_id", option.OptionID,
		"position", option.Position,
	)
	return option, nil
}

func (uc LifecycleUseCase) RemoveOption(ctx context.Context, cmd RemoveOptionCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	optionID := strings.TrimSpace(cmd.OptionID)
	if optionID == "" {
		return domainerrors.ErrInvalidInput
	}
	vote, err := uc.ownedVote(ctx, cmd.VoteID, cmd.ActorID)
	if err != nil {
		return err
	}
	event, err := buildEvent(ctx, uc.IDGen, EventVoteOptionRemoved, vote.VoteID, resolveNow(uc.Clock), map[string]any{
		"vote_id":   vote.VoteID,
		"option_id": optionID,
	})
	if err != nil {
		return err
	}
	if err := uc.Votes.RemoveOption(ctx, vote.VoteID, optionID, event); err != nil {
		return err
	}
	logger.Info("vote option removed",
		"event", "vote_option_removed",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", vote.VoteID,
		"option_id", optionID,
	)
	return nil
}

// Publish moves a draft to active and assigns its share slug. The option
// count is checked inside the same storage unit as the status move.
func (uc LifecycleUseCase) Publish(ctx context.Context, cmd CreatorTransitionCommand) (entities.Vote, error) {
	vote, err := uc.ownedVote(ctx, cmd.VoteID, cmd.ActorID)
	if err != nil {
		return entities.Vote{}, err
	}
	return uc.transition(ctx, vote, entities.PublishTransition, EventVotePublished, shareSlug(vote.VoteID, uc.SlugSalt), entities.MinPublishOptions, cmd.ActorID)
}

func (uc LifecycleUseCase) Close(ctx context.Context, cmd CreatorTransitionCommand) (entities.Vote, error) {
	vote, err := uc.ownedVote(ctx, cmd.VoteID, cmd.ActorID)
	if err != nil {
		return entities.Vote{}, err
	}
	return uc.transition(ctx, vote, entities.CreatorCloseTransition, EventVoteClosed, "", 0, cmd.ActorID)
}

func (uc LifecycleUseCase) transition(
	ctx context.Context,
	vote entities.Vote,
	transition entities.Transition,
	eventType string,
	slug string,
	minOptions int,
	actorID string,
) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := resolveNow(uc.Clock)
	event, err := buildEvent(ctx, uc.IDGen, eventType, vote.VoteID, now, map[string]any{
		"vote_id":   vote.VoteID,
		"to_status": string(transition.To),
		"actor_id":  strings.TrimSpace(actorID),
	})
	if err != nil {
		return entities.Vote{}, err
	}

	updated, err := uc.Votes.TransitionVote(ctx, ports.TransitionRequest{
		VoteID:     vote.VoteID,
		Transition: transition,
		Slug:       slug,
		MinOptions: minOptions,
		Event:      event,
		At:         now,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidStateTransition) || errors.Is(err, domainerrors.ErrNotEnoughOptions) {
			logger.Warn("vote transition rejected",
				"event", "vote_transition_rejected",
				"module", "polling/vote-engine",
				"layer", "application",
				"vote_id", vote.VoteID,
				"to_status", string(transition.To),
				"error", err.Error(),
			)
		}
		return entities.Vote{}, err
	}

	logger.Info("vote transitioned",
		"event", "vote_transitioned",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", updated.VoteID,
		"status", string(updated.Status),
		"actor_id", strings.TrimSpace(actorID),
	)
	return updated, nil
}

func (uc LifecycleUseCase) ownedVote(ctx context.Context, voteID string, actorID string) (entities.Vote, error) {
	voteID = strings.TrimSpace(voteID)
	actorID = strings.TrimSpace(actorID)
	if voteID == "" || actorID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return entities.Vote{}, err
	}
	if !vote.IsOwner(actorID) {
		return entities.Vote{}, domainerrors.ErrForbidden
	}
	return vote, nil
}
