package commands

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"

	application "pollwarden/contexts/polling/vote-engine/application"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"
)

type SubmitResponseCommand struct {
	VoteID   string
	Identity entities.Identity
	Values   map[string]int
}

// SubmissionUseCase guards the one-response-set-per-identity rule. All checks
// against vote state happen inside the repository write so they see the same
// committed state as the insert.
type SubmissionUseCase struct {
	Responses   ports.ResponseRepository
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	ScorePolicy entities.ScorePolicy
	Logger      *slog.Logger
}

func (uc SubmissionUseCase) Submit(ctx context.Context, cmd SubmitResponseCommand) (entities.ResponseSet, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	if voteID == "" || !cmd.Identity.Valid() {
		logger.Warn("response submit validation failed",
			"event", "vote_response_validation_failed",
			"module", "polling/vote-engine",
			"layer", "application",
			"vote_id", voteID,
			"identity_kind", string(cmd.Identity.Kind),
		)
		return entities.ResponseSet{}, domainerrors.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return entities.ResponseSet{}, err
	}

	now := resolveNow(uc.Clock)
	setID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.ResponseSet{}, err
	}
	set := entities.ResponseSet{
		ResponseSetID: setID,
		VoteID:        voteID,
		Identity:      cmd.Identity,
		Values:        maps.Clone(cmd.Values),
		SubmittedAt:   now,
	}
	event, err := buildEvent(ctx, uc.IDGen, EventResponseAccepted, voteID, now, map[string]any{
		"vote_id":         voteID,
		"response_set_id": setID,
		"identity_kind":   string(cmd.Identity.Kind),
	})
	if err != nil {
		return entities.ResponseSet{}, err
	}

	if err := uc.Responses.InsertResponseSet(ctx, set, uc.policy(), event); err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrDuplicateIdentity):
			logger.Warn("duplicate response set rejected",
				"event", "vote_response_duplicate",
				"module", "polling/vote-engine",
				"layer", "application",
				"vote_id", voteID,
				"identity_kind", string(cmd.Identity.Kind),
			)
		case errors.Is(err, domainerrors.ErrVoteNotAcceptingSubmissions),
			errors.Is(err, domainerrors.ErrIncompleteResponseSet),
			errors.Is(err, domainerrors.ErrOutOfRangeScore):
			logger.Warn("response set rejected",
				"event", "vote_response_rejected",
				"module", "polling/vote-engine",
				"layer", "application",
				"vote_id", voteID,
				"error", err.Error(),
			)
		}
		return entities.ResponseSet{}, err
	}

	logger.Info("response set accepted",
		"event", "vote_response_accepted",
		"module", "polling/vote-engine",
		"layer", "application",
		"vote_id", voteID,
		"response_set_id", setID,
		"identity_kind", string(cmd.Identity.Kind),
	)
	return set, nil
}

func (uc SubmissionUseCase) policy() entities.ScorePolicy {
	if uc.ScorePolicy.Min == 0 && uc.ScorePolicy.Max == 0 {
		return entities.DefaultScorePolicy()
	}
	return uc.ScorePolicy
}
