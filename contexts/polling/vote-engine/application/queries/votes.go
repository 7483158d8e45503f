package queries

import (
	"context"
	"strings"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type VoteView struct {
	Vote    entities.Vote
	Options []entities.VoteOption
}

// VoteQueryUseCase serves public and operator reads. Votes the viewer may not
// see are reported as not found.
type VoteQueryUseCase struct {
	Votes   ports.VoteRepository
	Flags   ports.FlagRepository
	Actions ports.ModerationRepository
}

func (uc VoteQueryUseCase) GetVoteBySlug(ctx context.Context, slug string, viewer entities.Viewer) (VoteView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return VoteView{}, domainerrors.ErrInvalidInput
	}
	vote, err := uc.Votes.GetVoteBySlug(ctx, slug)
	if err != nil {
		return VoteView{}, err
	}
	return uc.view(ctx, vote, viewer)
}

func (uc VoteQueryUseCase) GetVote(ctx context.Context, voteID string, viewer entities.Viewer) (VoteView, error) {
	voteID = strings.TrimSpace(voteID)
	if voteID == "" {
		return VoteView{}, domainerrors.ErrInvalidInput
	}
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return VoteView{}, err
	}
	return uc.view(ctx, vote, viewer)
}

func (uc VoteQueryUseCase) view(ctx context.Context, vote entities.Vote, viewer entities.Viewer) (VoteView, error) {
	if !vote.CanView(viewer) {
		return VoteView{}, domainerrors.ErrVoteNotFound
	}
	options, err := uc.Votes.ListOptions(ctx, vote.VoteID)
	if err != nil {
		return VoteView{}, err
	}
	return VoteView{Vote: vote, Options: options}, nil
}

func (uc VoteQueryUseCase) ListFlags(ctx context.Context, status string, limit int, offset int) ([]entities.Flag, error) {
	flagStatus := entities.FlagStatus(strings.ToLower(strings.TrimSpace(status)))
	switch flagStatus {
	case "":
		flagStatus = entities.FlagStatusPending
	case entities.FlagStatusPending, entities.FlagStatusApproved, entities.FlagStatusRejected:
	default:
		return nil, domainerrors.ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.Flags.ListFlags(ctx, flagStatus, limit, offset)
}

func (uc VoteQueryUseCase) ListModerationActions(ctx context.Context, voteID string) ([]entities.ModerationAction, error) {
	voteID = strings.TrimSpace(voteID)
	if voteID == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if _, err := uc.Votes.GetVote(ctx, voteID); err != nil {
		return nil, err
	}
	return uc.Actions.ListModerationActions(ctx, voteID)
}
