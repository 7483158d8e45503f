package queries

import (
	"context"
	"strings"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"golang.org/x/sync/singleflight"
)

// ResultsUseCase computes tallies on read. Concurrent reads of the same vote
// share one computation when Flight is set.
type ResultsUseCase struct {
	Votes     ports.VoteRepository
	Responses ports.ResponseRepository
	Snapshots ports.SnapshotRepository
	Flight    *singleflight.Group
}

func (uc ResultsUseCase) GetResults(ctx context.Context, voteID string, viewer entities.Viewer) (entities.VoteResults, error) {
	vote, err := uc.readableVote(ctx, voteID, viewer)
	if err != nil {
		return entities.VoteResults{}, err
	}
	if uc.Flight == nil {
		return uc.Compute(ctx, vote)
	}
	// The shared computation outlives any single caller; each caller still
	// stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := uc.Flight.DoChan(vote.VoteID, func() (any, error) {
		return uc.Compute(shared, vote)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return entities.VoteResults{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return entities.VoteResults{}, res.Err
	}
	results := res.Val.(entities.VoteResults)
	results.Options = append([]entities.OptionTally(nil), results.Options...)
	return results, nil
}

// Compute tallies every accepted response set for the vote.
func (uc ResultsUseCase) Compute(ctx context.Context, vote entities.Vote) (entities.VoteResults, error) {
	results, _, err := uc.compute(ctx, vote)
	return results, err
}

// Snapshot computes results and fingerprints the response sets they cover.
func (uc ResultsUseCase) Snapshot(ctx context.Context, vote entities.Vote) (entities.ResultSnapshot, error) {
	results, setIDs, err := uc.compute(ctx, vote)
	if err != nil {
		return entities.ResultSnapshot{}, err
	}
	return entities.ResultSnapshot{
		VoteID:        results.VoteID,
		Status:        results.Status,
		ResponseCount: results.ResponseCount,
		Options:       results.Options,
		InputsHash:    entities.InputsHash(setIDs),
	}, nil
}

func (uc ResultsUseCase) GetResultSnapshot(ctx context.Context, voteID string, viewer entities.Viewer) (entities.ResultSnapshot, error) {
	vote, err := uc.readableVote(ctx, voteID, viewer)
	if err != nil {
		return entities.ResultSnapshot{}, err
	}
	return uc.Snapshots.GetResultSnapshot(ctx, vote.VoteID)
}

func (uc ResultsUseCase) compute(ctx context.Context, vote entities.Vote) (entities.VoteResults, []string, error) {
	options, err := uc.Votes.ListOptions(ctx, vote.VoteID)
	if err != nil {
		return entities.VoteResults{}, nil, err
	}
	sets, err := uc.Responses.ListResponseSets(ctx, vote.VoteID)
	if err != nil {
		return entities.VoteResults{}, nil, err
	}
	setIDs := make([]string, 0, len(sets))
	for _, set := range sets {
		setIDs = append(setIDs, set.ResponseSetID)
	}
	return entities.VoteResults{
		VoteID:        vote.VoteID,
		Status:        vote.Status,
		ResponseCount: len(sets),
		Options:       entities.Tally(options, sets),
	}, setIDs, nil
}

func (uc ResultsUseCase) readableVote(ctx context.Context, voteID string, viewer entities.Viewer) (entities.Vote, error) {
	voteID = strings.TrimSpace(voteID)
	if voteID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return entities.Vote{}, err
	}
	if !vote.CanReadResults(viewer) {
		return entities.Vote{}, domainerrors.ErrForbidden
	}
	return vote, nil
}
