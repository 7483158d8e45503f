package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"pollwarden/contexts/polling/vote-engine/application/commands"
	"pollwarden/contexts/polling/vote-engine/application/queries"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	httptransport "pollwarden/contexts/polling/vote-engine/transport/http"
)

type Handler struct {
	Lifecycle   commands.LifecycleUseCase
	Submissions commands.SubmissionUseCase
	Moderation  commands.ModerationUseCase
	Results     queries.ResultsUseCase
	Queries     queries.VoteQueryUseCase
	Logger      *slog.Logger
}

func (h Handler) CreateVoteHandler(
	ctx context.Context,
	ownerID string,
	req httptransport.CreateVoteRequest,
) (httptransport.VoteResponse, error) {
	options := make([]commands.OptionInput, 0, len(req.Options))
	for _, option := range req.Options {
		options = append(options, commands.OptionInput{Title: option.Title, Content: option.Content})
	}
	vote, created, err := h.Lifecycle.CreateVote(ctx, commands.CreateVoteCommand{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Options:     options,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(vote, created), nil
}

func (h Handler) AddOptionHandler(
	ctx context.Context,
	voteID string,
	actorID string,
	req httptransport.OptionRequest,
) (httptransport.OptionResponse, error) {
	option, err := h.Lifecycle.AddOption(ctx, commands.AddOptionCommand{
		VoteID:  voteID,
		ActorID: actorID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return httptransport.OptionResponse{}, err
	}
	return mapOption(option), nil
}

func (h Handler) RemoveOptionHandler(ctx context.Context, voteID string, optionID string, actorID string) error {
	return h.Lifecycle.RemoveOption(ctx, commands.RemoveOptionCommand{
		VoteID:   voteID,
		OptionID: optionID,
		ActorID:  actorID,
	})
}

func (h Handler) PublishHandler(ctx context.Context, voteID string, actorID string) (httptransport.VoteResponse, error) {
	vote, err := h.Lifecycle.Publish(ctx, commands.CreatorTransitionCommand{VoteID: voteID, ActorID: actorID})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(vote, nil), nil
}

func (h Handler) CloseHandler(ctx context.Context, voteID string, actorID string) (httptransport.VoteResponse, error) {
	vote, err := h.Lifecycle.Close(ctx, commands.CreatorTransitionCommand{VoteID: voteID, ActorID: actorID})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(vote, nil), nil
}

func (h Handler) GetVoteHandler(
	ctx context.Context,
	voteID string,
	viewer entities.Viewer,
) (httptransport.VoteResponse, error) {
	view, err := h.Queries.GetVote(ctx, voteID, viewer)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(view.Vote, view.Options), nil
}

func (h Handler) GetVoteBySlugHandler(
	ctx context.Context,
	slug string,
	viewer entities.Viewer,
) (httptransport.VoteResponse, error) {
	view, err := h.Queries.GetVoteBySlug(ctx, slug, viewer)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(view.Vote, view.Options), nil
}

func (h Handler) SubmitHandler(
	ctx context.Context,
	voteID string,
	identity entities.Identity,
	req httptransport.SubmitResponseRequest,
) (httptransport.SubmitResponseResponse, error) {
	set, err := h.Submissions.Submit(ctx, commands.SubmitResponseCommand{
		VoteID:   voteID,
		Identity: identity,
		Values:   req.Values,
	})
	if err != nil {
		return httptransport.SubmitResponseResponse{}, err
	}
	return httptransport.SubmitResponseResponse{
		Status:        "accepted",
		ResponseSetID: set.ResponseSetID,
		VoteID:        set.VoteID,
		IdentityKind:  string(set.Identity.Kind),
		SubmittedAt:   set.SubmittedAt,
	}, nil
}

func (h Handler) ResultsHandler(
	ctx context.Context,
	voteID string,
	viewer entities.Viewer,
) (httptransport.ResultsResponse, error) {
	results, err := h.Results.GetResults(ctx, voteID, viewer)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return mapResults(results.VoteID, results.Status, results.ResponseCount, results.Options), nil
}

func (h Handler) SnapshotHandler(
	ctx context.Context,
	voteID string,
	viewer entities.Viewer,
) (httptransport.SnapshotResponse, error) {
	snapshot, err := h.Results.GetResultSnapshot(ctx, voteID, viewer)
	if err != nil {
		return httptransport.SnapshotResponse{}, err
	}
	return httptransport.SnapshotResponse{
		ResultsResponse: mapResults(snapshot.VoteID, snapshot.Status, snapshot.ResponseCount, snapshot.Options),
		InputsHash:      snapshot.InputsHash,
		TakenAt:         snapshot.TakenAt,
	}, nil
}

func (h Handler) FlagHandler(
	ctx context.Context,
	voteID string,
	reporterID string,
	req httptransport.FlagRequest,
) (httptransport.FlagResponse, error) {
	flag, err := h.Moderation.SubmitFlag(ctx, commands.SubmitFlagCommand{
		VoteID:     voteID,
		ReporterID: reporterID,
		FlagType:   entities.FlagType(strings.ToLower(strings.TrimSpace(req.FlagType))),
		Reason:     req.Reason,
	})
	if err != nil {
		return httptransport.FlagResponse{}, err
	}
	return mapFlag(flag), nil
}

func (h Handler) ListFlagsHandler(
	ctx context.Context,
	status string,
	limitRaw string,
	offsetRaw string,
) (httptransport.FlagListResponse, error) {
	limit, err := parseOptionalInt(limitRaw)
	if err != nil {
		return httptransport.FlagListResponse{}, err
	}
	offset, err := parseOptionalInt(offsetRaw)
	if err != nil {
		return httptransport.FlagListResponse{}, err
	}
	flags, err := h.Queries.ListFlags(ctx, status, limit, offset)
	if err != nil {
		return httptransport.FlagListResponse{}, err
	}
	items := make([]httptransport.FlagResponse, 0, len(flags))
	for _, flag := range flags {
		items = append(items, mapFlag(flag))
	}
	return httptransport.FlagListResponse{Items: items}, nil
}

func (h Handler) ReviewFlagHandler(
	ctx context.Context,
	flagID string,
	reviewerID string,
	req httptransport.ReviewFlagRequest,
) (httptransport.FlagResponse, error) {
	flag, err := h.Moderation.ReviewFlag(ctx, commands.ReviewFlagCommand{
		FlagID:     flagID,
		ReviewerID: reviewerID,
		Decision:   entities.ReviewDecision(strings.ToLower(strings.TrimSpace(req.Decision))),
		Notes:      req.Notes,
	})
	if err != nil {
		return httptransport.FlagResponse{}, err
	}
	return mapFlag(flag), nil
}

func (h Handler) ApplyActionHandler(
	ctx context.Context,
	voteID string,
	actorID string,
	req httptransport.ApplyActionRequest,
) (httptransport.VoteResponse, error) {
	vote, err := h.Moderation.ApplyAction(ctx, commands.ApplyActionCommand{
		VoteID:  voteID,
		ActorID: actorID,
		Action:  entities.ActionType(strings.ToLower(strings.TrimSpace(req.Action))),
		Reason:  req.Reason,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(vote, nil), nil
}

func (h Handler) BulkActionHandler(
	ctx context.Context,
	actorID string,
	req httptransport.BulkActionRequest,
) (httptransport.BulkActionResponse, error) {
	result, err := h.Moderation.ApplyBulkAction(ctx, commands.BulkActionCommand{
		VoteIDs: req.VoteIDs,
		ActorID: actorID,
		Action:  entities.ActionType(strings.ToLower(strings.TrimSpace(req.Action))),
		Reason:  req.Reason,
	})
	if err != nil {
		return httptransport.BulkActionResponse{}, err
	}
	resp := httptransport.BulkActionResponse{Items: make([]httptransport.BulkActionItem, 0, len(result.Items))}
	for _, item := range result.Items {
		if item.Err != nil {
			resp.Failed++
			resp.Items = append(resp.Items, httptransport.BulkActionItem{
				VoteID:    item.VoteID,
				Result:    "error",
				ErrorCode: ErrorCode(item.Err),
				Message:   item.Err.Error(),
			})
			continue
		}
		resp.Succeeded++
		resp.Items = append(resp.Items, httptransport.BulkActionItem{
			VoteID:     item.VoteID,
			Result:     "ok",
			VoteStatus: string(item.Vote.Status),
		})
	}
	return resp, nil
}

func (h Handler) ListModerationActionsHandler(
	ctx context.Context,
	voteID string,
) (httptransport.ModerationActionListResponse, error) {
	actions, err := h.Queries.ListModerationActions(ctx, voteID)
	if err != nil {
		return httptransport.ModerationActionListResponse{}, err
	}
	items := make([]httptransport.ModerationActionResponse, 0, len(actions))
	for _, action := range actions {
		items = append(items, httptransport.ModerationActionResponse{
			ActionID:   action.ActionID,
			VoteID:     action.VoteID,
			ActionType: string(action.ActionType),
			Reason:     action.Reason,
			ActorID:    action.ActorID,
			FromStatus: string(action.FromStatus),
			ToStatus:   string(action.ToStatus),
			CreatedAt:  action.CreatedAt,
		})
	}
	return httptransport.ModerationActionListResponse{Items: items}, nil
}

// ErrorCode maps domain errors to stable machine-readable codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domainerrors.ErrVoteNotFound):
		return "vote_not_found"
	case errors.Is(err, domainerrors.ErrOptionNotFound):
		return "option_not_found"
	case errors.Is(err, domainerrors.ErrFlagNotFound):
		return "flag_not_found"
	case errors.Is(err, domainerrors.ErrSnapshotNotFound):
		return "snapshot_not_found"
	case errors.Is(err, domainerrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domainerrors.ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, domainerrors.ErrNotEnoughOptions):
		return "not_enough_options"
	case errors.Is(err, domainerrors.ErrVoteNotAcceptingSubmissions):
		return "vote_not_accepting_submissions"
	case errors.Is(err, domainerrors.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, domainerrors.ErrIncompleteResponseSet):
		return "incomplete_response_set"
	case errors.Is(err, domainerrors.ErrOutOfRangeScore):
		return "out_of_range_score"
	case errors.Is(err, domainerrors.ErrInvalidModerationAction):
		return "invalid_moderation_action"
	case errors.Is(err, domainerrors.ErrInvalidReviewDecision):
		return "invalid_review_decision"
	case errors.Is(err, domainerrors.ErrFlagAlreadyReviewed):
		return "flag_already_reviewed"
	case errors.Is(err, domainerrors.ErrNotPending):
		return "not_pending"
	case errors.Is(err, domainerrors.ErrBatchTooLarge):
		return "batch_too_large"
	case errors.Is(err, domainerrors.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, domainerrors.ErrConflict):
		return "conflict"
	default:
		return "internal_error"
	}
}

func mapVote(vote entities.Vote, options []entities.VoteOption) httptransport.VoteResponse {
	resp := httptransport.VoteResponse{
		VoteID:      vote.VoteID,
		Slug:        vote.Slug,
		OwnerID:     vote.OwnerID,
		Title:       vote.Title,
		Description: vote.Description,
		Status:      string(vote.Status),
		OptionCount: vote.OptionCount,
		CreatedAt:   vote.CreatedAt,
		PublishedAt: vote.PublishedAt,
		ClosedAt:    vote.ClosedAt,
	}
	for _, option := range options {
		resp.Options = append(resp.Options, mapOption(option))
	}
	return resp
}

func mapOption(option entities.VoteOption) httptransport.OptionResponse {
	return httptransport.OptionResponse{
		OptionID: option.OptionID,
		Title:    option.Title,
		Content:  option.Content,
		Position: option.Position,
	}
}

func mapResults(
	voteID string,
	status entities.VoteStatus,
	responseCount int,
	tallies []entities.OptionTally,
) httptransport.ResultsResponse {
	results := make(map[string]httptransport.OptionResult, len(tallies))
	for _, tally := range tallies {
		results[tally.OptionID] = httptransport.OptionResult{
			Title:      tally.Title,
			Position:   tally.Position,
			Count:      tally.Count,
			TotalScore: tally.TotalScore,
			Mean:       tally.Mean(),
		}
	}
	return httptransport.ResultsResponse{
		VoteID:        voteID,
		Status:        string(status),
		ResponseCount: responseCount,
		Results:       results,
	}
}

func mapFlag(flag entities.Flag) httptransport.FlagResponse {
	return httptransport.FlagResponse{
		FlagID:      flag.FlagID,
		VoteID:      flag.VoteID,
		FlagType:    string(flag.FlagType),
		ReportedBy:  flag.ReportedBy,
		Reason:      flag.Reason,
		Status:      string(flag.Status),
		CreatedAt:   flag.CreatedAt,
		ReviewedBy:  flag.ReviewedBy,
		ReviewNotes: flag.ReviewNotes,
		ReviewedAt:  flag.ReviewedAt,
	}
}

func parseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domainerrors.ErrInvalidInput
	}
	return value, nil
}
