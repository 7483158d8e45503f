package postgresadapter

import (
	"context"
	"errors"
	"strings"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateVote(
	ctx context.Context,
	vote entities.Vote,
	options []entities.VoteOption,
	event ports.EventEnvelope,
) error {
	vote.OptionCount = len(options)
	row := voteModelFromEntity(vote)
	err := r.inTx(ctx, "create_vote", func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrConflict
			}
			return err
		}
		if len(options) > 0 {
			rows := make([]optionModel, 0, len(options))
			for _, option := range options {
				rows = append(rows, optionModelFromEntity(option))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return appendOutboxTx(tx, event)
	})
	if err != nil {
		return r.fail("vote_repo_create_vote_failed", err, "vote_id", vote.VoteID)
	}
	return nil
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.Vote, error) {
	var row voteModel
	err := r.withRetry(ctx, "get_vote", func() error {
		return r.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(voteID)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("vote_repo_get_vote_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	return row.toEntity(), nil
}

func (r *Repository) GetVoteBySlug(ctx context.Context, slug string) (entities.Vote, error) {
	var row voteModel
	err := r.withRetry(ctx, "get_vote_by_slug", func() error {
		return r.db.WithContext(ctx).Where("slug = ?", strings.TrimSpace(slug)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("vote_repo_get_vote_by_slug_failed", err, "slug", strings.TrimSpace(slug))
	}
	return row.toEntity(), nil
}

func (r *Repository) ListOptions(ctx context.Context, voteID string) ([]entities.VoteOption, error) {
	var rows []optionModel
	err := r.withRetry(ctx, "list_options", func() error {
		rows = nil
		return r.db.WithContext(ctx).
			Where("vote_id = ?", strings.TrimSpace(voteID)).
			Order("position ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, r.logError("vote_repo_list_options_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	items := make([]entities.VoteOption, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AddOption(
	ctx context.Context,
	option entities.VoteOption,
	allowed []entities.VoteStatus,
	event ports.EventEnvelope,
) (entities.VoteOption, error) {
	transition := entities.Transition{From: allowed}
	err := r.inTx(ctx, "add_option", func(tx *gorm.DB) error {
		vote, err := lockVote(tx, option.VoteID, "UPDATE")
		if err != nil {
			return err
		}
		if !transition.Allows(entities.VoteStatus(vote.Status)) {
			return domainerrors.ErrInvalidStateTransition
		}

		var next struct{ Position int }
		if err := tx.Model(&optionModel{}).
			Select("COALESCE(MAX(position) + 1, 0) AS position").
			Where("vote_id = ?", vote.ID).
			Scan(&next).Error; err != nil {
			return err
		}
		option.Position = next.Position
		row := optionModelFromEntity(option)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Model(&voteModel{}).
			Where("id = ?", vote.ID).
			Updates(map[string]any{
				"option_count": gorm.Expr("option_count + 1"),
				"updated_at":   option.CreatedAt.UTC(),
			}).Error; err != nil {
			return err
		}
		return appendOutboxTx(tx, event)
	})
	if err != nil {
		return entities.VoteOption{}, r.fail("vote_repo_add_option_failed", err,
			"vote_id", option.VoteID,
			"option_id", option.OptionID,
		)
	}
	return option, nil
}

func (r *Repository) RemoveOption(ctx context.Context, voteID string, optionID string, event ports.EventEnvelope) error {
	err := r.inTx(ctx, "remove_option", func(tx *gorm.DB) error {
		vote, err := lockVote(tx, voteID, "UPDATE")
		if err != nil {
			return err
		}
		if entities.VoteStatus(vote.Status) != entities.VoteStatusDraft {
			return domainerrors.ErrInvalidStateTransition
		}
		result := tx.Where("id = ? AND vote_id = ?", optionID, vote.ID).Delete(&optionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrOptionNotFound
		}
		if err := tx.Model(&voteModel{}).
			Where("id = ?", vote.ID).
			Updates(map[string]any{
				"option_count": gorm.Expr("option_count - 1"),
				"updated_at":   event.OccurredAt.UTC(),
			}).Error; err != nil {
			return err
		}
		return appendOutboxTx(tx, event)
	})
	if err != nil {
		return r.fail("vote_repo_remove_option_failed", err, "vote_id", voteID, "option_id", optionID)
	}
	return nil
}

// TransitionVote applies a status move with a conditional update on the
// locked row. The audit row and outbox event share the transaction.
func (r *Repository) TransitionVote(ctx context.Context, req ports.TransitionRequest) (entities.Vote, error) {
	var updated voteModel
	err := r.inTx(ctx, "transition_vote", func(tx *gorm.DB) error {
		row, err := lockVote(tx, req.VoteID, "UPDATE")
		if err != nil {
			return err
		}
		from := entities.VoteStatus(row.Status)
		if !req.Transition.Allows(from) {
			return domainerrors.ErrInvalidStateTransition
		}
		if req.MinOptions > 0 {
			var count int64
			if err := tx.Model(&optionModel{}).Where("vote_id = ?", row.ID).Count(&count).Error; err != nil {
				return err
			}
			if int(count) < req.MinOptions {
				return domainerrors.ErrNotEnoughOptions
			}
		}

		at := req.At.UTC()
		updates := map[string]any{
			"status":     string(req.Transition.To),
			"updated_at": at,
		}
		if req.Transition.To == entities.VoteStatusActive && row.PublishedAt == nil {
			updates["published_at"] = at
		}
		if req.Transition.To == entities.VoteStatusClosed && row.ClosedAt == nil {
			updates["closed_at"] = at
		}
		if req.Slug != "" && row.Slug == nil {
			updates["slug"] = req.Slug
		}
		result := tx.Model(&voteModel{}).
			Where("id = ? AND status IN ?", row.ID, req.Transition.FromStrings()).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrInvalidStateTransition
		}

		if req.Action != nil {
			action := moderationActionModel{
				ID:         req.Action.ActionID,
				VoteID:     row.ID,
				ActionType: string(req.Action.ActionType),
				Reason:     req.Action.Reason,
				ActorID:    req.Action.ActorID,
				FromStatus: string(from),
				ToStatus:   string(req.Transition.To),
				CreatedAt:  req.Action.CreatedAt.UTC(),
			}
			if err := tx.Create(&action).Error; err != nil {
				return err
			}
		}
		if err := appendOutboxTx(tx, req.Event); err != nil {
			return err
		}
		return tx.Where("id = ?", row.ID).First(&updated).Error
	})
	if err != nil {
		return entities.Vote{}, r.fail("vote_repo_transition_vote_failed", err,
			"vote_id", req.VoteID,
			"to_status", string(req.Transition.To),
		)
	}
	return updated.toEntity(), nil
}

func (r *Repository) ListModerationActions(ctx context.Context, voteID string) ([]entities.ModerationAction, error) {
	var rows []moderationActionModel
	err := r.withRetry(ctx, "list_moderation_actions", func() error {
		rows = nil
		return r.db.WithContext(ctx).
			Where("vote_id = ?", strings.TrimSpace(voteID)).
			Order("created_at ASC, id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, r.logError("vote_repo_list_moderation_actions_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	items := make([]entities.ModerationAction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// lockVote loads the vote row under a row lock. strength is UPDATE for
// writers that change the vote and SHARE for writers that only depend on it.
func lockVote(tx *gorm.DB, voteID string, strength string) (voteModel, error) {
	var row voteModel
	err := tx.Clauses(clause.Locking{Strength: strength}).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return voteModel{}, domainerrors.ErrVoteNotFound
		}
		return voteModel{}, err
	}
	return row, nil
}
