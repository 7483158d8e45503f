package postgresadapter

import (
	"context"
	"errors"
	"strings"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"gorm.io/gorm"
)

func (r *Repository) CreateFlag(ctx context.Context, flag entities.Flag, event ports.EventEnvelope) error {
	row := flagModelFromEntity(flag)
	err := r.inTx(ctx, "create_flag", func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&voteModel{}).Where("id = ?", row.VoteID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrVoteNotFound
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrConflict
			}
			return err
		}
		return appendOutboxTx(tx, event)
	})
	if err != nil {
		return r.fail("vote_repo_create_flag_failed", err, "flag_id", flag.FlagID, "vote_id", flag.VoteID)
	}
	return nil
}

func (r *Repository) GetFlag(ctx context.Context, flagID string) (entities.Flag, error) {
	var row flagModel
	err := r.withRetry(ctx, "get_flag", func() error {
		return r.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(flagID)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Flag{}, domainerrors.ErrFlagNotFound
		}
		return entities.Flag{}, r.logError("vote_repo_get_flag_failed", err, "flag_id", strings.TrimSpace(flagID))
	}
	return row.toEntity(), nil
}

// ReviewFlag writes the decision with a pending-only conditional update, so
// of two racing reviews exactly one commits.
func (r *Repository) ReviewFlag(ctx context.Context, review entities.FlagReview, event ports.EventEnvelope) (entities.Flag, error) {
	var updated flagModel
	err := r.inTx(ctx, "review_flag", func(tx *gorm.DB) error {
		result := tx.Model(&flagModel{}).
			Where("id = ? AND status = ?", review.FlagID, string(entities.FlagStatusPending)).
			Updates(map[string]any{
				"status":       string(review.Status),
				"reviewed_by":  review.ReviewerID,
				"review_notes": review.Notes,
				"reviewed_at":  review.ReviewedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&flagModel{}).Where("id = ?", review.FlagID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrFlagNotFound
			}
			return domainerrors.ErrFlagAlreadyReviewed
		}
		if err := appendOutboxTx(tx, event); err != nil {
			return err
		}
		return tx.Where("id = ?", review.FlagID).First(&updated).Error
	})
	if err != nil {
		return entities.Flag{}, r.fail("vote_repo_review_flag_failed", err, "flag_id", review.FlagID)
	}
	return updated.toEntity(), nil
}

func (r *Repository) ListFlags(ctx context.Context, status entities.FlagStatus, limit int, offset int) ([]entities.Flag, error) {
	var rows []flagModel
	err := r.withRetry(ctx, "list_flags", func() error {
		rows = nil
		query := r.db.WithContext(ctx).Model(&flagModel{})
		if status != "" {
			query = query.Where("status = ?", string(status))
		}
		if limit > 0 {
			query = query.Limit(limit)
		}
		return query.Order("created_at ASC, id ASC").Offset(offset).Find(&rows).Error
	})
	if err != nil {
		return nil, r.logError("vote_repo_list_flags_failed", err, "status", string(status))
	}
	items := make([]entities.Flag, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}
