package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.withRetry(ctx, "list_pending_outbox", func() error {
		rows = nil
		return r.db.WithContext(ctx).
			Where("status = ?", outboxStatusPending).
			Order("seq ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, r.logError("vote_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	var affected int64
	err := r.withRetry(ctx, "mark_outbox_published", func() error {
		result := r.db.WithContext(ctx).
			Model(&outboxModel{}).
			Where("outbox_id = ?", strings.TrimSpace(outboxID)).
			Updates(map[string]any{
				"status":       outboxStatusPublished,
				"published_at": publishedAt.UTC(),
			})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return r.logError("vote_repo_mark_outbox_published_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	if affected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) SaveResultSnapshot(ctx context.Context, snapshot entities.ResultSnapshot) error {
	row, err := snapshotModelFromEntity(snapshot)
	if err != nil {
		return r.logError("vote_repo_snapshot_encode_failed", err, "vote_id", snapshot.VoteID)
	}
	err = r.withRetry(ctx, "save_result_snapshot", func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "vote_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"response_count",
				"tallies",
				"inputs_hash",
				"taken_at",
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return r.logError("vote_repo_save_result_snapshot_failed", err, "vote_id", snapshot.VoteID)
	}
	return nil
}

func (r *Repository) GetResultSnapshot(ctx context.Context, voteID string) (entities.ResultSnapshot, error) {
	var row resultSnapshotModel
	err := r.withRetry(ctx, "get_result_snapshot", func() error {
		return r.db.WithContext(ctx).Where("vote_id = ?", strings.TrimSpace(voteID)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ResultSnapshot{}, domainerrors.ErrSnapshotNotFound
		}
		return entities.ResultSnapshot{}, r.logError("vote_repo_get_result_snapshot_failed", err,
			"vote_id", strings.TrimSpace(voteID),
		)
	}
	snapshot, err := row.toEntity()
	if err != nil {
		return entities.ResultSnapshot{}, r.logError("vote_repo_snapshot_decode_failed", err, "vote_id", row.VoteID)
	}
	return snapshot, nil
}
