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

// InsertResponseSet holds a share lock on the vote so a concurrent close
// waits for the insert, then relies on ux_response_sets_identity to admit
// exactly one set per identity.
func (r *Repository) InsertResponseSet(
	ctx context.Context,
	set entities.ResponseSet,
	policy entities.ScorePolicy,
	event ports.EventEnvelope,
) error {
	err := r.inTx(ctx, "insert_response_set", func(tx *gorm.DB) error {
		vote, err := lockVote(tx, set.VoteID, "SHARE")
		if err != nil {
			return err
		}
		if entities.VoteStatus(vote.Status) != entities.VoteStatusActive {
			return domainerrors.ErrVoteNotAcceptingSubmissions
		}

		var optionRows []optionModel
		if err := tx.Where("vote_id = ?", vote.ID).Order("position ASC").Find(&optionRows).Error; err != nil {
			return err
		}
		options := make([]entities.VoteOption, 0, len(optionRows))
		for _, row := range optionRows {
			options = append(options, row.toEntity())
		}
		if err := entities.ValidateResponseSet(options, set.Values, policy); err != nil {
			return err
		}

		row := responseSetModel{
			ID:            set.ResponseSetID,
			VoteID:        vote.ID,
			IdentityKind:  string(set.Identity.Kind),
			IdentityValue: set.Identity.Value,
			SubmittedAt:   set.SubmittedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateIdentity
			}
			return err
		}
		values := make([]responseValueModel, 0, len(options))
		for _, option := range options {
			values = append(values, responseValueModel{
				ResponseSetID: row.ID,
				OptionID:      option.OptionID,
				VoteID:        vote.ID,
				Score:         set.Values[option.OptionID],
			})
		}
		if err := tx.Create(&values).Error; err != nil {
			return err
		}
		return appendOutboxTx(tx, event)
	})
	if err != nil {
		return r.fail("vote_repo_insert_response_set_failed", err,
			"vote_id", set.VoteID,
			"response_set_id", set.ResponseSetID,
		)
	}
	return nil
}

func (r *Repository) GetResponseSet(
	ctx context.Context,
	voteID string,
	identity entities.Identity,
) (entities.ResponseSet, bool, error) {
	var row responseSetModel
	err := r.withRetry(ctx, "get_response_set", func() error {
		return r.db.WithContext(ctx).
			Where("vote_id = ? AND identity_kind = ? AND identity_value = ?",
				strings.TrimSpace(voteID), string(identity.Kind), identity.Value).
			First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ResponseSet{}, false, nil
		}
		return entities.ResponseSet{}, false, r.logError("vote_repo_get_response_set_failed", err,
			"vote_id", strings.TrimSpace(voteID),
		)
	}
	sets, err := r.attachValues(ctx, []responseSetModel{row})
	if err != nil {
		return entities.ResponseSet{}, false, err
	}
	return sets[0], true, nil
}

func (r *Repository) ListResponseSets(ctx context.Context, voteID string) ([]entities.ResponseSet, error) {
	var rows []responseSetModel
	err := r.withRetry(ctx, "list_response_sets", func() error {
		rows = nil
		return r.db.WithContext(ctx).
			Where("vote_id = ?", strings.TrimSpace(voteID)).
			Order("submitted_at ASC, id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, r.logError("vote_repo_list_response_sets_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	return r.attachValues(ctx, rows)
}

func (r *Repository) attachValues(ctx context.Context, rows []responseSetModel) ([]entities.ResponseSet, error) {
	if len(rows) == 0 {
		return []entities.ResponseSet{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var values []responseValueModel
	err := r.withRetry(ctx, "list_response_values", func() error {
		values = nil
		return r.db.WithContext(ctx).Where("response_set_id IN ?", ids).Find(&values).Error
	})
	if err != nil {
		return nil, r.logError("vote_repo_list_response_values_failed", err, "response_set_count", len(ids))
	}
	byID := make(map[string]map[string]int, len(rows))
	for _, value := range values {
		if byID[value.ResponseSetID] == nil {
			byID[value.ResponseSetID] = make(map[string]int)
		}
		byID[value.ResponseSetID][value.OptionID] = value.Score
	}
	items := make([]entities.ResponseSet, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.ResponseSet{
			ResponseSetID: row.ID,
			VoteID:        row.VoteID,
			Identity: entities.Identity{
				Kind:  entities.IdentityKind(row.IdentityKind),
				Value: row.IdentityValue,
			},
			Values:      byID[row.ID],
			SubmittedAt: row.SubmittedAt.UTC(),
		})
	}
	return items, nil
}
