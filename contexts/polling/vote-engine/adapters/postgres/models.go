package postgresadapter

import (
	"encoding/json"
	"time"

	"pollwarden/contexts/polling/vote-engine/domain/entities"

	"gorm.io/gorm"
)

type voteModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Slug        *string    `gorm:"column:slug;uniqueIndex:ux_votes_slug"`
	OwnerID     string     `gorm:"column:owner_id;index"`
	Title       string     `gorm:"column:title"`
	Description string     `gorm:"column:description"`
	Status      string     `gorm:"column:status;index"`
	OptionCount int        `gorm:"column:option_count"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	ClosedAt    *time.Time `gorm:"column:closed_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	row := voteModel{
		ID:          vote.VoteID,
		OwnerID:     vote.OwnerID,
		Title:       vote.Title,
		Description: vote.Description,
		Status:      string(vote.Status),
		OptionCount: vote.OptionCount,
		CreatedAt:   vote.CreatedAt.UTC(),
		UpdatedAt:   vote.UpdatedAt.UTC(),
		PublishedAt: normalizeOptionalTime(vote.PublishedAt),
		ClosedAt:    normalizeOptionalTime(vote.ClosedAt),
	}
	if vote.Slug != "" {
		slug := vote.Slug
		row.Slug = &slug
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m voteModel) toEntity() entities.Vote {
	vote := entities.Vote{
		VoteID:      m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description,
		Status:      entities.VoteStatus(m.Status),
		OptionCount: m.OptionCount,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		PublishedAt: normalizeOptionalTime(m.PublishedAt),
		ClosedAt:    normalizeOptionalTime(m.ClosedAt),
	}
	if m.Slug != nil {
		vote.Slug = *m.Slug
	}
	return vote
}

type optionModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	VoteID    string    `gorm:"column:vote_id;index"`
	Title     string    `gorm:"column:title"`
	Content   string    `gorm:"column:content"`
	Position  int       `gorm:"column:position"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (optionModel) TableName() string {
	return "vote_options"
}

func optionModelFromEntity(option entities.VoteOption) optionModel {
	return optionModel{
		ID:        option.OptionID,
		VoteID:    option.VoteID,
		Title:     option.Title,
		Content:   option.Content,
		Position:  option.Position,
		CreatedAt: option.CreatedAt.UTC(),
	}
}

func (m optionModel) toEntity() entities.VoteOption {
	return entities.VoteOption{
		OptionID:  m.ID,
		VoteID:    m.VoteID,
		Title:     m.Title,
		Content:   m.Content,
		Position:  m.Position,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// responseSetModel carries the one-per-identity guarantee in its unique index.
type responseSetModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	VoteID        string    `gorm:"column:vote_id;uniqueIndex:ux_response_sets_identity,priority:1"`
	IdentityKind  string    `gorm:"column:identity_kind;uniqueIndex:ux_response_sets_identity,priority:2"`
	IdentityValue string    `gorm:"column:identity_value;uniqueIndex:ux_response_sets_identity,priority:3"`
	SubmittedAt   time.Time `gorm:"column:submitted_at"`
}

func (responseSetModel) TableName() string {
	return "response_sets"
}

type responseValueModel struct {
	ResponseSetID string `gorm:"column:response_set_id;primaryKey"`
	OptionID      string `gorm:"column:option_id;primaryKey"`
	VoteID        string `gorm:"column:vote_id;index"`
	Score         int    `gorm:"column:score"`
}

func (responseValueModel) TableName() string {
	return "response_values"
}

type flagModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	VoteID      string     `gorm:"column:vote_id;index"`
	FlagType    string     `gorm:"column:flag_type"`
	ReportedBy  string     `gorm:"column:reported_by"`
	Reason      string     `gorm:"column:reason"`
	Status      string     `gorm:"column:status;index"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	ReviewedBy  string     `gorm:"column:reviewed_by"`
	ReviewNotes string     `gorm:"column:review_notes"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at"`
}

func (flagModel) TableName() string {
	return "vote_flags"
}

func flagModelFromEntity(flag entities.Flag) flagModel {
	return flagModel{
		ID:          flag.FlagID,
		VoteID:      flag.VoteID,
		FlagType:    string(flag.FlagType),
		ReportedBy:  flag.ReportedBy,
		Reason:      flag.Reason,
		Status:      string(flag.Status),
		CreatedAt:   flag.CreatedAt.UTC(),
		ReviewedBy:  flag.ReviewedBy,
		ReviewNotes: flag.ReviewNotes,
		ReviewedAt:  normalizeOptionalTime(flag.ReviewedAt),
	}
}

func (m flagModel) toEntity() entities.Flag {
	return entities.Flag{
		FlagID:      m.ID,
		VoteID:      m.VoteID,
		FlagType:    entities.FlagType(m.FlagType),
		ReportedBy:  m.ReportedBy,
		Reason:      m.Reason,
		Status:      entities.FlagStatus(m.Status),
		CreatedAt:   m.CreatedAt.UTC(),
		ReviewedBy:  m.ReviewedBy,
		ReviewNotes: m.ReviewNotes,
		ReviewedAt:  normalizeOptionalTime(m.ReviewedAt),
	}
}

// moderationActionModel is append-only; nothing updates or deletes rows.
type moderationActionModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	VoteID     string    `gorm:"column:vote_id;index"`
	ActionType string    `gorm:"column:action_type"`
	Reason     string    `gorm:"column:reason"`
	ActorID    string    `gorm:"column:actor_id"`
	FromStatus string    `gorm:"column:from_status"`
	ToStatus   string    `gorm:"column:to_status"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (moderationActionModel) TableName() string {
	return "moderation_actions"
}

func (m moderationActionModel) toEntity() entities.ModerationAction {
	return entities.ModerationAction{
		ActionID:   m.ID,
		VoteID:     m.VoteID,
		ActionType: entities.ActionType(m.ActionType),
		Reason:     m.Reason,
		ActorID:    m.ActorID,
		FromStatus: entities.VoteStatus(m.FromStatus),
		ToStatus:   entities.VoteStatus(m.ToStatus),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type resultSnapshotModel struct {
	VoteID        string    `gorm:"column:vote_id;primaryKey"`
	Status        string    `gorm:"column:status"`
	ResponseCount int       `gorm:"column:response_count"`
	Tallies       []byte    `gorm:"column:tallies;type:bytea"`
	InputsHash    string    `gorm:"column:inputs_hash"`
	TakenAt       time.Time `gorm:"column:taken_at"`
}

func (resultSnapshotModel) TableName() string {
	return "vote_result_snapshots"
}

type snapshotTally struct {
	OptionID   string `json:"option_id"`
	Title      string `json:"title"`
	Position   int    `json:"position"`
	Count      int    `json:"count"`
	TotalScore int    `json:"total_score"`
}

func snapshotModelFromEntity(snapshot entities.ResultSnapshot) (resultSnapshotModel, error) {
	tallies := make([]snapshotTally, 0, len(snapshot.Options))
	for _, option := range snapshot.Options {
		tallies = append(tallies, snapshotTally(option))
	}
	payload, err := json.Marshal(tallies)
	if err != nil {
		return resultSnapshotModel{}, err
	}
	return resultSnapshotModel{
		VoteID:        snapshot.VoteID,
		Status:        string(snapshot.Status),
		ResponseCount: snapshot.ResponseCount,
		Tallies:       payload,
		InputsHash:    snapshot.InputsHash,
		TakenAt:       snapshot.TakenAt.UTC(),
	}, nil
}

func (m resultSnapshotModel) toEntity() (entities.ResultSnapshot, error) {
	var tallies []snapshotTally
	if err := json.Unmarshal(m.Tallies, &tallies); err != nil {
		return entities.ResultSnapshot{}, err
	}
	options := make([]entities.OptionTally, 0, len(tallies))
	for _, tally := range tallies {
		options = append(options, entities.OptionTally(tally))
	}
	return entities.ResultSnapshot{
		VoteID:        m.VoteID,
		Status:        entities.VoteStatus(m.Status),
		ResponseCount: m.ResponseCount,
		Options:       options,
		InputsHash:    m.InputsHash,
		TakenAt:       m.TakenAt.UTC(),
	}, nil
}

// outboxModel rows relay in seq order; created_at is the event time and may
// repeat.
type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	Seq          int64      `gorm:"column:seq;autoIncrement;uniqueIndex"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:bytea"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "vote_outbox"
}

// AutoMigrate creates or updates every table the repository uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&voteModel{},
		&optionModel{},
		&responseSetModel{},
		&responseValueModel{},
		&flagModel{},
		&moderationActionModel{},
		&resultSnapshotModel{},
		&outboxModel{},
	)
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
