package ports

import (
	"context"
	"encoding/json"
	"time"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
)

// TransitionRequest is applied atomically: the status move, the optional
// audit row, and the outbox event commit together or not at all.
type TransitionRequest struct {
	VoteID     string
	Transition entities.Transition
	Slug       string
	MinOptions int
	Action     *entities.ModerationAction
	Event      EventEnvelope
	At         time.Time
}

type VoteRepository interface {
	CreateVote(
		ctx context.Context,
		vote entities.Vote,
		options []entities.VoteOption,
		event EventEnvelope,
	) error
	GetVote(ctx context.Context, voteID string) (entities.Vote, error)
	GetVoteBySlug(ctx context.Context, slug string) (entities.Vote, error)
	ListOptions(ctx context.Context, voteID string) ([]entities.VoteOption, error)
	AddOption(
		ctx context.Context,
		option entities.VoteOption,
		allowed []entities.VoteStatus,
		event EventEnvelope,
	) (entities.VoteOption, error)
	RemoveOption(ctx context.Context, voteID string, optionID string, event EventEnvelope) error
	TransitionVote(ctx context.Context, req TransitionRequest) (entities.Vote, error)
}

type ResponseRepository interface {
	// InsertResponseSet validates against the vote's committed state and
	// inserts only if (vote_id, identity) is absent.
	InsertResponseSet(
		ctx context.Context,
		set entities.ResponseSet,
		policy entities.ScorePolicy,
		event EventEnvelope,
	) error
	GetResponseSet(ctx context.Context, voteID string, identity entities.Identity) (entities.ResponseSet, bool, error)
	ListResponseSets(ctx context.Context, voteID string) ([]entities.ResponseSet, error)
}

type FlagRepository interface {
	CreateFlag(ctx context.Context, flag entities.Flag, event EventEnvelope) error
	GetFlag(ctx context.Context, flagID string) (entities.Flag, error)
	// ReviewFlag records the decision only while the flag is pending.
	ReviewFlag(ctx context.Context, review entities.FlagReview, event EventEnvelope) (entities.Flag, error)
	ListFlags(ctx context.Context, status entities.FlagStatus, limit int, offset int) ([]entities.Flag, error)
}

type ModerationRepository interface {
	ListModerationActions(ctx context.Context, voteID string) ([]entities.ModerationAction, error)
}

type SnapshotRepository interface {
	SaveResultSnapshot(ctx context.Context, snapshot entities.ResultSnapshot) error
	GetResultSnapshot(ctx context.Context, voteID string) (entities.ResultSnapshot, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
