package commands

import (
	"context"
	"encoding/json"
	"time"

	"pollwarden/contexts/polling/vote-engine/ports"
)

const (
	EventVoteCreated       = "vote.created"
	EventVoteOptionAdded   = "vote.option_added"
	EventVoteOptionRemoved = "vote.option_removed"
	EventVotePublished     = "vote.published"
	EventVoteClosed        = "vote.closed"
	EventVoteModerated     = "vote.moderated"
	EventResponseAccepted  = "vote.response_accepted"
	EventFlagSubmitted     = "vote.flag_submitted"
	EventFlagReviewed      = "vote.flag_reviewed"
)

func newVoteEnvelope(
	eventID string,
	eventType string,
	voteID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Every command-side event is partitioned by vote so consumers see one
	// vote's history in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "vote_id",
		PartitionKey:     voteID,
		Data:             payload,
	}, nil
}

func buildEvent(
	ctx context.Context,
	idGen ports.IDGenerator,
	eventType string,
	voteID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return newVoteEnvelope(eventID, eventType, voteID, occurredAt, data)
}

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
