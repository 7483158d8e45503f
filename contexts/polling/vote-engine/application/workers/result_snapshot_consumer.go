package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "pollwarden/contexts/polling/vote-engine/application"
	"pollwarden/contexts/polling/vote-engine/application/commands"
	"pollwarden/contexts/polling/vote-engine/application/queries"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultSnapshotCG       = "vote-engine-result-snapshot-cg"
	defaultSnapshotAttempts = 5
)

// ResultSnapshotConsumer freezes a copy of a vote's tallies whenever the vote
// is closed or moderated, so operators can compare later reads against it.
type ResultSnapshotConsumer struct {
	Subscriber    ports.EventSubscriber
	Votes         ports.VoteRepository
	Snapshots     ports.SnapshotRepository
	Results       queries.ResultsUseCase
	Clock         ports.Clock
	ConsumerGroup string
	RetryAttempts int
	BackOff       func() backoff.BackOff
	Logger        *slog.Logger
}

func (c ResultSnapshotConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultSnapshotCG
	}
	for _, topic := range []string{commands.EventVoteClosed, commands.EventVoteModerated} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.Handle); err != nil {
			logger.Error("result snapshot consumer subscribe failed",
				"event", "vote_snapshot_consumer_subscribe_failed",
				"module", "polling/vote-engine",
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("result snapshot consumer subscriptions active",
		"event", "vote_snapshot_consumer_started",
		"module", "polling/vote-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

// Handle is safe to repeat for the same event; the latest snapshot wins.
// Transient read or write failures are retried here because the relay has
// already marked the event published by the time a subscriber sees it.
func (c ResultSnapshotConsumer) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload struct {
		VoteID string `json:"vote_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return err
	}
	voteID := strings.TrimSpace(payload.VoteID)
	if voteID == "" {
		voteID = strings.TrimSpace(event.PartitionKey)
	}

	var (
		vote     entities.Vote
		snapshot entities.ResultSnapshot
		skipped  bool
	)
	store := func() error {
		var err error
		vote, err = c.Votes.GetVote(ctx, voteID)
		if errors.Is(err, domainerrors.ErrVoteNotFound) {
			skipped = true
			return nil
		}
		if err != nil {
			return err
		}
		snapshot, err = c.Results.Snapshot(ctx, vote)
		if err != nil {
			return err
		}
		snapshot.TakenAt = time.Now().UTC()
		if c.Clock != nil {
			snapshot.TakenAt = c.Clock.Now().UTC()
		}
		return c.Snapshots.SaveResultSnapshot(ctx, snapshot)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.backOff(), uint64(c.attempts()-1)),
		ctx,
	)
	err := backoff.RetryNotify(store, policy, func(err error, wait time.Duration) {
		logger.Warn("result snapshot retrying",
			"event", "vote_snapshot_retry",
			"module", "polling/vote-engine",
			"layer", "worker",
			"vote_id", voteID,
			"event_id", event.EventID,
			"wait", wait.String(),
			"error", err.Error(),
		)
	})
	if err != nil {
		logger.Error("result snapshot lost",
			"event", "vote_snapshot_failed",
			"module", "polling/vote-engine",
			"layer", "worker",
			"vote_id", voteID,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if skipped {
		logger.Warn("result snapshot skipped for unknown vote",
			"event", "vote_snapshot_skipped",
			"module", "polling/vote-engine",
			"layer", "worker",
			"vote_id", voteID,
			"event_id", event.EventID,
		)
		return nil
	}

	logger.Info("result snapshot stored",
		"event", "vote_snapshot_stored",
		"module", "polling/vote-engine",
		"layer", "worker",
		"vote_id", vote.VoteID,
		"status", string(vote.Status),
		"response_count", snapshot.ResponseCount,
		"event_id", event.EventID,
	)
	return nil
}

func (c ResultSnapshotConsumer) attempts() int {
	if c.RetryAttempts < 1 {
		return defaultSnapshotAttempts
	}
	return c.RetryAttempts
}

func (c ResultSnapshotConsumer) backOff() backoff.BackOff {
	if c.BackOff != nil {
		return c.BackOff()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	return policy
}
