//go:build container

package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func startPostgres(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pollwarden",
				"POSTGRES_PASSWORD": "pollwarden",
				"POSTGRES_DB":       "pollwarden",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("host=%s port=%s user=pollwarden password=pollwarden dbname=pollwarden sslmode=disable",
		host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testEvent(eventType string, voteID string) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		OccurredAt:   time.Now().UTC(),
		PartitionKey: voteID,
		Data:         []byte(`{}`),
	}
}

func seedActive(t *testing.T, repo *Repository) (entities.Vote, []entities.VoteOption) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	vote := entities.Vote{
		VoteID:    uuid.NewString(),
		OwnerID:   "owner-1",
		Title:     "Retro topic",
		Status:    entities.VoteStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	options := []entities.VoteOption{
		{OptionID: uuid.NewString(), VoteID: vote.VoteID, Title: "A", Position: 0, CreatedAt: now},
		{OptionID: uuid.NewString(), VoteID: vote.VoteID, Title: "B", Position: 1, CreatedAt: now},
	}
	if err := repo.CreateVote(ctx, vote, options, testEvent("vote.created", vote.VoteID)); err != nil {
		t.Fatalf("create vote: %v", err)
	}
	published, err := repo.TransitionVote(ctx, ports.TransitionRequest{
		VoteID:     vote.VoteID,
		Transition: entities.PublishTransition,
		Slug:       vote.VoteID[:8],
		MinOptions: entities.MinPublishOptions,
		Event:      testEvent("vote.published", vote.VoteID),
		At:         now,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return published, options
}

func TestPostgresConcurrentSubmitAcceptsOne(t *testing.T) {
	repo := startPostgres(t)
	vote, options := seedActive(t, repo)
	identity := entities.Identity{Kind: entities.IdentityKindAnonymous, Value: "h1"}

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, duplicates := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InsertResponseSet(context.Background(), entities.ResponseSet{
				ResponseSetID: uuid.NewString(),
				VoteID:        vote.VoteID,
				Identity:      identity,
				Values:        map[string]int{options[0].OptionID: 1, options[1].OptionID: -1},
				SubmittedAt:   time.Now().UTC(),
			}, entities.DefaultScorePolicy(), testEvent("vote.response_accepted", vote.VoteID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domainerrors.ErrDuplicateIdentity):
				duplicates++
			default:
				t.Errorf("unexpected insert error: %v", err)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 || duplicates != attempts-1 {
		t.Fatalf("expected 1 accepted, got %d accepted and %d duplicates", accepted, duplicates)
	}
	sets, err := repo.ListResponseSets(context.Background(), vote.VoteID)
	if err != nil || len(sets) != 1 {
		t.Fatalf("expected one stored set, got %d and %v", len(sets), err)
	}
}

func TestPostgresTransitionWritesAuditAtomically(t *testing.T) {
	repo := startPostgres(t)
	vote, _ := seedActive(t, repo)
	now := time.Now().UTC()
	transition, _ := entities.ActionHide.TransitionFor()

	hidden, err := repo.TransitionVote(context.Background(), ports.TransitionRequest{
		VoteID:     vote.VoteID,
		Transition: transition,
		Action: &entities.ModerationAction{
			ActionID:   uuid.NewString(),
			VoteID:     vote.VoteID,
			ActionType: entities.ActionHide,
			ActorID:    "op-1",
			CreatedAt:  now,
		},
		Event: testEvent("vote.moderated", vote.VoteID),
		At:    now,
	})
	if err != nil {
		t.Fatalf("hide: %v", err)
	}
	if hidden.Status != entities.VoteStatusHidden {
		t.Fatalf("expected hidden, got %s", hidden.Status)
	}

	_, err = repo.TransitionVote(context.Background(), ports.TransitionRequest{
		VoteID:     vote.VoteID,
		Transition: transition,
		Action: &entities.ModerationAction{
			ActionID:   uuid.NewString(),
			VoteID:     vote.VoteID,
			ActionType: entities.ActionHide,
			ActorID:    "op-2",
			CreatedAt:  now,
		},
		Event: testEvent("vote.moderated", vote.VoteID),
		At:    now,
	})
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected second hide to be rejected, got %v", err)
	}

	actions, err := repo.ListModerationActions(context.Background(), vote.VoteID)
	if err != nil || len(actions) != 1 {
		t.Fatalf("expected exactly one audit row, got %d and %v", len(actions), err)
	}
	if actions[0].FromStatus != entities.VoteStatusActive || actions[0].ToStatus != entities.VoteStatusHidden {
		t.Fatalf("unexpected audit row %+v", actions[0])
	}

	if err := repo.InsertResponseSet(context.Background(), entities.ResponseSet{
		ResponseSetID: uuid.NewString(),
		VoteID:        vote.VoteID,
		Identity:      entities.Identity{Kind: entities.IdentityKindUser, Value: "user-1"},
		Values:        map[string]int{},
		SubmittedAt:   now,
	}, entities.DefaultScorePolicy(), testEvent("vote.response_accepted", vote.VoteID)); !errors.Is(err, domainerrors.ErrVoteNotAcceptingSubmissions) {
		t.Fatalf("expected hidden vote to reject submissions, got %v", err)
	}
}

func TestPostgresReviewFlagOnce(t *testing.T) {
	repo := startPostgres(t)
	vote, _ := seedActive(t, repo)
	flag := entities.Flag{
		FlagID:     uuid.NewString(),
		VoteID:     vote.VoteID,
		FlagType:   entities.FlagTypeMisleading,
		ReportedBy: "user-4",
		Status:     entities.FlagStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.CreateFlag(context.Background(), flag, testEvent("vote.flag_submitted", vote.VoteID)); err != nil {
		t.Fatalf("create flag: %v", err)
	}
	review := entities.FlagReview{
		FlagID:     flag.FlagID,
		ReviewerID: "op-1",
		Status:     entities.FlagStatusRejected,
		ReviewedAt: time.Now().UTC(),
	}
	if _, err := repo.ReviewFlag(context.Background(), review, testEvent("vote.flag_reviewed", vote.VoteID)); err != nil {
		t.Fatalf("review: %v", err)
	}
	review.Status = entities.FlagStatusApproved
	if _, err := repo.ReviewFlag(context.Background(), review, testEvent("vote.flag_reviewed", vote.VoteID)); !errors.Is(err, domainerrors.ErrFlagAlreadyReviewed) {
		t.Fatalf("expected already reviewed, got %v", err)
	}
	stored, err := repo.GetFlag(context.Background(), flag.FlagID)
	if err != nil || stored.Status != entities.FlagStatusRejected {
		t.Fatalf("expected rejected flag to stand, got %+v and %v", stored, err)
	}
}

func TestPostgresOutboxKeepsInsertOrderOnTimestampTies(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var want []string
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 5; i++ {
			event := testEvent(fmt.Sprintf("vote.tie.%d", i), "vote-ties")
			event.OccurredAt = at
			want = append(want, event.EventID)
			if err := appendOutboxTx(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append outbox rows: %v", err)
	}

	pending, err := repo.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("list pending outbox: %v", err)
	}
	if len(pending) != len(want) {
		t.Fatalf("expected %d pending rows, got %d", len(want), len(pending))
	}
	for i, message := range pending {
		if message.OutboxID != want[i] {
			t.Fatalf("expected row %d to be %s, got %s", i, want[i], message.OutboxID)
		}
	}
}
