package postgresadapter

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRetryRepository(attempts int) *Repository {
	return NewRepository(nil, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithRetryAttempts(attempts),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func TestWithRetryExhaustsTransientFailures(t *testing.T) {
	repo := newRetryRepository(3)
	calls := 0
	err := repo.withRetry(context.Background(), "insert_response_set", func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, domainerrors.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestWithRetryRecoversAfterTransientFailure(t *testing.T) {
	repo := newRetryRepository(3)
	calls := 0
	err := repo.withRetry(context.Background(), "get_vote", func() error {
		calls++
		if calls == 1 {
			return driver.ErrBadConn
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got %d calls and %v", calls, err)
	}
}

func TestWithRetryDoesNotRetryDomainOutcomes(t *testing.T) {
	repo := newRetryRepository(5)
	calls := 0
	err := repo.withRetry(context.Background(), "insert_response_set", func() error {
		calls++
		return domainerrors.ErrDuplicateIdentity
	})
	if calls != 1 || !errors.Is(err, domainerrors.ErrDuplicateIdentity) {
		t.Fatalf("expected single attempt with duplicate identity, got %d and %v", calls, err)
	}
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	repo := newRetryRepository(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := repo.withRetry(ctx, "transition_vote", func() error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) || errors.Is(err, domainerrors.ErrStorageUnavailable) {
		t.Fatalf("expected cancellation to surface as is, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	transient := []error{
		&pgconn.PgError{Code: "40001"},
		&pgconn.PgError{Code: "08006"},
		&pgconn.PgError{Code: "57P01"},
		fmt.Errorf("wrapped: %w", driver.ErrBadConn),
	}
	for _, err := range transient {
		if !isTransient(err) {
			t.Fatalf("expected %v to be transient", err)
		}
	}
	permanent := []error{
		&pgconn.PgError{Code: "23505"},
		context.Canceled,
		context.DeadlineExceeded,
		domainerrors.ErrVoteNotFound,
	}
	for _, err := range permanent {
		if isTransient(err) {
			t.Fatalf("expected %v to be permanent", err)
		}
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if !isDomainError(domainerrors.ErrFlagAlreadyReviewed) {
		t.Fatalf("expected already reviewed to count as a domain outcome")
	}
}
