package postgresadapter

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	defaultRetryAttempts = 3
)

type Repository struct {
	db            *gorm.DB
	logger        *slog.Logger
	retryAttempts int
	newBackOff    func() backoff.BackOff
}

type Option func(*Repository)

// WithRetryAttempts bounds how many times a transient storage failure is
// tried in total. Values below one mean a single attempt.
func WithRetryAttempts(attempts int) Option {
	return func(r *Repository) {
		if attempts < 1 {
			attempts = 1
		}
		r.retryAttempts = attempts
	}
}

func WithBackOff(factory func() backoff.BackOff) Option {
	return func(r *Repository) {
		if factory != nil {
			r.newBackOff = factory
		}
	}
}

func NewRepository(db *gorm.DB, logger *slog.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		db:            db,
		logger:        logger,
		retryAttempts: defaultRetryAttempts,
		newBackOff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = 50 * time.Millisecond
			policy.MaxInterval = time.Second
			return policy
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// exhausts the attempt budget. Exhausted transient failures surface as
// ErrStorageUnavailable. Context cancellation is never retried.
func (r *Repository) withRetry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(r.newBackOff(), uint64(r.retryAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn("vote repository retrying transient failure",
			"event", "vote_repo_retry",
			"module", "polling/vote-engine",
			"layer", "adapter",
			"operation", op,
			"wait", wait.String(),
			"error", err.Error(),
		)
	})
	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %s: %v", domainerrors.ErrStorageUnavailable, op, err)
	}
	return err
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return r.withRetry(ctx, op, func() error {
		return r.db.WithContext(ctx).Transaction(fn)
	})
}

// fail logs infrastructure failures once and passes domain outcomes through
// unlogged.
func (r *Repository) fail(event string, err error, attrs ...any) error {
	if isDomainError(err) {
		return err
	}
	return r.logError(event, err, attrs...)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "polling/vote-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("vote repository operation failed", fields...)
	return err
}

func appendOutboxTx(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

var domainErrors = []error{
	domainerrors.ErrInvalidInput,
	domainerrors.ErrVoteNotFound,
	domainerrors.ErrOptionNotFound,
	domainerrors.ErrFlagNotFound,
	domainerrors.ErrSnapshotNotFound,
	domainerrors.ErrInvalidStateTransition,
	domainerrors.ErrNotEnoughOptions,
	domainerrors.ErrVoteNotAcceptingSubmissions,
	domainerrors.ErrDuplicateIdentity,
	domainerrors.ErrIncompleteResponseSet,
	domainerrors.ErrOutOfRangeScore,
	domainerrors.ErrNotPending,
	domainerrors.ErrConflict,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.ResponseRepository = (*Repository)(nil)
var _ ports.FlagRepository = (*Repository)(nil)
var _ ports.ModerationRepository = (*Repository)(nil)
var _ ports.SnapshotRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
