package postgres

import (
	"context"
	"errors"
	"fmt"
	"slotkeeper/pkg/db"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	TableResources = "resources"
	TableSlots     = "slots"
	TableBookings  = "bookings"
)

// SQLSTATE codes the manager treats as retryable or as uniqueness conflicts.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

type TransactionFunc func(tx *gorm.DB) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type gormTransactionManager struct {
	db          *gorm.DB
	policy      db.RetryPolicy
	lockTimeout time.Duration
}

func NewTransactionManager(gdb *gorm.DB, policy db.RetryPolicy, lockTimeout time.Duration) TransactionManager {
	return &gormTransactionManager{
		db:          gdb,
		policy:      policy,
		lockTimeout: lockTimeout,
	}
}

// ExecuteTransaction runs fn inside a transaction whose row-lock waits are
// capped by lockTimeout. Lock timeouts, deadlocks and serialization failures
// restart fn, bounded by the retry policy. A COMMIT that gets no answer from
// the server surfaces as db.ErrCommitUnknown and is not retried.
func (m *gormTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return db.Retry(ctx, m.policy, IsTransient, func(attemptCtx context.Context) error {
		committing := false
		err := m.db.WithContext(attemptCtx).Transaction(func(tx *gorm.DB) error {
			if m.lockTimeout > 0 {
				stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("failed to set lock timeout: %w", err)
				}
			}
			if err := fn(tx); err != nil {
				return err
			}
			committing = true
			return nil
		})
		if err != nil && committing {
			return commitError(err)
		}
		return err
	})
}

// commitError classifies a failed COMMIT. A server error means the
// transaction was rolled back; losing the connection or the deadline leaves
// the outcome unknown.
func commitError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return errors.Join(db.ErrCommitUnknown, err)
}

func IsTransient(err error) bool {
	if err == nil || errors.Is(err, db.ErrCommitUnknown) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
			return true
		}
		return false
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded)
}

func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
