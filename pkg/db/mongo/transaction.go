package mongo

import (
	"context"
	"errors"
	"fmt"
	"slotkeeper/pkg/db"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"

	maxCommitRetries = 3
)

type TransactionFunc func(ctx mongo.SessionContext) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	policy db.RetryPolicy
}

func NewTransactionManager(client *mongo.Client, policy db.RetryPolicy) TransactionManager {
	return &mongoTransactionManager{
		client: client,
		policy: policy,
	}
}

// ExecuteTransaction runs fn in a snapshot transaction. Write conflicts and
// other labelled transient failures restart fn from scratch, up to the retry
// policy's attempt limit. A commit that keeps reporting an unknown result is
// retried as a commit only and then surfaces as db.ErrCommitUnknown.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return db.Retry(ctx, m.policy, IsTransient, func(attemptCtx context.Context) error {
		return m.runOnce(attemptCtx, fn)
	})
}

func (m *mongoTransactionManager) runOnce(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, session, func(sessCtx mongo.SessionContext) error {
		if err := session.StartTransaction(txOpts); err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if err := fn(sessCtx); err != nil {
			_ = session.AbortTransaction(context.Background())
			return err
		}

		return commit(sessCtx, session)
	})
}

func commit(ctx mongo.SessionContext, session mongo.Session) error {
	var err error
	for i := 0; i < maxCommitRetries; i++ {
		err = session.CommitTransaction(ctx)
		if err == nil {
			return nil
		}
		if !hasLabel(err, labelUnknownCommitResult) {
			break
		}
	}
	return commitError(err)
}

// commitError classifies a failed commit. Only a transient-transaction label
// proves the server aborted; anything else may have been applied.
func commitError(err error) error {
	if hasLabel(err, labelTransientTransaction) && !hasLabel(err, labelUnknownCommitResult) {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return errors.Join(db.ErrCommitUnknown, err)
}

// IsTransient reports whether err is worth retrying with a fresh transaction.
// An unknown commit result is not: the first run may already be durable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, db.ErrCommitUnknown) || hasLabel(err, labelUnknownCommitResult) {
		return false
	}
	if hasLabel(err, labelTransientTransaction) {
		return true
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

func hasLabel(err error, label string) bool {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel(label)
	}
	return false
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
