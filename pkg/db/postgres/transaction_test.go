package postgres

import (
	"context"
	"errors"
	"fmt"
	"slotkeeper/pkg/db"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"lock timeout", &pgconn.PgError{Code: codeLockNotAvailable}, true},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, true},
		{"serialization", fmt.Errorf("reserve: %w", &pgconn.PgError{Code: codeSerializationFailure}), true},
		{"statement canceled", &pgconn.PgError{Code: codeQueryCanceled}, true},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"commit outcome unknown", errors.Join(db.ErrCommitUnknown, context.DeadlineExceeded), false},
		{"record not found", gorm.ErrRecordNotFound, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestCommitError(t *testing.T) {
	rolledBack := &pgconn.PgError{Code: codeSerializationFailure}
	assert.Same(t, error(rolledBack), commitError(rolledBack))
	assert.True(t, IsTransient(commitError(rolledBack)))

	for name, cause := range map[string]error{
		"deadline":        context.DeadlineExceeded,
		"wrapped timeout": fmt.Errorf("commit: %w", context.DeadlineExceeded),
		"connection":      errors.New("conn closed"),
	} {
		t.Run(name, func(t *testing.T) {
			err := commitError(cause)
			assert.ErrorIs(t, err, db.ErrCommitUnknown)
			assert.ErrorIs(t, err, db.ErrTransient)
			assert.False(t, IsTransient(err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: codeLockNotAvailable}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}
