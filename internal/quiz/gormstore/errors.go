package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrConflict marks a unique-key violation.
	ErrConflict = errors.New("store conflict")
	// ErrRetryable marks a transient failure the caller may retry.
	ErrRetryable = errors.New("store retryable")
)

// mapError tags infrastructure failures. Domain sentinels from the quiz
// package and gorm.ErrRecordNotFound pass through untouched so callers can
// translate them.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
