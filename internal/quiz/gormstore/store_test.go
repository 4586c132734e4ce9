package gormstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"quiz-engine/internal/quiz"
	"quiz-engine/internal/quiz/storetest"
)

func newSQLiteGormStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "gorm.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store, err := New(db, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGormStoreSQLiteContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) quiz.Store {
		return newSQLiteGormStore(t)
	})
}

// Postgres runs only when TEST_POSTGRES_DSN points at a disposable database.
func TestGormStorePostgresContract(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) quiz.Store {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err != nil {
			t.Fatalf("gorm.Open failed: %v", err)
		}
		for _, table := range []string{"quiz_attempt_answers", "quiz_attempts", "quiz_mock_test_questions", "quiz_mock_tests", "quiz_questions", "quiz_topics"} {
			if err := db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE").Error; err != nil {
				t.Fatalf("drop %s failed: %v", table, err)
			}
		}
		store, err := New(db, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestGormStoreMigrateIsIdempotent(t *testing.T) {
	store := newSQLiteGormStore(t)
	if err := store.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestGormStoreGuardsUsedQuestions(t *testing.T) {
	store := newSQLiteGormStore(t)
	storetest.SeedBank(t, store, 3)
	ctx := context.Background()

	attempt := quiz.Attempt{
		ID:              "att-1",
		UserID:          "user-1",
		Kind:            quiz.KindPractice,
		Level:           quiz.LevelEasy,
		StartedAt:       time.Now(),
		CreatedAt:       time.Now(),
		DurationSeconds: 600,
	}
	if _, err := store.CreateAttemptWithSlots(ctx, attempt, []string{"q-easy-1"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}

	if err := store.db.Exec(`DELETE FROM quiz_questions WHERE question_id = ?`, "q-easy-1").Error; err == nil {
		t.Fatalf("expected delete of a used question to fail")
	}
	if err := store.db.Exec(`UPDATE quiz_questions SET correct_option = 'D' WHERE question_id = ?`, "q-easy-1").Error; err == nil {
		t.Fatalf("expected edit of a used question to fail")
	}
	if err := store.db.Exec(`DELETE FROM quiz_attempts WHERE attempt_id = ?`, "att-1").Error; err == nil {
		t.Fatalf("expected attempt delete to fail")
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: ErrConflict},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: ErrRetryable},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: ErrRetryable},
		{name: "canceled", err: context.Canceled, want: ErrRetryable},
		{name: "sqlite unique", err: errors.New("UNIQUE constraint failed: quiz_topics.name"), want: ErrConflict},
		{name: "not found", err: gorm.ErrRecordNotFound, want: gorm.ErrRecordNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError("op", tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if mapError("op", nil) != nil {
		t.Fatalf("mapError(nil) should be nil")
	}
	plain := mapError("op", errors.New("disk full"))
	if errors.Is(plain, ErrConflict) || errors.Is(plain, ErrRetryable) {
		t.Fatalf("plain error should not be tagged: %v", plain)
	}
}
