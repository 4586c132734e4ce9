package gormstore

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
)

var _ quiz.Store = (*Store)(nil)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to Postgres and prepares the schema.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	gormLog := gormLogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return New(db, log)
}

// New wraps an existing connection. Tests pass a gorm sqlite handle here.
func New(db *gorm.DB, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	store := &Store{db: db, log: log.With("component", "gormstore")}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&topicRow{},
		&questionRow{},
		&mockTestRow{},
		&mockTestQuestionRow{},
		&attemptRow{},
		&answerRow{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	var guards []string
	switch s.db.Dialector.Name() {
	case "postgres":
		guards = postgresGuards
	case "sqlite":
		guards = sqliteGuards
	default:
		s.log.Warn("no immutability guards for dialect", "dialect", s.db.Dialector.Name())
	}
	for _, stmt := range guards {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install guards: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var postgresGuards = []string{
	`CREATE OR REPLACE FUNCTION quiz_guard_used_question() RETURNS trigger AS $$
	BEGIN
		IF EXISTS (SELECT 1 FROM quiz_attempt_answers WHERE question_id = OLD.question_id) THEN
			RAISE EXCEPTION 'question % is referenced by an attempt', OLD.question_id;
		END IF;
		IF TG_OP = 'DELETE' THEN
			RETURN OLD;
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS trg_quiz_questions_used_no_delete ON quiz_questions;`,
	`CREATE TRIGGER trg_quiz_questions_used_no_delete
		BEFORE DELETE ON quiz_questions
		FOR EACH ROW EXECUTE FUNCTION quiz_guard_used_question();`,
	`DROP TRIGGER IF EXISTS trg_quiz_questions_used_no_edit ON quiz_questions;`,
	`CREATE TRIGGER trg_quiz_questions_used_no_edit
		BEFORE UPDATE OF difficulty, question_text, option_a, option_b, option_c, option_d, correct_option, explanation ON quiz_questions
		FOR EACH ROW EXECUTE FUNCTION quiz_guard_used_question();`,
	`CREATE OR REPLACE FUNCTION quiz_guard_attempt() RETURNS trigger AS $$
	BEGIN
		IF TG_OP = 'DELETE' THEN
			RAISE EXCEPTION 'attempts are never deleted';
		END IF;
		IF OLD.status <> 'in_progress' AND NEW.status IS DISTINCT FROM OLD.status THEN
			RAISE EXCEPTION 'attempt % is already terminal', OLD.attempt_id;
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS trg_quiz_attempts_guard ON quiz_attempts;`,
	`CREATE TRIGGER trg_quiz_attempts_guard
		BEFORE UPDATE OF status OR DELETE ON quiz_attempts
		FOR EACH ROW EXECUTE FUNCTION quiz_guard_attempt();`,
}

var sqliteGuards = []string{
	`CREATE TRIGGER IF NOT EXISTS trg_quiz_questions_used_no_delete
		BEFORE DELETE ON quiz_questions
		WHEN EXISTS (SELECT 1 FROM quiz_attempt_answers WHERE question_id = OLD.question_id)
		BEGIN
			SELECT RAISE(ABORT, 'question is referenced by an attempt');
		END;`,
	`CREATE TRIGGER IF NOT EXISTS trg_quiz_questions_used_no_edit
		BEFORE UPDATE OF difficulty, question_text, option_a, option_b, option_c, option_d, correct_option, explanation ON quiz_questions
		WHEN EXISTS (SELECT 1 FROM quiz_attempt_answers WHERE question_id = OLD.question_id)
		BEGIN
			SELECT RAISE(ABORT, 'question is referenced by an attempt');
		END;`,
	`CREATE TRIGGER IF NOT EXISTS trg_quiz_attempts_no_delete
		BEFORE DELETE ON quiz_attempts
		BEGIN
			SELECT RAISE(ABORT, 'attempts are never deleted');
		END;`,
	`CREATE TRIGGER IF NOT EXISTS trg_quiz_attempts_terminal_status
		BEFORE UPDATE OF status ON quiz_attempts
		WHEN OLD.status <> 'in_progress'
		BEGIN
			SELECT RAISE(ABORT, 'attempt is already terminal');
		END;`,
}
