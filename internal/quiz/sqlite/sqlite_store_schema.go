package sqlite

import (
	"context"
)

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS quiz_topics (
			topic_id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_questions (
			question_id TEXT PRIMARY KEY,
			topic_id TEXT REFERENCES quiz_topics(topic_id),
			difficulty TEXT NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard')),
			question_text TEXT NOT NULL,
			option_a TEXT NOT NULL,
			option_b TEXT NOT NULL,
			option_c TEXT NOT NULL,
			option_d TEXT NOT NULL,
			correct_option TEXT NOT NULL CHECK (correct_option IN ('A', 'B', 'C', 'D')),
			explanation TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_mock_tests (
			mock_test_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			total_questions INTEGER NOT NULL CHECK (total_questions > 0),
			total_marks REAL NOT NULL,
			negative_mark REAL NOT NULL DEFAULT 0.25,
			duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
			active INTEGER NOT NULL DEFAULT 1,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_mock_test_questions (
			mock_test_id TEXT NOT NULL REFERENCES quiz_mock_tests(mock_test_id),
			question_id TEXT NOT NULL REFERENCES quiz_questions(question_id),
			question_order INTEGER NOT NULL,
			PRIMARY KEY (mock_test_id, question_order),
			UNIQUE (mock_test_id, question_id)
		);`,
		// Aggregate columns stay NULL while the attempt is in progress. The mark
		// scheme is copied at start so later edits never rescore history.
		`CREATE TABLE IF NOT EXISTS quiz_attempts (
			attempt_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('practice', 'mock')),
			mock_test_id TEXT REFERENCES quiz_mock_tests(mock_test_id),
			level TEXT CHECK (level IN ('easy', 'medium', 'hard', 'mixed')),
			started_at_unix INTEGER NOT NULL,
			submitted_at_unix INTEGER,
			duration_seconds INTEGER NOT NULL,
			total_questions INTEGER NOT NULL,
			correct_mark REAL NOT NULL,
			negative_mark REAL NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('in_progress', 'submitted', 'auto_submitted', 'failed_due_to_violation')),
			correct_count INTEGER,
			incorrect_count INTEGER,
			unattempted_count INTEGER,
			negative_marks REAL,
			final_score REAL CHECK (final_score IS NULL OR final_score >= 0),
			accuracy_percent REAL,
			time_taken_seconds INTEGER,
			proctor_flags INTEGER NOT NULL DEFAULT 0,
			proctor_events_json TEXT NOT NULL DEFAULT '[]',
			violation_reason TEXT,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_attempt_answers (
			attempt_id TEXT NOT NULL REFERENCES quiz_attempts(attempt_id),
			question_id TEXT NOT NULL REFERENCES quiz_questions(question_id),
			position INTEGER NOT NULL,
			selected_option TEXT CHECK (selected_option IS NULL OR selected_option IN ('A', 'B', 'C', 'D')),
			is_correct INTEGER,
			marks_awarded REAL NOT NULL DEFAULT 0,
			time_taken_seconds INTEGER,
			PRIMARY KEY (attempt_id, question_id),
			UNIQUE (attempt_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_questions_difficulty_active ON quiz_questions(difficulty, active);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_mock_tests_active_created ON quiz_mock_tests(active, created_at_unix);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_started ON quiz_attempts(user_id, started_at_unix DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_attempt_answers_question ON quiz_attempt_answers(question_id);`,
		// A question that has been handed out in an attempt is part of scoring
		// history: its content can no longer change and the row cannot go away.
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

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
