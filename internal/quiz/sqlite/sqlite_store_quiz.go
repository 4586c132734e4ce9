package sqlite

import (
	"context"
	"fmt"
	"time"

	"quiz-engine/internal/quiz"
)

const questionColumns = `q.question_id, COALESCE(q.topic_id, ''), q.difficulty, q.question_text,
	q.option_a, q.option_b, q.option_c, q.option_d, q.correct_option, q.explanation, q.active, q.created_at_unix`

const mockTestColumns = `mock_test_id, title, description, total_questions, total_marks, negative_mark,
	duration_minutes, active, created_at_unix`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (quiz.Question, error) {
	var (
		question  quiz.Question
		active    int
		createdAt int64
	)
	if err := row.Scan(
		&question.QuestionID,
		&question.TopicID,
		&question.Difficulty,
		&question.Text,
		&question.OptionA,
		&question.OptionB,
		&question.OptionC,
		&question.OptionD,
		&question.CorrectOption,
		&question.Explanation,
		&active,
		&createdAt,
	); err != nil {
		return quiz.Question{}, err
	}
	question.Active = active == 1
	question.CreatedAt = fromUnix(createdAt)
	return question, nil
}

func scanMockTest(row rowScanner) (quiz.MockTest, error) {
	var (
		mockTest  quiz.MockTest
		active    int
		createdAt int64
	)
	if err := row.Scan(
		&mockTest.ID,
		&mockTest.Title,
		&mockTest.Description,
		&mockTest.TotalQuestions,
		&mockTest.TotalMarks,
		&mockTest.NegativeMark,
		&mockTest.DurationMinutes,
		&active,
		&createdAt,
	); err != nil {
		return quiz.MockTest{}, err
	}
	mockTest.Active = active == 1
	mockTest.CreatedAt = fromUnix(createdAt)
	return mockTest, nil
}

func (s *SQLiteStore) queryQuestions(ctx context.Context, query string, args ...any) ([]quiz.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []quiz.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (s *SQLiteStore) RandomQuestions(ctx context.Context, difficulty quiz.Difficulty, limit int) ([]quiz.Question, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+`
		 FROM quiz_questions q
		 WHERE q.active = 1 AND q.difficulty = ?
		 ORDER BY RANDOM()
		 LIMIT ?`,
		string(difficulty), limit,
	)
}

func (s *SQLiteStore) RandomQuestionsExcluding(ctx context.Context, excludeIDs []string, limit int) ([]quiz.Question, error) {
	if limit <= 0 {
		return nil, nil
	}

	args := make([]any, 0, len(excludeIDs)+1)
	where := `q.active = 1`
	if len(excludeIDs) > 0 {
		where += ` AND q.question_id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	args = append(args, limit)

	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+`
		 FROM quiz_questions q
		 WHERE `+where+`
		 ORDER BY RANDOM()
		 LIMIT ?`,
		args...,
	)
}

func (s *SQLiteStore) GetMockTest(ctx context.Context, mockTestID string) (quiz.MockTest, error) {
	mockTest, err := scanMockTest(s.db.QueryRowContext(ctx,
		`SELECT `+mockTestColumns+` FROM quiz_mock_tests WHERE mock_test_id = ?`,
		mockTestID,
	))
	if isNoRows(err) {
		return quiz.MockTest{}, quiz.ErrMockTestNotFound
	}
	return mockTest, err
}

func (s *SQLiteStore) MockQuestionsOrdered(ctx context.Context, mockTestID string) ([]quiz.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+`
		 FROM quiz_mock_test_questions m
		 JOIN quiz_questions q ON q.question_id = m.question_id
		 WHERE m.mock_test_id = ? AND q.active = 1
		 ORDER BY m.question_order ASC`,
		mockTestID,
	)
}

func (s *SQLiteStore) ListActiveMockTests(ctx context.Context) ([]quiz.MockTest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mockTestColumns+`
		 FROM quiz_mock_tests
		 WHERE active = 1
		 ORDER BY created_at_unix ASC, title ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mockTests := make([]quiz.MockTest, 0)
	for rows.Next() {
		mockTest, err := scanMockTest(rows)
		if err != nil {
			return nil, err
		}
		mockTests = append(mockTests, mockTest)
	}
	return mockTests, rows.Err()
}

func (s *SQLiteStore) SeedTopics(ctx context.Context, topics []quiz.Topic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := toUnix(time.Now())
	for _, topic := range topics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quiz_topics (topic_id, name, description, created_at_unix)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(topic_id) DO UPDATE SET name = excluded.name, description = excluded.description`,
			topic.ID, topic.Name, topic.Description, now,
		); err != nil {
			return fmt.Errorf("seed topic %s: %w", topic.Name, err)
		}
	}
	return tx.Commit()
}

// SeedQuestions upserts questions and returns how many rows changed. Rows that
// are already referenced by an attempt are skipped.
func (s *SQLiteStore) SeedQuestions(ctx context.Context, questions []quiz.Question) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quiz_questions (
			question_id, topic_id, difficulty, question_text, option_a, option_b, option_c, option_d,
			correct_option, explanation, active, created_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			topic_id = excluded.topic_id,
			difficulty = excluded.difficulty,
			question_text = excluded.question_text,
			option_a = excluded.option_a,
			option_b = excluded.option_b,
			option_c = excluded.option_c,
			option_d = excluded.option_d,
			correct_option = excluded.correct_option,
			explanation = excluded.explanation,
			active = excluded.active
		WHERE NOT EXISTS (SELECT 1 FROM quiz_attempt_answers a WHERE a.question_id = excluded.question_id)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	changed := 0
	for _, question := range questions {
		createdAt := question.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		active := 0
		if question.Active {
			active = 1
		}

		res, err := stmt.ExecContext(ctx,
			question.QuestionID,
			nullString(question.TopicID),
			string(question.Difficulty),
			question.Text,
			question.OptionA,
			question.OptionB,
			question.OptionC,
			question.OptionD,
			string(question.CorrectOption),
			question.Explanation,
			active,
			toUnix(createdAt),
		)
		if err != nil {
			return 0, fmt.Errorf("seed question %s: %w", question.QuestionID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		changed += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return changed, nil
}

// SeedMockTest upserts the mock test and replaces its question mapping.
func (s *SQLiteStore) SeedMockTest(ctx context.Context, mockTest quiz.MockTest, questionIDs []string) error {
	if len(questionIDs) != mockTest.TotalQuestions {
		return fmt.Errorf("%w: %s declares %d questions, got %d",
			quiz.ErrInvalidMockTestSetup, mockTest.Title, mockTest.TotalQuestions, len(questionIDs))
	}
	if mockTest.CreatedAt.IsZero() {
		mockTest.CreatedAt = time.Now()
	}
	active := 0
	if mockTest.Active {
		active = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quiz_mock_tests (`+mockTestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(mock_test_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			total_questions = excluded.total_questions,
			total_marks = excluded.total_marks,
			negative_mark = excluded.negative_mark,
			duration_minutes = excluded.duration_minutes,
			active = excluded.active`,
		mockTest.ID,
		mockTest.Title,
		mockTest.Description,
		mockTest.TotalQuestions,
		mockTest.TotalMarks,
		mockTest.NegativeMark,
		mockTest.DurationMinutes,
		active,
		toUnix(mockTest.CreatedAt),
	); err != nil {
		return fmt.Errorf("seed mock test %s: %w", mockTest.Title, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_mock_test_questions WHERE mock_test_id = ?`, mockTest.ID); err != nil {
		return err
	}
	for idx, questionID := range questionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quiz_mock_test_questions (mock_test_id, question_id, question_order) VALUES (?, ?, ?)`,
			mockTest.ID, questionID, idx+1,
		); err != nil {
			return fmt.Errorf("map question %s to %s: %w", questionID, mockTest.Title, err)
		}
	}

	return tx.Commit()
}
