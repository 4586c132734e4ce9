package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"quiz-engine/internal/quiz"
)

const attemptColumns = `a.attempt_id, a.user_id, a.kind, COALESCE(a.mock_test_id, ''), COALESCE(a.level, ''),
	a.started_at_unix, a.submitted_at_unix, a.duration_seconds, a.total_questions, a.correct_mark, a.negative_mark,
	a.status, a.correct_count, a.incorrect_count, a.unattempted_count, a.negative_marks, a.final_score,
	a.accuracy_percent, a.time_taken_seconds, a.proctor_flags, a.proctor_events_json,
	COALESCE(a.violation_reason, ''), a.created_at_unix`

func scanAttempt(row rowScanner, extra ...any) (quiz.Attempt, error) {
	var (
		attempt     quiz.Attempt
		startedAt   int64
		submittedAt sql.NullInt64
		createdAt   int64
		correct     sql.NullInt64
		incorrect   sql.NullInt64
		unattempted sql.NullInt64
		negative    sql.NullFloat64
		finalScore  sql.NullFloat64
		accuracy    sql.NullFloat64
		timeTaken   sql.NullInt64
		eventsJSON  string
	)
	dest := []any{
		&attempt.ID,
		&attempt.UserID,
		&attempt.Kind,
		&attempt.MockTestID,
		&attempt.Level,
		&startedAt,
		&submittedAt,
		&attempt.DurationSeconds,
		&attempt.TotalQuestions,
		&attempt.Scheme.CorrectMark,
		&attempt.Scheme.NegativeMark,
		&attempt.Status,
		&correct,
		&incorrect,
		&unattempted,
		&negative,
		&finalScore,
		&accuracy,
		&timeTaken,
		&attempt.ProctorFlags,
		&eventsJSON,
		&attempt.ViolationReason,
		&createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return quiz.Attempt{}, err
	}

	attempt.StartedAt = fromUnix(startedAt)
	attempt.CreatedAt = fromUnix(createdAt)
	if submittedAt.Valid {
		at := fromUnix(submittedAt.Int64)
		attempt.SubmittedAt = &at
	}
	if attempt.Status.Terminal() && finalScore.Valid {
		attempt.Result = &quiz.Aggregates{
			CorrectCount:     int(correct.Int64),
			IncorrectCount:   int(incorrect.Int64),
			UnattemptedCount: int(unattempted.Int64),
			NegativeMarks:    negative.Float64,
			FinalScore:       finalScore.Float64,
			AccuracyPercent:  accuracy.Float64,
			TimeTakenSeconds: int(timeTaken.Int64),
		}
	}
	if err := json.Unmarshal([]byte(eventsJSON), &attempt.ProctorEvents); err != nil {
		return quiz.Attempt{}, fmt.Errorf("decode proctor events for %s: %w", attempt.ID, err)
	}
	return attempt, nil
}

// CreateAttemptWithSlots inserts the attempt and its blank answer slots in one
// transaction. A duplicate question id fails the unique key and nothing is
// written.
func (s *SQLiteStore) CreateAttemptWithSlots(ctx context.Context, attempt quiz.Attempt, questionIDs []string) (quiz.Attempt, error) {
	if len(questionIDs) == 0 {
		return quiz.Attempt{}, fmt.Errorf("%w: attempt has no questions", quiz.ErrInsufficientQuestionBank)
	}
	attempt.TotalQuestions = len(questionIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quiz.Attempt{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quiz_attempts (
			attempt_id, user_id, kind, mock_test_id, level, started_at_unix, duration_seconds,
			total_questions, correct_mark, negative_mark, status, proctor_flags, proctor_events_json, created_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '[]', ?)`,
		attempt.ID,
		attempt.UserID,
		string(attempt.Kind),
		nullString(attempt.MockTestID),
		nullString(string(attempt.Level)),
		toUnix(attempt.StartedAt),
		attempt.DurationSeconds,
		attempt.TotalQuestions,
		attempt.Scheme.CorrectMark,
		attempt.Scheme.NegativeMark,
		string(quiz.StatusInProgress),
		toUnix(attempt.CreatedAt),
	); err != nil {
		return quiz.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quiz_attempt_answers (attempt_id, question_id, position, marks_awarded) VALUES (?, ?, ?, 0)`,
	)
	if err != nil {
		return quiz.Attempt{}, err
	}
	defer stmt.Close()

	for idx, questionID := range questionIDs {
		if _, err := stmt.ExecContext(ctx, attempt.ID, questionID, idx+1); err != nil {
			return quiz.Attempt{}, fmt.Errorf("insert answer slot %s: %w", questionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return quiz.Attempt{}, err
	}

	attempt.Status = quiz.StatusInProgress
	attempt.ProctorEvents = []string{}
	return attempt, nil
}

func (s *SQLiteStore) FindAttempt(ctx context.Context, attemptID, userID string) (quiz.Attempt, error) {
	attempt, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts a WHERE a.attempt_id = ? AND a.user_id = ?`,
		attemptID, userID,
	))
	if isNoRows(err) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return attempt, err
}

// FinalizeAttempt runs the whole terminal transition in one transaction.
//
// Invariants:
//   - the status write only matches a row that is still in_progress, so of two
//     racing finalizers exactly one commits and the other sees
//     ErrAttemptNotInProgress;
//   - answer slots are upserted on (attempt_id, question_id), never duplicated;
//   - any failure rolls back both the slot writes and the status write.
func (s *SQLiteStore) FinalizeAttempt(ctx context.Context, attemptID, userID string, fn quiz.FinalizeFunc) (quiz.Finalization, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quiz.Finalization{}, err
	}
	defer tx.Rollback()

	attempt, err := scanAttempt(tx.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts a WHERE a.attempt_id = ? AND a.user_id = ?`,
		attemptID, userID,
	))
	if isNoRows(err) {
		return quiz.Finalization{}, quiz.ErrAttemptNotFound
	}
	if err != nil {
		return quiz.Finalization{}, err
	}

	keys, err := loadAnswerKeys(ctx, tx, attemptID)
	if err != nil {
		return quiz.Finalization{}, err
	}

	fin, err := fn(attempt, keys)
	if err != nil {
		return quiz.Finalization{}, err
	}

	eventsJSON, err := json.Marshal(nonNilEvents(fin.ProctorEvents))
	if err != nil {
		return quiz.Finalization{}, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE quiz_attempts SET
			status = ?, submitted_at_unix = ?,
			correct_count = ?, incorrect_count = ?, unattempted_count = ?,
			negative_marks = ?, final_score = ?, accuracy_percent = ?, time_taken_seconds = ?,
			proctor_flags = ?, proctor_events_json = ?, violation_reason = ?
		 WHERE attempt_id = ? AND status = ?`,
		string(fin.Status),
		toUnix(fin.SubmittedAt),
		fin.Result.CorrectCount,
		fin.Result.IncorrectCount,
		fin.Result.UnattemptedCount,
		fin.Result.NegativeMarks,
		fin.Result.FinalScore,
		fin.Result.AccuracyPercent,
		fin.Result.TimeTakenSeconds,
		fin.ProctorFlags,
		string(eventsJSON),
		nullString(fin.ViolationReason),
		attemptID,
		string(quiz.StatusInProgress),
	)
	if err != nil {
		return quiz.Finalization{}, fmt.Errorf("finalize attempt: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return quiz.Finalization{}, err
	}
	if updated == 0 {
		return quiz.Finalization{}, quiz.ErrAttemptNotInProgress
	}

	if len(fin.Slots) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO quiz_attempt_answers (
				attempt_id, question_id, position, selected_option, is_correct, marks_awarded, time_taken_seconds
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(attempt_id, question_id) DO UPDATE SET
				selected_option = excluded.selected_option,
				is_correct = excluded.is_correct,
				marks_awarded = excluded.marks_awarded,
				time_taken_seconds = excluded.time_taken_seconds`,
		)
		if err != nil {
			return quiz.Finalization{}, err
		}
		defer stmt.Close()

		for _, slot := range fin.Slots {
			var isCorrect, slotTime any
			if slot.IsCorrect != nil {
				isCorrect = *slot.IsCorrect
			}
			if slot.TimeTakenSeconds != nil {
				slotTime = *slot.TimeTakenSeconds
			}
			if _, err := stmt.ExecContext(ctx,
				attemptID,
				slot.QuestionID,
				slot.Position,
				nullString(string(slot.SelectedOption)),
				isCorrect,
				slot.MarksAwarded,
				slotTime,
			); err != nil {
				return quiz.Finalization{}, fmt.Errorf("upsert answer slot %s: %w", slot.QuestionID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return quiz.Finalization{}, err
	}
	return fin, nil
}

func loadAnswerKeys(ctx context.Context, tx *sql.Tx, attemptID string) ([]quiz.AnswerKey, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT q.question_id, q.question_text, q.difficulty, q.option_a, q.option_b, q.option_c, q.option_d,
			s.position, q.correct_option, q.explanation
		 FROM quiz_attempt_answers s
		 JOIN quiz_questions q ON q.question_id = s.question_id
		 WHERE s.attempt_id = ?
		 ORDER BY s.position ASC`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []quiz.AnswerKey
	for rows.Next() {
		var key quiz.AnswerKey
		if err := rows.Scan(
			&key.QuestionID,
			&key.Text,
			&key.Difficulty,
			&key.OptionA,
			&key.OptionB,
			&key.OptionC,
			&key.OptionD,
			&key.Position,
			&key.CorrectOption,
			&key.Explanation,
		); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, userID string) ([]quiz.AttemptSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+`, COALESCE(m.title, '')
		 FROM quiz_attempts a
		 LEFT JOIN quiz_mock_tests m ON m.mock_test_id = a.mock_test_id
		 WHERE a.user_id = ?
		 ORDER BY a.started_at_unix DESC, a.attempt_id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]quiz.AttemptSummary, 0)
	for rows.Next() {
		var title string
		attempt, err := scanAttempt(rows, &title)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, quiz.AttemptSummary{Attempt: attempt, MockTestTitle: title})
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) ReviewRows(ctx context.Context, attemptID, userID string) ([]quiz.ReviewRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.question_id, q.question_text, q.difficulty, q.option_a, q.option_b, q.option_c, q.option_d,
			s.position, q.correct_option, q.explanation,
			COALESCE(s.selected_option, ''), s.is_correct, s.marks_awarded
		 FROM quiz_attempt_answers s
		 JOIN quiz_attempts a ON a.attempt_id = s.attempt_id
		 JOIN quiz_questions q ON q.question_id = s.question_id
		 WHERE s.attempt_id = ? AND a.user_id = ?
		 ORDER BY s.position ASC`,
		attemptID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviewRows []quiz.ReviewRow
	for rows.Next() {
		var (
			row       quiz.ReviewRow
			isCorrect sql.NullBool
		)
		if err := rows.Scan(
			&row.QuestionID,
			&row.Text,
			&row.Difficulty,
			&row.OptionA,
			&row.OptionB,
			&row.OptionC,
			&row.OptionD,
			&row.Position,
			&row.CorrectOption,
			&row.Explanation,
			&row.SelectedOption,
			&isCorrect,
			&row.MarksAwarded,
		); err != nil {
			return nil, err
		}
		if isCorrect.Valid {
			value := isCorrect.Bool
			row.IsCorrect = &value
		}
		reviewRows = append(reviewRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(reviewRows) == 0 {
		return nil, quiz.ErrAttemptNotFound
	}
	return reviewRows, nil
}

func nonNilEvents(events []string) []string {
	if events == nil {
		return []string{}
	}
	return events
}
