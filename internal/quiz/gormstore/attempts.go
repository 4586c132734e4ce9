package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quiz-engine/internal/quiz"
)

const keyColumns = `q.question_id, q.question_text, q.difficulty, q.option_a, q.option_b, q.option_c, q.option_d,
	s.position, q.correct_option, q.explanation`

type summaryRow struct {
	Attempt       attemptRow `gorm:"embedded"`
	MockTestTitle string     `gorm:"column:mock_test_title"`
}

func (s *Store) CreateAttemptWithSlots(ctx context.Context, attempt quiz.Attempt, questionIDs []string) (quiz.Attempt, error) {
	if len(questionIDs) == 0 {
		return quiz.Attempt{}, fmt.Errorf("%w: attempt has no questions", quiz.ErrInsufficientQuestionBank)
	}
	attempt.TotalQuestions = len(questionIDs)

	row := attemptRowFrom(attempt)
	slots := make([]answerRow, 0, len(questionIDs))
	for idx, questionID := range questionIDs {
		slots = append(slots, answerRow{AttemptID: attempt.ID, QuestionID: questionID, Position: idx + 1})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if err := tx.Create(&slots).Error; err != nil {
			return fmt.Errorf("insert answer slots: %w", err)
		}
		return nil
	})
	if err != nil {
		return quiz.Attempt{}, mapError("create attempt", err)
	}

	attempt.Status = quiz.StatusInProgress
	attempt.ProctorEvents = []string{}
	return attempt, nil
}

func findAttempt(tx *gorm.DB, attemptID, userID string) (quiz.Attempt, error) {
	var row attemptRow
	err := tx.Where("attempt_id = ? AND user_id = ?", attemptID, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	if err != nil {
		return quiz.Attempt{}, err
	}
	return row.toDomain()
}

func (s *Store) FindAttempt(ctx context.Context, attemptID, userID string) (quiz.Attempt, error) {
	attempt, err := findAttempt(s.db.WithContext(ctx), attemptID, userID)
	if err != nil && !errors.Is(err, quiz.ErrAttemptNotFound) {
		return quiz.Attempt{}, mapError("find attempt", err)
	}
	return attempt, err
}

// FinalizeAttempt loads the attempt and its answer key, lets fn decide the
// outcome, then writes status and slots in the same transaction. The status
// update is conditional on in_progress; a zero row count means another caller
// already finalized the attempt.
func (s *Store) FinalizeAttempt(ctx context.Context, attemptID, userID string, fn quiz.FinalizeFunc) (quiz.Finalization, error) {
	var fin quiz.Finalization

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := findAttempt(tx, attemptID, userID)
		if err != nil {
			return err
		}

		var keyRows []keyRow
		if err := tx.Table("quiz_attempt_answers AS s").
			Select(keyColumns).
			Joins("JOIN quiz_questions q ON q.question_id = s.question_id").
			Where("s.attempt_id = ?", attemptID).
			Order("s.position ASC").
			Scan(&keyRows).Error; err != nil {
			return fmt.Errorf("load answer keys: %w", err)
		}
		keys := make([]quiz.AnswerKey, 0, len(keyRows))
		for _, row := range keyRows {
			keys = append(keys, row.answerKey())
		}

		fin, err = fn(attempt, keys)
		if err != nil {
			return err
		}

		events := fin.ProctorEvents
		if events == nil {
			events = []string{}
		}
		eventsJSON, err := json.Marshal(events)
		if err != nil {
			return err
		}

		res := tx.Model(&attemptRow{}).
			Where("attempt_id = ? AND status = ?", attemptID, string(quiz.StatusInProgress)).
			Updates(map[string]any{
				"status":             string(fin.Status),
				"submitted_at":       fin.SubmittedAt.UTC(),
				"correct_count":      fin.Result.CorrectCount,
				"incorrect_count":    fin.Result.IncorrectCount,
				"unattempted_count":  fin.Result.UnattemptedCount,
				"negative_marks":     fin.Result.NegativeMarks,
				"final_score":        fin.Result.FinalScore,
				"accuracy_percent":   fin.Result.AccuracyPercent,
				"time_taken_seconds": fin.Result.TimeTakenSeconds,
				"proctor_flags":      fin.ProctorFlags,
				"proctor_events":     datatypes.JSON(eventsJSON),
				"violation_reason":   optional(fin.ViolationReason),
			})
		if res.Error != nil {
			return fmt.Errorf("finalize attempt: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return quiz.ErrAttemptNotInProgress
		}

		if len(fin.Slots) == 0 {
			return nil
		}
		slots := make([]answerRow, 0, len(fin.Slots))
		for _, slot := range fin.Slots {
			slots = append(slots, answerRow{
				AttemptID:        attemptID,
				QuestionID:       slot.QuestionID,
				Position:         slot.Position,
				SelectedOption:   optional(string(slot.SelectedOption)),
				IsCorrect:        slot.IsCorrect,
				MarksAwarded:     slot.MarksAwarded,
				TimeTakenSeconds: slot.TimeTakenSeconds,
			})
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option", "is_correct", "marks_awarded", "time_taken_seconds"}),
		}).Create(&slots).Error
	})
	if err != nil {
		if errors.Is(err, quiz.ErrAttemptNotFound) || errors.Is(err, quiz.ErrAttemptNotInProgress) {
			return quiz.Finalization{}, err
		}
		return quiz.Finalization{}, mapError("finalize attempt", err)
	}
	return fin, nil
}

func (s *Store) ListAttempts(ctx context.Context, userID string) ([]quiz.AttemptSummary, error) {
	var rows []summaryRow
	err := s.db.WithContext(ctx).
		Table("quiz_attempts AS a").
		Select("a.*, COALESCE(m.title, '') AS mock_test_title").
		Joins("LEFT JOIN quiz_mock_tests m ON m.mock_test_id = a.mock_test_id").
		Where("a.user_id = ?", userID).
		Order("a.started_at DESC").
		Order("a.attempt_id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError("list attempts", err)
	}

	summaries := make([]quiz.AttemptSummary, 0, len(rows))
	for _, row := range rows {
		attempt, err := row.Attempt.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode attempt %s: %w", row.Attempt.AttemptID, err)
		}
		summaries = append(summaries, quiz.AttemptSummary{Attempt: attempt, MockTestTitle: row.MockTestTitle})
	}
	return summaries, nil
}

func (s *Store) ReviewRows(ctx context.Context, attemptID, userID string) ([]quiz.ReviewRow, error) {
	var rows []keyRow
	err := s.db.WithContext(ctx).
		Table("quiz_attempt_answers AS s").
		Select(keyColumns+", s.selected_option, s.is_correct, s.marks_awarded").
		Joins("JOIN quiz_attempts a ON a.attempt_id = s.attempt_id").
		Joins("JOIN quiz_questions q ON q.question_id = s.question_id").
		Where("s.attempt_id = ? AND a.user_id = ?", attemptID, userID).
		Order("s.position ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError("review rows", err)
	}
	if len(rows) == 0 {
		return nil, quiz.ErrAttemptNotFound
	}

	reviewRows := make([]quiz.ReviewRow, 0, len(rows))
	for _, row := range rows {
		reviewRows = append(reviewRows, quiz.ReviewRow{
			AnswerKey:      row.answerKey(),
			SelectedOption: quiz.OptionKey(deref(row.SelectedOption)),
			IsCorrect:      row.IsCorrect,
			MarksAwarded:   row.MarksAwarded,
		})
	}
	return reviewRows, nil
}
