package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quiz-engine/internal/quiz"
)

func toQuestions(rows []questionRow) []quiz.Question {
	questions := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toDomain())
	}
	return questions
}

func (s *Store) RandomQuestions(ctx context.Context, difficulty quiz.Difficulty, limit int) ([]quiz.Question, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []questionRow
	err := s.db.WithContext(ctx).
		Where("active = ? AND difficulty = ?", true, string(difficulty)).
		Order("RANDOM()").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, mapError("random questions", err)
	}
	return toQuestions(rows), nil
}

func (s *Store) RandomQuestionsExcluding(ctx context.Context, excludeIDs []string, limit int) ([]quiz.Question, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Where("active = ?", true)
	if len(excludeIDs) > 0 {
		query = query.Where("question_id NOT IN ?", excludeIDs)
	}

	var rows []questionRow
	if err := query.Order("RANDOM()").Limit(limit).Find(&rows).Error; err != nil {
		return nil, mapError("random questions excluding", err)
	}
	return toQuestions(rows), nil
}

func (s *Store) GetMockTest(ctx context.Context, mockTestID string) (quiz.MockTest, error) {
	var row mockTestRow
	err := s.db.WithContext(ctx).Where("mock_test_id = ?", mockTestID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quiz.MockTest{}, quiz.ErrMockTestNotFound
	}
	if err != nil {
		return quiz.MockTest{}, mapError("get mock test", err)
	}
	return row.toDomain(), nil
}

func (s *Store) MockQuestionsOrdered(ctx context.Context, mockTestID string) ([]quiz.Question, error) {
	var rows []questionRow
	err := s.db.WithContext(ctx).
		Table("quiz_mock_test_questions AS m").
		Select("q.*").
		Joins("JOIN quiz_questions q ON q.question_id = m.question_id").
		Where("m.mock_test_id = ? AND q.active = ?", mockTestID, true).
		Order("m.question_order ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError("mock questions", err)
	}
	return toQuestions(rows), nil
}

func (s *Store) ListActiveMockTests(ctx context.Context) ([]quiz.MockTest, error) {
	var rows []mockTestRow
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Order("title ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("list mock tests", err)
	}
	mockTests := make([]quiz.MockTest, 0, len(rows))
	for _, row := range rows {
		mockTests = append(mockTests, row.toDomain())
	}
	return mockTests, nil
}

func (s *Store) SeedTopics(ctx context.Context, topics []quiz.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]topicRow, 0, len(topics))
	for _, topic := range topics {
		rows = append(rows, topicRow{TopicID: topic.ID, Name: topic.Name, Description: topic.Description, CreatedAt: now})
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description"}),
		}).
		Create(&rows).Error
	return mapError("seed topics", err)
}

// SeedQuestions upserts questions, skipping any already referenced by an
// attempt, and returns how many rows changed.
func (s *Store) SeedQuestions(ctx context.Context, questions []quiz.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]questionRow, 0, len(questions))
	for _, question := range questions {
		rows = append(rows, questionRowFrom(question, now))
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"topic_id", "difficulty", "question_text", "option_a", "option_b", "option_c", "option_d",
				"correct_option", "explanation", "active",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "NOT EXISTS (SELECT 1 FROM quiz_attempt_answers a WHERE a.question_id = excluded.question_id)"},
			}},
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, mapError("seed questions", res.Error)
	}
	return int(res.RowsAffected), nil
}

// SeedMockTest upserts the mock test and replaces its ordered question mapping.
func (s *Store) SeedMockTest(ctx context.Context, mockTest quiz.MockTest, questionIDs []string) error {
	if len(questionIDs) != mockTest.TotalQuestions {
		return fmt.Errorf("%w: %s declares %d questions, got %d",
			quiz.ErrInvalidMockTestSetup, mockTest.Title, mockTest.TotalQuestions, len(questionIDs))
	}
	createdAt := mockTest.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := mockTestRow{
		MockTestID:      mockTest.ID,
		Title:           mockTest.Title,
		Description:     mockTest.Description,
		TotalQuestions:  mockTest.TotalQuestions,
		TotalMarks:      mockTest.TotalMarks,
		NegativeMark:    mockTest.NegativeMark,
		DurationMinutes: mockTest.DurationMinutes,
		Active:          mockTest.Active,
		CreatedAt:       createdAt.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "mock_test_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "total_questions", "total_marks", "negative_mark", "duration_minutes", "active",
			}),
		}).Create(&row).Error; err != nil {
			return err
		}

		if err := tx.Where("mock_test_id = ?", mockTest.ID).Delete(&mockTestQuestionRow{}).Error; err != nil {
			return err
		}
		mappings := make([]mockTestQuestionRow, 0, len(questionIDs))
		for idx, questionID := range questionIDs {
			mappings = append(mappings, mockTestQuestionRow{MockTestID: mockTest.ID, QuestionOrder: idx + 1, QuestionID: questionID})
		}
		return tx.Create(&mappings).Error
	})
	return mapError("seed mock test", err)
}
