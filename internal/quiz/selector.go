package quiz

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Selector picks the questions for a new attempt.
type Selector struct {
	bank QuestionBank
	cfg  Config
}

func NewSelector(bank QuestionBank, cfg Config) *Selector {
	return &Selector{bank: bank, cfg: cfg}
}

// SelectPractice returns exactly cfg.PracticeTotalQuestions distinct questions.
// Short buckets are backfilled from the whole active pool.
func (s *Selector) SelectPractice(ctx context.Context, level Level) ([]Question, error) {
	want := s.cfg.PracticeTotalQuestions

	var (
		selected []Question
		err      error
	)
	switch level {
	case LevelEasy, LevelMedium, LevelHard:
		selected, err = s.bank.RandomQuestions(ctx, Difficulty(level), want)
	case LevelMixed:
		selected, err = s.drawMixed(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	if err != nil {
		return nil, err
	}

	selected = dedupeQuestions(selected)
	if len(selected) < want {
		backfill, err := s.bank.RandomQuestionsExcluding(ctx, questionIDs(selected), want-len(selected))
		if err != nil {
			return nil, err
		}
		selected = dedupeQuestions(append(selected, backfill...))
	}
	if len(selected) < want {
		return nil, fmt.Errorf("%w: need %d questions, found %d", ErrInsufficientQuestionBank, want, len(selected))
	}
	return selected[:want], nil
}

func (s *Selector) drawMixed(ctx context.Context) ([]Question, error) {
	buckets := []struct {
		difficulty Difficulty
		count      int
	}{
		{DifficultyEasy, s.cfg.MixedEasy},
		{DifficultyMedium, s.cfg.MixedMedium},
		{DifficultyHard, s.cfg.MixedHard},
	}

	drawn := make([][]Question, len(buckets))
	group, groupCtx := errgroup.WithContext(ctx)
	for idx, bucket := range buckets {
		if bucket.count <= 0 {
			continue
		}
		group.Go(func() error {
			questions, err := s.bank.RandomQuestions(groupCtx, bucket.difficulty, bucket.count)
			if err != nil {
				return fmt.Errorf("draw %s: %w", bucket.difficulty, err)
			}
			drawn[idx] = questions
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var selected []Question
	for _, questions := range drawn {
		selected = append(selected, questions...)
	}
	return selected, nil
}

// SelectMock returns the mock test and its questions in question_order.
func (s *Selector) SelectMock(ctx context.Context, mockTestID string) (MockTest, []Question, error) {
	mockTest, err := s.bank.GetMockTest(ctx, mockTestID)
	if err != nil {
		return MockTest{}, nil, err
	}
	if !mockTest.Active {
		return MockTest{}, nil, ErrMockTestNotFound
	}
	if mockTest.TotalQuestions <= 0 || mockTest.DurationMinutes <= 0 {
		return MockTest{}, nil, fmt.Errorf("%w: mock test %s declares %d questions over %d minutes",
			ErrInvalidMockTestSetup, mockTest.ID, mockTest.TotalQuestions, mockTest.DurationMinutes)
	}

	questions, err := s.bank.MockQuestionsOrdered(ctx, mockTest.ID)
	if err != nil {
		return MockTest{}, nil, err
	}
	if len(questions) != mockTest.TotalQuestions {
		return MockTest{}, nil, fmt.Errorf("%w: mock test %s declares %d questions, found %d",
			ErrInvalidMockTestSetup, mockTest.ID, mockTest.TotalQuestions, len(questions))
	}
	if len(dedupeQuestions(questions)) != len(questions) {
		return MockTest{}, nil, fmt.Errorf("%w: mock test %s maps a question twice", ErrInvalidMockTestSetup, mockTest.ID)
	}
	return mockTest, questions, nil
}

func dedupeQuestions(questions []Question) []Question {
	seen := make(map[string]struct{}, len(questions))
	unique := questions[:0:0]
	for _, question := range questions {
		if _, ok := seen[question.QuestionID]; ok {
			continue
		}
		seen[question.QuestionID] = struct{}{}
		unique = append(unique, question)
	}
	return unique
}

func questionIDs(questions []Question) []string {
	ids := make([]string, 0, len(questions))
	for _, question := range questions {
		ids = append(ids, question.QuestionID)
	}
	return ids
}
