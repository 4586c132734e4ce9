package quiz

import "context"

// QuestionBank is read-only from the engine's point of view. Every method
// returns only active rows.
type QuestionBank interface {
	RandomQuestions(ctx context.Context, difficulty Difficulty, limit int) ([]Question, error)
	RandomQuestionsExcluding(ctx context.Context, excludeIDs []string, limit int) ([]Question, error)
	GetMockTest(ctx context.Context, mockTestID string) (MockTest, error)
	MockQuestionsOrdered(ctx context.Context, mockTestID string) ([]Question, error)
	ListActiveMockTests(ctx context.Context) ([]MockTest, error)
}

// AttemptStore owns attempts and their answer slots.
//
// CreateAttemptWithSlots writes the attempt and one blank slot per question id
// in a single transaction; slot positions follow the order of questionIDs.
//
// FinalizeAttempt loads the attempt (scoped to userID) and its answer keys,
// calls fn, and writes the returned Finalization in the same transaction. The
// status write is conditional on the row still being in progress; losing that
// race rolls back and returns ErrAttemptNotInProgress.
type AttemptStore interface {
	CreateAttemptWithSlots(ctx context.Context, attempt Attempt, questionIDs []string) (Attempt, error)
	FindAttempt(ctx context.Context, attemptID, userID string) (Attempt, error)
	FinalizeAttempt(ctx context.Context, attemptID, userID string, fn FinalizeFunc) (Finalization, error)
	ListAttempts(ctx context.Context, userID string) ([]AttemptSummary, error)
	ReviewRows(ctx context.Context, attemptID, userID string) ([]ReviewRow, error)
}

// BankSeeder is the admin write path for the question bank. Questions already
// referenced by an attempt are left untouched on re-seed.
type BankSeeder interface {
	SeedTopics(ctx context.Context, topics []Topic) error
	SeedQuestions(ctx context.Context, questions []Question) (int, error)
	SeedMockTest(ctx context.Context, mockTest MockTest, questionIDs []string) error
}

type Store interface {
	QuestionBank
	AttemptStore
	BankSeeder
	Close() error
}
