package quiz

import "errors"

var (
	ErrInsufficientQuestionBank = errors.New("insufficient question bank")
	ErrMockTestNotFound         = errors.New("mock test not found")
	ErrInvalidMockTestSetup     = errors.New("invalid mock test setup")
	ErrAttemptNotFound          = errors.New("attempt not found")
	ErrAttemptNotInProgress     = errors.New("attempt is not in progress")
	ErrReviewNotYetAvailable    = errors.New("review is not available while the attempt is in progress")
	ErrReviewForbidden          = errors.New("review is not available for violation-failed attempts")

	ErrMissingUser     = errors.New("missing user id")
	ErrInvalidLevel    = errors.New("invalid level")
	ErrInvalidOption   = errors.New("invalid option")
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidConfig   = errors.New("invalid quiz config")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInsufficientQuestionBank, "insufficient_question_bank"},
	{ErrMockTestNotFound, "mock_test_not_found"},
	{ErrInvalidMockTestSetup, "invalid_mock_test_setup"},
	{ErrAttemptNotFound, "attempt_not_found"},
	{ErrAttemptNotInProgress, "attempt_not_in_progress"},
	{ErrReviewNotYetAvailable, "review_not_yet_available"},
	{ErrReviewForbidden, "review_forbidden"},
	{ErrMissingUser, "unauthenticated"},
	{ErrInvalidLevel, "invalid_level"},
	{ErrInvalidOption, "invalid_option"},
	{ErrInvalidQuestion, "invalid_question"},
}

// ErrorCode returns a stable machine-readable code for err, or "internal" when
// err is not one of the package sentinels.
func ErrorCode(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "internal"
}
