package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"quiz-engine/internal/quiz"
)

const (
	codeInvalidRequest  = "invalid_request"
	codeUnauthenticated = "unauthenticated"
	codeInternal        = "internal"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: apiError{Message: message, Code: code}})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, quiz.ErrInvalidLevel), errors.Is(err, quiz.ErrInvalidOption), errors.Is(err, quiz.ErrInvalidQuestion):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, quiz.ErrReviewForbidden):
		return http.StatusForbidden
	case errors.Is(err, quiz.ErrAttemptNotFound), errors.Is(err, quiz.ErrMockTestNotFound):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrAttemptNotInProgress), errors.Is(err, quiz.ErrReviewNotYetAvailable):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrInvalidMockTestSetup):
		return http.StatusUnprocessableEntity
	case errors.Is(err, quiz.ErrInsufficientQuestionBank):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError hides the message of unexpected failures; sentinel
// messages are safe to show.
func writeServiceError(c *gin.Context, err error) {
	status := statusForError(err)
	code := quiz.ErrorCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "request failed"
		code = codeInternal
	}
	respondError(c, status, code, message)
}

func toAttemptSummary(attempt quiz.Attempt, mockTitle string) attemptSummary {
	var summary attemptSummary
	_ = copier.Copy(&summary, &attempt)
	summary.MockTestTitle = mockTitle

	if result := attempt.Result; result != nil {
		summary.CorrectCount = &result.CorrectCount
		summary.IncorrectCount = &result.IncorrectCount
		summary.UnattemptedCount = &result.UnattemptedCount
		summary.NegativeMarks = &result.NegativeMarks
		summary.FinalScore = &result.FinalScore
		summary.AccuracyPercent = &result.AccuracyPercent
		summary.TimeTakenSeconds = &result.TimeTakenSeconds
	}
	return summary
}

func toStartResponse(started quiz.StartedAttempt) startResponse {
	attempt := started.Attempt
	response := startResponse{
		AttemptID:       attempt.ID,
		QuizType:        attempt.Kind,
		Level:           attempt.Level,
		MockTestID:      attempt.MockTestID,
		DurationMinutes: attempt.DurationSeconds / 60,
		DurationSeconds: attempt.DurationSeconds,
		StartedAt:       attempt.StartedAt,
		ExpiresAt:       attempt.StartedAt.Add(time.Duration(attempt.DurationSeconds) * time.Second),
		TotalQuestions:  attempt.TotalQuestions,
		Questions:       started.Questions,
	}
	if started.MockTest != nil {
		response.MockTitle = started.MockTest.Title
	}
	if response.Questions == nil {
		response.Questions = []quiz.PublicQuestion{}
	}
	return response
}

func toOutcomeResponse(result quiz.AttemptResult) outcomeResponse {
	breakdown := result.Breakdown
	if breakdown == nil {
		breakdown = []quiz.QuestionResult{}
	}
	return outcomeResponse{
		Summary:           toAttemptSummary(result.Attempt, ""),
		DetailedBreakdown: breakdown,
	}
}

func toSubmittedAnswers(answers []answerRequest) []quiz.SubmittedAnswer {
	out := make([]quiz.SubmittedAnswer, 0, len(answers))
	for _, answer := range answers {
		out = append(out, quiz.SubmittedAnswer{QuestionID: answer.QuestionID, SelectedOption: answer.SelectedOption})
	}
	return out
}
