package httpapi

import (
	"time"

	"quiz-engine/internal/quiz"
)

type startPracticeRequest struct {
	Level string `json:"level" binding:"required,oneof=easy medium hard mixed"`
}

type answerRequest struct {
	QuestionID     string `json:"question_id" binding:"required"`
	SelectedOption string `json:"selected_option" binding:"required,oneof=A B C D"`
}

type submitRequest struct {
	AttemptID     string          `json:"attempt_id" binding:"required,uuid"`
	Answers       []answerRequest `json:"answers" binding:"omitempty,dive"`
	ProctorEvents []string        `json:"proctor_events" binding:"omitempty,max=500,dive,min=1,max=120"`
}

type violationRequest struct {
	AttemptID     string   `json:"attempt_id" binding:"required,uuid"`
	Reason        string   `json:"reason" binding:"required,min=3,max=160"`
	ProctorEvents []string `json:"proctor_events" binding:"omitempty,max=500,dive,min=1,max=120"`
}

type startResponse struct {
	AttemptID       string                `json:"attempt_id"`
	QuizType        quiz.Kind             `json:"quiz_type"`
	Level           quiz.Level            `json:"level,omitempty"`
	MockTestID      string                `json:"mock_test_id,omitempty"`
	MockTitle       string                `json:"mock_title,omitempty"`
	DurationMinutes int                   `json:"duration_minutes"`
	DurationSeconds int                   `json:"duration_seconds"`
	StartedAt       time.Time             `json:"started_at"`
	ExpiresAt       time.Time             `json:"expires_at"`
	TotalQuestions  int                   `json:"total_questions"`
	Questions       []quiz.PublicQuestion `json:"questions"`
}

// attemptSummary mirrors quiz.Attempt field names so copier can fill it.
// Aggregates stay null until the attempt is terminal.
type attemptSummary struct {
	ID               string      `json:"attempt_id"`
	Kind             quiz.Kind   `json:"quiz_type"`
	MockTestID       string      `json:"mock_test_id,omitempty"`
	MockTestTitle    string      `json:"mock_title,omitempty"`
	Level            quiz.Level  `json:"level_selected,omitempty"`
	Status           quiz.Status `json:"status"`
	StartedAt        time.Time   `json:"started_at"`
	SubmittedAt      *time.Time  `json:"submitted_at"`
	DurationSeconds  int         `json:"duration_seconds"`
	TotalQuestions   int         `json:"total_questions"`
	CorrectCount     *int        `json:"correct_count"`
	IncorrectCount   *int        `json:"incorrect_count"`
	UnattemptedCount *int        `json:"unattempted_count"`
	NegativeMarks    *float64    `json:"negative_marks"`
	FinalScore       *float64    `json:"final_score"`
	AccuracyPercent  *float64    `json:"accuracy_percent"`
	TimeTakenSeconds *int        `json:"time_taken_seconds"`
	ProctorFlags     int         `json:"proctor_flags"`
	ViolationReason  string      `json:"violation_reason,omitempty"`
}

type outcomeResponse struct {
	Summary           attemptSummary        `json:"summary"`
	DetailedBreakdown []quiz.QuestionResult `json:"detailed_breakdown"`
}

type reviewResponse struct {
	Summary            attemptSummary        `json:"summary"`
	QuestionWiseReview []quiz.QuestionResult `json:"question_wise_review"`
}

type mockTestResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TotalQuestions  int       `json:"total_questions"`
	TotalMarks      float64   `json:"total_marks"`
	NegativeMark    float64   `json:"negative_mark"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

type mockTestsResponse struct {
	MockTests []mockTestResponse `json:"mock_tests"`
}

type attemptsResponse struct {
	Attempts []attemptSummary `json:"attempts"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}
