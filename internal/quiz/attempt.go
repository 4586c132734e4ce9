package quiz

import (
	"fmt"
	"strings"
	"time"
)

// Level is the practice difficulty a user asks for. LevelMixed draws from every
// difficulty bucket.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
	LevelMixed  Level = "mixed"
)

func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	switch level {
	case LevelEasy, LevelMedium, LevelHard, LevelMixed:
		return level, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
}

type Kind string

const (
	KindPractice Kind = "practice"
	KindMock     Kind = "mock"
)

type Status string

const (
	StatusInProgress           Status = "in_progress"
	StatusSubmitted            Status = "submitted"
	StatusAutoSubmitted        Status = "auto_submitted"
	StatusFailedDueToViolation Status = "failed_due_to_violation"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSubmitted, StatusAutoSubmitted, StatusFailedDueToViolation:
		return true
	}
	return false
}

// MarkScheme is the per-question reward and the magnitude of the penalty for a
// wrong answer.
type MarkScheme struct {
	CorrectMark  float64 `json:"correct_mark"`
	NegativeMark float64 `json:"negative_mark"`
}

type MockTest struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TotalQuestions  int       `json:"total_questions"`
	TotalMarks      float64   `json:"total_marks"`
	NegativeMark    float64   `json:"negative_mark"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

func (m MockTest) MarkScheme() MarkScheme {
	correct := 1.0
	if m.TotalQuestions > 0 && m.TotalMarks > 0 {
		correct = m.TotalMarks / float64(m.TotalQuestions)
	}
	return MarkScheme{CorrectMark: correct, NegativeMark: m.NegativeMark}
}

func (m MockTest) Duration() time.Duration {
	return time.Duration(m.DurationMinutes) * time.Minute
}

type Aggregates struct {
	CorrectCount     int     `json:"correct_count"`
	IncorrectCount   int     `json:"incorrect_count"`
	UnattemptedCount int     `json:"unattempted_count"`
	NegativeMarks    float64 `json:"negative_marks"`
	FinalScore       float64 `json:"final_score"`
	AccuracyPercent  float64 `json:"accuracy_percent"`
	TimeTakenSeconds int     `json:"time_taken_seconds"`
}

// Attempt is one timed run of a practice or mock quiz. MockTestID is empty for
// practice and Level is empty for mock. Result stays nil until the attempt
// reaches a terminal status.
type Attempt struct {
	ID              string
	UserID          string
	Kind            Kind
	MockTestID      string
	Level           Level
	StartedAt       time.Time
	SubmittedAt     *time.Time
	DurationSeconds int
	TotalQuestions  int
	Scheme          MarkScheme
	Status          Status
	Result          *Aggregates
	ProctorFlags    int
	ProctorEvents   []string
	ViolationReason string
	CreatedAt       time.Time
}

// transition is the only place an attempt's status changes.
func (a *Attempt) transition(to Status) error {
	if a.Status != StatusInProgress {
		return ErrAttemptNotInProgress
	}
	if !to.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s", a.Status, to)
	}
	a.Status = to
	return nil
}

// deadline is the last instant a submission still counts as on time.
func (a Attempt) deadline() time.Time {
	return a.StartedAt.Add(time.Duration(a.DurationSeconds) * time.Second)
}

func classifySubmission(attempt Attempt, submittedAt time.Time) Status {
	if submittedAt.After(attempt.deadline()) {
		return StatusAutoSubmitted
	}
	return StatusSubmitted
}

type AttemptSummary struct {
	Attempt
	MockTestTitle string
}

type AnswerSlot struct {
	AttemptID        string
	QuestionID       string
	Position         int
	SelectedOption   OptionKey
	IsCorrect        *bool
	MarksAwarded     float64
	TimeTakenSeconds *int
}

// AnswerKey is one question of an attempt with its correct option, as loaded
// inside the finalizing transaction.
type AnswerKey struct {
	PublicQuestion
	Position      int
	CorrectOption OptionKey
	Explanation   string
}

type ReviewRow struct {
	AnswerKey
	SelectedOption OptionKey
	IsCorrect      *bool
	MarksAwarded   float64
}

// Finalization is everything a terminal transition writes in one transaction.
type Finalization struct {
	AttemptID       string
	Status          Status
	SubmittedAt     time.Time
	Result          Aggregates
	ProctorFlags    int
	ProctorEvents   []string
	ViolationReason string
	Slots           []AnswerSlot
}

// FinalizeFunc decides the outcome of an in-progress attempt. Stores call it
// inside the transaction that writes the result.
type FinalizeFunc func(attempt Attempt, keys []AnswerKey) (Finalization, error)
