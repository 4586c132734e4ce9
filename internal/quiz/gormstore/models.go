package gormstore

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"quiz-engine/internal/quiz"
)

type topicRow struct {
	TopicID     string    `gorm:"column:topic_id;primaryKey"`
	Name        string    `gorm:"column:name;not null;uniqueIndex"`
	Description string    `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (topicRow) TableName() string { return "quiz_topics" }

type questionRow struct {
	QuestionID    string    `gorm:"column:question_id;primaryKey"`
	TopicID       *string   `gorm:"column:topic_id"`
	Difficulty    string    `gorm:"column:difficulty;not null;index:idx_quiz_questions_difficulty_active,priority:1;check:chk_quiz_questions_difficulty,difficulty IN ('easy', 'medium', 'hard')"`
	QuestionText  string    `gorm:"column:question_text;not null"`
	OptionA       string    `gorm:"column:option_a;not null"`
	OptionB       string    `gorm:"column:option_b;not null"`
	OptionC       string    `gorm:"column:option_c;not null"`
	OptionD       string    `gorm:"column:option_d;not null"`
	CorrectOption string    `gorm:"column:correct_option;not null;check:chk_quiz_questions_correct_option,correct_option IN ('A', 'B', 'C', 'D')"`
	Explanation   string    `gorm:"column:explanation;not null"`
	Active        bool      `gorm:"column:active;not null;index:idx_quiz_questions_difficulty_active,priority:2"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (questionRow) TableName() string { return "quiz_questions" }

func (r questionRow) toDomain() quiz.Question {
	question := quiz.Question{
		PublicQuestion: quiz.PublicQuestion{
			QuestionID: r.QuestionID,
			Text:       r.QuestionText,
			Difficulty: quiz.Difficulty(r.Difficulty),
			OptionA:    r.OptionA,
			OptionB:    r.OptionB,
			OptionC:    r.OptionC,
			OptionD:    r.OptionD,
		},
		CorrectOption: quiz.OptionKey(r.CorrectOption),
		Explanation:   r.Explanation,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.TopicID != nil {
		question.TopicID = *r.TopicID
	}
	return question
}

func questionRowFrom(q quiz.Question, now time.Time) questionRow {
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return questionRow{
		QuestionID:    q.QuestionID,
		TopicID:       optional(q.TopicID),
		Difficulty:    string(q.Difficulty),
		QuestionText:  q.Text,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectOption: string(q.CorrectOption),
		Explanation:   q.Explanation,
		Active:        q.Active,
		CreatedAt:     createdAt.UTC(),
	}
}

type mockTestRow struct {
	MockTestID      string    `gorm:"column:mock_test_id;primaryKey"`
	Title           string    `gorm:"column:title;not null"`
	Description     string    `gorm:"column:description;not null;default:''"`
	TotalQuestions  int       `gorm:"column:total_questions;not null"`
	TotalMarks      float64   `gorm:"column:total_marks;not null"`
	NegativeMark    float64   `gorm:"column:negative_mark;not null"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null"`
	Active          bool      `gorm:"column:active;not null;index"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
}

func (mockTestRow) TableName() string { return "quiz_mock_tests" }

func (r mockTestRow) toDomain() quiz.MockTest {
	return quiz.MockTest{
		ID:              r.MockTestID,
		Title:           r.Title,
		Description:     r.Description,
		TotalQuestions:  r.TotalQuestions,
		TotalMarks:      r.TotalMarks,
		NegativeMark:    r.NegativeMark,
		DurationMinutes: r.DurationMinutes,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

type mockTestQuestionRow struct {
	MockTestID    string `gorm:"column:mock_test_id;primaryKey;uniqueIndex:idx_quiz_mock_test_question,priority:1"`
	QuestionOrder int    `gorm:"column:question_order;primaryKey;autoIncrement:false"`
	QuestionID    string `gorm:"column:question_id;not null;uniqueIndex:idx_quiz_mock_test_question,priority:2"`
}

func (mockTestQuestionRow) TableName() string { return "quiz_mock_test_questions" }

type attemptRow struct {
	AttemptID        string         `gorm:"column:attempt_id;primaryKey"`
	UserID           string         `gorm:"column:user_id;not null;index:idx_quiz_attempts_user_started,priority:1"`
	Kind             string         `gorm:"column:kind;not null"`
	MockTestID       *string        `gorm:"column:mock_test_id"`
	Level            *string        `gorm:"column:level"`
	StartedAt        time.Time      `gorm:"column:started_at;not null;index:idx_quiz_attempts_user_started,priority:2"`
	SubmittedAt      *time.Time     `gorm:"column:submitted_at"`
	DurationSeconds  int            `gorm:"column:duration_seconds;not null"`
	TotalQuestions   int            `gorm:"column:total_questions;not null"`
	CorrectMark      float64        `gorm:"column:correct_mark;not null"`
	NegativeMark     float64        `gorm:"column:negative_mark;not null"`
	Status           string         `gorm:"column:status;not null;check:chk_quiz_attempts_status,status IN ('in_progress', 'submitted', 'auto_submitted', 'failed_due_to_violation')"`
	CorrectCount     *int           `gorm:"column:correct_count"`
	IncorrectCount   *int           `gorm:"column:incorrect_count"`
	UnattemptedCount *int           `gorm:"column:unattempted_count"`
	NegativeMarks    *float64       `gorm:"column:negative_marks"`
	FinalScore       *float64       `gorm:"column:final_score;check:chk_quiz_attempts_final_score,final_score IS NULL OR final_score >= 0"`
	AccuracyPercent  *float64       `gorm:"column:accuracy_percent"`
	TimeTakenSeconds *int           `gorm:"column:time_taken_seconds"`
	ProctorFlags     int            `gorm:"column:proctor_flags;not null;default:0"`
	ProctorEvents    datatypes.JSON `gorm:"column:proctor_events"`
	ViolationReason  *string        `gorm:"column:violation_reason"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
}

func (attemptRow) TableName() string { return "quiz_attempts" }

func attemptRowFrom(a quiz.Attempt) attemptRow {
	return attemptRow{
		AttemptID:       a.ID,
		UserID:          a.UserID,
		Kind:            string(a.Kind),
		MockTestID:      optional(a.MockTestID),
		Level:           optional(string(a.Level)),
		StartedAt:       a.StartedAt.UTC(),
		DurationSeconds: a.DurationSeconds,
		TotalQuestions:  a.TotalQuestions,
		CorrectMark:     a.Scheme.CorrectMark,
		NegativeMark:    a.Scheme.NegativeMark,
		Status:          string(quiz.StatusInProgress),
		ProctorEvents:   datatypes.JSON("[]"),
		CreatedAt:       a.CreatedAt.UTC(),
	}
}

func (r attemptRow) toDomain() (quiz.Attempt, error) {
	attempt := quiz.Attempt{
		ID:              r.AttemptID,
		UserID:          r.UserID,
		Kind:            quiz.Kind(r.Kind),
		StartedAt:       r.StartedAt.UTC(),
		DurationSeconds: r.DurationSeconds,
		TotalQuestions:  r.TotalQuestions,
		Scheme:          quiz.MarkScheme{CorrectMark: r.CorrectMark, NegativeMark: r.NegativeMark},
		Status:          quiz.Status(r.Status),
		ProctorFlags:    r.ProctorFlags,
		ProctorEvents:   []string{},
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.MockTestID != nil {
		attempt.MockTestID = *r.MockTestID
	}
	if r.Level != nil {
		attempt.Level = quiz.Level(*r.Level)
	}
	if r.SubmittedAt != nil {
		at := r.SubmittedAt.UTC()
		attempt.SubmittedAt = &at
	}
	if r.ViolationReason != nil {
		attempt.ViolationReason = *r.ViolationReason
	}
	if attempt.Status.Terminal() && r.FinalScore != nil {
		attempt.Result = &quiz.Aggregates{
			CorrectCount:     deref(r.CorrectCount),
			IncorrectCount:   deref(r.IncorrectCount),
			UnattemptedCount: deref(r.UnattemptedCount),
			NegativeMarks:    deref(r.NegativeMarks),
			FinalScore:       *r.FinalScore,
			AccuracyPercent:  deref(r.AccuracyPercent),
			TimeTakenSeconds: deref(r.TimeTakenSeconds),
		}
	}
	if len(r.ProctorEvents) > 0 {
		if err := json.Unmarshal(r.ProctorEvents, &attempt.ProctorEvents); err != nil {
			return quiz.Attempt{}, err
		}
	}
	return attempt, nil
}

type answerRow struct {
	AttemptID        string  `gorm:"column:attempt_id;primaryKey;uniqueIndex:idx_quiz_attempt_answers_position,priority:1"`
	QuestionID       string  `gorm:"column:question_id;primaryKey;index"`
	Position         int     `gorm:"column:position;not null;uniqueIndex:idx_quiz_attempt_answers_position,priority:2"`
	SelectedOption   *string `gorm:"column:selected_option"`
	IsCorrect        *bool   `gorm:"column:is_correct"`
	MarksAwarded     float64 `gorm:"column:marks_awarded;not null;default:0"`
	TimeTakenSeconds *int    `gorm:"column:time_taken_seconds"`
}

func (answerRow) TableName() string { return "quiz_attempt_answers" }

// keyRow is the joined slot + question shape used for answer keys and review.
type keyRow struct {
	QuestionID     string
	QuestionText   string
	Difficulty     string
	OptionA        string
	OptionB        string
	OptionC        string
	OptionD        string
	Position       int
	CorrectOption  string
	Explanation    string
	SelectedOption *string
	IsCorrect      *bool
	MarksAwarded   float64
}

func (r keyRow) answerKey() quiz.AnswerKey {
	return quiz.AnswerKey{
		PublicQuestion: quiz.PublicQuestion{
			QuestionID: r.QuestionID,
			Text:       r.QuestionText,
			Difficulty: quiz.Difficulty(r.Difficulty),
			OptionA:    r.OptionA,
			OptionB:    r.OptionB,
			OptionC:    r.OptionC,
			OptionD:    r.OptionD,
		},
		Position:      r.Position,
		CorrectOption: quiz.OptionKey(r.CorrectOption),
		Explanation:   r.Explanation,
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
