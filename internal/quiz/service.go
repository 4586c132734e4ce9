package quiz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-engine/internal/platform/logger"
)

const defaultViolationReason = "Exam rule violation"

// SubmittedAnswer is one (question, option) pair from a client. An empty
// SelectedOption leaves the question unattempted.
type SubmittedAnswer struct {
	QuestionID     string
	SelectedOption string
}

// StartedAttempt is what a client needs to run the timer and render questions.
type StartedAttempt struct {
	Attempt   Attempt
	MockTest  *MockTest
	Questions []PublicQuestion
}

// AttemptResult is the synchronous outcome of a terminal transition.
type AttemptResult struct {
	Attempt   Attempt
	Breakdown []QuestionResult
}

type Review struct {
	Attempt   Attempt
	Questions []QuestionResult
}

type Service struct {
	bank     QuestionBank
	attempts AttemptStore
	selector *Selector
	catalog  CatalogCache
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithCatalogCache(cache CatalogCache) Option {
	return func(s *Service) { s.catalog = cache }
}

func NewService(bank QuestionBank, attempts AttemptStore, cfg Config, log *logger.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Service{
		bank:     bank,
		attempts: attempts,
		selector: NewSelector(bank, cfg),
		catalog:  NewMemoryCatalogCache(cfg.CatalogCacheTTL),
		cfg:      cfg,
		log:      log.With("component", "quiz.Service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) StartPractice(ctx context.Context, userID string, level Level) (StartedAttempt, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return StartedAttempt{}, err
	}
	level, err = ParseLevel(string(level))
	if err != nil {
		return StartedAttempt{}, err
	}

	questions, err := s.selector.SelectPractice(ctx, level)
	if err != nil {
		s.log.Warn("practice selection failed", "user_id", userID, "level", level, "error", err)
		return StartedAttempt{}, err
	}

	attempt := Attempt{
		UserID:          userID,
		Kind:            KindPractice,
		Level:           level,
		DurationSeconds: int(s.cfg.PracticeDuration / time.Second),
		Scheme:          s.cfg.practiceScheme(),
	}
	return s.start(ctx, attempt, nil, questions)
}

func (s *Service) StartMock(ctx context.Context, userID, mockTestID string) (StartedAttempt, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return StartedAttempt{}, err
	}
	mockTestID = strings.TrimSpace(mockTestID)
	if mockTestID == "" {
		return StartedAttempt{}, ErrMockTestNotFound
	}

	mockTest, questions, err := s.selector.SelectMock(ctx, mockTestID)
	if err != nil {
		s.log.Warn("mock selection failed", "user_id", userID, "mock_test_id", mockTestID, "error", err)
		return StartedAttempt{}, err
	}

	attempt := Attempt{
		UserID:          userID,
		Kind:            KindMock,
		MockTestID:      mockTest.ID,
		DurationSeconds: int(mockTest.Duration() / time.Second),
		Scheme:          mockTest.MarkScheme(),
	}
	return s.start(ctx, attempt, &mockTest, questions)
}

func (s *Service) start(ctx context.Context, attempt Attempt, mockTest *MockTest, questions []Question) (StartedAttempt, error) {
	now := s.now().UTC()
	attempt.ID = s.newID()
	attempt.StartedAt = now
	attempt.CreatedAt = now
	attempt.Status = StatusInProgress
	attempt.TotalQuestions = len(questions)

	created, err := s.attempts.CreateAttemptWithSlots(ctx, attempt, questionIDs(questions))
	if err != nil {
		s.log.Error("create attempt failed", "user_id", attempt.UserID, "kind", attempt.Kind, "error", err)
		return StartedAttempt{}, err
	}

	s.log.Info("attempt started",
		"attempt_id", created.ID,
		"user_id", created.UserID,
		"kind", created.Kind,
		"total_questions", created.TotalQuestions,
		"duration_seconds", created.DurationSeconds,
	)
	return StartedAttempt{
		Attempt:   created,
		MockTest:  mockTest,
		Questions: ToPublicQuestions(questions),
	}, nil
}

// Submit scores the answers and closes the attempt. The status is decided from
// the server clock, so a late submission is recorded as auto_submitted.
func (s *Service) Submit(ctx context.Context, userID, attemptID string, answers []SubmittedAnswer, proctorEvents []string) (AttemptResult, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return AttemptResult{}, err
	}
	selections, err := normalizeAnswers(answers)
	if err != nil {
		return AttemptResult{}, err
	}
	events := cleanEvents(proctorEvents)
	submittedAt := s.now().UTC()

	var (
		closed    Attempt
		breakdown []QuestionResult
	)
	fin, err := s.attempts.FinalizeAttempt(ctx, attemptID, userID, func(attempt Attempt, keys []AnswerKey) (Finalization, error) {
		if err := attempt.transition(classifySubmission(attempt, submittedAt)); err != nil {
			return Finalization{}, err
		}
		scored := NewScorer(attempt.Scheme).Score(keys, selections, attempt.DurationSeconds, attempt.StartedAt, submittedAt)
		closed, breakdown = attempt, scored.Breakdown
		return Finalization{
			AttemptID:     attempt.ID,
			Status:        attempt.Status,
			SubmittedAt:   submittedAt,
			Result:        scored.Aggregates,
			ProctorFlags:  len(events),
			ProctorEvents: events,
			Slots:         scored.Slots(attempt.ID),
		}, nil
	})
	if err != nil {
		s.logFinalizeError("submit", attemptID, userID, err)
		return AttemptResult{}, err
	}

	closed = applyFinalization(closed, fin)
	s.log.Info("attempt submitted",
		"attempt_id", closed.ID,
		"user_id", closed.UserID,
		"status", closed.Status,
		"final_score", fin.Result.FinalScore,
	)
	return AttemptResult{Attempt: closed, Breakdown: breakdown}, nil
}

// ReportViolation fails the attempt with a zero score. Answers staged on the
// client are never scored.
func (s *Service) ReportViolation(ctx context.Context, userID, attemptID, reason string, proctorEvents []string) (AttemptResult, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return AttemptResult{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultViolationReason
	}
	events := cleanEvents(proctorEvents)
	submittedAt := s.now().UTC()

	var closed Attempt
	fin, err := s.attempts.FinalizeAttempt(ctx, attemptID, userID, func(attempt Attempt, _ []AnswerKey) (Finalization, error) {
		if err := attempt.transition(StatusFailedDueToViolation); err != nil {
			return Finalization{}, err
		}
		closed = attempt
		return Finalization{
			AttemptID:   attempt.ID,
			Status:      attempt.Status,
			SubmittedAt: submittedAt,
			Result: Aggregates{
				UnattemptedCount: attempt.TotalQuestions,
				TimeTakenSeconds: timeTaken(attempt.DurationSeconds, attempt.StartedAt, submittedAt),
			},
			ProctorFlags:    max(1, len(events)),
			ProctorEvents:   events,
			ViolationReason: reason,
		}, nil
	})
	if err != nil {
		s.logFinalizeError("violation", attemptID, userID, err)
		return AttemptResult{}, err
	}

	closed = applyFinalization(closed, fin)
	s.log.Info("attempt failed due to violation",
		"attempt_id", closed.ID,
		"user_id", closed.UserID,
		"status", closed.Status,
		"proctor_flags", closed.ProctorFlags,
	)
	return AttemptResult{Attempt: closed, Breakdown: []QuestionResult{}}, nil
}

func (s *Service) ListAttempts(ctx context.Context, userID string) ([]AttemptSummary, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	return s.attempts.ListAttempts(ctx, userID)
}

func (s *Service) ListMockTests(ctx context.Context) ([]MockTest, error) {
	return s.listMockTestsCached(ctx)
}

// Review is the only read path that reveals the answer key.
func (s *Service) Review(ctx context.Context, userID, attemptID string) (Review, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return Review{}, err
	}

	attempt, err := s.attempts.FindAttempt(ctx, attemptID, userID)
	if err != nil {
		return Review{}, err
	}
	switch attempt.Status {
	case StatusInProgress:
		return Review{}, ErrReviewNotYetAvailable
	case StatusFailedDueToViolation:
		return Review{}, ErrReviewForbidden
	}

	rows, err := s.attempts.ReviewRows(ctx, attempt.ID, userID)
	if err != nil {
		return Review{}, err
	}
	return Review{Attempt: attempt, Questions: projectReview(rows)}, nil
}

func projectReview(rows []ReviewRow) []QuestionResult {
	questions := make([]QuestionResult, 0, len(rows))
	for idx, row := range rows {
		item := QuestionResult{
			QuestionNo:     row.Position,
			QuestionID:     row.QuestionID,
			QuestionText:   row.Text,
			SelectedOption: row.SelectedOption,
			SelectedText:   row.OptionText(row.SelectedOption),
			CorrectOption:  row.CorrectOption,
			CorrectText:    row.OptionText(row.CorrectOption),
			Explanation:    row.Explanation,
			MarksAwarded:   row.MarksAwarded,
		}
		if item.QuestionNo <= 0 {
			item.QuestionNo = idx + 1
		}
		switch {
		case row.SelectedOption == "":
			item.Outcome = OutcomeUnattempted
		case row.IsCorrect != nil && *row.IsCorrect:
			item.Outcome = OutcomeCorrect
		default:
			item.Outcome = OutcomeIncorrect
		}
		questions = append(questions, item)
	}
	return questions
}

func (s *Service) logFinalizeError(op, attemptID, userID string, err error) {
	switch {
	case errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrAttemptNotInProgress):
		s.log.Warn("transition rejected", "op", op, "attempt_id", attemptID, "user_id", userID, "error", err)
	default:
		s.log.Error("finalize attempt failed", "op", op, "attempt_id", attemptID, "user_id", userID, "error", err)
	}
}

func applyFinalization(attempt Attempt, fin Finalization) Attempt {
	submittedAt := fin.SubmittedAt
	result := fin.Result
	attempt.Status = fin.Status
	attempt.SubmittedAt = &submittedAt
	attempt.Result = &result
	attempt.ProctorFlags = fin.ProctorFlags
	attempt.ProctorEvents = fin.ProctorEvents
	attempt.ViolationReason = fin.ViolationReason
	return attempt
}

// normalizeAnswers collapses duplicate question ids to the last value.
func normalizeAnswers(answers []SubmittedAnswer) (map[string]OptionKey, error) {
	selections := make(map[string]OptionKey, len(answers))
	for _, answer := range answers {
		questionID := strings.TrimSpace(answer.QuestionID)
		if questionID == "" {
			continue
		}
		if strings.TrimSpace(answer.SelectedOption) == "" {
			delete(selections, questionID)
			continue
		}
		option := NormalizeOption(answer.SelectedOption)
		if option == "" {
			return nil, ErrInvalidOption
		}
		selections[questionID] = option
	}
	return selections, nil
}

func cleanEvents(events []string) []string {
	cleaned := make([]string, 0, len(events))
	for _, event := range events {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		cleaned = append(cleaned, event)
	}
	return cleaned
}

func requireUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingUser
	}
	return userID, nil
}
