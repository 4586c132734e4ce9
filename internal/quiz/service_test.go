package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	svc      *Service
	bank     *fakeBank
	attempts *fakeAttemptStore
	clock    *testClock
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()

	bank := newFakeBank()
	bank.addQuestions(DifficultyEasy, "e", 30)
	bank.addQuestions(DifficultyMedium, "m", 30)
	bank.addQuestions(DifficultyHard, "h", 30)

	mockQuestions := []Question{
		testQuestion("mock-q1", DifficultyMedium, OptionA),
		testQuestion("mock-q2", DifficultyMedium, OptionD),
		testQuestion("mock-q3", DifficultyHard, OptionC),
	}
	bank.mockTests["mock-1"] = MockTest{
		ID:              "mock-1",
		Title:           "Aptitude Mock 1",
		TotalQuestions:  3,
		TotalMarks:      3,
		NegativeMark:    0.25,
		DurationMinutes: 10,
		Active:          true,
	}
	bank.mockQuestions["mock-1"] = mockQuestions

	attempts := newFakeAttemptStore(bank)
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	var seq int
	svc, err := NewService(bank, attempts, DefaultConfig(), nil,
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("att-%d", seq)
		}),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return serviceFixture{svc: svc, bank: bank, attempts: attempts, clock: clock}
}

func TestServiceStartPractice(t *testing.T) {
	fx := newServiceFixture(t)

	started, err := fx.svc.StartPractice(context.Background(), "user-1", LevelEasy)
	if err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	if started.Attempt.ID != "att-1" || started.Attempt.Status != StatusInProgress {
		t.Fatalf("unexpected attempt: %+v", started.Attempt)
	}
	if started.Attempt.DurationSeconds != 600 || started.Attempt.TotalQuestions != 25 {
		t.Fatalf("unexpected budget: %+v", started.Attempt)
	}
	if started.Attempt.Level != LevelEasy || started.Attempt.MockTestID != "" {
		t.Fatalf("practice attempt should carry level only: %+v", started.Attempt)
	}
	if len(started.Questions) != 25 || len(fx.attempts.slots["att-1"]) != 25 {
		t.Fatalf("expected 25 questions and slots, got %d and %d", len(started.Questions), len(fx.attempts.slots["att-1"]))
	}
}

func TestServiceStartRejectsBadInput(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.StartPractice(ctx, " ", LevelEasy); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if _, err := fx.svc.StartPractice(ctx, "user-1", Level("insane")); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
	if _, err := fx.svc.StartMock(ctx, "user-1", "nope"); !errors.Is(err, ErrMockTestNotFound) {
		t.Fatalf("expected ErrMockTestNotFound, got %v", err)
	}
	if len(fx.attempts.attempts) != 0 {
		t.Fatalf("failed starts must not persist attempts")
	}
}

func TestServiceStartPropagatesStoreFailure(t *testing.T) {
	fx := newServiceFixture(t)
	fx.attempts.createErr = errors.New("disk full")

	if _, err := fx.svc.StartPractice(context.Background(), "user-1", LevelMixed); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestServiceMockSubmitAndReview(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}
	if started.MockTest == nil || started.Attempt.DurationSeconds != 600 || started.Attempt.Kind != KindMock {
		t.Fatalf("unexpected mock start: %+v", started)
	}
	if started.Questions[0].QuestionID != "mock-q1" {
		t.Fatalf("mock order not preserved: %s", started.Questions[0].QuestionID)
	}

	fx.clock.Advance(3*time.Minute + 30*time.Second)
	result, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, []SubmittedAnswer{
		{QuestionID: "mock-q1", SelectedOption: "a"},
		{QuestionID: "mock-q2", SelectedOption: "B"},
		{QuestionID: "not-in-attempt", SelectedOption: "C"},
	}, []string{"tab hidden"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got := result.Attempt
	if got.Status != StatusSubmitted || got.Result == nil {
		t.Fatalf("unexpected submitted attempt: %+v", got)
	}
	want := Aggregates{
		CorrectCount:     1,
		IncorrectCount:   1,
		UnattemptedCount: 1,
		NegativeMarks:    0.25,
		FinalScore:       0.75,
		AccuracyPercent:  33.33,
		TimeTakenSeconds: 210,
	}
	if *got.Result != want {
		t.Fatalf("aggregates = %+v, want %+v", *got.Result, want)
	}
	if got.ProctorFlags != 1 || len(result.Breakdown) != 3 {
		t.Fatalf("unexpected flags/breakdown: %d %d", got.ProctorFlags, len(result.Breakdown))
	}

	review, err := fx.svc.Review(ctx, "user-1", started.Attempt.ID)
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if len(review.Questions) != 3 {
		t.Fatalf("expected 3 review rows, got %d", len(review.Questions))
	}
	first, third := review.Questions[0], review.Questions[2]
	if first.Outcome != OutcomeCorrect || first.CorrectOption != OptionA || first.Explanation == "" {
		t.Fatalf("unexpected first review row: %+v", first)
	}
	if third.Outcome != OutcomeUnattempted || third.SelectedOption != "" || third.CorrectOption != OptionC {
		t.Fatalf("unexpected third review row: %+v", third)
	}
}

func TestServiceSubmitTwiceIsRejected(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}
	first, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, []SubmittedAnswer{{QuestionID: "mock-q1", SelectedOption: "A"}}, nil)
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	_, err = fx.svc.Submit(ctx, "user-1", started.Attempt.ID, []SubmittedAnswer{
		{QuestionID: "mock-q1", SelectedOption: "A"},
		{QuestionID: "mock-q2", SelectedOption: "D"},
		{QuestionID: "mock-q3", SelectedOption: "C"},
	}, nil)
	if !errors.Is(err, ErrAttemptNotInProgress) {
		t.Fatalf("expected ErrAttemptNotInProgress, got %v", err)
	}

	stored, err := fx.attempts.FindAttempt(ctx, started.Attempt.ID, "user-1")
	if err != nil {
		t.Fatalf("FindAttempt failed: %v", err)
	}
	if stored.Result.FinalScore != first.Attempt.Result.FinalScore || stored.Result.CorrectCount != 1 {
		t.Fatalf("second submit altered stored result: %+v", stored.Result)
	}
}

func TestServiceConcurrentSubmitsHaveOneWinner(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for idx := 0; idx < callers; idx++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, nil, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAttemptNotInProgress):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d and %d", callers-1, wins, conflicts)
	}
}

func TestServiceLateSubmitIsAutoSubmitted(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartPractice(ctx, "user-1", LevelMixed)
	if err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	fx.clock.Advance(10*time.Minute + time.Second)

	result, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, nil, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Attempt.Status != StatusAutoSubmitted {
		t.Fatalf("expected auto_submitted, got %s", result.Attempt.Status)
	}
	if result.Attempt.Result.TimeTakenSeconds != 600 {
		t.Fatalf("time taken should clamp to 600, got %d", result.Attempt.Result.TimeTakenSeconds)
	}
}

func TestServiceSubmitValidation(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}

	if _, err := fx.svc.Submit(ctx, "user-2", started.Attempt.ID, nil, nil); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected cross-user submit to look like not found, got %v", err)
	}
	if _, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, []SubmittedAnswer{{QuestionID: "mock-q1", SelectedOption: "E"}}, nil); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if fx.attempts.finalizeCalls != 1 {
		t.Fatalf("invalid options must be rejected before touching the store, got %d finalize calls", fx.attempts.finalizeCalls)
	}

	result, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, []SubmittedAnswer{
		{QuestionID: "mock-q1", SelectedOption: "B"},
		{QuestionID: "mock-q1", SelectedOption: "A"},
	}, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Attempt.Result.CorrectCount != 1 || result.Attempt.Result.IncorrectCount != 0 {
		t.Fatalf("duplicate answers should collapse to the last value: %+v", result.Attempt.Result)
	}
}

func TestServiceReportViolation(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}
	fx.clock.Advance(time.Minute)

	result, err := fx.svc.ReportViolation(ctx, "user-1", started.Attempt.ID, "  ", nil)
	if err != nil {
		t.Fatalf("ReportViolation failed: %v", err)
	}
	got := result.Attempt
	if got.Status != StatusFailedDueToViolation {
		t.Fatalf("expected failed_due_to_violation, got %s", got.Status)
	}
	if got.Result.FinalScore != 0 || got.Result.CorrectCount != 0 || got.Result.UnattemptedCount != 3 {
		t.Fatalf("violation must zero the score: %+v", got.Result)
	}
	if got.ProctorFlags != 1 || got.ViolationReason != "Exam rule violation" {
		t.Fatalf("unexpected flags/reason: %d %q", got.ProctorFlags, got.ViolationReason)
	}
	if len(result.Breakdown) != 0 {
		t.Fatalf("violation must not return a breakdown")
	}

	if _, err := fx.svc.Review(ctx, "user-1", started.Attempt.ID); !errors.Is(err, ErrReviewForbidden) {
		t.Fatalf("expected ErrReviewForbidden, got %v", err)
	}
	if _, err := fx.svc.Submit(ctx, "user-1", started.Attempt.ID, nil, nil); !errors.Is(err, ErrAttemptNotInProgress) {
		t.Fatalf("expected ErrAttemptNotInProgress after violation, got %v", err)
	}
}

func TestServiceReportViolationCountsEvents(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}
	result, err := fx.svc.ReportViolation(ctx, "user-1", started.Attempt.ID, "Left fullscreen", []string{"fullscreen exit", "tab hidden", " "})
	if err != nil {
		t.Fatalf("ReportViolation failed: %v", err)
	}
	if result.Attempt.ProctorFlags != 2 || result.Attempt.ViolationReason != "Left fullscreen" {
		t.Fatalf("unexpected violation record: %+v", result.Attempt)
	}
}

func TestServiceReviewStates(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	started, err := fx.svc.StartPractice(ctx, "user-1", LevelHard)
	if err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	if _, err := fx.svc.Review(ctx, "user-1", started.Attempt.ID); !errors.Is(err, ErrReviewNotYetAvailable) {
		t.Fatalf("expected ErrReviewNotYetAvailable, got %v", err)
	}
	if _, err := fx.svc.Review(ctx, "user-2", started.Attempt.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound for other user, got %v", err)
	}
	if _, err := fx.svc.Review(ctx, "user-1", "missing"); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestServiceListAttemptsNewestFirst(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.StartPractice(ctx, "user-1", LevelEasy); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	fx.clock.Advance(time.Hour)
	if _, err := fx.svc.StartMock(ctx, "user-1", "mock-1"); err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}
	if _, err := fx.svc.StartMock(ctx, "user-2", "mock-1"); err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}

	attempts, err := fx.svc.ListAttempts(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Kind != KindMock {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
}

func TestServiceListMockTestsIsCached(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	for idx := 0; idx < 3; idx++ {
		mockTests, err := fx.svc.ListMockTests(ctx)
		if err != nil {
			t.Fatalf("ListMockTests failed: %v", err)
		}
		if len(mockTests) != 1 || mockTests[0].Title != "Aptitude Mock 1" {
			t.Fatalf("unexpected mock tests: %+v", mockTests)
		}
	}
	if fx.bank.listCalls != 1 {
		t.Fatalf("expected one bank read, got %d", fx.bank.listCalls)
	}
}

func TestMemoryCatalogCacheExpires(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewMemoryCatalogCache(time.Minute)
	cache.now = clock.Now
	ctx := context.Background()

	if _, ok := cache.GetMockTests(ctx); ok {
		t.Fatalf("empty cache should miss")
	}
	cache.SetMockTests(ctx, []MockTest{{ID: "m1"}})
	if got, ok := cache.GetMockTests(ctx); !ok || len(got) != 1 {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}
	clock.Advance(time.Minute)
	if _, ok := cache.GetMockTests(ctx); ok {
		t.Fatalf("expected expiry after ttl")
	}

	cache.SetMockTests(ctx, []MockTest{{ID: "m1"}})
	cache.Invalidate(ctx)
	if _, ok := cache.GetMockTests(ctx); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}
