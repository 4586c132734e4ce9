// Package storetest holds behaviour checks every quiz.Store implementation
// must pass. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-engine/internal/quiz"
)

// Factory returns a fresh, empty store. It is called once per subtest.
type Factory func(t *testing.T) quiz.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("RandomQuestionsFiltersAndLimits", func(t *testing.T) { testRandomQuestions(t, newStore(t)) })
	t.Run("MockTestReads", func(t *testing.T) { testMockTestReads(t, newStore(t)) })
	t.Run("SeedMockTestRejectsCountMismatch", func(t *testing.T) { testSeedMockMismatch(t, newStore(t)) })
	t.Run("CreateAttemptWithSlots", func(t *testing.T) { testCreateAttempt(t, newStore(t)) })
	t.Run("CreateAttemptIsAllOrNothing", func(t *testing.T) { testCreateAttemptRollback(t, newStore(t)) })
	t.Run("FinalizeWritesResultAndSlots", func(t *testing.T) { testFinalize(t, newStore(t)) })
	t.Run("FinalizeOnlyOnce", func(t *testing.T) { testFinalizeOnce(t, newStore(t)) })
	t.Run("FinalizeFuncErrorWritesNothing", func(t *testing.T) { testFinalizeFuncError(t, newStore(t)) })
	t.Run("FindAttemptIsScopedToUser", func(t *testing.T) { testFindScoped(t, newStore(t)) })
	t.Run("ListAttemptsNewestFirst", func(t *testing.T) { testListAttempts(t, newStore(t)) })
	t.Run("ReseedLeavesUsedQuestionsAlone", func(t *testing.T) { testReseedUsed(t, newStore(t)) })
	t.Run("ServiceConcurrentSubmits", func(t *testing.T) { testServiceConcurrentSubmits(t, newStore(t)) })
}

const topicID = "topic-general"

func question(id string, difficulty quiz.Difficulty, correct quiz.OptionKey) quiz.Question {
	q, err := quiz.NewQuestion(id, topicID, difficulty, "Question "+id,
		[4]string{"alpha " + id, "bravo " + id, "charlie " + id, "delta " + id}, correct, "Because "+string(correct))
	if err != nil {
		panic(err)
	}
	return q
}

// SeedBank loads one topic, n questions per difficulty and a three-question
// mock test with id "mock-1" ordered q-hard-2, q-easy-1, q-medium-3.
func SeedBank(t *testing.T, store quiz.Store, perDifficulty int) {
	t.Helper()
	ctx := context.Background()

	if err := store.SeedTopics(ctx, []quiz.Topic{{ID: topicID, Name: "General"}}); err != nil {
		t.Fatalf("SeedTopics failed: %v", err)
	}

	var questions []quiz.Question
	for _, difficulty := range []quiz.Difficulty{quiz.DifficultyEasy, quiz.DifficultyMedium, quiz.DifficultyHard} {
		for idx := 1; idx <= perDifficulty; idx++ {
			questions = append(questions, question(fmt.Sprintf("q-%s-%d", difficulty, idx), difficulty, quiz.OptionA))
		}
	}
	inactive := question("q-inactive", quiz.DifficultyEasy, quiz.OptionB)
	inactive.Active = false
	questions = append(questions, inactive)

	if _, err := store.SeedQuestions(ctx, questions); err != nil {
		t.Fatalf("SeedQuestions failed: %v", err)
	}

	mockTest := quiz.MockTest{
		ID:              "mock-1",
		Title:           "Aptitude Mock 1",
		Description:     "three questions",
		TotalQuestions:  3,
		TotalMarks:      3,
		NegativeMark:    0.25,
		DurationMinutes: 10,
		Active:          true,
	}
	if err := store.SeedMockTest(ctx, mockTest, []string{"q-hard-2", "q-easy-1", "q-medium-3"}); err != nil {
		t.Fatalf("SeedMockTest failed: %v", err)
	}
}

func newAttempt(id, userID string, startedAt time.Time) quiz.Attempt {
	return quiz.Attempt{
		ID:              id,
		UserID:          userID,
		Kind:            quiz.KindMock,
		MockTestID:      "mock-1",
		StartedAt:       startedAt,
		CreatedAt:       startedAt,
		DurationSeconds: 600,
		Scheme:          quiz.MarkScheme{CorrectMark: 1, NegativeMark: 0.25},
		Status:          quiz.StatusInProgress,
	}
}

func testRandomQuestions(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 5)
	ctx := context.Background()

	easy, err := store.RandomQuestions(ctx, quiz.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("RandomQuestions failed: %v", err)
	}
	if len(easy) != 5 {
		t.Fatalf("expected 5 active easy questions, got %d", len(easy))
	}
	for _, q := range easy {
		if q.Difficulty != quiz.DifficultyEasy || !q.Active {
			t.Fatalf("unexpected question %+v", q)
		}
	}

	limited, err := store.RandomQuestions(ctx, quiz.DifficultyHard, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected 2 hard questions, got %d (%v)", len(limited), err)
	}

	rest, err := store.RandomQuestionsExcluding(ctx, []string{"q-easy-1", "q-easy-2"}, 100)
	if err != nil {
		t.Fatalf("RandomQuestionsExcluding failed: %v", err)
	}
	if len(rest) != 13 {
		t.Fatalf("expected 13 remaining active questions, got %d", len(rest))
	}
	for _, q := range rest {
		if q.QuestionID == "q-easy-1" || q.QuestionID == "q-easy-2" || q.QuestionID == "q-inactive" {
			t.Fatalf("excluded question %s returned", q.QuestionID)
		}
	}
}

func testMockTestReads(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	mockTest, err := store.GetMockTest(ctx, "mock-1")
	if err != nil {
		t.Fatalf("GetMockTest failed: %v", err)
	}
	if mockTest.Title != "Aptitude Mock 1" || mockTest.TotalQuestions != 3 || !mockTest.Active {
		t.Fatalf("unexpected mock test: %+v", mockTest)
	}
	if _, err := store.GetMockTest(ctx, "missing"); !errors.Is(err, quiz.ErrMockTestNotFound) {
		t.Fatalf("expected ErrMockTestNotFound, got %v", err)
	}

	ordered, err := store.MockQuestionsOrdered(ctx, "mock-1")
	if err != nil {
		t.Fatalf("MockQuestionsOrdered failed: %v", err)
	}
	want := []string{"q-hard-2", "q-easy-1", "q-medium-3"}
	if len(ordered) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(ordered))
	}
	for idx, id := range want {
		if ordered[idx].QuestionID != id {
			t.Fatalf("position %d = %s, want %s", idx+1, ordered[idx].QuestionID, id)
		}
	}

	listed, err := store.ListActiveMockTests(ctx)
	if err != nil {
		t.Fatalf("ListActiveMockTests failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "mock-1" {
		t.Fatalf("unexpected mock list: %+v", listed)
	}
}

func testSeedMockMismatch(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	err := store.SeedMockTest(context.Background(), quiz.MockTest{
		ID: "mock-bad", Title: "Bad", TotalQuestions: 5, TotalMarks: 5, DurationMinutes: 5, Active: true,
	}, []string{"q-easy-1"})
	if !errors.Is(err, quiz.ErrInvalidMockTestSetup) {
		t.Fatalf("expected ErrInvalidMockTestSetup, got %v", err)
	}
}

func testCreateAttempt(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()
	startedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-1", "user-1", startedAt), []string{"q-hard-2", "q-easy-1", "q-medium-3"})
	if err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}
	if created.TotalQuestions != 3 || created.Status != quiz.StatusInProgress {
		t.Fatalf("unexpected created attempt: %+v", created)
	}

	found, err := store.FindAttempt(ctx, "att-1", "user-1")
	if err != nil {
		t.Fatalf("FindAttempt failed: %v", err)
	}
	if !found.StartedAt.Equal(startedAt) || found.Result != nil || found.SubmittedAt != nil {
		t.Fatalf("unexpected stored attempt: %+v", found)
	}
	if found.MockTestID != "mock-1" || found.Scheme.NegativeMark != 0.25 {
		t.Fatalf("mock reference or scheme not stored: %+v", found)
	}
}

func testCreateAttemptRollback(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	_, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-dup", "user-1", time.Now()), []string{"q-easy-1", "q-easy-1"})
	if err == nil {
		t.Fatalf("expected duplicate question ids to fail")
	}
	if _, err := store.FindAttempt(ctx, "att-dup", "user-1"); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("expected no attempt after rollback, got %v", err)
	}
}

func finalizeAll(correct bool) quiz.FinalizeFunc {
	return func(attempt quiz.Attempt, keys []quiz.AnswerKey) (quiz.Finalization, error) {
		slots := make([]quiz.AnswerSlot, 0, len(keys))
		for _, key := range keys {
			ok := correct
			selected := key.CorrectOption
			marks := 1.0
			if !correct {
				selected = quiz.OptionD
				marks = -0.25
			}
			slots = append(slots, quiz.AnswerSlot{
				AttemptID:      attempt.ID,
				QuestionID:     key.QuestionID,
				Position:       key.Position,
				SelectedOption: selected,
				IsCorrect:      &ok,
				MarksAwarded:   marks,
			})
		}
		return quiz.Finalization{
			AttemptID:     attempt.ID,
			Status:        quiz.StatusSubmitted,
			SubmittedAt:   attempt.StartedAt.Add(time.Minute),
			Result:        quiz.Aggregates{CorrectCount: len(keys), FinalScore: float64(len(keys)), AccuracyPercent: 100, TimeTakenSeconds: 60},
			ProctorFlags:  1,
			ProctorEvents: []string{"tab hidden"},
			Slots:         slots,
		}, nil
	}
}

func testFinalize(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()
	startedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-1", "user-1", startedAt), []string{"q-hard-2", "q-easy-1", "q-medium-3"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}

	var seenKeys []quiz.AnswerKey
	_, err := store.FinalizeAttempt(ctx, "att-1", "user-1", func(attempt quiz.Attempt, keys []quiz.AnswerKey) (quiz.Finalization, error) {
		seenKeys = keys
		return finalizeAll(true)(attempt, keys)
	})
	if err != nil {
		t.Fatalf("FinalizeAttempt failed: %v", err)
	}
	if len(seenKeys) != 3 || seenKeys[0].QuestionID != "q-hard-2" || seenKeys[0].Position != 1 {
		t.Fatalf("answer keys not loaded in slot order: %+v", seenKeys)
	}
	if seenKeys[0].CorrectOption != quiz.OptionA || seenKeys[0].Explanation == "" {
		t.Fatalf("answer key incomplete: %+v", seenKeys[0])
	}

	found, err := store.FindAttempt(ctx, "att-1", "user-1")
	if err != nil {
		t.Fatalf("FindAttempt failed: %v", err)
	}
	if found.Status != quiz.StatusSubmitted || found.Result == nil || found.Result.FinalScore != 3 {
		t.Fatalf("unexpected finalized attempt: %+v", found)
	}
	if found.SubmittedAt == nil || !found.SubmittedAt.Equal(startedAt.Add(time.Minute)) {
		t.Fatalf("submitted_at not stored: %v", found.SubmittedAt)
	}
	if found.ProctorFlags != 1 || len(found.ProctorEvents) != 1 || found.ProctorEvents[0] != "tab hidden" {
		t.Fatalf("proctor data not stored: %d %v", found.ProctorFlags, found.ProctorEvents)
	}

	rows, err := store.ReviewRows(ctx, "att-1", "user-1")
	if err != nil {
		t.Fatalf("ReviewRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 review rows (no duplicate slots), got %d", len(rows))
	}
	for idx, row := range rows {
		if row.Position != idx+1 || row.SelectedOption != quiz.OptionA || row.IsCorrect == nil || !*row.IsCorrect || row.MarksAwarded != 1 {
			t.Fatalf("unexpected review row %d: %+v", idx, row)
		}
	}
	if _, err := store.ReviewRows(ctx, "att-1", "user-2"); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound for other user, got %v", err)
	}
}

func testFinalizeOnce(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-1", "user-1", time.Now()), []string{"q-easy-1", "q-easy-2"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}
	if _, err := store.FinalizeAttempt(ctx, "att-1", "user-1", finalizeAll(true)); err != nil {
		t.Fatalf("first FinalizeAttempt failed: %v", err)
	}

	// The callback ignores the loaded status; only the conditional write guards.
	_, err := store.FinalizeAttempt(ctx, "att-1", "user-1", finalizeAll(false))
	if !errors.Is(err, quiz.ErrAttemptNotInProgress) {
		t.Fatalf("expected ErrAttemptNotInProgress, got %v", err)
	}

	rows, err := store.ReviewRows(ctx, "att-1", "user-1")
	if err != nil {
		t.Fatalf("ReviewRows failed: %v", err)
	}
	for _, row := range rows {
		if row.IsCorrect == nil || !*row.IsCorrect {
			t.Fatalf("losing finalizer changed slot %s", row.QuestionID)
		}
	}
}

func testFinalizeFuncError(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-1", "user-1", time.Now()), []string{"q-easy-1"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}
	boom := errors.New("boom")
	_, err := store.FinalizeAttempt(ctx, "att-1", "user-1", func(quiz.Attempt, []quiz.AnswerKey) (quiz.Finalization, error) {
		return quiz.Finalization{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	found, err := store.FindAttempt(ctx, "att-1", "user-1")
	if err != nil {
		t.Fatalf("FindAttempt failed: %v", err)
	}
	if found.Status != quiz.StatusInProgress || found.Result != nil {
		t.Fatalf("attempt changed after failed finalize: %+v", found)
	}
}

func testFindScoped(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-1", "user-1", time.Now()), []string{"q-easy-1"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}
	if _, err := store.FindAttempt(ctx, "att-1", "user-2"); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if _, err := store.FinalizeAttempt(ctx, "att-1", "user-2", finalizeAll(true)); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound from FinalizeAttempt, got %v", err)
	}
}

func testListAttempts(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	practice := newAttempt("att-practice", "user-1", base)
	practice.Kind = quiz.KindPractice
	practice.MockTestID = ""
	practice.Level = quiz.LevelEasy
	if _, err := store.CreateAttemptWithSlots(ctx, practice, []string{"q-easy-1"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}
	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-mock", "user-1", base.Add(time.Hour)), []string{"q-easy-2"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}
	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-other", "user-2", base), []string{"q-easy-3"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}

	summaries, err := store.ListAttempts(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(summaries))
	}
	if summaries[0].ID != "att-mock" || summaries[0].MockTestTitle != "Aptitude Mock 1" {
		t.Fatalf("unexpected first summary: %+v", summaries[0])
	}
	if summaries[1].Level != quiz.LevelEasy || summaries[1].MockTestTitle != "" {
		t.Fatalf("unexpected practice summary: %+v", summaries[1])
	}
}

func testReseedUsed(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	if _, err := store.CreateAttemptWithSlots(ctx, newAttempt("att-1", "user-1", time.Now()), []string{"q-easy-1"}); err != nil {
		t.Fatalf("CreateAttemptWithSlots failed: %v", err)
	}

	used := question("q-easy-1", quiz.DifficultyEasy, quiz.OptionC)
	used.Text = "Edited text"
	fresh := question("q-easy-2", quiz.DifficultyEasy, quiz.OptionC)
	fresh.Text = "Edited text two"

	if _, err := store.SeedQuestions(ctx, []quiz.Question{used, fresh}); err != nil {
		t.Fatalf("SeedQuestions failed: %v", err)
	}

	if _, err := store.FinalizeAttempt(ctx, "att-1", "user-1", func(attempt quiz.Attempt, keys []quiz.AnswerKey) (quiz.Finalization, error) {
		if len(keys) != 1 || keys[0].Text != "Question q-easy-1" || keys[0].CorrectOption != quiz.OptionA {
			return quiz.Finalization{}, fmt.Errorf("used question was edited: %+v", keys)
		}
		return finalizeAll(true)(attempt, keys)
	}); err != nil {
		t.Fatalf("FinalizeAttempt failed: %v", err)
	}

	easy, err := store.RandomQuestions(ctx, quiz.DifficultyEasy, 10)
	if err != nil {
		t.Fatalf("RandomQuestions failed: %v", err)
	}
	for _, q := range easy {
		if q.QuestionID == "q-easy-2" && q.Text != "Edited text two" {
			t.Fatalf("unused question should be updated, got %q", q.Text)
		}
	}
}

func testServiceConcurrentSubmits(t *testing.T, store quiz.Store) {
	SeedBank(t, store, 3)
	ctx := context.Background()

	svc, err := quiz.NewService(store, store, quiz.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	started, err := svc.StartMock(ctx, "user-1", "mock-1")
	if err != nil {
		t.Fatalf("StartMock failed: %v", err)
	}

	const callers = 6
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
			_, err := svc.Submit(ctx, "user-1", started.Attempt.ID, []quiz.SubmittedAnswer{
				{QuestionID: "q-hard-2", SelectedOption: "A"},
			}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, quiz.ErrAttemptNotInProgress):
				conflicts++
			default:
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != callers-1 {
		t.Fatalf("expected exactly one winning submit, got %d wins and %d conflicts", wins, conflicts)
	}

	review, err := svc.Review(ctx, "user-1", started.Attempt.ID)
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if review.Attempt.Result.CorrectCount != 1 || len(review.Questions) != 3 {
		t.Fatalf("unexpected review: %+v", review.Attempt.Result)
	}
	if review.Questions[0].QuestionID != "q-hard-2" || review.Questions[0].Outcome != quiz.OutcomeCorrect {
		t.Fatalf("unexpected first review question: %+v", review.Questions[0])
	}
}
