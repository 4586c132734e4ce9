package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quiz-engine/internal/quiz"
	"quiz-engine/internal/quiz/sqlite"
	"quiz-engine/internal/quiz/storetest"
)

var testSecret = []byte("test-secret")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

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

type apiFixture struct {
	router *gin.Engine
	clock  *testClock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store, err := sqlite.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	storetest.SeedBank(t, store, 30)

	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	service, err := quiz.NewService(store, store, quiz.DefaultConfig(), nil, quiz.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return &apiFixture{
		router: NewRouter(service, nil, RouterConfig{JWTSecret: testSecret}),
		clock:  clock,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := IssueToken(testSecret, userID, time.Hour, time.Now())
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	payload := decode[errorResponse](t, rec)
	if payload.Error.Code != code {
		t.Fatalf("error code = %q, want %q", payload.Error.Code, code)
	}
}

func TestQuizRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/quiz/attempts", "", nil)
	expectError(t, rec, http.StatusUnauthorized, codeUnauthenticated)

	req := httptest.NewRequest(http.MethodGet, "/api/quiz/attempts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusUnauthorized, codeUnauthenticated)
}

func TestStartPracticeHidesAnswerKey(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/quiz/practice/start", "user-1", map[string]string{"level": "easy"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, "correct_option") || strings.Contains(body, "explanation") {
		t.Fatalf("start response leaks the answer key: %s", body)
	}

	payload := decode[startResponse](t, rec)
	if payload.QuizType != quiz.KindPractice || payload.Level != quiz.LevelEasy {
		t.Fatalf("unexpected start payload: %+v", payload)
	}
	if len(payload.Questions) != 25 || payload.TotalQuestions != 25 || payload.DurationMinutes != 10 {
		t.Fatalf("unexpected practice shape: %d questions, %d minutes", len(payload.Questions), payload.DurationMinutes)
	}
	if !payload.ExpiresAt.Equal(payload.StartedAt.Add(10 * time.Minute)) {
		t.Fatalf("expires_at = %v, started_at = %v", payload.ExpiresAt, payload.StartedAt)
	}
}

func TestStartPracticeRejectsUnknownLevel(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/quiz/practice/start", "user-1", map[string]string{"level": "expert"})
	expectError(t, rec, http.StatusBadRequest, codeInvalidRequest)
}

func TestStartMockUnknownIsNotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/quiz/mock/missing/start", "user-1", nil)
	expectError(t, rec, http.StatusNotFound, "mock_test_not_found")
}

func startMock(t *testing.T, f *apiFixture, userID string) startResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/quiz/mock/mock-1/start", userID, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start mock status = %d (body %s)", rec.Code, rec.Body.String())
	}
	return decode[startResponse](t, rec)
}

func TestSubmitThenReview(t *testing.T) {
	f := newAPIFixture(t)
	started := startMock(t, f, "user-1")
	if started.MockTitle != "Aptitude Mock 1" || len(started.Questions) != 3 {
		t.Fatalf("unexpected mock start: %+v", started)
	}
	if started.Questions[0].QuestionID != "q-hard-2" {
		t.Fatalf("mock order not kept: %s first", started.Questions[0].QuestionID)
	}

	// Review is not available while the attempt runs.
	rec := f.do(t, http.MethodGet, "/api/quiz/attempt/"+started.AttemptID, "user-1", nil)
	expectError(t, rec, http.StatusConflict, "review_not_yet_available")

	f.clock.Advance(3*time.Minute + 30*time.Second)
	rec = f.do(t, http.MethodPost, "/api/quiz/submit", "user-1", map[string]any{
		"attempt_id": started.AttemptID,
		"answers": []map[string]string{
			{"question_id": "q-hard-2", "selected_option": "A"},
			{"question_id": "q-easy-1", "selected_option": "B"},
		},
		"proctor_events": []string{"tab hidden"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d (body %s)", rec.Code, rec.Body.String())
	}
	outcome := decode[outcomeResponse](t, rec)
	summary := outcome.Summary
	if summary.Status != quiz.StatusSubmitted || summary.FinalScore == nil || *summary.FinalScore != 0.75 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if *summary.CorrectCount != 1 || *summary.IncorrectCount != 1 || *summary.UnattemptedCount != 1 {
		t.Fatalf("unexpected counts: %d/%d/%d", *summary.CorrectCount, *summary.IncorrectCount, *summary.UnattemptedCount)
	}
	if *summary.AccuracyPercent != 33.33 || *summary.TimeTakenSeconds != 210 || summary.ProctorFlags != 1 {
		t.Fatalf("unexpected accuracy/time/flags: %+v", summary)
	}
	if len(outcome.DetailedBreakdown) != 3 {
		t.Fatalf("expected 3 breakdown rows, got %d", len(outcome.DetailedBreakdown))
	}

	rec = f.do(t, http.MethodPost, "/api/quiz/submit", "user-1", map[string]any{"attempt_id": started.AttemptID})
	expectError(t, rec, http.StatusConflict, "attempt_not_in_progress")

	rec = f.do(t, http.MethodGet, "/api/quiz/attempt/"+started.AttemptID, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d (body %s)", rec.Code, rec.Body.String())
	}
	review := decode[reviewResponse](t, rec)
	if len(review.QuestionWiseReview) != 3 || review.QuestionWiseReview[0].QuestionNo != 1 {
		t.Fatalf("unexpected review: %+v", review.QuestionWiseReview)
	}
	if review.QuestionWiseReview[1].Outcome != quiz.OutcomeIncorrect || review.QuestionWiseReview[2].Outcome != quiz.OutcomeUnattempted {
		t.Fatalf("unexpected outcomes: %+v", review.QuestionWiseReview)
	}

	rec = f.do(t, http.MethodGet, "/api/quiz/attempt/"+started.AttemptID, "user-2", nil)
	expectError(t, rec, http.StatusNotFound, "attempt_not_found")
}

func TestLateSubmitIsAutoSubmitted(t *testing.T) {
	f := newAPIFixture(t)
	started := startMock(t, f, "user-1")

	f.clock.Advance(10*time.Minute + time.Second)
	rec := f.do(t, http.MethodPost, "/api/quiz/submit", "user-1", map[string]any{"attempt_id": started.AttemptID})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d (body %s)", rec.Code, rec.Body.String())
	}
	outcome := decode[outcomeResponse](t, rec)
	if outcome.Summary.Status != quiz.StatusAutoSubmitted || *outcome.Summary.TimeTakenSeconds != 600 {
		t.Fatalf("unexpected late summary: %+v", outcome.Summary)
	}
}

func TestViolationZeroesAndForbidsReview(t *testing.T) {
	f := newAPIFixture(t)
	started := startMock(t, f, "user-1")

	rec := f.do(t, http.MethodPost, "/api/quiz/violation", "user-1", map[string]any{
		"attempt_id": started.AttemptID,
		"reason":     "  left fullscreen  ",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("violation status = %d (body %s)", rec.Code, rec.Body.String())
	}
	outcome := decode[outcomeResponse](t, rec)
	summary := outcome.Summary
	if summary.Status != quiz.StatusFailedDueToViolation || *summary.FinalScore != 0 || *summary.UnattemptedCount != 3 {
		t.Fatalf("unexpected violation summary: %+v", summary)
	}
	if summary.ProctorFlags != 1 || summary.ViolationReason != "left fullscreen" {
		t.Fatalf("unexpected flags/reason: %d %q", summary.ProctorFlags, summary.ViolationReason)
	}
	if outcome.DetailedBreakdown == nil || len(outcome.DetailedBreakdown) != 0 {
		t.Fatalf("expected empty breakdown, got %+v", outcome.DetailedBreakdown)
	}

	rec = f.do(t, http.MethodGet, "/api/quiz/attempt/"+started.AttemptID, "user-1", nil)
	expectError(t, rec, http.StatusForbidden, "review_forbidden")
}

func TestPayloadValidation(t *testing.T) {
	f := newAPIFixture(t)
	attemptID := uuid.NewString()

	tests := []struct {
		name string
		path string
		body any
	}{
		{name: "submit without attempt", path: "/api/quiz/submit", body: map[string]any{}},
		{name: "submit non-uuid attempt", path: "/api/quiz/submit", body: map[string]any{"attempt_id": "abc"}},
		{name: "submit bad option", path: "/api/quiz/submit", body: map[string]any{
			"attempt_id": attemptID,
			"answers":    []map[string]string{{"question_id": "q-easy-1", "selected_option": "E"}},
		}},
		{name: "submit long event", path: "/api/quiz/submit", body: map[string]any{
			"attempt_id":     attemptID,
			"proctor_events": []string{strings.Repeat("x", 121)},
		}},
		{name: "violation short reason", path: "/api/quiz/violation", body: map[string]any{"attempt_id": attemptID, "reason": "no"}},
		{name: "violation padded reason", path: "/api/quiz/violation", body: map[string]any{"attempt_id": attemptID, "reason": " a  "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tc.path, "user-1", tc.body)
			expectError(t, rec, http.StatusBadRequest, codeInvalidRequest)
		})
	}

	rec := f.do(t, http.MethodGet, "/api/quiz/attempt/not-a-uuid", "user-1", nil)
	expectError(t, rec, http.StatusBadRequest, codeInvalidRequest)

	rec = f.do(t, http.MethodPost, "/api/quiz/submit", "user-1", map[string]any{"attempt_id": attemptID})
	expectError(t, rec, http.StatusNotFound, "attempt_not_found")
}

func TestListMockTestsAndAttempts(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/quiz/mock-tests", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mock-tests status = %d", rec.Code)
	}
	mockTests := decode[mockTestsResponse](t, rec)
	if len(mockTests.MockTests) != 1 || mockTests.MockTests[0].ID != "mock-1" || mockTests.MockTests[0].TotalMarks != 3 {
		t.Fatalf("unexpected mock tests: %+v", mockTests)
	}

	mock := startMock(t, f, "user-1")
	f.clock.Advance(time.Minute)
	rec = f.do(t, http.MethodPost, "/api/quiz/practice/start", "user-1", map[string]string{"level": "mixed"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("practice start status = %d", rec.Code)
	}
	practice := decode[startResponse](t, rec)

	rec = f.do(t, http.MethodGet, "/api/quiz/attempts", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("attempts status = %d", rec.Code)
	}
	attempts := decode[attemptsResponse](t, rec)
	if len(attempts.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts.Attempts))
	}
	if attempts.Attempts[0].ID != practice.AttemptID || attempts.Attempts[1].ID != mock.AttemptID {
		t.Fatalf("attempts not newest first: %+v", attempts.Attempts)
	}
	if attempts.Attempts[1].MockTestTitle != "Aptitude Mock 1" || attempts.Attempts[0].FinalScore != nil {
		t.Fatalf("unexpected summaries: %+v", attempts.Attempts)
	}

	rec = f.do(t, http.MethodGet, "/api/quiz/attempts", "user-2", nil)
	if other := decode[attemptsResponse](t, rec); len(other.Attempts) != 0 {
		t.Fatalf("attempts leaked across users: %+v", other.Attempts)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{quiz.ErrInvalidLevel, http.StatusBadRequest},
		{quiz.ErrInvalidOption, http.StatusBadRequest},
		{quiz.ErrMissingUser, http.StatusUnauthorized},
		{quiz.ErrReviewForbidden, http.StatusForbidden},
		{quiz.ErrAttemptNotFound, http.StatusNotFound},
		{quiz.ErrMockTestNotFound, http.StatusNotFound},
		{quiz.ErrAttemptNotInProgress, http.StatusConflict},
		{quiz.ErrReviewNotYetAvailable, http.StatusConflict},
		{quiz.ErrInvalidMockTestSetup, http.StatusUnprocessableEntity},
		{fmt.Errorf("select: %w", quiz.ErrInsufficientQuestionBank), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteServiceErrorHidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	writeServiceError(c, errors.New("pq: password authentication failed"))

	payload := decode[errorResponse](t, rec)
	if rec.Code != http.StatusInternalServerError || payload.Error.Code != codeInternal || payload.Error.Message != "request failed" {
		t.Fatalf("unexpected internal error payload: %d %+v", rec.Code, payload)
	}
}
