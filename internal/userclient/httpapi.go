package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-engine/internal/quiz"
)

var ErrServiceUnavailable = errors.New("quiz service unavailable")

type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type startedAttempt struct {
	AttemptID       string                `json:"attempt_id"`
	QuizType        quiz.Kind             `json:"quiz_type"`
	Level           quiz.Level            `json:"level"`
	MockTestID      string                `json:"mock_test_id"`
	MockTitle       string                `json:"mock_title"`
	DurationMinutes int                   `json:"duration_minutes"`
	DurationSeconds int                   `json:"duration_seconds"`
	StartedAt       time.Time             `json:"started_at"`
	ExpiresAt       time.Time             `json:"expires_at"`
	TotalQuestions  int                   `json:"total_questions"`
	Questions       []quiz.PublicQuestion `json:"questions"`
}

type attemptSummary struct {
	AttemptID        string      `json:"attempt_id"`
	QuizType         quiz.Kind   `json:"quiz_type"`
	MockTestID       string      `json:"mock_test_id"`
	MockTitle        string      `json:"mock_title"`
	Level            quiz.Level  `json:"level_selected"`
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
	ViolationReason  string      `json:"violation_reason"`
}

type outcome struct {
	Summary           attemptSummary        `json:"summary"`
	DetailedBreakdown []quiz.QuestionResult `json:"detailed_breakdown"`
}

type review struct {
	Summary            attemptSummary        `json:"summary"`
	QuestionWiseReview []quiz.QuestionResult `json:"question_wise_review"`
}

type submittedAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption string `json:"selected_option"`
}

type submitRequest struct {
	AttemptID     string            `json:"attempt_id"`
	Answers       []submittedAnswer `json:"answers"`
	ProctorEvents []string          `json:"proctor_events,omitempty"`
}

type violationRequest struct {
	AttemptID     string   `json:"attempt_id"`
	Reason        string   `json:"reason"`
	ProctorEvents []string `json:"proctor_events,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultServer
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

func (c *HTTPClient) StartPractice(ctx context.Context, level quiz.Level) (startedAttempt, error) {
	var payload startedAttempt
	body := map[string]string{"level": string(level)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/practice/start", body, &payload); err != nil {
		return startedAttempt{}, err
	}
	return payload, nil
}

func (c *HTTPClient) StartMock(ctx context.Context, mockTestID string) (startedAttempt, error) {
	if strings.TrimSpace(mockTestID) == "" {
		return startedAttempt{}, errors.New("mock_test_id is required")
	}
	var payload startedAttempt
	path := "/api/quiz/mock/" + url.PathEscape(mockTestID) + "/start"
	if err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &payload); err != nil {
		return startedAttempt{}, err
	}
	return payload, nil
}

func (c *HTTPClient) Submit(ctx context.Context, attemptID string, answers map[string]quiz.OptionKey, events []string) (outcome, error) {
	request := submitRequest{
		AttemptID:     attemptID,
		Answers:       make([]submittedAnswer, 0, len(answers)),
		ProctorEvents: events,
	}
	for questionID, option := range answers {
		request.Answers = append(request.Answers, submittedAnswer{
			QuestionID:     questionID,
			SelectedOption: string(option),
		})
	}

	var payload outcome
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/submit", request, &payload); err != nil {
		return outcome{}, err
	}
	return payload, nil
}

func (c *HTTPClient) ReportViolation(ctx context.Context, attemptID, reason string, events []string) (outcome, error) {
	request := violationRequest{
		AttemptID:     attemptID,
		Reason:        reason,
		ProctorEvents: events,
	}
	var payload outcome
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/violation", request, &payload); err != nil {
		return outcome{}, err
	}
	return payload, nil
}

func (c *HTTPClient) ListMockTests(ctx context.Context) ([]quiz.MockTest, error) {
	var payload struct {
		MockTests []quiz.MockTest `json:"mock_tests"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/mock-tests", nil, &payload); err != nil {
		return nil, err
	}
	return payload.MockTests, nil
}

func (c *HTTPClient) ListAttempts(ctx context.Context) ([]attemptSummary, error) {
	var payload struct {
		Attempts []attemptSummary `json:"attempts"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/attempts", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Attempts, nil
}

func (c *HTTPClient) Review(ctx context.Context, attemptID string) (review, error) {
	if strings.TrimSpace(attemptID) == "" {
		return review{}, errors.New("attempt_id is required")
	}
	var payload review
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/attempt/"+url.PathEscape(attemptID), nil, &payload); err != nil {
		return review{}, err
	}
	return payload, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = strings.TrimSpace(payload.Error.Message)
			apiErr.Code = payload.Error.Code
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
