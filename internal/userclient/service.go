package userclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quiz-engine/internal/quiz"
)

const (
	defaultServer            = "http://127.0.0.1:8080"
	defaultListLimit         = 10
	defaultHTTPTimeout       = 5 * time.Second
	defaultMaxInvalidAnswers = 3
	leaveReason              = "Candidate left the exam"
)

type Config struct {
	Token             string
	ServerURL         string
	ListLimit         int
	MaxInvalidAnswers int
	HTTPTimeout       time.Duration
	// Now drives the on-screen timer. Defaults to time.Now.
	Now               func() time.Time
}

type session struct {
	client            *HTTPClient
	reader            *bufio.Reader
	out               io.Writer
	serverURL         string
	maxInvalidAnswers int
	now               func() time.Time
}

func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return errors.New("token is required")
	}

	serverURL := strings.TrimSpace(cfg.ServerURL)
	if serverURL == "" {
		serverURL = defaultServer
	}

	listLimit := cfg.ListLimit
	if listLimit <= 0 {
		listLimit = defaultListLimit
	}
	maxInvalidAnswers := cfg.MaxInvalidAnswers
	if maxInvalidAnswers <= 0 {
		maxInvalidAnswers = defaultMaxInvalidAnswers
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &session{
		client:            NewHTTPClient(serverURL, token, &http.Client{Timeout: timeout}),
		reader:            bufio.NewReader(in),
		out:               out,
		serverURL:         serverURL,
		maxInvalidAnswers: maxInvalidAnswers,
		now:               now,
	}

	fmt.Fprintf(out, "quiz-user-service\nserver=%s\n\n", serverURL)
	printHelp(out)

	for {
		fmt.Fprint(out, "\n> ")
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printHelp(out)
		case "exit":
			return nil
		case "mock-tests":
			s.report(s.runMockTests(ctx))
		case "attempts":
			limit, parseErr := parsePositiveLimit(args, 1, listLimit)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid attempts limit: %v\n", parseErr)
				continue
			}
			s.report(s.runAttempts(ctx, limit))
		case "practice":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: practice <easy|medium|hard|mixed>")
				continue
			}
			level, parseErr := quiz.ParseLevel(args[1])
			if parseErr != nil {
				fmt.Fprintln(out, "level must be one of easy, medium, hard, mixed")
				continue
			}
			started, startErr := s.client.StartPractice(ctx, level)
			if startErr != nil {
				s.report(startErr)
				continue
			}
			s.report(s.takeAttempt(ctx, started))
		case "mock":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: mock <mock_test_id>")
				continue
			}
			started, startErr := s.client.StartMock(ctx, args[1])
			if startErr != nil {
				s.report(startErr)
				continue
			}
			s.report(s.takeAttempt(ctx, started))
		case "review":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: review <attempt_id>")
				continue
			}
			s.report(s.runReview(ctx, args[1]))
		default:
			fmt.Fprintln(out, "unknown command. type 'help' for usage.")
		}
	}
}

func (s *session) report(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", describeClientError(err, s.serverURL))
	}
}

func (s *session) runMockTests(ctx context.Context) error {
	mockTests, err := s.client.ListMockTests(ctx)
	if err != nil {
		return err
	}
	if len(mockTests) == 0 {
		fmt.Fprintln(s.out, "No active mock tests.")
		return nil
	}

	fmt.Fprintln(s.out, "Mock tests:")
	for idx, item := range mockTests {
		fmt.Fprintf(s.out, "%d. %s  %s (%d questions, %d min, -%s per wrong answer)\n",
			idx+1,
			item.ID,
			item.Title,
			item.TotalQuestions,
			item.DurationMinutes,
			formatScore(item.NegativeMark),
		)
	}
	return nil
}

func (s *session) runAttempts(ctx context.Context, limit int) error {
	attempts, err := s.client.ListAttempts(ctx)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintln(s.out, "No attempts yet.")
		return nil
	}
	if len(attempts) > limit {
		attempts = attempts[:limit]
	}

	fmt.Fprintln(s.out, "Recent attempts:")
	for idx, item := range attempts {
		score := "-"
		if item.FinalScore != nil {
			score = formatScore(*item.FinalScore)
		}
		fmt.Fprintf(s.out, "%d. %s %s status=%s score=%s started=%s\n",
			idx+1,
			item.AttemptID,
			describeKind(item),
			item.Status,
			score,
			item.StartedAt.Format(time.RFC3339),
		)
	}
	return nil
}

func (s *session) runReview(ctx context.Context, attemptID string) error {
	payload, err := s.client.Review(ctx, attemptID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
			fmt.Fprintln(s.out, "Review is not available for attempts closed by a violation.")
			return nil
		}
		return err
	}
	printSummary(s.out, payload.Summary)
	fmt.Fprintln(s.out)
	printBreakdown(s.out, payload.QuestionWiseReview)
	return nil
}

// takeAttempt walks the questions against the attempt deadline and submits
// whatever was answered. Answers entered after the deadline are dropped; the
// server classifies the late submit as auto_submitted.
func (s *session) takeAttempt(ctx context.Context, started startedAttempt) error {
	fmt.Fprintf(s.out, "attempt_id=%s\n", started.AttemptID)
	fmt.Fprintf(s.out, "%d questions, %d minutes. Ends at %s.\n",
		len(started.Questions), started.DurationMinutes, started.ExpiresAt.Local().Format(time.Kitchen))

	answers := make(map[string]quiz.OptionKey, len(started.Questions))
	var events []string

questions:
	for idx, question := range started.Questions {
		if !s.now().Before(started.ExpiresAt) {
			fmt.Fprintln(s.out, "Time is up.")
			break
		}
		printQuestion(s.out, idx+1, len(started.Questions), question)

		invalidCount := 0
		for {
			action, key := promptAnswer(s.reader, s.out, started.ExpiresAt.Sub(s.now()))
			if action != actionLeave && !s.now().Before(started.ExpiresAt) {
				fmt.Fprintln(s.out, "Time is up. That answer was not recorded.")
				break questions
			}

			switch action {
			case actionAnswer:
				answers[question.QuestionID] = key
				continue questions
			case actionSkip:
				continue questions
			case actionClosed:
				events = append(events, fmt.Sprintf("input closed at question %d", idx+1))
				break questions
			case actionLeave:
				confirm, err := promptYesNo(s.reader, s.out, "Leaving ends the attempt with a violation and no score. Leave? (yes/no): ")
				if err != nil || !confirm {
					continue
				}
				return s.leave(ctx, started.AttemptID, events)
			default:
				invalidCount++
				if invalidCount >= s.maxInvalidAnswers {
					fmt.Fprintln(s.out, "Skipping question after multiple invalid responses.")
					continue questions
				}
				fmt.Fprintf(s.out, "Invalid input. Attempts remaining: %d\n", s.maxInvalidAnswers-invalidCount)
			}
		}
	}

	result, err := s.client.Submit(ctx, started.AttemptID, answers, events)
	if err != nil {
		return err
	}
	if result.Summary.Status == quiz.StatusAutoSubmitted {
		fmt.Fprintln(s.out, "Submitted after the time limit; the attempt was auto-submitted.")
	}
	printSummary(s.out, result.Summary)
	fmt.Fprintln(s.out)
	printBreakdown(s.out, result.DetailedBreakdown)
	return nil
}

func (s *session) leave(ctx context.Context, attemptID string, events []string) error {
	result, err := s.client.ReportViolation(ctx, attemptID, leaveReason, events)
	if err != nil {
		return err
	}
	printSummary(s.out, result.Summary)
	return nil
}
