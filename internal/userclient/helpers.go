package userclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"quiz-engine/internal/quiz"
)

type answerAction int

const (
	actionInvalid answerAction = iota
	actionAnswer
	actionSkip
	actionLeave
	actionClosed
)

// promptAnswer reads one line and classifies it. A-D answers, "s" skips and
// "leave" abandons the attempt.
func promptAnswer(reader *bufio.Reader, out io.Writer, remaining time.Duration) (answerAction, quiz.OptionKey) {
	fmt.Fprintf(out, "[%s left] Your answer (A-D, s to skip, leave to quit): ", formatRemaining(remaining))

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return actionClosed, ""
	}

	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "s", "skip":
		return actionSkip, ""
	case "leave":
		return actionLeave, ""
	}
	if key := quiz.NormalizeOption(input); key != "" {
		return actionAnswer, key
	}
	return actionInvalid, ""
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  mock-tests")
	fmt.Fprintln(out, "  attempts [limit]")
	fmt.Fprintln(out, "  practice <easy|medium|hard|mixed>")
	fmt.Fprintln(out, "  mock <mock_test_id>")
	fmt.Fprintln(out, "  review <attempt_id>")
	fmt.Fprintln(out, "  exit")
}

func printQuestion(out io.Writer, number, total int, question quiz.PublicQuestion) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Q%d/%d: %s\n\n", number, total, question.Text)
	for _, key := range []quiz.OptionKey{quiz.OptionA, quiz.OptionB, quiz.OptionC, quiz.OptionD} {
		fmt.Fprintf(out, "%s. %s\n", key, question.OptionText(key))
	}
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, summary attemptSummary) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Attempt %s (%s) status=%s\n", summary.AttemptID, describeKind(summary), summary.Status)
	if summary.ViolationReason != "" {
		fmt.Fprintf(out, "Violation: %s\n", summary.ViolationReason)
	}
	if summary.FinalScore == nil {
		return
	}
	fmt.Fprintf(out, "Score: %s  correct=%d incorrect=%d unattempted=%d negative=%s\n",
		formatScore(*summary.FinalScore),
		derefInt(summary.CorrectCount),
		derefInt(summary.IncorrectCount),
		derefInt(summary.UnattemptedCount),
		formatScore(derefFloat(summary.NegativeMarks)),
	)
	fmt.Fprintf(out, "Accuracy: %s%%  time taken: %ds of %ds  proctor flags: %d\n",
		formatScore(derefFloat(summary.AccuracyPercent)),
		derefInt(summary.TimeTakenSeconds),
		summary.DurationSeconds,
		summary.ProctorFlags,
	)
}

func printBreakdown(out io.Writer, results []quiz.QuestionResult) {
	for _, result := range results {
		selected := "-"
		if result.SelectedOption != "" {
			selected = string(result.SelectedOption)
		}
		fmt.Fprintf(out, "%d. [%s %s] %s\n", result.QuestionNo, result.Outcome, formatScore(result.MarksAwarded), result.QuestionText)
		fmt.Fprintf(out, "   yours: %s  correct: %s. %s\n", selected, result.CorrectOption, result.CorrectText)
		if result.Explanation != "" {
			fmt.Fprintf(out, "   %s\n", result.Explanation)
		}
	}
}

func describeKind(summary attemptSummary) string {
	switch {
	case summary.QuizType == quiz.KindMock && summary.MockTitle != "":
		return "mock: " + summary.MockTitle
	case summary.QuizType == quiz.KindMock:
		return "mock"
	case summary.Level != "":
		return "practice: " + string(summary.Level)
	}
	return string(summary.QuizType)
}

func parsePositiveLimit(args []string, index int, defaultValue int) (int, error) {
	if len(args) <= index {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(args[index])
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d/time.Minute), int(d%time.Minute/time.Second))
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func promptYesNo(reader *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return fmt.Errorf("quiz service unavailable at %s", serverURL)
	}
	return err
}
