package quiz

import (
	"math"
	"sort"
	"time"
)

type Outcome string

const (
	OutcomeCorrect     Outcome = "correct"
	OutcomeIncorrect   Outcome = "incorrect"
	OutcomeUnattempted Outcome = "unattempted"
)

// QuestionResult is the scored view of one question. It reveals the answer key
// and is only built once an attempt is over.
type QuestionResult struct {
	QuestionNo     int       `json:"question_no"`
	QuestionID     string    `json:"question_id"`
	QuestionText   string    `json:"question_text"`
	SelectedOption OptionKey `json:"selected_option,omitempty"`
	SelectedText   string    `json:"selected_text,omitempty"`
	CorrectOption  OptionKey `json:"correct_option"`
	CorrectText    string    `json:"correct_text"`
	Explanation    string    `json:"explanation"`
	Outcome        Outcome   `json:"outcome"`
	MarksAwarded   float64   `json:"marks_awarded"`
}

type ScoreResult struct {
	Aggregates
	Breakdown []QuestionResult
}

// Scorer is a pure function of its mark scheme and inputs.
type Scorer struct {
	scheme MarkScheme
}

func NewScorer(scheme MarkScheme) Scorer {
	return Scorer{scheme: scheme}
}

func (s Scorer) Score(keys []AnswerKey, answers map[string]OptionKey, durationSeconds int, startedAt, submittedAt time.Time) ScoreResult {
	ordered := make([]AnswerKey, len(keys))
	copy(ordered, keys)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	var (
		result        ScoreResult
		negativeMarks float64
	)
	result.Breakdown = make([]QuestionResult, 0, len(ordered))

	for idx, key := range ordered {
		item := QuestionResult{
			QuestionNo:    idx + 1,
			QuestionID:    key.QuestionID,
			QuestionText:  key.Text,
			CorrectOption: key.CorrectOption,
			CorrectText:   key.OptionText(key.CorrectOption),
			Explanation:   key.Explanation,
		}
		if key.Position > 0 {
			item.QuestionNo = key.Position
		}

		selected, answered := answers[key.QuestionID]
		switch {
		case !answered || selected == "":
			item.Outcome = OutcomeUnattempted
			result.UnattemptedCount++
		case selected == key.CorrectOption:
			item.Outcome = OutcomeCorrect
			item.MarksAwarded = round2(s.scheme.CorrectMark)
			result.CorrectCount++
		default:
			item.Outcome = OutcomeIncorrect
			item.MarksAwarded = -round2(s.scheme.NegativeMark)
			negativeMarks += s.scheme.NegativeMark
			result.IncorrectCount++
		}
		if answered && selected != "" {
			item.SelectedOption = selected
			item.SelectedText = key.OptionText(selected)
		}
		result.Breakdown = append(result.Breakdown, item)
	}

	total := len(ordered)
	result.NegativeMarks = round2(negativeMarks)
	result.FinalScore = round2(math.Max(0, float64(result.CorrectCount)*s.scheme.CorrectMark-negativeMarks))
	if total > 0 {
		result.AccuracyPercent = round2(100 * float64(result.CorrectCount) / float64(total))
	}
	result.TimeTakenSeconds = timeTaken(durationSeconds, startedAt, submittedAt)
	return result
}

// Slots converts the breakdown into the answer-slot rows written at submit.
func (r ScoreResult) Slots(attemptID string) []AnswerSlot {
	slots := make([]AnswerSlot, 0, len(r.Breakdown))
	for _, item := range r.Breakdown {
		isCorrect := item.Outcome == OutcomeCorrect
		slots = append(slots, AnswerSlot{
			AttemptID:      attemptID,
			QuestionID:     item.QuestionID,
			Position:       item.QuestionNo,
			SelectedOption: item.SelectedOption,
			IsCorrect:      &isCorrect,
			MarksAwarded:   item.MarksAwarded,
		})
	}
	return slots
}

// timeTaken clamps elapsed wall time to [0, durationSeconds].
func timeTaken(durationSeconds int, startedAt, submittedAt time.Time) int {
	elapsed := int(submittedAt.Sub(startedAt).Milliseconds() / 1000)
	if elapsed < 0 {
		return 0
	}
	if elapsed > durationSeconds {
		return durationSeconds
	}
	return elapsed
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
