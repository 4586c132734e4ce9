package quiz

import (
	"errors"
	"fmt"
	"html"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-engine/internal/opentdb"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// OptionKey is the tag of one of the four answer options.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

var optionKeys = [4]OptionKey{OptionA, OptionB, OptionC, OptionD}

func (k OptionKey) Valid() bool {
	switch k {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// NormalizeOption trims and upper-cases a submitted letter. It returns "" when
// the input is not one of A-D.
func NormalizeOption(answer string) OptionKey {
	key := OptionKey(strings.ToUpper(strings.TrimSpace(answer)))
	if !key.Valid() {
		return ""
	}
	return key
}

// PublicQuestion is the shape handed to a client while an attempt is live. It
// never carries the answer key or the explanation.
type PublicQuestion struct {
	QuestionID string     `json:"id"`
	Text       string     `json:"question_text"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	OptionA    string     `json:"option_a"`
	OptionB    string     `json:"option_b"`
	OptionC    string     `json:"option_c"`
	OptionD    string     `json:"option_d"`
}

func (q PublicQuestion) OptionText(key OptionKey) string {
	switch key {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	}
	return ""
}

type Question struct {
	PublicQuestion
	TopicID       string    `json:"-"`
	CorrectOption OptionKey `json:"-"`
	Explanation   string    `json:"-"`
	Active        bool      `json:"-"`
	CreatedAt     time.Time `json:"-"`
}

type Topic struct {
	ID          string
	Name        string
	Description string
}

// NewQuestion validates the required fields of a bank question. An empty id
// is derived from the question content so re-imports stay idempotent.
func NewQuestion(id, topicID string, difficulty Difficulty, text string, options [4]string, correct OptionKey, explanation string) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, fmt.Errorf("%w: question text is required", ErrInvalidQuestion)
	}
	if !difficulty.Valid() {
		return Question{}, fmt.Errorf("%w: difficulty %q", ErrInvalidQuestion, difficulty)
	}
	for idx, option := range options {
		if strings.TrimSpace(option) == "" {
			return Question{}, fmt.Errorf("%w: option %s is empty", ErrInvalidQuestion, optionKeys[idx])
		}
	}
	if !correct.Valid() {
		return Question{}, fmt.Errorf("%w: correct option %q", ErrInvalidQuestion, correct)
	}
	if strings.TrimSpace(explanation) == "" {
		return Question{}, fmt.Errorf("%w: explanation is required", ErrInvalidQuestion)
	}

	question := Question{
		PublicQuestion: PublicQuestion{
			QuestionID: strings.TrimSpace(id),
			Text:       text,
			Difficulty: difficulty,
			OptionA:    options[0],
			OptionB:    options[1],
			OptionC:    options[2],
			OptionD:    options[3],
		},
		TopicID:       topicID,
		CorrectOption: correct,
		Explanation:   strings.TrimSpace(explanation),
		Active:        true,
	}
	if question.QuestionID == "" {
		question.QuestionID = makeQuestionID(question)
	}
	return question, nil
}

func ToPublicQuestions(questions []Question) []PublicQuestion {
	public := make([]PublicQuestion, 0, len(questions))
	for _, question := range questions {
		public = append(public, question.PublicQuestion)
	}
	return public
}

// StableID derives a name-based UUID so seeded rows keep their ids across runs.
func StableID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+strings.TrimSpace(name))).String()
}

func makeQuestionID(question Question) string {
	var keyBuilder strings.Builder
	keyBuilder.WriteString(question.Text)
	for _, key := range optionKeys {
		keyBuilder.WriteString("|")
		keyBuilder.WriteString(question.OptionText(key))
	}
	return StableID("question", keyBuilder.String())
}

var errNotMultipleChoice = errors.New("not a four-option multiple choice question")

// BuildQuestions converts OpenTDB payloads into bank questions. Anything that is
// not a four-option multiple choice item is skipped.
func BuildQuestions(raw []opentdb.RawQuestion, topicID string) []Question {
	questions := make([]Question, 0, len(raw))
	for _, item := range raw {
		question, err := buildQuestion(item, topicID)
		if err != nil {
			continue
		}
		questions = append(questions, question)
	}
	return questions
}

func buildQuestion(raw opentdb.RawQuestion, topicID string) (Question, error) {
	if len(raw.IncorrectAnswers) != 3 {
		return Question{}, errNotMultipleChoice
	}

	type choice struct {
		text      string
		isCorrect bool
	}

	choices := make([]choice, 0, 4)
	for _, incorrect := range raw.IncorrectAnswers {
		choices = append(choices, choice{text: html.UnescapeString(incorrect)})
	}
	choices = append(choices, choice{text: html.UnescapeString(raw.CorrectAnswer), isCorrect: true})

	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	var (
		options [4]string
		correct OptionKey
	)
	for idx, candidate := range choices {
		options[idx] = candidate.text
		if candidate.isCorrect {
			correct = optionKeys[idx]
		}
	}

	explanation := "The correct answer is " + html.UnescapeString(raw.CorrectAnswer) + "."
	return NewQuestion("", topicID, Difficulty(strings.ToLower(raw.Difficulty)), html.UnescapeString(raw.Question), options, correct, explanation)
}
