package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"quiz-engine/internal/quiz"
)

const defaultNegativeMark = 0.25

// seedFile is the YAML layout accepted by the seed command.
//
//	topics:
//	  - name: Quantitative Aptitude
//	    questions:
//	      - id: qa-001
//	        difficulty: easy
//	        text: What is 15% of 200?
//	        options: ["20", "25", "30", "35"]
//	        correct: C
//	        explanation: 0.15 * 200 = 30.
//	mock_tests:
//	  - title: Aptitude Mock 1
//	    duration_minutes: 30
//	    questions: [qa-001]
type seedFile struct {
	Topics    []seedTopic    `yaml:"topics"`
	MockTests []seedMockTest `yaml:"mock_tests"`
}

type seedTopic struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Questions   []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	ID          string   `yaml:"id"`
	Difficulty  string   `yaml:"difficulty"`
	Text        string   `yaml:"text"`
	Options     []string `yaml:"options"`
	Correct     string   `yaml:"correct"`
	Explanation string   `yaml:"explanation"`
	Active      *bool    `yaml:"active"`
}

type seedMockTest struct {
	ID              string   `yaml:"id"`
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	DurationMinutes int      `yaml:"duration_minutes"`
	TotalMarks      float64  `yaml:"total_marks"`
	NegativeMark    *float64 `yaml:"negative_mark"`
	Active          *bool    `yaml:"active"`
	Questions       []string `yaml:"questions"`
}

type mockSeed struct {
	mockTest    quiz.MockTest
	questionIDs []string
}

type seedPlan struct {
	topics    []quiz.Topic
	questions []quiz.Question
	mockTests []mockSeed
}

func decodeSeedFile(r io.Reader) (seedFile, error) {
	var file seedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return seedFile{}, fmt.Errorf("seed file is empty")
		}
		return seedFile{}, fmt.Errorf("decode seed file: %w", err)
	}
	return file, nil
}

// plan validates the file and resolves ids. Mock tests may only reference
// questions with an explicit id in the same file.
func (f seedFile) plan() (seedPlan, error) {
	var plan seedPlan
	declared := make(map[string]bool)

	for _, topic := range f.Topics {
		name := strings.TrimSpace(topic.Name)
		if name == "" {
			return seedPlan{}, fmt.Errorf("topic name is required")
		}
		topicID := strings.TrimSpace(topic.ID)
		if topicID == "" {
			topicID = quiz.StableID("topic", name)
		}
		plan.topics = append(plan.topics, quiz.Topic{
			ID:          topicID,
			Name:        name,
			Description: strings.TrimSpace(topic.Description),
		})

		for idx, item := range topic.Questions {
			if len(item.Options) != 4 {
				return seedPlan{}, fmt.Errorf("topic %s question %d: %w: need exactly 4 options, got %d",
					name, idx+1, quiz.ErrInvalidQuestion, len(item.Options))
			}
			question, err := quiz.NewQuestion(
				item.ID,
				topicID,
				quiz.Difficulty(strings.ToLower(strings.TrimSpace(item.Difficulty))),
				item.Text,
				[4]string{item.Options[0], item.Options[1], item.Options[2], item.Options[3]},
				quiz.NormalizeOption(item.Correct),
				item.Explanation,
			)
			if err != nil {
				return seedPlan{}, fmt.Errorf("topic %s question %d: %w", name, idx+1, err)
			}
			if item.Active != nil {
				question.Active = *item.Active
			}
			if declared[question.QuestionID] {
				return seedPlan{}, fmt.Errorf("duplicate question id %s", question.QuestionID)
			}
			declared[question.QuestionID] = true
			plan.questions = append(plan.questions, question)
		}
	}

	for _, item := range f.MockTests {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			return seedPlan{}, fmt.Errorf("mock test title is required")
		}
		if item.DurationMinutes <= 0 {
			return seedPlan{}, fmt.Errorf("mock test %s: %w: duration_minutes must be positive", title, quiz.ErrInvalidMockTestSetup)
		}
		if len(item.Questions) == 0 {
			return seedPlan{}, fmt.Errorf("mock test %s: %w: no questions", title, quiz.ErrInvalidMockTestSetup)
		}
		for _, questionID := range item.Questions {
			if !declared[questionID] {
				return seedPlan{}, fmt.Errorf("mock test %s: %w: unknown question %s", title, quiz.ErrInvalidMockTestSetup, questionID)
			}
		}

		mockID := strings.TrimSpace(item.ID)
		if mockID == "" {
			mockID = quiz.StableID("mock", title)
		}
		negative := defaultNegativeMark
		if item.NegativeMark != nil {
			negative = *item.NegativeMark
		}
		totalMarks := item.TotalMarks
		if totalMarks <= 0 {
			totalMarks = float64(len(item.Questions))
		}
		active := true
		if item.Active != nil {
			active = *item.Active
		}

		plan.mockTests = append(plan.mockTests, mockSeed{
			mockTest: quiz.MockTest{
				ID:              mockID,
				Title:           title,
				Description:     strings.TrimSpace(item.Description),
				TotalQuestions:  len(item.Questions),
				TotalMarks:      totalMarks,
				NegativeMark:    negative,
				DurationMinutes: item.DurationMinutes,
				Active:          active,
			},
			questionIDs: item.Questions,
		})
	}

	return plan, nil
}
