package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type fakeBank struct {
	questions      []Question
	mockTests      map[string]MockTest
	mockQuestions  map[string][]Question
	listCalls      int
	randomCalls    int
	excludingCalls int
	mu             sync.Mutex
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		mockTests:     make(map[string]MockTest),
		mockQuestions: make(map[string][]Question),
	}
}

func (f *fakeBank) addQuestions(difficulty Difficulty, prefix string, n int) []Question {
	added := make([]Question, 0, n)
	for idx := 0; idx < n; idx++ {
		question := testQuestion(fmt.Sprintf("%s%d", prefix, idx+1), difficulty, OptionA)
		f.questions = append(f.questions, question)
		added = append(added, question)
	}
	return added
}

func (f *fakeBank) RandomQuestions(_ context.Context, difficulty Difficulty, limit int) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.randomCalls++

	out := make([]Question, 0, limit)
	for _, question := range f.questions {
		if len(out) == limit {
			break
		}
		if question.Active && question.Difficulty == difficulty {
			out = append(out, question)
		}
	}
	return out, nil
}

func (f *fakeBank) RandomQuestionsExcluding(_ context.Context, excludeIDs []string, limit int) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.excludingCalls++

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := make([]Question, 0, limit)
	for _, question := range f.questions {
		if len(out) == limit {
			break
		}
		if question.Active && !excluded[question.QuestionID] {
			out = append(out, question)
		}
	}
	return out, nil
}

func (f *fakeBank) GetMockTest(_ context.Context, mockTestID string) (MockTest, error) {
	mockTest, ok := f.mockTests[mockTestID]
	if !ok {
		return MockTest{}, ErrMockTestNotFound
	}
	return mockTest, nil
}

func (f *fakeBank) MockQuestionsOrdered(_ context.Context, mockTestID string) ([]Question, error) {
	return f.mockQuestions[mockTestID], nil
}

func (f *fakeBank) ListActiveMockTests(_ context.Context) ([]MockTest, error) {
	f.listCalls++
	out := make([]MockTest, 0, len(f.mockTests))
	for _, mockTest := range f.mockTests {
		if mockTest.Active {
			out = append(out, mockTest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeAttemptStore keeps attempts in memory and serializes FinalizeAttempt the
// way a transaction with a conditional status write would.
type fakeAttemptStore struct {
	mu       sync.Mutex
	bank     *fakeBank
	attempts map[string]Attempt
	slots    map[string][]AnswerSlot
	keys     map[string][]AnswerKey

	finalizeCalls int
	createErr     error
}

func newFakeAttemptStore(bank *fakeBank) *fakeAttemptStore {
	return &fakeAttemptStore{
		bank:     bank,
		attempts: make(map[string]Attempt),
		slots:    make(map[string][]AnswerSlot),
		keys:     make(map[string][]AnswerKey),
	}
}

func (f *fakeAttemptStore) CreateAttemptWithSlots(_ context.Context, attempt Attempt, questionIDs []string) (Attempt, error) {
	if f.createErr != nil {
		return Attempt{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	byID := make(map[string]Question, len(f.bank.questions))
	for _, question := range f.bank.questions {
		byID[question.QuestionID] = question
	}
	for _, questions := range f.bank.mockQuestions {
		for _, question := range questions {
			byID[question.QuestionID] = question
		}
	}

	slots := make([]AnswerSlot, 0, len(questionIDs))
	keys := make([]AnswerKey, 0, len(questionIDs))
	for idx, questionID := range questionIDs {
		question := byID[questionID]
		slots = append(slots, AnswerSlot{AttemptID: attempt.ID, QuestionID: questionID, Position: idx + 1})
		keys = append(keys, AnswerKey{
			PublicQuestion: question.PublicQuestion,
			Position:       idx + 1,
			CorrectOption:  question.CorrectOption,
			Explanation:    question.Explanation,
		})
	}
	f.attempts[attempt.ID] = attempt
	f.slots[attempt.ID] = slots
	f.keys[attempt.ID] = keys
	return attempt, nil
}

func (f *fakeAttemptStore) FindAttempt(_ context.Context, attemptID, userID string) (Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt, ok := f.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return Attempt{}, ErrAttemptNotFound
	}
	return attempt, nil
}

func (f *fakeAttemptStore) FinalizeAttempt(_ context.Context, attemptID, userID string, fn FinalizeFunc) (Finalization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls++

	attempt, ok := f.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return Finalization{}, ErrAttemptNotFound
	}
	fin, err := fn(attempt, f.keys[attemptID])
	if err != nil {
		return Finalization{}, err
	}
	if attempt.Status != StatusInProgress {
		return Finalization{}, ErrAttemptNotInProgress
	}

	submittedAt := fin.SubmittedAt
	result := fin.Result
	attempt.Status = fin.Status
	attempt.SubmittedAt = &submittedAt
	attempt.Result = &result
	attempt.ProctorFlags = fin.ProctorFlags
	attempt.ProctorEvents = fin.ProctorEvents
	attempt.ViolationReason = fin.ViolationReason
	f.attempts[attemptID] = attempt

	byQuestion := make(map[string]AnswerSlot, len(fin.Slots))
	for _, slot := range fin.Slots {
		byQuestion[slot.QuestionID] = slot
	}
	for idx, slot := range f.slots[attemptID] {
		if updated, ok := byQuestion[slot.QuestionID]; ok {
			f.slots[attemptID][idx] = updated
		}
	}
	return fin, nil
}

func (f *fakeAttemptStore) ListAttempts(_ context.Context, userID string) ([]AttemptSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AttemptSummary
	for _, attempt := range f.attempts {
		if attempt.UserID == userID {
			out = append(out, AttemptSummary{Attempt: attempt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (f *fakeAttemptStore) ReviewRows(_ context.Context, attemptID, userID string) ([]ReviewRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt, ok := f.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	rows := make([]ReviewRow, 0, len(f.keys[attemptID]))
	for idx, key := range f.keys[attemptID] {
		slot := f.slots[attemptID][idx]
		rows = append(rows, ReviewRow{
			AnswerKey:      key,
			SelectedOption: slot.SelectedOption,
			IsCorrect:      slot.IsCorrect,
			MarksAwarded:   slot.MarksAwarded,
		})
	}
	return rows, nil
}

func testQuestion(id string, difficulty Difficulty, correct OptionKey) Question {
	return Question{
		PublicQuestion: PublicQuestion{
			QuestionID: id,
			Text:       "Question " + id,
			Difficulty: difficulty,
			OptionA:    "alpha",
			OptionB:    "bravo",
			OptionC:    "charlie",
			OptionD:    "delta",
		},
		CorrectOption: correct,
		Explanation:   "Because " + string(correct),
		Active:        true,
	}
}
