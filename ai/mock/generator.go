package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/core"
)

// MockGenerator is a test double for ai.AnswerGenerator.
type MockGenerator struct {
	// CondenseQuestionFunc is called by CondenseQuestion if set.
	// If nil, the question is returned unchanged.
	CondenseQuestionFunc func(ctx context.Context, question string, history []core.Exchange) (string, error)

	// GenerateAnswerFunc is called by GenerateAnswer if set.
	// If nil, the answer echoes the question and the number of fragments.
	GenerateAnswerFunc func(ctx context.Context, question string, fragments []core.Fragment, history []core.Exchange) (*ai.Answer, error)

	mu          sync.Mutex
	callCount   int
	lastHistory []core.Exchange
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// CondenseQuestion returns the question unchanged unless overridden.
func (m *MockGenerator) CondenseQuestion(ctx context.Context, question string, history []core.Exchange) (string, error) {
	if m.CondenseQuestionFunc != nil {
		return m.CondenseQuestionFunc(ctx, question, history)
	}
	return question, nil
}

// GenerateAnswer produces a deterministic answer unless overridden.
func (m *MockGenerator) GenerateAnswer(ctx context.Context, question string, fragments []core.Fragment, history []core.Exchange) (*ai.Answer, error) {
	m.mu.Lock()
	m.callCount++
	m.lastHistory = append([]core.Exchange(nil), history...)
	m.mu.Unlock()

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, question, fragments, history)
	}
	return &ai.Answer{
		Text:    fmt.Sprintf("answer to %q from %d fragments", question, len(fragments)),
		Sources: fragments,
	}, nil
}

// CallCount returns the number of GenerateAnswer calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastHistory returns the history passed to the most recent GenerateAnswer call.
func (m *MockGenerator) LastHistory() []core.Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHistory
}
