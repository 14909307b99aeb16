package flow

import (
	"context"
	"sync"

	"github.com/openai/openai-go"

	"github.com/mindmirror/mindmirror/internal/models"
)

// mockGenAI is a controllable stand-in for the generation client.
type mockGenAI struct {
	mu          sync.Mutex
	response    string
	err         error
	userPrompts []string
}

func (m *mockGenAI) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userPrompts = append(m.userPrompts, userPrompt)
	return m.response, m.err
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.response, m.err
}

func (m *mockGenAI) prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.userPrompts))
	copy(out, m.userPrompts)
	return out
}

// mockMessenger records deliveries and signals pushes for timing-sensitive
// tests.
type mockMessenger struct {
	mu      sync.Mutex
	replies [][]string
	pushes  [][]string
	pushCh  chan []string
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{pushCh: make(chan []string, 8)}
}

func (m *mockMessenger) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (m *mockMessenger) Reply(ctx context.Context, replyToken string, messages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]string, len(messages))
	copy(batch, messages)
	m.replies = append(m.replies, batch)
	return nil
}

func (m *mockMessenger) Push(ctx context.Context, userID string, messages []string) error {
	m.mu.Lock()
	batch := make([]string, len(messages))
	copy(batch, messages)
	m.pushes = append(m.pushes, batch)
	m.mu.Unlock()
	m.pushCh <- batch
	return nil
}

func (m *mockMessenger) replyBatches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.replies))
	copy(out, m.replies)
	return out
}

func (m *mockMessenger) pushBatches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.pushes))
	copy(out, m.pushes)
	return out
}

// stubClassifier returns a fixed classification without touching the model.
type stubClassifier struct {
	result models.Classification
}

func (s *stubClassifier) Classify(ctx context.Context, text string) models.Classification {
	return s.result
}

// mockAnalyzer records detached analysis dispatches.
type mockAnalyzer struct {
	mu      sync.Mutex
	userIDs []string
	answers [][]string
	runCh   chan struct{}
}

func newMockAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{runCh: make(chan struct{}, 4)}
}

func (m *mockAnalyzer) Run(ctx context.Context, userID string, answers []string) {
	m.mu.Lock()
	m.userIDs = append(m.userIDs, userID)
	batch := make([]string, len(answers))
	copy(batch, answers)
	m.answers = append(m.answers, batch)
	m.mu.Unlock()
	m.runCh <- struct{}{}
}

func (m *mockAnalyzer) runs() ([]string, [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.userIDs))
	copy(ids, m.userIDs)
	ans := make([][]string, len(m.answers))
	copy(ans, m.answers)
	return ids, ans
}
