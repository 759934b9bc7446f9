package llm

import (
	"context"
	"sync"

	"bigfive-llm/internal/domain"
)

// MockRater permite tests sin llamar a un LLM real.
// Si Responses tiene entradas se consumen en orden; luego se repite Response.
type MockRater struct {
	Response   domain.RawResponse
	Responses  []domain.RawResponse
	Err        error
	Structured bool

	mu      sync.Mutex
	calls   int
	prompts []domain.Prompt
}

func (m *MockRater) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return domain.RawResponse{}, m.Err
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	return m.Response, nil
}

func (m *MockRater) SupportsStructuredOutput() bool { return m.Structured }

func (m *MockRater) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockRater) Prompts() []domain.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}
