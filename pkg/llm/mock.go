package llm

import "context"

// MockClient is a mock inference client for testing
type MockClient struct {
	CompleteFunc func(ctx context.Context, req CompleteRequest) (string, error)
	EmbedFunc    func(ctx context.Context, text string) ([]float32, error)
	HealthFunc   func(ctx context.Context) error
}

func (m *MockClient) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return `{"result": "mock"}`, nil
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	// Fixed-length zero vector keeps index adapters happy in tests
	return make([]float32, 768), nil
}

func (m *MockClient) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// NewMockClient creates a mock client with default behavior
func NewMockClient() *MockClient {
	return &MockClient{}
}
