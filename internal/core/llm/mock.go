package llm

import "context"

// MockClient is a configurable Client for tests.
type MockClient struct {
	SummarizeFunc func(ctx context.Context, req Request) (string, error)
	Requests      []Request
}

// Summarize records the request and delegates to SummarizeFunc.
func (m *MockClient) Summarize(ctx context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, req)
	}

	return "", nil
}
