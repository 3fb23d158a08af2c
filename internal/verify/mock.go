package verify

import "context"

// MockCall records one invocation received by a [MockHandler].
type MockCall struct {
	Kind   string
	Params map[string]any
	Env    ExecutionContext
}

// MockHandler implements [Handler] without reaching any real backend.
//
// Configure the verdict through the OK, Detail, and Err fields; every
// invocation is appended to Calls for assertions. The zero value fails
// every check with no detail.
type MockHandler struct {
	OK     bool
	Detail string
	Err    error

	// Calls records invocations in order.
	Calls []MockCall
}

// Invoke implements [Handler].
func (m *MockHandler) Invoke(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (bool, string, error) {
	m.Calls = append(m.Calls, MockCall{Kind: kind, Params: params, Env: env})
	return m.OK, m.Detail, m.Err
}
