package llm

import (
	"context"
	"slices"
	"sync"
)

// Mock is a scriptable Provider for tests. Responses are served per
// operation so a single mock can drive a whole pipeline run; set Err to make
// every call fail, or ErrFor to fail one operation only.
type Mock struct {
	mu sync.Mutex

	// Response is the default reply when no per-operation response is set.
	Response string
	// Responses maps operation to reply, taking precedence over Response.
	Responses map[string]string
	// Err fails every call when set.
	Err error
	// ErrFor fails calls for specific operations.
	ErrFor map[string]error

	calls []Request
}

// Name identifies the provider.
func (m *Mock) Name() string {
	return "mock"
}

// Generate serves the scripted response for the request's operation and
// records the call.
func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.ErrFor[req.Operation]; ok && err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if resp, ok := m.Responses[req.Operation]; ok {
		return resp, nil
	}
	return m.Response, nil
}

// Calls returns a copy of all recorded requests in call order.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallsFor returns the recorded requests for one operation.
func (m *Mock) CallsFor(operation string) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []Request
	for _, call := range m.calls {
		if call.Operation == operation {
			calls = append(calls, call)
		}
	}
	return calls
}
