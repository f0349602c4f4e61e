package engine

import (
	"context"
	"sync"
)

// MockEngine records run requests and returns a scripted result. Used by
// service tests to keep executions off the network.
type MockEngine struct {
	mu       sync.Mutex
	requests []RunRequest

	RunFunc func(ctx context.Context, req RunRequest) (RunResult, error)
}

func (m *MockEngine) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return RunResult{FinalOutput: "done"}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockEngine) Requests() []RunRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many times Run was invoked.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
