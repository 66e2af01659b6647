package genai

import (
	"context"
	"fmt"
	"sync"
)

// MockOracle is a scripted Oracle for tests. Answers are queued per purpose;
// the last queued answer for a purpose keeps being returned once the queue
// drains to one entry.
type MockOracle struct {
	mu        sync.Mutex
	responses map[Purpose][]string
	errs      map[Purpose]error
	calls     []Request
}

var _ Oracle = (*MockOracle)(nil)

// NewMockOracle creates an empty MockOracle. Unscripted purposes fail.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		responses: make(map[Purpose][]string),
		errs:      make(map[Purpose]error),
	}
}

// On queues answers for a purpose.
func (m *MockOracle) On(purpose Purpose, answers ...string) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[purpose] = append(m.responses[purpose], answers...)
	return m
}

// Fail makes every call for purpose return err.
func (m *MockOracle) Fail(purpose Purpose, err error) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[purpose] = err
	return m
}

// Complete implements Oracle.
func (m *MockOracle) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.errs[req.Purpose]; ok {
		return "", err
	}
	queue := m.responses[req.Purpose]
	if len(queue) == 0 {
		return "", fmt.Errorf("mock oracle: no answer scripted for %s", req.Purpose)
	}
	answer := queue[0]
	if len(queue) > 1 {
		m.responses[req.Purpose] = queue[1:]
	}
	return answer, nil
}

// Calls returns a copy of every request received so far.
func (m *MockOracle) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the requests received for one purpose.
func (m *MockOracle) CallsFor(purpose Purpose) []Request {
	var out []Request
	for _, c := range m.Calls() {
		if c.Purpose == purpose {
			out = append(out, c)
		}
	}
	return out
}
