package wavetesting

import "sync"

// TestCallCounter counts method calls on test doubles that embed it.
type TestCallCounter struct {
	mu          sync.Mutex
	MethodCalls map[string]int
}

func (r *TestCallCounter) IncMethodCall(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MethodCalls == nil {
		r.MethodCalls = make(map[string]int)
	}
	r.MethodCalls[name]++
	return r.MethodCalls[name]
}

func (r *TestCallCounter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MethodCalls = make(map[string]int)
}

func (r *TestCallCounter) MethodCallCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.MethodCalls[name]
}
