package sandbox

import "sync"

// MockFunction is a trackable stand-in for a real function: every call is
// recorded, and its implementation can be swapped or cleared, the way the
// environment's moduleMocker.fn()/spyOn() values behave.
type MockFunction struct {
	mu       sync.Mutex
	calls    [][]any
	impl     func(args ...any) any
	original func(args ...any) any
	isSpy    bool
}

// Call records the invocation and, if an implementation is set, runs it.
func (m *MockFunction) Call(args ...any) any {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	impl := m.impl
	m.mu.Unlock()
	if impl != nil {
		return impl(args...)
	}
	return nil
}

// Calls returns a defensive copy of every recorded call's arguments.
func (m *MockFunction) Calls() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockFunction) reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// MockReturnValue makes every future call return v.
func (m *MockFunction) MockReturnValue(v any) *MockFunction {
	m.mu.Lock()
	m.impl = func(...any) any { return v }
	m.mu.Unlock()
	return m
}

// MockImplementation installs fn as the mock's behavior.
func (m *MockFunction) MockImplementation(fn func(args ...any) any) *MockFunction {
	m.mu.Lock()
	m.impl = fn
	m.mu.Unlock()
	return m
}

// ModuleMocker is the environment's mock metadata/factory facility:
// fn/spyOn/isMockFunction plus the three blanket reset operations the
// reflective control object delegates to it, and the
// getMetadata/generateFromMetadata pair the Automock Generator Adapter
// drives.
type ModuleMocker struct {
	mu    sync.Mutex
	mocks []*MockFunction
}

func NewModuleMocker() *ModuleMocker { return &ModuleMocker{} }

// Fn creates a new, call-tracking mock function with no implementation.
func (mm *ModuleMocker) Fn() *MockFunction {
	m := &MockFunction{}
	mm.track(m)
	return m
}

// SpyOn wraps an existing function so calls are recorded while the
// original behavior still runs, until the spy is reconfigured or restored.
func (mm *ModuleMocker) SpyOn(original func(args ...any) any) *MockFunction {
	m := &MockFunction{original: original, impl: original, isSpy: true}
	mm.track(m)
	return m
}

func (mm *ModuleMocker) track(m *MockFunction) {
	mm.mu.Lock()
	mm.mocks = append(mm.mocks, m)
	mm.mu.Unlock()
}

// IsMockFunction reports whether v is a tracked mock/spy.
func (mm *ModuleMocker) IsMockFunction(v any) bool {
	_, ok := v.(*MockFunction)
	return ok
}

func (mm *ModuleMocker) ClearAllMocks() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, m := range mm.mocks {
		m.reset()
	}
}

func (mm *ModuleMocker) ResetAllMocks() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, m := range mm.mocks {
		m.reset()
		m.impl = nil
	}
}

func (mm *ModuleMocker) RestoreAllMocks() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, m := range mm.mocks {
		if m.isSpy {
			m.impl = m.original
		}
	}
}

// Metadata is the structural snapshot GetMetadata produces over a real
// module's exports: functions become mock slots, everything else is
// captured by value. GenerateFromMetadata is its inverse.
type Metadata struct {
	Kind    string // "function", "object", "value"
	Members map[string]*Metadata
	Value   any
}

func (mm *ModuleMocker) GetMetadata(exports any) *Metadata {
	switch v := exports.(type) {
	case nil:
		return nil
	case func(args ...any) any:
		return &Metadata{Kind: "function"}
	case *MockFunction:
		return &Metadata{Kind: "function"}
	case map[string]any:
		members := make(map[string]*Metadata, len(v))
		for key, val := range v {
			members[key] = mm.GetMetadata(val)
		}
		return &Metadata{Kind: "object", Members: members}
	default:
		return &Metadata{Kind: "value", Value: exports}
	}
}

func (mm *ModuleMocker) GenerateFromMetadata(meta *Metadata) any {
	if meta == nil {
		return nil
	}
	switch meta.Kind {
	case "function":
		return mm.Fn()
	case "object":
		out := make(map[string]any, len(meta.Members))
		for key, member := range meta.Members {
			out[key] = mm.GenerateFromMetadata(member)
		}
		return out
	default:
		return meta.Value
	}
}
