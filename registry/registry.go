// Package registry implements the four-way module/mock registry layer
// described in the module runtime's data model: an internal registry that
// is never mocked and never reset, a real registry for user modules, an
// isolated-real/isolated-mock pair that exists only inside an isolation
// scope, and a mock registry keyed by module identifier rather than path.
package registry

import "errors"

// ModuleKey is the absolute, path-separator-normalized resolved file path.
// It is the key for the internal, real, and isolated-real registries.
type ModuleKey = string

// ModuleID is the resolver-derived opaque identifier used as the key for
// the mock registries and for every policy-input map. Two distinct
// requests may legitimately share a ModuleID (manual-mock aliasing).
type ModuleID = string

// Intent selects which resolution rule a require call is subject to.
type Intent int

const (
	// IntentNormal is the ordinary require() path: mocks are considered.
	IntentNormal Intent = iota
	// IntentInternalOnly loads framework-internal code; it is never mocked
	// and is stored in the internal registry.
	IntentInternalOnly
	// IntentForceReal bypasses all mock decisions (require.requireActual).
	IntentForceReal
	// IntentMockOnly resolves straight to the mock branch (require.requireMock).
	IntentMockOnly
)

// ErrNestedIsolation is returned by IsolateModules when an isolation scope
// is already active.
var ErrNestedIsolation = errors.New("registry: isolateModules called while already isolated")

// RequireSurface is the caller-bound require surface attached to a loaded
// ModuleRecord. The interface lives here, rather than in the package that
// implements it, so that ModuleRecord can reference it without creating an
// import cycle with the runtime package.
type RequireSurface interface {
	Call(request string) (any, error)
	RequireActual(request string) (any, error)
	RequireMock(request string) (any, error)
	Resolve(request string, paths []string) (ModuleKey, error)
	ResolvePaths(request string) ([]string, error)
	// Cache returns the require.cache view: a snapshot of every module
	// currently reachable via a normal require call, keyed by resolved
	// path. Declared as any, like Call/RequireActual/RequireMock, rather
	// than map[ModuleKey]*ModuleRecord, so a concrete implementation can
	// satisfy sandbox's matching optional interface without sandbox
	// importing this package.
	Cache() any
}

// ModuleRecord is the per-module bookkeeping record. It is pre-registered
// (Exports = an empty container, Loaded = false) before the module body is
// evaluated, so that a circular require resolves to the partially
// initialized record instead of recursing forever.
type ModuleRecord struct {
	ID       ModuleKey
	Filename ModuleKey
	Exports  any
	Loaded   bool
	Children []*ModuleRecord
	Require  RequireSurface
	Paths    []string

	callerKey  ModuleKey
	hasCaller  bool
}

// NewRecord pre-registers a record for filename with empty exports.
func NewRecord(filename ModuleKey) *ModuleRecord {
	return &ModuleRecord{
		ID:       filename,
		Filename: filename,
		Exports:  map[string]any{},
	}
}

// SetCaller records the key of the module that required this one, so that
// Parent can perform its on-demand, non-retaining lookup.
func (r *ModuleRecord) SetCaller(from ModuleKey, ok bool) {
	r.callerKey, r.hasCaller = from, ok
}

// Parent looks up, by caller key, the module that required r. It is
// computed on demand against the registries rather than stored as a back
// pointer, so a record never retains a cycle through its parent.
func (r *ModuleRecord) Parent(regs *Registries) *ModuleRecord {
	if !r.hasCaller || r.callerKey == "" {
		return nil
	}
	if p, ok := regs.Real.lookup(r.callerKey); ok && p != r {
		return p
	}
	if p, ok := regs.Internal.lookup(r.callerKey); ok && p != r {
		return p
	}
	if regs.IsolatedReal != nil {
		if p, ok := regs.IsolatedReal.lookup(r.callerKey); ok && p != r {
			return p
		}
	}
	return nil
}

// moduleMap is a small typed wrapper over map[ModuleKey]*ModuleRecord.
type moduleMap struct {
	entries map[ModuleKey]*ModuleRecord
}

func newModuleMap() *moduleMap {
	return &moduleMap{entries: make(map[ModuleKey]*ModuleRecord)}
}

func (m *moduleMap) lookup(key ModuleKey) (*ModuleRecord, bool) {
	rec, ok := m.entries[key]
	return rec, ok
}

func (m *moduleMap) has(key ModuleKey) bool {
	_, ok := m.entries[key]
	return ok
}

func (m *moduleMap) put(key ModuleKey, rec *ModuleRecord) {
	m.entries[key] = rec
}

func (m *moduleMap) delete(key ModuleKey) {
	delete(m.entries, key)
}

// Lookup, Has, Put and Delete are the exported forms of the methods above,
// for consumers outside this package (the runtime package's Loader and
// Require Surface) that hold a *moduleMap returned by Select.
func (m *moduleMap) Lookup(key ModuleKey) (*ModuleRecord, bool) { return m.lookup(key) }
func (m *moduleMap) Has(key ModuleKey) bool                     { return m.has(key) }
func (m *moduleMap) Put(key ModuleKey, rec *ModuleRecord)       { m.put(key, rec) }
func (m *moduleMap) Delete(key ModuleKey)                       { m.delete(key) }

// Keys returns the set of keys currently stored, for invariant checks such
// as "isolateModules leaves the outer registries untouched".
func (m *moduleMap) Keys() []ModuleKey {
	keys := make([]ModuleKey, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// mockMap is a small typed wrapper over map[ModuleID]any.
type mockMap struct {
	entries map[ModuleID]any
}

func newMockMap() *mockMap {
	return &mockMap{entries: make(map[ModuleID]any)}
}

func (m *mockMap) lookup(id ModuleID) (any, bool) {
	v, ok := m.entries[id]
	return v, ok
}

func (m *mockMap) put(id ModuleID, v any) {
	m.entries[id] = v
}

func (m *mockMap) delete(id ModuleID) {
	delete(m.entries, id)
}

// Lookup, Put and Delete are the exported forms above, for consumers
// outside this package holding a *mockMap returned by SelectMock.
func (m *mockMap) Lookup(id ModuleID) (any, bool) { return m.lookup(id) }
func (m *mockMap) Put(id ModuleID, v any)         { m.put(id, v) }
func (m *mockMap) Delete(id ModuleID)             { m.delete(id) }

func (m *mockMap) Keys() []ModuleID {
	keys := make([]ModuleID, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Registries holds the four (five, counting internal) coexisting module
// maps and implements the precedence and lifecycle rules from §4.2: at most
// one of {internal, real, isolated_real} ever holds a given ModuleKey, and
// at most one of {mock, isolated_mock} ever holds a given ModuleID.
type Registries struct {
	Internal     *moduleMap
	Real         *moduleMap
	IsolatedReal *moduleMap // nil outside an isolation scope
	Mock         *mockMap
	IsolatedMock *mockMap // nil outside an isolation scope
}

// NewThrowawayModules returns an empty module registry of the same kind
// Real/Internal/IsolatedReal use, for swap-and-restore scenarios outside
// this package — the Automock Generator Adapter's isolated frame (§4.7).
func NewThrowawayModules() *moduleMap { return newModuleMap() }

// NewThrowawayMocks is NewThrowawayModules' counterpart for mock registries.
func NewThrowawayMocks() *mockMap { return newMockMap() }

// New returns an empty Registries with no active isolation scope.
func New() *Registries {
	return &Registries{
		Internal: newModuleMap(),
		Real:     newModuleMap(),
		Mock:     newMockMap(),
	}
}

// Select returns the module registry a real-module load of key under
// intent should use (§4.2 select). It does not mutate anything.
func (r *Registries) Select(intent Intent, key ModuleKey) *moduleMap {
	if intent == IntentInternalOnly {
		return r.Internal
	}
	if r.Real.has(key) || r.IsolatedReal == nil {
		return r.Real
	}
	return r.IsolatedReal
}

// LookupModule returns the record for key from whichever module registry
// currently owns it (internal, real, or isolated-real), in that order.
func (r *Registries) LookupModule(key ModuleKey) (*ModuleRecord, bool) {
	if rec, ok := r.Internal.lookup(key); ok {
		return rec, true
	}
	if rec, ok := r.Real.lookup(key); ok {
		return rec, true
	}
	if r.IsolatedReal != nil {
		if rec, ok := r.IsolatedReal.lookup(key); ok {
			return rec, true
		}
	}
	return nil, false
}

// SelectMock returns the mock registry a mock lookup should consult,
// preferring the isolated mock registry when an isolation scope is active.
func (r *Registries) SelectMock() *mockMap {
	if r.IsolatedMock != nil {
		return r.IsolatedMock
	}
	return r.Mock
}

// PutMock stores exports for id in whichever mock registry SelectMock
// currently designates.
func (r *Registries) PutMock(id ModuleID, exports any) {
	r.SelectMock().put(id, exports)
}

// LookupMock returns cached mock exports for id, preferring the isolated
// mock registry.
func (r *Registries) LookupMock(id ModuleID) (any, bool) {
	if r.IsolatedMock != nil {
		if v, ok := r.IsolatedMock.lookup(id); ok {
			return v, true
		}
	}
	return r.Mock.lookup(id)
}

// Cache returns a snapshot of every module currently reachable via a
// normal require call, keyed by resolved path — the view require.cache
// exposes to user code, mirroring Node's Module._cache. The internal
// registry is excluded, the same way Node's cache never lists built-ins.
func (r *Registries) Cache() map[ModuleKey]*ModuleRecord {
	out := make(map[ModuleKey]*ModuleRecord, len(r.Real.entries))
	for k, v := range r.Real.entries {
		out[k] = v
	}
	if r.IsolatedReal != nil {
		for k, v := range r.IsolatedReal.entries {
			out[k] = v
		}
	}
	return out
}

// ResetModules discards any active isolation scope and clears the real and
// mock registries. The internal registry is never touched. Resetting the
// environment's own mocks and fake timers is the caller's responsibility
// (the registry layer has no notion of the environment) — see
// runtime.Hooks.ResetModules.
func (r *Registries) ResetModules() {
	r.IsolatedReal = nil
	r.IsolatedMock = nil
	r.Real = newModuleMap()
	r.Mock = newMockMap()
}

// IsolateModules runs fn with fresh, throwaway isolated-real/isolated-mock
// registries active, then unconditionally discards them — on normal
// return, on an error return, and on a panic propagating out of fn, since
// the teardown is a deferred call.
func (r *Registries) IsolateModules(fn func() error) error {
	if r.IsolatedReal != nil || r.IsolatedMock != nil {
		return ErrNestedIsolation
	}
	r.IsolatedReal = newModuleMap()
	r.IsolatedMock = newMockMap()
	defer func() {
		r.IsolatedReal = nil
		r.IsolatedMock = nil
	}()
	return fn()
}
