// Package policy implements the resolution policy engine: the pure
// decision function over (caller path, requested name, explicit-mock map,
// transitive-mock map, unmock regex, automock flag, core-module table,
// virtual-mock table) that a require call consults before the registry
// layer is touched.
package policy

import (
	"regexp"
	"strings"

	"github.com/traitorjs/modrun/registry"
)

type (
	ModuleKey = registry.ModuleKey
	ModuleID  = registry.ModuleID
	Intent    = registry.Intent
)

const (
	IntentNormal       = registry.IntentNormal
	IntentInternalOnly = registry.IntentInternalOnly
	IntentForceReal    = registry.IntentForceReal
	IntentMockOnly     = registry.IntentMockOnly
)

// Resolver is the subset of the path resolver's contract the policy engine
// consumes. Defined here, next to its consumer, so a concrete resolver
// implementation need not import this package.
type Resolver interface {
	ModuleID(virtualMocks map[ModuleKey]struct{}, from, request string) ModuleID
	Resolve(from, request string) (ModuleKey, error)
	IsCoreModule(name string) bool
	GetModule(name string) (ModuleKey, bool)
	GetMockModule(from, name string) (ModuleKey, bool)
	ResolveStubModule(from, name string) (ModuleKey, bool)
}

// Kind is the outcome of resolve_kind.
type Kind int

const (
	KindReal Kind = iota
	KindManualMock
	KindAutoMock
	KindCore
)

// Decision is the tagged outcome of ResolveKind: exactly one of Path
// (Real/ManualMock), ID (AutoMock), or Name (Core) is meaningful,
// depending on Kind.
type Decision struct {
	Kind Kind
	Path ModuleKey
	ID   ModuleID
	Name string
}

// Engine owns all process-lifetime policy inputs for one runtime instance.
// It is never shared across runtimes; construction is its only lifecycle
// boundary (Hooks.ResetModules clears the registries, not this state).
type Engine struct {
	resolver Resolver

	explicitShouldMock         map[ModuleID]bool
	transitiveShouldMock       map[ModuleID]bool
	mockFactories              map[ModuleID]func() (any, error)
	virtualMocks               map[ModuleKey]struct{}
	unmockPatterns             *regexp.Regexp
	autoMock                   bool
	shouldMockCache            map[ModuleID]bool
	shouldUnmockTransitiveCache map[string]bool
	mockMetadataCache          map[ModuleKey]any
}

// New constructs an Engine. automock is the initial auto_mock value
// (config.automock); unmockPatterns may be nil.
func New(resolver Resolver, automock bool, unmockPatterns *regexp.Regexp) *Engine {
	return &Engine{
		resolver:                    resolver,
		explicitShouldMock:          map[ModuleID]bool{},
		transitiveShouldMock:        map[ModuleID]bool{},
		mockFactories:               map[ModuleID]func() (any, error){},
		virtualMocks:                map[ModuleKey]struct{}{},
		unmockPatterns:              unmockPatterns,
		autoMock:                    automock,
		shouldMockCache:             map[ModuleID]bool{},
		shouldUnmockTransitiveCache: map[string]bool{},
		mockMetadataCache:           map[ModuleKey]any{},
	}
}

// ModuleID delegates to the resolver, passing along the registered virtual
// mock names so a request matching one skips filesystem resolution
// entirely.
func (e *Engine) ModuleID(from, request string) ModuleID {
	return e.resolver.ModuleID(e.virtualMocks, from, request)
}

// ResolveKind is the decision function that picks a resolution kind for a
// require call. currentManualMock is the reentrancy guard (the path of the
// manual mock currently executing, if any) the executor threads through so
// a manual mock never re-dispatches to itself.
func (e *Engine) ResolveKind(from, request string, intent Intent, currentManualMock ModuleKey) (Decision, error) {
	id := e.ModuleID(from, request)

	if intent == IntentForceReal {
		path, err := e.resolver.Resolve(from, request)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Kind: KindReal, Path: path}, nil
	}

	if intent != IntentMockOnly {
		if e.resolver.IsCoreModule(request) {
			return Decision{Kind: KindCore, Name: request}, nil
		}

		manual, hasManual := e.resolver.GetMockModule(from, request)
		_, hasResource := e.resolver.GetModule(request)

		if intent == IntentNormal && !hasResource && hasManual &&
			manual != currentManualMock && e.explicitNotFalse(id) {
			return Decision{Kind: KindManualMock, Path: manual}, nil
		}
	}

	shouldMock, err := e.shouldMock(from, request, id)
	if err != nil {
		return Decision{}, err
	}
	if !shouldMock {
		path, rerr := e.resolver.Resolve(from, request)
		if rerr != nil {
			return Decision{}, rerr
		}
		return Decision{Kind: KindReal, Path: path}, nil
	}

	if manual, hasManual := e.resolver.GetMockModule(from, request); hasManual {
		if _, hasStub := e.resolver.ResolveStubModule(from, request); !hasStub {
			return Decision{Kind: KindManualMock, Path: manual}, nil
		}
	}
	return Decision{Kind: KindAutoMock, ID: id}, nil
}

// explicitNotFalse reports whether explicit_should_mock[id] is anything
// other than an explicit false (i.e. unset, or explicitly true).
func (e *Engine) explicitNotFalse(id ModuleID) bool {
	v, ok := e.explicitShouldMock[id]
	return !ok || v
}

// shouldMock decides whether request should resolve to a mock, consulting
// the explicit map first, then automock/unmock-pattern/transitive state.
func (e *Engine) shouldMock(from, request string, id ModuleID) (bool, error) {
	if v, ok := e.explicitShouldMock[id]; ok {
		return v, nil
	}
	if !e.autoMock || e.resolver.IsCoreModule(request) {
		return false, nil
	}
	cacheKey := from + "\x00" + id
	if e.shouldUnmockTransitiveCache[cacheKey] {
		return false, nil
	}
	if v, ok := e.shouldMockCache[id]; ok {
		return v, nil
	}

	result, err := e.computeShouldMock(from, request, id, cacheKey)
	if err != nil {
		return false, err
	}
	e.shouldMockCache[id] = result
	return result, nil
}

func (e *Engine) computeShouldMock(from, request string, id ModuleID, cacheKey string) (bool, error) {
	realPath, err := e.resolver.Resolve(from, request)
	if err != nil {
		// Resolution failed outright: fall through to manual-mock presence.
		_, hasManual := e.resolver.GetMockModule(from, request)
		return hasManual, nil
	}

	if e.unmockPatterns != nil && e.unmockPatterns.MatchString(realPath) {
		return false, nil
	}

	// "Current caller's module ID": the identity of the module at `from`
	// itself, derived the same way a request's ID is derived, with `from`
	// standing in as the request and no caller of its own.
	callerID := e.resolver.ModuleID(e.virtualMocks, "", from)

	callerTransitiveFalse := false
	if v, ok := e.transitiveShouldMock[callerID]; ok && !v {
		callerTransitiveFalse = true
	}

	underNodeModules := strings.Contains(from, "node_modules") && strings.Contains(realPath, "node_modules")
	callerExplicitFalse := false
	if v, ok := e.explicitShouldMock[callerID]; ok && !v {
		callerExplicitFalse = true
	}
	callerUnmockMatch := e.unmockPatterns != nil && e.unmockPatterns.MatchString(from)

	if callerTransitiveFalse || (underNodeModules && (callerUnmockMatch || callerExplicitFalse)) {
		e.transitiveShouldMock[id] = false
		e.shouldUnmockTransitiveCache[cacheKey] = true
		return false, nil
	}
	return true, nil
}

// --- Reflective control object mutators -------------------------------

func (e *Engine) AutoMockOff() { e.autoMock = false }
func (e *Engine) AutoMockOn()  { e.autoMock = true }

func (e *Engine) IsAutoMock() bool { return e.autoMock }

func (e *Engine) Unmock(id ModuleID) {
	e.explicitShouldMock[id] = false
	e.invalidate(id)
}

func (e *Engine) Mock(id ModuleID) {
	e.explicitShouldMock[id] = true
	e.invalidate(id)
}

func (e *Engine) DeepUnmock(id ModuleID) {
	e.explicitShouldMock[id] = false
	e.transitiveShouldMock[id] = false
	e.invalidate(id)
}

// SetTransitiveUnmockForSetup marks id as transitively unmocked without
// touching explicit_should_mock — used by Runtime.RequireSetupFile to keep
// what a setup file requires real.
func (e *Engine) SetTransitiveUnmockForSetup(id ModuleID) {
	e.transitiveShouldMock[id] = false
	e.invalidate(id)
}

func (e *Engine) SetMockFactory(id ModuleID, factory func() (any, error)) {
	e.mockFactories[id] = factory
	e.explicitShouldMock[id] = true
	e.invalidate(id)
}

func (e *Engine) MockFactory(id ModuleID) (func() (any, error), bool) {
	f, ok := e.mockFactories[id]
	return f, ok
}

// AddVirtualMock registers request as a virtual mock name: ModuleID, when
// later asked about the same request string, skips filesystem resolution
// entirely and synthesizes the request-keyed ID directly.
func (e *Engine) AddVirtualMock(request string) { e.virtualMocks[request] = struct{}{} }

func (e *Engine) ExplicitShouldMock(id ModuleID) (bool, bool) {
	v, ok := e.explicitShouldMock[id]
	return v, ok
}

// invalidate drops memoized results for id: its own should-mock memo, and
// every should-unmock-transitive entry computed for it as a callee.
func (e *Engine) invalidate(id ModuleID) {
	delete(e.shouldMockCache, id)
	suffix := "\x00" + id
	for key := range e.shouldUnmockTransitiveCache {
		if strings.HasSuffix(key, suffix) {
			delete(e.shouldUnmockTransitiveCache, key)
		}
	}
}

// MockMetadataCache returns the cached metadata for path, if any. It is
// shared across regenerations within a module's lifetime.
func (e *Engine) MockMetadataCache(path ModuleKey) (any, bool) {
	v, ok := e.mockMetadataCache[path]
	return v, ok
}

func (e *Engine) SetMockMetadataCache(path ModuleKey, metadata any) {
	e.mockMetadataCache[path] = metadata
}
