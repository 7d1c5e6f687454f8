package runtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/traitorjs/modrun/debugserver"
	"github.com/traitorjs/modrun/mockgen"
	"github.com/traitorjs/modrun/policy"
	"github.com/traitorjs/modrun/registry"
	"github.com/traitorjs/modrun/sandbox"
)

// ErrBadResolveArg is returned by require.resolve.paths for a null/empty
// request.
var ErrBadResolveArg = errors.New("runtime: require.resolve.paths called with an empty request")

// ErrNotFound is wrapped with caller/request/hint context on resolution
// failure.
var ErrNotFound = errors.New("runtime: module not found")

// requireSurface is the caller-bound Require Surface, attached to
// record.Require by the Executor. It implements registry.RequireSurface.
type requireSurface struct {
	rt     *Runtime
	record *registry.ModuleRecord
	intent Intent
}

func (rt *Runtime) newRequireSurface(record *registry.ModuleRecord, intent Intent) *requireSurface {
	return &requireSurface{rt: rt, record: record, intent: intent}
}

func (r *requireSurface) Call(request string) (any, error) {
	return r.rt.requireFrom(r.record.Filename, request, r.intent)
}

func (r *requireSurface) RequireActual(request string) (any, error) {
	return r.rt.requireFrom(r.record.Filename, request, IntentForceReal)
}

func (r *requireSurface) RequireMock(request string) (any, error) {
	return r.rt.requireFrom(r.record.Filename, request, IntentMockOnly)
}

func (r *requireSurface) Resolve(request string, paths []string) (ModuleKey, error) {
	return r.rt.resolveWithOptions(r.record.Filename, request, paths)
}

func (r *requireSurface) ResolvePaths(request string) ([]string, error) {
	return r.rt.resolvePaths(r.record.Filename, request)
}

// Main implements require.main: walk the parent chain to its terminal
// ancestor. Returns any, not *registry.ModuleRecord, so *requireSurface
// satisfies sandbox.RequireMainer without sandbox needing to import the
// registry package.
func (r *requireSurface) Main() any {
	return r.rt.requireMain(r.record)
}

// Cache implements require.cache: a snapshot of every module currently
// reachable via a normal require call. Returns any for the same reason
// Main does — so *requireSurface satisfies sandbox.RequireCacher without
// sandbox importing the registry package.
func (r *requireSurface) Cache() any {
	return r.rt.regs.Cache()
}

func (rt *Runtime) requireMain(record *registry.ModuleRecord) *registry.ModuleRecord {
	current := record
	for {
		parent := current.Parent(rt.regs)
		if parent == nil || parent.ID == current.ID {
			return current
		}
		current = parent
	}
}

// requireFrom is the single entry point every require variant funnels
// through: resolve_kind, select the registry, and on a miss pre-register
// and dispatch to the Loader.
func (rt *Runtime) requireFrom(from, request string, intent Intent) (any, error) {
	decision, err := rt.policy.ResolveKind(from, request, intent, rt.currentManualMockPath())
	if err != nil {
		return nil, rt.enrichNotFound(from, request, err)
	}

	switch decision.Kind {
	case policy.KindCore:
		return nil, fmt.Errorf("runtime: %q is a core module and has no Go-side implementation registered", decision.Name)
	case policy.KindReal, policy.KindManualMock:
		rt.publish(debugserver.Event{Kind: "require", From: from, Request: request, Result: decision.Path, At: time.Now()})
		return rt.requireViaRegistry(from, request, decision.Path, intent)
	case policy.KindAutoMock:
		rt.publish(debugserver.Event{Kind: "require", From: from, Request: request, Result: decision.ID, At: time.Now()})
		return rt.requireAutoMock(from, request, decision.ID)
	default:
		return nil, fmt.Errorf("runtime: unrecognized resolution kind for %q", request)
	}
}

// requireViaRegistry backs both UseReal and UseManualMock: both are a file
// on disk, keyed by absolute path in the module registries; only the path
// chosen by the policy engine differs.
func (rt *Runtime) requireViaRegistry(from, request string, path ModuleKey, intent Intent) (any, error) {
	slot := rt.regs.Select(intent, path)
	if rec, ok := slot.Lookup(path); ok {
		return rec.Exports, nil
	}

	rec := registry.NewRecord(path)
	slot.Put(path, rec)

	if err := rt.load(rec, from, request, path, intent); err != nil {
		return nil, err
	}
	return rec.Exports, nil
}

func (rt *Runtime) requireAutoMock(from, request string, id ModuleID) (any, error) {
	mockSlot := rt.regs.SelectMock()
	if v, ok := mockSlot.Lookup(id); ok {
		return v, nil
	}

	if factory, ok := rt.policy.MockFactory(id); ok {
		exports, err := factory()
		if err != nil {
			return nil, fmt.Errorf("runtime: mock factory for %q: %w", request, err)
		}
		mockSlot.Put(id, exports)
		return exports, nil
	}

	if manual, hasManual := rt.resolver.GetMockModule(from, request); hasManual {
		exports, err := rt.requireViaRegistry(from, request, manual, IntentNormal)
		if err != nil {
			return nil, err
		}
		mockSlot.Put(id, exports)
		return exports, nil
	}

	generator := rt.automockGenerator()
	exports, err := generator.Generate(from, request, id)
	if err != nil {
		return nil, err
	}
	mockSlot.Put(id, exports)
	return exports, nil
}

// automockGenerator wires a fresh mockgen.Generator against this Runtime's
// collaborators — cheap enough to build per call since it holds no state
// of its own beyond the closures.
func (rt *Runtime) automockGenerator() *mockgen.Generator {
	return mockgen.New(
		runtimeRealLoader{rt},
		runtimeIsolate{rt},
		runtimeMetadataFacility{rt},
		runtimeMetadataCache{rt},
	)
}

type runtimeRealLoader struct{ rt *Runtime }

func (l runtimeRealLoader) LoadReal(from, name string) (any, error) {
	return l.rt.requireFrom(from, name, IntentForceReal)
}

type runtimeIsolate struct{ rt *Runtime }

func (s runtimeIsolate) SwapThrowaway() func() {
	savedReal := s.rt.regs.Real
	savedMock := s.rt.regs.Mock
	s.rt.regs.Real = registry.NewThrowawayModules()
	s.rt.regs.Mock = registry.NewThrowawayMocks()
	return func() {
		s.rt.regs.Real = savedReal
		s.rt.regs.Mock = savedMock
	}
}

type runtimeMetadataFacility struct{ rt *Runtime }

func (m runtimeMetadataFacility) GetMetadata(exports any) any {
	meta := m.rt.env.ModuleMocker().GetMetadata(exports)
	if meta == nil {
		return nil
	}
	return meta
}

func (m runtimeMetadataFacility) GenerateFromMetadata(meta any) any {
	return m.rt.env.ModuleMocker().GenerateFromMetadata(meta.(*sandbox.Metadata))
}

type runtimeMetadataCache struct{ rt *Runtime }

func (c runtimeMetadataCache) Get(path string) (any, bool) {
	return c.rt.policy.MockMetadataCache(path)
}

func (c runtimeMetadataCache) Set(path string, metadata any) {
	c.rt.policy.SetMockMetadataCache(path, metadata)
}

func (rt *Runtime) resolveWithOptions(from, request string, paths []string) (ModuleKey, error) {
	if len(paths) > 0 {
		for _, p := range paths {
			if path, ok := rt.resolver.ResolveFromDirIfExists(p, request, []string{p}); ok {
				return path, nil
			}
		}
		return "", fmt.Errorf("runtime: cannot resolve %q; tried: %s", request, strings.Join(paths, ", "))
	}

	path, err := rt.resolver.Resolve(from, request)
	if err == nil {
		return path, nil
	}
	if manual, ok := rt.resolver.GetMockModule(from, request); ok {
		return manual, nil
	}
	return "", rt.enrichNotFound(from, request, err)
}

func (rt *Runtime) resolvePaths(from, request string) ([]string, error) {
	if request == "" {
		return nil, ErrBadResolveArg
	}
	if strings.HasPrefix(request, ".") {
		return []string{dirname(from)}, nil
	}
	if rt.resolver.IsCoreModule(request) {
		return nil, nil
	}
	return rt.resolver.GetModulePaths(dirname(from)), nil
}

// enrichNotFound augments a resolution failure with a sibling-extension
// hint.
func (rt *Runtime) enrichNotFound(from, request string, cause error) error {
	hint := rt.resolver.SiblingExtensionHint(from, request)
	if hint == "" {
		return fmt.Errorf("%w: %q from %q: %w", ErrNotFound, request, from, cause)
	}
	return fmt.Errorf("%w: %q from %q (%s): %w", ErrNotFound, request, from, hint, cause)
}

