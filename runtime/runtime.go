// Package runtime is the heart of the module runtime core: the Loader, the
// Executor, the Require Surface, and the Reflective Control Object, wired
// together over one policy.Engine and one registry.Registries instance per
// Runtime. It plays the role src/job/job.go's CreateJsJob plays — a single
// entry point that owns a *goja.Runtime for the lifetime of one evaluation
// unit — except here the unit is an entire module graph, not one script.
package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/traitorjs/modrun/cachestore"
	"github.com/traitorjs/modrun/debugserver"
	"github.com/traitorjs/modrun/hostfs"
	"github.com/traitorjs/modrun/internal/logger"
	"github.com/traitorjs/modrun/policy"
	"github.com/traitorjs/modrun/registry"
	"github.com/traitorjs/modrun/sandbox"
	"github.com/traitorjs/modrun/transform"
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

// PathResolver is the full path-resolver contract the runtime package
// consumes: policy.Resolver plus the extra directory-search operations the
// Executor (record.paths) and Require Surface (resolve.paths,
// requireMock's adjacent-mock probing is already folded into
// GetMockModule) need. Defined consumer-side, as policy.Resolver already
// is, so *resolver.Resolver need not import this package.
type PathResolver interface {
	policy.Resolver
	ResolveFromDirIfExists(dir, request string, paths []string) (ModuleKey, bool)
	GetModulePaths(dir string) []string
	GetModulePath(from, request string) ModuleKey
	SiblingExtensionHint(from, request string) string
}

// HostFS is the blocking-read collaborator the Loader reads module source
// and ".json" data files through.
type HostFS interface {
	Exists(path string) bool
	Read(path string) (string, error)
}

// Environment is the sandbox collaborator the Executor runs transformed
// scripts through. sandbox.Env is the only implementation in this module,
// but the interface is declared here, consumer-side, so a test double
// never needs to import goja.
type Environment interface {
	IsTornDown() bool
	RunScript(filename, source string) (*sandbox.Wrapper, error)
	LookupGlobal(name string) (any, bool)
	SetGlobal(name string, value any)
	SetGlobalField(objName, field string, value any) bool
	ParseJSON(text string) (any, error)
	ModuleMocker() *sandbox.ModuleMocker
	FakeTimers() *sandbox.FakeTimers
	// GlobalValue returns the environment's global object itself, passed
	// through to the wrapper's "global" positional argument unconverted —
	// nil once torn down.
	GlobalValue() any
}

// Options configures one Runtime instance, read once at construction.
type Options struct {
	Automock             bool
	UnmockPatterns       *regexp.Regexp
	ModuleFileExtensions []string
	ExtraGlobals         []string
	RootDir              string
}

// Runtime owns one policy.Engine, one registry.Registries, the reentrancy
// state pair, and every external collaborator, for exactly one test
// runtime's lifetime: single-threaded, one logical stream.
type Runtime struct {
	mu sync.Mutex

	resolver    PathResolver
	transformer transform.Transformer
	env         Environment
	fs          HostFS

	policy *policy.Engine
	regs   *registry.Registries

	extraGlobals []string

	// store, when non-nil, backs readCachedSource's cache_fs read-through
	// with a cachestore.Store consulted behind the in-process map, so
	// cache_fs survives across Runtime instances (config.Config's
	// cache backend). SetCacheStore wires it after construction since
	// cmd/modrun builds the store independently (it may need to start a
	// cachegc.Scheduler against the same instance before the Runtime exists).
	store cachestore.Store

	cacheFS        map[ModuleKey]string
	sourceMaps     map[ModuleKey]ModuleKey
	coverageMarked map[ModuleKey]bool

	// reentrancy state
	currentModulePath    ModuleKey
	currentManualMock    ModuleKey
	hasCurrentManualMock bool

	reentrancyStack []reentrancyFrame

	events   []chan debugserver.Event
	exitCode int
}

type reentrancyFrame struct {
	modulePath    ModuleKey
	manualMock    ModuleKey
	hasManualMock bool
}

// New constructs a Runtime. resolver/transformer/env/fs are the external
// collaborators; opts configures the policy engine's initial state. A
// fresh policy.Engine and registry.Registries are created — one Runtime
// never shares either with another.
func New(resolver PathResolver, transformer transform.Transformer, env Environment, fs HostFS, opts Options) *Runtime {
	if fs == nil {
		fs = hostfs.New()
	}
	rt := &Runtime{
		resolver:     resolver,
		transformer:  transformer,
		env:          env,
		fs:           fs,
		policy:       policy.New(resolver, opts.Automock, opts.UnmockPatterns),
		regs:         registry.New(),
		extraGlobals: opts.ExtraGlobals,
		cacheFS:      map[ModuleKey]string{},
	}
	return rt
}

// RequireRoot loads path as a root module — a require call with no caller,
// the entry point cmd/modrun and every test harness start from.
func (rt *Runtime) RequireRoot(path ModuleKey) (any, error) {
	return rt.requireFrom("", path, IntentNormal)
}

// RequireSetupFile loads path as a root module the way RequireRoot does,
// but first marks it transitively unmocked so everything it requires
// directly stays real even with automock on — the exemption setup files
// get under the dependency root.
func (rt *Runtime) RequireSetupFile(path ModuleKey) (any, error) {
	rt.policy.SetTransitiveUnmockForSetup(rt.policy.ModuleID("", path))
	return rt.requireFrom("", path, IntentNormal)
}

// ExitCode is set to 1 by the TornDown diagnostic path; it is never reset
// automatically, treating process exit codes as sticky until the process
// itself restarts.
func (rt *Runtime) ExitCode() int { return rt.exitCode }

func (rt *Runtime) setExitCode(code int) { rt.exitCode = code }

// SetCacheStore wires a cachestore.Store as cache_fs's second tier, behind
// the in-process map: a hit there still costs no disk read on this Runtime,
// but a miss is checked against the shared store (e.g. across worker
// processes, or across GC-swept generations) before falling back to fs.Read.
func (rt *Runtime) SetCacheStore(store cachestore.Store) { rt.store = store }

// readCachedSource is the `cache_fs: ModuleKey -> string` read-through map
// the Executor's step 5 describes: memoize the host-filesystem read so a
// module's source text is read from disk exactly once per Runtime.
func (rt *Runtime) readCachedSource(path ModuleKey) (string, error) {
	if cached, ok := rt.cacheFS[path]; ok {
		return cached, nil
	}

	ctx := context.Background()
	if rt.store != nil {
		if cached, ok, err := rt.store.Get(ctx, path); err == nil && ok {
			text := string(cached)
			rt.cacheFS[path] = text
			return text, nil
		}
	}

	text, err := rt.fs.Read(path)
	if err != nil {
		return "", err
	}
	rt.cacheFS[path] = text
	if rt.store != nil {
		_ = rt.store.Put(ctx, path, []byte(text))
	}
	return text, nil
}

// publish broadcasts ev to every live subscriber (debugserver.Inspector),
// dropping it for any subscriber whose channel is full rather than
// blocking the require path on a slow consumer.
func (rt *Runtime) publish(ev debugserver.Event) {
	for _, ch := range rt.events {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe implements debugserver.Inspector.
func (rt *Runtime) Subscribe() (<-chan debugserver.Event, func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	ch := make(chan debugserver.Event, 64)
	rt.events = append(rt.events, ch)
	unsubscribe := func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		for i, c := range rt.events {
			if c == ch {
				rt.events = append(rt.events[:i], rt.events[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}

// Snapshot implements debugserver.Inspector.
func (rt *Runtime) Snapshot() debugserver.Snapshot {
	snap := debugserver.Snapshot{
		InternalKeys: rt.regs.Internal.Keys(),
		RealKeys:     rt.regs.Real.Keys(),
		MockIDs:      rt.regs.Mock.Keys(),
	}
	if rt.regs.IsolatedReal != nil {
		snap.IsolatedRealKeys = rt.regs.IsolatedReal.Keys()
	}
	if rt.regs.IsolatedMock != nil {
		snap.IsolatedMockIDs = rt.regs.IsolatedMock.Keys()
	}
	return snap
}

// dirname/filename helpers shared by Loader and Executor.
func dirname(path ModuleKey) string  { return filepath.Dir(path) }
func basename(path ModuleKey) string { return filepath.Base(path) }

func tornDownError(filename string) error {
	return fmt.Errorf("runtime: environment torn down, cannot load %s", filename)
}

func (rt *Runtime) logTornDown(filename string) {
	logger.ForModule(filename).Error("ReferenceError: environment is not defined — the runtime has been torn down while loading this module")
	rt.setExitCode(1)
}
