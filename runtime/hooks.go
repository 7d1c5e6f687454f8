package runtime

import (
	"fmt"

	"github.com/traitorjs/modrun/internal/logger"
	"github.com/traitorjs/modrun/sandbox"
)

// Hooks is the reflective control object: the per-module mutator surface a
// test harness reaches for through the wrapper's "j" positional argument,
// bound to the filename it was attached for and the require surface the
// Executor built alongside it.
type Hooks struct {
	rt       *Runtime
	filename ModuleKey
	req      *requireSurface
}

func (rt *Runtime) newHooks(filename ModuleKey, req *requireSurface) *Hooks {
	return &Hooks{rt: rt, filename: filename, req: req}
}

func (h *Hooks) id(request string) ModuleID {
	return h.rt.policy.ModuleID(h.filename, request)
}

// --- autoMock toggles -------------------------------------------------------

func (h *Hooks) AutoMockOn() *Hooks  { h.rt.policy.AutoMockOn(); return h }
func (h *Hooks) AutoMockOff() *Hooks { h.rt.policy.AutoMockOff(); return h }

// EnableAutomock/DisableAutomock are the spec's public aliases for the two
// methods above.
func (h *Hooks) EnableAutomock() *Hooks  { return h.AutoMockOn() }
func (h *Hooks) DisableAutomock() *Hooks { return h.AutoMockOff() }

// --- mock/unmock -------------------------------------------------------------

// Mock is jest.mock(moduleName, factory?, {virtual}?): an explicit mock
// decision for request, optionally backed by a factory and optionally
// virtual (no real file on disk required for resolution). Without a
// factory, this just forces shouldMock to true and leaves the
// manual-mock/automock machinery to produce the exports on demand. A given
// factory is wired through the same setMockFactory path SetMock uses.
func (h *Hooks) Mock(request string, factory func() (any, error), virtual bool) *Hooks {
	if virtual {
		h.addVirtualMock(request)
	}
	if factory != nil {
		h.setMockFactory(request, factory)
		return h
	}
	h.rt.policy.Mock(h.id(request))
	return h
}

// DoMock is jest.doMock's alias for Mock — unlike Mock it is never hoisted
// by anything upstream of this package, so the two are identical here.
func (h *Hooks) DoMock(request string, factory func() (any, error), virtual bool) *Hooks {
	return h.Mock(request, factory, virtual)
}

func (h *Hooks) Unmock(request string) *Hooks {
	h.rt.policy.Unmock(h.id(request))
	return h
}

func (h *Hooks) DontMock(request string) *Hooks { return h.Unmock(request) }

func (h *Hooks) DeepUnmock(request string) *Hooks {
	h.rt.policy.DeepUnmock(h.id(request))
	return h
}

// SetMock registers exports as request's manual replacement, the way
// jest.setMock(moduleName, moduleExports) does: an immediately available
// mock value rather than a lazily invoked factory. virtual marks request as
// having no real file on disk, so resolution never requires one to exist.
func (h *Hooks) SetMock(request string, exports any, virtual bool) *Hooks {
	if virtual {
		h.addVirtualMock(request)
	}
	h.setMockFactory(request, func() (any, error) { return exports, nil })
	return h
}

func (h *Hooks) addVirtualMock(request string) {
	h.rt.policy.AddVirtualMock(request)
}

func (h *Hooks) setMockFactory(request string, factory func() (any, error)) {
	h.rt.policy.SetMockFactory(h.id(request), factory)
}

// --- registry lifecycle ------------------------------------------------------

func (h *Hooks) ResetModules() *Hooks {
	h.rt.regs.ResetModules()
	h.rt.env.ModuleMocker().ClearAllMocks()
	h.rt.env.FakeTimers().Reset()
	return h
}

// IsolateModules runs fn under a throwaway isolated-real/isolated-mock
// registry pair, unconditionally discarded on return.
func (h *Hooks) IsolateModules(fn func() error) error {
	return h.rt.regs.IsolateModules(fn)
}

// --- mock function lifecycle --------------------------------------------------

func (h *Hooks) ClearAllMocks() *Hooks {
	h.rt.env.ModuleMocker().ClearAllMocks()
	return h
}

func (h *Hooks) ResetAllMocks() *Hooks {
	h.rt.env.ModuleMocker().ResetAllMocks()
	return h
}

func (h *Hooks) RestoreAllMocks() *Hooks {
	h.rt.env.ModuleMocker().RestoreAllMocks()
	return h
}

func (h *Hooks) Fn() *sandbox.MockFunction {
	return h.rt.env.ModuleMocker().Fn()
}

func (h *Hooks) SpyOn(original func(args ...any) any) *sandbox.MockFunction {
	return h.rt.env.ModuleMocker().SpyOn(original)
}

func (h *Hooks) IsMockFunction(v any) bool {
	return h.rt.env.ModuleMocker().IsMockFunction(v)
}

// --- fake timers --------------------------------------------------------------

// requireFakeTimers logs and sets a non-zero exit code when a timer control
// is reached while fake timers are not installed (useFakeTimers never
// called, or undone by useRealTimers) — the same
// TornDown-style diagnostic the Executor uses for a dead environment.
func (h *Hooks) requireFakeTimers(op string) *sandbox.FakeTimers {
	ft := h.rt.env.FakeTimers()
	if !ft.IsFake() {
		logger.ForModule(h.filename).Error(fmt.Sprintf("%s called without useFakeTimers() active", op))
		h.rt.setExitCode(1)
		return nil
	}
	return ft
}

func (h *Hooks) UseFakeTimers() *Hooks {
	h.rt.env.FakeTimers().Install()
	return h
}

func (h *Hooks) UseRealTimers() *Hooks {
	h.rt.env.FakeTimers().Uninstall()
	return h
}

func (h *Hooks) ClearAllTimers() *Hooks {
	if ft := h.requireFakeTimers("clearAllTimers"); ft != nil {
		ft.ClearAllTimers()
	}
	return h
}

func (h *Hooks) RunAllTimers() *Hooks {
	if ft := h.requireFakeTimers("runAllTimers"); ft != nil {
		ft.RunAllTimers()
	}
	return h
}

func (h *Hooks) RunAllTicks() *Hooks {
	if ft := h.requireFakeTimers("runAllTicks"); ft != nil {
		ft.RunAllTicks()
	}
	return h
}

func (h *Hooks) RunAllImmediates() *Hooks {
	if ft := h.requireFakeTimers("runAllImmediates"); ft != nil {
		ft.RunAllImmediates()
	}
	return h
}

func (h *Hooks) RunOnlyPendingTimers() *Hooks {
	if ft := h.requireFakeTimers("runOnlyPendingTimers"); ft != nil {
		ft.RunOnlyPendingTimers()
	}
	return h
}

func (h *Hooks) AdvanceTimersByTime(ms int64) *Hooks {
	if ft := h.requireFakeTimers("advanceTimersByTime"); ft != nil {
		ft.AdvanceByTime(ms)
	}
	return h
}

// RunTimersToTime is jest's deprecated alias for AdvanceTimersByTime.
func (h *Hooks) RunTimersToTime(ms int64) *Hooks { return h.AdvanceTimersByTime(ms) }

func (h *Hooks) AdvanceTimersToNextTimer(steps int) *Hooks {
	if ft := h.requireFakeTimers("advanceTimersToNextTimer"); ft != nil {
		ft.AdvanceToNextTimer(steps)
	}
	return h
}

func (h *Hooks) GetTimerCount() int {
	if ft := h.requireFakeTimers("getTimerCount"); ft != nil {
		return ft.GetTimerCount()
	}
	return 0
}

// --- process-level well-known globals -----------------------------------------

// SetTimeout sets the default per-test timeout. A legacy jasmine-style
// global, if a harness installed one, carries its own default-interval
// field and takes priority; otherwise the well-known environment global
// is set instead.
func (h *Hooks) SetTimeout(ms int64) *Hooks {
	if h.rt.env.SetGlobalField("jasmine", "DEFAULT_TIMEOUT_INTERVAL", ms) {
		return h
	}
	h.rt.env.SetGlobal("__modrun_default_timeout_ms__", ms)
	return h
}

func (h *Hooks) RetryTimes(n int) *Hooks {
	h.rt.env.SetGlobal("__modrun_retry_times__", n)
	return h
}

// --- automock generation / requireActual/requireMock passthrough -------------

func (h *Hooks) GenMockFromModule(request string) (any, error) {
	path, err := h.rt.resolver.Resolve(h.filename, request)
	if err != nil {
		return nil, fmt.Errorf("runtime: genMockFromModule %q: %w", request, err)
	}
	generator := h.rt.automockGenerator()
	return generator.Generate(h.filename, request, path)
}

func (h *Hooks) RequireActual(request string) (any, error) {
	return h.req.RequireActual(request)
}

func (h *Hooks) RequireMock(request string) (any, error) {
	return h.req.RequireMock(request)
}

// AddMatchers merges extra assertion matchers into the well-known global a
// test harness script reads them back from, the same "write to a well-known
// global" idiom SetTimeout/RetryTimes use.
func (h *Hooks) AddMatchers(matchers map[string]any) *Hooks {
	existing, _ := h.rt.env.LookupGlobal("__modrun_matchers__")
	merged, ok := existing.(map[string]any)
	if !ok {
		merged = map[string]any{}
	}
	for name, fn := range matchers {
		merged[name] = fn
	}
	h.rt.env.SetGlobal("__modrun_matchers__", merged)
	return h
}
