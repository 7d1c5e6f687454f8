// Package sandbox is the default Environment collaborator: an isolated
// global object, a script runner, a fake-timer facility, and a mock
// metadata/factory facility, all backed by github.com/dop251/goja — the
// same VM src/job/job.go's CreateJsJob embeds per job.
package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// Wrapper is the callable obtained from running a transformed script: the
// function the transformer's eval-result-variable convention identifies.
// Invoke binds its `this` explicitly rather than relying on call-site `this`.
type Wrapper struct {
	callable goja.Callable
	rt       *goja.Runtime
}

// Requirer is implemented by a module's bound require surface. Invoke
// recognizes it and builds a callable JS function object for it instead of
// handing the raw Go value to ToValue, so `require('./x')` is an actual
// call rather than a reflected struct. The richer surface — require.resolve,
// require.requireActual, require.requireMock, require.main, require.cache —
// is attached as extra properties on that function object when the
// concrete value also implements the matching optional interface below,
// mirroring how Node's own require object carries them alongside its call
// behavior.
type Requirer interface {
	Call(request string) (any, error)
}

type RequireResolver interface {
	Resolve(request string, paths []string) (string, error)
}

type RequirePathser interface {
	ResolvePaths(request string) ([]string, error)
}

type RequireActualer interface {
	RequireActual(request string) (any, error)
}

type RequireMocker interface {
	RequireMock(request string) (any, error)
}

type RequireMainer interface {
	Main() any
}

type RequireCacher interface {
	Cache() any
}

// Invoke calls the wrapper with thisVal bound as the call's `this` and args
// converted to goja values in order, matching the executor's
// fixed-prefix-plus-extra-globals argument list. thisVal is module.exports,
// mirroring Node's `compiledWrapper.call(module.exports, module.exports,
// require, module, filename, dirname)`, so the common CommonJS idiom
// `this.foo = ...` at module top level writes to the same object `exports`
// and `module.exports` name.
func (w *Wrapper) Invoke(thisVal any, args ...any) error {
	converted := make([]goja.Value, len(args))
	for i, a := range args {
		converted[i] = w.convert(a)
	}
	_, err := w.callable(w.convert(thisVal), converted...)
	return err
}

func (w *Wrapper) convert(a any) goja.Value {
	if req, ok := a.(Requirer); ok {
		return w.buildRequireFunction(req)
	}
	return w.rt.ToValue(a)
}

func (w *Wrapper) buildRequireFunction(req Requirer) goja.Value {
	fn := func(request string) (any, error) { return req.Call(request) }
	obj := w.rt.ToValue(fn).ToObject(w.rt)

	if r, ok := req.(RequireResolver); ok {
		resolveFn := func(request string, paths []string) (string, error) { return r.Resolve(request, paths) }
		resolveObj := w.rt.ToValue(resolveFn).ToObject(w.rt)
		if p, ok := req.(RequirePathser); ok {
			_ = resolveObj.Set("paths", func(request string) ([]string, error) { return p.ResolvePaths(request) })
		}
		_ = obj.Set("resolve", resolveObj)
	}
	if ra, ok := req.(RequireActualer); ok {
		_ = obj.Set("requireActual", func(request string) (any, error) { return ra.RequireActual(request) })
	}
	if rm, ok := req.(RequireMocker); ok {
		_ = obj.Set("requireMock", func(request string) (any, error) { return rm.RequireMock(request) })
	}
	if rmn, ok := req.(RequireMainer); ok {
		_ = obj.Set("main", rmn.Main())
	}
	if rc, ok := req.(RequireCacher); ok {
		_ = obj.Set("cache", rc.Cache())
	}
	return obj
}

// Env is the concrete, goja-backed Environment.
type Env struct {
	rt       *goja.Runtime
	mocker   *ModuleMocker
	timers   *FakeTimers
	torn     bool
	registry *require.Registry
}

// NewEnv constructs a fresh sandbox with console and the node-style
// require registry enabled, mirroring src/js_exec/registry.go's
// `registry.Enable(vm); console.Enable(vm)` sequence.
func NewEnv() *Env {
	rt := goja.New()
	rt.SetFieldNameMapper(goja.UncapFieldNameMapper())
	reg := require.NewRegistry()
	reg.Enable(rt)
	console.Enable(rt)
	return &Env{rt: rt, mocker: NewModuleMocker(), timers: NewFakeTimers(), registry: reg}
}

// Global returns the environment's global object, or nil once TearDown has
// been called. The executor's precondition check reads the same condition
// through IsTornDown.
func (e *Env) Global() *goja.Object {
	if e.torn {
		return nil
	}
	return e.rt.GlobalObject()
}

// TearDown simulates the environment shutting down (e.g. test-harness
// teardown racing an in-flight require).
func (e *Env) TearDown() { e.torn = true }

// IsTornDown reports whether TearDown has been called, letting the executor
// check the "environment global is non-null" precondition without needing
// to know goja.Object is the concrete global type.
func (e *Env) IsTornDown() bool { return e.torn }

// GlobalValue returns the runtime's global object as an opaque goja.Value,
// for the executor to thread through to a wrapper's "global" parameter
// unconverted — goja.Runtime.ToValue passes an existing Value through as-is.
func (e *Env) GlobalValue() any {
	if e.torn {
		return nil
	}
	return e.rt.GlobalObject()
}

func (e *Env) ModuleMocker() *ModuleMocker { return e.mocker }

func (e *Env) FakeTimers() *FakeTimers { return e.timers }

// RegisterNativeModule exposes a goja_nodejs-style native module under
// name, reusing the require registry the way js_exec/registry.go's
// RegistryModule forwards into both its normal and debug registries.
func (e *Env) RegisterNativeModule(name string, loader require.ModuleLoader) {
	e.registry.RegisterNativeModule(name, loader)
}

// RunScript evaluates source — expected to be a single function-expression
// wrapper, per the transformer's eval-result-variable convention — and
// returns it as a callable Wrapper.
func (e *Env) RunScript(filename, source string) (*Wrapper, error) {
	if e.torn {
		return nil, fmt.Errorf("sandbox: environment torn down, cannot run %s", filename)
	}
	program, err := goja.Compile(filename, source, false)
	if err != nil {
		return nil, fmt.Errorf("sandbox: compiling %s: %w", filename, err)
	}
	v, err := e.rt.RunProgram(program)
	if err != nil {
		return nil, fmt.Errorf("sandbox: evaluating %s: %w", filename, err)
	}
	callable, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("sandbox: transformed script for %s did not evaluate to a callable wrapper", filename)
	}
	return &Wrapper{callable: callable, rt: e.rt}, nil
}

// LookupGlobal looks up name on the environment global, for the executor's
// extra-globals argument list and its missing-extra-global diagnostic.
func (e *Env) LookupGlobal(name string) (any, bool) {
	if e.torn {
		return nil, false
	}
	v := e.rt.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}

// SetGlobal assigns name on the environment global, used by the reflective
// control object's setTimeout/retryTimes well-known-global writes.
func (e *Env) SetGlobal(name string, value any) {
	if e.torn {
		return
	}
	_ = e.rt.Set(name, value)
}

// SetGlobalField assigns field on the object bound to objName on the
// environment global, reporting false without writing anything if objName
// is not bound to an object — used by setTimeout's legacy-global branch,
// which only has a field to write when a harness installed that global
// itself.
func (e *Env) SetGlobalField(objName, field string, value any) bool {
	if e.torn {
		return false
	}
	v := e.rt.GlobalObject().Get(objName)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	if err := obj.Set(field, value); err != nil {
		return false
	}
	return true
}

// ParseJSON runs JSON.parse inside the sandbox, for the Loader's ".json"
// path, so a data module is parsed by the same engine user code will later
// observe it through.
func (e *Env) ParseJSON(text string) (any, error) {
	if e.torn {
		return nil, fmt.Errorf("sandbox: environment torn down")
	}
	global := e.rt.GlobalObject().Get("JSON")
	jsonObj := global.ToObject(e.rt)
	parse, ok := goja.AssertFunction(jsonObj.Get("parse"))
	if !ok {
		return nil, fmt.Errorf("sandbox: JSON.parse unavailable")
	}
	v, err := parse(jsonObj, e.rt.ToValue(text))
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}
