package sandbox

import (
	"fmt"
	"testing"
)

// fakeRequire is a minimal Requirer+RequireResolver+RequireActualer double,
// so Wrapper.Invoke's "wrap as a callable JS function" path can be tested
// without constructing a full runtime.Runtime.
type fakeRequire struct {
	calls []string
}

func (f *fakeRequire) Call(request string) (any, error) {
	f.calls = append(f.calls, request)
	if request == "./missing" {
		return nil, fmt.Errorf("not found: %s", request)
	}
	return map[string]any{"request": request}, nil
}

func (f *fakeRequire) Resolve(request string, paths []string) (string, error) {
	return "/resolved/" + request, nil
}

func (f *fakeRequire) RequireActual(request string) (any, error) {
	return map[string]any{"actual": request}, nil
}

// fakeModule mirrors registry.ModuleRecord's single relevant field for this
// test: an Exports field that the goja.UncapFieldNameMapper exposes to JS as
// lowercase "exports", aliasing the same map passed as the bare "exports"
// positional parameter.
type fakeModule struct {
	Exports map[string]any
}

func TestRunScriptInvokeExposesModuleExportsLowercased(t *testing.T) {
	env := NewEnv()
	wrapper, err := env.RunScript("a.js", `(function(module, exports, req) {
		exports.fromReq = req('./b').request;
		exports.resolved = req.resolve('./b', []);
		exports.actual = req.requireActual('./b').actual;
		module.exports.viaModule = "set-through-module";
	});`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	record := map[string]any{}
	module := &fakeModule{Exports: record}
	req := &fakeRequire{}
	if err := wrapper.Invoke(record, module, record, req); err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}

	if record["fromReq"] != "./b" {
		t.Fatalf("expected require('./b') to be called, got %v", record["fromReq"])
	}
	if record["resolved"] != "/resolved/./b" {
		t.Fatalf("expected require.resolve to work, got %v", record["resolved"])
	}
	if record["actual"] != "./b" {
		t.Fatalf("expected require.requireActual to work, got %v", record["actual"])
	}
	if record["viaModule"] != "set-through-module" {
		t.Fatalf("expected module.exports (lowercase) to alias the same map, got %v", record["viaModule"])
	}
}

func TestRunScriptInvokeBindsThisToExports(t *testing.T) {
	env := NewEnv()
	wrapper, err := env.RunScript("a.js", `(function(module, exports, req) {
		this.fromThis = "set-through-this";
	});`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	record := map[string]any{}
	module := &fakeModule{Exports: record}
	req := &fakeRequire{}
	if err := wrapper.Invoke(record, module, record, req); err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}
	if record["fromThis"] != "set-through-this" {
		t.Fatalf("expected bare `this` to alias module.exports, got %v", record["fromThis"])
	}
}

func TestRunScriptInvokePropagatesRequireError(t *testing.T) {
	env := NewEnv()
	wrapper, err := env.RunScript("a.js", `(function(module, exports, req) {
		req('./missing');
	});`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	req := &fakeRequire{}
	exports := map[string]any{}
	if err := wrapper.Invoke(exports, map[string]any{}, exports, req); err == nil {
		t.Fatalf("expected the require error to propagate out of Invoke")
	}
}

func TestGlobalValueNilAfterTearDown(t *testing.T) {
	env := NewEnv()
	if env.GlobalValue() == nil {
		t.Fatalf("expected a non-nil global object before teardown")
	}
	env.TearDown()
	if env.GlobalValue() != nil {
		t.Fatalf("expected nil global value after teardown")
	}
	if !env.IsTornDown() {
		t.Fatalf("expected IsTornDown to report true")
	}
}

func TestSetGlobalThenLookupGlobal(t *testing.T) {
	env := NewEnv()
	env.SetGlobal("widgetCount", int64(7))
	v, ok := env.LookupGlobal("widgetCount")
	if !ok {
		t.Fatalf("expected widgetCount to be found")
	}
	if v != int64(7) {
		t.Fatalf("expected 7, got %v (%T)", v, v)
	}
}

func TestLookupGlobalMissingReturnsFalse(t *testing.T) {
	env := NewEnv()
	if _, ok := env.LookupGlobal("doesNotExist"); ok {
		t.Fatalf("expected lookup of an unset global to fail")
	}
}

func TestSetGlobalFieldWritesOntoExistingObject(t *testing.T) {
	env := NewEnv()
	if _, err := env.rt.RunString("globalThis.jasmine = {}"); err != nil {
		t.Fatalf("installing jasmine stub: %v", err)
	}
	if ok := env.SetGlobalField("jasmine", "DEFAULT_TIMEOUT_INTERVAL", int64(5000)); !ok {
		t.Fatalf("expected SetGlobalField to report success")
	}
	v, err := env.rt.RunString("jasmine.DEFAULT_TIMEOUT_INTERVAL")
	if err != nil {
		t.Fatalf("reading field back: %v", err)
	}
	if v.ToInteger() != 5000 {
		t.Fatalf("expected 5000, got %v", v)
	}
}

func TestSetGlobalFieldMissingObjectReturnsFalse(t *testing.T) {
	env := NewEnv()
	if ok := env.SetGlobalField("jasmine", "DEFAULT_TIMEOUT_INTERVAL", int64(5000)); ok {
		t.Fatalf("expected SetGlobalField to report failure when jasmine is unset")
	}
}

func TestParseJSONRoundTrips(t *testing.T) {
	env := NewEnv()
	v, err := env.ParseJSON(`{"a": 1, "b": [1,2,3]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", v)
	}
	if m["a"] != int64(1) {
		t.Fatalf("expected a=1, got %v", m["a"])
	}
}
