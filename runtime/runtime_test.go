package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/traitorjs/modrun/hostfs"
	"github.com/traitorjs/modrun/resolver"
	"github.com/traitorjs/modrun/sandbox"
	"github.com/traitorjs/modrun/transform"
)

// newTestRuntime wires a real resolver (backed by tmp files), the real
// goja sandbox, and the real host filesystem reader — the cheapest way to
// exercise the Loader/Executor/Require Surface together without faking
// goja's reflection semantics.
func newTestRuntime(t *testing.T, root string) *Runtime {
	t.Helper()
	res := resolver.New(resolver.Config{
		RootDir:    root,
		Extensions: []string{".js", ".json"},
	})
	env := sandbox.NewEnv()
	return New(res, transform.NewPassthrough(nil), env, hostfs.New(), Options{RootDir: root})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func numberOf(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	default:
		t.Fatalf("expected a number, got %T (%v)", v, v)
		return 0
	}
}

func TestRequireRootLoadsTransitiveCommonJSModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.js", `exports.value = 21;`)
	a := writeFile(t, dir, "a.js", `
		var b = require('./b');
		exports.result = b.value * 2;
	`)

	rt := newTestRuntime(t, dir)
	exports, err := rt.RequireRoot(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := exports.(map[string]any)
	if !ok {
		t.Fatalf("expected map exports, got %T", exports)
	}
	if got := numberOf(t, m["result"]); got != 42 {
		t.Fatalf("expected result 42, got %v", got)
	}
}

func TestRequireRootCachesModuleAcrossRequires(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "counter.js", `
		exports.calls = (exports.calls || 0) + 1;
	`)
	a := writeFile(t, dir, "a.js", `
		var c1 = require('./counter');
		var c2 = require('./counter');
		exports.calls = c1.calls;
		exports.same = (c1 === c2);
	`)

	rt := newTestRuntime(t, dir)
	exports, err := rt.RequireRoot(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := exports.(map[string]any)
	if got := numberOf(t, m["calls"]); got != 1 {
		t.Fatalf("expected counter.js to execute exactly once, got %v calls", got)
	}
}

func TestRequireRootLoadsJSONModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.json", `{"name": "widget", "count": 3}`)
	a := writeFile(t, dir, "a.js", `
		var data = require('./data.json');
		exports.name = data.name;
		exports.count = data.count;
	`)

	rt := newTestRuntime(t, dir)
	exports, err := rt.RequireRoot(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := exports.(map[string]any)
	if m["name"] != "widget" {
		t.Fatalf("expected name widget, got %v", m["name"])
	}
	if got := numberOf(t, m["count"]); got != 3 {
		t.Fatalf("expected count 3, got %v", got)
	}
}

func TestRequireRootUsesManualMockOverReal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.js", `exports.kind = "real";`)
	writeFile(t, dir, "__mocks__/real.js", `exports.kind = "mock";`)
	a := writeFile(t, dir, "a.js", `
		var real = require('./real');
		exports.kind = real.kind;
	`)

	rt := newTestRuntime(t, dir)
	rt.policy.Mock(rt.policy.ModuleID(a, "./real"))

	exports, err := rt.RequireRoot(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := exports.(map[string]any)
	if m["kind"] != "mock" {
		t.Fatalf("expected the manual mock to win, got %v", m["kind"])
	}
}

func TestRequireCacheExposesLoadedModules(t *testing.T) {
	dir := t.TempDir()
	// b.js's own require object is built after both a.js and b.js have
	// been pre-registered (the caller, already loaded; itself, registered
	// before its body runs), so this is where both entries are visible.
	b := writeFile(t, dir, "b.js", `
		exports.hasSelf = (require.cache[module.filename] !== undefined);
		exports.entryCount = Object.keys(require.cache).length;
	`)
	a := writeFile(t, dir, "a.js", `
		exports.b = require('./b');
	`)

	rt := newTestRuntime(t, dir)
	exports, err := rt.RequireRoot(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := exports.(map[string]any)
	bExports := m["b"].(map[string]any)
	if bExports["hasSelf"] != true {
		t.Fatalf("expected require.cache to carry an entry for the requiring module itself")
	}
	if got := numberOf(t, bExports["entryCount"]); got != 2 {
		t.Fatalf("expected require.cache to carry both a.js and b.js, got %v entries", got)
	}

	cache := rt.regs.Cache()
	if _, ok := cache[a]; !ok {
		t.Fatalf("expected the registry-level cache snapshot to contain %s", a)
	}
	if _, ok := cache[b]; !ok {
		t.Fatalf("expected the registry-level cache snapshot to contain %s", b)
	}
}

func TestCircularRequireResolvesToPartialRecord(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", `
		exports.x = function() { return 1; };
		var b = require('./b');
		exports.sawB = (typeof b.y === 'function');
	`)
	writeFile(t, dir, "b.js", `
		var a = require('./a');
		exports.y = function() { return a.x(); };
		exports.sawX = (typeof a.x === 'function');
	`)
	root := writeFile(t, dir, "root.js", `
		var a = require('./a');
		exports.result = a.x();
		exports.sawB = a.sawB;
	`)

	rt := newTestRuntime(t, dir)
	exports, err := rt.RequireRoot(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := exports.(map[string]any)
	if got := numberOf(t, m["result"]); got != 1 {
		t.Fatalf("expected require('./a').x() to return 1 across the cycle, got %v", got)
	}
	if m["sawB"] != true {
		t.Fatalf("expected a.js to observe b.js's exports despite the cycle")
	}
}

func TestRequireRootMissingModuleReturnsError(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.js", `require('./missing');`)

	rt := newTestRuntime(t, dir)
	_, err := rt.RequireRoot(a)
	if err == nil {
		t.Fatalf("expected an error for a missing module")
	}
}

func TestResolvePathsRejectsEmptyRequest(t *testing.T) {
	dir := t.TempDir()
	rt := newTestRuntime(t, dir)
	_, err := rt.resolvePaths(filepath.Join(dir, "a.js"), "")
	if err != ErrBadResolveArg {
		t.Fatalf("expected ErrBadResolveArg, got %v", err)
	}
}

func TestResolvePathsRelativeRequestReturnsCallerDir(t *testing.T) {
	dir := t.TempDir()
	rt := newTestRuntime(t, dir)
	from := filepath.Join(dir, "sub", "a.js")
	paths, err := rt.resolvePaths(from, "./b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 1 || paths[0] != filepath.Dir(from) {
		t.Fatalf("expected [%s], got %v", filepath.Dir(from), paths)
	}
}
