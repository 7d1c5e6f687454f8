package runtime

import (
	"errors"
	"fmt"

	"github.com/traitorjs/modrun/registry"
	"github.com/traitorjs/modrun/transform"
)

// ErrMissingExtraGlobal is wrapped with the missing global's name when a
// configured extra global cannot be found on the environment global.
var ErrMissingExtraGlobal = errors.New("runtime: missing extra global")

// execute implements the Executor. from is the caller's module path, or ""
// for a root load. intent is threaded through so the freshly attached
// require surface carries it.
func (rt *Runtime) execute(record *registry.ModuleRecord, from string, path ModuleKey, intent Intent) error {
	if rt.env.IsTornDown() {
		rt.logTornDown(path)
		return nil
	}

	// Step 1: save and overwrite reentrancy state.
	rt.pushReentrancy(path)
	defer rt.popReentrancy()

	// Step 2: reset children; parent is computed on demand via
	// registry.ModuleRecord.Parent, so recording the caller key is enough.
	record.Children = nil
	record.SetCaller(from, from != "")

	// Step 3: directory-search paths.
	record.Paths = rt.resolver.GetModulePaths(dirname(path))

	// Step 4: attach a fresh require surface bound to this record.
	req := rt.newRequireSurface(record, intent)
	record.Require = req

	// Step 5: transform the cached source text.
	source, err := rt.readCachedSource(path)
	if err != nil {
		return fmt.Errorf("runtime: reading %s: %w", path, err)
	}
	result, err := rt.transformer.Transform(path, transform.Options{}, source)
	if err != nil {
		return fmt.Errorf("runtime: transforming %s: %w", path, err)
	}

	// Step 6: register source-map/coverage bookkeeping, if any.
	if result.SourceMapPath != "" {
		rt.registerSourceMap(path, result.SourceMapPath)
	}
	if result.NeedsCoverage {
		rt.markNeedsCoverage(path)
	}

	if rt.env.IsTornDown() {
		rt.logTornDown(path)
		return nil
	}

	// Step 7: run the transformed script and invoke its wrapper.
	wrapper, err := rt.env.RunScript(path, result.Script)
	if err != nil {
		return fmt.Errorf("runtime: running %s: %w", path, err)
	}

	hooks := rt.newHooks(path, req)

	args := []any{record, record.Exports, req, dirname(path), path, rt.env.GlobalValue(), hooks}
	for _, name := range rt.extraGlobals {
		v, ok := rt.env.LookupGlobal(name)
		if !ok {
			return fmt.Errorf("%w: %q (required by %s)", ErrMissingExtraGlobal, name, path)
		}
		args = append(args, v)
	}

	if err := wrapper.Invoke(record.Exports, args...); err != nil {
		return fmt.Errorf("runtime: evaluating %s: %w", path, err)
	}

	return nil
}

func (rt *Runtime) pushReentrancy(filename ModuleKey) {
	rt.reentrancyStack = append(rt.reentrancyStack, reentrancyFrame{
		modulePath:    rt.currentModulePath,
		manualMock:    rt.currentManualMock,
		hasManualMock: rt.hasCurrentManualMock,
	})
	rt.currentModulePath = filename
	rt.currentManualMock = filename
	rt.hasCurrentManualMock = true
}

func (rt *Runtime) popReentrancy() {
	n := len(rt.reentrancyStack)
	if n == 0 {
		return
	}
	frame := rt.reentrancyStack[n-1]
	rt.reentrancyStack = rt.reentrancyStack[:n-1]
	rt.currentModulePath = frame.modulePath
	rt.currentManualMock = frame.manualMock
	rt.hasCurrentManualMock = frame.hasManualMock
}

func (rt *Runtime) currentManualMockPath() ModuleKey {
	if !rt.hasCurrentManualMock {
		return ""
	}
	return rt.currentManualMock
}

// registerSourceMap/markNeedsCoverage are simple bookkeeping maps; this
// module does not implement source-map consumption or coverage
// instrumentation, only the "register it"/"mark the file" side effects the
// Executor's contract names.
func (rt *Runtime) registerSourceMap(path, sourceMapPath ModuleKey) {
	if rt.sourceMaps == nil {
		rt.sourceMaps = map[ModuleKey]ModuleKey{}
	}
	rt.sourceMaps[path] = sourceMapPath
}

func (rt *Runtime) markNeedsCoverage(path ModuleKey) {
	if rt.coverageMarked == nil {
		rt.coverageMarked = map[ModuleKey]bool{}
	}
	rt.coverageMarked[path] = true
}
