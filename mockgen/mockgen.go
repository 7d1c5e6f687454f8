// Package mockgen is the Automock Generator Adapter: thin glue that, under
// a throwaway frame, loads a module's real exports and hands them to the
// environment's mock-metadata facility. It depends only on small
// consumer-defined interfaces so the runtime package can wire it up
// without mockgen importing runtime (which would cycle).
package mockgen

import (
	"errors"
	"fmt"

	"github.com/fatih/structs"
)

// ErrMetadataNull is returned when the metadata facility yields nothing for
// a module's real exports.
var ErrMetadataNull = errors.New("mockgen: automock metadata is null for module")

// RealLoader loads the real module for (from, name), the way a require
// call with ForceReal intent would, but under whatever registries are
// currently active — the caller is responsible for making those throwaway
// via Isolate first.
type RealLoader interface {
	LoadReal(from, name string) (any, error)
}

// Isolate swaps in fresh, empty registries and returns a function that
// restores the saved ones — a scoped acquisition released unconditionally
// by the caller's defer, mirroring registry.Registries.IsolateModules.
type Isolate interface {
	SwapThrowaway() (restore func())
}

// MetadataFacility is the environment's getMetadata/generateFromMetadata
// pair (sandbox.ModuleMocker, accessed through Environment.ModuleMocker).
type MetadataFacility interface {
	GetMetadata(exports any) any
	GenerateFromMetadata(meta any) any
}

// MetadataCache is the mock_metadata_cache policy input, shared across
// regenerations within a module's lifetime.
type MetadataCache interface {
	Get(path string) (any, bool)
	Set(path string, metadata any)
}

// Generator drives the automock flow: isolate, load real, derive metadata,
// regenerate from it.
type Generator struct {
	loader   RealLoader
	isolate  Isolate
	metadata MetadataFacility
	cache    MetadataCache
}

func New(loader RealLoader, isolate Isolate, metadata MetadataFacility, cache MetadataCache) *Generator {
	return &Generator{loader: loader, isolate: isolate, metadata: metadata, cache: cache}
}

// Generate produces a mock for the module at path, requested as name from
// from. Metadata is computed once per path and reused on subsequent calls;
// a fresh mock object is synthesized from it every time, since each
// requireMock call needs its own call-tracking mock functions.
func (g *Generator) Generate(from, name, path string) (any, error) {
	meta, cached := g.cache.Get(path)
	if !cached {
		// Step 1: initialize with a recursion guard before the isolated
		// load, so a cyclic module graph resolves instead of looping.
		g.cache.Set(path, nil)

		exports, err := g.loadUnderIsolation(from, name)
		if err != nil {
			return nil, fmt.Errorf("mockgen: loading real module for %q: %w", path, err)
		}

		computed := g.metadata.GetMetadata(exports)
		if computed == nil {
			return nil, fmt.Errorf("%w: %s", ErrMetadataNull, path)
		}
		g.cache.Set(path, computed)
		meta = computed
	}

	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrMetadataNull, path)
	}
	return g.metadata.GenerateFromMetadata(meta), nil
}

// loadUnderIsolation runs LoadReal under a throwaway registry frame,
// restoring the saved registries via defer so the swap unwinds on every
// exit path, including a panic inside LoadReal.
func (g *Generator) loadUnderIsolation(from, name string) (any, error) {
	restore := g.isolate.SwapThrowaway()
	defer restore()
	return g.loader.LoadReal(from, name)
}

// Diagnostics renders the cache's current contents via github.com/fatih/structs
// the way config.Dump does, for debugserver introspection of pending/
// completed automock generations.
type snapshotEntry struct {
	Path string `structs:"path"`
	Has  bool   `structs:"has"`
}

func Diagnostics(paths []string, cache MetadataCache) []map[string]any {
	out := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		_, ok := cache.Get(p)
		out = append(out, structs.Map(&snapshotEntry{Path: p, Has: ok}))
	}
	return out
}
