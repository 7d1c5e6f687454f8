package runtime

import (
	"fmt"
	"path/filepath"
	"plugin"

	"github.com/traitorjs/modrun/registry"
	"github.com/traitorjs/modrun/transform"
)

// load takes a pre-registered record and the path it resolved to, dispatches
// on file kind, and populates record.Exports. The
// caller (Require Surface) has already pre-registered record in whichever
// registry Select chose, before calling this, so cycles resolve to the
// partial record regardless of how load finishes.
func (rt *Runtime) load(record *registry.ModuleRecord, from, request string, path ModuleKey, intent Intent) error {
	ext := filepath.Ext(path)

	switch ext {
	case ".json":
		if err := rt.loadJSON(record, path); err != nil {
			return err
		}
	case ".node":
		if err := rt.loadNativeAddon(record, path); err != nil {
			return err
		}
	default:
		execFrom := from
		if request == "" {
			execFrom = "" // root-load signal: no caller.
		}
		if err := rt.execute(record, execFrom, path, intent); err != nil {
			return err
		}
	}

	record.Loaded = true
	return nil
}

// loadJSON implements the ".json" branch: strip a BOM (hostfs.Read already
// does this), run the transformer's data path, then parse the resulting
// text *inside the sandbox's own parser* rather than with encoding/json, so
// a data module observes the exact JSON semantics user code will.
func (rt *Runtime) loadJSON(record *registry.ModuleRecord, path ModuleKey) error {
	source, err := rt.readCachedSource(path)
	if err != nil {
		return fmt.Errorf("runtime: reading %s: %w", path, err)
	}
	text, err := rt.transformer.TransformJSON(path, transform.Options{}, source)
	if err != nil {
		return fmt.Errorf("runtime: transforming %s: %w", path, err)
	}
	if rt.env.IsTornDown() {
		rt.logTornDown(path)
		return nil
	}
	parsed, err := rt.env.ParseJSON(text)
	if err != nil {
		return fmt.Errorf("runtime: parsing %s: %w", path, err)
	}
	record.Exports = parsed
	return nil
}

// loadNativeAddon implements the ".node" branch via the host's native
// addon loader — here, the standard library's own plugin package, in place
// of a bespoke .so loader (see DESIGN.md for why that dependency was
// dropped). The addon must export a symbol named "Exports".
func (rt *Runtime) loadNativeAddon(record *registry.ModuleRecord, path ModuleKey) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("runtime: loading native addon %s: %w", path, err)
	}
	sym, err := p.Lookup("Exports")
	if err != nil {
		return fmt.Errorf("runtime: native addon %s has no Exports symbol: %w", path, err)
	}
	record.Exports = sym
	return nil
}

