// Package resolver is a minimal, filesystem-based implementation of the
// path resolver the core treats as an external collaborator. It supports
// relative/absolute requests, a configured core-module table, a configured
// set of resolvable extensions, __mocks__-directory manual-mock probing,
// and a moduleNameMapper-style stub table.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ModuleKey and ModuleID mirror the registry package's type aliases; the
// resolver package deliberately has no dependency on registry or policy so
// it can be reused by either without an import cycle.
type (
	ModuleKey = string
	ModuleID  = string
)

// Config configures one Resolver instance; it is read once at construction.
type Config struct {
	RootDir           string
	Extensions        []string          // tried in order, e.g. []string{".js", ".json"}
	CoreModules       map[string]bool   // core module name -> true
	StubModuleMapper  map[string]string // moduleNameMapper-style request -> stub path
	MocksDirName      string            // defaults to "__mocks__"
}

// Resolver is the concrete, filesystem-backed path resolver.
type Resolver struct {
	cfg Config

	// knownModules backs GetModule: a best-effort memo of requests that
	// have previously resolved successfully under some caller, used to
	// answer "does this bare name resolve to something real" without a
	// caller path (the automock resolution path passes only `request`).
	knownModules map[string]ModuleKey
}

// New constructs a Resolver. A zero Config is usable but resolves nothing
// beyond absolute paths.
func New(cfg Config) *Resolver {
	if cfg.MocksDirName == "" {
		cfg.MocksDirName = "__mocks__"
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".js", ".json"}
	}
	return &Resolver{cfg: cfg, knownModules: map[string]ModuleKey{}}
}

// IsCoreModule reports whether name is in the configured core-module table.
func (r *Resolver) IsCoreModule(name string) bool {
	return r.cfg.CoreModules[name]
}

// ModuleID derives a stable identifier for (from, request). When request is
// registered in virtualMocks, resolution is skipped entirely — a virtual
// mock is never expected to exist on disk, so there is nothing to probe
// for — and a deterministic UUID keyed by the request name stands in
// directly. Otherwise, when the request resolves to a real file, the
// resolved path is the identity, so two requests that alias to the same
// manual mock share an ID; when it can't be resolved, the same
// request-keyed UUID stands in, so the same virtual mock name always
// yields the same ID regardless of caller even if it was never registered.
func (r *Resolver) ModuleID(virtualMocks map[ModuleKey]struct{}, from, request string) ModuleID {
	if _, ok := virtualMocks[request]; ok {
		return virtualModuleID(request)
	}
	if path, err := r.Resolve(from, request); err == nil {
		return path
	}
	return virtualModuleID(request)
}

func virtualModuleID(request string) ModuleID {
	return uuid.NewMD5(uuid.Nil, []byte("virtual:"+request)).String()
}

// Resolve maps (from, request) to an absolute file path, trying the
// configured extensions in order and falling back to an index file inside
// a directory of the same name.
func (r *Resolver) Resolve(from, request string) (ModuleKey, error) {
	if request == "" {
		return "", fmt.Errorf("resolver: empty request")
	}

	var base string
	switch {
	case filepath.IsAbs(request):
		base = request
	case strings.HasPrefix(request, "."):
		base = filepath.Join(filepath.Dir(from), request)
	default:
		base = filepath.Join(r.cfg.RootDir, request)
	}

	if path, ok := r.tryResolveBase(base); ok {
		r.knownModules[request] = path
		return path, nil
	}
	return "", fmt.Errorf("resolver: cannot find module %q from %q", request, from)
}

func (r *Resolver) tryResolveBase(base string) (ModuleKey, bool) {
	if fi, err := os.Stat(base); err == nil && !fi.IsDir() {
		return filepath.Clean(base), true
	}
	for _, ext := range r.cfg.Extensions {
		candidate := base + ext
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return filepath.Clean(candidate), true
		}
	}
	for _, ext := range r.cfg.Extensions {
		candidate := filepath.Join(base, "index"+ext)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return filepath.Clean(candidate), true
		}
	}
	return "", false
}

// ResolveFromDirIfExists tries request relative to each of paths, in
// order, returning the first that resolves (require.resolve({paths})).
func (r *Resolver) ResolveFromDirIfExists(dir string, request string, paths []string) (ModuleKey, bool) {
	for _, p := range paths {
		base := filepath.Join(p, request)
		if path, ok := r.tryResolveBase(base); ok {
			return path, true
		}
	}
	return "", false
}

// GetModule answers "does this bare request name resolve to something
// real", independent of any particular caller — backed by the memo built
// up by prior successful Resolve calls.
func (r *Resolver) GetModule(name string) (ModuleKey, bool) {
	path, ok := r.knownModules[name]
	return path, ok
}

// GetMockModule probes for a manual mock adjacent to the resolved real
// path, under a __mocks__ directory, and returns it if present.
func (r *Resolver) GetMockModule(from, name string) (ModuleKey, bool) {
	real, err := r.Resolve(from, name)
	if err != nil {
		return "", false
	}
	return r.adjacentManualMock(real)
}

func (r *Resolver) adjacentManualMock(real ModuleKey) (ModuleKey, bool) {
	dir := filepath.Dir(real)
	base := filepath.Base(real)
	candidate := filepath.Join(dir, r.cfg.MocksDirName, base)
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		return filepath.Clean(candidate), true
	}
	return "", false
}

// ResolveStubModule consults the configured moduleNameMapper-style stub
// table. No stub metadata synthesis is implemented (out of scope).
func (r *Resolver) ResolveStubModule(_, name string) (ModuleKey, bool) {
	path, ok := r.cfg.StubModuleMapper[name]
	return path, ok
}

// GetModulePaths returns the directory-search sequence rooted at dir: dir
// itself, then the "node_modules" subdirectory of dir and of each ancestor
// up to RootDir.
func (r *Resolver) GetModulePaths(dir string) []string {
	paths := []string{dir}
	cur := dir
	for {
		nm := filepath.Join(cur, "node_modules")
		paths = append(paths, nm)
		if cur == r.cfg.RootDir || cur == filepath.Dir(cur) {
			break
		}
		cur = filepath.Dir(cur)
	}
	return paths
}

// GetModulePath computes the path request would resolve to relative to
// from's directory, without checking existence. Virtual mocks are not
// registered under this path: Hooks register them under the raw request
// string (policy.Engine.AddVirtualMock).
func (r *Resolver) GetModulePath(from, request string) ModuleKey {
	if filepath.IsAbs(request) {
		return filepath.Clean(request)
	}
	if strings.HasPrefix(request, ".") {
		return filepath.Clean(filepath.Join(filepath.Dir(from), request))
	}
	return "virtual:" + request
}

// SiblingExtensionHint scans from's directory for files sharing request's
// base name but carrying an extension other than the configured set, for
// NotFound-error augmentation: "did you mean ./foo.json instead of ./foo"?
func (r *Resolver) SiblingExtensionHint(from, request string) string {
	dir := filepath.Dir(from)
	wantBase := strings.TrimSuffix(filepath.Base(request), filepath.Ext(request))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var hints []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		if base != wantBase {
			continue
		}
		known := false
		for _, configured := range r.cfg.Extensions {
			if ext == configured {
				known = true
				break
			}
		}
		if !known {
			hints = append(hints, name)
		}
	}
	if len(hints) == 0 {
		return ""
	}
	sort.Strings(hints)
	return fmt.Sprintf("did you mean one of these: %s?", strings.Join(hints, ", "))
}
