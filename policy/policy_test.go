package policy

import "testing"

type fakeResolver struct {
	core             map[string]bool
	real             map[string]string // "from|request" -> path
	manual           map[string]string // "from|request" -> path
	ids              map[string]string // "from|request" -> id
	resource         map[string]string // request -> path, for GetModule
	lastVirtualMocks map[ModuleKey]struct{}
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		core:     map[string]bool{},
		real:     map[string]string{},
		manual:   map[string]string{},
		ids:      map[string]string{},
		resource: map[string]string{},
	}
}

func (f *fakeResolver) key(from, request string) string { return from + "|" + request }

func (f *fakeResolver) ModuleID(virtualMocks map[ModuleKey]struct{}, from, request string) ModuleID {
	f.lastVirtualMocks = virtualMocks
	if id, ok := f.ids[f.key(from, request)]; ok {
		return id
	}
	return "id:" + request
}

func (f *fakeResolver) Resolve(from, request string) (ModuleKey, error) {
	if p, ok := f.real[f.key(from, request)]; ok {
		return p, nil
	}
	return "", errNotFound(request)
}

func (f *fakeResolver) IsCoreModule(name string) bool { return f.core[name] }

func (f *fakeResolver) GetModule(name string) (ModuleKey, bool) {
	p, ok := f.resource[name]
	return p, ok
}

func (f *fakeResolver) GetMockModule(from, name string) (ModuleKey, bool) {
	p, ok := f.manual[f.key(from, name)]
	return p, ok
}

func (f *fakeResolver) ResolveStubModule(_, _ string) (ModuleKey, bool) { return "", false }

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

func TestExplicitFalseDominatesAutoMock(t *testing.T) {
	r := newFakeResolver()
	r.real["/app/a.js|x"] = "/app/x.js"
	e := New(r, true, nil)

	id := e.ModuleID("/app/a.js", "x")
	e.Unmock(id)

	d, err := e.ResolveKind("/app/a.js", "x", IntentNormal, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindReal || d.Path != "/app/x.js" {
		t.Fatalf("expected real module despite automock, got %+v", d)
	}
}

func TestCoreModuleNeverMocked(t *testing.T) {
	r := newFakeResolver()
	r.core["fs"] = true
	e := New(r, true, nil)

	d, err := e.ResolveKind("/app/a.js", "fs", IntentNormal, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindCore || d.Name != "fs" {
		t.Fatalf("expected core decision, got %+v", d)
	}
}

func TestVirtualMockRegistersWithoutRealFile(t *testing.T) {
	r := newFakeResolver()
	e := New(r, false, nil)

	id := e.ModuleID("/app/a.js", "v")
	e.AddVirtualMock("v")
	e.SetMockFactory(id, func() (any, error) { return map[string]any{"k": 1}, nil })

	d, err := e.ResolveKind("/app/a.js", "v", IntentNormal, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindAutoMock || d.ID != id {
		t.Fatalf("expected an automock decision carrying the factory's id, got %+v", d)
	}
	factory, ok := e.MockFactory(id)
	if !ok {
		t.Fatalf("expected a registered factory for virtual mock id")
	}
	v, _ := factory()
	m := v.(map[string]any)
	if m["k"] != 1 {
		t.Fatalf("unexpected factory result: %+v", v)
	}
}

func TestModuleIDThreadsVirtualMocksToResolver(t *testing.T) {
	r := newFakeResolver()
	e := New(r, false, nil)

	e.AddVirtualMock("v")
	e.ModuleID("/app/a.js", "v")

	if _, ok := r.lastVirtualMocks["v"]; !ok {
		t.Fatalf("expected the registered virtual mock name to reach the resolver's ModuleID call")
	}
}

func TestDeepUnmockAppliesTransitively(t *testing.T) {
	r := newFakeResolver()
	r.real["/app/peer.js|leaf"] = "/app/leaf.js"
	e := New(r, true, nil)

	peerID := e.ModuleID("", "/app/peer.js")
	e.DeepUnmock(peerID)

	shouldMock, err := e.shouldMock("/app/peer.js", "leaf", e.ModuleID("/app/peer.js", "leaf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shouldMock {
		t.Fatalf("expected deepUnmock on the caller to propagate to its dependency")
	}
}

func TestManualMockWinsWhenAbsentFromStep6(t *testing.T) {
	r := newFakeResolver()
	r.manual["/app/a.js|./foo"] = "/app/__mocks__/foo.js"
	e := New(r, false, nil)

	d, err := e.ResolveKind("/app/a.js", "./foo", IntentNormal, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindManualMock || d.Path != "/app/__mocks__/foo.js" {
		t.Fatalf("expected manual mock to win on resolution failure, got %+v", d)
	}
}

func TestManualMockWinsOnResolutionFailureFallback(t *testing.T) {
	r := newFakeResolver()
	r.manual["/app/a.js|./foo"] = "/app/__mocks__/foo.js"
	r.resource["./foo"] = "/app/foo.js" // step 6's "resource present" short-circuits the manual branch
	e := New(r, false, nil)

	shouldMock, err := e.shouldMock("/app/a.js", "./foo", e.ModuleID("/app/a.js", "./foo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !shouldMock {
		t.Fatalf("expected shouldMock fallback to true when resolution fails but a manual mock exists")
	}
}
