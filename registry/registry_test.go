package registry

import "testing"

func TestSelectPrefersRealWhenPresent(t *testing.T) {
	regs := New()
	key := "/app/a.js"
	regs.Real.put(key, NewRecord(key))

	if got := regs.Select(IntentNormal, key); got != regs.Real {
		t.Fatalf("expected real registry when key already present")
	}
}

func TestSelectFallsBackToIsolatedReal(t *testing.T) {
	regs := New()
	regs.IsolatedReal = newModuleMap()

	got := regs.Select(IntentNormal, "/app/b.js")
	if got != regs.IsolatedReal {
		t.Fatalf("expected isolated-real registry for a key real doesn't own")
	}
}

func TestSelectInternalOnly(t *testing.T) {
	regs := New()
	if got := regs.Select(IntentInternalOnly, "/framework/x.js"); got != regs.Internal {
		t.Fatalf("expected internal registry for IntentInternalOnly")
	}
}

func TestIsolateModulesRestoresKeySets(t *testing.T) {
	regs := New()
	regs.Real.put("/app/a.js", NewRecord("/app/a.js"))
	regs.PutMock("modid-1", "mocked")

	beforeReal := len(regs.Real.Keys())
	beforeMock := len(regs.Mock.Keys())

	err := regs.IsolateModules(func() error {
		regs.IsolatedReal.put("/app/a.js", NewRecord("/app/a.js"))
		regs.PutMock("modid-1", "other-mock")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs.IsolatedReal != nil || regs.IsolatedMock != nil {
		t.Fatalf("isolation scope should be torn down after return")
	}
	if len(regs.Real.Keys()) != beforeReal {
		t.Fatalf("outer real registry key set changed across isolation")
	}
	if len(regs.Mock.Keys()) != beforeMock {
		t.Fatalf("outer mock registry key set changed across isolation")
	}
}

func TestIsolateModulesTornDownOnError(t *testing.T) {
	regs := New()
	sentinel := errorString("boom")
	err := regs.IsolateModules(func() error { return sentinel })
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if regs.IsolatedReal != nil || regs.IsolatedMock != nil {
		t.Fatalf("isolation scope must be torn down even when fn fails")
	}
}

func TestIsolateModulesTornDownOnPanic(t *testing.T) {
	regs := New()
	func() {
		defer func() { recover() }()
		_ = regs.IsolateModules(func() error {
			panic("evaluated code blew up")
		})
	}()
	if regs.IsolatedReal != nil || regs.IsolatedMock != nil {
		t.Fatalf("isolation scope must be torn down even when fn panics")
	}
}

func TestNestedIsolationRejected(t *testing.T) {
	regs := New()
	err := regs.IsolateModules(func() error {
		return regs.IsolateModules(func() error { return nil })
	})
	if err != ErrNestedIsolation {
		t.Fatalf("expected ErrNestedIsolation, got %v", err)
	}
}

func TestResetModulesPreservesInternal(t *testing.T) {
	regs := New()
	regs.Internal.put("/framework/x.js", NewRecord("/framework/x.js"))
	regs.Real.put("/app/a.js", NewRecord("/app/a.js"))
	regs.PutMock("modid-1", "mocked")

	regs.ResetModules()

	if !regs.Internal.has("/framework/x.js") {
		t.Fatalf("resetModules must not touch the internal registry")
	}
	if regs.Real.has("/app/a.js") {
		t.Fatalf("resetModules must clear the real registry")
	}
	if _, ok := regs.Mock.lookup("modid-1"); ok {
		t.Fatalf("resetModules must clear the mock registry")
	}
}

func TestParentLookupIsOnDemand(t *testing.T) {
	regs := New()
	parent := NewRecord("/app/parent.js")
	regs.Real.put(parent.Filename, parent)

	child := NewRecord("/app/child.js")
	child.SetCaller(parent.Filename, true)
	regs.Real.put(child.Filename, child)

	got := child.Parent(regs)
	if got != parent {
		t.Fatalf("expected parent lookup to find the caller record")
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
