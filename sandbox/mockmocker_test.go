package sandbox

import "testing"

func TestFnRecordsCalls(t *testing.T) {
	mm := NewModuleMocker()
	fn := mm.Fn()
	fn.Call(1, "a")
	fn.Call(2, "b")

	calls := fn.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(calls))
	}
	if calls[0][0] != 1 || calls[1][1] != "b" {
		t.Fatalf("unexpected recorded arguments: %v", calls)
	}
}

func TestMockReturnValue(t *testing.T) {
	mm := NewModuleMocker()
	fn := mm.Fn().MockReturnValue(42)
	if got := fn.Call(); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestSpyOnPreservesOriginalUntilRestored(t *testing.T) {
	mm := NewModuleMocker()
	calledOriginal := false
	original := func(args ...any) any {
		calledOriginal = true
		return "original"
	}
	spy := mm.SpyOn(original)

	if got := spy.Call(); got != "original" || !calledOriginal {
		t.Fatalf("expected spy to call through to the original")
	}

	spy.MockReturnValue("stubbed")
	if got := spy.Call(); got != "stubbed" {
		t.Fatalf("expected stubbed return after reconfiguring the spy")
	}

	mm.RestoreAllMocks()
	calledOriginal = false
	if got := spy.Call(); got != "original" || !calledOriginal {
		t.Fatalf("expected RestoreAllMocks to bring back the original function")
	}
}

func TestIsMockFunction(t *testing.T) {
	mm := NewModuleMocker()
	fn := mm.Fn()
	if !mm.IsMockFunction(fn) {
		t.Fatalf("expected fn to be recognized as a mock function")
	}
	if mm.IsMockFunction("not a mock") {
		t.Fatalf("expected a plain value to not be recognized as a mock function")
	}
}

func TestClearAllMocksKeepsImplementationButDropsCalls(t *testing.T) {
	mm := NewModuleMocker()
	fn := mm.Fn().MockReturnValue(7)
	fn.Call()
	mm.ClearAllMocks()

	if len(fn.Calls()) != 0 {
		t.Fatalf("expected no recorded calls after ClearAllMocks")
	}
	if got := fn.Call(); got != 7 {
		t.Fatalf("expected ClearAllMocks to preserve the mock implementation, got %v", got)
	}
}

func TestResetAllMocksDropsImplementation(t *testing.T) {
	mm := NewModuleMocker()
	fn := mm.Fn().MockReturnValue(7)
	mm.ResetAllMocks()

	if got := fn.Call(); got != nil {
		t.Fatalf("expected ResetAllMocks to drop the mock implementation, got %v", got)
	}
}

func TestMetadataRoundTripsThroughGenerate(t *testing.T) {
	mm := NewModuleMocker()
	exports := map[string]any{
		"greet": func(args ...any) any { return "hi" },
		"count": 3,
	}
	meta := mm.GetMetadata(exports)
	generated, ok := mm.GenerateFromMetadata(meta).(map[string]any)
	if !ok {
		t.Fatalf("expected GenerateFromMetadata to produce a map")
	}
	if !mm.IsMockFunction(generated["greet"]) {
		t.Fatalf("expected greet to be regenerated as a mock function")
	}
	if generated["count"] != 3 {
		t.Fatalf("expected count to round-trip by value, got %v", generated["count"])
	}
}
