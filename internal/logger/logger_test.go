package logger

import "testing"

func TestSetLevelIgnoresUnrecognizedName(t *testing.T) {
	defer SetLevel(DEBUG)
	SetLevel(WARN)
	SetLevel("not-a-level")
	if minLevel != LevelWarn {
		t.Fatalf("expected an unrecognized level name to leave minLevel untouched, got %v", minLevel)
	}
}

func TestSetLevelIsCaseInsensitive(t *testing.T) {
	defer SetLevel(DEBUG)
	SetLevel("error")
	if minLevel != LevelError {
		t.Fatalf("expected lowercase level names to resolve, got %v", minLevel)
	}
}

func TestForModuleTagsLinesWithModulePath(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, DEBUG); err != nil {
		t.Fatalf("unexpected error initializing: %v", err)
	}
	ForModule("/app/a.js").Info("loaded")
}
