package transform

import (
	"strings"
	"testing"
)

func TestPassthroughEmbedsEvalResultVariable(t *testing.T) {
	p := NewPassthrough([]string{"expect"})
	res, err := p.Transform("/app/a.js", Options{}, "exports.x = 1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Script, EvalResultVariable) {
		t.Fatalf("expected the script to bind %s", EvalResultVariable)
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Script), EvalResultVariable) {
		t.Fatalf("expected the script's final expression to be the wrapper variable")
	}
	if !strings.Contains(res.Script, ", expect") {
		t.Fatalf("expected the extra global to be appended to the wrapper signature")
	}
}

func TestTransformJSONIsIdentity(t *testing.T) {
	p := NewPassthrough(nil)
	out, err := p.TransformJSON("/app/a.json", Options{}, `{"x":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"x":1}` {
		t.Fatalf("expected identity passthrough, got %q", out)
	}
}
