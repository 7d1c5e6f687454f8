// Package transform is the transformer collaborator: given a file path and
// cached source text it returns an executable script handle, and separately
// turns ".json" text into its canonical form before the sandbox's own
// parser takes over. Source-map support is out of scope but the result
// shape still carries the field so the Loader/Executor wiring matches the
// collaborator contract exactly.
package transform

import "fmt"

// EvalResultVariable is the well-known identifier the transformer's output
// script binds its wrapper function to; the environment's RunScript
// convention (sandbox.Env) expects the last statement evaluated to be that
// function expression, so every Transformer implementation must end its
// emitted script with an expression, not a statement, bound to this name.
const EvalResultVariable = "__modrun_wrapper__"

// Result is what Transform returns: script is ready to hand to the
// environment's script runner; SourceMapPath and NeedsCoverage are optional,
// matching the collaborator interface even though this module does not
// implement source-map bookkeeping.
type Result struct {
	Script        string
	SourceMapPath string
	NeedsCoverage bool
}

// Options carries the handful of knobs a real transformer would consult
// (e.g. whether the caller asked for coverage instrumentation); modrun's
// own Transformer implementations only look at Coverage.
type Options struct {
	Coverage bool
}

// Transformer is the out-of-scope collaborator the Executor and Loader
// consume by interface only.
type Transformer interface {
	Transform(path string, opts Options, cachedSource string) (Result, error)
	TransformJSON(path string, opts Options, text string) (string, error)
}

// Passthrough wraps cached source verbatim in the fixed-prefix function
// signature the Executor invokes: module, exports, require, __dirname,
// __filename, global, the reflective control object, then one parameter
// per configured extra global. It performs no syntax translation — the
// module source must already be valid JavaScript — which is the right
// default for a runtime that does not implement source transformation.
type Passthrough struct {
	ExtraGlobals []string
}

func NewPassthrough(extraGlobals []string) *Passthrough {
	return &Passthrough{ExtraGlobals: extraGlobals}
}

func (p *Passthrough) Transform(path string, opts Options, cachedSource string) (Result, error) {
	script := fmt.Sprintf(
		"var %s = (function (module, exports, require, __dirname, __filename, global, j%s) {\n%s\n});\n%s",
		EvalResultVariable, p.extraGlobalParams(), cachedSource, EvalResultVariable,
	)
	return Result{Script: script, NeedsCoverage: opts.Coverage}, nil
}

func (p *Passthrough) extraGlobalParams() string {
	out := ""
	for _, name := range p.ExtraGlobals {
		out += ", " + name
	}
	return out
}

func (p *Passthrough) TransformJSON(path string, opts Options, text string) (string, error) {
	return text, nil
}
