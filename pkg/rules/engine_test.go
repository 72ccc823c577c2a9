package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/mangle/ast"
)

const graphProgram = `
edge("a", "b").
edge("b", "c").
edge("c", "d").
reach(X, Y) :- edge(X, Y).
reach(X, Z) :- edge(X, Y), reach(Y, Z).
`

func mustEngine(t *testing.T, src string, opts ...Option) *Engine {
	t.Helper()
	e := New(opts...)
	if err := e.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	return e
}

func firstArgs(t *testing.T, atoms []ast.Atom) []string {
	t.Helper()
	out := make([]string, 0, len(atoms))
	for _, atom := range atoms {
		c, ok := atom.Args[0].(ast.Constant)
		if !ok {
			t.Fatalf("argument of %v is not a constant", atom)
		}
		out = append(out, c.Symbol)
	}
	return out
}

func TestEngineDerivesTransitiveFacts(t *testing.T) {
	e := mustEngine(t, graphProgram)
	facts, err := e.Facts("reach")
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts) != 6 {
		t.Fatalf("expected 6 reach facts, got %d: %v", len(facts), facts)
	}
	if e.Strata() == 0 {
		t.Fatalf("expected at least one stratum")
	}
}

func TestEngineQueryFiltersConstants(t *testing.T) {
	e := mustEngine(t, graphProgram)
	got, err := e.Query(`reach(X, "d")`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if strings.Join(firstArgs(t, got), ",") != "a,b,c" {
		t.Fatalf("unexpected sources: %v", got)
	}

	got, err = e.Query(`reach("b", _)`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 facts from b, got %v", got)
	}
}

func TestEngineQueryRepeatedVariable(t *testing.T) {
	e := mustEngine(t, graphProgram)
	got, err := e.Query("reach(X, X)")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("acyclic graph should have no self reach: %v", got)
	}

	if err := e.AddSource(`edge("d", "a").`); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	got, err = e.Query("reach(X, X)")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if strings.Join(firstArgs(t, got), ",") != "a,b,c,d" {
		t.Fatalf("expected every node on the cycle, got %v", got)
	}
}

func TestEngineUnknownPredicate(t *testing.T) {
	e := mustEngine(t, graphProgram)
	if _, err := e.Query("missing(X)"); !errors.Is(err, ErrUnknownPredicate) {
		t.Fatalf("expected ErrUnknownPredicate, got %v", err)
	}
	if _, err := e.Query("reach(X)"); !errors.Is(err, ErrUnknownPredicate) {
		t.Fatalf("arity mismatch should be unknown, got %v", err)
	}
	if _, err := e.Facts("missing"); !errors.Is(err, ErrUnknownPredicate) {
		t.Fatalf("expected ErrUnknownPredicate, got %v", err)
	}
	if _, err := New().Query("edge(X, Y)"); !errors.Is(err, ErrUnknownPredicate) {
		t.Fatalf("empty engine should report unknown predicate, got %v", err)
	}
}

func TestEngineKeepsProgramOnFailure(t *testing.T) {
	e := mustEngine(t, graphProgram)
	before := e.Source()
	if err := e.AddSource("edge(\"x\", "); err == nil {
		t.Fatalf("expected parse error")
	}
	if e.Source() != before {
		t.Fatalf("program changed after failed AddSource")
	}
	facts, err := e.Facts("edge")
	if err != nil || len(facts) != 3 {
		t.Fatalf("facts lost after failure: %v %v", facts, err)
	}
}

func TestEngineFactLimit(t *testing.T) {
	e := New(WithFactLimit(2))
	if err := e.AddSource(graphProgram); err == nil {
		t.Fatalf("expected fact limit error")
	}
	if e.Source() != "" {
		t.Fatalf("failed program should not be kept")
	}
}

func TestEnginePredicatesAndReset(t *testing.T) {
	e := mustEngine(t, graphProgram)
	var names []string
	for _, pred := range e.Predicates() {
		names = append(names, pred.Symbol)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "edge") || !strings.Contains(joined, "reach") {
		t.Fatalf("predicates = %v", names)
	}
	e.Reset()
	if len(e.Predicates()) != 0 || e.Source() != "" {
		t.Fatalf("Reset left state behind")
	}
}

func TestEngineLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.mg")
	if err := os.WriteFile(path, []byte(graphProgram), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := New()
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if facts, _ := e.Facts("edge"); len(facts) != 3 {
		t.Fatalf("edge facts = %v", facts)
	}
	if err := e.LoadFile(filepath.Join(t.TempDir(), "missing.mg")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
