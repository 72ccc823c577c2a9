// Package rules hosts a small Datalog workbench on top of Mangle: programs
// are accumulated as source text, evaluated to a fixpoint, and queried by
// atom patterns.
package rules

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// DefaultFactLimit caps the facts one evaluation may derive.
const DefaultFactLimit = 100000

// ErrUnknownPredicate is returned when a query names a predicate the current
// program never mentions.
var ErrUnknownPredicate = errors.New("unknown predicate")

// Engine holds the accumulated program and the facts of its last evaluation.
// It is not safe for concurrent use.
type Engine struct {
	sources   []string
	factLimit int
	logger    *slog.Logger

	info   *analysis.ProgramInfo
	store  factstore.FactStore
	strata int
}

// Option customises an Engine.
type Option func(*Engine)

// WithFactLimit bounds the number of facts an evaluation may create.
func WithFactLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.factLimit = limit
		}
	}
}

// WithLogger routes engine debug logging to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an engine with an empty program.
func New(opts ...Option) *Engine {
	e := &Engine{
		factLimit: DefaultFactLimit,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:     factstore.NewSimpleInMemoryStore(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// LoadFile appends the clauses in path to the program and re-evaluates.
func (e *Engine) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rules: read %s: %w", path, err)
	}
	if err := e.AddSource(string(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddSource appends clauses and declarations to the program and evaluates it
// to a fixpoint. When parsing, analysis or evaluation fails the engine keeps
// the previous program and facts.
func (e *Engine) AddSource(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if _, err := parse.Unit(strings.NewReader(text)); err != nil {
		return fmt.Errorf("rules: parse: %w", err)
	}
	next := append(append([]string{}, e.sources...), text)
	info, store, strata, err := e.evaluate(strings.Join(next, "\n"))
	if err != nil {
		return err
	}
	e.sources = next
	e.info = info
	e.store = store
	e.strata = strata
	return nil
}

// Reset discards the program and all facts.
func (e *Engine) Reset() {
	e.sources = nil
	e.info = nil
	e.store = factstore.NewSimpleInMemoryStore()
	e.strata = 0
}

// Source returns the accumulated program text.
func (e *Engine) Source() string {
	return strings.Join(e.sources, "\n")
}

// Strata reports the number of strata in the last successful evaluation.
func (e *Engine) Strata() int {
	return e.strata
}

func (e *Engine) evaluate(program string) (*analysis.ProgramInfo, factstore.FactStore, int, error) {
	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("rules: parse: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("rules: analysis: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	stats, err := engine.EvalProgramWithStats(info, store, engine.WithCreatedFactLimit(e.factLimit))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("rules: evaluate: %w", err)
	}
	e.logger.Debug("rules: fixpoint", "clauses", len(unit.Clauses), "strata", len(stats.Strata))
	return info, store, len(stats.Strata), nil
}

// Predicates lists the predicates of the current program sorted by name and
// arity.
func (e *Engine) Predicates() []ast.PredicateSym {
	if e.info == nil {
		return nil
	}
	preds := make([]ast.PredicateSym, 0, len(e.info.Decls))
	for pred := range e.info.Decls {
		preds = append(preds, pred)
	}
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Symbol != preds[j].Symbol {
			return preds[i].Symbol < preds[j].Symbol
		}
		return preds[i].Arity < preds[j].Arity
	})
	return preds
}

// Facts returns every fact of the named predicate, across all arities.
func (e *Engine) Facts(name string) ([]ast.Atom, error) {
	name = strings.TrimSpace(name)
	var found bool
	var out []ast.Atom
	for _, pred := range e.Predicates() {
		if pred.Symbol != name {
			continue
		}
		found = true
		out = append(out, e.collect(pred, nil)...)
	}
	if !found {
		return nil, fmt.Errorf("rules: %w %s", ErrUnknownPredicate, name)
	}
	sortAtoms(out)
	return out, nil
}

// Query returns the facts matching an atom pattern such as reach(X, "c").
// Constants must match exactly; variables match anything, and a variable
// used twice must bind the same value. The wildcard _ never binds.
func (e *Engine) Query(pattern string) ([]ast.Atom, error) {
	atom, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	pred := atom.Predicate
	if e.info == nil {
		return nil, fmt.Errorf("rules: %w %s/%d", ErrUnknownPredicate, pred.Symbol, pred.Arity)
	}
	if _, ok := e.info.Decls[pred]; !ok {
		return nil, fmt.Errorf("rules: %w %s/%d", ErrUnknownPredicate, pred.Symbol, pred.Arity)
	}
	out := e.collect(pred, &atom)
	sortAtoms(out)
	return out, nil
}

func (e *Engine) collect(pred ast.PredicateSym, pattern *ast.Atom) []ast.Atom {
	var out []ast.Atom
	e.store.GetFacts(ast.NewQuery(pred), func(fact ast.Atom) error {
		if pattern == nil || matches(*pattern, fact) {
			out = append(out, fact)
		}
		return nil
	})
	return out
}

func parsePattern(pattern string) (ast.Atom, error) {
	text := strings.TrimSpace(pattern)
	text = strings.TrimSuffix(text, ".")
	if text == "" {
		return ast.Atom{}, fmt.Errorf("rules: empty query")
	}
	unit, err := parse.Unit(strings.NewReader(text + "."))
	if err != nil {
		return ast.Atom{}, fmt.Errorf("rules: parse query %q: %w", pattern, err)
	}
	if len(unit.Clauses) != 1 || len(unit.Clauses[0].Premises) > 0 {
		return ast.Atom{}, fmt.Errorf("rules: query %q must be a single atom", pattern)
	}
	return unit.Clauses[0].Head, nil
}

func matches(pattern, fact ast.Atom) bool {
	if len(pattern.Args) != len(fact.Args) {
		return false
	}
	bound := make(map[string]string)
	for i, arg := range pattern.Args {
		value := fact.Args[i].String()
		if v, ok := arg.(ast.Variable); ok {
			if v.Symbol == "_" {
				continue
			}
			if prev, seen := bound[v.Symbol]; seen && prev != value {
				return false
			}
			bound[v.Symbol] = value
			continue
		}
		if arg.String() != value {
			return false
		}
	}
	return true
}

func sortAtoms(atoms []ast.Atom) {
	sort.Slice(atoms, func(i, j int) bool {
		return atoms[i].String() < atoms[j].String()
	})
}
