package driver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/thoughtpolice/a/pkg/builtins"
	"github.com/thoughtpolice/a/pkg/source"
	"github.com/thoughtpolice/a/pkg/store"
)

// Binding maps a name exported by a dependency to the local name it is bound
// to in the importing unit.
type Binding struct {
	Local    string
	Exported string
}

// Dependency is one load statement: the unit it names and the bindings it
// requests, in source order.
type Dependency struct {
	Unit     string
	Bindings []Binding
}

// Module is an evaluated unit. Globals is frozen before the module is handed
// to any importer.
type Module struct {
	Name         string
	Globals      starlark.StringDict
	Dependencies []Dependency
}

// Get returns a top-level binding of the module.
func (m *Module) Get(name string) (starlark.Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.Globals[name]
	return v, ok
}

// Names lists the module's top-level bindings in sorted order.
func (m *Module) Names() []string {
	if m == nil {
		return nil
	}
	return m.Globals.Keys()
}

// Program contains the entry module, every module in completion order, and
// the values captured while evaluating them.
type Program struct {
	Entry   *Module
	Modules []*Module
	Store   *store.Store
}

// Module looks up an evaluated module by unit name.
func (p *Program) Module(name string) (*Module, bool) {
	if p == nil {
		return nil, false
	}
	for _, mod := range p.Modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return nil, false
}

// LoadOptions configures optional loading behavior.
type LoadOptions struct {
	// Preload lists units evaluated, in order, before the entry unit. They
	// share the entry's memo and store.
	Preload []string
}

// Loader resolves units through a fetcher and evaluates them dependency-first.
type Loader struct {
	fetcher source.Fetcher
	dialect Dialect
	logger  *slog.Logger
	output  io.Writer
}

// Option customises a Loader.
type Option func(*Loader)

// WithDialect selects the language features units may use.
func WithDialect(d Dialect) Option {
	return func(l *Loader) {
		l.dialect = d
	}
}

// WithLogger routes loader debug logging to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPrintOutput sends the output of print() in units to w.
func WithPrintOutput(w io.Writer) Option {
	return func(l *Loader) {
		l.output = w
	}
}

// NewLoader constructs a loader over fetcher using the extended dialect.
func NewLoader(fetcher source.Fetcher, opts ...Option) (*Loader, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("loader: nil fetcher")
	}
	l := &Loader{
		fetcher: fetcher,
		dialect: ExtendedDialect(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		output:  io.Discard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.output == nil {
		l.output = io.Discard
	}
	return l, nil
}

// Load evaluates the entry unit after all of its transitive dependencies.
func (l *Loader) Load(entry string) (*Program, error) {
	return l.LoadWithOptions(entry, LoadOptions{})
}

// LoadWithOptions evaluates the preload units and then the entry unit. Each
// unit is fetched, parsed and evaluated at most once per call; a unit that is
// reached again while still being loaded is reported as a cycle.
func (l *Loader) LoadWithOptions(entry string, options LoadOptions) (*Program, error) {
	if l == nil || l.fetcher == nil {
		return nil, fmt.Errorf("loader: not initialised")
	}
	if strings.TrimSpace(entry) == "" {
		return nil, fmt.Errorf("loader: empty entry unit")
	}

	captured := store.New()
	predeclared := builtins.Globals(captured)
	fileOpts := l.dialect.fileOptions()

	loaded := make(map[string]*Module)
	inProgress := make(map[string]bool)
	var stack []string
	var ordered []*Module

	var loadUnit func(name, importer string) (*Module, error)
	loadUnit = func(name, importer string) (*Module, error) {
		if mod, ok := loaded[name]; ok {
			l.logger.Debug("loader: reuse", "unit", name, "importer", importer)
			return mod, nil
		}
		if inProgress[name] {
			return nil, &DependencyCycleError{Chain: cycleChain(stack, name)}
		}

		l.logger.Debug("loader: fetch", "unit", name, "importer", importer)
		src, err := l.fetcher.Fetch(name)
		if err != nil {
			if errors.Is(err, source.ErrNotFound) {
				return nil, &SourceNotFoundError{Unit: name, Importer: importer, Err: err}
			}
			return nil, fmt.Errorf("loader: fetch %s: %w", name, err)
		}

		inProgress[name] = true
		stack = append(stack, name)
		defer func() {
			delete(inProgress, name)
			stack = stack[:len(stack)-1]
		}()

		file, err := fileOpts.Parse(name, src, 0)
		if err != nil {
			return nil, newParseError(name, err)
		}

		deps := collectDependencies(file)
		depGlobals := make(map[string]starlark.StringDict, len(deps))
		for _, dep := range deps {
			mod, err := loadUnit(dep.Unit, name)
			if err != nil {
				return nil, err
			}
			depGlobals[dep.Unit] = mod.Globals
		}

		l.logger.Debug("loader: evaluate", "unit", name, "dependencies", len(deps))
		globals, err := l.evaluate(name, file, predeclared, depGlobals)
		if err != nil {
			return nil, err
		}
		globals.Freeze()

		mod := &Module{Name: name, Globals: globals, Dependencies: deps}
		loaded[name] = mod
		ordered = append(ordered, mod)
		return mod, nil
	}

	for _, name := range options.Preload {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := loadUnit(name, ""); err != nil {
			return nil, err
		}
	}

	entryModule, err := loadUnit(entry, "")
	if err != nil {
		return nil, err
	}
	l.logger.Debug("loader: done", "entry", entry, "modules", len(ordered), "captured", captured.Len())

	return &Program{Entry: entryModule, Modules: ordered, Store: captured}, nil
}

func (l *Loader) evaluate(name string, file *syntax.File, predeclared starlark.StringDict, deps map[string]starlark.StringDict) (starlark.StringDict, error) {
	prog, err := starlark.FileProgram(file, predeclared.Has)
	if err != nil {
		return nil, newEvaluationError(name, err)
	}
	thread := &starlark.Thread{
		Name: name,
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			globals, ok := deps[module]
			if !ok {
				return nil, fmt.Errorf("unit %q was not resolved before evaluation", module)
			}
			return globals, nil
		},
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(l.output, msg)
		},
	}
	globals, err := prog.Init(thread, predeclared)
	if err != nil {
		return nil, newEvaluationError(name, err)
	}
	return globals, nil
}

// collectDependencies returns the unit's load statements in textual order.
func collectDependencies(file *syntax.File) []Dependency {
	var deps []Dependency
	for _, stmt := range file.Stmts {
		load, ok := stmt.(*syntax.LoadStmt)
		if !ok {
			continue
		}
		bindings := make([]Binding, 0, len(load.To))
		for i := range load.To {
			bindings = append(bindings, Binding{Local: load.To[i].Name, Exported: load.From[i].Name})
		}
		deps = append(deps, Dependency{Unit: load.ModuleName(), Bindings: bindings})
	}
	return deps
}

func cycleChain(stack []string, again string) []string {
	start := 0
	for i, name := range stack {
		if name == again {
			start = i
			break
		}
	}
	chain := append([]string{}, stack[start:]...)
	return append(chain, again)
}

// DependencyOrder lists the program's unit names in evaluation order.
func (p *Program) DependencyOrder() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Modules))
	for _, mod := range p.Modules {
		names = append(names, mod.Name)
	}
	return names
}

// Exports lists the names a module offers to importers: its top-level
// bindings without a leading underscore.
func (m *Module) Exports() []string {
	if m == nil {
		return nil
	}
	var names []string
	for name := range m.Globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
