package rules

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/mangle/ast"
)

// Prompter supplies input lines. Prompt returns io.EOF once input ends.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

const (
	promptMain = "rules> "
	promptCont = "   ... "
)

// Shell is the interactive command interface over an Engine.
type Shell struct {
	engine *Engine
	in     Prompter
	out    io.Writer
}

// NewShell returns a shell reading commands from in and writing results to out.
func NewShell(engine *Engine, in Prompter, out io.Writer) *Shell {
	if engine == nil {
		engine = New()
	}
	return &Shell{engine: engine, in: in, out: out}
}

// Run reads and executes input until ::quit or end of input. Command errors
// are reported to the output and do not stop the shell; only a failing
// Prompter does.
func (s *Shell) Run() error {
	for {
		input, err := s.read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := s.Execute(input)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// read collects one command. Clauses may span lines and end at a line
// finishing with '.'.
func (s *Shell) read() (string, error) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := s.in.Prompt(prompt)
		if err != nil {
			if b.Len() > 0 && errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return "", err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if continues(b.String()) {
			continue
		}
		return b.String(), nil
	}
}

// continues reports whether input is an unfinished multi-line clause: a rule
// whose body has started but not yet ended with '.'.
func continues(input string) bool {
	text := strings.TrimSpace(input)
	if text == "" || strings.HasPrefix(text, "::") || strings.HasPrefix(text, "#") {
		return false
	}
	return strings.Contains(text, ":-") && !strings.HasSuffix(text, ".")
}

// Execute runs a single command or clause. It reports whether the shell
// should stop.
func (s *Shell) Execute(input string) (bool, error) {
	text := strings.TrimSpace(input)
	if text == "" || strings.HasPrefix(text, "#") {
		return false, nil
	}
	if !strings.HasPrefix(text, "::") {
		if strings.HasSuffix(text, ".") {
			return false, s.addClauses(text)
		}
		return false, s.query(text)
	}

	command, arg, _ := strings.Cut(strings.TrimPrefix(text, "::"), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(command) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "h":
		s.help()
		return false, nil
	case "load":
		if arg == "" {
			return false, fmt.Errorf("::load expects a file path")
		}
		if err := s.engine.LoadFile(arg); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "loaded %s (%d predicates)\n", arg, len(s.engine.Predicates()))
		return false, nil
	case "query":
		if arg == "" {
			return false, fmt.Errorf("::query expects an atom")
		}
		return false, s.query(arg)
	case "facts":
		if arg == "" {
			return false, fmt.Errorf("::facts expects a predicate name")
		}
		atoms, err := s.engine.Facts(arg)
		if err != nil {
			return false, err
		}
		s.printAtoms(atoms)
		return false, nil
	case "preds":
		for _, pred := range s.engine.Predicates() {
			fmt.Fprintf(s.out, "%s/%d\n", pred.Symbol, pred.Arity)
		}
		return false, nil
	case "reset":
		s.engine.Reset()
		fmt.Fprintln(s.out, "program cleared")
		return false, nil
	case "source":
		if src := s.engine.Source(); src != "" {
			fmt.Fprintln(s.out, strings.TrimRight(src, "\n"))
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command ::%s (try ::help)", command)
	}
}

func (s *Shell) addClauses(text string) error {
	if err := s.engine.AddSource(text); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "ok")
	return nil
}

func (s *Shell) query(pattern string) error {
	atoms, err := s.engine.Query(pattern)
	if err != nil {
		return err
	}
	s.printAtoms(atoms)
	return nil
}

func (s *Shell) printAtoms(atoms []ast.Atom) {
	for _, atom := range atoms {
		fmt.Fprintln(s.out, atom.String())
	}
	switch len(atoms) {
	case 1:
		fmt.Fprintln(s.out, "1 fact")
	default:
		fmt.Fprintf(s.out, "%d facts\n", len(atoms))
	}
}

func (s *Shell) help() {
	fmt.Fprintln(s.out, "Enter clauses ending in '.' to extend the program, or an atom to query it.")
	fmt.Fprintln(s.out, "")
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  ::load <file>     add the clauses in file")
	fmt.Fprintln(s.out, "  ::query <atom>    list facts matching atom, e.g. reach(X, \"c\")")
	fmt.Fprintln(s.out, "  ::facts <pred>    list every fact of a predicate")
	fmt.Fprintln(s.out, "  ::preds           list predicates")
	fmt.Fprintln(s.out, "  ::source          print the program")
	fmt.Fprintln(s.out, "  ::reset           clear the program")
	fmt.Fprintln(s.out, "  ::help            show this message")
	fmt.Fprintln(s.out, "  ::quit            leave the shell")
}
