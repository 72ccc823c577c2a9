package rules

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type scriptedPrompter struct {
	lines   []string
	prompts []string
}

func (p *scriptedPrompter) Prompt(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func runShell(t *testing.T, lines ...string) (string, *scriptedPrompter) {
	t.Helper()
	in := &scriptedPrompter{lines: lines}
	var out bytes.Buffer
	if err := NewShell(New(), in, &out).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), in
}

func TestShellClausesAndQueries(t *testing.T) {
	out, _ := runShell(t,
		`edge("a", "b").`,
		`edge("b", "c").`,
		`reach(X, Y) :- edge(X, Y).`,
		`reach(X, Z) :- edge(X, Y), reach(Y, Z).`,
		`reach(X, "c")`,
		`::facts edge`,
	)
	if strings.Count(out, "ok\n") != 4 {
		t.Fatalf("expected four acknowledgements:\n%s", out)
	}
	if !strings.Contains(out, "2 facts\n") {
		t.Fatalf("expected two matches for reach(X, \"c\"):\n%s", out)
	}
	if !strings.Contains(out, "reach(") || !strings.Contains(out, "edge(") {
		t.Fatalf("facts not printed:\n%s", out)
	}
}

func TestShellMultiLineRule(t *testing.T) {
	out, in := runShell(t,
		`edge("a", "b").`,
		`reach(X, Y) :-`,
		`  edge(X, Y).`,
		`::query reach("a", Y)`,
	)
	if !strings.Contains(out, "1 fact\n") {
		t.Fatalf("multi-line rule not applied:\n%s", out)
	}
	found := false
	for _, p := range in.prompts {
		if p == promptCont {
			found = true
		}
	}
	if !found {
		t.Fatalf("continuation prompt never shown: %v", in.prompts)
	}
}

func TestShellReportsErrorsAndContinues(t *testing.T) {
	out, _ := runShell(t,
		`::bogus`,
		`missing(X)`,
		`::load`,
		`edge("a", "b").`,
		`::preds`,
	)
	if !strings.Contains(out, "error: unknown command ::bogus") {
		t.Fatalf("missing unknown command error:\n%s", out)
	}
	if !strings.Contains(out, "unknown predicate") {
		t.Fatalf("missing unknown predicate error:\n%s", out)
	}
	if !strings.Contains(out, "::load expects a file path") {
		t.Fatalf("missing ::load usage error:\n%s", out)
	}
	if !strings.Contains(out, "edge/2\n") {
		t.Fatalf("predicate listing missing:\n%s", out)
	}
}

func TestShellQuitStopsReading(t *testing.T) {
	out, in := runShell(t, "::quit", `edge("a", "b").`)
	if strings.Contains(out, "ok") {
		t.Fatalf("input after ::quit was executed:\n%s", out)
	}
	if len(in.lines) != 1 {
		t.Fatalf("expected remaining input to be unread, got %v", in.lines)
	}
}

func TestShellLoadAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.mg")
	if err := os.WriteFile(path, []byte("edge(\"a\", \"b\").\nedge(\"b\", \"c\").\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, _ := runShell(t, "::load "+path, "::facts edge", "::reset", "::facts edge", "::help")
	if !strings.Contains(out, "loaded "+path) {
		t.Fatalf("load not reported:\n%s", out)
	}
	if !strings.Contains(out, "2 facts\n") {
		t.Fatalf("loaded facts not listed:\n%s", out)
	}
	if !strings.Contains(out, "program cleared") || !strings.Contains(out, "error: rules: unknown predicate edge") {
		t.Fatalf("reset not effective:\n%s", out)
	}
	if !strings.Contains(out, "::load <file>") {
		t.Fatalf("help not printed:\n%s", out)
	}
}

type failingPrompter struct{}

func (failingPrompter) Prompt(string) (string, error) {
	return "", errors.New("terminal gone")
}

func TestShellPropagatesPrompterFailure(t *testing.T) {
	var out bytes.Buffer
	err := NewShell(nil, failingPrompter{}, &out).Run()
	if err == nil || !strings.Contains(err.Error(), "terminal gone") {
		t.Fatalf("expected prompter error, got %v", err)
	}
}
