package builtins

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/thoughtpolice/a/pkg/store"
)

func exec(t *testing.T, rec store.Recorder, src string) error {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	_, err := starlark.ExecFile(thread, "test.star", src, Globals(rec))
	return err
}

func TestCaptureRecordsValues(t *testing.T) {
	s := store.New()
	err := exec(t, s, `
emit_json(2 + 3)
emit_json(4 * 5)
emit_json({"y": [1, 2], "x": struct(b = True, a = None)})
`)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	got := s.Entries()
	want := []string{"5", "20", `{"x":{"a":null,"b":true},"y":[1,2]}`}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("entries = %#v, want %#v", got, want)
	}
}

func TestCaptureReturnsNone(t *testing.T) {
	s := store.New()
	if err := exec(t, s, "r = emit_json(1)\nemit_json(r == None)\n"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := strings.Join(s.Entries(), ","); got != "1,true" {
		t.Fatalf("entries = %s", got)
	}
}

func TestCaptureArity(t *testing.T) {
	for _, src := range []string{"emit_json()", "emit_json(1, 2)", "emit_json(value = 1)"} {
		if err := exec(t, store.New(), src); err == nil {
			t.Fatalf("%s: expected arity error", src)
		}
	}
}

func TestCaptureRejectsFunctions(t *testing.T) {
	s := store.New()
	err := exec(t, s, "def f():\n    pass\nemit_json(f)\n")
	if err == nil {
		t.Fatalf("expected error capturing a function")
	}
	if !strings.Contains(err.Error(), "emit_json") {
		t.Fatalf("error should mention emit_json: %v", err)
	}
}

func TestExtensionsAvailable(t *testing.T) {
	s := store.New()
	err := exec(t, s, `
emit_json(json.decode('{"k": 1}')["k"])
emit_json(math.pi > 3)
emit_json(module("m", v = 1).v)
emit_json(hasattr(time, "now"))
`)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := strings.Join(s.Entries(), ","); got != "1,true,1,true" {
		t.Fatalf("entries = %s", got)
	}
}
