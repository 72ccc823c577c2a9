package store

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
)

// Recorder is the capability handed to evaluated code. It is the only way a
// unit can reach the Store.
type Recorder interface {
	Capture(value starlark.Value) error
}

// Store is an append-only, ordered record of values captured during one
// load request. Entries hold the canonical JSON text of each value.
type Store struct {
	entries []string
}

var _ Recorder = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Capture encodes value and appends it. Values the encoder rejects leave the
// store unchanged.
func (s *Store) Capture(value starlark.Value) error {
	if s == nil {
		return fmt.Errorf("store: nil store")
	}
	text, err := Encode(value)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, text)
	return nil
}

// Entries returns a copy of the captured values in capture order.
func (s *Store) Entries() []string {
	if s == nil || len(s.entries) == 0 {
		return []string{}
	}
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the number of captured values.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *Store) String() string {
	entries := s.Entries()
	quoted := make([]string, 0, len(entries))
	for _, entry := range entries {
		quoted = append(quoted, fmt.Sprintf("%q", entry))
	}
	return "Store[" + strings.Join(quoted, ", ") + "]"
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders the entries in debug form for CLI output.
func (s *Store) Dump() string {
	return dumpConfig.Sdump(s.Entries())
}

var encodeFn = json.Module.Members["encode"]

// Encode serializes value the way json.encode does: dict keys and struct
// fields are emitted in sorted order, so equal values encode identically.
func Encode(value starlark.Value) (string, error) {
	if value == nil {
		return "", fmt.Errorf("store: cannot encode nil value")
	}
	thread := &starlark.Thread{Name: "store.encode"}
	result, err := starlark.Call(thread, encodeFn, starlark.Tuple{value}, nil)
	if err != nil {
		return "", fmt.Errorf("store: encode %s: %w", value.Type(), err)
	}
	text, ok := starlark.AsString(result)
	if !ok {
		return "", fmt.Errorf("store: encoder returned %s, want string", result.Type())
	}
	return text, nil
}
