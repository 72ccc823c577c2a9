// Package builtins assembles the predeclared environment every unit is
// evaluated in.
package builtins

import (
	"fmt"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/thoughtpolice/a/pkg/store"
)

// CaptureName is the global through which units record values.
const CaptureName = "emit_json"

// Capture returns the emit_json builtin bound to rec. It takes exactly one
// positional argument and returns None.
func Capture(rec store.Recorder) *starlark.Builtin {
	return starlark.NewBuiltin(CaptureName, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var value starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &value); err != nil {
			return nil, err
		}
		if rec == nil {
			return starlark.None, nil
		}
		if err := rec.Capture(value); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.None, nil
	})
}

// Globals returns the predeclared names for one load request: the capture
// operation wired to rec plus the library extensions.
func Globals(rec store.Recorder) starlark.StringDict {
	globals := Extensions()
	globals[CaptureName] = Capture(rec)
	return globals
}

// Extensions returns the library modules available to every unit.
func Extensions() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"module": starlark.NewBuiltin("module", starlarkstruct.MakeModule),
		"json":   json.Module,
		"math":   math.Module,
		"time":   time.Module,
	}
}
