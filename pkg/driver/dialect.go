package driver

import "go.starlark.net/syntax"

// Dialect selects the optional language features units may use.
type Dialect struct {
	Set             bool
	While           bool
	TopLevelControl bool
	GlobalReassign  bool
	Recursion       bool
}

// ExtendedDialect enables every optional feature. It is the loader's default.
func ExtendedDialect() Dialect {
	return Dialect{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// StandardDialect enables none of the optional features.
func StandardDialect() Dialect {
	return Dialect{}
}

func (d Dialect) fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             d.Set,
		While:           d.While,
		TopLevelControl: d.TopLevelControl,
		GlobalReassign:  d.GlobalReassign,
		Recursion:       d.Recursion,
	}
}
