package driver

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/thoughtpolice/a/pkg/source"
)

// ErrSourceNotFound matches every SourceNotFoundError.
var ErrSourceNotFound = errors.New("source not found")

// DiagnosticLocation references a source position for diagnostics.
type DiagnosticLocation struct {
	Path   string
	Line   int
	Column int
}

// ParserDiagnostic represents a structured parser diagnostic.
type ParserDiagnostic struct {
	Message  string
	Location DiagnosticLocation
}

// SourceNotFoundError reports a unit the fetcher could not supply. Importer
// is empty for the root unit.
type SourceNotFoundError struct {
	Unit     string
	Importer string
	Err      error
}

func (e *SourceNotFoundError) Error() string {
	if e.Importer != "" {
		return fmt.Sprintf("loader: source not found: %s (loaded by %s)", e.Unit, e.Importer)
	}
	return fmt.Sprintf("loader: source not found: %s", e.Unit)
}

func (e *SourceNotFoundError) Is(target error) bool {
	return target == ErrSourceNotFound || target == source.ErrNotFound
}

func (e *SourceNotFoundError) Unwrap() error {
	return e.Err
}

// ParseError wraps a parser diagnostic for a unit whose source is malformed.
type ParseError struct {
	Unit       string
	Diagnostic ParserDiagnostic
	Err        error
}

func (e *ParseError) Error() string {
	return "loader: parse error: " + DescribeParserDiagnostic(e.Diagnostic)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EvaluationError reports a unit whose statements failed to resolve or raised
// an error while executing.
type EvaluationError struct {
	Unit      string
	Message   string
	Location  DiagnosticLocation
	Backtrace string
	Err       error
}

func (e *EvaluationError) Error() string {
	location := formatDiagnosticLocation(e.Location)
	if location == "" {
		location = e.Unit
	}
	return fmt.Sprintf("loader: evaluation error in %s: %s", location, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// DependencyCycleError reports a unit that (transitively) loads itself.
type DependencyCycleError struct {
	Chain []string
}

func (e *DependencyCycleError) Error() string {
	return "loader: dependency cycle detected: " + strings.Join(e.Chain, " -> ")
}

// DescribeParserDiagnostic formats a parser diagnostic for CLI output.
func DescribeParserDiagnostic(diag ParserDiagnostic) string {
	message := strings.TrimSpace(diag.Message)
	location := formatDiagnosticLocation(diag.Location)
	if location != "" {
		return fmt.Sprintf("%s: %s", location, message)
	}
	return message
}

func formatDiagnosticLocation(loc DiagnosticLocation) string {
	path := strings.TrimSpace(loc.Path)
	line := loc.Line
	column := loc.Column
	switch {
	case path != "" && line > 0 && column > 0:
		return fmt.Sprintf("%s:%d:%d", path, line, column)
	case path != "" && line > 0:
		return fmt.Sprintf("%s:%d", path, line)
	case path != "":
		return path
	case line > 0 && column > 0:
		return fmt.Sprintf("line %d, column %d", line, column)
	case line > 0:
		return fmt.Sprintf("line %d", line)
	default:
		return ""
	}
}

func locationOf(unit string, pos syntax.Position) DiagnosticLocation {
	loc := DiagnosticLocation{Path: unit}
	if pos.IsValid() {
		loc.Line = int(pos.Line)
		loc.Column = int(pos.Col)
	}
	return loc
}

func newParseError(unit string, err error) error {
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return &ParseError{
			Unit: unit,
			Diagnostic: ParserDiagnostic{
				Message:  syntaxErr.Msg,
				Location: locationOf(unit, syntaxErr.Pos),
			},
			Err: err,
		}
	}
	return &ParseError{
		Unit:       unit,
		Diagnostic: ParserDiagnostic{Message: err.Error(), Location: DiagnosticLocation{Path: unit}},
		Err:        err,
	}
}

func newEvaluationError(unit string, err error) error {
	evalErr := &EvaluationError{Unit: unit, Message: err.Error(), Location: DiagnosticLocation{Path: unit}, Err: err}

	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		first := resolveErrs[0]
		evalErr.Message = first.Msg
		evalErr.Location = locationOf(unit, first.Pos)
		if len(resolveErrs) > 1 {
			evalErr.Message = fmt.Sprintf("%s (and %d more)", first.Msg, len(resolveErrs)-1)
		}
		return evalErr
	}

	var starErr *starlark.EvalError
	if errors.As(err, &starErr) {
		evalErr.Message = starErr.Msg
		evalErr.Backtrace = starErr.Backtrace()
		for i := len(starErr.CallStack) - 1; i >= 0; i-- {
			pos := starErr.CallStack[i].Pos
			if pos.IsValid() && pos.Filename() == unit {
				evalErr.Location = locationOf(unit, pos)
				break
			}
		}
	}
	return evalErr
}
