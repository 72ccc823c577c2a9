package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/thoughtpolice/a/pkg/driver"
	"github.com/thoughtpolice/a/pkg/source"
)

const (
	exampleUnit    = "<example>"
	exampleProgram = `print("hello world")`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	file, help, err := parseFileFlag(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		printUsage(stderr)
		return 2
	}
	if help {
		printUsage(stdout)
		return 0
	}

	entry, fetcher, dialect, err := prepareEntry(file)
	if err != nil {
		fmt.Fprintf(stderr, "failed to prepare entry: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	loader, err := driver.NewLoader(fetcher,
		driver.WithDialect(dialect),
		driver.WithLogger(logger),
		driver.WithPrintOutput(stdout),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize loader: %v\n", err)
		return 1
	}

	program, err := loader.Load(entry)
	if err != nil {
		reportLoadError(stderr, err)
		return 1
	}
	fmt.Fprint(stdout, program.Store.Dump())
	return 0
}

// prepareEntry picks the root unit and the fetch chain serving it. Without a
// file the built-in example program is the only unit.
func prepareEntry(file string) (string, source.Fetcher, driver.Dialect, error) {
	if file == "" {
		return exampleUnit, source.Memory{exampleUnit: exampleProgram}, driver.ExtendedDialect(), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", nil, driver.Dialect{}, fmt.Errorf("resolve %s: %w", file, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, driver.Dialect{}, err
	}
	if info.IsDir() {
		return "", nil, driver.Dialect{}, fmt.Errorf("%s is a directory", file)
	}

	chain := source.Chain{source.File{Name: file, Path: abs}}
	dialect := driver.ExtendedDialect()

	manifestPath, err := driver.FindManifest(filepath.Dir(abs))
	switch {
	case err == nil:
		manifest, err := driver.LoadManifest(manifestPath)
		if err != nil {
			return "", nil, driver.Dialect{}, err
		}
		extra, err := manifest.Fetchers()
		if err != nil {
			return "", nil, driver.Dialect{}, err
		}
		chain = append(chain, extra...)
		dialect = manifest.Dialect
	case errors.Is(err, driver.ErrManifestNotFound):
		siblings, err := source.NewDir("", filepath.Dir(abs))
		if err != nil {
			return "", nil, driver.Dialect{}, err
		}
		chain = append(chain, siblings)
	default:
		return "", nil, driver.Dialect{}, err
	}
	return file, chain, dialect, nil
}

func reportLoadError(w io.Writer, err error) {
	var parseErr *driver.ParseError
	var evalErr *driver.EvaluationError
	switch {
	case errors.As(err, &parseErr):
		fmt.Fprintln(w, "parse error: "+driver.DescribeParserDiagnostic(parseErr.Diagnostic))
	case errors.As(err, &evalErr):
		fmt.Fprintln(w, evalErr.Error())
		if bt := strings.TrimSpace(evalErr.Backtrace); bt != "" {
			fmt.Fprintln(w, bt)
		}
	default:
		fmt.Fprintf(w, "failed to load program: %v\n", err)
	}
}
