package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/thoughtpolice/a/pkg/rules"
)

const historyFile = ".qlark_rules_history"

func main() {
	os.Exit(interactive(os.Args[1:]))
}

// interactive wires the shell to a line editor on the controlling terminal,
// with history persisted in the user's home directory.
func interactive(args []string) int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	return run(args, &linePrompter{state: ln}, os.Stdout, os.Stderr)
}

type linePrompter struct {
	state *liner.State
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		p.state.AppendHistory(line)
	}
	return line, nil
}

type options struct {
	file      string
	factLimit int
	verbose   bool
	help      bool
}

func run(args []string, in rules.Prompter, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		printUsage(stderr)
		return 2
	}
	if opts.help {
		printUsage(stdout)
		return 0
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	engine := rules.New(rules.WithFactLimit(opts.factLimit), rules.WithLogger(logger))

	if opts.file != "" {
		if err := engine.LoadFile(opts.file); err != nil {
			fmt.Fprintf(stderr, "failed to load %s: %v\n", opts.file, err)
			return 1
		}
	}

	if err := rules.NewShell(engine, in, stdout).Run(); err != nil {
		fmt.Fprintf(stderr, "rules: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string) (options, error) {
	opts := options{factLimit: rules.DefaultFactLimit}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			opts.help = true
			return opts, nil
		case arg == "-v" || arg == "--verbose":
			opts.verbose = true
		case arg == "--fact-limit" || strings.HasPrefix(arg, "--fact-limit="):
			value := strings.TrimPrefix(arg, "--fact-limit=")
			if arg == "--fact-limit" {
				if i+1 >= len(args) {
					return options{}, fmt.Errorf("--fact-limit expects a value")
				}
				i++
				value = args[i]
			}
			limit, err := strconv.Atoi(value)
			if err != nil || limit <= 0 {
				return options{}, fmt.Errorf("--fact-limit expects a positive integer, got %q", value)
			}
			opts.factLimit = limit
		case strings.HasPrefix(arg, "-"):
			return options{}, fmt.Errorf("unknown flag %s", arg)
		default:
			if opts.file != "" {
				return options{}, fmt.Errorf("unexpected argument %q", arg)
			}
			opts.file = arg
		}
	}
	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rules [--fact-limit N] [--verbose] [program.mg]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Loads the optional program and starts an interactive shell. Type ::help for commands.")
}
