package main

import (
	"fmt"
	"io"
	"strings"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  qlark [--file <file.star>]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Without --file a built-in example program is run.")
}

func parseFileFlag(args []string) (string, bool, error) {
	file := ""
	seen := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--help" || arg == "-h":
			return "", true, nil
		case arg == "--file" || arg == "-file":
			if i+1 >= len(args) {
				return "", false, fmt.Errorf("--file expects a value")
			}
			if seen {
				return "", false, fmt.Errorf("--file given more than once")
			}
			file = args[i+1]
			seen = true
			i++
		case strings.HasPrefix(arg, "--file="):
			if seen {
				return "", false, fmt.Errorf("--file given more than once")
			}
			file = strings.TrimPrefix(arg, "--file=")
			seen = true
		default:
			return "", false, fmt.Errorf("unexpected argument %q", arg)
		}
	}
	if seen && strings.TrimSpace(file) == "" {
		return "", false, fmt.Errorf("--file expects a value")
	}
	return file, false, nil
}
