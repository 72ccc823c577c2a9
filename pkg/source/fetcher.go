// Package source supplies unit source text to the loader. Every fetcher maps
// a unit name to its text or reports ErrNotFound.
package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound reports that a fetcher has no unit with the requested name.
var ErrNotFound = errors.New("source not found")

// Fetcher resolves a unit name to source text.
type Fetcher interface {
	Fetch(name string) (string, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func func(name string) (string, error)

func (f Func) Fetch(name string) (string, error) {
	if f == nil {
		return "", notFound(name)
	}
	return f(name)
}

// Memory serves units from an in-memory map keyed by unit name.
type Memory map[string]string

func (m Memory) Fetch(name string) (string, error) {
	src, ok := m[name]
	if !ok {
		return "", notFound(name)
	}
	return src, nil
}

// Names lists the units held by m in sorted order.
func (m Memory) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain tries each fetcher in order. A fetcher answering ErrNotFound passes
// the request on; any other error stops the chain.
type Chain []Fetcher

func (c Chain) Fetch(name string) (string, error) {
	for _, f := range c {
		if f == nil {
			continue
		}
		src, err := f.Fetch(name)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", notFound(name)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("source: empty unit name")
	}
	return trimmed, nil
}
