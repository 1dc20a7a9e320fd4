// Package simerr defines the error taxonomy shared by the model builder and
// the simulation loop.
//
// Structural errors (ConfigurationError, UndefinedComponentError,
// CircularDependencyError) are produced while a model is built and before any
// timestep runs. KernelError is produced while the simulation steps nodes and
// always carries the node name and the date that failed.
package simerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"
)

// ConfigurationError reports a malformed static declaration.
type ConfigurationError struct {
	Node   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Node != "" {
		fmt.Fprintf(&b, " in node %q", e.Node)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Configf builds a ConfigurationError with a formatted reason.
func Configf(node, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Node: node, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UndefinedComponentError reports a reference to a node that was never
// declared. It also matches ConfigurationError through errors.Is/As.
type UndefinedComponentError struct {
	Node       string
	Reference  string
	Known      []string
	Suggestion string
}

// NewUndefinedComponentError builds the error and computes a did-you-mean
// suggestion from the known node names.
func NewUndefinedComponentError(node, reference, missing string, known []string) *UndefinedComponentError {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	return &UndefinedComponentError{
		Node:       node,
		Reference:  reference,
		Known:      sorted,
		Suggestion: Suggest(missing, sorted),
	}
}

func (e *UndefinedComponentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "node %q references undefined component %q", e.Node, e.Reference)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "; did you mean %q?", e.Suggestion)
	}
	if len(e.Known) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Known, ", "))
	}
	return b.String()
}

// As lets callers that only handle configuration errors treat an undefined
// component as one.
func (e *UndefinedComponentError) As(target any) bool {
	if t, ok := target.(**ConfigurationError); ok {
		*t = &ConfigurationError{Node: e.Node, Field: "reference", Reason: e.Error()}
		return true
	}
	return false
}

// Suggest returns the closest candidate to name, or "" if nothing is close
// enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.Distance(name, c, nil)
		if d > len(name)/2+1 {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// CircularDependencyError reports cycles that no lagged node breaks. Each
// cycle is a closed path: the first element is repeated at the end.
type CircularDependencyError struct {
	Cycles [][]string
}

func (e *CircularDependencyError) Error() string {
	paths := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		paths = append(paths, strings.Join(c, " -> "))
	}
	return fmt.Sprintf(
		"model contains circular dependencies that are not broken by a lagged node: %s; insert a lagged node on one edge of each cycle",
		strings.Join(paths, "; "),
	)
}

// KernelError wraps a failure raised while a node stepped.
type KernelError struct {
	Node string
	Type string
	Date time.Time
	Err  error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("node %q (%s) failed on %s: %v", e.Node, e.Type, e.Date.Format(time.DateOnly), e.Err)
}

func (e *KernelError) Unwrap() error { return e.Err }

// IsStructural reports whether err is raised at build time.
func IsStructural(err error) bool {
	var cfg *ConfigurationError
	var cyc *CircularDependencyError
	return errors.As(err, &cfg) || errors.As(err, &cyc)
}
