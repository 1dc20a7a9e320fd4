// Package nodeid parses the dot-notation references used in model files to
// point at a node or at one output of a node: "reservoir" or
// "reservoir.storage".
package nodeid

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// Ref is a parsed reference. Output is empty when the reference names only
// the node; the builder then resolves it to the node's default output.
type Ref struct {
	Node   string
	Output string
}

// String renders the reference back into dot notation.
func (r Ref) String() string {
	if r.Output == "" {
		return r.Node
	}
	return r.Node + "." + r.Output
}

// WithOutput returns a copy of r pointing at the given output.
func (r Ref) WithOutput(output string) Ref {
	r.Output = output
	return r
}

// Parse parses "node" or "node.output".
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty reference")
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return Ref{}, fmt.Errorf("invalid reference %q: leading or trailing dot", s)
	}
	if strings.Contains(s, "..") {
		return Ref{}, fmt.Errorf("invalid reference %q: consecutive dots", s)
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Ref{}, fmt.Errorf("invalid reference %q: expected 'node' or 'node.output'", s)
	}
	for _, p := range parts {
		if !namePattern.MatchString(p) {
			return Ref{}, fmt.Errorf("invalid reference %q: %q is not a valid name", s, p)
		}
	}

	ref := Ref{Node: parts[0]}
	if len(parts) == 2 {
		ref.Output = parts[1]
	}
	return ref, nil
}

// ValidName reports whether s can be used as a node or output name.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}
