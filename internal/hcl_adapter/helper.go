package hcl_adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the
// source. gohcl fills omitted optional expression fields with a zero-width
// placeholder, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	isDefined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// reference reads one node reference. A bare traversal such as
// `catchment.runoff` is rendered in dot notation; anything else must
// evaluate to a string without variables.
func reference(expr hcl.Expression) (string, error) {
	if trav, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		return traversalString(trav)
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", fmt.Errorf("%s: reference must be a node name or node.output: %w", expr.Range(), diags)
	}
	return config.String(v)
}

// references reads a list of references. A single reference is accepted as
// a list of one.
func references(expr hcl.Expression) ([]string, error) {
	exprs, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		ref, err := reference(expr)
		if err != nil {
			return nil, err
		}
		return []string{ref}, nil
	}
	out := make([]string, 0, len(exprs))
	for _, e := range exprs {
		ref, err := reference(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func traversalString(trav hcl.Traversal) (string, error) {
	parts := []string{trav.RootName()}
	for _, step := range trav[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			parts = append(parts, s.Name)
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.String {
				return "", fmt.Errorf("%s: references cannot use numeric indexes", trav.SourceRange())
			}
			parts = append(parts, s.Key.AsString())
		default:
			return "", fmt.Errorf("%s: unsupported reference", trav.SourceRange())
		}
	}
	return strings.Join(parts, "."), nil
}

// bodyAttributes evaluates every attribute of a params block into plain Go
// values.
func bodyAttributes(block *paramsBlock) (map[string]any, error) {
	out := map[string]any{}
	if block == nil || block.Body == nil {
		return out, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parameter %q: %w", name, diags)
		}
		raw, err := config.FromCty(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}
