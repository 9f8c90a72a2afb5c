// Package invariant audits a decoded tree against the structural guarantees
// the scan engine is supposed to maintain: disjoint siblings, in-bounds
// children, value/span consistency for detector nodes, and a bounded depth.
// It performs no I/O and never panics; a violation becomes a Diagnostic, not
// a crash, mirroring the teacher's doctor-audit pattern of pure functions
// returning a diagnostic list instead of failing fast.
package invariant

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

// Severity classifies a Diagnostic. All invariant violations are errors —
// unlike the teacher's doctor audit there is no warning tier, since every
// check here describes a contract the engine itself must never break.
type Severity string

const SeverityError Severity = "error"

// Code identifies which invariant was violated.
type Code string

const (
	SiblingOverlap     Code = "INV001"
	ChildOutOfBounds   Code = "INV002"
	DetectorValueDrift Code = "INV003"
	DepthExceeded      Code = "INV004"
)

// Diagnostic describes a single invariant violation found in a tree.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Message  string
	Path     string // dotted child-index path from the root, e.g. "0.2.1"
}

// Audit walks root and returns every invariant violation found, sorted by
// path. maxDepth is the depth_limit the tree was produced with; pass 0 to
// skip the depth-bound check.
func Audit(root *node.Node, maxDepth int) []Diagnostic {
	var diags []Diagnostic
	walk(root, "0", 0, maxDepth, &diags)
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Path < diags[j].Path })
	return diags
}

func walk(n *node.Node, path string, depth, maxDepth int, diags *[]Diagnostic) {
	if maxDepth > 0 && depth > maxDepth {
		*diags = append(*diags, errDiag(DepthExceeded, path,
			fmt.Sprintf("node at depth %d exceeds limit %d", depth, maxDepth)))
	}

	lastEnd := 0
	for i, c := range n.Children {
		childPath := fmt.Sprintf("%s.%d", path, i)

		if c.Start < 0 || c.End > len(n.Value) || c.Start > c.End {
			*diags = append(*diags, errDiag(ChildOutOfBounds, childPath,
				fmt.Sprintf("child span [%d,%d) outside parent value of length %d", c.Start, c.End, len(n.Value))))
		}
		if i > 0 && c.Start < lastEnd {
			*diags = append(*diags, errDiag(SiblingOverlap, childPath,
				fmt.Sprintf("child starts at %d before previous sibling ends at %d", c.Start, lastEnd)))
		}
		if !c.IsTransformer() {
			if original := c.Original(); original != nil && !bytes.EqualFold(c.Value, original) {
				*diags = append(*diags, errDiag(DetectorValueDrift, childPath,
					"detector node's value does not match parent.value[start:end] (mod case)"))
			}
		}

		lastEnd = c.End
		walk(c, childPath, depth+1, maxDepth, diags)
	}
}

func errDiag(code Code, path, message string) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityError, Message: message, Path: path}
}
