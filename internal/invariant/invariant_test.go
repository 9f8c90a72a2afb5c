package invariant

import (
	"testing"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

func TestAuditCleanTreeHasNoDiagnostics(t *testing.T) {
	root := node.New("", []byte("hello world"), "", 0, 11)
	greeting := node.New("word", []byte("hello"), "", 0, 5)
	place := node.New("word", []byte("world"), "", 6, 11)
	root.AddChild(greeting)
	root.AddChild(place)

	if diags := Audit(root, 0); len(diags) != 0 {
		t.Fatalf("expected no diagnostics for a well-formed tree, got %+v", diags)
	}
}

func TestAuditFlagsSiblingOverlap(t *testing.T) {
	root := node.New("", []byte("abcdef"), "", 0, 6)
	root.AddChild(node.New("a", []byte("abcd"), "", 0, 4))
	root.AddChild(node.New("b", []byte("cd"), "", 2, 4)) // overlaps [0,4)

	diags := Audit(root, 0)
	if !hasCode(diags, SiblingOverlap) {
		t.Fatalf("expected a SiblingOverlap diagnostic, got %+v", diags)
	}
}

func TestAuditFlagsChildOutOfBounds(t *testing.T) {
	root := node.New("", []byte("abc"), "", 0, 3)
	root.AddChild(node.New("a", []byte("abcdef"), "", 0, 6)) // End 6 > len(parent.Value) 3

	diags := Audit(root, 0)
	if !hasCode(diags, ChildOutOfBounds) {
		t.Fatalf("expected a ChildOutOfBounds diagnostic, got %+v", diags)
	}
}

func TestAuditFlagsDepthExceeded(t *testing.T) {
	leaf := node.New("leaf", []byte("x"), "", 0, 1)
	mid := node.New("mid", []byte("x"), "", 0, 1, leaf)
	root := node.New("", []byte("x"), "", 0, 1, mid)

	diags := Audit(root, 1)
	if !hasCode(diags, DepthExceeded) {
		t.Fatalf("expected a DepthExceeded diagnostic with maxDepth 1, got %+v", diags)
	}

	if diags := Audit(root, 0); hasCode(diags, DepthExceeded) {
		t.Fatalf("maxDepth 0 should skip the depth check entirely, got %+v", diags)
	}
}

func TestAuditDoesNotFlagCaseOnlyChangeAsDrift(t *testing.T) {
	root := node.New("", []byte("visit EXAMPLE.com now"), "", 0, 21)
	// a detector hit on a mixed-case domain: value differs from the parent
	// span only by case, which the detector-value-consistency invariant
	// explicitly tolerates (mirrors Node.IsTransformer's own fold comparison).
	root.AddChild(node.New("network.domain", []byte("example.com"), "MixedCase", 6, 17))

	diags := Audit(root, 0)
	if hasCode(diags, DetectorValueDrift) {
		t.Fatalf("case-only difference from parent span should not be flagged, got %+v", diags)
	}
}

func TestAuditDoesNotFlagTransformerForValueDrift(t *testing.T) {
	root := node.New("", []byte("aGVsbG8="), "", 0, 8)
	// a genuine transformer: decoded value bears no byte relation to the
	// original base64 text, but it's exempt from the drift check because
	// IsTransformer is true.
	root.AddChild(node.New("", []byte("hello"), "base64", 0, 8))

	diags := Audit(root, 0)
	if hasCode(diags, DetectorValueDrift) {
		t.Fatalf("transformer nodes should never trigger DetectorValueDrift, got %+v", diags)
	}
}

func TestAuditResultsAreSortedByPath(t *testing.T) {
	root := node.New("", []byte("abcdefgh"), "", 0, 8)
	root.AddChild(node.New("a", []byte("abcdefghij"), "", 0, 10)) // out of bounds, path "0.0"
	root.AddChild(node.New("b", []byte("gh"), "", 6, 8))

	diags := Audit(root, 0)
	for i := 1; i < len(diags); i++ {
		if diags[i-1].Path > diags[i].Path {
			t.Fatalf("diagnostics not sorted by path: %+v", diags)
		}
	}
}

func hasCode(diags []Diagnostic, code Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}
