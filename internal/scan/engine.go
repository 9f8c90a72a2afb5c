// Package scan implements the recursive decoding engine: given a buffer and
// a decoder registry, it drives every decoder over each frame of the
// resulting tree, resolves nesting and overlap between hits, and recurses
// into transformer output up to a bounded depth.
package scan

import (
	"bytes"
	"sort"

	"github.com/kestrel-sec/multidecoder/internal/decode"
	"github.com/kestrel-sec/multidecoder/internal/node"
)

// DefaultDepthLimit bounds how many levels of transformer output the engine
// will recurse into before giving up on a pathologically nested input.
const DefaultDepthLimit = 10

// frame is one unit of work on the engine's explicit stack: a node still
// needing a decoding pass, and the recursion budget remaining for it.
type frame struct {
	node       *node.Node
	depthLimit int
}

// Scan runs the full registry over buf and returns the root of the resulting
// tree. The root itself carries no type or obfuscation — it exists purely to
// hold buf as its Value and the discovered tree as its Children.
func Scan(buf []byte, reg decode.Registry, depthLimit int) *node.Node {
	root := node.New("", append([]byte(nil), buf...), "", 0, len(buf))

	work := []frame{{root, depthLimit}}
	for len(work) > 0 {
		f := work[len(work)-1]
		work = work[:len(work)-1]
		work = append(work, scanNode(f.node, f.depthLimit, reg)...)
	}
	return root
}

// scanNode runs one decoding pass over n.Value (unless n already has
// children, in which case it just deepens the existing subtree) and returns
// the frames for any transformer output that still needs its own pass.
func scanNode(n *node.Node, depthLimit int, reg decode.Registry) []frame {
	if depthLimit <= 0 {
		return nil
	}

	if len(n.Children) > 0 {
		next := make([]frame, len(n.Children))
		for i, c := range n.Children {
			next[i] = frame{c, depthLimit - 1}
		}
		return next
	}

	hits := reg.Run(n.Value)
	sortHits(hits)

	var (
		stack     []*node.Node
		current   = n
		offset    = 0
		decodeEnd = -1
		pending   []frame
	)

	for _, hit := range hits {
		if hit.End <= decodeEnd {
			continue
		}
		outerEnd := hit.End

		for hit.End-offset > len(current.Value) && len(stack) > 0 {
			popped := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			offset -= current.Start
			current = popped
		}

		hit.Shift(-offset)

		if isSelfLoop(hit, current) {
			continue
		}

		current.AddChild(hit)

		if hit.IsTransformer() {
			pending = append(pending, frame{hit, depthLimit - 1})
			decodeEnd = outerEnd
		} else {
			stack = append(stack, current)
			offset += hit.Start
			current = hit
		}
	}

	return pending
}

// isSelfLoop reports whether hit (already shifted into current's frame)
// exactly reproduces current itself, which would otherwise recurse forever.
func isSelfLoop(hit, current *node.Node) bool {
	return hit.Start == 0 && hit.End == len(current.Value) &&
		hit.Type == current.Type && bytes.Equal(hit.Value, current.Value)
}

// sortHits stable-sorts by (start ascending, end descending) so a larger
// enclosing match is attached before a smaller one that starts at the same
// position.
func sortHits(hits []*node.Node) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Start != hits[j].Start {
			return hits[i].Start < hits[j].Start
		}
		return hits[i].End > hits[j].End
	})
}
