// Package query implements the read side of a decoded tree: reproducing the
// deobfuscated byte stream, summarizing the tree as human-readable lines,
// tallying obfuscation labels, and encoding/decoding the tree as JSON.
package query

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

// Flatten reproduces n's original byte stream with every descendant
// transformer's pre-decode bytes replaced by its decoded value, recursively.
// A child whose type ends in "string" is wrapped in double quotes so the
// surrounding text remains syntactically a string literal.
func Flatten(n *node.Node) []byte {
	var out []byte
	lastEnd := 0
	for _, c := range n.Children {
		if c.Start < lastEnd {
			continue // overlapping child; keep the first one already emitted
		}
		out = append(out, n.Value[lastEnd:c.Start]...)
		flattened := Flatten(c)
		if strings.HasSuffix(c.Type, "string") {
			out = append(out, '"')
			out = append(out, flattened...)
			out = append(out, '"')
		} else {
			out = append(out, flattened...)
		}
		lastEnd = c.End
	}
	return append(out, n.Value[lastEnd:]...)
}

// StringSummary renders root's descendants as one line each, depth-first
// pre-order, formatted "<label-path> <value>" where label-path walks the
// node's ancestor chain as type1[/>obf1]/type2[/>obf2]/....
func StringSummary(root *node.Node) []string {
	var lines []string
	for n := range root.Iter() {
		lines = append(lines, labelPath(n)+" "+reprValue(n.Value))
	}
	return lines
}

func labelPath(n *node.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type != ""; cur = cur.Parent {
		seg := cur.Type
		if cur.Obfuscation != "" {
			seg += "/>" + cur.Obfuscation
		}
		parts = append(parts, seg)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func reprValue(v []byte) string {
	return fmt.Sprintf("%q", string(v))
}

// ObfuscationCounts tallies the number of descendants (including root) that
// carry each non-empty obfuscation label.
func ObfuscationCounts(root *node.Node) map[string]int {
	counts := map[string]int{}
	if root.Obfuscation != "" {
		counts[root.Obfuscation]++
	}
	for n := range root.Iter() {
		if n.Obfuscation != "" {
			counts[n.Obfuscation]++
		}
	}
	return counts
}

// jsonNode is the wire representation of node.Node: Value is lowercase hex
// so non-UTF-8 bytes survive the round trip.
type jsonNode struct {
	Type        string      `json:"type"`
	Value       string      `json:"value"`
	Obfuscation string      `json:"obfuscation"`
	Start       int         `json:"start"`
	End         int         `json:"end"`
	Children    []*jsonNode `json:"children"`
}

// ToJSON encodes n's tree in the wire format described above.
func ToJSON(n *node.Node) ([]byte, error) {
	return json.Marshal(toJSONNode(n))
}

func toJSONNode(n *node.Node) *jsonNode {
	children := make([]*jsonNode, len(n.Children))
	for i, c := range n.Children {
		children[i] = toJSONNode(c)
	}
	return &jsonNode{
		Type:        n.Type,
		Value:       hex.EncodeToString(n.Value),
		Obfuscation: n.Obfuscation,
		Start:       n.Start,
		End:         n.End,
		Children:    children,
	}
}

// FromJSON decodes the wire format back into a node.Node tree, re-linking
// every Parent pointer as the tree is rebuilt.
func FromJSON(data []byte) (*node.Node, error) {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, fmt.Errorf("decoding tree JSON: %w", err)
	}
	return fromJSONNode(&jn)
}

func fromJSONNode(jn *jsonNode) (*node.Node, error) {
	value, err := hex.DecodeString(jn.Value)
	if err != nil {
		return nil, fmt.Errorf("decoding node value: %w", err)
	}
	children := make([]*node.Node, 0, len(jn.Children))
	for _, c := range jn.Children {
		child, err := fromJSONNode(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return node.New(jn.Type, value, jn.Obfuscation, jn.Start, jn.End, children...), nil
}
