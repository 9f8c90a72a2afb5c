package decode

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

// xorKeyRE matches a "-xor N" or "-bxor N" token, case-insensitively, and
// captures only the first 1-3 digits after it — documented behavior is
// "first short integer after -xor/-bxor", not longest run of digits.
var xorKeyRE = regexp.MustCompile(`(?i)-b?xor\s*(\d{1,3})`)

// GetXORKey returns the integer key from the first "-xor N" / "-bxor N"
// token in buf, or ok=false if none is present or the value exceeds 255.
func GetXORKey(buf []byte) (key byte, ok bool) {
	m := xorKeyRE.FindSubmatch(buf)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil || n > 255 {
		return 0, false
	}
	return byte(n), true
}

// ApplyXORKey XOR-decodes data with key and appends the result as a child of
// parent, covering the full decoded region (the child's span is relative to
// parent, [0, len(data))).
func ApplyXORKey(key byte, data []byte, parent *node.Node, newType string) *node.Node {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key
	}
	child := node.New(newType, out, fmt.Sprintf("cipher.xor%d", key), 0, len(data))
	parent.AddChild(child)
	return child
}
