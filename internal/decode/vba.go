package decode

import (
	"regexp"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

var createObjectRE = regexp.MustCompile(`(?i)createobject\(`)

// VBACreateObject scans buf for CreateObject(...) calls, matching the
// closing parenthesis at bracket depth zero.
func VBACreateObject(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range createObjectRE.FindAllIndex(buf, -1) {
		end := closingParen(buf, loc[1])
		if end < 0 {
			continue
		}
		hits = append(hits, node.HitFromMatch("vba.function.createobject", buf, []int{loc[0], end}))
	}
	return hits
}

// closingParen returns the index just past the ")" that closes the "("
// implicitly opened just before start, or -1 if buf ends before the
// bracket balance returns to zero.
func closingParen(buf []byte, start int) int {
	balance := 1
	i := start
	for i < len(buf) && balance > 0 {
		switch buf[i] {
		case '(':
			balance++
		case ')':
			balance--
		}
		i++
	}
	if balance == 0 {
		return i
	}
	return -1
}
