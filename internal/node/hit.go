package node

import "regexp"

// HitFromMatch builds a detector leaf from a regex match: the whole match
// (loc[0]:loc[1]) becomes Value, the match span becomes Start/End, Type is
// label, and Obfuscation is empty.
func HitFromMatch(label string, buf []byte, loc []int) *Node {
	if loc == nil {
		return nil
	}
	start, end := loc[0], loc[1]
	value := append([]byte(nil), buf[start:end]...)
	return New(label, value, "", start, end)
}

// DecodeFunc transforms raw bytes into decoded bytes plus the obfuscation
// label describing the transform, or reports failure via ok=false.
type DecodeFunc func(raw []byte) (decoded []byte, obfuscation string, ok bool)

// HitFromDecode builds a transformer leaf: decode is applied to the bytes
// captured by submatch group groupIdx (groupIdx 0 selects the whole match).
// The returned node spans the group's position in buf; Value is the decoded
// bytes.
//
// loc is the []int returned by a regexp's FindSubmatchIndex on buf (2 ints
// per group, group 0 first).
func HitFromDecode(label string, buf []byte, loc []int, groupIdx int, decode DecodeFunc) *Node {
	if loc == nil {
		return nil
	}
	gi := groupIdx * 2
	if gi+1 >= len(loc) || loc[gi] < 0 {
		return nil
	}
	start, end := loc[gi], loc[gi+1]
	raw := buf[start:end]
	decoded, obf, ok := decode(raw)
	if !ok {
		return nil
	}
	return New(label, decoded, obf, start, end)
}

// AllMatchIndices is a small convenience used by decoders that need every
// non-overlapping match of re in buf as submatch-index slices.
func AllMatchIndices(re *regexp.Regexp, buf []byte) [][]int {
	return re.FindAllSubmatchIndex(buf, -1)
}
