package decode

import (
	"encoding/hex"
	"regexp"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfHex = "decoded.hexadecimal"

// hexLowerRE / hexUpperRE: >= 10 consecutive hex digit pairs, all-lower or
// all-upper (mixed-case hex strings are not recognized — ambiguous with
// ordinary prose).
var (
	hexLowerRE = regexp.MustCompile(`(?:[0-9a-f]{2}){10,}`)
	hexUpperRE = regexp.MustCompile(`(?:[0-9A-F]{2}){10,}`)
)

// Hex scans buf for runs of >= 20 hex digits (10+ byte pairs), all one case.
func Hex(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range hexLowerRE.FindAllIndex(buf, -1) {
		if h := hexHit(buf, loc); h != nil {
			hits = append(hits, h)
		}
	}
	for _, loc := range hexUpperRE.FindAllIndex(buf, -1) {
		if overlapsAny(hits, loc) {
			continue
		}
		if h := hexHit(buf, loc); h != nil {
			hits = append(hits, h)
		}
	}
	return hits
}

func hexHit(buf []byte, loc []int) *node.Node {
	decoded, err := hex.DecodeString(string(buf[loc[0]:loc[1]]))
	if err != nil {
		return nil
	}
	return node.New("", decoded, obfHex, loc[0], loc[1])
}

func overlapsAny(hits []*node.Node, loc []int) bool {
	for _, h := range hits {
		if loc[0] < h.End && h.Start < loc[1] {
			return true
		}
	}
	return false
}

var fromHexStringRE = regexp.MustCompile(`(?i)FromHexString\(\s*'([0-9A-Fa-f]+)'\s*\)`)

// HexNamed matches the explicit FromHexString('...') call form, attaching an
// XOR-decoded child if an "-xor N"/"-bxor N" token is present.
func HexNamed(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range fromHexStringRE.FindAllSubmatchIndex(buf, -1) {
		h := node.HitFromDecode("", buf, loc, 1, func(raw []byte) ([]byte, string, bool) {
			decoded, err := hex.DecodeString(string(raw))
			if err != nil {
				return nil, "", false
			}
			return decoded, obfHex, true
		})
		if h != nil {
			hits = append(hits, h)
		}
	}
	attachXORChildren(buf, hits, "")
	return hits
}
