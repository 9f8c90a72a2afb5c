package decode

import (
	"net/url"
	"regexp"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfUnescape = "function.unescape"

var unescapeRE = regexp.MustCompile(`(?i)unescape\(\s*'([^']*)'\s*\)`)

// Unescape decodes JavaScript's unescape('...') call form by percent-decoding
// its argument.
func Unescape(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range unescapeRE.FindAllSubmatchIndex(buf, -1) {
		h := node.HitFromDecode("string", buf, loc, 1, decodeUnescapeArg)
		if h != nil {
			hits = append(hits, h)
		}
	}
	return hits
}

func decodeUnescapeArg(raw []byte) ([]byte, string, bool) {
	decoded, err := url.PathUnescape(string(raw))
	if err != nil {
		return nil, "", false
	}
	return []byte(decoded), obfUnescape, true
}
