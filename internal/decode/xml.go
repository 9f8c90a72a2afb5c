package decode

import (
	"regexp"
	"strconv"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfXML = "unescape.xml"

var (
	xmlRefRE     = regexp.MustCompile(`(?:&#(?:x[0-9a-fA-F]{2}|\d{1,3});){5,}`)
	xmlRefOneRE  = regexp.MustCompile(`&#(x[0-9a-fA-F]{2}|\d{1,3});`)
)

// XMLNumericRefs decodes runs of five-or-more consecutive XML/HTML numeric
// character references into their raw bytes.
func XMLNumericRefs(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range xmlRefRE.FindAllIndex(buf, -1) {
		raw := buf[loc[0]:loc[1]]
		decoded, ok := decodeXMLRefs(raw)
		if !ok {
			continue
		}
		hits = append(hits, node.New("", decoded, obfXML, loc[0], loc[1]))
	}
	return hits
}

func decodeXMLRefs(raw []byte) ([]byte, bool) {
	var out []byte
	for _, m := range xmlRefOneRE.FindAllSubmatch(raw, -1) {
		tok := string(m[1])
		var (
			v   int64
			err error
		)
		if len(tok) > 0 && (tok[0] == 'x' || tok[0] == 'X') {
			v, err = strconv.ParseInt(tok[1:], 16, 32)
		} else {
			v, err = strconv.ParseInt(tok, 10, 32)
		}
		if err != nil || v < 0 || v > 255 {
			return nil, false
		}
		out = append(out, byte(v))
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
