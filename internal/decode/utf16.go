package decode

import (
	"regexp"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfUTF16 = "codec.utf-16"

// printable byte followed by a null, at least seven pairs long, allowing
// embedded runs of double-nulls between printable/null pairs.
var utf16RE = regexp.MustCompile(`(?:[\x09\x0A\x0D\x20-\x7E]\x00(?:\x00\x00)*){7,}`)

// UTF16 decodes runs of UTF-16LE-coded printable text (padding nulls
// interleaved between each character) into UTF-8.
func UTF16(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range utf16RE.FindAllIndex(buf, -1) {
		decoded, ok := decodeUTF16LE(buf[loc[0]:loc[1]])
		if !ok {
			continue
		}
		hits = append(hits, node.New("", decoded, obfUTF16, loc[0], loc[1]))
	}
	return hits
}

func decodeUTF16LE(raw []byte) ([]byte, bool) {
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	var units []uint16
	for i := 0; i+1 < len(raw); i += 2 {
		u := uint16(raw[i]) | uint16(raw[i+1])<<8
		if u == 0 {
			continue // embedded double-null padding
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, false
	}
	runes := utf16.Decode(units)
	out := make([]byte, 0, len(runes)*2)
	buf := make([]byte, utf8.UTFMax)
	for _, r := range runes {
		n := utf8.EncodeRune(buf, r)
		out = append(out, buf[:n]...)
	}
	return out, true
}
