package decode

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfChr = "function.chr"

var chrRE = regexp.MustCompile(`(?i)chr[bw]?\((\d+)\)`)

// Chr decodes chr()/chrw()/chrb() calls whose argument is a valid Unicode
// code point into the corresponding UTF-8 bytes, replacing the whole call
// (not just the numeric argument) with the decoded character.
func Chr(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range chrRE.FindAllSubmatchIndex(buf, -1) {
		start, end := loc[0], loc[1]
		argStart, argEnd := loc[2], loc[3]
		decoded, ok := decodeChrArg(buf[argStart:argEnd])
		if !ok {
			continue
		}
		hits = append(hits, node.New("string", decoded, obfChr, start, end))
	}
	return hits
}

func decodeChrArg(raw []byte) ([]byte, bool) {
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 || n > utf8.MaxRune || !utf8.ValidRune(rune(n)) {
		return nil, false
	}
	buf := make([]byte, utf8.UTFMax)
	size := utf8.EncodeRune(buf, rune(n))
	return buf[:size], true
}
