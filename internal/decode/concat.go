package decode

import (
	"regexp"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfConcat = "concatenation"

var (
	dqStringPat = "\"(?:`.|\"\"|[^\"])*\""
	sqStringPat = "'(?:`.|''|[^'])*'"
	stringPat   = "(?:" + dqStringPat + "|" + sqStringPat + ")"
	joinerPat   = `(?:\s*(?:\+|&amp;|&)\s*|\s*_\r?\n\s*)`

	concatRE   = regexp.MustCompile(stringPat + "(?:" + joinerPat + stringPat + ")+")
	stringOneR = regexp.MustCompile(stringPat)
)

// Concat recognizes chains of two-or-more quoted string literals joined by
// "+", "&", "&amp;", or a VB line-continuation underscore, and emits the
// concatenated inner content as a single string.
func Concat(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range concatRE.FindAllIndex(buf, -1) {
		raw := buf[loc[0]:loc[1]]
		var sb strings.Builder
		for _, piece := range stringOneR.FindAll(raw, -1) {
			sb.WriteString(unescapeStringLiteral(piece))
		}
		if sb.Len() == 0 {
			continue
		}
		hits = append(hits, node.New("string", []byte(sb.String()), obfConcat, loc[0], loc[1]))
	}
	return hits
}

// unescapeStringLiteral strips the surrounding quote and resolves the two
// escaping conventions seen across VB/JS/PowerShell source: a doubled quote
// character, and a backtick followed by any character.
func unescapeStringLiteral(lit []byte) string {
	if len(lit) < 2 {
		return ""
	}
	quote := lit[0]
	inner := lit[1 : len(lit)-1]
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		switch {
		case inner[i] == '`' && i+1 < len(inner):
			sb.WriteByte(inner[i+1])
			i++
		case inner[i] == quote && i+1 < len(inner) && inner[i+1] == quote:
			sb.WriteByte(quote)
			i++
		default:
			sb.WriteByte(inner[i])
		}
	}
	return sb.String()
}
