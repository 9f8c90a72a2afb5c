package decode

import (
	"regexp"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const (
	obfReverse    = "reverse"
	obfVBAReverse = "vba.reverse"
)

var (
	strReverseRE = regexp.MustCompile(`(?i)StrReverse\(\s*` + stringPat + `\s*\)`)
	reversedRE   = regexp.MustCompile(`(?i)reversed\(\s*` + stringPat + `\s*\)`)
)

// ReverseVBA recognizes VB's StrReverse("...").
func ReverseVBA(buf []byte) []*node.Node {
	return reverseHits(buf, strReverseRE, obfVBAReverse)
}

// Reverse recognizes the generic reversed("...") call form.
func Reverse(buf []byte) []*node.Node {
	return reverseHits(buf, reversedRE, obfReverse)
}

func reverseHits(buf []byte, re *regexp.Regexp, obf string) []*node.Node {
	var hits []*node.Node
	for _, loc := range re.FindAllIndex(buf, -1) {
		region := buf[loc[0]:loc[1]]
		lits := stringOneR.FindAll(region, -1)
		if len(lits) == 0 {
			continue
		}
		s := unescapeStringLiteral(lits[0])
		hits = append(hits, node.New("string", []byte(reverseString(s)), obf, loc[0], loc[1]))
	}
	return hits
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
