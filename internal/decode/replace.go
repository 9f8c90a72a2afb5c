package decode

import (
	"regexp"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const (
	obfReplace    = "replace"
	obfVBAReplace = "vba.replace"
)

var (
	jsReplaceRE = regexp.MustCompile(
		stringPat + `\.replace\(\s*` + stringPat + `\s*,\s*` + stringPat + `\s*\)`)
	psReplaceRE = regexp.MustCompile(
		stringPat + `\s*-replace\s*` + stringPat + `\s*,\s*` + stringPat)
	vbaReplaceRE = regexp.MustCompile(
		`(?i)Replace\(\s*` + stringPat + `\s*,\s*` + stringPat + `\s*,\s*` + stringPat + `\s*\)`)
	jsRegexReplaceRE = regexp.MustCompile(
		stringPat + `\.replace\(\s*/([^/]*)/[a-z]*\s*,\s*` + stringPat + `\s*\)`)
)

// ReplaceJS recognizes JS-style "subject".replace("a","b").
func ReplaceJS(buf []byte) []*node.Node {
	return replaceHits(buf, jsReplaceRE, obfReplace, false)
}

// ReplacePowerShell recognizes PowerShell's "subject" -replace "a","b".
func ReplacePowerShell(buf []byte) []*node.Node {
	return replaceHits(buf, psReplaceRE, obfReplace, false)
}

// ReplaceVBA recognizes VB's Replace("subject","a","b").
func ReplaceVBA(buf []byte) []*node.Node {
	return replaceHits(buf, vbaReplaceRE, obfVBAReplace, false)
}

// ReplaceJSRegex recognizes JS-regex-style "subject".replace(/a/,"b"), with
// the first argument of the replace a bare regex literal instead of a
// quoted string. The pattern is applied as a literal substring match, not a
// full regular expression.
func ReplaceJSRegex(buf []byte) []*node.Node {
	return replaceHits(buf, jsRegexReplaceRE, obfReplace, true)
}

// replaceHits finds every match of re (three literal-string groups: subject,
// from, to — or, when rawMiddle is true, the middle group is an unquoted
// regex-literal body) and emits the result of a single from->to replacement
// applied to subject.
func replaceHits(buf []byte, re *regexp.Regexp, obf string, rawMiddle bool) []*node.Node {
	var hits []*node.Node
	for _, loc := range re.FindAllSubmatchIndex(buf, -1) {
		pieces := literalPiecesFromMatch(buf, loc, rawMiddle)
		if len(pieces) != 3 {
			continue
		}
		result := strings.Replace(pieces[0], pieces[1], pieces[2], 1)
		hits = append(hits, node.New("string", []byte(result), obf, loc[0], loc[1]))
	}
	return hits
}

// literalPiecesFromMatch extracts each quoted-string literal appearing
// within loc[0]:loc[1] of buf, in order, unescaping each. When rawMiddle is
// true the second "literal" is instead the first bare (non-quoted) capture
// group in the match (used for JS regex-literal replace arguments).
func literalPiecesFromMatch(buf []byte, loc []int, rawMiddle bool) []string {
	region := buf[loc[0]:loc[1]]
	lits := stringOneR.FindAll(region, -1)
	pieces := make([]string, 0, 3)
	if !rawMiddle {
		for _, l := range lits {
			pieces = append(pieces, unescapeStringLiteral(l))
		}
		return pieces
	}
	// rawMiddle: loc holds only [whole, regexBody]; the subject and "to"
	// literals are still matched by stringOneR in order, and the regex body
	// sits between them as group 1 of the overall match.
	if len(loc) < 4 || loc[2] < 0 {
		return nil
	}
	regexBody := string(buf[loc[2]:loc[3]])
	if len(lits) < 2 {
		return nil
	}
	pieces = append(pieces, unescapeStringLiteral(lits[0]), regexBody, unescapeStringLiteral(lits[len(lits)-1]))
	return pieces
}
