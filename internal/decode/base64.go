package decode

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfBase64 = "encoding.base64"

var (
	b64Chunk = `[A-Za-z0-9+/]{4,}`
	b64Sep   = `(?:\r\n|\r|\n|&#13;|&#10;|&#xD;|&#xA;|<\x00[ ]{2}\x00)?`
	// b64CandidateRE requires at least five "chunks" total: four-or-more
	// repeats of chunk+optional-separator (so an uninterrupted base64 blob
	// matches just as well as one wrapped across lines), then a final tail
	// chunk of >= 2 chars optionally followed by "=" or "==".
	b64CandidateRE = regexp.MustCompile(`(?:` + b64Chunk + b64Sep + `){4,}[A-Za-z0-9+/]{2,}={0,2}`)

	b64StripRE = regexp.MustCompile(`\r\n|\r|\n|&#13;|&#10;|&#xD;|&#xA;|<\x00[ ]{2}\x00`)

	pureHexRE    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	allLettersRE = regexp.MustCompile(`^[A-Za-z]+$`)
)

// decodeB64Candidate strips separator artifacts from raw, applies the
// adversarial false-positive filters from spec.md §4.4, and decodes.
func decodeB64Candidate(raw []byte) (decoded []byte, ok bool) {
	stripped := b64StripRE.ReplaceAll(raw, nil)
	s := string(stripped)

	if len(s)%4 != 0 {
		return nil, false
	}
	distinct := map[byte]bool{}
	for i := 0; i < len(s); i++ {
		distinct[s[i]] = true
	}
	if len(distinct) <= 6 {
		return nil, false
	}
	trimmed := strings.TrimRight(s, "=")
	if pureHexRE.MatchString(trimmed) {
		return nil, false
	}
	if allLettersRE.MatchString(trimmed) {
		return nil, false
	}
	if len(s) > 0 && float64(strings.Count(s, "/"))/float64(len(s)) > 3.0/32.0 {
		return nil, false
	}

	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Base64 scans buf for plain base64 candidate regions and decodes them.
func Base64(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range b64CandidateRE.FindAllIndex(buf, -1) {
		decoded, ok := decodeB64Candidate(buf[loc[0]:loc[1]])
		if !ok {
			continue
		}
		hits = append(hits, node.New("", decoded, obfBase64, loc[0], loc[1]))
	}
	return hits
}

func decodeNamedBase64Arg(raw []byte) ([]byte, string, bool) {
	decoded, ok := decodeNamedBase64(raw)
	if !ok {
		return nil, "", false
	}
	return decoded, obfBase64, true
}

// decodeNamedBase64 decodes the argument of an explicit base64-decoding call
// (Base64Decode, FromBase64String, atob). These are not subject to the
// candidate-detection heuristics in decodeB64Candidate since the call site
// already establishes intent; only structural validity is required.
func decodeNamedBase64(raw []byte) ([]byte, bool) {
	s := string(b64StripRE.ReplaceAll(raw, nil))
	if len(s)%4 != 0 || s == "" {
		return nil, false
	}
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return out, true
}

var vbaBase64RE = regexp.MustCompile(`(?i)Base64Decode\(\s*'([A-Za-z0-9+/=\r\n]+)'\s*\)`)

// Base64VBA matches VB's Base64Decode('...') call form.
func Base64VBA(buf []byte) []*node.Node {
	return namedBase64Hits(buf, vbaBase64RE, "vba.string")
}

var psBase64RE = regexp.MustCompile(`(?i)(?:\[System\.Convert\]::)?FromBase64String\(\s*'([A-Za-z0-9+/=\r\n]+)'\s*\)`)

// Base64PowerShell matches PowerShell's FromBase64String('...') and
// [System.Convert]::FromBase64String('...') call forms, attaching an
// XOR-decoded child if a "-bxor N"/"-xor N" token is present in buf.
func Base64PowerShell(buf []byte) []*node.Node {
	hits := namedBase64Hits(buf, psBase64RE, "powershell.bytes")
	attachXORChildren(buf, hits, "powershell.bytes")
	return hits
}

var jsBase64RE = regexp.MustCompile(`(?i)atob\(\s*"([A-Za-z0-9+/=\r\n]+)"\s*\)`)

// Base64JS matches JavaScript's atob("...") call form.
func Base64JS(buf []byte) []*node.Node {
	return namedBase64Hits(buf, jsBase64RE, "javascript.string")
}

// namedBase64Hits decodes the argument (group 1) of every match of re; each
// hit spans the whole call expression, not just the argument.
func namedBase64Hits(buf []byte, re *regexp.Regexp, typ string) []*node.Node {
	var hits []*node.Node
	for _, loc := range re.FindAllSubmatchIndex(buf, -1) {
		h := node.HitFromDecode(typ, buf, loc, 1, decodeNamedBase64Arg)
		if h != nil {
			h.Start, h.End = loc[0], loc[1]
			hits = append(hits, h)
		}
	}
	return hits
}

// attachXORChildren looks for an "-xor N"/"-bxor N" token anywhere in buf
// and, if present, attaches an XOR-decoded child to every hit of type typ.
func attachXORChildren(buf []byte, hits []*node.Node, typ string) {
	key, ok := GetXORKey(buf)
	if !ok {
		return
	}
	for _, h := range hits {
		ApplyXORKey(key, h.Value, h, typ)
	}
}
