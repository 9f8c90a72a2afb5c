package decode

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/iocdata"
	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfIP = "ip_obfuscation"

var (
	labelPat  = `[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?`
	domainPat = `(?:` + labelPat + `\.)+[A-Za-z]{2,24}`
	domainRE  = regexp.MustCompile(domainPat)

	ipCandidateRE = regexp.MustCompile(
		`(?:(?:0[xX][0-9A-Fa-f]+|0[0-7]+|[0-9]+)\.){0,3}(?:0[xX][0-9A-Fa-f]+|0[0-7]+|[0-9]+)`)
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+-]+@` + domainPat)
)

// defaultTables backs the package-level decoder functions registered by
// decode.Builtins when no explicit table override is supplied.
var defaultTables = iocdata.Default()

// Domain scans buf for dotted hostnames validated against the recognized
// TLD set and the false-positive denylist, using the embedded default
// tables. Use NewDomain to supply a custom Tables (e.g. loaded by
// internal/iocconfig).
func Domain(buf []byte) []*node.Node {
	return NewDomain(defaultTables)(buf)
}

// NewDomain returns a Domain decoder bound to tables.
func NewDomain(tables *iocdata.Tables) Decoder {
	return func(buf []byte) []*node.Node {
		var hits []*node.Node
		for _, loc := range domainRE.FindAllIndex(buf, -1) {
			if !isValidStandaloneDomain(buf, loc, tables) {
				continue
			}
			hits = append(hits, node.HitFromMatch("network.domain", buf, loc))
		}
		return hits
	}
}

// isValidStandaloneDomain applies the full domain false-positive filter
// (context bytes, length, TLD membership, denylist) described in spec.md
// §4.4's Domain detector bullet.
func isValidStandaloneDomain(buf []byte, loc []int, tables *iocdata.Tables) bool {
	start, end := loc[0], loc[1]
	candidate := string(buf[start:end])
	if end-start < 7 {
		return false
	}
	if start > 0 && isForbiddenDomainPrefixByte(buf[start-1]) {
		return false
	}
	if end < len(buf) && isForbiddenDomainSuffixByte(buf[end]) {
		return false
	}
	tld := candidate[strings.LastIndexByte(candidate, '.')+1:]
	if !tables.IsTLD(tld) {
		return false
	}
	if tables.IsFalsePositive(candidate) {
		return false
	}
	return true
}

func isForbiddenDomainPrefixByte(b byte) bool {
	return b == '-' || b == '.' || b == '\\' || b == '_' || isWordByte(b)
}

func isForbiddenDomainSuffixByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= '1' && b <= '9':
		return true
	case b == '.' || b == '(' || b == '=' || b == '_' || b == '-':
		return true
	}
	return false
}

// Email scans buf for local@domain addresses whose domain passes the same
// validation as the standalone Domain decoder.
func Email(buf []byte) []*node.Node {
	return NewEmail(defaultTables)(buf)
}

// NewEmail returns an Email decoder bound to tables.
func NewEmail(tables *iocdata.Tables) Decoder {
	return func(buf []byte) []*node.Node {
		var hits []*node.Node
		for _, loc := range emailRE.FindAllIndex(buf, -1) {
			at := strings.IndexByte(string(buf[loc[0]:loc[1]]), '@')
			domainStart := loc[0] + at + 1
			domainLoc := []int{domainStart, loc[1]}
			if !isValidStandaloneDomain(buf, domainLoc, tables) {
				continue
			}
			hits = append(hits, node.HitFromMatch("network.email", buf, loc))
		}
		return hits
	}
}

// IP scans buf for IPv4 addresses expressed in any of the classic
// inet_aton forms (decimal, octal, hex, 1/2/3-part zero-suppressed),
// normalizing each to canonical dotted-quad form.
func IP(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range ipCandidateRE.FindAllIndex(buf, -1) {
		start, end := loc[0], loc[1]
		original := string(buf[start:end])

		addr, ok := parseInetAton(original)
		if !ok {
			continue
		}
		canon := addr.String()
		if isIPFalsePositiveEnding(canon) || isAllZeroIP(original) {
			continue
		}
		if isIPFalsePositiveContext(buf, start, end) {
			continue
		}

		if canon == original {
			hits = append(hits, node.New("network.ip", []byte(canon), "", start, end))
		} else {
			hits = append(hits, node.New("network.ip", []byte(canon), obfIP, start, end))
		}
	}
	return hits
}

// parseInetAton parses s (1 to 4 dot-separated parts, each decimal, octal
// "0...", or hex "0x...") per the classic inet_aton expansion rules and
// returns the canonical netip.Addr.
func parseInetAton(s string) (netip.Addr, bool) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return netip.Addr{}, false
	}
	vals := make([]uint64, len(parts))
	for i, p := range parts {
		v, ok := parseIPPart(p)
		if !ok {
			return netip.Addr{}, false
		}
		vals[i] = v
	}

	var b [4]byte
	switch len(vals) {
	case 1:
		v := vals[0]
		if v > 0xFFFFFFFF {
			return netip.Addr{}, false
		}
		b[0] = byte(v >> 24)
		b[1] = byte(v >> 16)
		b[2] = byte(v >> 8)
		b[3] = byte(v)
	case 2:
		if vals[0] > 0xFF || vals[1] > 0xFFFFFF {
			return netip.Addr{}, false
		}
		b[0] = byte(vals[0])
		b[1] = byte(vals[1] >> 16)
		b[2] = byte(vals[1] >> 8)
		b[3] = byte(vals[1])
	case 3:
		if vals[0] > 0xFF || vals[1] > 0xFF || vals[2] > 0xFFFF {
			return netip.Addr{}, false
		}
		b[0] = byte(vals[0])
		b[1] = byte(vals[1])
		b[2] = byte(vals[2] >> 8)
		b[3] = byte(vals[2])
	case 4:
		for i, v := range vals {
			if v > 0xFF {
				return netip.Addr{}, false
			}
			b[i] = byte(v)
		}
	}
	return netip.AddrFrom4(b), true
}

func parseIPPart(p string) (uint64, bool) {
	if p == "" {
		return 0, false
	}
	var v uint64
	var err error
	switch {
	case len(p) > 1 && (p[1] == 'x' || p[1] == 'X') && p[0] == '0':
		v, err = strconv.ParseUint(p[2:], 16, 64)
	case len(p) > 1 && p[0] == '0':
		v, err = strconv.ParseUint(p, 8, 64)
	default:
		v, err = strconv.ParseUint(p, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	return v, true
}

func isAllZeroIP(s string) bool {
	for _, p := range strings.Split(s, ".") {
		v, ok := parseIPPart(p)
		if !ok || v != 0 {
			return false
		}
	}
	return true
}

func isIPFalsePositiveEnding(canon string) bool {
	return strings.HasSuffix(canon, ".0") || strings.HasSuffix(canon, ".255")
}

// isIPFalsePositiveContext rejects matches that look like version strings
// ("Version=1.2.3.4"), XML section numbering ("<t>1.2.3.4</t>"), or prose
// section references ("section 1.1.1.4"). RE2 has no lookbehind, so this
// inspects the raw bytes immediately preceding the match instead.
func isIPFalsePositiveContext(buf []byte, start, end int) bool {
	before := string(buf[maxInt(0, start-12):start])
	lower := strings.ToLower(before)
	if strings.HasSuffix(strings.TrimRight(lower, "= \t"), "version") {
		return true
	}
	if strings.Contains(lower, "section") {
		return true
	}
	if start > 0 && buf[start-1] == '>' && end < len(buf) {
		if idx := strings.IndexByte(string(buf[end:minInt(len(buf), end+8)]), '<'); idx == 0 {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
