package decode

import (
	"bytes"
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/iocdata"
	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfPercentEscape = "escape.percent"
const obfDotSegment = "url.dotpath"

// urlRE recognizes ftp/http/https URLs with an optional userinfo, a host that
// is either a bracketed (possibly percent-encoded) IPv6 literal or a
// dotted/percent-encoded name, an optional port, and an optional
// path/query/fragment tail. The trailing character class in the tail
// deliberately excludes ) , and . so a URL embedded in prose doesn't swallow
// its own closing punctuation.
var urlRE = regexp.MustCompile(
	`(?i)(?:ftp|https?)://` +
		`(?:[\w!$%&'()*+,\-.:;=~@]{0,2000}@)?` +
		`(?:(?:\[|%5B)[%0-9A-Fa-f:]{3,117}(?:\]|%5D)|[%A-Za-z0-9.\-]{4,253})` +
		`(?::[0-9]{0,5})?` +
		`(?:[/?#](?:[\w!#$%&'()*+,\-./:;=@?~]{0,2000}[\w!#$%&(*+\-/:;=@?~])?)?`)

var percentRE = regexp.MustCompile(`(?i)%([0-9A-Fa-f]{2})`)

// URL scans buf for URLs, validating each candidate structurally via
// net/url.Parse before emitting it and its component children, using the
// embedded default tables for host-domain validation.
func URL(buf []byte) []*node.Node {
	return NewURL(defaultTables)(buf)
}

// NewURL returns a URL decoder bound to tables.
func NewURL(tables *iocdata.Tables) Decoder {
	return func(buf []byte) []*node.Node {
		var hits []*node.Node
		for _, loc := range urlRE.FindAllIndex(buf, -1) {
			raw := buf[loc[0]:loc[1]]
			if !isStructurallyValidURL(raw) {
				continue
			}
			value, obf := normalizePercentEncoding(raw)
			children := parseURLComponents(raw, tables)
			hits = append(hits, node.New("network.url", value, obf, loc[0], loc[1], children...))
		}
		return hits
	}
}

// isStructurallyValidURL requires a parseable URL with one of the three
// recognized schemes and a non-empty host.
func isStructurallyValidURL(raw []byte) bool {
	u, err := url.Parse(string(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
	default:
		return false
	}
	return u.Hostname() != ""
}

// normalizePercentEncoding un-encodes percent-escaped unreserved bytes and
// uppercases the hex digits of every percent escape that remains.
func normalizePercentEncoding(uri []byte) ([]byte, string) {
	normalized := percentRE.ReplaceAllFunc(uri, func(m []byte) []byte {
		hi, ok1 := hexNibble(m[1])
		lo, ok2 := hexNibble(m[2])
		if !ok1 || !ok2 {
			return m
		}
		b := hi<<4 | lo
		if isUnreservedURLByte(b) {
			return []byte{b}
		}
		return bytes.ToUpper(m)
	})
	obf := ""
	if len(normalized) < len(uri) {
		obf = obfPercentEscape
	}
	return normalized, obf
}

func isUnreservedURLByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '~':
		return true
	}
	return false
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func percentDecode(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '%' && i+2 < len(b) {
			if hi, ok1 := hexNibble(b[i+1]); ok1 {
				if lo, ok2 := hexNibble(b[i+2]); ok2 {
					out = append(out, hi<<4|lo)
					i += 2
					continue
				}
			}
		}
		out = append(out, b[i])
	}
	return out
}

// parseURLComponents splits raw (the matched URL bytes, scheme through
// fragment) into the child node set described by the URL detector: scheme,
// authority parts, path, query, fragment. Offsets are relative to raw itself
// rather than the normalized Value, matching the common case where
// normalization doesn't change length; a URL whose normalization shortens it
// is the one case where Original() on these children may not line up
// byte-for-byte with the pre-decode source.
func parseURLComponents(raw []byte, tables *iocdata.Tables) []*node.Node {
	var out []*node.Node

	schemeEnd := bytes.IndexByte(raw, ':')
	if schemeEnd < 0 {
		return out
	}
	scheme := raw[:schemeEnd]
	lower := bytes.ToLower(scheme)
	upper := bytes.ToUpper(scheme)
	obf := ""
	if !bytes.Equal(scheme, lower) && !bytes.Equal(scheme, upper) {
		obf = "MixedCase"
	}
	out = append(out, node.New("network.url.scheme", append([]byte(nil), lower...), obf, 0, len(scheme)))

	offset := len(scheme) + 1 // "scheme:"
	rest := raw[schemeEnd+1:]
	if bytes.HasPrefix(rest, []byte("//")) {
		offset += 2
		rest = rest[2:]
		authEnd := len(rest)
		for i, c := range rest {
			if c == '/' || c == '?' || c == '#' {
				authEnd = i
				break
			}
		}
		authority := rest[:authEnd]
		for _, child := range parseAuthority(authority, tables) {
			out = append(out, child.Shift(offset))
		}
		offset += len(authority)
		rest = rest[authEnd:]
	}

	pathEnd := len(rest)
	for i, c := range rest {
		if c == '?' || c == '#' {
			pathEnd = i
			break
		}
	}
	path := rest[:pathEnd]
	rest = rest[pathEnd:]
	if len(path) > 0 {
		value, pobf := normalizeURLPath(path)
		out = append(out, node.New("network.url.path", value, pobf, offset, offset+len(path)))
		offset += len(path)
	}

	if len(rest) > 0 && rest[0] == '?' {
		rest = rest[1:]
		offset++
		qEnd := len(rest)
		for i, c := range rest {
			if c == '#' {
				qEnd = i
				break
			}
		}
		query := rest[:qEnd]
		rest = rest[qEnd:]
		if len(query) > 0 {
			out = append(out, node.New("network.url.query", percentDecode(query), "", offset, offset+len(query)))
			offset += len(query)
		}
	}

	if len(rest) > 0 && rest[0] == '#' {
		fragment := rest[1:]
		offset++
		if len(fragment) > 0 {
			out = append(out, node.New("network.url.fragment", percentDecode(fragment), "", offset, offset+len(fragment)))
		}
	}

	return out
}

// parseAuthority splits a URL's userinfo@host:port authority into its parts,
// producing nodes with offsets relative to the start of authority.
func parseAuthority(authority []byte, tables *iocdata.Tables) []*node.Node {
	var out []*node.Node
	offset := 0

	var userinfo, address []byte
	if i := bytes.LastIndexByte(authority, '@'); i >= 0 {
		userinfo, address = authority[:i], authority[i+1:]
	} else {
		address = authority
	}

	var username, password []byte
	if i := bytes.IndexByte(userinfo, ':'); i >= 0 {
		username, password = userinfo[:i], userinfo[i+1:]
	} else {
		username = userinfo
	}

	host := address
	if !bytes.HasPrefix(address, []byte("[")) && !bytes.HasPrefix(address, []byte("%5B")) {
		if i := lastPortColon(address); i >= 0 {
			host = address[:i]
		}
	}

	if len(username) > 0 {
		out = append(out, node.New("network.url.username", percentDecode(username), "", 0, len(username)))
		offset += len(username)
	}
	if len(password) > 0 {
		offset++ // ':'
		out = append(out, node.New("network.url.password", percentDecode(password), "", offset, offset+len(password)))
		offset += len(password)
	}
	if len(host) == 0 {
		return out
	}
	if len(userinfo) > 0 {
		offset++ // '@'
	}

	decodedHost := percentDecode(host)
	switch {
	case bytes.HasPrefix(decodedHost, []byte("[")) && bytes.HasSuffix(decodedHost, []byte("]")):
		if n := parseIPv6Host(decodedHost[1 : len(decodedHost)-1]); n != nil {
			out = append(out, n.Shift(offset+1))
		}
	default:
		if n := parseIPv4Host(decodedHost); n != nil {
			out = append(out, n.Shift(offset))
		} else if isURLDomain(string(decodedHost), tables) {
			out = append(out, node.New("network.domain", decodedHost, "", offset, offset+len(host)))
		}
	}
	return out
}

// lastPortColon returns the index of a trailing ":port" colon in address (the
// rightmost colon followed only by digits to the end of address), or -1.
func lastPortColon(address []byte) int {
	i := bytes.LastIndexByte(address, ':')
	if i < 0 {
		return -1
	}
	for _, c := range address[i+1:] {
		if c < '0' || c > '9' {
			return -1
		}
	}
	return i
}

func parseIPv4Host(original []byte) *node.Node {
	addr, ok := parseInetAton(string(original))
	if !ok {
		return nil
	}
	canon := addr.String()
	obf := ""
	if canon != string(original) {
		obf = obfIP
	}
	return node.New("network.ip", []byte(canon), obf, 0, len(original))
}

func parseIPv6Host(inner []byte) *node.Node {
	addr, err := netip.ParseAddr(string(inner))
	if err != nil || !addr.Is6() {
		return nil
	}
	canon := addr.String()
	obf := ""
	if canon != string(inner) {
		obf = obfIP
	}
	return node.New("network.ipv6", []byte(canon), obf, 0, len(inner))
}

// isURLDomain applies only the TLD check (no false-positive table) since a
// host appearing after "scheme://" already carries enough context that the
// false-positive denylist built for bare-prose domain scanning would be too
// aggressive here.
func isURLDomain(host string, tables *iocdata.Tables) bool {
	i := strings.LastIndexByte(host, '.')
	if i <= 0 || i == len(host)-1 {
		return false
	}
	return tables.IsTLD(host[i+1:])
}

// normalizeURLPath percent-decodes each path segment (re-encoding any
// embedded "/" as %2F so segments stay distinguishable) and removes "."/".."
// dot segments.
func normalizeURLPath(path []byte) ([]byte, string) {
	rawSegments := bytes.Split(path, []byte("/"))
	segments := make([][]byte, len(rawSegments))
	for i, seg := range rawSegments {
		decoded := percentDecode(seg)
		decoded = bytes.ReplaceAll(decoded, []byte("/"), []byte("%2F"))
		segments[i] = decoded
	}

	var dotless [][]byte
	for _, seg := range segments {
		switch {
		case bytes.Equal(seg, []byte(".")):
		case bytes.Equal(seg, []byte("..")):
			if len(dotless) > 0 {
				dotless = dotless[:len(dotless)-1]
			}
		default:
			dotless = append(dotless, seg)
		}
	}

	if len(dotless) == 1 && len(dotless[0]) == 0 {
		return []byte("/"), obfDotSegment
	}
	obf := ""
	if len(dotless) < len(segments) {
		obf = obfDotSegment
	}
	return bytes.Join(dotless, []byte("/")), obf
}
