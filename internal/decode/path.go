package decode

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/kestrel-sec/multidecoder/internal/iocdata"
	"github.com/kestrel-sec/multidecoder/internal/node"
)

const obfWindowsDotpath = "windows.dotpath"

var posixPathRE = regexp.MustCompile(`\.?\.?/(?:\w{3,}/)+[\w.]{3,}`)

// PathPosix scans buf for "./", "../", and "/"-rooted POSIX paths with
// segments at least three characters long.
func PathPosix(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range posixPathRE.FindAllIndex(buf, -1) {
		hits = append(hits, node.HitFromMatch("path", buf, loc))
	}
	return hits
}

// windowsPathRE recognizes DOS device paths (\\?\ and \\.\, including the
// \\?\UNC\host\share form and \\?\Volume{guid}\ form), plain UNC paths
// (\\host\share), drive-absolute and drive-relative paths, and bare
// backslash-rooted paths, followed by one or more backslash-separated
// segments and a final filename segment.
var windowsPathRE = regexp.MustCompile(
	`(?i)(?:\\\\[.?]\\(?:[a-z]:\\|UNC\\[\w.\-]+\\(?:[a-z]\$\\)?|Volume\{[a-z0-9\-]{36}\}\\)?` +
		`|\\\\[\w.\-]+(?:@SSL)?(?:@\d{0,5})?\\(?:[a-z]\$\\)?` +
		`|[a-z]:\\?|\\)?` +
		`(?:(?:\.|\.\.|[\w.\-]{3,})\\)+` +
		`[\w.\-]{3,}`)

// PathWindows scans buf for Windows paths, using the embedded default tables
// to validate any UNC/device-path hostname that resolves to a domain.
func PathWindows(buf []byte) []*node.Node {
	return NewPathWindows(defaultTables)(buf)
}

// NewPathWindows returns a PathWindows decoder bound to tables.
func NewPathWindows(tables *iocdata.Tables) Decoder {
	return func(buf []byte) []*node.Node {
		var hits []*node.Node
		for _, loc := range windowsPathRE.FindAllIndex(buf, -1) {
			raw := buf[loc[0]:loc[1]]
			normalized, obf := normalizeWindowsPath(raw)
			pathType, children := classifyWindowsPath(normalized, tables)

			filename := normalized
			if i := bytes.LastIndexByte(normalized, '\\'); i >= 0 {
				filename = normalized[i+1:]
			}
			if ext := windowsSplitExt(filename); ext != "" {
				typ := filenameTypeForExt(strings.ToLower(ext))
				start := len(normalized) - len(filename)
				children = append(children, node.New(typ, append([]byte(nil), filename...), "", start, len(normalized)))
			}

			hits = append(hits, node.New(pathType, normalized, obf, loc[0], loc[1], children...))
		}
		return hits
	}
}

// normalizeWindowsPath collapses duplicate backslashes and resolves "."/".."
// segments, preserving any leading backslash run (so a UNC path keeps its
// leading "\\").
func normalizeWindowsPath(path []byte) ([]byte, string) {
	segments := bytes.Split(path, []byte(`\`))

	leading := 0
	for leading < len(segments) && len(segments[leading]) == 0 {
		leading++
	}

	var dotless [][]byte
	for _, seg := range segments[leading:] {
		switch {
		case len(seg) == 0:
			continue
		case bytes.Equal(seg, []byte(".")):
		case bytes.Equal(seg, []byte("..")):
			if len(dotless) > 0 {
				dotless = dotless[:len(dotless)-1]
			}
		default:
			dotless = append(dotless, seg)
		}
	}

	normalized := append(bytes.Repeat([]byte(`\`), leading), bytes.Join(dotless, []byte(`\`))...)
	obf := ""
	if len(normalized) < len(path) {
		obf = obfWindowsDotpath
	}
	return normalized, obf
}

// classifyWindowsPath determines the node type for a normalized Windows path
// and, for DOS-device and UNC forms, extracts the host component into a
// network.ip or network.domain child.
func classifyWindowsPath(path []byte, tables *iocdata.Tables) (string, []*node.Node) {
	segments := bytes.Split(path, []byte(`\`))

	switch {
	case bytes.HasPrefix(path, []byte(`\\.`)) || bytes.HasPrefix(path, []byte(`\\?`)):
		if len(segments) > 4 && strings.EqualFold(string(segments[3]), "UNC") {
			return "windows.device.path", hostChild(segments[4], 8, tables)
		}
		return "windows.device.path", nil
	case bytes.HasPrefix(path, []byte(`\\`)):
		if len(segments) > 2 {
			return "windows.unc.path", hostChild(segments[2], 2, tables)
		}
		return "windows.unc.path", nil
	default:
		return "windows.path", nil
	}
}

func hostChild(hostname []byte, offset int, tables *iocdata.Tables) []*node.Node {
	if i := bytes.IndexByte(hostname, '@'); i >= 0 {
		hostname = hostname[:i]
	}
	if len(hostname) == 0 {
		return nil
	}
	if n := parseIPv4Host(hostname); n != nil {
		return []*node.Node{n.Shift(offset)}
	}
	if isURLDomain(string(hostname), tables) {
		return []*node.Node{node.New("network.domain", append([]byte(nil), hostname...), "", offset, offset+len(hostname))}
	}
	return nil
}

// windowsSplitExt returns the extension (including the leading dot) of
// filename, or "" if filename has no extension or is itself a dotfile
// (".bashrc"-style names with the only dot at position 0 don't count).
func windowsSplitExt(filename []byte) string {
	name := string(filename)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i:]
}
