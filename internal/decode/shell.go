package decode

import (
	"bytes"
	"encoding/base64"
	"regexp"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const (
	obfShellCarets      = "unescape.shell.carets"
	obfPowershellBase64 = "powershell.base64"
)

var cmdRE = regexp.MustCompile(
	`(?i)("(?:C:\\WINDOWS\\system32\\)?\bcmd(?:\.exe)?"|(?:C:\\Windows\\System32\\)?\bc\^?m\^?d\b)[^\x00]*`)

// ShellCmd matches cmd.exe invocations (including caret-obfuscated "cmd"),
// consuming up to a closing ")" at bracket depth zero or end of buffer, and
// strips carets outside double-quoted runs.
func ShellCmd(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range cmdRE.FindAllIndex(buf, -1) {
		start, end := loc[0], loc[1]
		full := buf[start:end]
		if i := depthZeroParenEnd(full); i >= 0 {
			full = full[:i]
			end = start + i
		}
		deobfuscated, obf := stripShellCarets(full)
		deobfuscated = stripLeadingCommandTrailingQuote(deobfuscated)
		hits = append(hits, node.New("shell.cmd", deobfuscated, obf, start, end))
	}
	return hits
}

// depthZeroParenEnd returns the index at which full's parenthesis balance
// first goes negative (the command's own closing paren in something like
// "cmd /c foo)"), or -1 if it never does.
func depthZeroParenEnd(full []byte) int {
	balance := 0
	for i, c := range full {
		switch c {
		case ')':
			balance--
		case '(':
			balance++
		}
		if balance < 0 {
			return i
		}
	}
	return -1
}

// stripShellCarets removes cmd.exe's caret escape character outside
// double-quoted runs, treating "^^" as a literal caret and "^\r\n" as a line
// continuation that disappears entirely.
func stripShellCarets(cmd []byte) ([]byte, string) {
	stripped := doStripCarets(cmd)
	obf := ""
	if !bytes.Equal(stripped, cmd) {
		obf = obfShellCarets
	}
	return stripped, obf
}

func doStripCarets(cmd []byte) []byte {
	var out []byte
	inString := false
	i := 0
	for i < len(cmd)-1 {
		c := cmd[i]
		switch {
		case c == '"':
			inString = !inString
		case c == '\r':
			inString = false
		case c == '^' && !inString:
			i++
			if i < len(cmd) && cmd[i] == '\r' {
				i += 2
			}
		}
		if i < len(cmd) {
			out = append(out, cmd[i])
		}
		i++
	}
	if i < len(cmd) && (cmd[i] != '^' || inString) {
		out = append(out, cmd[i])
	}
	return out
}

// stripLeadingCommandTrailingQuote drops a trailing quote from the first
// whitespace-delimited field when that field ends but doesn't begin with a
// matching quote character, rejoining on single spaces (mirrors the quoting
// cleanup applied to "cmd /c "something" quoted-trailer" style invocations).
func stripLeadingCommandTrailingQuote(cmd []byte) []byte {
	fields := bytes.Fields(cmd)
	if len(fields) == 0 {
		return cmd
	}
	first := fields[0]
	if (!bytes.HasPrefix(first, []byte(`"`)) && bytes.HasSuffix(first, []byte(`"`))) ||
		(!bytes.HasPrefix(first, []byte(`'`)) && bytes.HasSuffix(first, []byte(`'`))) {
		fields[0] = first[:len(first)-1]
		return bytes.Join(fields, []byte(" "))
	}
	return cmd
}

// powershellIndicatorRE finds "powershell"/"pwsh"/"wsh" (optionally
// caret-interleaved, optionally suffixed with ".exe") at the start of the
// buffer or right after a command separator / quote / bracket.
var powershellIndicatorRE = regexp.MustCompile(
	`(?i)(?:^|/c|/k|/r|[;,=&'"({\\])\s*(\^?\bp\^?(?:o\^?w\^?e\^?r\^?s\^?h\^?e\^?l\^?l|w\^?s\^?h)(?:\^?\.\^?e\^?x\^?e)?)\b`)

// encArgRE matches an "-e.../--encodedcommand.../..." style flag (any
// caret-free prefix of "encodedcommand") followed by a base64 argument.
var encArgRE = regexp.MustCompile(`(?i)^[^\n]{0,200}?(?:-|/)e(?:n(?:c(?:o(?:d(?:e(?:d(?:c(?:o(?:m(?:m(?:a(?:n(?:d)?)?)?)?)?)?)?)?)?)?)?)?)?\s+['"]?([A-Za-z0-9+/^]{4,}=?=?)['"]?`)

// ShellPowerShell scans buf for PowerShell invocations. An "-encodedcommand"
// argument is decoded as base64-of-UTF-16LE and the invocation rewritten as
// "... -Command <decoded>"; otherwise the extent of the command is inferred
// from the nearest enclosing quote/paren context and carets are stripped.
func ShellPowerShell(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, im := range powershellIndicatorRE.FindAllSubmatchIndex(buf, -1) {
		start, indicatorEnd := im[2], im[3]

		if argLoc := encArgRE.FindSubmatchIndex(buf[indicatorEnd:]); argLoc != nil {
			argEnd := indicatorEnd + argLoc[1]
			encoded := buf[indicatorEnd+argLoc[2] : indicatorEnd+argLoc[3]]
			if hit := buildEncodedPowershellHit(buf, start, indicatorEnd, argEnd, encoded); hit != nil {
				hits = append(hits, hit)
				continue
			}
		}

		end := findPowershellExtent(buf, start)
		deobfuscated, obf := stripShellCarets(buf[start:end])
		if obf != "" {
			cmdNode := node.New("shell.cmd", deobfuscated, obf, start, end)
			cmdNode.AddChild(node.New("shell.powershell", append([]byte(nil), deobfuscated...), "", 0, len(deobfuscated)))
			hits = append(hits, cmdNode)
		} else {
			hits = append(hits, node.New("shell.powershell", deobfuscated, "", start, end))
		}
	}
	return hits
}

func buildEncodedPowershellHit(buf []byte, start, indicatorEnd, argEnd int, encoded []byte) *node.Node {
	encoded = bytes.Trim(encoded, `'"`)
	if len(encoded) == 0 || len(encoded)%4 != 0 || bytes.ContainsRune(encoded, '^') {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil
	}
	text, ok := decodeUTF16LE(raw)
	if !ok {
		return nil
	}

	invocation := buf[start:indicatorEnd]
	deobfuscated := make([]byte, 0, len(invocation)+len(text)+len(" -Command "))
	deobfuscated = append(deobfuscated, invocation...)
	deobfuscated = append(deobfuscated, []byte(" -Command ")...)
	deobfuscated = append(deobfuscated, text...)

	return node.New("shell.powershell", deobfuscated, obfPowershellBase64, start, argEnd)
}

// findPowershellExtent determines how far a non-encoded PowerShell command
// extends by looking back from start for the nearest enclosing quote or
// cmd-style FOR-loop open paren ('(), then scanning forward for its match.
// With no such context, the command is assumed to run to the end of buf.
func findPowershellExtent(buf []byte, start int) int {
	before := buf[:start]
	bound, found := nearestOpenBound(before)
	if !found {
		return len(buf)
	}
	var closer []byte
	switch bound {
	case "'(":
		closer = []byte("')")
	case `"`:
		closer = []byte(`"`)
	default:
		closer = []byte("'")
	}
	if i := bytes.Index(buf[start:], closer); i >= 0 {
		return start + i
	}
	return len(buf)
}

// nearestOpenBound finds the rightmost quote (single or double) in before
// and classifies it: if the single quote is immediately preceded by "(" it
// is a cmd.exe FOR-loop open, e.g. for /f "x" in ('cmd'), reported as "'(";
// otherwise it's an ordinary quoted-string open.
func nearestOpenBound(before []byte) (string, bool) {
	idxDouble := bytes.LastIndexByte(before, '"')
	idxSingle := bytes.LastIndexByte(before, '\'')

	best, boundType := -1, ""
	if idxDouble > best {
		best, boundType = idxDouble, `"`
	}
	if idxSingle > best {
		best, boundType = idxSingle, "'"
	}
	if best < 0 {
		return "", false
	}
	if boundType == "'" && best > 0 && before[best-1] == '(' {
		boundType = "'("
	}
	return boundType, true
}
