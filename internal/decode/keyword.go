package decode

import (
	"bytes"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

// isWordByte reports whether b counts as an alphanumeric or underscore "word" byte for the
// purposes of keyword word-boundary matching.
func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

// NewKeyword returns a Decoder that performs case-insensitive, whole-word
// substring search for each of keywords over a buffer, labeling every hit
// with label and flagging MixedCase obfuscation when the matched bytes
// differ in case from the lowercased keyword (per alphabetic run, ignoring
// runs that are entirely uppercase).
func NewKeyword(label string, keywords [][]byte) Decoder {
	lowered := make([][]byte, len(keywords))
	for i, kw := range keywords {
		lowered[i] = bytes.ToLower(kw)
	}
	return func(buf []byte) []*node.Node {
		lowBuf := bytes.ToLower(buf)
		var hits []*node.Node
		for i, kw := range lowered {
			if len(kw) == 0 {
				continue
			}
			original := keywords[i]
			from := 0
			for {
				idx := bytes.Index(lowBuf[from:], kw)
				if idx < 0 {
					break
				}
				start := from + idx
				end := start + len(kw)
				from = end

				if start > 0 && isWordByte(lowBuf[start-1]) {
					continue
				}
				if end < len(lowBuf) && isWordByte(lowBuf[end]) {
					continue
				}

				matched := buf[start:end]
				obf := ""
				if hasMixedCase(matched, kw) {
					obf = "MixedCase"
				}
				hits = append(hits, node.New(label, append([]byte(nil), original...), obf, start, end))
			}
		}
		return hits
	}
}

// hasMixedCase reports whether matched (the original-case bytes found in the
// buffer) differs in case from kw (the lowercased keyword) in a way that
// indicates deliberate obfuscation: a per-alphabetic-run comparison that
// ignores runs which are entirely uppercase (so DUCK vs duck is not
// flagged, but DuCk vs duck is).
func hasMixedCase(matched, kw []byte) bool {
	if len(matched) != len(kw) {
		return false
	}
	i := 0
	for i < len(matched) {
		if !isAlpha(matched[i]) {
			i++
			continue
		}
		j := i
		allUpper := true
		differs := false
		for j < len(matched) && isAlpha(matched[j]) {
			if matched[j] < 'a' || matched[j] > 'z' {
				// upper or non-letter-case byte
			} else {
				allUpper = false
			}
			if matched[j] != kw[j] {
				differs = true
			}
			j++
		}
		if differs && !allUpper {
			return true
		}
		i = j
	}
	return false
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
