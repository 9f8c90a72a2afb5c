// Package decode implements the multidecoder decoder library: a collection
// of pure byte-buffer-to-Node functions plus the registry that aggregates
// them. No decoder performs I/O or network access, and none may let an
// exception (panic) escape its boundary — the registry treats an empty
// decoder result and a recovered panic identically: no hits from that
// decoder for that buffer.
package decode

import (
	"github.com/kestrel-sec/multidecoder/internal/iocdata"
	"github.com/kestrel-sec/multidecoder/internal/node"
)

// Decoder is a pure function buffer -> hits. Every hit's (Start, End) is a
// byte offset into buffer; hits never extend past len(buffer).
type Decoder func(buf []byte) []*node.Node

// Registry is an ordered, read-only list of decoders. It is built once and
// may be reused (and shared across goroutines) for the lifetime of the
// process, since regexp.Regexp matching is safe for concurrent readers.
type Registry []Decoder

// Run invokes every decoder in r against buf, recovering from any panic a
// misbehaving decoder raises so one bad decoder never aborts a scan, and
// drops hits with an empty Value (spec: "drop any with empty value").
func (r Registry) Run(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, d := range r {
		hits = append(hits, runOne(d, buf)...)
	}
	out := hits[:0]
	for _, h := range hits {
		if h != nil && len(h.Value) > 0 {
			out = append(out, h)
		}
	}
	return out
}

func runOne(d Decoder, buf []byte) (hits []*node.Node) {
	defer func() {
		if recover() != nil {
			hits = nil
		}
	}()
	return d(buf)
}

// Builtins returns the full built-in decoder set described by the decoder
// library component (base64, hex, XML numeric references, UTF-16, chr(),
// string concatenation, replace, reverse, unescape, network, paths,
// filenames, PE carving, shell, VBA CreateObject). Keyword-file decoders
// are appended separately by the caller (see NewKeyword and the iocconfig
// loader), mirroring how the original registers one decoder per keyword
// file at startup.
func Builtins(tables *iocdata.Tables, peValidator PEValidator) Registry {
	reg := Registry{
		Base64,
		Base64VBA,
		Base64PowerShell,
		Base64JS,
		Hex,
		HexNamed,
		XMLNumericRefs,
		UTF16,
		Chr,
		Concat,
		ReplaceJS,
		ReplacePowerShell,
		ReplaceVBA,
		ReplaceJSRegex,
		Reverse,
		ReverseVBA,
		Unescape,
		NewEmail(tables),
		NewURL(tables),
		NewDomain(tables),
		IP,
		PathPosix,
		NewPathWindows(tables),
		Filename,
		ShellCmd,
		ShellPowerShell,
		VBACreateObject,
	}
	reg = append(reg, PE(peValidator))
	return reg
}
