package decode

import (
	"bytes"
	"debug/pe"
	"encoding/binary"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const (
	eLfanewOffset = 0x3C
	eLfanewSize   = 4
)

// PEValidator inspects the bytes of a candidate PE file starting at its "MZ"
// header and returns the total size of the image (the highest
// PointerToRawData+SizeOfRawData across all sections), or 0 if buf does not
// parse as a well-formed PE.
type PEValidator func(buf []byte) int

// PE returns a decoder that carves embedded PE files out of buf: it locates
// every "MZ" header, follows e_lfanew to confirm a "PE\0\0" signature, then
// asks validate for the image's true extent.
func PE(validate PEValidator) Decoder {
	return func(buf []byte) []*node.Node {
		var hits []*node.Node
		for _, idx := range allIndices(buf, []byte("MZ")) {
			lfanewPos := idx + eLfanewOffset
			if len(buf) < lfanewPos+eLfanewSize {
				continue
			}
			lfanew := int(binary.LittleEndian.Uint32(buf[lfanewPos : lfanewPos+4]))
			peSig := idx + lfanew
			if peSig < 0 || len(buf) < peSig+4 || !bytes.Equal(buf[peSig:peSig+4], []byte("PE\x00\x00")) {
				continue
			}
			size := validate(buf[idx:])
			if size <= 0 {
				continue
			}
			end := idx + size
			if end > len(buf) {
				end = len(buf)
			}
			hits = append(hits, node.New("pe_file", append([]byte(nil), buf[idx:end]...), "", idx, end))
		}
		return hits
	}
}

func allIndices(buf, sep []byte) []int {
	var out []int
	from := 0
	for {
		i := bytes.Index(buf[from:], sep)
		if i < 0 {
			return out
		}
		out = append(out, from+i)
		from += i + 1
	}
}

// DefaultPEValidator parses buf with the standard library's debug/pe reader
// and returns the highest section extent it finds, 0 on any parse failure.
func DefaultPEValidator(buf []byte) int {
	f, err := pe.NewFile(bytes.NewReader(buf))
	if err != nil {
		return 0
	}
	defer f.Close()

	size := 0
	for _, sec := range f.Sections {
		if end := int(sec.Offset) + int(sec.Size); end > size {
			size = end
		}
	}
	return size
}
