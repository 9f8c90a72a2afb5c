package decode

import (
	"regexp"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

const (
	executableFilenameType = "executable.filename"
	libraryFilenameType    = "executable.library.filename"
)

var (
	executableRE = regexp.MustCompile(`(?i)\b\w+\.exe\b`)
	libraryRE    = regexp.MustCompile(`(?i)\b\w+\.dll\b`)
)

// Filename scans buf for bare word.exe / word.dll references.
func Filename(buf []byte) []*node.Node {
	var hits []*node.Node
	for _, loc := range executableRE.FindAllIndex(buf, -1) {
		hits = append(hits, node.HitFromMatch(executableFilenameType, buf, loc))
	}
	for _, loc := range libraryRE.FindAllIndex(buf, -1) {
		hits = append(hits, node.HitFromMatch(libraryFilenameType, buf, loc))
	}
	return hits
}

// filenameTypeForExt maps a lowercased, dot-prefixed extension to the node
// type a Windows path decoder should use for its terminal filename child.
func filenameTypeForExt(ext string) string {
	switch ext {
	case ".exe":
		return executableFilenameType
	case ".dll":
		return libraryFilenameType
	default:
		return "filename"
	}
}
