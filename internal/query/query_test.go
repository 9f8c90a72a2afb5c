package query

import (
	"bytes"
	"testing"

	"github.com/kestrel-sec/multidecoder/internal/node"
)

func TestFlattenWrapsStringSuffixedChildInQuotes(t *testing.T) {
	root := node.New("", []byte("run CMD now"), "", 0, 11)
	root.AddChild(node.New("shell.string", []byte("stuff"), "", 4, 7))

	got := Flatten(root)
	want := []byte(`run "stuff" now`)
	if !bytes.Equal(got, want) {
		t.Fatalf("Flatten = %q, want %q", got, want)
	}
}

func TestFlattenSkipsOverlappingChild(t *testing.T) {
	root := node.New("", []byte("abcdef"), "", 0, 6)
	root.AddChild(node.New("x", []byte("WXYZ"), "", 0, 4))
	root.AddChild(node.New("y", []byte("QQ"), "", 2, 5)) // overlaps child 1, must be skipped

	got := Flatten(root)
	want := []byte("WXYZef")
	if !bytes.Equal(got, want) {
		t.Fatalf("Flatten = %q, want %q", got, want)
	}
}

func TestFlattenRecursesThroughNestedChildren(t *testing.T) {
	root := node.New("", []byte("see R1ZASA== here"), "", 0, 17)
	b64 := node.New("", []byte("GV@H"), "base64", 4, 12)
	b64.AddChild(node.New("cipher.xor35", []byte("duck"), "", 0, 4))
	root.AddChild(b64)

	got := Flatten(root)
	want := []byte("see duck here")
	if !bytes.Equal(got, want) {
		t.Fatalf("Flatten = %q, want %q", got, want)
	}
}

func TestStringSummaryBuildsLabelPaths(t *testing.T) {
	root := node.New("", []byte("buf"), "", 0, 3)
	url := node.New("url", []byte("http://x"), "obf.percent", 0, 8)
	scheme := node.New("url.scheme", []byte("http"), "", 0, 4)
	root.AddChild(url)
	url.AddChild(scheme)

	lines := StringSummary(root)
	want := []string{
		`url/>obf.percent "http://x"`,
		`url/>obf.percent/url.scheme "http"`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestObfuscationCountsTalliesRootAndDescendants(t *testing.T) {
	root := node.New("", []byte("buf"), "base64", 0, 3)
	child := node.New("url", []byte("http://x"), "obf.percent", 0, 8)
	grandchild := node.New("url.scheme", []byte("http"), "", 0, 4)
	root.AddChild(child)
	child.AddChild(grandchild)

	counts := ObfuscationCounts(root)
	if counts["base64"] != 1 {
		t.Errorf("base64 count = %d, want 1", counts["base64"])
	}
	if counts["obf.percent"] != 1 {
		t.Errorf("obf.percent count = %d, want 1", counts["obf.percent"])
	}
	if len(counts) != 2 {
		t.Errorf("got %d obfuscation labels, want 2: %v", len(counts), counts)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	root := node.New("", []byte{0x00, 0xFF, 'h', 'i'}, "", 0, 4)
	child := node.New("network.domain", []byte("example.com"), "obf.idn", 5, 16)
	grandchild := node.New("network.domain.tld", []byte("com"), "", 8, 11)
	child.AddChild(grandchild)
	root.AddChild(child)

	encoded, err := ToJSON(root)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := FromJSON(encoded)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !root.Equal(decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, root)
	}
}

func TestFromJSONRejectsBadHex(t *testing.T) {
	if _, err := FromJSON([]byte(`{"type":"","value":"not-hex","obfuscation":"","start":0,"end":0,"children":[]}`)); err == nil {
		t.Fatalf("expected an error decoding a non-hex value field")
	}
}

func TestFromJSONRejectsMalformedJSON(t *testing.T) {
	if _, err := FromJSON([]byte(`{not json`)); err == nil {
		t.Fatalf("expected an error decoding malformed JSON")
	}
}
