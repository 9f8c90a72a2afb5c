package decode

import (
	"testing"

	"github.com/kestrel-sec/multidecoder/internal/iocdata"
	"github.com/kestrel-sec/multidecoder/internal/node"
)

func TestRegistryRunRecoversFromPanickingDecoder(t *testing.T) {
	panicky := func(buf []byte) []*node.Node {
		panic("boom")
	}
	fine := func(buf []byte) []*node.Node {
		return []*node.Node{node.New("ok", buf, "", 0, len(buf))}
	}
	reg := Registry{panicky, fine}
	hits := reg.Run([]byte("hello"))
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 (panic isolated): %+v", len(hits), hits)
	}
	if hits[0].Type != "ok" {
		t.Fatalf("Type = %q", hits[0].Type)
	}
}

func TestRegistryRunDropsEmptyValueHits(t *testing.T) {
	empty := func(buf []byte) []*node.Node {
		return []*node.Node{node.New("empty", nil, "", 0, 0)}
	}
	nonEmpty := func(buf []byte) []*node.Node {
		return []*node.Node{node.New("present", []byte("x"), "", 0, 1)}
	}
	reg := Registry{empty, nonEmpty}
	hits := reg.Run([]byte("z"))
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 (empty-value hit dropped): %+v", len(hits), hits)
	}
	if hits[0].Type != "present" {
		t.Fatalf("Type = %q", hits[0].Type)
	}
}

func TestRegistryRunDropsNilNodes(t *testing.T) {
	withNil := func(buf []byte) []*node.Node {
		return []*node.Node{nil, node.New("present", []byte("x"), "", 0, 1)}
	}
	reg := Registry{withNil}
	hits := reg.Run([]byte("z"))
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 (nil dropped): %+v", len(hits), hits)
	}
}

func TestBuiltinsRunsEndToEndWithoutPanicking(t *testing.T) {
	reg := Builtins(iocdata.Default(), func(b []byte) int { return 0 })
	buf := []byte("visit https://google.com or run C:\\Windows\\System32\\cmd.exe /c dir")
	hits := reg.Run(buf)
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit across the built-in decoder set")
	}
	for _, h := range hits {
		if h.Start < 0 || h.End > len(buf) || h.Start > h.End {
			t.Fatalf("hit span out of bounds: %+v", h)
		}
	}
}
