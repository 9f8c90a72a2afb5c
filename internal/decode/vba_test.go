package decode

import (
	"bytes"
	"testing"
)

func TestVBACreateObject(t *testing.T) {
	hits := VBACreateObject([]byte(`Set obj = CreateObject("WScript.Shell")`))
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1: %+v", len(hits), hits)
	}
	if hits[0].Type != "vba.function.createobject" {
		t.Fatalf("Type = %q", hits[0].Type)
	}
	if !bytes.Equal(hits[0].Value, []byte(`CreateObject("WScript.Shell")`)) {
		t.Fatalf("Value = %q", hits[0].Value)
	}
}

func TestVBACreateObjectUnterminatedIsSkipped(t *testing.T) {
	hits := VBACreateObject([]byte(`Set obj = CreateObject("WScript.Shell"`))
	if len(hits) != 0 {
		t.Fatalf("got %d hits, want 0 for an unterminated call: %+v", len(hits), hits)
	}
}

func TestClosingParenNested(t *testing.T) {
	buf := []byte(`CreateObject(f("a"), g("b")) rest`)
	end := closingParen(buf, len("CreateObject("))
	if end < 0 {
		t.Fatalf("closingParen returned -1, want a valid index")
	}
	if !bytes.Equal(buf[:end], []byte(`CreateObject(f("a"), g("b"))`)) {
		t.Fatalf("buf[:end] = %q", buf[:end])
	}
}
