package iocdata

import "testing"

func TestDefaultIncludesKnownTLDAndFalsePositive(t *testing.T) {
	tables := Default()
	if !tables.IsTLD("com") {
		t.Errorf("expected com to be a recognized TLD")
	}
	if tables.IsTLD("notarealtld") {
		t.Errorf("notarealtld should not be a recognized TLD")
	}
	if !tables.IsFalsePositive("libm.so") {
		t.Errorf("libm.so should be a known false positive")
	}
}

func TestIsTLDIsCaseInsensitive(t *testing.T) {
	tables := Default()
	if !tables.IsTLD("COM") {
		t.Errorf("IsTLD should be case-insensitive")
	}
}

func TestIsFalsePositiveMatchesRootLabel(t *testing.T) {
	tables := Default()
	if !tables.IsFalsePositive("prototype.constructor.chain") {
		t.Errorf("expected the leading label 'prototype' to match a false-positive root")
	}
	if tables.IsFalsePositive("example.com") {
		t.Errorf("example.com should not be a false positive")
	}
}

func TestParseBuildsUsableTables(t *testing.T) {
	tables, err := Parse([]byte(`
tlds: [zz]
false_positive_strings: [bad.zz]
false_positive_roots: [junk]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tables.IsTLD("zz") {
		t.Errorf("expected zz to be recognized after Parse")
	}
	if !tables.IsFalsePositive("bad.zz") {
		t.Errorf("expected bad.zz to be a false positive")
	}
	if !tables.IsFalsePositive("junk.zz") {
		t.Errorf("expected the 'junk' root to match junk.zz")
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("tlds: [unterminated")); err == nil {
		t.Fatalf("expected an error parsing malformed YAML")
	}
}

func TestMergeCombinesBothTableSets(t *testing.T) {
	base, err := Parse([]byte(`tlds: [aaa]`))
	if err != nil {
		t.Fatalf("Parse base: %v", err)
	}
	overlay, err := Parse([]byte(`tlds: [bbb]`))
	if err != nil {
		t.Fatalf("Parse overlay: %v", err)
	}

	merged := base.Merge(overlay)
	if !merged.IsTLD("aaa") || !merged.IsTLD("bbb") {
		t.Fatalf("merged tables should recognize both aaa and bbb")
	}
	if base.IsTLD("bbb") {
		t.Fatalf("Merge must not mutate the receiver")
	}
}
