// Package iocdata holds the TLD and false-positive tables the network
// decoder consults. These are data, not logic (spec.md §9), so they live in
// an embedded YAML document rather than in code, and can be overridden by
// internal/iocconfig without a rebuild.
package iocdata

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Tables holds the recognized TLD set and the domain false-positive
// denylist consulted by the network decoder.
type Tables struct {
	TLDs                 []string `yaml:"tlds"`
	FalsePositiveStrings []string `yaml:"false_positive_strings"`
	FalsePositiveRoots   []string `yaml:"false_positive_roots"`

	tldSet    map[string]bool
	fpStrSet  map[string]bool
	fpRootSet map[string]bool
}

// index builds the lowercase lookup sets used by IsTLD/IsFalsePositive.
// Called once after decode (by Parse) and again after any merge.
func (t *Tables) index() {
	t.tldSet = toSet(t.TLDs)
	t.fpStrSet = toSet(t.FalsePositiveStrings)
	t.fpRootSet = toSet(t.FalsePositiveRoots)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = true
	}
	return set
}

// IsTLD reports whether tld (without leading dot) is a recognized TLD.
func (t *Tables) IsTLD(tld string) bool {
	return t.tldSet[strings.ToLower(tld)]
}

// IsFalsePositive reports whether candidate (a full dotted hostname) is a
// known false-positive string, or has a known false-positive leftmost
// label.
func (t *Tables) IsFalsePositive(candidate string) bool {
	lower := strings.ToLower(candidate)
	if t.fpStrSet[lower] {
		return true
	}
	root := lower
	if i := strings.IndexByte(lower, '.'); i >= 0 {
		root = lower[:i]
	}
	return t.fpRootSet[root]
}

// Parse decodes a YAML document into Tables and builds its lookup indices.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	t.index()
	return &t, nil
}

// Default returns the embedded baseline Tables.
func Default() *Tables {
	t, err := Parse(defaultsYAML)
	if err != nil {
		// The embedded document is a build-time asset; a parse failure here
		// means the binary itself is broken, not a runtime condition.
		panic("iocdata: embedded defaults.yaml is invalid: " + err.Error())
	}
	return t
}

// Merge returns a new Tables combining t with overlay: overlay's entries are
// appended to t's (duplicates collapse via the rebuilt index), used by
// internal/iocconfig to layer a user config on top of the defaults.
func (t *Tables) Merge(overlay *Tables) *Tables {
	merged := &Tables{
		TLDs:                 append(append([]string(nil), t.TLDs...), overlay.TLDs...),
		FalsePositiveStrings: append(append([]string(nil), t.FalsePositiveStrings...), overlay.FalsePositiveStrings...),
		FalsePositiveRoots:   append(append([]string(nil), t.FalsePositiveRoots...), overlay.FalsePositiveRoots...),
	}
	merged.index()
	return merged
}
