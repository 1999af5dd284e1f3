// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package request

import (
	"testing"

	"github.com/heikomat/minstall/internal/manifest"
)

func mod(path, name string, deps map[string]string) *manifest.ModuleInfo {
	return &manifest.ModuleInfo{
		Location:       path,
		RealFolderName: "",
		Name:           name,
		Dependencies:   deps,
	}
}

func TestCoalesceSingleSharedRange(t *testing.T) {
	a := mod("/proj/modules/a", "a", map[string]string{"lodash": "^4.17.0"})
	b := mod("/proj/modules/b", "b", map[string]string{"lodash": "^4.17.0"})

	reqs := Coalesce([]*manifest.ModuleInfo{a, b})
	entries := reqs.Entries("lodash")
	if len(entries) != 1 {
		t.Fatalf("expected one coalesced entry, got %d", len(entries))
	}
	if len(entries[0].RequestedBy) != 2 {
		t.Fatalf("expected both modules as requesters, got %v", entries[0].RequestedBy)
	}
}

func TestCoalesceDisjointRanges(t *testing.T) {
	a := mod("/proj/modules/a", "a", map[string]string{"lodash": "^3.0.0"})
	b := mod("/proj/modules/b", "b", map[string]string{"lodash": "^4.0.0"})

	reqs := Coalesce([]*manifest.ModuleInfo{a, b})
	entries := reqs.Entries("lodash")
	if len(entries) != 2 {
		t.Fatalf("expected two disjoint entries, got %d", len(entries))
	}
}

func TestCoalesceIntersectingRangesNarrow(t *testing.T) {
	a := mod("/proj/modules/a", "a", map[string]string{"pkg": "^1.2.0"})
	b := mod("/proj/modules/b", "b", map[string]string{"pkg": "~1.4.1"})

	reqs := Coalesce([]*manifest.ModuleInfo{a, b})
	entries := reqs.Entries("pkg")
	if len(entries) != 1 {
		t.Fatalf("expected the two ranges to coalesce into one, got %d", len(entries))
	}
	if len(entries[0].RequestedBy) != 2 {
		t.Fatalf("expected both modules as requesters, got %v", entries[0].RequestedBy)
	}
	if entries[0].VersionRange != "~1.4.1" {
		t.Errorf("expected the narrower range ~1.4.1 to win, got %q", entries[0].VersionRange)
	}
}

func TestCoalesceNonSemverRangeIsPinnedByTextualMatch(t *testing.T) {
	a := mod("/proj/modules/a", "a", map[string]string{"mytool": "github:org/repo#tag"})
	b := mod("/proj/modules/b", "b", map[string]string{"mytool": "github:org/repo#tag"})
	c := mod("/proj/modules/c", "c", map[string]string{"mytool": "github:org/repo#other"})

	reqs := Coalesce([]*manifest.ModuleInfo{a, b, c})
	entries := reqs.Entries("mytool")
	if len(entries) != 2 {
		t.Fatalf("expected two distinct non-semver pins, got %d", len(entries))
	}
	for _, e := range entries {
		if e.VersionRange == "github:org/repo#tag" && len(e.RequestedBy) != 2 {
			t.Errorf("expected the shared tag to have two requesters, got %v", e.RequestedBy)
		}
	}
}

func TestIdentifierFormat(t *testing.T) {
	r := &DependencyRequest{Name: "lodash", VersionRange: "^4.0.0"}
	want := `lodash@"^4.0.0"`
	if got := r.Identifier(); got != want {
		t.Errorf("Identifier() = %q, want %q", got, want)
	}
}
