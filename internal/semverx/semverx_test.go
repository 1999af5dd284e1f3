// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package semverx

import "testing"

func TestIsValidRange(t *testing.T) {
	cases := map[string]bool{
		"^1.2.0":              true,
		"~1.4.1":              true,
		"1.2.3":               true,
		"github:org/repo#tag": false,
		"":                    false,
	}

	for in, want := range cases {
		if got := IsValidRange(in); got != want {
			t.Errorf("IsValidRange(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIntersectOverlapping(t *testing.T) {
	result, ok := Intersect("^1.2.0", "~1.4.1")
	if !ok {
		t.Fatalf("expected an intersection")
	}
	if result == "" {
		t.Fatalf("expected a non-empty result string")
	}
}

func TestIntersectDisjoint(t *testing.T) {
	if _, ok := Intersect("^3.0.0", "^4.0.0"); ok {
		t.Fatalf("expected no intersection for disjoint major ranges")
	}
}

func TestIntersectNonSemverNeverErrors(t *testing.T) {
	if _, ok := Intersect("github:org/repo#tag", "^1.0.0"); ok {
		t.Fatalf("non-semver ranges must never be reported as intersecting")
	}
	if _, ok := Intersect("github:org/repo#tag", "github:org/repo#tag"); ok {
		t.Fatalf("identical non-semver ranges still don't semver-intersect; textual equality is the coalescer's job, not Intersect's")
	}
}

func TestSatisfies(t *testing.T) {
	if !Satisfies("2.0.0", "^2.0.0") {
		t.Errorf("2.0.0 should satisfy ^2.0.0")
	}
	if Satisfies("3.0.0", "^2.0.0") {
		t.Errorf("3.0.0 should not satisfy ^2.0.0")
	}
	if Satisfies("not-a-version", "^2.0.0") {
		t.Errorf("an unparseable version should never satisfy a range")
	}
}
