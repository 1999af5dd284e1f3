// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package semverx wraps github.com/Masterminds/semver/v3 to make
// "unparseable ranges behave as disjoint, never as errors" an explicit,
// testable property instead of a convention each caller has to remember.
//
// The canonical Masterminds/semver/v3 module only ever answers "does this
// version satisfy this constraint" -- it has no Intersect, no notion of an
// empty constraint, and no way to recover the comparators a constraint was
// built from. The coalescer needs exactly those things to reduce two
// overlapping ranges to the range that admits their common versions, so
// this package parses npm-style range syntax (^, ~, x-ranges, hyphen
// ranges, comparator lists, || alternatives) into bounded intervals over
// *semver.Version itself and intersects those.
package semverx

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// bound is one edge of an interval. A nil version means unbounded in that
// direction.
type bound struct {
	version   *semver.Version
	inclusive bool
}

// interval is the AND-combination of every comparator in one "||" term: the
// set of versions >= low (or unbounded) and <= high (or unbounded).
type interval struct {
	low  bound
	high bound
}

func unbounded() interval {
	return interval{}
}

// empty reports whether no version can satisfy the interval.
func (iv interval) empty() bool {
	if iv.low.version == nil || iv.high.version == nil {
		return false
	}
	c := iv.low.version.Compare(iv.high.version)
	if c > 0 {
		return true
	}
	return c == 0 && !(iv.low.inclusive && iv.high.inclusive)
}

func combineLow(a, b bound) bound {
	if a.version == nil {
		return b
	}
	if b.version == nil {
		return a
	}
	switch a.version.Compare(b.version) {
	case 1:
		return a
	case -1:
		return b
	default:
		return bound{version: a.version, inclusive: a.inclusive && b.inclusive}
	}
}

func combineHigh(a, b bound) bound {
	if a.version == nil {
		return b
	}
	if b.version == nil {
		return a
	}
	switch a.version.Compare(b.version) {
	case -1:
		return a
	case 1:
		return b
	default:
		return bound{version: a.version, inclusive: a.inclusive && b.inclusive}
	}
}

func (iv interval) and(other interval) interval {
	return interval{low: combineLow(iv.low, other.low), high: combineHigh(iv.high, other.high)}
}

func (iv interval) contains(v *semver.Version) bool {
	if iv.low.version != nil {
		c := v.Compare(iv.low.version)
		if c < 0 || (c == 0 && !iv.low.inclusive) {
			return false
		}
	}
	if iv.high.version != nil {
		c := v.Compare(iv.high.version)
		if c > 0 || (c == 0 && !iv.high.inclusive) {
			return false
		}
	}
	return true
}

func boundEqual(a, b bound) bool {
	if a.version == nil || b.version == nil {
		return a.version == nil && b.version == nil
	}
	return a.inclusive == b.inclusive && a.version.Equal(b.version)
}

func intervalEqual(a, b interval) bool {
	return boundEqual(a.low, b.low) && boundEqual(a.high, b.high)
}

func (iv interval) String() string {
	if iv.low.version == nil && iv.high.version == nil {
		return "*"
	}
	var parts []string
	if iv.low.version != nil && iv.high.version != nil && iv.low.inclusive && iv.high.inclusive &&
		iv.low.version.Equal(iv.high.version) {
		return iv.low.version.String()
	}
	if iv.low.version != nil {
		op := ">="
		if !iv.low.inclusive {
			op = ">"
		}
		parts = append(parts, op+iv.low.version.String())
	}
	if iv.high.version != nil {
		op := "<="
		if !iv.high.inclusive {
			op = "<"
		}
		parts = append(parts, op+iv.high.version.String())
	}
	return strings.Join(parts, " ")
}

// hyphenRangeRegex rewrites "X - Y" into ">=X <=Y" before tokenizing, as
// npm does; the mandatory surrounding whitespace keeps this from colliding
// with a prerelease hyphen such as "1.0.0-beta".
var hyphenRangeRegex = regexp.MustCompile(`(\S+)\s+-\s+(\S+)`)

// versionPartsRegex pulls apart one comparator's version term: each
// component is either a digit run or an x/X/* wildcard, plus an optional
// prerelease tag.
var versionPartsRegex = regexp.MustCompile(`^([0-9]+|[xX*])(?:\.([0-9]+|[xX*]))?(?:\.([0-9]+|[xX*]))?(?:-([0-9A-Za-z.-]+))?(?:\+[0-9A-Za-z.-]+)?$`)

var comparatorOps = []string{">=", "<=", "^", "~", ">", "<", "="}

func isWildcard(s string) bool {
	return s == "x" || s == "X" || s == "*"
}

// parseRange parses a full npm-style range string into the OR'd list of
// intervals it denotes. ok is false only for a genuine syntax error; an
// OR-term whose comparators contradict each other parses fine and simply
// yields an always-empty interval.
func parseRange(s string) ([]interval, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	var out []interval
	for _, term := range strings.Split(s, "||") {
		term = hyphenRangeRegex.ReplaceAllString(strings.TrimSpace(term), ">=$1 <=$2")
		term = strings.ReplaceAll(term, ",", " ")

		fields := strings.Fields(term)
		if len(fields) == 0 {
			return nil, false
		}

		iv := unbounded()
		for _, tok := range fields {
			tokIv, ok := parseComparator(tok)
			if !ok {
				return nil, false
			}
			iv = iv.and(tokIv)
		}
		out = append(out, iv)
	}
	return out, true
}

// parseComparator parses one comparator token (operator + version term, or
// a bare version/x-range) into the interval it denotes on its own.
func parseComparator(tok string) (interval, bool) {
	op := ""
	rest := tok
	for _, candidate := range comparatorOps {
		if strings.HasPrefix(tok, candidate) {
			op = candidate
			rest = strings.TrimPrefix(tok, candidate)
			break
		}
	}
	rest = strings.TrimPrefix(strings.TrimSpace(rest), "v")

	m := versionPartsRegex.FindStringSubmatch(rest)
	if m == nil {
		return interval{}, false
	}
	if isWildcard(m[1]) {
		return unbounded(), true
	}

	major, _ := strconv.ParseInt(m[1], 10, 64)
	minorGiven := m[2] != "" && !isWildcard(m[2])
	patchGiven := m[3] != "" && !isWildcard(m[3])
	var minor, patch int64
	if minorGiven {
		minor, _ = strconv.ParseInt(m[2], 10, 64)
	}
	if patchGiven {
		patch, _ = strconv.ParseInt(m[3], 10, 64)
	}
	pre := m[4]

	// A bare or "=" version that omits minor/patch (or spells either as a
	// wildcard) is itself an x-range: "1.2" and "1.2.x" both mean the same
	// as "^1.2" restricted to that exact major.minor.
	if (op == "" || op == "=") && (!minorGiven || !patchGiven) {
		op = "~x"
	}

	switch op {
	case "", "=":
		v := semver.New(uint64(major), uint64(minor), uint64(patch), pre, "")
		return interval{low: bound{v, true}, high: bound{v, true}}, true
	case ">":
		v := semver.New(uint64(major), uint64(minor), uint64(patch), pre, "")
		return interval{low: bound{v, false}}, true
	case ">=":
		v := semver.New(uint64(major), uint64(minor), uint64(patch), pre, "")
		return interval{low: bound{v, true}}, true
	case "<":
		v := semver.New(uint64(major), uint64(minor), uint64(patch), pre, "")
		return interval{high: bound{v, false}}, true
	case "<=":
		v := semver.New(uint64(major), uint64(minor), uint64(patch), pre, "")
		return interval{high: bound{v, true}}, true
	case "~x":
		// x-range: pin at the shallowest given component, free below that.
		if !minorGiven {
			return interval{
				low:  bound{semver.New(uint64(major), 0, 0, "", ""), true},
				high: bound{semver.New(uint64(major)+1, 0, 0, "", ""), false},
			}, true
		}
		return interval{
			low:  bound{semver.New(uint64(major), uint64(minor), 0, "", ""), true},
			high: bound{semver.New(uint64(major), uint64(minor)+1, 0, "", ""), false},
		}, true
	case "~":
		if !minorGiven {
			return interval{
				low:  bound{semver.New(uint64(major), 0, 0, "", ""), true},
				high: bound{semver.New(uint64(major)+1, 0, 0, "", ""), false},
			}, true
		}
		return interval{
			low:  bound{semver.New(uint64(major), uint64(minor), uint64(patch), pre, ""), true},
			high: bound{semver.New(uint64(major), uint64(minor)+1, 0, "", ""), false},
		}, true
	case "^":
		var low, high *semver.Version
		switch {
		case !minorGiven:
			low = semver.New(uint64(major), 0, 0, "", "")
			if major == 0 {
				high = semver.New(1, 0, 0, "", "")
			} else {
				high = semver.New(uint64(major)+1, 0, 0, "", "")
			}
		case !patchGiven:
			low = semver.New(uint64(major), uint64(minor), 0, "", "")
			high = caretCeiling(major, minor, 0)
		default:
			low = semver.New(uint64(major), uint64(minor), uint64(patch), pre, "")
			high = caretCeiling(major, minor, patch)
		}
		return interval{low: bound{low, true}, high: bound{high, false}}, true
	}
	return interval{}, false
}

// caretCeiling implements npm's "bump at the first nonzero digit" caret
// rule: ^1.2.3 -> <2.0.0, ^0.2.3 -> <0.3.0, ^0.0.3 -> <0.0.4.
func caretCeiling(major, minor, patch int64) *semver.Version {
	switch {
	case major > 0:
		return semver.New(uint64(major)+1, 0, 0, "", "")
	case minor > 0:
		return semver.New(0, uint64(minor)+1, 0, "", "")
	default:
		return semver.New(0, 0, uint64(patch)+1, "", "")
	}
}

// IsValidRange reports whether s parses as a semver version or range.
func IsValidRange(s string) bool {
	_, ok := parseRange(s)
	return ok
}

// IsValidVersion reports whether s parses as a single semver version.
func IsValidVersion(s string) bool {
	_, err := semver.NewVersion(s)
	return err == nil
}

// Intersect computes the intersection of two range strings. ok is false if
// either range fails to parse, or if the parsed ranges are disjoint -- both
// cases are treated identically, per the coalescer's "unparseable is
// non-intersecting, not an error" rule.
func Intersect(a, b string) (result string, ok bool) {
	ia, oka := parseRange(a)
	ib, okb := parseRange(b)
	if !oka || !okb {
		return "", false
	}

	var hits []interval
	for _, x := range ia {
		for _, y := range ib {
			z := x.and(y)
			if !z.empty() {
				hits = append(hits, z)
			}
		}
	}
	if len(hits) == 0 {
		return "", false
	}

	// When the intersection turns out to equal one of the two inputs
	// wholly (the common "one range nests inside the other" case), keep
	// that input's own text rather than re-synthesizing an equivalent
	// comparator string -- matters to the coalescer, which only replaces a
	// key's range text when the computed intersection actually differs.
	if len(hits) == 1 {
		if len(ia) == 1 && intervalEqual(hits[0], ia[0]) {
			return a, true
		}
		if len(ib) == 1 && intervalEqual(hits[0], ib[0]) {
			return b, true
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].String() < hits[j].String() })
	parts := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		s := h.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		parts = append(parts, s)
	}
	return strings.Join(parts, " || "), true
}

// Satisfies reports whether version satisfies rng. A version or range that
// fails to parse never satisfies anything.
func Satisfies(version, rng string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	ivs, ok := parseRange(rng)
	if !ok {
		return false
	}
	for _, iv := range ivs {
		if !iv.empty() && iv.contains(v) {
			return true
		}
	}
	return false
}
