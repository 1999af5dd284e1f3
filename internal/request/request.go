// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package request implements the version-range coalescing algorithm: it
// collapses per-module dependency declarations into DependencyRequests,
// intersecting overlapping ranges so every surviving range key is mutually
// disjoint with the others under its name.
package request

import (
	"fmt"
	"sort"

	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/semverx"
)

// DependencyRequest is one coalesced {name, range} pair together with every
// local module path that asked for it.
type DependencyRequest struct {
	Name         string
	VersionRange string
	RequestedBy  []string
}

// Identifier is the request's stable "name@\"range\"" form.
func (r *DependencyRequest) Identifier() string {
	return fmt.Sprintf("%s@%q", r.Name, r.VersionRange)
}

// DependencyRequests is the coalescer's output: name -> ordered list of
// DependencyRequest, one per surviving (mutually non-intersecting) range.
type DependencyRequests struct {
	order   []string
	entries map[string][]*DependencyRequest
}

// New returns an empty DependencyRequests.
func New() *DependencyRequests {
	return &DependencyRequests{entries: make(map[string][]*DependencyRequest)}
}

// Names returns the dependency names in first-seen order.
func (d *DependencyRequests) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Entries returns the coalesced requests for name, in the order they were
// created.
func (d *DependencyRequests) Entries(name string) []*DependencyRequest {
	return d.entries[name]
}

// All flattens every entry, in (name insertion order, entry insertion order).
func (d *DependencyRequests) All() []*DependencyRequest {
	var out []*DependencyRequest
	for _, name := range d.order {
		out = append(out, d.entries[name]...)
	}
	return out
}

// Add folds one module's declared (name, range) into the set, per the
// coalescing algorithm:
//
//  1. try to intersect range with every existing range under name, in
//     insertion order; on the first successful intersection, narrow that
//     entry's range to the intersection (if it changed) and append the
//     requester.
//  2. failing that, if the exact textual range already exists as a key
//     (handling non-semver ranges, which never intersect), append to it.
//  3. otherwise create a new entry with a singleton requester list.
func (d *DependencyRequests) Add(name, rng, requesterPath string) {
	existing, seen := d.entries[name]
	if !seen {
		d.order = append(d.order, name)
	}

	for _, e := range existing {
		if inter, ok := semverx.Intersect(rng, e.VersionRange); ok {
			if inter != e.VersionRange {
				e.VersionRange = inter
			}
			e.RequestedBy = append(e.RequestedBy, requesterPath)
			return
		}
	}

	for _, e := range existing {
		if e.VersionRange == rng {
			e.RequestedBy = append(e.RequestedBy, requesterPath)
			return
		}
	}

	d.entries[name] = append(d.entries[name], &DependencyRequest{
		Name:         name,
		VersionRange: rng,
		RequestedBy:  []string{requesterPath},
	})
}

// Coalesce runs the algorithm over a deterministically-ordered slice of
// local modules (the caller -- internal/discover -- is responsible for that
// ordering; the coalescer itself never reorders).
func Coalesce(modules []*manifest.ModuleInfo) *DependencyRequests {
	d := New()
	for _, m := range modules {
		for _, name := range sortedKeys(m.Dependencies) {
			d.Add(name, m.Dependencies[name], m.FullModulePath())
		}
	}
	return d
}

// sortedKeys gives a deterministic dependency-iteration order per module;
// Go map iteration order is randomized, and a stable replay across runs on
// the same input requires one.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
