// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter implements the satisfaction filter: it drops any coalesced
// request already met by an installed artifact or a soon-to-be-linked local
// module.
package filter

import (
	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/request"
	"github.com/heikomat/minstall/internal/semverx"
)

// Options configures the satisfaction filter's two optional checks.
type Options struct {
	LinkLocalModules    bool
	TrustLocalNonSemver bool
}

// Apply returns the subset of reqs that still needs installation: an entry
// is dropped in its entirety the moment either check below matches, it is
// never split into partially-satisfied requesters.
func Apply(reqs *request.DependencyRequests, locals, installed []*manifest.ModuleInfo, opts Options) []*request.DependencyRequest {
	var survivors []*request.DependencyRequest
	for _, r := range reqs.All() {
		if satisfiedByInstalled(r, installed) {
			continue
		}
		if opts.LinkLocalModules && satisfiedByLocal(r, locals, opts.TrustLocalNonSemver) {
			continue
		}
		survivors = append(survivors, r)
	}
	return survivors
}

func satisfiedByInstalled(r *request.DependencyRequest, installed []*manifest.ModuleInfo) bool {
	for _, art := range installed {
		// An artifact inside a nested module's private node_modules is
		// only visible to that module's own resolver; it cannot satisfy
		// the other requesters of a coalesced entry.
		if art.IsNested {
			continue
		}
		if art.Name == r.Name && semverx.Satisfies(art.Version, r.VersionRange) {
			return true
		}
	}
	return false
}

func satisfiedByLocal(r *request.DependencyRequest, locals []*manifest.ModuleInfo, trustLocalNonSemver bool) bool {
	for _, m := range locals {
		if m.Name != r.Name {
			continue
		}
		if semverx.IsValidRange(r.VersionRange) {
			if semverx.Satisfies(m.Version, r.VersionRange) {
				return true
			}
			continue
		}
		if trustLocalNonSemver {
			return true
		}
	}
	return false
}
