// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report implements the diagnostic reporter: two advisory checks
// run against the coalesced request set before the satisfaction filter
// trims it. Reports never influence the plan.
package report

import (
	"sort"

	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/request"
	"github.com/heikomat/minstall/internal/semverx"
)

// RangeUsage is one coalesced range for a dependency name, with its
// requesters, as surfaced by the non-optimal-dependency-setup report.
type RangeUsage struct {
	Range       string
	RequestedBy []string
	Primary     bool
}

// DependencySetupReport lists, for each dependency name with more than one
// coalesced range, the primary (most-requested) range and the others.
type DependencySetupReport struct {
	Name   string
	Ranges []RangeUsage
}

// LocalModuleUsageReport flags a dependency name that has a local module of
// the same name, plus at least one requested range the local version
// doesn't satisfy.
type LocalModuleUsageReport struct {
	Name            string
	LocalVersion    string
	UnsatisfiedBy   []string // ranges the local module cannot satisfy
	RequestedByName map[string][]string
}

// NonOptimalDependencySetups reports every dependency name coalesced into
// more than one range.
func NonOptimalDependencySetups(reqs *request.DependencyRequests) []DependencySetupReport {
	var out []DependencySetupReport
	for _, name := range reqs.Names() {
		entries := reqs.Entries(name)
		if len(entries) < 2 {
			continue
		}

		ranges := make([]RangeUsage, len(entries))
		primaryIdx := 0
		for i, e := range entries {
			ranges[i] = RangeUsage{Range: e.VersionRange, RequestedBy: e.RequestedBy}
			if len(e.RequestedBy) > len(entries[primaryIdx].RequestedBy) {
				primaryIdx = i
			}
		}
		ranges[primaryIdx].Primary = true

		sort.SliceStable(ranges, func(i, j int) bool {
			return len(ranges[i].RequestedBy) > len(ranges[j].RequestedBy)
		})

		out = append(out, DependencySetupReport{Name: name, Ranges: ranges})
	}
	return out
}

// NonOptimalLocalModuleUsage reports, for every dependency name with at
// least one local module of the same name, any requested range that local
// module cannot satisfy (honoring trustLocalNonSemver for non-semver
// ranges, exactly as the satisfaction filter does).
func NonOptimalLocalModuleUsage(reqs *request.DependencyRequests, locals []*manifest.ModuleInfo, trustLocalNonSemver bool) []LocalModuleUsageReport {
	localsByName := map[string]*manifest.ModuleInfo{}
	for _, m := range locals {
		localsByName[m.Name] = m
	}

	var out []LocalModuleUsageReport
	for _, name := range reqs.Names() {
		local, hasLocal := localsByName[name]
		if !hasLocal {
			continue
		}

		var unsatisfied []string
		requestedBy := map[string][]string{}
		for _, e := range reqs.Entries(name) {
			satisfied := false
			if semverx.IsValidRange(e.VersionRange) {
				satisfied = semverx.Satisfies(local.Version, e.VersionRange)
			} else {
				satisfied = trustLocalNonSemver
			}
			if !satisfied {
				unsatisfied = append(unsatisfied, e.VersionRange)
				requestedBy[e.VersionRange] = e.RequestedBy
			}
		}

		if len(unsatisfied) > 0 {
			out = append(out, LocalModuleUsageReport{
				Name:            name,
				LocalVersion:    local.Version,
				UnsatisfiedBy:   unsatisfied,
				RequestedByName: requestedBy,
			})
		}
	}
	return out
}
