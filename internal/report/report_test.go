// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"testing"

	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/request"
)

func TestNonOptimalDependencySetupsFlagsMultipleRanges(t *testing.T) {
	reqs := request.New()
	reqs.Add("lodash", "^3.0.0", "/proj/modules/a")
	reqs.Add("lodash", "^4.0.0", "/proj/modules/b")
	reqs.Add("lodash", "^4.0.0", "/proj/modules/c")

	reports := NonOptimalDependencySetups(reqs)
	if len(reports) != 1 {
		t.Fatalf("expected one flagged dependency, got %v", reports)
	}
	if reports[0].Name != "lodash" || len(reports[0].Ranges) != 2 {
		t.Fatalf("expected lodash with 2 ranges, got %+v", reports[0])
	}
	if !reports[0].Ranges[0].Primary {
		t.Fatalf("expected the most-requested range to be marked primary, got %+v", reports[0].Ranges)
	}
}

func TestNonOptimalDependencySetupsIgnoresSingleRange(t *testing.T) {
	reqs := request.New()
	reqs.Add("lodash", "^4.0.0", "/proj/modules/a")

	reports := NonOptimalDependencySetups(reqs)
	if len(reports) != 0 {
		t.Fatalf("expected no report for a dependency with a single coalesced range, got %v", reports)
	}
}

func TestNonOptimalLocalModuleUsageFlagsUnsatisfiedRange(t *testing.T) {
	reqs := request.New()
	reqs.Add("utils", "^1.0.0", "/proj/modules/a")
	locals := []*manifest.ModuleInfo{{Name: "utils", Version: "2.0.0"}}

	reports := NonOptimalLocalModuleUsage(reqs, locals, false)
	if len(reports) != 1 || reports[0].Name != "utils" {
		t.Fatalf("expected utils to be flagged, got %v", reports)
	}
}

func TestNonOptimalLocalModuleUsageHonorsTrust(t *testing.T) {
	reqs := request.New()
	reqs.Add("mytool", "github:org/repo#tag", "/proj/modules/a")
	locals := []*manifest.ModuleInfo{{Name: "mytool", Version: "1.0.0"}}

	trusted := NonOptimalLocalModuleUsage(reqs, locals, true)
	if len(trusted) != 0 {
		t.Fatalf("expected trusted non-semver range to be satisfied, got %v", trusted)
	}

	untrusted := NonOptimalLocalModuleUsage(reqs, locals, false)
	if len(untrusted) != 1 {
		t.Fatalf("expected untrusted non-semver range to be flagged, got %v", untrusted)
	}
}
