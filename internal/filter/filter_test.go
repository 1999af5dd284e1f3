// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filter

import (
	"testing"

	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/request"
)

func TestApplyDropsInstalledSatisfied(t *testing.T) {
	reqs := request.New()
	reqs.Add("lodash", "^4.0.0", "/proj/modules/a")
	installed := []*manifest.ModuleInfo{
		{Name: "lodash", Version: "4.17.21"},
	}

	survivors := Apply(reqs, nil, installed, Options{})
	if len(survivors) != 0 {
		t.Fatalf("expected installed artifact to satisfy the request, got %v", survivors)
	}
}

func TestApplyIgnoresNestedPrivateInstall(t *testing.T) {
	reqs := request.New()
	reqs.Add("lodash", "^4.0.0", "/proj/modules/a")
	installed := []*manifest.ModuleInfo{
		{Name: "lodash", Version: "4.17.21", IsNested: true},
	}

	survivors := Apply(reqs, nil, installed, Options{})
	if len(survivors) != 1 {
		t.Fatalf("a sibling's private nested install must not satisfy the request, got %v", survivors)
	}
}

func TestApplyLocalModuleShadowsInstalled(t *testing.T) {
	reqs := request.New()
	reqs.Add("utils", "^2.0.0", "/proj/modules/b")
	locals := []*manifest.ModuleInfo{
		{Name: "utils", Version: "2.0.0"},
	}

	survivors := Apply(reqs, locals, nil, Options{LinkLocalModules: true})
	if len(survivors) != 0 {
		t.Fatalf("expected local module to satisfy the request, got %v", survivors)
	}
}

func TestApplyLocalModuleIgnoredWhenLinkingDisabled(t *testing.T) {
	reqs := request.New()
	reqs.Add("utils", "^2.0.0", "/proj/modules/b")
	locals := []*manifest.ModuleInfo{
		{Name: "utils", Version: "2.0.0"},
	}

	survivors := Apply(reqs, locals, nil, Options{LinkLocalModules: false})
	if len(survivors) != 1 {
		t.Fatalf("expected the request to survive when local linking is disabled, got %v", survivors)
	}
}

func TestApplyNonSemverRequiresTrust(t *testing.T) {
	reqs := request.New()
	reqs.Add("mytool", "github:org/repo#tag", "/proj/modules/a")
	locals := []*manifest.ModuleInfo{
		{Name: "mytool", Version: "1.0.0"},
	}

	untrusted := Apply(reqs, locals, nil, Options{LinkLocalModules: true, TrustLocalNonSemver: false})
	if len(untrusted) != 1 {
		t.Fatalf("without trust, a non-semver request must survive, got %v", untrusted)
	}

	trusted := Apply(reqs, locals, nil, Options{LinkLocalModules: true, TrustLocalNonSemver: true})
	if len(trusted) != 0 {
		t.Fatalf("with trust, a local module should satisfy a non-semver request, got %v", trusted)
	}
}
