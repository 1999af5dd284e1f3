// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hoist implements the hoist planner: it assigns each surviving
// dependency request to the shallowest folder at which it doesn't conflict
// with an installed artifact or another planned placement. The candidate
// loop tries each folder in turn, checks every invariant, and advances on
// the first failure; there is never a need to undo a placement, since the
// descending-requester-count ordering makes the placement total on the
// first pass.
package hoist

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/heikomat/minstall/internal/errs"
	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/request"
	"github.com/heikomat/minstall/internal/semverx"
)

// NoHoistRule keeps a dependency pinned at each of its requesters rather
// than hoisted to a shared ancestor.
type NoHoistRule struct {
	NameGlob     string
	VersionRange string // empty means "any version"
}

// Matches reports whether the rule applies to a (name, range) request.
func (r NoHoistRule) Matches(name, rng string) bool {
	ok, err := path.Match(r.NameGlob, name)
	if err != nil || !ok {
		return false
	}
	if r.VersionRange == "" {
		return true
	}
	_, intersects := semverx.Intersect(r.VersionRange, rng)
	return intersects
}

// Reason records why a placement ended up where it did: normal
// candidate-path hoisting, a non-semver range, or a matching no-hoist rule.
type Reason uint8

const (
	ReasonHoisted Reason = iota
	ReasonNonSemver
	ReasonNoHoistRule
)

// Placement is one (targetFolder, request) pair in the plan.
type Placement struct {
	Folder  string
	Request *request.DependencyRequest
	Reason  Reason
}

// PlanResult is the hoist planner's output.
type PlanResult struct {
	// byFolder preserves insertion order per folder, for reproducible
	// installer invocation order.
	byFolder map[string][]*Placement
	folders  []string
}

func newPlan() *PlanResult {
	return &PlanResult{byFolder: make(map[string][]*Placement)}
}

// Folders returns every target folder with at least one placement, in
// first-used order.
func (p *PlanResult) Folders() []string {
	out := make([]string, len(p.folders))
	copy(out, p.folders)
	return out
}

// At returns the placements for one target folder.
func (p *PlanResult) At(folder string) []*Placement {
	return p.byFolder[folder]
}

func (p *PlanResult) place(folder string, pl *Placement) {
	if _, ok := p.byFolder[folder]; !ok {
		p.folders = append(p.folders, folder)
	}
	p.byFolder[folder] = append(p.byFolder[folder], pl)
}

// hasConflictingPlacement reports whether an existing entry at exactly
// folder carries the same name but a different range.
func (p *PlanResult) hasConflictingPlacement(folder, name, rng string) bool {
	for _, pl := range p.byFolder[folder] {
		if pl.Request.Name == name && pl.Request.VersionRange != rng {
			return true
		}
	}
	return false
}

// Diagnostic is one planner-time advisory: a non-semver or no-hoist-rule
// short-circuit.
type Diagnostic struct {
	Level       string // "warning" or "info"
	Message     string
	RequestedBy []string
}

// Plan assigns every survivor to a target folder. root is the project root;
// installed is every pre-existing installed artifact discovery found.
func Plan(survivors []*request.DependencyRequest, installed []*manifest.ModuleInfo, rules []NoHoistRule, root string) (*PlanResult, []Diagnostic, error) {
	ordered := append([]*request.DependencyRequest(nil), survivors...)
	index := make(map[*request.DependencyRequest]int, len(ordered))
	for i, r := range ordered {
		index[r] = i
	}
	// Most-requested first; on equal requester counts the later-coalesced
	// entry wins the shallower slot, so for two equally-popular ranges of
	// one name the root ends up holding the one declared furthest down the
	// traversal.
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := len(ordered[i].RequestedBy), len(ordered[j].RequestedBy)
		if ci != cj {
			return ci > cj
		}
		return index[ordered[i]] > index[ordered[j]]
	})

	plan := newPlan()
	var diags []Diagnostic

	for _, r := range ordered {
		if !semverx.IsValidRange(r.VersionRange) {
			placeNonHoistable(plan, r)
			diags = append(diags, Diagnostic{
				Level:       "warning",
				Message:     "non-semver range " + r.Identifier() + " cannot be hoisted",
				RequestedBy: r.RequestedBy,
			})
			continue
		}

		if rule, matched := matchNoHoist(rules, r); matched {
			placeNonHoistable(plan, r)
			diags = append(diags, Diagnostic{
				Level:       "info",
				Message:     r.Identifier() + " matches no-hoist rule " + rule.NameGlob,
				RequestedBy: r.RequestedBy,
			})
			continue
		}

		if err := placeHoistable(plan, r, installed, root); err != nil {
			return nil, nil, err
		}
	}

	return plan, diags, nil
}

func placeNonHoistable(plan *PlanResult, r *request.DependencyRequest) {
	reason := ReasonNonSemver
	if semverx.IsValidRange(r.VersionRange) {
		reason = ReasonNoHoistRule
	}
	for _, requester := range r.RequestedBy {
		plan.place(requester, &Placement{Folder: requester, Request: r, Reason: reason})
	}
}

func matchNoHoist(rules []NoHoistRule, r *request.DependencyRequest) (NoHoistRule, bool) {
	for _, rule := range rules {
		if rule.Matches(r.Name, r.VersionRange) {
			return rule, true
		}
	}
	return NoHoistRule{}, false
}

// placeHoistable scans candidate folders from the project root down to the
// first requester's own path, placing at the shallowest one that satisfies
// the remaining invariants. The candidate sequence is built as
// root, root/seg1, root/seg1/seg2, ..., root/.../segN (depth 0..N inclusive)
// which already includes the deepest candidate -- the cleaner equivalent of
// the "split, then append a trailing empty segment" trick, since nothing
// here needs to check a path before it has been constructed.
//
// Plan-wide identifier uniqueness needs no check here: the coalescer emits
// each identifier exactly once, the outer loop visits each survivor exactly
// once, and this function places at most one candidate before returning.
func placeHoistable(plan *PlanResult, r *request.DependencyRequest, installed []*manifest.ModuleInfo, root string) error {
	candidates := candidatePaths(root, r.RequestedBy[0])

	for _, candidate := range candidates {
		if conflictsWithInstalled(candidate, r, installed) {
			continue
		}
		if plan.hasConflictingPlacement(candidate, r.Name, r.VersionRange) {
			continue
		}

		plan.place(candidate, &Placement{Folder: candidate, Request: r, Reason: ReasonHoisted})
		return nil
	}

	return &errs.PlacementInvariantError{Identifier: r.Identifier()}
}

// conflictsWithInstalled reports whether an installed artifact of the same
// name, with a version that does not satisfy the request's range, lives
// directly in join(candidate, "node_modules"). An installed artifact deeper
// than candidate does not block it.
func conflictsWithInstalled(candidate string, r *request.DependencyRequest, installed []*manifest.ModuleInfo) bool {
	want := filepath.Clean(filepath.Join(candidate, "node_modules"))
	for _, art := range installed {
		if art.Name != r.Name {
			continue
		}
		if filepath.Clean(art.Location) != want {
			continue
		}
		if !semverx.Satisfies(art.Version, r.VersionRange) {
			return true
		}
	}
	return false
}

func candidatePaths(root, firstRequester string) []string {
	rel := strings.TrimPrefix(firstRequester, root)
	segments := splitNonEmpty(rel)

	candidates := make([]string, 0, len(segments)+1)
	cur := root
	candidates = append(candidates, cur)
	for _, seg := range segments {
		cur = filepath.Join(cur, seg)
		candidates = append(candidates, cur)
	}
	return candidates
}

func splitNonEmpty(rel string) []string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
