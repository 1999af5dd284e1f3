// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link implements the symlink repair pass: once the external
// installer has materialized the hoist planner's placements, every local
// module still needs a private node_modules view that resolves its own
// declared dependencies.
//
// The root project itself is never repaired here: it sits at the top of the
// hoist plan's own target tree, so its dependencies are already installed
// directly into its own node_modules by the external installer.
package link

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/heikomat/minstall/internal/errs"
	"github.com/heikomat/minstall/internal/fsutil"
	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/mlog"
	"github.com/heikomat/minstall/internal/semverx"
)

// Options configures which source kinds symlink repair is allowed to use.
type Options struct {
	LinkLocalModules    bool
	TrustLocalNonSemver bool
}

// Result collects the outcome of one repair run for the diagnostic
// reporter/CLI to surface.
type Result struct {
	LinksCreated int
	Skipped      []*errs.SymlinkError
}

// Repair links every dependency of every local module (other than the root
// project) to its chosen source. Failures to create an
// individual link are collected in Result.Skipped rather than aborting the
// run; installed and locals are read-only for the duration.
func Repair(ctx context.Context, modules []*manifest.ModuleInfo, installed []*manifest.ModuleInfo, root string, opts Options, log *mlog.Logger) (*Result, error) {
	rootClean := filepath.Clean(root)

	res := &Result{}
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)

	for _, m := range modules {
		if filepath.Clean(m.FullModulePath()) == rootClean {
			continue
		}
		m := m
		g.Go(func() error {
			linked, skipped := repairModule(m, modules, installed, opts, log)
			mu.Lock()
			res.LinksCreated += linked
			res.Skipped = append(res.Skipped, skipped...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func repairModule(m *manifest.ModuleInfo, locals, installed []*manifest.ModuleInfo, opts Options, log *mlog.Logger) (int, []*errs.SymlinkError) {
	linked := 0
	var skipped []*errs.SymlinkError

	binDir := filepath.Join(m.FullModulePath(), "node_modules", ".bin")

	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rng := m.Dependencies[name]
		if alreadyDirectlyInstalled(m, name, installed) {
			continue
		}

		source := pickLocalSource(name, rng, locals, opts)
		if source == nil {
			source = pickInstalledSource(name, rng, installed)
		}
		if source == nil {
			if log != nil {
				log.Logf(mlog.Error, "no source found for %s@%q required by %s", name, rng, m.FullModulePath())
			}
			continue
		}

		linkPath := filepath.Join(m.FullModulePath(), "node_modules", source.CanonicalFolderName)
		if err := fsutil.Link(source.FullModulePath(), linkPath); err != nil {
			skipped = append(skipped, &errs.SymlinkError{Path: linkPath, Cause: err})
			continue
		}
		linked++

		for cmd, relExec := range source.BinEntries {
			binLink := filepath.Join(binDir, cmd)
			binTarget := filepath.Join(source.FullModulePath(), relExec)
			if err := fsutil.Link(binTarget, binLink); err != nil {
				skipped = append(skipped, &errs.SymlinkError{Path: binLink, Cause: err})
			}
		}
	}

	return linked, skipped
}

func alreadyDirectlyInstalled(m *manifest.ModuleInfo, name string, installed []*manifest.ModuleInfo) bool {
	for _, art := range installed {
		if art.Name != name {
			continue
		}
		want := filepath.Clean(filepath.Join(m.FullModulePath(), "node_modules", art.CanonicalFolderName))
		if filepath.Clean(art.FullModulePath()) == want {
			return true
		}
	}
	return false
}

func pickLocalSource(name, rng string, locals []*manifest.ModuleInfo, opts Options) *manifest.ModuleInfo {
	if !opts.LinkLocalModules {
		return nil
	}
	for _, mod := range locals {
		if mod.Name != name {
			continue
		}
		if semverx.IsValidRange(rng) {
			if semverx.Satisfies(mod.Version, rng) {
				return mod
			}
			continue
		}
		if opts.TrustLocalNonSemver {
			return mod
		}
	}
	return nil
}

func pickInstalledSource(name, rng string, installed []*manifest.ModuleInfo) *manifest.ModuleInfo {
	for _, art := range installed {
		// Never link into another module's private node_modules: only
		// artifacts the hoist planner can reach are valid link sources.
		if art.IsNested {
			continue
		}
		if art.Name != name {
			continue
		}
		if semverx.Satisfies(art.Version, rng) {
			return art
		}
	}
	return nil
}
