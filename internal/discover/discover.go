// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package discover implements the recursive discovery crawler: it
// enumerates local modules and already-installed artifacts rooted at a
// project, recursing through nested modules folders and reading the
// immediate children (one extra level for scopes) of each module's
// node_modules folder.
package discover

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/heikomat/minstall/internal/errs"
	"github.com/heikomat/minstall/internal/manifest"
)

// ModuleSet is the discovery output: every local module (including the root
// project) plus every installed artifact found beneath any node_modules.
type ModuleSet struct {
	Modules   []*manifest.ModuleInfo
	Installed []*manifest.ModuleInfo
}

// maxOpenManifests bounds how many manifest reads are in flight at once,
// keeping the file-descriptor table bounded no matter how wide a directory
// level fans out.
var maxOpenManifests = int64(runtime.GOMAXPROCS(0) * 4)

// Crawl discovers the ModuleSet rooted at projectRoot. modulesFolder is the
// configurable local-modules directory name (e.g. "modules"). production
// mirrors NODE_ENV=production for every manifest read along the way.
//
// Two conditions are expected early exits rather than failures, reported as
// UncriticalError: projectRoot carries no manifest at all (minstall was
// started outside a project root), and projectRoot has no modulesFolder.
// Both checks apply to the top level only -- a nested local module without
// its own modules folder is simply a leaf.
func Crawl(ctx context.Context, projectRoot, modulesFolder string, production bool) (*ModuleSet, error) {
	if !hasManifest(projectRoot) {
		return nil, &errs.UncriticalError{
			Message: "no " + manifest.ManifestFilename + " found in " + projectRoot + "; minstall must be started from a project root",
		}
	}
	if fi, err := os.Stat(filepath.Join(projectRoot, modulesFolder)); err != nil || !fi.IsDir() {
		return nil, &errs.UncriticalError{
			Message: "found no " + modulesFolder + " folder in " + projectRoot + ", nothing to do",
		}
	}

	sem := semaphore.NewWeighted(maxOpenManifests)
	set, err := crawl(ctx, projectRoot, modulesFolder, production, sem, false)
	if err != nil {
		return nil, err
	}

	sort.Slice(set.Modules, func(i, j int) bool {
		return set.Modules[i].FullModulePath() < set.Modules[j].FullModulePath()
	})
	sort.Slice(set.Installed, func(i, j int) bool {
		return set.Installed[i].FullModulePath() < set.Installed[j].FullModulePath()
	})
	return set, nil
}

func crawl(ctx context.Context, location, modulesFolder string, production bool, sem *semaphore.Weighted, isNested bool) (*ModuleSet, error) {
	self, err := readManifestAt(ctx, location, production, sem)
	if err != nil {
		return nil, err
	}

	set := &ModuleSet{Modules: []*manifest.ModuleInfo{self}}

	installedHere, err := readInstalledChildren(ctx, filepath.Join(location, "node_modules"), production, sem, isNested)
	if err != nil {
		return nil, err
	}
	set.Installed = append(set.Installed, installedHere...)

	localDirs, err := listManifestDirs(filepath.Join(location, modulesFolder))
	if err != nil {
		return nil, err
	}

	if len(localDirs) > 0 {
		results := make([]*ModuleSet, len(localDirs))
		g, gctx := errgroup.WithContext(ctx)
		for i, d := range localDirs {
			i, d := i, d
			g.Go(func() error {
				sub, err := crawl(gctx, filepath.Join(d.location, d.realFolderName), modulesFolder, production, sem, true)
				if err != nil {
					return err
				}
				results[i] = sub
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, sub := range results {
			set.Modules = append(set.Modules, sub.Modules...)
			set.Installed = append(set.Installed, sub.Installed...)
		}
	}

	return set, nil
}

// readManifestAt reads the manifest at location itself, bounding concurrent
// file descriptors with sem the same way readInstalledChildren does.
func readManifestAt(ctx context.Context, location string, production bool, sem *semaphore.Weighted) (*manifest.ModuleInfo, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	m, err := manifest.Read(location, production)
	if err != nil {
		return nil, err
	}
	m.Location = filepath.Dir(location)
	m.RealFolderName = filepath.Base(location)
	return m, nil
}

func readInstalledChildren(ctx context.Context, nodeModulesDir string, production bool, sem *semaphore.Weighted, isNested bool) ([]*manifest.ModuleInfo, error) {
	dirs, err := listManifestDirs(nodeModulesDir)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	out := make([]*manifest.ModuleInfo, len(dirs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range dirs {
		i, d := i, d
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			m, err := manifest.Read(filepath.Join(d.location, d.realFolderName), production)
			sem.Release(1)
			if err != nil {
				return err
			}
			m.Location = d.location
			m.RealFolderName = d.realFolderName
			m.IsNested = isNested
			mu.Lock()
			out[i] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// dirRef is an immediate child directory that contains a manifest, already
// resolved through the one-extra-level scoped-package recursion rule.
type dirRef struct {
	location       string
	realFolderName string
}

// listManifestDirs returns every child of parent that contains a manifest,
// per the discovery crawler's rules: dot-prefixed directories are ignored,
// scoped ("@scope") directories are recursed one extra level, and entries
// that stat as non-directories or lack a manifest are filtered out
// silently. A missing parent directory is treated as empty, not an error.
func listManifestDirs(parent string) ([]dirRef, error) {
	names, err := readDirnames(parent)
	if err != nil {
		return nil, err
	}

	var out []dirRef
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(parent, name)
		fi, err := os.Stat(full)
		if err != nil || !fi.IsDir() {
			continue
		}

		if strings.HasPrefix(name, "@") {
			subnames, err := readDirnames(full)
			if err != nil {
				return nil, err
			}
			for _, sub := range subnames {
				if strings.HasPrefix(sub, ".") {
					continue
				}
				subFull := filepath.Join(full, sub)
				sfi, err := os.Stat(subFull)
				if err != nil || !sfi.IsDir() {
					continue
				}
				if hasManifest(subFull) {
					out = append(out, dirRef{location: full, realFolderName: sub})
				}
			}
			continue
		}

		if hasManifest(full) {
			out = append(out, dirRef{location: parent, realFolderName: name})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return filepath.Join(out[i].location, out[i].realFolderName) < filepath.Join(out[j].location, out[j].realFolderName)
	})
	return out, nil
}

func readDirnames(dir string) ([]string, error) {
	names, err := godirwalk.ReadDirnames(dir, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "enumerating %s", dir)
	}
	sort.Strings(names)
	return names, nil
}

func hasManifest(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, manifest.ManifestFilename))
	return err == nil && !fi.IsDir()
}

// LocalModules returns every discovered module except the root project
// itself, comparing full module paths after filepath.Clean so a trailing
// separator in projectRoot can't hide the root entry.
func (s *ModuleSet) LocalModules(projectRoot string) []*manifest.ModuleInfo {
	root := filepath.Clean(projectRoot)
	out := make([]*manifest.ModuleInfo, 0, len(s.Modules))
	for _, m := range s.Modules {
		if filepath.Clean(m.FullModulePath()) == root {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Root returns the ModuleInfo for the project root itself, or nil if it
// isn't present (which should never happen for a ModuleSet produced by
// Crawl).
func (s *ModuleSet) Root(projectRoot string) *manifest.ModuleInfo {
	root := filepath.Clean(projectRoot)
	for _, m := range s.Modules {
		if filepath.Clean(m.FullModulePath()) == root {
			return m
		}
	}
	return nil
}
