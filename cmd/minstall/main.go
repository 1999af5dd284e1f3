// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command minstall hoists and links dependencies across a monorepo's
// local modules: discovery, coalescing, hoist planning, installation, and
// symlink repair behind a single CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heikomat/minstall/internal/config"
	"github.com/heikomat/minstall/internal/discover"
	"github.com/heikomat/minstall/internal/errs"
	"github.com/heikomat/minstall/internal/filter"
	"github.com/heikomat/minstall/internal/hoist"
	"github.com/heikomat/minstall/internal/hook"
	"github.com/heikomat/minstall/internal/installer"
	"github.com/heikomat/minstall/internal/link"
	"github.com/heikomat/minstall/internal/manifest"
	"github.com/heikomat/minstall/internal/mlog"
	"github.com/heikomat/minstall/internal/report"
	"github.com/heikomat/minstall/internal/request"
)

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "minstall: failed to get working directory:", err)
		os.Exit(1)
	}

	c := &config.Config{
		WorkingDir: wd,
		Args:       os.Args,
		Env:        os.Environ(),
		Stderr:     os.Stderr,
	}
	os.Exit(run(c))
}

func run(c *config.Config) (exitCode int) {
	opts, err := c.Parse()
	if err != nil {
		fmt.Fprintln(c.Stderr, "minstall:", err)
		return 1
	}

	log := mlog.New(os.Stdout, opts.LogLevel)
	ctx := context.Background()

	if opts.Cleanup {
		if err := cleanup(c.WorkingDir, opts.ModulesFolder); err != nil {
			if uerr, ok := err.(*errs.UncriticalError); ok {
				log.LogMinstallfln(mlog.Info, "%s", uerr.Message)
				return 0
			}
			log.LogMinstallfln(mlog.Error, "cleanup failed: %s", err)
			return 1
		}
	}

	set, err := discover.Crawl(ctx, c.WorkingDir, opts.ModulesFolder, opts.Production)
	if err != nil {
		if uerr, ok := err.(*errs.UncriticalError); ok {
			log.LogMinstallfln(mlog.Info, "%s", uerr.Message)
			return 0
		}
		log.LogMinstallfln(mlog.Critical, "discovery failed: %s", err)
		return 1
	}

	locals := set.LocalModules(c.WorkingDir)

	if opts.LinkOnly {
		if err := repair(ctx, set, c.WorkingDir, opts, log); err != nil {
			log.LogMinstallfln(mlog.Critical, "%s", err)
			return 1
		}
		return 0
	}

	coalesced := request.Coalesce(locals)

	dependencySetups := report.NonOptimalDependencySetups(coalesced)
	localUsage := report.NonOptimalLocalModuleUsage(coalesced, locals, opts.TrustLocalModules)
	for _, r := range dependencySetups {
		log.LogMinstallfln(mlog.Warn, "%s is requested in %d incompatible ranges:", r.Name, len(r.Ranges))
		for _, u := range r.Ranges {
			marker := "  "
			if u.Primary {
				marker = "* "
			}
			log.LogMinstallfln(mlog.Warn, "  %s%s@%q requested by %s", marker, r.Name, u.Range, strings.Join(u.RequestedBy, ", "))
		}
	}
	for _, r := range localUsage {
		log.LogMinstallfln(mlog.Warn, "local module %s@%s does not satisfy every requested range:", r.Name, r.LocalVersion)
		for _, rng := range r.UnsatisfiedBy {
			log.LogMinstallfln(mlog.Warn, "    %s@%q requested by %s", r.Name, rng, strings.Join(r.RequestedByName[rng], ", "))
		}
	}

	if opts.DependencyCheckOnly {
		return 0
	}

	survivors := filter.Apply(coalesced, locals, set.Installed, filter.Options{
		LinkLocalModules:    !opts.NoLink,
		TrustLocalNonSemver: opts.TrustLocalModules,
	})

	plan, diags, err := hoist.Plan(survivors, set.Installed, opts.NoHoistRules, c.WorkingDir)
	if err != nil {
		log.LogMinstallfln(mlog.Critical, "%s", err)
		return 1
	}
	for _, d := range diags {
		lvl := mlog.Info
		if d.Level == "warning" {
			lvl = mlog.Warn
		}
		log.LogMinstallfln(lvl, "%s (requested by %s)", d.Message, strings.Join(d.RequestedBy, ", "))
	}

	reg := &installer.Runner{
		Command:     installerCommand(c.Env),
		InstallArgs: []string{"install", "--no-save", "--package-lock=false"},
		Log:         log,
	}
	for _, folder := range plan.Folders() {
		var identifiers []string
		for _, placement := range plan.At(folder) {
			identifiers = append(identifiers, installer.Identifier(placement.Request.Name, placement.Request.VersionRange))
		}
		if err := reg.InstallTarget(ctx, folder, identifiers); err != nil {
			if ierr, ok := err.(*errs.InstallerError); ok && !ierr.Fatal() {
				log.LogMinstallfln(mlog.Warn, "%s", ierr)
				continue
			}
			log.LogMinstallfln(mlog.Critical, "%s", err)
			return 1
		}
	}

	if err := repair(ctx, set, c.WorkingDir, opts, log); err != nil {
		log.LogMinstallfln(mlog.Critical, "%s", err)
		return 1
	}

	runPostinstallHooks(ctx, locals, opts, log)

	return 0
}

func repair(ctx context.Context, set *discover.ModuleSet, root string, opts *config.Options, log *mlog.Logger) error {
	res, err := link.Repair(ctx, set.Modules, set.Installed, root, link.Options{
		LinkLocalModules:    !opts.NoLink,
		TrustLocalNonSemver: opts.TrustLocalModules,
	}, log)
	if err != nil {
		return err
	}
	for _, skipped := range res.Skipped {
		log.LogMinstallfln(mlog.Warn, "%s", skipped)
	}
	return nil
}

func runPostinstallHooks(ctx context.Context, locals []*manifest.ModuleInfo, opts *config.Options, log *mlog.Logger) {
	timeout := hook.DefaultTimeout
	if opts.HookTimeoutSeconds > 0 {
		timeout = time.Duration(opts.HookTimeoutSeconds) * time.Second
	}

	for _, m := range locals {
		if m.PostinstallCommand == "" {
			continue
		}
		if _, err := hook.Run(ctx, m.FullModulePath(), m.PostinstallCommand, timeout); err != nil {
			log.LogMinstallfln(mlog.Error, "postinstall failed for %s: %s", m.FullModulePath(), err)
		}
	}
}

func cleanup(root, modulesFolder string) error {
	set, err := discover.Crawl(context.Background(), root, modulesFolder, false)
	if err != nil {
		return err
	}
	for _, m := range set.LocalModules(root) {
		if err := os.RemoveAll(filepath.Join(m.FullModulePath(), "node_modules")); err != nil {
			return err
		}
	}
	return nil
}

func installerCommand(env []string) string {
	for _, kv := range env {
		if len(kv) > len("MINSTALL_INSTALLER=") && kv[:len("MINSTALL_INSTALLER=")] == "MINSTALL_INSTALLER=" {
			return kv[len("MINSTALL_INSTALLER="):]
		}
	}
	return "npm"
}
