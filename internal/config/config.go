// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config parses minstall's CLI flags and optional .minstallrc.toml
// file into a single Options value.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/heikomat/minstall/internal/hoist"
	"github.com/heikomat/minstall/internal/mlog"
)

// RCFilename is the optional per-project override file.
const RCFilename = ".minstallrc.toml"

// Options is the fully-resolved configuration for one minstall run, after
// merging the rc file (if present) with CLI flags (flags win).
type Options struct {
	ModulesFolder        string
	NoLink               bool
	LinkOnly             bool
	Cleanup              bool
	DependencyCheckOnly  bool
	TrustLocalModules    bool
	NoHoistRules         []hoist.NoHoistRule
	LogLevel             mlog.Level
	HookTimeoutSeconds   int
	ModulesFolderFromEnv string

	Production bool // derived from NODE_ENV=production
}

// rcFile is the shape of .minstallrc.toml: every field is optional and only
// overrides the built-in default, never a flag the user passed explicitly.
type rcFile struct {
	ModulesFolder        string   `toml:"modulesFolder"`
	TrustLocalModules    bool     `toml:"trustLocalModules"`
	NoHoist              []string `toml:"noHoist"`
	LogLevel             string   `toml:"logLevel"`
	HookTimeoutSeconds   int      `toml:"hookTimeoutSeconds"`
	ModulesFolderFromEnv string   `toml:"modulesFolderFromEnv"`
}

// Config carries the process-level inputs needed to parse flags and
// produce Options, kept separate from Options itself so tests can drive
// Parse without touching the real process environment.
type Config struct {
	WorkingDir string
	Args       []string
	Env        []string
	Stderr     io.Writer
}

// Parse builds Options from c.Args, c.Env, and an optional rc file at
// c.WorkingDir. Flags always win over the rc file; the rc file always wins
// over built-in defaults.
func (c *Config) Parse() (*Options, error) {
	opts := &Options{
		ModulesFolder: "modules",
		LogLevel:      mlog.Info,
	}

	if rc, err := loadRCFile(filepath.Join(c.WorkingDir, RCFilename)); err != nil {
		return nil, err
	} else if rc != nil {
		applyRC(opts, rc)
	}

	fs := flag.NewFlagSet("minstall", flag.ContinueOnError)
	if c.Stderr != nil {
		fs.SetOutput(c.Stderr)
	}

	noLink := fs.Bool("no-link", opts.NoLink, "disable linking to local modules")
	linkOnly := fs.Bool("link-only", false, "run symlink repair only; skip planning and installation")
	cleanup := fs.Bool("cleanup", false, "remove every module's private node_modules before running")
	depCheckOnly := fs.Bool("dependency-check-only", false, "run the coalescer and diagnostic reporter only, then exit")
	trustLocal := fs.Bool("trust-local-modules", opts.TrustLocalModules, "treat local modules as satisfying non-semver dependency ranges")
	fs.BoolVar(trustLocal, "assume-local-modules-satisfy-non-semver-dependency-versions", opts.TrustLocalModules, "alias of -trust-local-modules")
	logLevel := fs.String("loglevel", opts.LogLevel.String(), "one of: critical, error, warn, info, verbose, debug, silly")
	hookTimeout := fs.Int("hook-timeout", opts.HookTimeoutSeconds, "seconds of inactivity before a post-install hook is killed (0 = default)")
	modulesFromEnv := fs.String("modules-folder-from-env", opts.ModulesFolderFromEnv, "read the local-modules folder name from this environment variable instead")

	var noHoist multiFlag
	fs.Var(&noHoist, "no-hoist", "name[@range] glob to pin at each requester instead of hoisting; repeatable")

	args := c.Args
	if len(args) > 0 {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		opts.ModulesFolder = fs.Arg(0)
	}

	opts.NoLink = *noLink
	opts.LinkOnly = *linkOnly
	opts.Cleanup = *cleanup
	opts.DependencyCheckOnly = *depCheckOnly
	opts.TrustLocalModules = *trustLocal
	opts.HookTimeoutSeconds = *hookTimeout
	opts.ModulesFolderFromEnv = *modulesFromEnv

	level, err := mlog.ParseLevel(*logLevel)
	if err != nil {
		return nil, err
	}
	opts.LogLevel = level

	if len(noHoist) > 0 {
		rules, err := parseNoHoistRules(noHoist)
		if err != nil {
			return nil, err
		}
		opts.NoHoistRules = rules
	}

	if opts.ModulesFolderFromEnv != "" && fs.NArg() == 0 {
		if v := getEnv(c.Env, opts.ModulesFolderFromEnv); v != "" {
			opts.ModulesFolder = v
		}
	}

	opts.Production = getEnv(c.Env, "NODE_ENV") == "production"

	return opts, nil
}

func applyRC(opts *Options, rc *rcFile) {
	if rc.ModulesFolder != "" {
		opts.ModulesFolder = rc.ModulesFolder
	}
	opts.TrustLocalModules = rc.TrustLocalModules
	if rc.LogLevel != "" {
		if lvl, err := mlog.ParseLevel(rc.LogLevel); err == nil {
			opts.LogLevel = lvl
		}
	}
	opts.HookTimeoutSeconds = rc.HookTimeoutSeconds
	opts.ModulesFolderFromEnv = rc.ModulesFolderFromEnv
	if len(rc.NoHoist) > 0 {
		if rules, err := parseNoHoistRules(rc.NoHoist); err == nil {
			opts.NoHoistRules = rules
		}
	}
}

func loadRCFile(path string) (*rcFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rc rcFile
	if err := toml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &rc, nil
}

// parseNoHoistRules parses repeated "name[@range]" glob specs into
// hoist.NoHoistRule values. The range separator is the last "@" past
// position zero, so scoped globs like "@aurelia/*@^1.0.0" keep their scope.
func parseNoHoistRules(specs []string) ([]hoist.NoHoistRule, error) {
	rules := make([]hoist.NoHoistRule, 0, len(specs))
	for _, spec := range specs {
		name, rng := spec, ""
		if at := strings.LastIndexByte(spec, '@'); at > 0 {
			name, rng = spec[:at], spec[at+1:]
		}
		if name == "" {
			return nil, fmt.Errorf("invalid -no-hoist spec %q: empty name", spec)
		}
		rules = append(rules, hoist.NoHoistRule{NameGlob: name, VersionRange: rng})
	}
	return rules, nil
}

func getEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}

// multiFlag implements flag.Value for a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
