// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package installer wraps the external package-registry installer the core
// invokes once per hoist-planner target folder. The registry tool itself is
// an opaque collaborator; this package only adds the two things every
// invocation needs regardless of which one is configured: a per-target file lock (so two overlapping
// minstall runs can't stomp the same node_modules) and the fatal/non-fatal
// exit-code distinction the pipeline depends on.
package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/heikomat/minstall/internal/errs"
	"github.com/heikomat/minstall/internal/hook"
	"github.com/heikomat/minstall/internal/mlog"
)

// Runner invokes a configured external installer binary (e.g. "npm", "yarn")
// against one target folder at a time.
type Runner struct {
	// Command is the installer executable, e.g. "npm".
	Command string
	// InstallArgs are flags prepended before the identifier list, e.g.
	// []string{"install", "--no-save", "--no-package-lock"} so the
	// installer never mutates the manifest or writes a lockfile.
	InstallArgs []string
	Timeout     time.Duration
	Log         *mlog.Logger
}

// InstallTarget materializes every identifier (formatted "name@\"range\"")
// into join(target, "node_modules", ...), holding a lock file at target for
// the duration of the call.
func (r *Runner) InstallTarget(ctx context.Context, target string, identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}

	lockPath := filepath.Join(target, ".minstall.lock")
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return &errs.InstallerError{Target: target, Cause: err}
	}
	defer lock.Unlock()

	timeout := r.Timeout
	if timeout == 0 {
		timeout = hook.DefaultTimeout
	}

	args := append(append([]string(nil), r.InstallArgs...), identifiers...)
	_, stderr, err := hook.RunArgs(ctx, target, r.Command, args, timeout)

	if err != nil {
		ierr := &errs.InstallerError{Target: target, Cause: err}
		if exitErr, ok := exitCode(err); ok {
			ierr.ExitCode = exitErr
			ierr.HasExitCode = true
		}
		return ierr
	}

	if len(stderr) > 0 && r.Log != nil {
		r.Log.Logf(mlog.Warn, "installer wrote to stderr for %s: %s", target, stderr)
	}
	return nil
}

type exitCoder interface {
	ExitCode() int
}

func exitCode(err error) (int, bool) {
	type exitErrorLike interface {
		error
		exitCoder
	}
	if ee, ok := err.(exitErrorLike); ok {
		return ee.ExitCode(), true
	}
	return 0, false
}

// Identifier formats a dependency request's (name, range) pair the way the
// external installer's CLI expects it.
func Identifier(name, versionRange string) string {
	return fmt.Sprintf("%s@%q", name, versionRange)
}
