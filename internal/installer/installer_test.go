// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package installer

import (
	"context"
	"testing"
	"time"

	"github.com/heikomat/minstall/internal/errs"
)

func TestInstallTargetSucceeds(t *testing.T) {
	r := &Runner{Command: "true", Timeout: time.Second}
	err := r.InstallTarget(context.Background(), t.TempDir(), []string{"lodash@\"^4.0.0\""})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInstallTargetNoIdentifiersIsNoop(t *testing.T) {
	r := &Runner{Command: "false", Timeout: time.Second}
	if err := r.InstallTarget(context.Background(), t.TempDir(), nil); err != nil {
		t.Fatalf("expected an empty identifier list to skip invocation entirely, got %v", err)
	}
}

func TestInstallTargetFatalOnNonZeroExit(t *testing.T) {
	r := &Runner{Command: "false", Timeout: time.Second}
	err := r.InstallTarget(context.Background(), t.TempDir(), []string{"lodash@\"^4.0.0\""})
	if err == nil {
		t.Fatal("expected a non-zero exit to return an error")
	}
	ierr, ok := err.(*errs.InstallerError)
	if !ok {
		t.Fatalf("expected *errs.InstallerError, got %T", err)
	}
	if !ierr.Fatal() {
		t.Fatalf("expected a real non-zero exit code to be fatal, got %+v", ierr)
	}
}

func TestIdentifierFormat(t *testing.T) {
	got := Identifier("lodash", "^4.0.0")
	want := `lodash@"^4.0.0"`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
