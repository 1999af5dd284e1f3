// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/heikomat/minstall/internal/errs"
)

func writeManifest(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"name": "` + name + `", "version": "1.0.0"}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCrawlDiscoversLocalModulesAndInstalled(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "root-project")
	writeManifest(t, filepath.Join(root, "modules", "a"), "a")
	writeManifest(t, filepath.Join(root, "modules", "b"), "b")
	writeManifest(t, filepath.Join(root, "modules", "@scope", "c"), "@scope/c")
	writeManifest(t, filepath.Join(root, "node_modules", "lodash"), "lodash")
	writeManifest(t, filepath.Join(root, "node_modules", "@types", "node"), "@types/node")

	set, err := Crawl(context.Background(), root, "modules", false)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(set.LocalModules(root)); got != 3 {
		t.Fatalf("expected 3 local modules (a, b, @scope/c), got %d", got)
	}
	if root := set.Root(root); root == nil || root.Name != "root-project" {
		t.Fatalf("expected to find the root project module")
	}
	if got := len(set.Installed); got != 2 {
		t.Fatalf("expected 2 installed artifacts (lodash, @types/node), got %d", got)
	}
}

func TestCrawlIgnoresDotDirectories(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "root-project")
	writeManifest(t, filepath.Join(root, "modules", ".hidden"), "hidden")

	set, err := Crawl(context.Background(), root, "modules", false)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(set.LocalModules(root)); got != 0 {
		t.Fatalf("expected dot-directories to be ignored, got %d local modules", got)
	}
}

func TestCrawlMissingModulesFolderIsUncritical(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "root-project")

	_, err := Crawl(context.Background(), root, "modules", false)
	var uerr *errs.UncriticalError
	if !errors.As(err, &uerr) {
		t.Fatalf("a missing modules folder should be an uncritical early exit, got %v", err)
	}
}

func TestCrawlOutsideProjectRootIsUncritical(t *testing.T) {
	root := t.TempDir()

	_, err := Crawl(context.Background(), root, "modules", false)
	var uerr *errs.UncriticalError
	if !errors.As(err, &uerr) {
		t.Fatalf("a missing root manifest should be an uncritical early exit, got %v", err)
	}
}

func TestCrawlRecursesIntoNestedLocalModules(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "root-project")
	writeManifest(t, filepath.Join(root, "modules", "a"), "a")
	writeManifest(t, filepath.Join(root, "modules", "a", "modules", "nested"), "nested")
	writeManifest(t, filepath.Join(root, "modules", "a", "node_modules", "leftpad"), "leftpad")

	set, err := Crawl(context.Background(), root, "modules", false)
	if err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, m := range set.LocalModules(root) {
		names[m.Name] = true
	}
	if !names["nested"] {
		t.Errorf("expected nested local module to be discovered, got %v", names)
	}

	foundNested := false
	for _, m := range set.Installed {
		if m.Name == "leftpad" {
			foundNested = true
			if !m.IsNested {
				t.Errorf("leftpad was installed beneath a's node_modules and should be flagged nested")
			}
		}
	}
	if !foundNested {
		t.Errorf("expected to find leftpad among installed artifacts")
	}
}
