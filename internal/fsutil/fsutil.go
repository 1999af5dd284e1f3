// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fsutil holds small filesystem helpers plus a junction-aware
// symlink creator for the OS-specific fallback path symlink repair needs
// on Windows.
package fsutil

import (
	"os"
	"path/filepath"
	"runtime"

	shutil "github.com/termie/go-shutil"
)

// IsDir is true if name is a directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, nil
	}
	return true, nil
}

// IsSymlink determines whether path is a symbolic link.
func IsSymlink(path string) (bool, error) {
	l, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return l.Mode()&os.ModeSymlink == os.ModeSymlink, nil
}

// Link creates a symlink at linkPath pointing at target, creating the
// link's parent directory first (scoped packages and .bin entries land in
// directories the installer may never have made). On non-Windows platforms
// this is a plain os.Symlink; on Windows, directory targets need a junction
// instead of a symlink for unprivileged users, so the directory tree is
// copied via go-shutil as a fallback.
func Link(target, linkPath string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		return os.Symlink(target, linkPath)
	}

	isDir, err := IsDir(target)
	if err != nil {
		return err
	}
	if !isDir {
		return os.Symlink(target, linkPath)
	}

	return shutil.CopyTree(target, linkPath, nil)
}
