// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest reads one package.json into a ModuleInfo.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/heikomat/minstall/internal/errs"
)

// ManifestFilename is the file every module is expected to carry.
const ManifestFilename = "package.json"

// ModuleInfo is one resolved manifest, per the data model's ModuleInfo
// record.
type ModuleInfo struct {
	// Location is the absolute path of the folder enclosing RealFolderName.
	Location string
	// RealFolderName is the on-disk folder name, which may diverge from
	// CanonicalFolderName for local modules.
	RealFolderName string
	// CanonicalFolderName is the relative path this module should occupy
	// under node_modules given its declared Name.
	CanonicalFolderName string

	Name    string
	Version string

	// Dependencies is merged from runtime, (non-production) development,
	// and peer dependency kinds; later kinds overwrite earlier keys.
	Dependencies map[string]string

	PostinstallCommand string
	BinEntries         map[string]string
	IsScoped           bool

	// ManifestPath is the package.json path this ModuleInfo was read from,
	// kept for error messages produced downstream.
	ManifestPath string

	// IsNested records whether this ModuleInfo was discovered beneath a
	// nested module's own node_modules, rather than the project root's.
	// Only meaningful for installed artifacts; local modules never set it.
	IsNested bool
}

// FullModulePath is the module's full on-disk path.
func (m *ModuleInfo) FullModulePath() string {
	return filepath.Join(m.Location, m.RealFolderName)
}

type rawScripts struct {
	Postinstall string `json:"postinstall"`
	Install     string `json:"install"`
}

type rawManifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Scripts          rawScripts        `json:"scripts"`
	Bin              json.RawMessage   `json:"bin"`
}

// Read parses the manifest at join(dir, "package.json") into a ModuleInfo.
// Location and RealFolderName are filled in by the caller, since a bare
// manifest read doesn't know where its module is meant to live on disk --
// dir is simply where the file was found.
//
// production suppresses merging devDependencies, mirroring NODE_ENV=production.
func Read(dir string, production bool) (*ModuleInfo, error) {
	manifestPath := filepath.Join(dir, ManifestFilename)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &errs.ManifestError{Path: manifestPath, Cause: err}
	}

	var rm rawManifest
	if err := json.Unmarshal(data, &rm); err != nil {
		return nil, &errs.ManifestError{Path: manifestPath, Cause: err}
	}

	deps := make(map[string]string, len(rm.Dependencies)+len(rm.DevDependencies)+len(rm.PeerDependencies))
	for name, rng := range rm.Dependencies {
		deps[name] = rng
	}
	if !production {
		for name, rng := range rm.DevDependencies {
			deps[name] = rng
		}
	}
	for name, rng := range rm.PeerDependencies {
		deps[name] = rng
	}

	bin, err := normalizeBin(rm.Name, rm.Bin)
	if err != nil {
		return nil, &errs.ManifestError{Path: manifestPath, Cause: errors.Wrap(err, "invalid bin field")}
	}

	postinstall := rm.Scripts.Postinstall
	if postinstall == "" {
		// npm runs "install" before "postinstall"; a module that only
		// defines "install" still needs its hook run, since minstall never
		// invokes npm's own per-module lifecycle runner.
		postinstall = rm.Scripts.Install
	}

	return &ModuleInfo{
		Name:                rm.Name,
		Version:             rm.Version,
		Dependencies:        deps,
		PostinstallCommand:  postinstall,
		BinEntries:          bin,
		IsScoped:            strings.HasPrefix(rm.Name, "@"),
		CanonicalFolderName: canonicalPath(rm.Name),
		ManifestPath:        manifestPath,
	}, nil
}

// canonicalPath turns a (possibly scoped) package name into the relative
// path it should occupy under node_modules: "@scope/pkg" becomes the
// two-segment "@scope/pkg" (OS-joined), anything else stays as-is.
func canonicalPath(name string) string {
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return filepath.Join(name[:idx], name[idx+1:])
	}
	return name
}

// unscopedName strips a leading "@scope/" from name, the way npm derives a
// bin command name from a scoped package so the key never carries the path
// separator the scope would otherwise introduce.
func unscopedName(name string) string {
	if idx := strings.IndexByte(name, '/'); idx >= 0 && strings.HasPrefix(name, "@") {
		return name[idx+1:]
	}
	return name
}

// normalizeBin handles the three manifest shapes for "bin": absent (empty
// map), a single string (keyed by the package's unscoped name), or a
// name->path map (passthrough).
func normalizeBin(name string, raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]string{}, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return map[string]string{unscopedName(name): asString}, nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		for k := range asMap {
			if strings.ContainsAny(k, `/\`) {
				return nil, errors.Errorf("bin command name %q must not contain a path separator", k)
			}
		}
		return asMap, nil
	}

	return nil, errors.Errorf("bin field must be a string or an object")
}
