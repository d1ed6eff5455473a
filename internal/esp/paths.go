// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package esp computes the fixed ESP Layout & Naming conventions this
// system writes to and reads from, and recovers the installed-generation
// inventory by parsing an existing ESP.
package esp

import "path/filepath"

// Paths is the fixed set of ESP-relative locations this system manages,
// generalising the Rust SystemdEspPaths/EspPaths<N> trait into a plain Go
// struct: one field per well-known path, plus an Iter helper listing the
// root directories of the layout.
type Paths struct {
	// ESP is the mount point of the EFI System Partition.
	ESP string

	// Linux is /EFI/Linux, holding installed UKIs.
	Linux string
	// NixOS is /EFI/nixos, holding detached kernel/initrd artefacts.
	NixOS string
	// Loader is /loader, holding loader.conf and entries.srel.
	Loader string
	// LoaderConf is /loader/loader.conf.
	LoaderConf string
	// EntriesSREL is /loader/entries.srel.
	EntriesSREL string
	// AutoEnrollKeys is /loader/keys/auto, holding {PK,KEK,db}.auth.
	AutoEnrollKeys string
}

// NewPaths builds the fixed path set rooted at the given ESP mount point.
func NewPaths(espMountPoint string) Paths {
	return Paths{
		ESP:            espMountPoint,
		Linux:          filepath.Join(espMountPoint, "EFI", "Linux"),
		NixOS:          filepath.Join(espMountPoint, "EFI", "nixos"),
		Loader:         filepath.Join(espMountPoint, "loader"),
		LoaderConf:     filepath.Join(espMountPoint, "loader", "loader.conf"),
		EntriesSREL:    filepath.Join(espMountPoint, "loader", "entries.srel"),
		AutoEnrollKeys: filepath.Join(espMountPoint, "loader", "keys", "auto"),
	}
}

// Iter returns the root directories that must exist on the ESP; the
// reconciler creates them before installing anything.
func (p Paths) Iter() []string {
	return []string{p.Linux, p.NixOS, p.Loader, p.AutoEnrollKeys}
}

// KernelPath returns the path, under the ESP mount point, of a detached kernel artefact
// named by its content hash.
func (p Paths) KernelPath(hash string) string {
	return filepath.Join(p.NixOS, "kernel-"+hash+".efi")
}

// InitrdPath returns the path, under the ESP mount point, of a detached initrd artefact
// named by its content hash.
func (p Paths) InitrdPath(hash string) string {
	return filepath.Join(p.NixOS, "initrd-"+hash+".efi")
}

// UKIPath returns the path of an installed UKI given its already-rendered
// filename (see Filename).
func (p Paths) UKIPath(filename string) string {
	return filepath.Join(p.Linux, filename)
}
