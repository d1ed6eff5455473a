// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package esp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nix-community/lanzaboote-go/internal/pe"
	"github.com/nix-community/lanzaboote-go/internal/secureboot"
)

// InstalledUKI describes one UKI found on the ESP together with the
// detached references embedded in its sections.
type InstalledUKI struct {
	Filename   string
	Path       string
	Size       int64
	Decoded    UKIFilename
	KernelRef  string // .linux section: ESP-relative path of the kernel
	KernelHash string // .linuxh section
	InitrdRef  string // .initrdp section: ESP-relative path of the initrd
	InitrdHash string // .initrdh section
}

// Inventory is the observed state of one ESP: the set of installed UKIs
// plus the detached artefact files present under /EFI/nixos.
type Inventory struct {
	UKIs            []InstalledUKI
	DetachedKernels map[string]int64 // filename -> size
	DetachedInitrds map[string]int64 // filename -> size
}

// ReadInventory globs the fixed ESP directories and reads each UKI's
// .linux/.linuxh/.initrdp/.initrdh sections, recovering the installed
// inventory without consulting any side-channel state.
func ReadInventory(paths Paths) (Inventory, error) {
	inv := Inventory{
		DetachedKernels: map[string]int64{},
		DetachedInitrds: map[string]int64{},
	}

	ukiEntries, err := os.ReadDir(paths.Linux)
	if err != nil {
		if os.IsNotExist(err) {
			return inv, nil
		}

		return inv, fmt.Errorf("reading %s: %w", paths.Linux, err)
	}

	for _, entry := range ukiEntries {
		if entry.IsDir() {
			continue
		}

		decoded, ok := ParseUKIFilename(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(paths.Linux, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return inv, fmt.Errorf("stat %s: %w", path, err)
		}

		uki := InstalledUKI{
			Filename: entry.Name(),
			Path:     path,
			Size:     info.Size(),
			Decoded:  decoded,
		}

		uki.KernelRef, _ = readSectionString(path, secureboot.Linux)   //nolint:errcheck
		uki.KernelHash, _ = readSectionHash(path, secureboot.Linuxh)   //nolint:errcheck
		uki.InitrdRef, _ = readSectionString(path, secureboot.Initrdp) //nolint:errcheck
		uki.InitrdHash, _ = readSectionHash(path, secureboot.Initrdh)  //nolint:errcheck

		inv.UKIs = append(inv.UKIs, uki)
	}

	nixosEntries, err := os.ReadDir(paths.NixOS)
	if err != nil {
		if os.IsNotExist(err) {
			return inv, nil
		}

		return inv, fmt.Errorf("reading %s: %w", paths.NixOS, err)
	}

	for _, entry := range nixosEntries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return inv, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}

		switch {
		case isKernelFile(entry.Name()):
			inv.DetachedKernels[entry.Name()] = info.Size()
		case isInitrdFile(entry.Name()):
			inv.DetachedInitrds[entry.Name()] = info.Size()
		}
	}

	return inv, nil
}

func readSectionString(path string, section secureboot.Section) (string, error) {
	data, err := pe.ReadSection(path, string(section))
	if err != nil {
		return "", err
	}

	// Section bytes are zero-padded; trim the trailing NULs.
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}

	return string(data), nil
}

// readSectionHash reads a .linuxh/.initrdh section, which holds a raw
// 32-byte sha256 digest rather than a NUL-terminated string, and renders it
// in the same content-address text form InstalledUKI's hash comparisons
// expect. Unlike readSectionString, it must not trim on a zero byte: a
// digest byte is as likely to be 0x00 as any other value.
func readSectionHash(path string, section secureboot.Section) (string, error) {
	data, err := pe.ReadSection(path, string(section))
	if err != nil {
		return "", err
	}

	return EncodeHash(data), nil
}

func isKernelFile(name string) bool {
	return len(name) > len("kernel-.efi") && name[:len("kernel-")] == "kernel-" && filepath.Ext(name) == ".efi"
}

func isInitrdFile(name string) bool {
	return len(name) > len("initrd-.efi") && name[:len("initrd-")] == "initrd-" && filepath.Ext(name) == ".efi"
}
