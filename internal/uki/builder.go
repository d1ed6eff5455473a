// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package uki assembles a Unified Kernel Image from a base stub PE and the
// detached-by-reference sections described in internal/secureboot: it
// never embeds the kernel or initrd, only the ESP-relative paths and
// sha256 hashes that name them.
package uki

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nix-community/lanzaboote-go/internal/measure"
	"github.com/nix-community/lanzaboote-go/internal/pe"
	"github.com/nix-community/lanzaboote-go/internal/secureboot"
)

// Inputs describes everything needed to assemble one UKI.
type Inputs struct {
	// StubPath is the pristine, unsigned lanzaboote-stub PE this UKI is built from.
	StubPath string

	// OSRelease is the content of the os-release file to embed verbatim.
	OSRelease []byte
	// Cmdline is the kernel command line.
	Cmdline string
	// Uname is the kernel version string; discovered from KernelPath when empty.
	Uname string

	// KernelPath is the path to the kernel bytes, used to compute KernelRef's hash
	// and, when Uname is empty, to discover it.
	KernelPath string
	// KernelRef is the ESP-relative filename the booted stub will read the
	// kernel from, e.g. "kernel-<hash>.efi".
	KernelRef string

	// InitrdPath is the path to the (already secret-augmented) initrd bytes.
	InitrdPath string
	// InitrdRef is the ESP-relative filename for the initrd, e.g. "initrd-<hash>.efi".
	InitrdRef string

	// Splash is an optional boot splash image, embedded verbatim.
	Splash []byte
	// DTB is an optional device tree blob, embedded verbatim.
	DTB []byte

	// PCRSigningKeyPath is the PEM-encoded RSA private key used to sign a
	// PCR 11 prediction over the sections above. No .pcrsig section is
	// produced when empty.
	PCRSigningKeyPath string
	// PCRPublicKey is the PEM-encoded PCR signing public key, embedded
	// alongside the signature so the stub's consumer can locate it without
	// a side channel.
	PCRPublicKey []byte
}

// Builder assembles one UKI PE image into a scratch directory, then appends
// its sections onto the base stub via objcopy.
type Builder struct {
	Inputs

	scratchDir string
	sections   []pe.Section
}

// Build assembles the unsigned UKI at dstPath.
func (b *Builder) Build(ctx context.Context, dstPath string) error {
	scratchDir, err := os.MkdirTemp("", "lanzaboote-uki-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir) //nolint:errcheck

	b.scratchDir = scratchDir
	b.sections = nil

	for _, step := range []func() error{
		b.addOSRelease,
		b.addCmdline,
		b.addKernelRef,
		b.addInitrdRef,
		b.addUname,
		b.addSplash,
		b.addDTB,
		b.addPCRPublicKey,
		b.addPCRSignature,
	} {
		if err := step(); err != nil {
			return err
		}
	}

	if err := pe.AppendSections(ctx, b.StubPath, dstPath, b.sections); err != nil {
		return fmt.Errorf("assembling UKI: %w", err)
	}

	return nil
}

func (b *Builder) write(name secureboot.Section, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	path := filepath.Join(b.scratchDir, string(name)[1:])

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s section: %w", name, err)
	}

	b.sections = append(b.sections, pe.Section{Name: string(name), Path: path})

	return nil
}

func (b *Builder) addOSRelease() error { return b.write(secureboot.OSRel, b.OSRelease) }

func (b *Builder) addCmdline() error { return b.write(secureboot.CmdLine, []byte(b.Cmdline)) }

func (b *Builder) addSplash() error { return b.write(secureboot.Splash, b.Splash) }

func (b *Builder) addDTB() error { return b.write(secureboot.DTB, b.DTB) }

// addPCRSignature measures every section written so far, in the order
// internal/secureboot.OrderedSections defines, and signs the resulting PCR
// 11 prediction. It must run after every other section has been written and
// before pe.AppendSections, mirroring the teacher's writePCRSignature step.
func (b *Builder) addPCRSignature() error {
	if b.PCRSigningKeyPath == "" {
		return nil
	}

	sectionsData := make(measure.SectionsData, len(b.sections))

	for _, s := range b.sections {
		sectionsData[secureboot.Section(s.Name)] = s.Path
	}

	pcrData, err := measure.GenerateSignedPCR(sectionsData, b.PCRSigningKeyPath)
	if err != nil {
		return fmt.Errorf("generating PCR signature: %w", err)
	}

	encoded, err := json.Marshal(pcrData)
	if err != nil {
		return fmt.Errorf("encoding PCR signature: %w", err)
	}

	return b.write(secureboot.PCRSig, encoded)
}

func (b *Builder) addPCRPublicKey() error { return b.write(secureboot.PCRPKey, b.PCRPublicKey) }

func (b *Builder) addKernelRef() error {
	if b.KernelRef == "" {
		return nil
	}

	hash, err := hashFile(b.KernelPath)
	if err != nil {
		return fmt.Errorf("hashing kernel: %w", err)
	}

	if err := b.write(secureboot.Linux, []byte(b.KernelRef)); err != nil {
		return err
	}

	return b.write(secureboot.Linuxh, hash)
}

func (b *Builder) addInitrdRef() error {
	if b.InitrdRef == "" {
		return nil
	}

	hash, err := hashFile(b.InitrdPath)
	if err != nil {
		return fmt.Errorf("hashing initrd: %w", err)
	}

	if err := b.write(secureboot.Initrdp, []byte(b.InitrdRef)); err != nil {
		return err
	}

	return b.write(secureboot.Initrdh, hash)
}

func (b *Builder) addUname() error {
	uname := b.Uname

	if uname == "" {
		var err error

		uname, err = DiscoverKernelVersion(b.KernelPath)
		if err != nil || uname == "" {
			// the kernel version cannot always be recovered; the section is
			// informational, so skip it rather than fail the build.
			return nil //nolint:nilerr
		}
	}

	return b.write(secureboot.Uname, []byte(uname))
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}
