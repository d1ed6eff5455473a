// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stub_test

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/secureboot"
	"github.com/nix-community/lanzaboote-go/internal/stub"
)

func sections(kernel, initrd []byte, kernelRef, initrdRef string) map[string][]byte {
	kernelSum := sha256.Sum256(kernel)
	initrdSum := sha256.Sum256(initrd)

	return map[string][]byte{
		string(secureboot.CmdLine):  []byte("console=ttyS0"),
		string(secureboot.Linux):    []byte(kernelRef),
		string(secureboot.Linuxh):   kernelSum[:],
		string(secureboot.Initrdp):  []byte(initrdRef),
		string(secureboot.Initrdh):  initrdSum[:],
		string(secureboot.OSRel):    []byte("NAME=NixOS\n"),
	}
}

// Scenario 1: a correctly signed, matching-hash UKI boots successfully.
func TestRunBootsOnMatchingHashes(t *testing.T) {
	t.Parallel()

	kernel := []byte("kernel-bytes")
	initrd := []byte("initrd-bytes")

	fw := newFakeFirmware()
	fw.sections = sections(kernel, initrd, "kernel-abc.efi", "initrd-def.efi")
	fw.files["EFI/nixos/kernel-abc.efi"] = kernel
	fw.files["EFI/nixos/initrd-def.efi"] = initrd

	r := &stub.Runtime{Firmware: fw, OwnUKIFilename: "nixos-generation-1-aaaaaaaaaaaa.efi"}

	err := r.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, stub.StateStarted, r.State())
	assert.True(t, fw.started)
	assert.NotEmpty(t, fw.extended)
	assert.Contains(t, fw.variables, "StubInfo")
	assert.Contains(t, fw.variables, "StubFeatures")
	assert.Contains(t, fw.variables, "StubPcrKernelImage")
	assert.Contains(t, fw.variables, "LoaderImageIdentifier")
	assert.Contains(t, fw.variables, "LoaderDevicePartUUID")
	assert.Contains(t, fw.variables, "LoaderFirmwareInfo")
	assert.Contains(t, fw.variables, "LoaderFirmwareType")
}

// Scenario: the boot-time measurement loop walks the same ordered section
// set, hashing the same section-as-written bytes, that the installer's PCR
// prediction does, so the two algorithms are provably the same computation.
func TestRunMeasuresSectionsInPredictionOrder(t *testing.T) {
	t.Parallel()

	kernel := []byte("kernel-bytes")
	initrd := []byte("initrd-bytes")

	fw := newFakeFirmware()
	fw.sections = sections(kernel, initrd, "kernel-abc.efi", "initrd-def.efi")
	fw.files["EFI/nixos/kernel-abc.efi"] = kernel
	fw.files["EFI/nixos/initrd-def.efi"] = initrd

	r := &stub.Runtime{Firmware: fw, OwnUKIFilename: "nixos-generation-1-aaaaaaaaaaaa.efi"}

	require.NoError(t, r.Run(t.Context()))

	var wantExtends []string

	for _, section := range secureboot.OrderedSections() {
		data := fw.sections[string(section)]
		if len(data) == 0 {
			continue
		}

		wantExtends = append(wantExtends, string(append([]byte(section), 0)), string(data))
	}

	assert.Equal(t, wantExtends, fw.extended)
}

// Scenario: a tampered kernel file aborts with HashMismatch before
// LoadImage is ever called.
func TestRunAbortsOnKernelHashMismatch(t *testing.T) {
	t.Parallel()

	kernel := []byte("kernel-bytes")
	initrd := []byte("initrd-bytes")

	fw := newFakeFirmware()
	fw.sections = sections(kernel, initrd, "kernel-abc.efi", "initrd-def.efi")
	fw.files["EFI/nixos/kernel-abc.efi"] = []byte("tampered-kernel-bytes")
	fw.files["EFI/nixos/initrd-def.efi"] = initrd

	r := &stub.Runtime{Firmware: fw, OwnUKIFilename: "nixos-generation-1-aaaaaaaaaaaa.efi"}

	err := r.Run(t.Context())
	require.Error(t, err)

	var abort *stub.Abort
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, stub.AbortHashMismatch, abort.Kind)
	assert.Equal(t, stub.StateAborted, r.State())
	assert.False(t, fw.started)
}

// A missing required section aborts before any file is read.
func TestRunAbortsOnMissingSection(t *testing.T) {
	t.Parallel()

	fw := newFakeFirmware()

	r := &stub.Runtime{Firmware: fw}

	err := r.Run(t.Context())
	require.Error(t, err)

	var abort *stub.Abort
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, stub.AbortSectionMissing, abort.Kind)
}

// Boot counting decrements tries-left on a successful boot
// attempt, renaming the booted UKI.
func TestRunDecrementsBootCount(t *testing.T) {
	t.Parallel()

	kernel := []byte("kernel-bytes")
	initrd := []byte("initrd-bytes")

	fw := newFakeFirmware()
	fw.sections = sections(kernel, initrd, "kernel-abc.efi", "initrd-def.efi")
	fw.files["EFI/nixos/kernel-abc.efi"] = kernel
	fw.files["EFI/nixos/initrd-def.efi"] = initrd

	name := esp.Filename(1, "", "aaaaaaaaaaaa", 3, 0)

	r := &stub.Runtime{Firmware: fw, OwnUKIFilename: name}

	require.NoError(t, r.Run(t.Context()))

	assert.Equal(t, esp.Filename(1, "", "aaaaaaaaaaaa", 2, 1), fw.renamedTo)
}

// A TPM-absent firmware is non-fatal: measurement is skipped but the boot
// proceeds.
func TestRunProceedsWithoutTPM(t *testing.T) {
	t.Parallel()

	kernel := []byte("kernel-bytes")
	initrd := []byte("initrd-bytes")

	fw := newFakeFirmware()
	fw.hasTPM = false
	fw.sections = sections(kernel, initrd, "kernel-abc.efi", "initrd-def.efi")
	fw.files["EFI/nixos/kernel-abc.efi"] = kernel
	fw.files["EFI/nixos/initrd-def.efi"] = initrd

	r := &stub.Runtime{Firmware: fw, OwnUKIFilename: "nixos-generation-1-aaaaaaaaaaaa.efi"}

	require.NoError(t, r.Run(t.Context()))
	assert.Empty(t, fw.extended)
	assert.True(t, fw.started)
}
