// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stub

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/nix-community/lanzaboote-go/internal/efivarfs"
	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/secureboot"
)

// Version is the lanzaboote-stub version string reported via StubInfo.
const Version = "1"

// StubFeatures is the 64-bit bitmask of implemented optional features.
// Bit 0: PCR signature verification support.
const StubFeatures uint64 = 1 << 0

// FirmwareType is the fixed value this system reports via
// LoaderFirmwareType: the stub only ever runs under UEFI.
const FirmwareType = "UEFI"

// Runtime drives one boot attempt through the stub's fixed state sequence:
// ParsingSections, LoadingKernel, VerifyingKernelHash, LoadingInitrd,
// VerifyingInitrdHash, Measuring, ExportingVars, StartingImage, and the two
// terminal states Started/Aborted.
type Runtime struct {
	Firmware Firmware

	// OwnUKIFilename is the filename firmware loaded the stub's own UKI
	// image under, exported as LoaderImageIdentifier and used to decrement
	// a boot-counting suffix.
	OwnUKIFilename string

	state State
}

// State returns the runtime's current state.
func (r *Runtime) State() State { return r.state }

// Run executes the full boot sequence. It returns nil only when
// Firmware.StartImage returned control without transferring execution,
// which a well-behaved firmware never does on success; any other outcome
// is an *Abort.
func (r *Runtime) Run(ctx context.Context) error {
	r.state = StateParsingSections

	sections, err := r.Firmware.OwnSections(ctx)
	if err != nil {
		return r.abort(abortf(AbortFilesystemError, err.Error()))
	}

	cmdline := string(trimZero(sections[string(secureboot.CmdLine)]))
	kernelRef := string(trimZero(sections[string(secureboot.Linux)]))
	kernelHash := sections[string(secureboot.Linuxh)]
	initrdRef := string(trimZero(sections[string(secureboot.Initrdp)]))
	initrdHash := sections[string(secureboot.Initrdh)]

	if kernelRef == "" || len(kernelHash) == 0 || initrdRef == "" || len(initrdHash) == 0 {
		return r.abort(abortf(AbortSectionMissing, "required detached-reference section missing"))
	}

	r.state = StateLoadingKernel

	kernelPath := path.Join("EFI", "nixos", kernelRef)

	kernelBytes, err := r.Firmware.ReadFile(ctx, kernelPath)
	if err != nil {
		return r.abort(abortf(AbortFilesystemError, err.Error()))
	}

	r.state = StateVerifyingKernelHash

	if !hashMatches(kernelBytes, kernelHash) {
		return r.abort(abortf(AbortHashMismatch, "hash does not match: "+kernelPath))
	}

	r.state = StateLoadingInitrd

	initrdPath := path.Join("EFI", "nixos", initrdRef)

	initrdBytes, err := r.Firmware.ReadFile(ctx, initrdPath)
	if err != nil {
		return r.abort(abortf(AbortFilesystemError, err.Error()))
	}

	r.state = StateVerifyingInitrdHash

	if !hashMatches(initrdBytes, initrdHash) {
		return r.abort(abortf(AbortHashMismatch, "hash does not match: "+initrdPath))
	}

	r.state = StateMeasuring

	// Walk the same ordered section set, hashing the same section-as-written
	// bytes, that internal/measure/pcr.CalculateBankData predicts at install
	// time: .linux/.initrdp carry the detached-file reference strings and
	// .linuxh/.initrdh their hashes, not the resolved kernel/initrd content,
	// so this computation and the installer's prediction walk identical
	// inputs and a signed .pcrsig can actually unseal after a real boot.
	for _, section := range secureboot.OrderedSections() {
		data := sections[string(section)]
		if len(data) == 0 {
			continue
		}

		if err := r.measureSection(ctx, section, data); err != nil {
			return r.abort(abortf(AbortFilesystemError, err.Error()))
		}
	}

	r.state = StateExportingVars

	if err := r.exportVariables(ctx, kernelRef); err != nil {
		return r.abort(abortf(AbortFilesystemError, err.Error()))
	}

	handle, err := r.Firmware.LoadImage(ctx, kernelBytes)
	if err != nil {
		return r.abort(abortf(AbortSecurityViolation, err.Error()))
	}

	if err := r.Firmware.RegisterInitrd(ctx, initrdBytes); err != nil {
		return r.abort(abortf(AbortAllocationFailed, err.Error()))
	}

	if err := r.decrementBootCount(ctx); err != nil {
		return r.abort(abortf(AbortFilesystemError, err.Error()))
	}

	r.state = StateStartingImage

	if err := r.Firmware.StartImage(ctx, handle, cmdline); err != nil {
		return r.abort(abortf(AbortNotSigned, err.Error()))
	}

	r.state = StateStarted

	return nil
}

func (r *Runtime) abort(a *Abort) error {
	r.state = StateAborted

	return a
}

// measureSection performs the two PCR extends a measured section requires:
// one over the section's name (matching the systemd ipl-event convention of
// measuring a descriptor string before the data it describes), one over the
// section's own bytes. A TPM-absent firmware is non-fatal.
func (r *Runtime) measureSection(ctx context.Context, section secureboot.Section, data []byte) error {
	for _, chunk := range [][]byte{append([]byte(section), 0), data} {
		if err := r.Firmware.ExtendPCR(ctx, secureboot.UKIPCR, chunk); err != nil {
			if errors.Is(err, ErrTPMAbsent) {
				return nil
			}

			return err
		}
	}

	return nil
}

func (r *Runtime) exportVariables(ctx context.Context, kernelRef string) error {
	encodedInfo, err := efivarfs.EncodeString(fmt.Sprintf("lanzastub %s", Version))
	if err != nil {
		return err
	}

	if err := r.Firmware.SetVariable(ctx, efivarfs.StubInfo, encodedInfo); err != nil {
		return err
	}

	if err := r.Firmware.SetVariable(ctx, efivarfs.StubFeatures, efivarfs.EncodeUint64(StubFeatures)); err != nil {
		return err
	}

	if err := r.Firmware.SetVariable(ctx, efivarfs.StubPcrKernelImage, efivarfs.EncodeUint32(secureboot.UKIPCR)); err != nil {
		return err
	}

	encodedImageID, err := efivarfs.EncodeString(strings.ReplaceAll(path.Join("EFI", "Linux", r.OwnUKIFilename), "/", `\`))
	if err != nil {
		return err
	}

	if err := r.Firmware.SetVariable(ctx, efivarfs.LoaderImageIdentifier, encodedImageID); err != nil {
		return err
	}

	devicePartUUID, err := r.Firmware.DevicePartUUID(ctx)
	if err != nil {
		return err
	}

	encodedDevicePartUUID, err := efivarfs.EncodeString(devicePartUUID)
	if err != nil {
		return err
	}

	if err := r.Firmware.SetVariable(ctx, efivarfs.LoaderDevicePartUUID, encodedDevicePartUUID); err != nil {
		return err
	}

	firmwareInfo, err := r.Firmware.FirmwareInfo(ctx)
	if err != nil {
		return err
	}

	encodedFirmwareInfo, err := efivarfs.EncodeString(firmwareInfo)
	if err != nil {
		return err
	}

	if err := r.Firmware.SetVariable(ctx, efivarfs.LoaderFirmwareInfo, encodedFirmwareInfo); err != nil {
		return err
	}

	encodedFirmwareType, err := efivarfs.EncodeString(FirmwareType)
	if err != nil {
		return err
	}

	return r.Firmware.SetVariable(ctx, efivarfs.LoaderFirmwareType, encodedFirmwareType)
}

// decrementBootCount renames the booted UKI to decrement its boot-counting
// suffix, if present; the boot-counting contract leaves a
// successfully-booted-and-confirmed UKI's filename untouched, a decision
// the first-stage loader makes after boot-services exit, not the stub.
func (r *Runtime) decrementBootCount(ctx context.Context) error {
	decoded, ok := esp.ParseUKIFilename(r.OwnUKIFilename)
	if !ok || !decoded.HasTries || decoded.TriesLeft <= 0 {
		return nil
	}

	newName := esp.Filename(decoded.Generation, decoded.Specialisation, decoded.Hash, decoded.TriesLeft-1, decoded.TriesDone+1)

	return r.Firmware.RenameSelf(ctx, newName)
}

func hashMatches(data, expected []byte) bool {
	sum := sha256.Sum256(data)

	return len(expected) == len(sum) && string(sum[:]) == string(expected)
}

func trimZero(data []byte) []byte {
	for i, b := range data {
		if b == 0 {
			return data[:i]
		}
	}

	return data
}

// ErrTPMAbsent is returned by a Firmware implementation's ExtendPCR when no
// TPM 2.0 device is present; the runtime treats this as non-fatal.
var ErrTPMAbsent = errors.New("no TPM present")
