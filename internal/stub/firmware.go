// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package stub implements the UEFI Stub Runtime's state machine as a pure
// Go state machine over a small Firmware capability interface, so its
// ordering and failure semantics are host-testable without a TianoCore
// build. cmd/lanzaboote-stub is the real firmware-wiring boundary; this
// package has no knowledge of cgo or EDK2 protocols.
package stub

import "context"

// Firmware is everything the runtime needs from the environment it boots
// in. A production binary implements this against real UEFI Boot Services
// protocols (LoadImage, file system protocols, the TCG2 protocol, runtime
// variable services); tests implement it in plain Go.
type Firmware interface {
	// OwnSections returns the calling stub image's own PE sections, keyed
	// by secureboot.Section name.
	OwnSections(ctx context.Context) (map[string][]byte, error)

	// ReadFile reads a file by ESP-relative path from the volume the stub
	// booted from.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// LoadImage asks firmware to verify and load a PE image. Firmware
	// itself enforces Secure Boot policy against db here.
	LoadImage(ctx context.Context, image []byte) (ImageHandle, error)

	// RegisterInitrd exposes initrd bytes to the loaded kernel image via
	// the synthesised "Linux Initrd Media" device path firmware's EFI stub
	// convention expects.
	RegisterInitrd(ctx context.Context, initrd []byte) error

	// SetVariable writes a Boot Loader Interface EFI variable.
	SetVariable(ctx context.Context, name string, value []byte) error

	// ExtendPCR extends the given PCR with data, if a TPM is present.
	// Implementations report ErrTPMAbsent when no TPM is available; the
	// runtime treats that as non-fatal.
	ExtendPCR(ctx context.Context, pcr int, data []byte) error

	// StartImage transfers control to a loaded image. It never returns on
	// success.
	StartImage(ctx context.Context, handle ImageHandle, cmdline string) error

	// RenameSelf renames the booted UKI file, used to decrement the
	// boot-counting suffix.
	RenameSelf(ctx context.Context, newName string) error

	// DevicePartUUID returns the partition UUID of the volume the stub
	// booted from, exported as LoaderDevicePartUUID.
	DevicePartUUID(ctx context.Context) (string, error)

	// FirmwareInfo returns a firmware vendor/version descriptor, exported
	// as LoaderFirmwareInfo.
	FirmwareInfo(ctx context.Context) (string, error)
}

// ImageHandle opaquely identifies an image loaded via Firmware.LoadImage.
type ImageHandle interface{}
