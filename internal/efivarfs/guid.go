// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package efivarfs provides the EFI variable encoding and host-side
// read/write access shared by the Boot Loader Interface: the GUID, the
// variable names, and the UTF-16LE / little-endian integer codecs used by
// both the stub (at boot) and the host-side helpers in host.go (on a
// running host).
package efivarfs

import (
	"github.com/ecks/uefi/efi/efiguid"
)

// BootLoaderInterfaceGUIDString is the GUID under which every variable in
// the systemd Boot Loader Interface is stored.
const BootLoaderInterfaceGUIDString = "4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"

// BootLoaderInterfaceGUID is the parsed form of BootLoaderInterfaceGUIDString.
var BootLoaderInterfaceGUID = efiguid.MustFromString(BootLoaderInterfaceGUIDString)

// Variable names written by the stub, or consumed by the first-stage
// loader/OS after the stub hands off.
const (
	LoaderDevicePartUUID  = "LoaderDevicePartUUID"
	LoaderImageIdentifier = "LoaderImageIdentifier"
	LoaderFirmwareInfo    = "LoaderFirmwareInfo"
	LoaderFirmwareType    = "LoaderFirmwareType"
	LoaderEntryDefault    = "LoaderEntryDefault"
	LoaderEntrySelected   = "LoaderEntrySelected"
	LoaderConfigTimeout   = "LoaderConfigTimeout"
	StubInfo              = "StubInfo"
	StubFeatures          = "StubFeatures"
	StubPcrKernelImage    = "StubPcrKernelImage"
)
