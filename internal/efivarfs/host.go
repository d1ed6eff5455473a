// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package efivarfs

import (
	"errors"
	"fmt"

	"github.com/ecks/uefi/efi/efivario"
)

// ReadVariable reads a Boot Loader Interface string variable. A missing
// variable is reported as an empty string, not an error: on a running host
// the stub may never have written it.
func ReadVariable(c efivario.Context, name string) (string, error) {
	_, data, err := efivario.ReadAll(c, name, BootLoaderInterfaceGUID)
	if err != nil {
		if errors.Is(err, efivario.ErrNotFound) {
			return "", nil
		}

		return "", fmt.Errorf("reading %s: %w", name, err)
	}

	return DecodeString(data)
}

// WriteVariable writes a Boot Loader Interface string variable.
func WriteVariable(c efivario.Context, name, value string) error {
	out, err := EncodeString(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	return c.Set(name, BootLoaderInterfaceGUID, efivario.BootServiceAccess|efivario.RuntimeAccess|efivario.NonVolatile, out)
}

// ReadUint32 reads a Boot Loader Interface little-endian uint32 variable
// such as StubPcrKernelImage.
func ReadUint32(c efivario.Context, name string) (uint32, bool, error) {
	_, data, err := efivario.ReadAll(c, name, BootLoaderInterfaceGUID)
	if err != nil {
		if errors.Is(err, efivario.ErrNotFound) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("reading %s: %w", name, err)
	}

	if len(data) < 4 {
		return 0, false, fmt.Errorf("reading %s: short variable (%d bytes)", name, len(data))
	}

	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24, true, nil
}
