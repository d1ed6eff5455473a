// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"

	"github.com/nix-community/lanzaboote-go/internal/stub"
)

// newProductionFirmware constructs the stub.Firmware implementation backed
// by real UEFI Boot Services protocols, and recovers the filename firmware
// loaded this image under. It is the one function this module deliberately
// leaves unimplemented: see the package doc comment.
func newProductionFirmware() (stub.Firmware, string, error) {
	return nil, "", errors.New("lanzaboote-stub: no UEFI firmware bridge wired into this build")
}
