// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reconcile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nix-community/lanzaboote-go/internal/esp"
)

// ErrInsufficientSpace is returned when an ESP does not have enough free
// space to hold the files a reconciliation is about to write.
type ErrInsufficientSpace struct {
	ESP       string
	Needed    uint64
	Available uint64
}

func (e *ErrInsufficientSpace) Error() string {
	return fmt.Sprintf("%s: need %d bytes, %d available", e.ESP, e.Needed, e.Available)
}

// RequiredBytes estimates the additional space a reconciliation will write
// to an ESP: every detached kernel and initrd not already present there,
// by content-addressed filename, plus every assembled UKI whether or not it
// is already installed.
func RequiredBytes(paths esp.Paths, artifacts []Artifact) (uint64, error) {
	inventory, err := esp.ReadInventory(paths)
	if err != nil {
		return 0, fmt.Errorf("reading inventory of %s: %w", paths.ESP, err)
	}

	var needed uint64

	for _, a := range artifacts {
		if _, ok := inventory.DetachedKernels[a.KernelRef]; !ok {
			needed += sizeOf(a.KernelPath)
		}

		if _, ok := inventory.DetachedInitrds[a.InitrdRef]; !ok {
			needed += sizeOf(a.InitrdPath)
		}

		needed += sizeOf(a.UnsignedUKIPath)
	}

	return needed, nil
}

func sizeOf(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return uint64(info.Size())
}

// CheckFreeSpace fails with ErrInsufficientSpace if the filesystem mounted
// at paths.ESP does not have at least needed bytes free.
func CheckFreeSpace(paths esp.Paths, needed uint64) error {
	var statfs unix.Statfs_t

	if err := unix.Statfs(paths.ESP, &statfs); err != nil {
		return fmt.Errorf("statfs %s: %w", paths.ESP, err)
	}

	available := statfs.Bavail * uint64(statfs.Bsize) //nolint:unconvert

	if available < needed {
		return &ErrInsufficientSpace{ESP: paths.ESP, Needed: needed, Available: available}
	}

	return nil
}
