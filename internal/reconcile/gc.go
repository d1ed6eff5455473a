// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reconcile

import (
	"path/filepath"

	"github.com/nix-community/lanzaboote-go/internal/esp"
)

// GC removes every detached kernel/initrd artefact on the ESP that no
// currently installed UKI references, without touching any installed UKI
// itself: the garbage-collection half of ReconcileESP's I4 enforcement,
// exposed standalone for a one-shot sweep against whatever is already on
// the ESP rather than against a freshly computed desired set.
func (e *Engine) GC(paths esp.Paths) (Result, error) {
	inventory, err := esp.ReadInventory(paths)
	if err != nil {
		return Result{}, err
	}

	referenced := map[string]bool{}

	for _, u := range inventory.UKIs {
		referenced[filepath.Base(u.KernelRef)] = true
		referenced[filepath.Base(u.InitrdRef)] = true
	}

	removed, err := gcReferenced(paths, referenced)
	if err != nil {
		return Result{}, err
	}

	return Result{Removed: removed}, nil
}
