// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// lzbt reconciles an EFI System Partition's installed Unified Kernel
// Images against a set of NixOS generations.
package main

import (
	"os"

	"github.com/nix-community/lanzaboote-go/cmd/lzbt/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
