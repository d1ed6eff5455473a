// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main is the UEFI entry point for lanzaboote-stub.
//
// This binary is not built by this module as a freestanding UEFI
// application today: doing so requires a TianoCore/EDK2 cgo bridge
// (GOOS=linux with a PE32+ override, or gc's experimental EFI target) to
// implement the Firmware interface against real Boot Services protocols —
// LoadImage, the Simple File System protocol, the TCG2 protocol, and
// runtime variable services. That bridge is intentionally out of scope:
// internal/stub.Runtime contains every ordering and failure-semantics
// decision the stub makes, fully exercised host-side against a fake
// Firmware in internal/stub's tests. Wiring a production Firmware
// implementation here is the remaining, environment-specific step.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nix-community/lanzaboote-go/internal/stub"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	firmware, ownUKIFilename, err := newProductionFirmware()
	if err != nil {
		logger.Error("initializing firmware bridge", "error", err)
		os.Exit(1)
	}

	runtime := &stub.Runtime{Firmware: firmware, OwnUKIFilename: ownUKIFilename}

	if err := runtime.Run(context.Background()); err != nil {
		logger.Error("boot aborted", "state", runtime.State(), "error", err)
		os.Exit(1)
	}

	// unreachable on a real firmware: StartImage transfers control and
	// never returns on success.
}
