// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reconcile

import (
	"context"
	"fmt"
	"os"

	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/generation"
)

// Request is everything one install/reconcile run needs: the desired
// generations, the stub to build them against, and the ESPs to reconcile.
type Request struct {
	Generations []generation.Generation
	ESPs        []esp.Paths

	StubPath          string
	PCRSigningKeyPath string
	PCRPublicKey      []byte
	InitialTries      int // -1 disables the boot-counting filename suffix
}

// Run builds the desired artifact set once, checks every target ESP has
// room for it, then reconciles each ESP in turn. Within a single ESP writes
// proceed serially, preserving invariant I5's ordering; across ESPs nothing
// requires synchronisation, since each is reconciled independently against
// the same desired set.
func (e *Engine) Run(ctx context.Context, req Request) (map[string]Result, error) {
	scratchDir, err := os.MkdirTemp("", "lanzaboote-reconcile-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir) //nolint:errcheck

	artifacts, err := BuildArtifacts(ctx, scratchDir, req.StubPath, req.PCRSigningKeyPath, req.PCRPublicKey, req.Generations, req.InitialTries)
	if err != nil {
		return nil, err
	}

	for _, paths := range req.ESPs {
		needed, err := RequiredBytes(paths, artifacts)
		if err != nil {
			return nil, err
		}

		if err := CheckFreeSpace(paths, needed); err != nil {
			return nil, err
		}
	}

	results := make(map[string]Result, len(req.ESPs))

	for _, paths := range req.ESPs {
		result, err := e.ReconcileESP(ctx, paths, artifacts)
		if err != nil {
			return results, fmt.Errorf("reconciling %s: %w", paths.ESP, err)
		}

		results[paths.ESP] = result

		e.Logger.Info("reconciled ESP", "esp", paths.ESP, "installed", len(result.Installed), "removed", len(result.Removed))
	}

	return results, nil
}
