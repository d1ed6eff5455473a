// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package reconcile implements the central Plan → Diff → Execute engine: it
// assembles one UKI per desired generation, content-addresses it and its
// detached kernel/initrd, then reconciles each target ESP's filesystem
// state against that desired set under the "detached files, then UKI, then
// rename" ordering invariant I5 demands.
package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/generation"
	"github.com/nix-community/lanzaboote-go/internal/uki"
)

// Artifact is one assembled, unsigned UKI plus the detached kernel/initrd it
// references, all named by content hash: building the same generation twice
// yields identical hashes and identical filenames.
type Artifact struct {
	Generation generation.Generation

	KernelPath string
	KernelHash string
	KernelRef  string

	InitrdPath string
	InitrdHash string
	InitrdRef  string

	UnsignedUKIPath string
	Filename        string
}

// BuildArtifacts assembles one UKI per generation. Hashing and PE assembly
// for distinct generations are independent, so they run CPU-parallel via
// errgroup; a failure in any one aborts the whole batch, since a partial
// artifact set must never be reconciled onto an ESP.
//
// initialTries enables the boot-counting filename suffix when >= 0.
func BuildArtifacts(ctx context.Context, scratchDir, stubPath, pcrSigningKeyPath string, pcrPublicKey []byte, generations []generation.Generation, initialTries int) ([]Artifact, error) {
	artifacts := make([]Artifact, len(generations))

	g, ctx := errgroup.WithContext(ctx)

	for i, gen := range generations {
		g.Go(func() error {
			artifact, err := buildOne(ctx, scratchDir, stubPath, pcrSigningKeyPath, pcrPublicKey, gen, initialTries)
			if err != nil {
				return fmt.Errorf("building UKI for %s: %w", gen.Describe(), err)
			}

			artifacts[i] = artifact

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return artifacts, nil
}

func buildOne(ctx context.Context, scratchDir, stubPath, pcrSigningKeyPath string, pcrPublicKey []byte, gen generation.Generation, initialTries int) (Artifact, error) {
	spec := gen.Spec.Bootspec

	kernelHash, err := hashFilePath(spec.Kernel)
	if err != nil {
		return Artifact{}, fmt.Errorf("hashing kernel: %w", err)
	}

	// The initrd on disk may be a base image that still needs its
	// generation's secrets appended; the scratch copy, possibly mutated by
	// that hook, is what gets hashed and installed, not spec.Initrd itself.
	initrdScratchPath := filepath.Join(scratchDir, fmt.Sprintf("initrd-%s.tmp", gen.VersionTag()))

	if err := appendInitrdSecrets(ctx, spec.InitrdSecrets, spec.Initrd, initrdScratchPath); err != nil {
		return Artifact{}, err
	}

	initrdHash, err := hashFilePath(initrdScratchPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("hashing initrd: %w", err)
	}

	kernelRef := "kernel-" + kernelHash + ".efi"
	initrdRef := "initrd-" + initrdHash + ".efi"

	// best-effort: not every toplevel carries a readable os-release at this
	// path, and a missing .osrel section is not fatal to assembly.
	osRelease, _ := os.ReadFile(filepath.Join(spec.Toplevel, "etc", "os-release")) //nolint:errcheck

	builder := &uki.Builder{Inputs: uki.Inputs{
		StubPath:          stubPath,
		OSRelease:         osRelease,
		Cmdline:           strings.Join(spec.KernelParams, " "),
		KernelPath:        spec.Kernel,
		KernelRef:         kernelRef,
		InitrdPath:        initrdScratchPath,
		InitrdRef:         initrdRef,
		PCRSigningKeyPath: pcrSigningKeyPath,
		PCRPublicKey:      pcrPublicKey,
	}}

	unsignedPath := filepath.Join(scratchDir, fmt.Sprintf("unsigned-%s-%s.efi", gen.VersionTag(), kernelHash[:12]))

	if err := builder.Build(ctx, unsignedPath); err != nil {
		return Artifact{}, err
	}

	ukiHash, err := hashFilePath(unsignedPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("hashing assembled UKI: %w", err)
	}

	filename := esp.Filename(gen.Version, gen.SpecialisationName, ukiHash, initialTries, 0)

	return Artifact{
		Generation:      gen,
		KernelPath:      spec.Kernel,
		KernelHash:      kernelHash,
		KernelRef:       kernelRef,
		InitrdPath:      initrdScratchPath,
		InitrdHash:      initrdHash,
		InitrdRef:       initrdRef,
		UnsignedUKIPath: unsignedPath,
		Filename:        filename,
	}, nil
}

func hashFilePath(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	return esp.HashReader(f)
}
