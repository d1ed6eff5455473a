// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package uki_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/uki"
)

func TestDiscoverKernelVersionFindsBanner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vmlinuz")

	content := append([]byte{0x4d, 0x5a, 0, 0, 0, 0, 0, 0}, []byte("junk Linux version 6.6.30-lanzaboote (nix@build) #1 SMP PREEMPT\nmore junk")...)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	version, err := uki.DiscoverKernelVersion(path)
	require.NoError(t, err)
	assert.Equal(t, "6.6.30-lanzaboote", version)
}

func TestDiscoverKernelVersionWithoutBannerIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vmlinuz")
	require.NoError(t, os.WriteFile(path, []byte{0x4d, 0x5a, 1, 2, 3}, 0o600))

	version, err := uki.DiscoverKernelVersion(path)
	require.NoError(t, err)
	assert.Empty(t, version)
}

func TestBuildFailsOnMissingStub(t *testing.T) {
	t.Parallel()

	b := &uki.Builder{Inputs: uki.Inputs{
		StubPath: filepath.Join(t.TempDir(), "does-not-exist.efi"),
		Cmdline:  "console=ttyS0",
	}}

	err := b.Build(t.Context(), filepath.Join(t.TempDir(), "out.efi"))
	assert.Error(t, err)
}
