// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reconcile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/reconcile"
)

func TestGCRemovesOrphanedDetachedArtefacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	paths := esp.NewPaths(root)

	require.NoError(t, os.MkdirAll(paths.NixOS, 0o755))
	require.NoError(t, os.MkdirAll(paths.Linux, 0o755))

	orphanKernel := filepath.Join(paths.NixOS, "kernel-orphanhashvalue.efi")
	orphanInitrd := filepath.Join(paths.NixOS, "initrd-orphanhashvalue.efi")
	require.NoError(t, os.WriteFile(orphanKernel, []byte("stale-kernel"), 0o644))
	require.NoError(t, os.WriteFile(orphanInitrd, []byte("stale-initrd"), 0o644))

	engine := reconcile.NewEngine(reconcile.Config{})

	result, err := engine.GC(paths)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"kernel-orphanhashvalue.efi", "initrd-orphanhashvalue.efi"}, result.Removed)
	assert.NoFileExists(t, orphanKernel)
	assert.NoFileExists(t, orphanInitrd)
}
