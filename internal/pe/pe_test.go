// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/pe"
	"github.com/nix-community/lanzaboote-go/internal/pe/pefixture"
)

func TestReadSectionMissing(t *testing.T) {
	t.Parallel()

	_, err := pe.ReadSection("testdata/does-not-exist.efi", ".osrel")
	assert.Error(t, err)
}

func TestReadSectionRoundTripsFixtureSections(t *testing.T) {
	t.Parallel()

	img := pefixture.Build([]pefixture.Section{
		{Name: ".osrel", Data: []byte("NAME=NixOS\n")},
		{Name: ".linuxh", Data: []byte{0x00, 0x01, 0x02, 0x03}},
	})

	path := filepath.Join(t.TempDir(), "fixture.efi")
	require.NoError(t, os.WriteFile(path, img, 0o600))

	data, err := pe.ReadSection(path, ".osrel")
	require.NoError(t, err)
	assert.Equal(t, "NAME=NixOS\n", string(data))

	// A hash-bearing section's raw bytes must round-trip exactly, including
	// a leading zero byte that a NUL-terminated string read would truncate.
	data, err = pe.ReadSection(path, ".linuxh")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, data)

	_, err = pe.ReadSection(path, ".dtb")
	assert.ErrorIs(t, err, pe.ErrSectionMissing)
}
