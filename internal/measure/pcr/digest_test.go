// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pcr_test

import (
	"crypto"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nix-community/lanzaboote-go/internal/measure/pcr"
)

func TestExtendMatchesManualComputation(t *testing.T) {
	t.Parallel()

	d := pcr.NewDigest(crypto.SHA256)
	assert.Equal(t, make([]byte, sha256.Size), d.Hash())

	d.Extend([]byte("hello"))

	innerHash := sha256.Sum256([]byte("hello"))
	expected := sha256.Sum256(append(make([]byte, sha256.Size), innerHash[:]...))

	assert.Equal(t, expected[:], d.Hash())
}

func TestCreateSelectorSetsCorrectBit(t *testing.T) {
	t.Parallel()

	mask, err := pcr.CreateSelector([]int{11})
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 0x08, 0}, mask)

	_, err = pcr.CreateSelector([]int{99})
	assert.Error(t, err)
}
