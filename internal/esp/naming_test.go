// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package esp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/esp"
)

func TestHashBytesIsLowercaseUnpaddedBase32(t *testing.T) {
	t.Parallel()

	h := esp.HashBytes([]byte("hello world"))

	for _, c := range h {
		assert.True(t, (c >= 'a' && c <= 'z') || (c >= '2' && c <= '7'), "unexpected char %q", c)
	}

	assert.NotContains(t, h, "=")
}

func TestFilenameRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name           string
		generation     uint64
		specialisation string
		hash           string
		triesLeft      int
		triesDone      int
	}{
		{name: "plain", generation: 1, hash: "abc234", triesLeft: -1},
		{name: "specialisation", generation: 2, specialisation: "variant", hash: "def567", triesLeft: -1},
		{name: "boot-counted", generation: 3, hash: "ghi234", triesLeft: 3},
		{name: "boot-counted-with-done", generation: 4, hash: "jkl567", triesLeft: 2, triesDone: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			filename := esp.Filename(tc.generation, tc.specialisation, tc.hash, tc.triesLeft, tc.triesDone)

			decoded, ok := esp.ParseUKIFilename(filename)
			require.True(t, ok, "filename %q did not parse", filename)

			assert.Equal(t, tc.generation, decoded.Generation)
			assert.Equal(t, tc.specialisation, decoded.Specialisation)
			assert.Equal(t, tc.hash, decoded.Hash)

			if tc.triesLeft >= 0 {
				assert.True(t, decoded.HasTries)
				assert.Equal(t, tc.triesLeft, decoded.TriesLeft)
				assert.Equal(t, tc.triesDone, decoded.TriesDone)
			} else {
				assert.False(t, decoded.HasTries)
			}
		})
	}
}

func TestParseUKIFilenameRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, ok := esp.ParseUKIFilename("not-a-uki.efi")
	assert.False(t, ok)
}
