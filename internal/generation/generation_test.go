// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package generation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/generation"
)

func TestParseLinkVersion(t *testing.T) {
	t.Parallel()

	v, err := generation.ParseLinkVersion("system-2-link")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	_, err = generation.ParseLinkVersion("not-a-link")
	assert.Error(t, err)
}

func TestCapNeverPrunesBootedOrDefault(t *testing.T) {
	t.Parallel()

	gens := []generation.Generation{
		{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}, {Version: 5},
	}

	kept := generation.Cap(gens, 2, 1, 2)

	versions := map[uint64]bool{}
	for _, g := range kept {
		versions[g.Version] = true
	}

	assert.True(t, versions[5], "most recent must be kept")
	assert.True(t, versions[4], "most recent-1 must be kept")
	assert.True(t, versions[1], "booted must never be pruned")
	assert.True(t, versions[2], "default must never be pruned")
}

func TestCapZeroMeansUnlimited(t *testing.T) {
	t.Parallel()

	gens := []generation.Generation{{Version: 1}, {Version: 2}, {Version: 3}}

	kept := generation.Cap(gens, 0, 1, 1)
	assert.Len(t, kept, 3)
}

func TestSortKeyTieBreaksByVersionTag(t *testing.T) {
	t.Parallel()

	a := generation.Generation{Version: 1}
	b := generation.Generation{Version: 2}

	assert.Less(t, a.SortKey(), b.SortKey())
}
