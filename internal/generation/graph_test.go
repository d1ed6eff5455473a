// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package generation_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/generation"
)

func writeBootSpec(t *testing.T, toplevel, sortKey string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(toplevel, 0o755))

	doc := map[string]any{
		"org.nixos.bootspec.v1": map[string]any{
			"kernel":   "kernel",
			"initrd":   "initrd",
			"toplevel": toplevel,
		},
	}

	if sortKey != "" {
		doc["org.nixos.bootspec.v1/extensions"] = map[string]any{
			"org.nix-community.lanzaboote": map[string]any{"sort_key": sortKey},
		}
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(toplevel, "boot.json"), raw, 0o644))
}

// Specialisation directory names are chosen so os.ReadDir's natural
// (alphabetical) order disagrees with sort-key order, proving the result
// comes from SortKey and not directory enumeration order.
func TestExpandSpecialisationsOrdersBySortKey(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeBootSpec(t, root, "b-parent")

	specDir := filepath.Join(root, "specialisation")
	writeBootSpec(t, filepath.Join(specDir, "z-last-alphabetically"), "a-first")
	writeBootSpec(t, filepath.Join(specDir, "a-first-alphabetically"), "c-last")

	g := generation.Generation{Version: 1, Spec: generation.ExtendedBootSpec{
		LanzabooteExtension: generation.LanzabooteExtension{SortKey: "b-parent"},
	}}

	expanded, err := generation.ExpandSpecialisations(g, root)
	require.NoError(t, err)
	require.Len(t, expanded, 3)

	var sortKeys []string
	for _, gen := range expanded {
		sortKeys = append(sortKeys, gen.Spec.LanzabooteExtension.SortKey)
	}

	assert.Equal(t, []string{"a-first", "b-parent", "c-last"}, sortKeys)
}

func TestExpandSpecialisationsWithNoneReturnsParentOnly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeBootSpec(t, root, "")

	g := generation.Generation{Version: 1}

	expanded, err := generation.ExpandSpecialisations(g, root)
	require.NoError(t, err)
	assert.Equal(t, []generation.Generation{g}, expanded)
}
