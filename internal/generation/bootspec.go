// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package generation discovers the current and prior system generations
// (the Generation Graph) from a profiles directory of "system-<N>-link"
// symlinks, each pointing at a store path carrying a boot-spec JSON
// document.
package generation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BootSpec is the subset of the "org.nixos.bootspec.v1" namespace this
// system consumes.
type BootSpec struct {
	Kernel        string   `json:"kernel"`
	Initrd        string   `json:"initrd"`
	KernelParams  []string `json:"kernelParams"`
	Label         string   `json:"label"`
	Toplevel      string   `json:"toplevel"`
	InitrdSecrets string   `json:"initrdSecrets,omitempty"`
}

// LanzabooteExtension is the "org.nix-community.lanzaboote" extension
// namespace: a sort key used to order generations and specialisations that
// would otherwise tie.
type LanzabooteExtension struct {
	SortKey string `json:"sort_key"`
}

// defaultSortKey matches the upstream default when the extension is absent.
const defaultSortKey = "lanzaboote"

// ExtendedBootSpec is the boot-spec document plus the extensions this
// system understands. It has no extensions of its own today beyond
// LanzabooteExtension; the wrapper exists so extending it later is a
// field addition, not a signature change.
type ExtendedBootSpec struct {
	Bootspec            BootSpec
	LanzabooteExtension LanzabooteExtension
}

// bootJSON is the on-disk shape of boot.json: a generation object plus a
// namespaced extensions map.
type bootJSON struct {
	Generation BootSpec                   `json:"org.nixos.bootspec.v1"`
	Extensions map[string]json.RawMessage `json:"org.nixos.bootspec.v1/extensions,omitempty"`
}

// ParseBootSpec reads and decodes the boot.json file at path.
func ParseBootSpec(path string) (ExtendedBootSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ExtendedBootSpec{}, fmt.Errorf("reading bootspec %s: %w", path, err)
	}

	var doc bootJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ExtendedBootSpec{}, fmt.Errorf("parsing bootspec %s: %w", path, err)
	}

	ext := LanzabooteExtension{SortKey: defaultSortKey}

	if raw, ok := doc.Extensions["org.nix-community.lanzaboote"]; ok {
		var parsed LanzabooteExtension
		if err := json.Unmarshal(raw, &parsed); err == nil && parsed.SortKey != "" {
			ext = parsed
		}
	}

	return ExtendedBootSpec{Bootspec: doc.Generation, LanzabooteExtension: ext}, nil
}

// bootSpecPath is the fixed filename a toplevel store path carries its
// boot-spec document under.
func bootSpecPath(toplevel string) string {
	return filepath.Join(toplevel, "boot.json")
}
