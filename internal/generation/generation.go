// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package generation

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Generation is a system configuration that can be built from a
// GenerationLink.
//
// NixOS represents a generation as a symlink to a toplevel derivation; that
// derivation carries the boot-spec document with everything needed to
// install it onto the ESP except the version number, which is encoded in
// the generation link's own filename.
type Generation struct {
	// Version is the profile symlink index.
	Version uint64
	// BuildTime is the generation link's modification time, best-effort.
	BuildTime *time.Time
	// SpecialisationName is set for a Generation derived from a nested
	// specialisation rather than the top-level entry.
	SpecialisationName string
	// Spec is the (possibly extended) boot specification for this entry.
	Spec ExtendedBootSpec
}

// GenerationLink is a link pointing to a generation, built purely from a
// symlink under a profiles directory: the version number is encoded in the
// symlink's own name.
type GenerationLink struct {
	Version   uint64
	Path      string
	BuildTime *time.Time
}

// linkVersionRe extracts the version number from a "system-<N>-link" name.
var linkVersionRe = regexp.MustCompile(`^system-(\d+)-link$`)

// ParseLinkVersion extracts the generation version encoded in a
// "system-<N>-link" filename.
func ParseLinkVersion(name string) (uint64, error) {
	m := linkVersionRe.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("%q does not look like a generation link", name)
	}

	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version from %q: %w", name, err)
	}

	return v, nil
}

// FromLink resolves a GenerationLink into a Generation by reading the
// boot-spec document at its target.
func FromLink(link GenerationLink, toplevel string) (Generation, error) {
	spec, err := ParseBootSpec(bootSpecPath(toplevel))
	if err != nil {
		return Generation{}, err
	}

	return Generation{
		Version:   link.Version,
		BuildTime: link.BuildTime,
		Spec:      spec,
	}, nil
}

// Specialise returns a copy of g describing one of its specialisations,
// substituting its boot spec while keeping the generation's identity.
func (g Generation) Specialise(name string, spec BootSpec) Generation {
	specialised := g
	specialised.SpecialisationName = name
	specialised.Spec = ExtendedBootSpec{
		Bootspec:            spec,
		LanzabooteExtension: g.Spec.LanzabooteExtension,
	}

	return specialised
}

// describeSpecialisation renders the "-<name>" suffix used by Describe and
// VersionTag, or the empty string for the top-level generation.
func (g Generation) describeSpecialisation() string {
	if g.SpecialisationName == "" {
		return ""
	}

	return "-" + g.SpecialisationName
}

// Describe renders a single human-readable line for this generation,
// matching the convention NixOS's systemd-boot-builder uses so the
// first-stage loader's entry listing stays familiar.
func (g Generation) Describe() string {
	buildTime := "Unknown"
	if g.BuildTime != nil {
		buildTime = g.BuildTime.Format("2006-01-02")
	}

	return fmt.Sprintf("Generation %d%s, %s", g.Version, g.describeSpecialisation(), buildTime)
}

// VersionTag is a unique short identifier for this generation, used in
// filenames and listings.
func (g Generation) VersionTag() string {
	return fmt.Sprintf("%d%s", g.Version, g.describeSpecialisation())
}

// SortKey returns the key used to order Generations that would otherwise
// tie: the extension's sort key, then the version tag as a deterministic
// tie-break (no explicit tie-break is mandated upstream; this keeps
// output order stable across runs).
func (g Generation) SortKey() string {
	return g.Spec.LanzabooteExtension.SortKey + "\x00" + g.VersionTag()
}
