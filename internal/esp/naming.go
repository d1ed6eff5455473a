// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package esp

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// hashEncoding is RFC 4648's base32 alphabet, lower-cased and unpadded, as
// used by every content-addressed filename this system writes.
var hashEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// HashBytes returns the content-address encoding of data's sha256 digest.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)

	return EncodeHash(sum[:])
}

// HashReader streams r through sha256 and returns its content-address
// encoding, without requiring the full content in memory.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}

	return EncodeHash(h.Sum(nil)), nil
}

// EncodeHash renders a raw sha256 digest (as embedded verbatim in a UKI's
// .linuxh/.initrdh sections by internal/uki.Builder) in the same
// content-address text form HashBytes/HashReader produce, so a digest read
// back from a PE section and one computed fresh from a file are directly
// comparable.
func EncodeHash(digest []byte) string {
	return lowercase(hashEncoding.EncodeToString(digest))
}

func lowercase(s string) string {
	out := make([]byte, len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}

		out[i] = c
	}

	return string(out)
}

// ukiFilenameRe matches the filename grammar from the naming convention:
// nixos-generation-<N>(-specialisation-<name>)?-<base32>(+<tries>(-<done>)?)?.efi
var ukiFilenameRe = regexp.MustCompile(
	`^nixos-generation-(\d+)(?:-specialisation-([a-zA-Z0-9_-]+))?-([a-z2-7]+)(?:\+(\d+)(?:-(\d+))?)?\.efi$`,
)

// UKIFilename holds the decoded fields of a UKI filename.
type UKIFilename struct {
	Generation     uint64
	Specialisation string
	Hash           string
	HasTries       bool
	TriesLeft      int
	TriesDone      int
}

// Filename renders the canonical filename for a UKI, optionally with a
// boot-counting suffix when triesLeft >= 0.
func Filename(generation uint64, specialisation, hash string, triesLeft, triesDone int) string {
	name := fmt.Sprintf("nixos-generation-%d", generation)

	if specialisation != "" {
		name += "-specialisation-" + specialisation
	}

	name += "-" + hash

	if triesLeft >= 0 {
		name += "+" + strconv.Itoa(triesLeft)

		if triesDone > 0 {
			name += "-" + strconv.Itoa(triesDone)
		}
	}

	return name + ".efi"
}

// ParseUKIFilename decodes a filename produced by Filename, returning false
// if it does not match the grammar.
func ParseUKIFilename(filename string) (UKIFilename, bool) {
	m := ukiFilenameRe.FindStringSubmatch(filename)
	if m == nil {
		return UKIFilename{}, false
	}

	gen, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return UKIFilename{}, false
	}

	out := UKIFilename{
		Generation:     gen,
		Specialisation: m[2],
		Hash:           m[3],
	}

	if m[4] != "" {
		out.HasTries = true
		out.TriesLeft, _ = strconv.Atoi(m[4]) //nolint:errcheck

		if m[5] != "" {
			out.TriesDone, _ = strconv.Atoi(m[5]) //nolint:errcheck
		}
	}

	return out, true
}
