// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pcr

import (
	"crypto"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Signature is the hex-encoded policy digest together with its base64
// signature, as embedded in a .pcrsig section.
type Signature struct {
	Digest          string
	SignatureBase64 string
}

// Sign hashes digest under hash and signs the result with key.
func Sign(digest []byte, hash crypto.Hash, key crypto.Signer) (*Signature, error) {
	hasher := hash.New()
	hasher.Write(digest)
	hashed := hasher.Sum(nil)

	signed, err := key.Sign(nil, hashed, hash)
	if err != nil {
		return nil, fmt.Errorf("signing policy digest: %w", err)
	}

	return &Signature{
		Digest:          hex.EncodeToString(digest),
		SignatureBase64: base64.StdEncoding.EncodeToString(signed),
	}, nil
}
