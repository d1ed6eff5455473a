// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pcr implements the TPM PCR extension, policy-digest, and
// signature algorithms used to predict a UKI's PCR 11 value before it ever
// boots.
package pcr

import "crypto"

// Digest implements the PCR extension algorithm: each Extend call prepends
// the current hash to the hash of the new data and hashes the two
// together. The initial hash value is all zeroes, matching a freshly
// reset TPM PCR.
type Digest struct {
	alg  crypto.Hash
	hash []byte
}

// NewDigest creates a Digest seeded at the zero value for the given hash
// algorithm.
func NewDigest(alg crypto.Hash) *Digest {
	return &Digest{
		alg:  alg,
		hash: make([]byte, alg.Size()),
	}
}

// Hash returns the current accumulated hash value.
func (d *Digest) Hash() []byte {
	return d.hash
}

// Extend folds data into the digest following the TPM2_PCR_Extend
// algorithm: new = hash(old || hash(data)).
func (d *Digest) Extend(data []byte) {
	hash := d.alg.New()
	hash.Write(data)
	hashSum := hash.Sum(nil)

	hash.Reset()
	hash.Write(d.hash)
	hash.Write(hashSum)

	d.hash = hash.Sum(nil)
}
