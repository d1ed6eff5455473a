// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pcr

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/go-tpm/tpm2"
)

// CalculatePolicy computes the TPM2_PolicyPCR command digest for a given
// predicted PCR value and PCR selection, mirroring what a TPM computes
// internally when the corresponding policy session is evaluated at boot.
func CalculatePolicy(pcrValue []byte, pcrSelection tpm2.TPMLPCRSelection) []byte {
	initial := make([]byte, sha256.Size)
	pcrHash := sha256.Sum256(pcrValue)

	commandCode := make([]byte, 4)
	binary.BigEndian.PutUint32(commandCode, uint32(tpm2.TPMCCPolicyPCR))

	selection := tpm2.Marshal(pcrSelection)

	hasher := sha256.New()
	hasher.Write(initial)
	hasher.Write(commandCode)
	hasher.Write(selection)
	hasher.Write(pcrHash[:])

	return hasher.Sum(nil)
}
