// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pcr

import "fmt"

// sizeOfPCRSelect is the TPM2 PCR select bitmask size in bytes, covering
// PCR indices 0-23.
const sizeOfPCRSelect = 3

// CreateSelector converts a list of PCR indices into the bitmask used by a
// TPMS_PCR_SELECTION.
func CreateSelector(pcrs []int) ([]byte, error) {
	mask := make([]byte, sizeOfPCRSelect)

	for _, n := range pcrs {
		if n < 0 || n >= 8*sizeOfPCRSelect {
			return nil, fmt.Errorf("PCR index %d is out of range (max %d)", n, 8*sizeOfPCRSelect-1)
		}

		mask[n>>3] |= 1 << (n & 0x7)
	}

	return mask, nil
}
