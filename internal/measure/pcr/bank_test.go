// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pcr_test

import (
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-tpm/tpm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/measure/pcr"
	"github.com/nix-community/lanzaboote-go/internal/secureboot"
)

func TestPredictorSealMatchesCalculateBankData(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	osrelPath := filepath.Join(dir, "osrel")
	require.NoError(t, os.WriteFile(osrelPath, []byte("NAME=NixOS\n"), 0o600))

	sectionData := map[secureboot.Section]string{
		secureboot.OSRel: osrelPath,
	}

	banks, err := pcr.CalculateBankData(secureboot.UKIPCR, tpm2.TPMAlgSHA256, sectionData, key)
	require.NoError(t, err)
	require.NotEmpty(t, banks)

	predictor, err := pcr.NewPredictor(secureboot.UKIPCR, tpm2.TPMAlgSHA256)
	require.NoError(t, err)

	data, err := os.ReadFile(osrelPath)
	require.NoError(t, err)

	predictor.Observe(append([]byte(secureboot.OSRel), 0), data)

	var lastBank *pcr.BankData

	for _, phaseInfo := range secureboot.OrderedPhases() {
		predictor.ObservePhase(string(phaseInfo.Phase))

		if !phaseInfo.CalculateSignature {
			continue
		}

		bank, err := predictor.Seal(key)
		require.NoError(t, err)

		lastBank = bank
	}

	require.NotNil(t, lastBank)
	assert.Equal(t, banks[len(banks)-1].Pol, lastBank.Pol)
	assert.Equal(t, banks[len(banks)-1].PKFP, lastBank.PKFP)
}

func TestCalculateBankDataSkipsEmptySections(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	banks, err := pcr.CalculateBankData(secureboot.UKIPCR, tpm2.TPMAlgSHA256, map[secureboot.Section]string{}, key)
	require.NoError(t, err)
	assert.NotEmpty(t, banks)
}
