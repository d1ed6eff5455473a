// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package measure implements the TPM/Loader Interface's installer-side
// half: producing a signed PCR 11 prediction for a UKI's sections. The
// stub itself treats the resulting .pcrsig content as opaque; only this
// package interprets it.
package measure

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/google/go-tpm/tpm2"

	"github.com/nix-community/lanzaboote-go/internal/measure/pcr"
	"github.com/nix-community/lanzaboote-go/internal/secureboot"
)

// PCRData is the full signed PCR prediction embedded in a UKI's .pcrsig
// section, one bank per supported TPM hash algorithm.
type PCRData struct {
	SHA1   []pcr.BankData `json:"sha1,omitempty"`
	SHA256 []pcr.BankData `json:"sha256,omitempty"`
	SHA384 []pcr.BankData `json:"sha384,omitempty"`
	SHA512 []pcr.BankData `json:"sha512,omitempty"`
}

// SectionsData maps each measured section to the path of the file holding
// its bytes, the input to a PCR prediction.
type SectionsData map[secureboot.Section]string

// LoadRSAKey reads a PEM-encoded PKCS#1 RSA private key used to sign PCR
// predictions.
func LoadRSAKey(path string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PCR signing key: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing PCR signing key: %w", err)
	}

	return key, nil
}

// GenerateSignedPCR computes the signed PCR 11 prediction for a UKI's
// sections across every supported TPM hash bank.
func GenerateSignedPCR(sectionsData SectionsData, rsaKeyPath string) (*PCRData, error) {
	rsaKey, err := LoadRSAKey(rsaKeyPath)
	if err != nil {
		return nil, err
	}

	data := &PCRData{}

	for _, algo := range []struct {
		alg    tpm2.TPMAlgID
		target *[]pcr.BankData
	}{
		{tpm2.TPMAlgSHA1, &data.SHA1},
		{tpm2.TPMAlgSHA256, &data.SHA256},
		{tpm2.TPMAlgSHA384, &data.SHA384},
		{tpm2.TPMAlgSHA512, &data.SHA512},
	} {
		bankData, err := pcr.CalculateBankData(secureboot.UKIPCR, algo.alg, sectionsData, rsaKey)
		if err != nil {
			return nil, fmt.Errorf("calculating %v bank data: %w", algo.alg, err)
		}

		*algo.target = bankData
	}

	return data, nil
}
