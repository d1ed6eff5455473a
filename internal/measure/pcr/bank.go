// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pcr

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/go-tpm/tpm2"

	"github.com/nix-community/lanzaboote-go/internal/secureboot"
)

// BankData is one signed PCR 11 prediction for one TPM hash bank, the
// payload carried by a UKI's .pcrsig section.
type BankData struct {
	PCRs []int  `json:"pcrs"`
	PKFP string `json:"pkfp"`
	Pol  []byte `json:"pol"`
	Sig  string `json:"sig"`
}

// Predictor accumulates the extend sequence a real TPM performs against one
// hash bank as a UKI's sections and phase transitions are measured, and
// seals the running digest into a signed BankData on demand. Unlike a
// one-shot function, a Predictor can be fed sections incrementally by a
// caller that interleaves its own bookkeeping (tracking which sections were
// observed, emitting a bank per phase) without re-deriving the PCR
// selection or key fingerprint on every call.
type Predictor struct {
	digest       *Digest
	hashAlg      crypto.Hash
	pcrNumber    int
	pcrSelection tpm2.TPMLPCRSelection
}

// NewPredictor starts a fresh prediction for pcrNumber under the given TPM
// hash algorithm, seeded at the all-zero digest a real PCR holds after
// reset.
func NewPredictor(pcrNumber int, alg tpm2.TPMAlgID) (*Predictor, error) {
	hashAlg, err := alg.Hash()
	if err != nil {
		return nil, fmt.Errorf("unsupported TPM hash algorithm: %w", err)
	}

	pcrSelector, err := CreateSelector([]int{pcrNumber})
	if err != nil {
		return nil, fmt.Errorf("creating PCR selection: %w", err)
	}

	return &Predictor{
		digest:    NewDigest(hashAlg),
		hashAlg:   hashAlg,
		pcrNumber: pcrNumber,
		pcrSelection: tpm2.TPMLPCRSelection{
			PCRSelections: []tpm2.TPMSPCRSelection{
				{Hash: alg, PCRSelect: pcrSelector},
			},
		},
	}, nil
}

// Observe folds a named section's bytes into the running digest: first the
// section's name (the label a UKI's measuring agent extends before the
// data it names), then the data itself.
func (p *Predictor) Observe(label, data []byte) {
	p.digest.Extend(label)
	p.digest.Extend(data)
}

// ObservePhase folds a systemd boot-phase name into the running digest. A
// phase never contributes a second extend the way a section does; callers
// call Seal immediately after for phases that carry a signature.
func (p *Predictor) ObservePhase(phase string) {
	p.digest.Extend([]byte(phase))
}

// Seal computes the TPM2_PolicyPCR digest for the predictor's current
// state and signs it with rsaKey, producing the BankData a UKI's .pcrsig
// section embeds for this phase.
func (p *Predictor) Seal(rsaKey *rsa.PrivateKey) (*BankData, error) {
	policy := CalculatePolicy(p.digest.Hash(), p.pcrSelection)

	sig, err := Sign(policy, p.hashAlg, rsaKey)
	if err != nil {
		return nil, err
	}

	fingerprint := sha256.Sum256(x509.MarshalPKCS1PublicKey(&rsaKey.PublicKey))

	return &BankData{
		PCRs: []int{p.pcrNumber},
		PKFP: hex.EncodeToString(fingerprint[:]),
		Pol:  policy,
		Sig:  sig.SignatureBase64,
	}, nil
}

// CalculateBankData computes the PCR 11 bank data for a given set of UKI
// sections, emulating the extend sequence a real TPM performs when the UKI
// is loaded, then signing the resulting policy for every phase transition
// that carries a signature.
func CalculateBankData(pcrNumber int, alg tpm2.TPMAlgID, sectionData map[secureboot.Section]string, rsaKey *rsa.PrivateKey) ([]BankData, error) {
	predictor, err := NewPredictor(pcrNumber, alg)
	if err != nil {
		return nil, err
	}

	for _, section := range secureboot.OrderedSections() {
		path := sectionData[section]
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading section %s: %w", section, err)
		}

		predictor.Observe(append([]byte(section), 0), data)
	}

	var banks []BankData

	for _, phaseInfo := range secureboot.OrderedPhases() {
		predictor.ObservePhase(string(phaseInfo.Phase))

		if !phaseInfo.CalculateSignature {
			continue
		}

		bank, err := predictor.Seal(rsaKey)
		if err != nil {
			return nil, err
		}

		banks = append(banks, *bank)
	}

	return banks, nil
}
