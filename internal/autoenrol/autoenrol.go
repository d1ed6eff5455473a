// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package autoenrol generates the Secure Boot auto-enrollment database:
// signed PK/KEK/db EFI Authenticated Variable blobs that, placed under
// /loader/keys/auto on the ESP, let a systemd-boot-compatible firmware
// enrol this installation's signing certificate into its own key
// database on first boot, with no operator interaction.
package autoenrol

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/foxboron/go-uefi/efi"
	"github.com/foxboron/go-uefi/efi/signature"
	"github.com/foxboron/go-uefi/efi/util"
	"github.com/google/uuid"
)

// Entry is one auto-enrollment variable blob, named by the EFI variable it
// is destined to become (PK, KEK or db) once copied to
// /loader/keys/auto/<Name>.auth.
type Entry struct {
	Name     string
	Contents []byte
}

// KeyPair loads the private key and self-signed certificate used to build
// and sign the auto-enrollment database from PEM files on disk.
//
// Auto-enrollment inherently needs the raw key material: unlike PE
// signing, which the Signer Abstraction can delegate to a remote signing
// server, the EFI Authenticated Variable format has no corresponding
// remote-signing protocol exposed by this system, so KeyPair always reads
// local files.
type KeyPair struct {
	PrivateKeyPath  string
	CertificatePath string

	signer crypto.Signer
	cert   *x509.Certificate
}

// Load reads and parses the configured key and certificate files.
func (k *KeyPair) Load() error {
	keyPEM, err := os.ReadFile(k.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("reading private key: %w", err)
	}

	signer, err := parsePEMPrivateKey(keyPEM)
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}

	certPEM, err := os.ReadFile(k.CertificatePath)
	if err != nil {
		return fmt.Errorf("reading certificate: %w", err)
	}

	cert, err := parsePEMCertificate(certPEM)
	if err != nil {
		return fmt.Errorf("parsing certificate: %w", err)
	}

	k.signer = signer
	k.cert = cert

	return nil
}

// Signer returns the loaded private key.
func (k *KeyPair) Signer() crypto.Signer { return k.signer }

// Certificate returns the loaded certificate.
func (k *KeyPair) Certificate() *x509.Certificate { return k.cert }

// Generate builds the PK, KEK and db Entry blobs enrolling
// enrolledCertificate, all self-signed by signer.
//
// ref: https://blog.hansenpartnership.com/the-meaning-of-all-the-uefi-keys/
func Generate(enrolledCertificate []byte, signer *KeyPair) ([]Entry, error) {
	// derive a stable UUID from the enrolled certificate so re-running
	// Generate against the same certificate reproduces the same owner GUID.
	owner := uuid.NewHash(sha256.New(), uuid.NameSpaceX500, enrolledCertificate, 4)

	efiGUID := util.StringToGUID(owner.String())

	db := signature.NewSignatureDatabase()
	if err := db.Append(signature.CERT_X509_GUID, *efiGUID, enrolledCertificate); err != nil {
		return nil, fmt.Errorf("building signature database: %w", err)
	}

	var entries []Entry

	for _, name := range []string{"db", "KEK", "PK"} {
		signed, err := efi.SignEFIVariable(signer.Signer(), signer.Certificate(), name, db.Bytes())
		if err != nil {
			return nil, fmt.Errorf("signing %s variable: %w", name, err)
		}

		entries = append(entries, Entry{Name: name, Contents: signed})
	}

	return entries, nil
}

// Install writes each Entry to <autoEnrollKeysDir>/<Name>.auth.
func Install(autoEnrollKeysDir string, entries []Entry) error {
	if err := os.MkdirAll(autoEnrollKeysDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", autoEnrollKeysDir, err)
	}

	for _, entry := range entries {
		dst := autoEnrollKeysDir + "/" + entry.Name + ".auth"

		if err := os.WriteFile(dst, entry.Contents, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
	}

	return nil
}

func parsePEMPrivateKey(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("private key does not implement crypto.Signer")
		}

		return signer, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func parsePEMCertificate(pemBytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}
