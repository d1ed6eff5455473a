// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pesign

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/foxboron/go-uefi/authenticode"
)

// LocalSigner signs by shelling out to an external sbsign-compatible tool
// that takes {private key, public key, input PE} and returns a signed PE —
// this system never implements PE signing itself.
type LocalSigner struct {
	PrivateKeyPath  string
	CertificatePath string

	// Binary defaults to "sbsign" when empty.
	Binary string
}

var _ Signer = (*LocalSigner)(nil)

// Sign shells to sbsign.
func (s *LocalSigner) Sign(ctx context.Context, input []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "lanzaboote-sign-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	inPath := filepath.Join(dir, "unsigned.efi")
	outPath := filepath.Join(dir, "signed.efi")

	if err := os.WriteFile(inPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing input: %v", ErrSignFailed, err)
	}

	binary := s.Binary
	if binary == "" {
		binary = "sbsign"
	}

	cmd := exec.CommandContext(ctx, binary,
		"--key", s.PrivateKeyPath,
		"--cert", s.CertificatePath,
		"--output", outPath,
		inPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSignFailed, stderr.String(), err)
	}

	signed, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading signed output: %v", ErrSignFailed, err)
	}

	return signed, nil
}

// SignStorePath reads the file and signs its bytes.
func (s *LocalSigner) SignStorePath(ctx context.Context, path string) ([]byte, error) {
	return SignStorePath(ctx, s, path)
}

// Verify parses the PE's Authenticode signature and checks it against the
// locally configured trusted certificate.
func (s *LocalSigner) Verify(_ context.Context, input []byte) (VerifyResult, error) {
	parsed, err := authenticode.Parse(bytes.NewReader(input))
	if err != nil {
		// No parseable signature at all.
		return VerifyResult{Signed: false, ValidUnderPolicy: false}, nil
	}

	certPEM, err := os.ReadFile(s.CertificatePath)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("reading trusted certificate: %w", err)
	}

	cert, err := parsePEMCertificate(certPEM)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("parsing trusted certificate: %w", err)
	}

	if _, err := parsed.Verify(cert); err != nil {
		return VerifyResult{Signed: true, ValidUnderPolicy: false}, nil
	}

	return VerifyResult{Signed: true, ValidUnderPolicy: true}, nil
}

// PublicKeyBytes reads the configured certificate's raw bytes.
func (s *LocalSigner) PublicKeyBytes(_ context.Context) ([]byte, error) {
	return os.ReadFile(s.CertificatePath)
}

func parsePEMCertificate(pemBytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}
