// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pesign implements the Signer Abstraction: a small capability set
// realised by a local (shell-out) implementation and a remote (HTTP)
// implementation, so the installer depends on neither.
package pesign

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrSignFailed wraps any failure encountered while producing a signature.
var ErrSignFailed = errors.New("signing failed")

// VerifyResult is the outcome of checking whether a PE image is signed and
// whether that signature is trusted under the active Secure Boot policy.
type VerifyResult struct {
	Signed           bool
	ValidUnderPolicy bool
}

// Signer is the capability set every installer signing path depends on.
//
// No signer implementation may mutate the bytes passed to it; each of Sign
// and SignStorePath returns a freshly allocated buffer.
type Signer interface {
	// Sign signs the given PE bytes and returns the signed PE bytes.
	Sign(ctx context.Context, input []byte) ([]byte, error)
	// SignStorePath signs the PE file located at path, by default reading
	// the file and delegating to Sign; implementations that share storage
	// with a remote signing service may override this to avoid the
	// round-trip of the full byte content.
	SignStorePath(ctx context.Context, path string) ([]byte, error)
	// Verify reports whether the given PE bytes carry a signature and
	// whether that signature validates under the active Secure Boot
	// policy.
	Verify(ctx context.Context, input []byte) (VerifyResult, error)
	// PublicKeyBytes returns the opaque bytes of the signer's public key,
	// used only for content-addressing signed outputs.
	PublicKeyBytes(ctx context.Context) ([]byte, error)
}

// SignStorePath is the default implementation shared by signer variants:
// read the file, then sign its bytes.
func SignStorePath(ctx context.Context, s Signer, path string) ([]byte, error) {
	input, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading store path %s: %w", path, err)
	}

	return s.Sign(ctx, input)
}
