// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pesign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RemoteSigner talks to a signing server over HTTP instead of holding key
// material locally. Sharing the store with the signing server lets
// SignStorePath send a reference instead of the full byte content.
type RemoteSigner struct {
	ServerURL string
	UserAgent string

	Client *http.Client
}

var _ Signer = (*RemoteSigner)(nil)

func (s *RemoteSigner) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}

	return http.DefaultClient
}

func (s *RemoteSigner) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.ServerURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrSignFailed, err)
	}

	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSignFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server returned %s: %s", ErrSignFailed, resp.Status, respBody)
	}

	return respBody, nil
}

// Sign POSTs the raw PE bytes to /sign-stub and returns the signed PE.
func (s *RemoteSigner) Sign(ctx context.Context, input []byte) ([]byte, error) {
	return s.do(ctx, http.MethodPost, "/sign-stub", bytes.NewReader(input))
}

// signStorePathRequest is the body sent to /sign-store-path.
type signStorePathRequest struct {
	StorePath string `json:"storePath"`
}

// SignStorePath sends the store path as a reference rather than shipping
// the file's bytes, reducing wire cost when the signing server shares the
// store with the installer.
func (s *RemoteSigner) SignStorePath(ctx context.Context, path string) ([]byte, error) {
	body, err := json.Marshal(signStorePathRequest{StorePath: path})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}

	return s.do(ctx, http.MethodPost, "/sign-store-path", bytes.NewReader(body))
}

// verifyResponse mirrors the JSON body returned by GET /verify.
type verifyResponse struct {
	Signed                           bool `json:"signed"`
	ValidAccordingToSecurebootPolicy bool `json:"valid_according_to_secureboot_policy"`
}

// Verify sends the PE bytes as the body of a GET request to /verify and decodes the server's verdict.
func (s *RemoteSigner) Verify(ctx context.Context, input []byte) (VerifyResult, error) {
	respBody, err := s.do(ctx, http.MethodGet, "/verify", bytes.NewReader(input))
	if err != nil {
		return VerifyResult{}, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return VerifyResult{}, fmt.Errorf("decoding verify response: %w", err)
	}

	return VerifyResult{Signed: resp.Signed, ValidUnderPolicy: resp.ValidAccordingToSecurebootPolicy}, nil
}

// PublicKeyBytes fetches the signer's public key material.
func (s *RemoteSigner) PublicKeyBytes(ctx context.Context) ([]byte, error) {
	return s.do(ctx, http.MethodGet, "/publickey", nil)
}
