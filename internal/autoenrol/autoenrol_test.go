// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package autoenrol_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/autoenrol"
)

func selfSignedKeyPair(t *testing.T) (keyPath, certPath string, certDER []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "lanzaboote-go test signing key"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	dir := t.TempDir()

	keyPath = filepath.Join(dir, "key.pem")
	certPath = filepath.Join(dir, "cert.pem")

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))

	return keyPath, certPath, der
}

func TestGenerateProducesAllThreeVariables(t *testing.T) {
	t.Parallel()

	keyPath, certPath, certDER := selfSignedKeyPair(t)

	kp := &autoenrol.KeyPair{PrivateKeyPath: keyPath, CertificatePath: certPath}
	require.NoError(t, kp.Load())

	entries, err := autoenrol.Generate(certDER, kp)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
		assert.NotEmpty(t, e.Contents)
	}

	assert.True(t, names["db"])
	assert.True(t, names["KEK"])
	assert.True(t, names["PK"])
}

func TestInstallWritesAuthFiles(t *testing.T) {
	t.Parallel()

	keyPath, certPath, certDER := selfSignedKeyPair(t)

	kp := &autoenrol.KeyPair{PrivateKeyPath: keyPath, CertificatePath: certPath}
	require.NoError(t, kp.Load())

	entries, err := autoenrol.Generate(certDER, kp)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "loader", "keys", "auto")
	require.NoError(t, autoenrol.Install(dir, entries))

	for _, name := range []string{"PK", "KEK", "db"} {
		data, err := os.ReadFile(filepath.Join(dir, name+".auth"))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestLoadFailsOnMissingKeyFile(t *testing.T) {
	t.Parallel()

	kp := &autoenrol.KeyPair{PrivateKeyPath: "/nonexistent/key.pem", CertificatePath: "/nonexistent/cert.pem"}
	require.Error(t, kp.Load())
}
