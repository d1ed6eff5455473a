// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package loaderconf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix-community/lanzaboote-go/internal/loaderconf"
)

func TestRenderOmitsUnsetKeys(t *testing.T) {
	t.Parallel()

	out := loaderconf.Render(loaderconf.Config{
		Timeout:     5,
		ConsoleMode: "keep",
		Default:     "nixos-*",
	})

	assert.Equal(t, "timeout 5\nconsole-mode keep\ndefault nixos-*\n", out)
}

func TestRenderWithAutoEnrol(t *testing.T) {
	t.Parallel()

	out := loaderconf.Render(loaderconf.Config{
		Default:          "nixos-*",
		SecureBootEnroll: loaderconf.SecureBootEnrollForce,
	})

	assert.Equal(t, "default nixos-*\nsecure-boot-enroll force\n", out)
}

func TestParseConsoleMode(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"auto", "max", "keep", "0", "1"} {
		_, err := loaderconf.ParseConsoleMode(v)
		assert.NoError(t, err)
	}

	_, err := loaderconf.ParseConsoleMode("bogus")
	assert.Error(t, err)
}

func TestWriteFromTemplateAppendsEnrollOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "loader.conf.in")
	dst := filepath.Join(dir, "loader.conf")

	require.NoError(t, os.WriteFile(src, []byte("timeout 3\nconsole-mode max"), 0o644))
	require.NoError(t, loaderconf.WriteFromTemplate(src, dst, loaderconf.SecureBootEnrollForce))

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "timeout 3\nconsole-mode max\nsecure-boot-enroll force\n", string(out))
}

func TestWriteFromTemplateWithoutEnrollCopiesVerbatim(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "loader.conf.in")
	dst := filepath.Join(dir, "loader.conf")

	require.NoError(t, os.WriteFile(src, []byte("timeout 3\n"), 0o644))
	require.NoError(t, loaderconf.WriteFromTemplate(src, dst, ""))

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "timeout 3\n", string(out))
}
