// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ErrSecretsHookFailed wraps any failure encountered while running a
// generation's initrd-secrets append hook.
var ErrSecretsHookFailed = errors.New("initrd secrets hook failed")

// appendInitrdSecrets copies the initrd at srcPath into scratchPath and, if
// hookPath is non-empty, runs hookPath against the copy with the copy's
// filesystem path as its sole argument. The hook is expected to mutate the
// file in place; a non-zero exit is a hard failure, since an install must
// never boot a generation whose declared secrets failed to apply.
//
// scratchPath's resulting content, not srcPath's, is what every downstream
// step hashes and installs: this is what makes the effective content hash
// change whenever secrets change, even though the base initrd store path
// does not.
func appendInitrdSecrets(ctx context.Context, hookPath, srcPath, scratchPath string) error {
	if err := copyFile(srcPath, scratchPath); err != nil {
		return fmt.Errorf("%w: staging initrd: %v", ErrSecretsHookFailed, err)
	}

	if hookPath == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, hookPath, scratchPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %s: %v", ErrSecretsHookFailed, hookPath, stderr.String(), err)
	}

	return nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	return dst.Close()
}
