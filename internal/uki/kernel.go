// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package uki

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

var kernelVersionMarker = []byte("Linux version ")

// DiscoverKernelVersion recovers the kernel's own version string for the
// .uname section by scanning the bzImage for its embedded "Linux version"
// banner, the same string `uname -r`/`file` report. It is best-effort: a
// kernel built without this banner, or one the stub cannot introspect,
// yields an empty string rather than an error.
func DiscoverKernelVersion(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening kernel image: %w", err)
	}
	defer f.Close() //nolint:errcheck

	r := bufio.NewReaderSize(f, 1<<20)

	window, err := r.Peek(r.Size())
	if err != nil && len(window) == 0 {
		return "", fmt.Errorf("reading kernel image: %w", err)
	}

	idx := bytes.Index(window, kernelVersionMarker)
	if idx < 0 {
		return "", nil
	}

	rest := window[idx+len(kernelVersionMarker):]

	end := bytes.IndexByte(rest, ' ')
	if end < 0 {
		end = bytes.IndexByte(rest, 0)
	}

	if end < 0 || end > 256 {
		return "", nil
	}

	return string(rest[:end]), nil
}
