// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package efivarfs

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// EncodeString renders value as a NUL-terminated UTF-16LE byte string, the
// wire format every Loader*/Stub* string variable uses.
func EncodeString(value string) ([]byte, error) {
	out := make([]byte, (len(value)+1)*2)

	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()

	n, _, err := encoder.Transform(out, []byte(value), true)
	if err != nil {
		return nil, err
	}

	return append(out[:n], 0, 0), nil
}

// DecodeString parses a NUL-terminated UTF-16LE byte string.
func DecodeString(data []byte) (string, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	out := make([]byte, len(data))

	n, _, err := decoder.Transform(out, data, true)
	if err != nil {
		return "", err
	}

	if n > 0 && out[n-1] == 0 {
		n--
	}

	return string(out[:n]), nil
}

// EncodeUint32 renders v as little-endian bytes, the format
// StubPcrKernelImage uses.
func EncodeUint32(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)

	return out
}

// EncodeUint64 renders v as little-endian bytes, the format StubFeatures
// uses.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)

	return out
}
