// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pefixture builds minimal, syntactically valid PE32+ images for
// tests that need internal/pe.ReadSection to succeed without invoking
// objcopy or a real EFI toolchain.
package pefixture

import "encoding/binary"

// Section is one named section to embed, in file order.
type Section struct {
	Name string
	Data []byte
}

const (
	dosHeaderSize      = 128
	fileHeaderSize     = 20
	optionalHeaderSize = 240
	sectionHeaderSize  = 40
	imageBase          = 0x140000000
	sectionAlignment   = 0x1000
	fileAlignment      = 0x200
)

// Build renders a minimal PE32+ image (IMAGE_FILE_MACHINE_AMD64) carrying
// exactly the given sections, each written with no padding so its raw data
// is exactly the bytes given. This matches how internal/uki.Builder sizes
// the sections it appends: VirtualSize equals the underlying file's length.
func Build(sections []Section) []byte {
	peOffset := dosHeaderSize
	base := peOffset + 4
	sectionTableOffset := base + fileHeaderSize + optionalHeaderSize
	rawDataStart := sectionTableOffset + len(sections)*sectionHeaderSize

	buf := make([]byte, rawDataStart)

	buf[0] = 'M'
	buf[1] = 'Z'
	binary.LittleEndian.PutUint32(buf[0x3c:], uint32(peOffset))

	copy(buf[peOffset:], []byte("PE\x00\x00"))

	fh := buf[base:]
	binary.LittleEndian.PutUint16(fh[0:], 0x8664) // IMAGE_FILE_MACHINE_AMD64
	binary.LittleEndian.PutUint16(fh[2:], uint16(len(sections)))
	binary.LittleEndian.PutUint16(fh[16:], uint16(optionalHeaderSize))
	binary.LittleEndian.PutUint16(fh[18:], 0x0002) // IMAGE_FILE_EXECUTABLE_IMAGE

	oh := buf[base+fileHeaderSize:]
	binary.LittleEndian.PutUint16(oh[0:], 0x20b) // PE32+ magic
	binary.LittleEndian.PutUint32(oh[16:], 0x1000)
	binary.LittleEndian.PutUint32(oh[20:], 0x1000)
	binary.LittleEndian.PutUint64(oh[24:], imageBase)
	binary.LittleEndian.PutUint32(oh[32:], sectionAlignment)
	binary.LittleEndian.PutUint32(oh[36:], fileAlignment)
	binary.LittleEndian.PutUint16(oh[68:], 10) // IMAGE_SUBSYSTEM_EFI_APPLICATION
	binary.LittleEndian.PutUint32(oh[108:], 16)

	virtualAddress := uint32(sectionAlignment)
	rawOffset := rawDataStart

	for i, s := range sections {
		sh := buf[sectionTableOffset+i*sectionHeaderSize:]
		copy(sh[0:8], s.Name)
		binary.LittleEndian.PutUint32(sh[8:], uint32(len(s.Data)))
		binary.LittleEndian.PutUint32(sh[12:], virtualAddress)
		binary.LittleEndian.PutUint32(sh[16:], uint32(len(s.Data)))
		binary.LittleEndian.PutUint32(sh[20:], uint32(rawOffset))

		buf = append(buf, s.Data...)

		virtualAddress += sectionAlignment
		rawOffset += len(s.Data)
	}

	return buf
}
