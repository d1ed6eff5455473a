// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pe implements the PE Section Model: reading and appending named
// sections of a PE/COFF image.
package pe

import (
	"debug/pe"
	"errors"
	"fmt"
)

// ErrSectionMissing is returned when a named section cannot be found in a
// PE image.
var ErrSectionMissing = errors.New("section missing")

// SectionInfo describes one section of a PE image as enumerated from its
// section table.
type SectionInfo struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	RawDataOffset  uint32
	RawDataSize    uint32
}

// EnumerateSections returns the ordered section table of the PE image at path.
func EnumerateSections(path string) ([]SectionInfo, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PE file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	out := make([]SectionInfo, 0, len(f.Sections))

	for _, s := range f.Sections {
		out = append(out, SectionInfo{
			Name:           s.Name,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			RawDataOffset:  s.Offset,
			RawDataSize:    s.Size,
		})
	}

	return out, nil
}

// ReadSection returns the raw bytes of the named section.
func ReadSection(path, name string) ([]byte, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PE file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	section := f.Section(name)
	if section == nil {
		return nil, fmt.Errorf("%w: %s", ErrSectionMissing, name)
	}

	data, err := section.Data()
	if err != nil {
		return nil, fmt.Errorf("reading section %s: %w", name, err)
	}

	if uint32(len(data)) > section.VirtualSize {
		data = data[:section.VirtualSize]
	}

	return data, nil
}
