// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stub_test

import (
	"context"
	"errors"

	"github.com/nix-community/lanzaboote-go/internal/stub"
)

type loadedImage struct{ bytes []byte }

type fakeFirmware struct {
	sections map[string][]byte
	files    map[string][]byte

	hasTPM         bool
	extended       []string
	variables      map[string][]byte
	renamedTo      string
	started        bool
	startErr       error
	loadErr        error
	devicePartUUID string
	firmwareInfo   string
}

func newFakeFirmware() *fakeFirmware {
	return &fakeFirmware{
		sections:       map[string][]byte{},
		files:          map[string][]byte{},
		variables:      map[string][]byte{},
		hasTPM:         true,
		devicePartUUID: "9f7f8a1c-5e3a-4b1e-8f3a-1234567890ab",
		firmwareInfo:   "EDK II",
	}
}

func (f *fakeFirmware) OwnSections(context.Context) (map[string][]byte, error) {
	return f.sections, nil
}

func (f *fakeFirmware) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("file not found: " + path)
	}

	return data, nil
}

func (f *fakeFirmware) LoadImage(_ context.Context, image []byte) (stub.ImageHandle, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	return &loadedImage{bytes: image}, nil
}

func (f *fakeFirmware) RegisterInitrd(context.Context, []byte) error { return nil }

func (f *fakeFirmware) SetVariable(_ context.Context, name string, value []byte) error {
	f.variables[name] = value

	return nil
}

func (f *fakeFirmware) ExtendPCR(_ context.Context, _ int, data []byte) error {
	if !f.hasTPM {
		return stub.ErrTPMAbsent
	}

	f.extended = append(f.extended, string(data))

	return nil
}

func (f *fakeFirmware) StartImage(_ context.Context, _ stub.ImageHandle, _ string) error {
	if f.startErr != nil {
		return f.startErr
	}

	f.started = true

	return nil
}

func (f *fakeFirmware) RenameSelf(_ context.Context, newName string) error {
	f.renamedTo = newName

	return nil
}

func (f *fakeFirmware) DevicePartUUID(context.Context) (string, error) {
	return f.devicePartUUID, nil
}

func (f *fakeFirmware) FirmwareInfo(context.Context) (string, error) {
	return f.firmwareInfo, nil
}
