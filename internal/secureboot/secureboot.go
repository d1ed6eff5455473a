// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package secureboot contains base definitions shared by the UEFI stub and
// the installer: PE section names, the boot-phase measurement sequence, and
// the PCR indices used throughout the chain of trust.
package secureboot

// Section is the name of a PE file section carried by a Unified Kernel Image.
type Section string

// Well-known section names appended to a UKI.
//
// Unlike a systemd-stub UKI, this system never embeds the kernel or initrd
// directly: .linux and .initrdp name ESP-relative paths to detached files,
// and .linuxh/.initrdh pin their sha256 content hashes.
const (
	OSRel    Section = ".osrel"
	CmdLine  Section = ".cmdline"
	Initrdp  Section = ".initrdp"
	Initrdh  Section = ".initrdh"
	Linux    Section = ".linux"
	Linuxh   Section = ".linuxh"
	Uname    Section = ".uname"
	Splash   Section = ".splash"
	DTB      Section = ".dtb"
	PCRSig   Section = ".pcrsig"
	PCRPKey  Section = ".pcrpkey"
)

// OrderedSections returns the sections measured into the UKI PCR, in the
// order the stub measures them and the installer predicts them; uki.Builder
// appends sections to the PE in a different order.
//
// .pcrsig is excluded: it is what this computation produces. .sbat is
// excluded too: unlike every other section here, it is baked into the stub
// binary at compile time rather than written per-UKI by uki.Builder, so it
// never appears in the section data this package's callers have to measure.
func OrderedSections() []Section {
	// DO NOT REARRANGE: changing this order changes every future PCR measurement.
	return []Section{OSRel, CmdLine, Initrdh, Initrdp, Linuxh, Linux, Uname, DTB, Splash, PCRPKey}
}

// Phase is the value extended into the Secure Boot state PCR across the boot
// transitions defined by the systemd Boot Loader Interface.
type Phase string

const (
	// EnterInitrd is measured when the initrd takes over from the stub.
	EnterInitrd Phase = "enter-initrd"
	// LeaveInitrd is measured just before the initrd hands off to the real root.
	LeaveInitrd Phase = "leave-initrd"
	// EnterMachined is measured before the main system takes over.
	EnterMachined Phase = "enter-machined"
)

// PhaseInfo describes whether a phase transition carries a signed PCR
// prediction.
type PhaseInfo struct {
	Phase              Phase
	CalculateSignature bool
}

// OrderedPhases returns the phase transitions that are measured, in order.
func OrderedPhases() []PhaseInfo {
	// DO NOT REARRANGE
	return []PhaseInfo{
		{Phase: EnterInitrd, CalculateSignature: false},
		{Phase: LeaveInitrd, CalculateSignature: false},
		{Phase: EnterMachined, CalculateSignature: true},
	}
}

const (
	// UKIPCR is the PCR number where UKI sections are measured.
	UKIPCR = 11
	// SecureBootStatePCR is the PCR number where the Secure Boot state is measured.
	//
	// It changes when UEFI SecureBoot mode is toggled, or firmware certificates
	// (PK, KEK, db, dbx, ...) are updated.
	SecureBootStatePCR = 7
)
