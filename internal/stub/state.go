// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package stub

// State is one point in the stub's boot sequence.
type State string

// The ordered states the runtime passes through. Terminal states are
// Started and Aborted; every other state precedes the next in this list.
const (
	StateParsingSections     State = "ParsingSections"
	StateLoadingKernel       State = "LoadingKernel"
	StateVerifyingKernelHash State = "VerifyingKernelHash"
	StateLoadingInitrd       State = "LoadingInitrd"
	StateVerifyingInitrdHash State = "VerifyingInitrdHash"
	StateMeasuring           State = "Measuring"
	StateExportingVars       State = "ExportingVars"
	StateStartingImage       State = "StartingImage"
	StateStarted             State = "Started"
	StateAborted             State = "Aborted"
)

// AbortKind classifies why the stub refused to boot.
type AbortKind string

// Stub error kinds. Each one is a hard, unrecoverable failure: Secure Boot
// semantics demand that the stub never fall through to booting an
// unverified image.
const (
	AbortSectionMissing    AbortKind = "SectionMissing"
	AbortHashMismatch      AbortKind = "HashMismatch"
	AbortNotSigned         AbortKind = "NotSigned"
	AbortSecurityViolation AbortKind = "SecurityViolation"
	AbortFilesystemError   AbortKind = "FilesystemError"
	AbortAllocationFailed  AbortKind = "AllocationFailed"
)

// Abort is the error value carried by the Aborted terminal state.
type Abort struct {
	Kind   AbortKind
	Detail string
}

func (a *Abort) Error() string {
	if a.Detail == "" {
		return string(a.Kind)
	}

	return string(a.Kind) + ": " + a.Detail
}

func abortf(kind AbortKind, detail string) *Abort {
	return &Abort{Kind: kind, Detail: detail}
}
