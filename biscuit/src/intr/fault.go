package intr

import (
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstLen is the longest an x86-64 instruction can legally encode to;
// decodeFaultingInstruction never needs more bytes than this.
const maxInstLen = 15

/// decodeFaultingInstruction disassembles the single instruction at rip,
/// the same address a fatal fault's saved context names as the one that
/// trapped. It reads directly out of the running process's own address
/// space rather than through any kernel page table, so it works
/// identically whether rip points into real kernel code (the booted
/// kernel) or into this package's own test binary (intr_test.go points
/// it at an ordinary Go function to exercise this path without faking
/// any hardware state).
func decodeFaultingInstruction(rip uintptr) (x86asm.Inst, error) {
	raw := unsafe.Slice((*byte)(unsafe.Pointer(rip)), maxInstLen)
	return x86asm.Decode(raw, 64)
}

// describeFaultingInstruction renders the decoded instruction, or a
// placeholder if rip did not decode to anything (e.g. it trapped mid
// multi-byte encoding, or the bytes there aren't valid x86-64 at all).
func describeFaultingInstruction(rip uintptr) string {
	inst, err := decodeFaultingInstruction(rip)
	if err != nil {
		return "<undecodable>"
	}
	return inst.String()
}
