// Package ctxframe defines the fixed layout of a task's saved register
// context, exactly as the interrupt and syscall trampolines lay it out on a
// kernel stack. Nothing in this file may change field order: the layout is
// consumed by the Plan 9 assembly in biscuit/src/intr and biscuit/src/sysc,
// and by the hardware itself (rip/cs/rflags/rsp/ss are pushed by the CPU,
// not by software).
package ctxframe

import "unsafe"

/// NumWords is the number of 8-byte machine words in a context frame.
const NumWords = 20

/// Bytes is the total size in bytes of a context frame. It must equal
/// unsafe.Sizeof(Frame{}); see the compile-time check below.
const Bytes = NumWords * 8

/// Frame is a context record laid out exactly as it appears on a task's
/// kernel stack after the interrupt/syscall trampoline has pushed every
/// general register. Field order, low address first, is fixed by spec.md
/// §3: r15..r8, rbp, rsi, rdi, rdx, rcx, rbx, rax, then the CPU-pushed
/// rip/cs/rflags/rsp/ss.
type Frame struct {
	R15 uint64
	R14 uint64
	R13 uint64
	R12 uint64
	R11 uint64
	R10 uint64
	R9  uint64
	R8  uint64
	Rbp uint64
	Rsi uint64
	Rdi uint64
	Rdx uint64
	Rcx uint64
	Rbx uint64
	Rax uint64

	// Pushed by the CPU itself on interrupt/exception entry, and
	// synthesized by the syscall trampoline to match this shape (spec.md
	// §4.4 step 2).
	Rip    uint64
	Cs     uint64
	Rflags uint64
	Rsp    uint64
	Ss     uint64
}

// Compile-time assertion that Frame really is 160 bytes: a silent layout
// change here would desynchronize Go and the hand-written assembly that
// pushes/pops these fields. A size mismatch fails the build with "cannot
// use [...]byte{} (value of type [N]byte) as [Bytes]byte value".
var _ [Bytes]byte = [unsafe.Sizeof(Frame{})]byte{}

/// Addr is the virtual address of a Frame living on some task's kernel
/// stack. It is always taken, never dereferenced directly by code outside
/// this package and biscuit/src/proc, since a Frame's lifetime is tied to
/// the owning task's kernel stack buffer.
type Addr uintptr

/// At reinterprets the NumWords little-endian machine words starting at
/// byte offset within buf as a *Frame. buf must be the byte slice backing
/// the kernel stack the frame lives in; this is the same "peek a struct onto
/// a raw byte buffer" idiom the teacher uses for Pg2bytes/Bytepg2pg.
func At(buf []byte, offset int) *Frame {
	if offset < 0 || offset+Bytes > len(buf) {
		panic("ctxframe: frame offset out of bounds")
	}
	return (*Frame)(unsafe.Pointer(&buf[offset]))
}

/// Words returns the frame's NumWords machine words in push order
/// (r15..rax, rip, cs, rflags, rsp, ss), matching spec.md's testable
/// property #1.
func (f *Frame) Words() [NumWords]uint64 {
	return [NumWords]uint64{
		f.R15, f.R14, f.R13, f.R12, f.R11, f.R10, f.R9, f.R8,
		f.Rbp, f.Rsi, f.Rdi, f.Rdx, f.Rcx, f.Rbx, f.Rax,
		f.Rip, f.Cs, f.Rflags, f.Rsp, f.Ss,
	}
}
