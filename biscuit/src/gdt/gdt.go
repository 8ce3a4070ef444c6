// Package gdt builds the global descriptor table, the single task state
// segment, and the selector/IST-slot bookkeeping spec.md §4.3 describes.
// The descriptor byte layout below mirrors original_source/src/gdt.rs's
// reliance on the x86_64 crate's canonical kernel/user code+data
// descriptors and its single lazily-built TaskStateSegment with an
// interrupt_stack_table — RL4 builds the same bytes by hand since there is
// no equivalent Go crate in the example corpus for x86 descriptor tables.
package gdt

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"arch"
)

// Selector indices into the GDT. User data sits directly below user code
// (slots 3 and 4, selectors 0x1B/0x23 with RPL 3), the layout sysret
// expects: it loads SS from STAR's user base + 8 and CS from base + 16.
// The TSS descriptor comes last and occupies two consecutive 8-byte slots
// (it is a 16-byte system descriptor in long mode).
const (
	selNull = iota
	selKernelCode
	selKernelData
	selUserData
	selUserCode
	selTSS // occupies two descriptor slots
	_
	numSlots
)

/// Selectors holds the four segment selectors the scheduler needs to build
/// a task's initial context frame with: kernel cs/ss for kernel tasks, user
/// cs/ss for user tasks (spec.md §4.3: "the scheduler writes them into
/// freshly prepared context frames").
type Selectors struct {
	KernelCS uint16
	KernelSS uint16
	UserCS   uint16
	UserSS   uint16
}

// IST slot purposes, per spec.md §4.3: "distinct IST slots for:
// double-fault, page-fault, GP-fault, breakpoint, timer-interrupt, and a
// syscall-temp slot".
const (
	ISTDoubleFault = iota
	ISTPageFault
	ISTGPFault
	ISTBreakpoint
	ISTTimer
	ISTSyscallTemp
	numIST
)

/// TSS is the kernel's single task state segment, carrying one interrupt
/// stack per IST purpose above. The Timer slot is rewritten on every
/// context switch by the scheduler (spec.md §4.2 step "Reprogram the TSS
/// interrupt-stack slot"). The SyscallTemp slot is only reserved here:
/// syscall entry spills the caller's user rsp into sysc's own per-CPU
/// scratch array, not into this TSS.
type TSS struct {
	mu  sync.Mutex
	ist [numIST]uintptr
}

/// SetIST installs stackTop (one-past-top of the stack buffer) as the
/// interrupt stack for the given purpose.
func (t *TSS) SetIST(which int, stackTop uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ist[which] = stackTop
}

/// IST returns the interrupt stack top currently installed for the given
/// purpose.
func (t *TSS) IST(which int) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ist[which]
}

/// Table owns the GDT descriptor bytes, the TSS, and the derived
/// selectors. It is a process-wide singleton, installed exactly once
/// during boot (spec.md §9 "Process-wide state").
type Table struct {
	raw  [numSlots * 8]byte
	tss  TSS
	sels Selectors
}

const (
	accPresent  = 1 << 7
	accUser     = 1 << 4 // "not system": code/data segments set this
	accExec     = 1 << 3
	accRW       = 1 << 1
	accDPL3     = 3 << 5
	flagLong    = 1 << 5 // L bit, long-mode code segment
	flagGranu4K = 1 << 7
	sysTSSAvail = 0x9 // available 64-bit TSS system-segment type
)

func (t *Table) putDescriptor(slot int, access, flags byte) {
	off := slot * 8
	// A plain code/data descriptor in long mode ignores base/limit (the
	// CPU uses flat addressing); only the access and flags bytes matter.
	t.raw[off+5] = access
	t.raw[off+6] = flags
}

func (t *Table) putTSSDescriptor(slot int, base uintptr, limit uint32) {
	off := slot * 8
	binary.LittleEndian.PutUint16(t.raw[off:], uint16(limit))
	t.raw[off+2] = byte(base)
	t.raw[off+3] = byte(base >> 8)
	t.raw[off+4] = byte(base >> 16)
	t.raw[off+5] = accPresent | sysTSSAvail
	t.raw[off+6] = byte(limit>>16) & 0xf
	t.raw[off+7] = byte(base >> 24)
	// upper 32 bits of a 64-bit system descriptor's base live in the next
	// 8-byte slot, with the remaining 4 bytes reserved (zero).
	binary.LittleEndian.PutUint32(t.raw[(slot+1)*8:], uint32(base>>32))
}

/// New builds the five-selector GDT described in spec.md §4.3 and returns
/// the Table, not yet loaded. The TSS descriptor is left empty here:
/// InstallTSS fills it in once the TSS base is known, and Load makes the
/// table active.
func New() *Table {
	t := &Table{}
	t.putDescriptor(selKernelCode, accPresent|accUser|accExec|accRW, flagLong)
	t.putDescriptor(selKernelData, accPresent|accUser|accRW, 0)
	t.putDescriptor(selUserCode, accPresent|accUser|accExec|accRW|accDPL3, flagLong)
	t.putDescriptor(selUserData, accPresent|accUser|accRW|accDPL3, 0)
	t.sels = Selectors{
		KernelCS: selKernelCode * 8,
		KernelSS: selKernelData * 8,
		// RPL=3 for user selectors, per the standard long-mode
		// convention spec.md §4.4 names: user CS/SS = 0x23/0x1B.
		UserCS: selUserCode*8 | 3,
		UserSS: selUserData*8 | 3,
	}
	return t
}

/// TSSBase returns the address of this Table's own TSS region. For the
/// purpose of this core, the TSS structure is represented purely in Go
/// (IST array only -- the other fields are zero/unused, matching spec.md's
/// scope of "IST per-purpose interrupt stacks" only), so its base is
/// simply the address of the embedded TSS field.
func (t *Table) TSSBase() uintptr {
	return uintptr(unsafe.Pointer(&t.tss))
}

/// InstallTSS finalizes the TSS system descriptor now that its base address
/// is known, and must be called before Load.
func (t *Table) InstallTSS(base uintptr) {
	t.putTSSDescriptor(selTSS, base, 0x67) // 0x67 = sizeof(x86 TSS)-1
}

// pseudoDescriptor is the packed 10-byte limit:base operand LGDT/LIDT
// read (2-byte limit immediately followed by an 8-byte base, with no
// padding); a Go struct of {uint16; uint64} would insert 6 bytes of
// alignment padding between those fields, so the bytes are packed by
// hand the same way intr's loadIDT builds the identical shape on its own
// stack frame from assembly. This one is heap-allocated instead, since
// it must outlive the single LoadGDT call that consumes it.
type pseudoDescriptor [10]byte

func newPseudoDescriptor(base uintptr, limit uint16) *pseudoDescriptor {
	d := &pseudoDescriptor{}
	binary.LittleEndian.PutUint16(d[0:], limit)
	binary.LittleEndian.PutUint64(d[2:], uint64(base))
	return d
}

/// Load installs this GDT and TSS as the active tables on the current CPU:
/// LGDT, segment-register reload, then LTR. Mirrors
/// original_source/src/gdt.rs's init(): "GDT.0.load(); CS::set_reg(...);
/// load_tss(...)".
func (t *Table) Load() {
	desc := newPseudoDescriptor(uintptr(unsafe.Pointer(&t.raw)), uint16(len(t.raw)-1))
	arch.LoadGDT(uintptr(unsafe.Pointer(desc)))
	arch.ReloadSegments(t.sels.KernelCS, t.sels.KernelSS)
	arch.LoadTR(selTSS * 8)
}

/// Selectors returns the kernel/user code+data selectors for building task
/// context frames, per spec.md §4.3.
func (t *Table) Selectors() Selectors {
	return t.sels
}

/// IST exposes the TSS's per-purpose interrupt stack slots so intr and sysc
/// can read/write them.
func (t *Table) IST() *TSS {
	return &t.tss
}

/// Kernel/user segment getters named after spec.md §4.3's
/// get_kernel_segments()/get_user_segments().
func (t *Table) KernelSegments() (cs, ss uint16) {
	return t.sels.KernelCS, t.sels.KernelSS
}

func (t *Table) UserSegments() (cs, ss uint16) {
	return t.sels.UserCS, t.sels.UserSS
}
