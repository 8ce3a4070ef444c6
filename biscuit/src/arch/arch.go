// Package arch isolates every operation that cannot be expressed in
// portable Go: reading and writing control/model-specific registers,
// masking interrupts, and port I/O. Every other kernel package reaches
// hardware only through this seam, the same way the teacher's mem/vm/stats
// packages reach into a forked Go runtime (runtime.Get_phys, runtime.Pmap,
// runtime.Rdtsc, runtime.CPUHint) for anything the language itself cannot
// express. RL4 keeps the primitives local instead of forking the runtime,
// but the shape of the seam — narrow, extern, asm-backed functions — is the
// same idiom.
//
// Every function in this file is declared without a body; its
// implementation lives in the matching .s file and is written in Plan 9
// assembly, the same toolchain the interrupt and syscall trampolines in
// biscuit/src/intr and biscuit/src/sysc use for their entry/exit paths.
package arch

/// Cli disables maskable interrupts (the x86 CLI instruction). kernelMain
/// calls it once at boot; the scheduler's queue and current slot are
/// guarded by a mutex, not by Cli/Sti.
func Cli()

/// Sti re-enables maskable interrupts (the x86 STI instruction).
func Sti()

/// IntrSave disables interrupts and returns whether they were enabled
/// beforehand, so the caller can restore the prior state with IntrRestore.
/// This is the standard "cli/save-flags" critical-section idiom.
func IntrSave() (wasEnabled bool) {
	wasEnabled = ReadFlags()&FlagIF != 0
	Cli()
	return wasEnabled
}

/// IntrRestore re-enables interrupts iff wasEnabled is true.
func IntrRestore(wasEnabled bool) {
	if wasEnabled {
		Sti()
	}
}

/// FlagIF is the interrupt-enable bit of rflags.
const FlagIF = 1 << 9

/// ReadFlags returns the current value of rflags.
func ReadFlags() uint64

/// ReadCR3 returns the physical address currently loaded into cr3 (the
/// active page-table root).
func ReadCR3() uintptr

/// WriteCR3 loads phys into cr3, switching the active address space.
/// spec.md §4.1: "switch_to writes the physical address into cr3".
func WriteCR3(phys uintptr)

/// Halt executes HLT, parking the CPU until the next interrupt. Used by the
/// idle path when the ready queue is empty.
func Halt()

/// RDMSR reads the model-specific register numbered msr.
func RDMSR(msr uint32) uint64

/// WRMSR writes val into the model-specific register numbered msr.
func WRMSR(msr uint32, val uint64)

/// Outb writes a single byte to the I/O port, used for PIC programming and
/// end-of-interrupt signaling.
func Outb(port uint16, val uint8)

/// Inb reads a single byte from the I/O port.
func Inb(port uint16) uint8

/// Rdtsc returns the CPU's timestamp counter, used only for diagnostic
/// profiling (biscuit/src/prof), never for scheduling decisions.
func Rdtsc() uint64

/// LoadIDT loads the interrupt descriptor table described by the 10-byte
/// pseudo-descriptor at descriptorAddr (limit:base, per the LIDT operand
/// format).
func LoadIDT(descriptorAddr uintptr)

/// LoadGDT loads the global descriptor table described by the 10-byte
/// pseudo-descriptor at descriptorAddr.
func LoadGDT(descriptorAddr uintptr)

/// LoadTR loads the task register with the given GDT selector, activating
/// the TSS.
func LoadTR(selector uint16)

/// ReloadSegments reloads cs/ss/ds/es with the given kernel selectors. Used
/// once at boot after LoadGDT, before the first task is ever scheduled.
func ReloadSegments(codeSel, dataSel uint16)
