package intr

import (
	"fmt"
	"unsafe"

	"caller"
	"ctxframe"
)

// PIC 8259 ports and the end-of-interrupt command, per spec.md §6: "Timer
// interrupt (in): PIC channel 0 at vector 32, default rate."
const (
	picMasterCommand = 0x20
	picEOI           = 0x20
)

// Scheduler is the subset of proc.Scheduler the timer trampoline needs.
// Declaring it here (rather than importing proc directly) would create an
// import cycle if proc ever needed intr; it does not today, but the
// leaf-interface idiom already used by ipc.Task is kept for the same
// reason -- a narrow contract is cheaper to keep acyclic than a direct
// dependency.
type Scheduler interface {
	ScheduleNext(addr ctxframe.Addr) ctxframe.Addr
}

// controller is the process-wide singleton wired by Install, per spec.md
// §9's "idt, ..., are all module-level singletons initialized exactly once
// during boot."
var controller struct {
	table     Table
	scheduler Scheduler
	codeSel   uint16
}

/// Install builds the IDT, points every handled vector at its trampoline
/// entry, and loads it via LIDT. sched is the scheduler the timer vector
/// calls into; codeSel is the kernel code selector every gate uses (ring 0
/// only -- this core never lets user code install or field interrupts
/// directly).
func Install(sched Scheduler, codeSel uint16) {
	controller.scheduler = sched
	controller.codeSel = codeSel

	t := &controller.table
	t.SetGate(VectorBreakpoint, entryAddr(breakpointEntry), codeSel, ISTBreakpointSlot)
	t.SetGate(VectorDoubleFault, entryAddr(doubleFaultEntry), codeSel, ISTDoubleFaultSlot)
	t.SetGate(VectorGPFault, entryAddr(gpFaultEntry), codeSel, ISTGPFaultSlot)
	t.SetGate(VectorPageFault, entryAddr(pageFaultEntry), codeSel, ISTPageFaultSlot)
	t.SetGate(VectorTimer, entryAddr(timerEntry), codeSel, ISTTimerSlot)

	loadIDT(t.Base(), t.Limit())
}

// IST slot numbers as loaded into the gate descriptor's IST field (1-7; 0
// means "don't switch stacks"). These correspond 1:1 to gdt.ISTDoubleFault
// etc., offset by one because the CPU's IST field is 1-indexed.
const (
	ISTDoubleFaultSlot = 1
	ISTPageFaultSlot   = 2
	ISTGPFaultSlot     = 3
	ISTBreakpointSlot  = 4
	ISTTimerSlot       = 5
)

// entryAddr recovers the code address of a niladic trampoline entry point,
// the same trick proc.funcEntry uses for a task's initial rip: a Go func
// value with no captured variables is a pointer whose first word is the
// code address.
func entryAddr(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

// Declared without bodies; implemented in trampoline_amd64.s. Each pushes a
// full context frame (spec.md §4.2 step 1), calls the matching goXxx
// dispatcher below, and either resumes (timer, breakpoint) or never
// returns (the fatal faults).
func timerEntry()
func breakpointEntry()
func doubleFaultEntry()
func gpFaultEntry()
func pageFaultEntry()

// loadIDT wraps arch.LoadIDT with a properly built 10-byte pseudo
// descriptor; declared here rather than depending on arch directly so this
// file's import list stays to what it visibly uses. Implemented in
// trampoline_amd64.s alongside the entries it is always installed with.
func loadIDT(base uintptr, limit uint16)

// sendEOI acknowledges the interrupt to the PIC so further timer ticks are
// not masked. Implemented in trampoline_amd64.s (a single OUT instruction);
// exposed here so goTimer's Go-level logic and this port constant stay
// next to each other.
func sendEOI()

/// goTimer is called by the timer trampoline with the address of the
/// context frame it just pushed. It implements spec.md §4.2's
/// schedule_next contract by delegating straight to the scheduler, and is
/// the one piece of this file exercised by intr_test.go (via a fake
/// Scheduler), since everything else here only makes sense against real
/// interrupt hardware.
func goTimer(frameAddr uintptr) uintptr {
	next := controller.scheduler.ScheduleNext(ctxframe.Addr(frameAddr))
	return uintptr(next)
}

/// goBreakpoint handles vector 3 (INT3), a non-fatal diagnostic trap in
/// this core: it logs the triggering rip and resumes the same context.
func goBreakpoint(frame *ctxframe.Frame) {
	fmt.Printf("intr: breakpoint at rip=%#x\n", frame.Rip)
}

/// goDoubleFault, goGPFault, and goPageFault implement spec.md §7's fatal
/// path: "prints fault info and spins the CPU." None of the three ever
/// returns to their trampoline; the assembly loops on HLT after the Go
/// call returns, which in practice never happens.
func goDoubleFault(frame *ctxframe.Frame) {
	fatal("double fault", frame)
}

func goGPFault(frame *ctxframe.Frame, errorCode uint64) {
	fatal(fmt.Sprintf("general protection fault (error code %#x)", errorCode), frame)
}

func goPageFault(frame *ctxframe.Frame, faultAddr uintptr, errorCode uint64) {
	fatal(fmt.Sprintf("page fault at %#x (error code %#x)", faultAddr, errorCode), frame)
}

func fatal(reason string, frame *ctxframe.Frame) {
	fmt.Printf("intr: fatal: %s\n", reason)
	fmt.Printf("intr: rip=%#x cs=%#x rflags=%#x rsp=%#x ss=%#x\n",
		frame.Rip, frame.Cs, frame.Rflags, frame.Rsp, frame.Ss)
	fmt.Printf("intr: faulting instruction: %s\n", describeFaultingInstruction(uintptr(frame.Rip)))
	caller.Callerdump(0)
}
