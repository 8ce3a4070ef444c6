// Package sysc is the syscall layer, spec.md's C5: syscall/sysret MSR
// setup, the assembly entry trampoline, dispatch by id, and the choice
// between sysretq and a plain rflags-restore-and-jump return. Grounded on spec.md §4.4 directly and on
// mazboot's syscall.go for the MSR-setup shape and dispatch-by-id
// convention this package follows.
package sysc

import (
	"fmt"
	"unsafe"

	"arch"
	"ctxframe"
	"vm"
)

// Model-specific registers syscall/sysret setup writes, per spec.md §4.4.
const (
	msrSTAR          = 0xC0000081
	msrLSTAR         = 0xC0000082
	msrFMASK         = 0xC0000084
	msrKernelGSBase  = 0xC0000102
)

// fmaskClear is the rflags mask applied to the user's flags on syscall
// entry: IF (bit 9) and DF (bit 10), per spec.md §4.4: "FMASK=0x300 (IF
// and direction flag)".
const fmaskClear = 0x300

// Syscall ids, per spec.md §4.4/§6.
const (
	SysHello = 0
	SysWrite = 1
	SysSend  = 2
	SysRecv  = 3
	SysYield = 4
)

// Error codes returned in rax, mirrored from ipc so callers of this
// package's dispatcher don't need to import ipc just to read a constant.
const (
	Ok             = 0
	SendWouldBlock = 1
	RecvWouldBlock = 2
	InvalidHandle  = 3
)

// Dispatcher is the subset of proc.Scheduler plus the IPC bridging logic
// the dispatch table needs. Declaring it here, rather than depending on
// proc/ipc concrete types, keeps sysc a leaf package the way ipc is for
// proc: sysc is wired to a concrete *proc.Scheduler at boot, but its own
// compiled form only needs this narrow contract.
type Dispatcher interface {
	// Write prints the UTF-8 bytes at [ptr, ptr+length) to the console, per
	// spec.md §4.4's syscall id 1.
	Write(ptr uintptr, length int) error
	// Send implements syscall id 2: ipc_send(handle, value).
	Send(handle int, value uint64) error
	// Recv implements syscall id 3: ipc_recv(handle).
	Recv(handle int) error
	// Yield implements syscall id 4 (spec.md §4.7): it runs schedule_next,
	// rotating the ready queue as a timer tick would. It does not launch
	// the chosen thread; control returns to the trampoline's own frame.
	Yield(frame ctxframe.Addr)
}

var dispatcher Dispatcher

// syscallPerCPU is the two-word scratch area the entry trampoline
// addresses via gs: (spec.md §4.4 step 1). Slot 0 holds the caller's
// spilled user rsp; slot 1 holds the kernel stack top syscall entry
// switches onto before building its context frame. KERNEL_GS_BASE points
// directly at this array rather than at the TSS, so these slots can
// never alias gdt's IST array.
var syscallPerCPU [2]uint64

// segConfig caches the four selectors Install received, so the assembly
// entry's Go-side call (goSyscallEntry) can hand them to Dispatch without
// the trampoline itself needing to know anything about the GDT layout.
var segConfig struct {
	kernelCS, kernelSS, userCS, userSS uint16
}

// resumeFlag stashes goSyscallEntry's sysret-vs-jump answer across the
// register-restore sequence in trampoline_amd64.s, since every general
// register (including the one that would otherwise hold the answer) is
// popped back to its pre-syscall value before the trampoline branches.
var resumeFlag uint64

/// Install writes the four syscall MSRs (spec.md §4.4: "STAR, LSTAR,
/// FMASK, KERNEL_GS_BASE") and records the dispatcher the entry trampoline
/// calls into. kernelCS/kernelSS and userCS/userSS must match the GDT
/// exactly: STAR packs them so the syscall instruction's implicit CS/SS
/// load is correct. kernelStackTop is the one-past-top address of the
/// stack the entry trampoline switches onto (spec.md §4.4 step 1); it is
/// stashed in syscallPerCPU's second slot, and KERNEL_GS_BASE is pointed
/// at that array so the trampoline's gs:-relative loads reach it.
func Install(d Dispatcher, kernelCS, kernelSS, userCS, userSS uint16, kernelStackTop uintptr) {
	dispatcher = d
	segConfig.kernelCS, segConfig.kernelSS = kernelCS, kernelSS
	segConfig.userCS, segConfig.userSS = userCS, userSS
	writeSTAR(kernelCS, kernelSS, userCS, userSS)
	writeMSR(msrLSTAR, uint64(entryAddr(syscallEntry)))
	writeMSR(msrFMASK, fmaskClear)
	syscallPerCPU[1] = uint64(kernelStackTop)
	writeMSR(msrKernelGSBase, uint64(uintptr(unsafe.Pointer(&syscallPerCPU[0]))))
}

// goSyscallEntry is called by the assembly trampoline with the address of
// the context frame it just assembled (spec.md §4.4 step 2's layout,
// compatible with ctxframe.Frame). It dispatches by id and reports which
// return path the trampoline should take: non-zero means sysretq, zero
// means restore rflags and jump to the saved rip without a privilege
// change.
func goSyscallEntry(frameAddr uintptr) uintptr {
	frame := ctxframe.At(frameAddrToSlice(frameAddr), 0)
	Dispatch(frame, frame.Rax, frame.Rdi, frame.Rsi, frame.Rdx,
		segConfig.kernelCS, segConfig.kernelSS, segConfig.userCS, segConfig.userSS)
	if ChooseResume(uintptr(frame.Rip)) == ResumeSysret {
		return 1
	}
	return 0
}

// frameAddrToSlice reinterprets the fixed-size context frame living at
// addr as a byte slice, the same "peek a struct onto a raw stack region"
// idiom ctxframe.At expects as input; the trampoline's stack region has no
// natural Go slice header, so one is synthesized over exactly
// ctxframe.Bytes bytes.
func frameAddrToSlice(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), ctxframe.Bytes)
}

// syscallEntry is the assembly trampoline LSTAR points at; implemented in
// trampoline_amd64.s. entryAddr recovers its code address the same way
// proc.funcEntry and intr.entryAddr do for their own trampoline entries.
func syscallEntry()

func entryAddr(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

func writeMSR(msr uint32, val uint64) {
	arch.WRMSR(msr, val)
}

func writeSTAR(kernelCS, kernelSS, userCS, userSS uint16) {
	// STAR's high 32 bits pack the two selector pairs syscall/sysret use;
	// low 32 bits are the 32-bit syscall target, unused by this core (it
	// never runs code outside long mode).
	// sysret loads SS from the user base + 8 and CS from base + 16, so the
	// base is userSS-8 (user data sits directly below user code).
	star := uint64(kernelCS)<<32 | uint64(userSS-8)<<48
	_ = kernelSS // kernel SS is KernelCS+8 by GDT convention; STAR derives it
	_ = userCS   // user CS is UserSS+8 by GDT convention; STAR derives it
	writeMSR(msrSTAR, star)
}

// ResumeKind is the dispatcher's answer to spec.md §4.4 step 5: whether the
// syscall trampoline should sysretq or fall back to a plain rflags restore
// and jump (ResumeIret names that fallback; no iretq is executed).
type ResumeKind int

const (
	ResumeSysret ResumeKind = iota
	ResumeIret
)

/// ChooseResume implements spec.md §4.4 step 5 and testable property 7:
/// "control returns via sysretq iff USER_CODE_START ≤ X < USER_CODE_END",
/// where X is the saved rip. A syscall entered from user code returns via
/// sysretq; one that ends up resuming a kernel task (because an IPC
/// syscall handed control to a different, kernel-mode task) takes the
/// fallback path instead, since sysretq always drops to ring 3.
func ChooseResume(rip uintptr) ResumeKind {
	if rip >= vm.UserCodeStart && rip < vm.UserCodeEnd {
		return ResumeSysret
	}
	return ResumeIret
}

/// Dispatch implements spec.md §4.4's dispatcher behavior: invoke the
/// syscall named by id with the given C-ABI-style arguments, writing its
/// result into frame per the syscall ABI (rax = primary return, rdi =
/// secondary). Before returning, it also stamps frame's cs/ss according to
/// ChooseResume, per spec.md §4.4: "the dispatcher writes the correct
/// CS/SS into the saved context based on whether rip is a user or kernel
/// address."
func Dispatch(frame *ctxframe.Frame, id uint64, arg1, arg2, arg3 uint64,
	kernelCS, kernelSS, userCS, userSS uint16) {
	switch id {
	case SysHello:
		fmt.Println("sysc: hello")
		frame.Rax = Ok

	case SysWrite:
		if err := dispatcher.Write(uintptr(arg1), int(arg2)); err != nil {
			frame.Rax = InvalidHandle
		} else {
			frame.Rax = Ok
		}

	case SysSend:
		if err := dispatcher.Send(int(arg1), arg2); err != nil {
			frame.Rax = InvalidHandle
		}
		// success codes are written directly into the relevant tasks'
		// frames by ipc.Channel.Send; this frame is the caller's own and
		// may already carry rax from that call.

	case SysRecv:
		if err := dispatcher.Recv(int(arg1)); err != nil {
			frame.Rax = InvalidHandle
		}

	case SysYield:
		dispatcher.Yield(ctxframe.Addr(uintptr(unsafe.Pointer(frame))))

	default:
		fmt.Printf("sysc: unknown syscall id %d\n", id)
	}

	if ChooseResume(uintptr(frame.Rip)) == ResumeSysret {
		frame.Cs, frame.Ss = uint64(userCS), uint64(userSS)
	} else {
		frame.Cs, frame.Ss = uint64(kernelCS), uint64(kernelSS)
	}
}
