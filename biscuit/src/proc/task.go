// Package proc is the scheduler and task table, spec.md's C6: "Task
// record, ready queue, current slot, next-id counter, new_kernel_task,
// new_user_task, schedule_next, take_current, set_current, schedule."
// The teacher's own process table (biscuit/src/proc, not copied into
// this tree -- see DESIGN.md) manages full Unix processes with
// thread groups, file descriptors, and address-space regions; this
// package keeps its locking and singleton-state idioms (see gdt.Table,
// vm.Manager) but the Task record itself is rebuilt to exactly the
// fields spec.md §3 names.
package proc

import (
	"unsafe"

	"accnt"
	"ctxframe"
	"defs"
	"ipc"
	"mem"
)

// KernelStackBytes is the fixed size of every task's kernel stack,
// spec.md §3: "kernel_stack: an owned byte buffer of fixed size (8 KiB)."
const KernelStackBytes = 8 * 1024

// UserStackBytes (spec.md's name for the field, confusingly also used by
// kernel tasks as their sole stack) is 20 KiB: "user_stack: owned buffer
// (20 KiB) used only for kernel tasks (user tasks get a stack mapped
// into their user space; see below)."
const UserStackBytes = 20 * 1024

/// Task is the schedulable unit spec.md §3 describes. Exactly one of the
/// ready queue, the current slot, or a channel's parked field owns a
/// given *Task at any time (spec.md §8 property 2).
type Task struct {
	/// ID is the task's monotonically increasing, non-zero identifier.
	ID defs.Tid_t

	/// KernelStack backs interrupt/syscall entry; ContextOffset locates
	/// the active context frame within it.
	KernelStack []byte
	/// UserStack is populated only for kernel tasks; user tasks instead
	/// get a stack mapped into their own address space (UserStackStart).
	UserStack []byte

	/// ContextOffset is the byte offset into KernelStack of the task's
	/// current context frame -- the Go analog of spec.md's "context:
	/// virtual address of the task's current context frame."
	ContextOffset int

	/// AddressSpace is the physical address of the task's root page
	/// table, or 0 for a kernel-only task (meaning "keep whatever cr3
	/// is currently loaded").
	AddressSpace mem.Pa_t

	/// Handles is the task's ordered, index-addressable table of
	/// channel references (spec.md §3).
	Handles []*ipc.Channel

	/// Acct is the task's accounting record, a supplemented feature
	/// (see SPEC_FULL.md) threaded through every task the way the
	/// teacher threads Accnt_t through every process. ScheduleNext
	/// accumulates into it directly (see runStart below); nothing else
	/// in this core writes to it.
	Acct accnt.Accnt_t

	/// runStart is the nanosecond timestamp (accnt.Accnt_t.Now's clock)
	/// at which this task last became current. ScheduleNext sets it when
	/// installing a task and reads it back when parking one, to credit
	/// the elapsed time to Acct.
	runStart int
}

/// TaskID satisfies ipc.Task.
func (t *Task) TaskID() uint64 {
	return uint64(t.ID)
}

/// Frame satisfies ipc.Task, returning the task's live context frame.
func (t *Task) Frame() *ctxframe.Frame {
	return ctxframe.At(t.KernelStack, t.ContextOffset)
}

/// ContextAddr returns the absolute virtual address of the task's
/// current context frame, the value schedule_next hands to the
/// interrupt trampoline for its rsp restore.
func (t *Task) ContextAddr() ctxframe.Addr {
	return ctxframe.Addr(uintptr(unsafe.Pointer(&t.KernelStack[t.ContextOffset])))
}

/// SetContextAddr relocates ContextOffset to match an absolute address
/// the trampoline reported (the argument schedule_next(context_addr)
/// receives), by finding addr's offset within this task's own kernel
/// stack buffer. Panics if addr does not lie within the buffer, which
/// would mean the trampoline and the task table have desynchronized --
/// an invariant violation spec.md §3 calls out explicitly: "context
/// always points inside [kernel_stack, kernel_stack_end)."
func (t *Task) SetContextAddr(addr ctxframe.Addr) {
	base := uintptr(unsafe.Pointer(&t.KernelStack[0]))
	off := int(uintptr(addr) - base)
	if off < 0 || off+ctxframe.Bytes > len(t.KernelStack) {
		panic("proc: context address outside task's kernel stack")
	}
	t.ContextOffset = off
}

/// KernelStackEnd returns the one-past-top virtual address of the task's
/// kernel stack, installed into the TSS's timer IST slot on every switch
/// into this task (spec.md §4.2).
func (t *Task) KernelStackEnd() uintptr {
	return uintptr(unsafe.Pointer(&t.KernelStack[0])) + uintptr(len(t.KernelStack))
}

// funcEntry recovers the code address of a Go function value with no
// captured variables. A func value is itself a pointer to a small
// structure whose first word is the code pointer; for a bare top-level
// function (no closure) that first word is stable for the process
// lifetime, which is all new_kernel_task needs it for: a virtual address
// to store as the task's initial rip.
func funcEntry(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}
