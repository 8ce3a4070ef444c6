// Command kernel is RL4's entry point: the orchestration spec.md §2
// describes as happening "once, at boot, in order" -- GDT/TSS, the kernel's
// own address space, the scheduler, the IDT and timer (whose handler needs
// the scheduler), syscall MSRs, then the first tasks. Modeled on
// original_source/src/main.rs's _start, which runs a similar sequence
// with the IDT before memory (gdt::init, cpu::init_idt, PIC init, enable
// interrupts, memory::init, heap init, new_kernel_thread) against the same
// external boot-info handoff.
//
// The actual multiboot/bootloader handoff -- the thing that produces a
// *boot.Info and transfers control to this package's entry function with
// paging and a stack already live -- is out of this core's scope (spec.md's
// Non-goals name it directly); this file assumes that part already
// happened and it is being called as the kernel's first Go-level code.
package main

import (
	"fmt"

	"arch"
	"boot"
	"console"
	"ctxframe"
	"gdt"
	"intr"
	"ipc"
	"proc"
	"prof"
	"sysc"
	"unsafe"
	"vm"
)

// kernelMain is the function a boot shim calls once physical memory and an
// initial stack are available. It is not wired to a real _start symbol
// here (that glue lives outside this core), but its body is the complete,
// ordered boot sequence spec.md §2 requires.
func kernelMain(info *boot.Info) {
	arch.Cli()

	// C2: GDT + TSS. Selectors and the TSS pointer feed both the
	// interrupt and syscall setup below.
	tbl := gdt.New()
	tbl.InstallTSS(tbl.TSSBase())
	tbl.Load()
	sel := tbl.Selectors()

	// C3: the kernel's address space and frame allocator, built from the
	// boot collaborator's usable-memory map.
	mgr := vm.Init(info)

	// C6: the scheduler, owning the ready queue and current-task slot,
	// needs the TSS (to reprogram the timer IST slot on every switch) and
	// the selectors (to stamp new tasks' initial frames).
	sched := proc.NewScheduler(tbl.IST(), sel, mgr)

	// C4: IDT + timer/fault vectors. The timer handler calls back into
	// sched.ScheduleNext on every tick (spec.md §4.2).
	intr.Install(sched, sel.KernelCS)

	// C5: syscall MSRs and the dispatcher that backs write/send/recv/yield.
	// syscallStack is the dedicated kernel stack syscall entry switches
	// onto (spec.md §4.4 step 1); it is never a task's own stack, so a
	// nested syscall can never clobber a task's saved context.
	sink := console.NewSink(nil)
	disp := &dispatcher{sched: sched, mgr: mgr, cons: sink}
	syscallStack := make([]byte, proc.KernelStackBytes)
	syscallStackTop := uintptr(unsafe.Pointer(&syscallStack[0])) + uintptr(len(syscallStack))
	sysc.Install(disp, sel.KernelCS, sel.KernelSS, sel.UserCS, sel.UserSS, syscallStackTop)

	arch.Sti()

	// The first task: a kernel thread that just announces itself. Real
	// deployments replace this with whatever init binary C8/elf loads;
	// this core has no notion of an init binary path, so it starts
	// exactly one kernel task and lets the scheduler idle from there.
	sched.NewKernelTask(func() {
		fmt.Println("kernel: first task running")
	})

	// A boot-time profile snapshot: the diagnostic path prof.go describes
	// ("a developer attached to the kernel's diagnostic console can pull
	// a CPU profile"), exercised here against whatever tasks exist at the
	// point a developer asks for one rather than wired to a timer this
	// core's simplified boot sequence has no way to drive on its own.
	dumpProfile(sched, sink)

	// Hand off to the scheduler: pop the first ready task and jump to it.
	// A real boot shim turns the returned address into a register-restore
	// sequence identical to the timer trampoline's launch path; that last
	// hardware step is outside this core (see DESIGN.md).
	sched.ScheduleNext(0)

	for {
		arch.Halt()
	}
}

// dumpProfile snapshots every task's accounting record (proc.Task.Acct,
// accumulated by Scheduler.ScheduleNext) into a pprof profile and prints
// a one-line summary to sink, the console-attached path prof.Dump exists
// for.
func dumpProfile(sched *proc.Scheduler, sink *console.Sink) {
	tasks := sched.Tasks()
	usage := make([]prof.TaskUsage, len(tasks))
	for i, t := range tasks {
		usage[i] = prof.TaskUsage{ID: t.TaskID(), UserNs: t.Acct.Userns, SysNs: t.Acct.Sysns}
	}
	p := prof.Dump(usage)
	fmt.Fprintf(sink, "kernel: profile snapshot: %d task sample(s)\n", len(p.Sample))
}

// dispatcher adapts *proc.Scheduler, *vm.Manager, and *console.Sink to
// sysc.Dispatcher, the concrete wiring spec.md §4.4's dispatch table needs
// at the id=1..4 syscalls.
type dispatcher struct {
	sched *proc.Scheduler
	mgr   *vm.Manager
	cons  *console.Sink
}

var errNoCurrentTask = fmt.Errorf("sysc: syscall with no current task")

// Write implements syscall id 1: copy length bytes from the caller's
// address space at ptr and print them. A kernel task's AddressSpace is the
// zero value (proc.NewKernelTask never assigns one), meaning its own
// virtual addresses already are kernel addresses -- no page walk needed,
// matching how new_kernel_task's frames run with the kernel's cr3 already
// loaded.
func (d *dispatcher) Write(ptr uintptr, length int) error {
	cur, ok := d.sched.Current()
	if !ok {
		return errNoCurrentTask
	}
	var data []byte
	if cur.AddressSpace == 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length)
	} else {
		var err error
		data, err = d.mgr.CopyFromUser(cur.AddressSpace, ptr, length)
		if err != nil {
			return err
		}
	}
	_, err := d.cons.Write(data)
	return err
}

// Send implements syscall id 2, spec.md §4.6: look up the handle in the
// caller's own table, hand the message to the channel's rendezvous state
// machine, then apply whatever pair of tasks it returns via HandleIPC.
func (d *dispatcher) Send(handle int, value uint64) error {
	// spec.md §4.6 step 1: detach the caller from the current slot before
	// handing it to the channel -- HandleIPC (or the invalid-handle path
	// below) is what reinstalls it, whether as itself or as whichever
	// task the rendezvous woke instead.
	caller := d.sched.TakeCurrentThread()
	if handle < 0 || handle >= len(caller.Handles) || caller.Handles[handle] == nil {
		caller.Frame().Rax = sysc.InvalidHandle
		d.sched.SetCurrentThread(caller)
		return nil
	}
	a, b := caller.Handles[handle].Send(caller, ipc.Message{Value: value})
	if _, needLaunch := d.sched.HandleIPC(caller, a, b); needLaunch {
		// The caller was parked and a different ready task was chosen to
		// run in its place. Resuming that task from here would require
		// the syscall trampoline to switch to a different saved context
		// mid-return, a launch_thread-style mechanism this core's
		// trampoline does not implement (see DESIGN.md). The scheduler's
		// queue/current bookkeeping above is already correct; the actual
		// hardware handoff to the newly-current task happens at the next
		// timer tick instead of immediately.
		fmt.Println("sysc: ipc parked caller; hardware handoff deferred to next timer tick")
	}
	return nil
}

// Recv implements syscall id 3, the receiver side of the same rendezvous.
func (d *dispatcher) Recv(handle int) error {
	caller := d.sched.TakeCurrentThread()
	if handle < 0 || handle >= len(caller.Handles) || caller.Handles[handle] == nil {
		caller.Frame().Rax = sysc.InvalidHandle
		d.sched.SetCurrentThread(caller)
		return nil
	}
	a, b := caller.Handles[handle].Receive(caller)
	if _, needLaunch := d.sched.HandleIPC(caller, a, b); needLaunch {
		fmt.Println("sysc: ipc parked caller; hardware handoff deferred to next timer tick")
	}
	return nil
}

// Yield implements syscall id 4, spec.md §4.7: give up the remainder of
// the caller's slice voluntarily. ScheduleNext already performs the
// park-and-pop spec.md describes; as with Send/Recv above, the register-
// level jump to whatever it picks is left to the next timer tick rather
// than performed inline.
func (d *dispatcher) Yield(frame ctxframe.Addr) {
	d.sched.ScheduleNext(frame)
}
