package proc

import (
	"fmt"
	"unsafe"

	"ctxframe"
	"elf"
	"ipc"
	"limits"
	"mem"
	"vm"
)

// FlagsInterruptEnable is rflags bit 9 (IF), the initial flags value
// every new task's context frame carries (spec.md §4.5: "rflags = 0x200
// (interrupts enabled)").
const FlagsInterruptEnable = 0x200

/// NewKernelTask implements spec.md §4.5's new_kernel_task(entry_fn):
/// allocate kernel and user stacks, reserve a context frame at the top
/// of the kernel stack, populate it to resume at entry running in ring
/// 0 with interrupts enabled, and append to the ready queue.
func (s *Scheduler) NewKernelTask(entry func()) *Task {
	if !limits.Syslimit.Tasks.Take() {
		panic("proc: new_kernel_task: system task limit exceeded")
	}
	t := &Task{
		ID:          s.nextTaskID(),
		KernelStack: make([]byte, KernelStackBytes),
		UserStack:   make([]byte, UserStackBytes),
	}
	t.ContextOffset = len(t.KernelStack) - ctxframe.Bytes

	f := t.Frame()
	*f = ctxframe.Frame{}
	f.Rip = uint64(funcEntry(entry))
	f.Rsp = uint64(uintptr(unsafe.Pointer(&t.UserStack[0])) + uintptr(len(t.UserStack)))
	f.Rflags = FlagsInterruptEnable
	f.Cs, f.Ss = uint64(s.sel.KernelCS), uint64(s.sel.KernelSS)

	s.register(t)
	s.mu.Lock()
	s.pushBack(t)
	s.mu.Unlock()
	return t
}

/// NewUserTask implements spec.md §4.5's new_user_task(elf_bytes,
/// handles): validate and load the ELF image into a fresh user address
/// space (C8 + C3), map a user stack, populate the initial context to
/// resume in ring 3 with the heap hint in rax/rcx, assign handles, and
/// insert at the FRONT of the ready queue so it runs before any idle
/// loop the kernel started first.
func (s *Scheduler) NewUserTask(elfBytes []byte, handles []*ipc.Channel) (*Task, error) {
	if len(handles) > limits.Syslimit.Handles {
		return nil, fmt.Errorf("proc: new_user_task: %d handles exceeds limit %d",
			len(handles), limits.Syslimit.Handles)
	}
	if !limits.Syslimit.Tasks.Take() {
		return nil, fmt.Errorf("proc: new_user_task: system task limit exceeded")
	}

	loaded, err := elf.Load(s.mgr, elfBytes)
	if err != nil {
		limits.Syslimit.Tasks.Give()
		return nil, fmt.Errorf("proc: new_user_task: %w", err)
	}

	if err := s.mgr.AllocatePages(loaded.Root, vm.UserStackStart, vm.UserStackSize,
		mem.PTE_P|mem.PTE_W|mem.PTE_U); err != nil {
		limits.Syslimit.Tasks.Give()
		return nil, fmt.Errorf("proc: new_user_task: map user stack: %w", err)
	}

	t := &Task{
		ID:           s.nextTaskID(),
		KernelStack:  make([]byte, KernelStackBytes),
		AddressSpace: loaded.Root,
		Handles:      handles,
	}
	t.ContextOffset = len(t.KernelStack) - ctxframe.Bytes

	f := t.Frame()
	*f = ctxframe.Frame{}
	f.Rip = uint64(loaded.Entry)
	f.Rsp = uint64(vm.UserStackStart + vm.UserStackSize)
	f.Rflags = FlagsInterruptEnable
	f.Cs, f.Ss = uint64(s.sel.UserCS), uint64(s.sel.UserSS)
	f.Rax = uint64(vm.UserHeapStart)
	f.Rcx = uint64(vm.UserHeapSize)

	s.register(t)
	s.mu.Lock()
	s.pushFront(t)
	s.mu.Unlock()
	return t, nil
}
