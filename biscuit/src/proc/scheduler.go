package proc

import (
	"sync"

	"ctxframe"
	"curtask"
	"defs"
	"gdt"
	"hashtable"
	"ipc"
	"vm"
)

// taskTableBuckets sizes the id->*Task lookup table behind Lookup, which
// turns a bare Tid_t back into a *Task. No package outside proc calls it.
// The ready queue and current slot stay the scheduling source of truth;
// this index never participates in schedule_next's ordering.
const taskTableBuckets = 64

/// Scheduler owns the ready queue and, via curtask, the current slot --
/// the process-wide singletons spec.md §9 describes: "the ... ready
/// queue, current slot, id counter ... are all module-level singletons
/// initialized exactly once during boot."
type Scheduler struct {
	mu     sync.Mutex
	ready  []*Task
	nextID uint64

	tss   *gdt.TSS
	sel   gdt.Selectors
	mgr   *vm.Manager
	byID  *hashtable.Hashtable_t

	// allTasks lists every task register has ever indexed, in creation
	// order. Tasks() exposes it for diagnostics (prof.Dump's input); the
	// ready queue and current slot remain the scheduling source of truth.
	allTasks []*Task
}

/// NewScheduler builds an empty scheduler. tss is reprogrammed on every
/// switch (spec.md §4.2); sel supplies the kernel/user segment selectors
/// new tasks' initial frames are built with; mgr backs new_user_task's
/// address-space and page-allocation needs.
func NewScheduler(tss *gdt.TSS, sel gdt.Selectors, mgr *vm.Manager) *Scheduler {
	return &Scheduler{tss: tss, sel: sel, mgr: mgr, byID: hashtable.MkHash(taskTableBuckets)}
}

func (s *Scheduler) nextTaskID() defs.Tid_t {
	s.nextID++
	return defs.Tid_t(s.nextID)
}

/// register indexes t by id so Lookup can find it later; called once by
/// new_kernel_task/new_user_task at creation time.
func (s *Scheduler) register(t *Task) {
	s.byID.Set(int(t.ID), t)
	s.mu.Lock()
	s.allTasks = append(s.allTasks, t)
	s.mu.Unlock()
}

/// Tasks returns every task this scheduler has ever created, in creation
/// order, for diagnostics such as prof.Dump -- a snapshot copy, so the
/// caller can range over it without holding the scheduler's lock.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.allTasks))
	copy(out, s.allTasks)
	return out
}

/// Lookup returns the task with the given id, if it is still known to
/// this scheduler (tasks are never removed from the index once created --
/// spec.md has no task-exit operation in its core).
func (s *Scheduler) Lookup(id defs.Tid_t) (*Task, bool) {
	v, ok := s.byID.Get(int(id))
	if !ok {
		return nil, false
	}
	return v.(*Task), true
}

func (s *Scheduler) pushBack(t *Task) {
	s.ready = append(s.ready, t)
}

func (s *Scheduler) pushFront(t *Task) {
	s.ready = append([]*Task{t}, s.ready...)
}

/// ScheduleThread pushes t to the front of the ready queue, the wakeup
/// idiom spec.md §3 describes: "push_front is used by channel wakeups
/// so a just-unblocked task runs promptly."
func (s *Scheduler) ScheduleThread(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushFront(t)
}

/// ScheduleNext implements the exact contract of spec.md §4.2: park the
/// current task (if any) at the back of the ready queue, pop the front
/// into the current slot, reprogram the TSS timer IST slot, switch cr3
/// if the new task owns an address space, and return its context
/// address (or 0 if the ready queue was empty, per spec.md §4.5/§7:
/// "Queue empty in the scheduler is not an error"). A task's AddressSpace
/// is fixed at creation (new_user_task) and never changes while it runs,
/// so parking it needs no hardware cr3 read -- only its context offset
/// needs updating to match where the trampoline actually left it.
func (s *Scheduler) ScheduleNext(contextAddr ctxframe.Addr) ctxframe.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if curtask.HasCurrent() {
		cur := curtask.Current[Task]()
		cur.SetContextAddr(contextAddr)
		cur.Acct.Utadd(cur.Acct.Now() - cur.runStart)
		s.pushBack(cur)
		curtask.ClearCurrent()
	}

	if len(s.ready) == 0 {
		return 0
	}

	next := s.ready[0]
	s.ready = s.ready[1:]
	next.runStart = next.Acct.Now()
	curtask.SetCurrent(next)

	if s.tss != nil {
		s.tss.SetIST(gdt.ISTTimer, next.KernelStackEnd())
	}
	if next.AddressSpace != 0 {
		s.mgr.SwitchTo(next.AddressSpace)
	}
	return next.ContextAddr()
}

/// TakeCurrentThread detaches and returns the current task, emptying the
/// current slot (spec.md §4.6's take_current_thread()).
func (s *Scheduler) TakeCurrentThread() *Task {
	t := curtask.Current[Task]()
	curtask.ClearCurrent()
	return t
}

/// Current returns the task currently occupying the current slot without
/// detaching it, and whether one is installed at all. The write syscall,
/// which only reads the caller's address-space root, uses this
/// non-destructive peek; send/receive call TakeCurrentThread instead,
/// whose clearing behavior suits the IPC bridging path (spec.md §4.6),
/// which explicitly re-attaches or replaces the current task before
/// returning.
func (s *Scheduler) Current() (*Task, bool) {
	if !curtask.HasCurrent() {
		return nil, false
	}
	return curtask.Current[Task](), true
}

/// SetCurrentThread installs t as the current task (spec.md §4.6's
/// set_current_thread()).
func (s *Scheduler) SetCurrentThread(t *Task) {
	curtask.SetCurrent(t)
}

/// HandleIPC applies spec.md §4.6's syscall-bridging steps 4-5 to the
/// (a, b) pair Channel.Send/Receive returned: whichever of a/b matches
/// caller becomes current again; the other, if any, is pushed to the
/// front of the ready queue. If neither matched (the caller was parked),
/// it runs ScheduleNext and reports that the dispatcher must launch the
/// returned context instead of returning normally.
func (s *Scheduler) HandleIPC(caller *Task, a, b ipc.Task) (launchAddr ctxframe.Addr, needLaunch bool) {
	returning := false
	handle := func(t ipc.Task) {
		if t == nil {
			return
		}
		if t.TaskID() == caller.TaskID() {
			s.SetCurrentThread(caller)
			returning = true
			return
		}
		s.ScheduleThread(t.(*Task))
	}
	handle(a)
	handle(b)

	if !returning {
		addr := s.ScheduleNext(caller.ContextAddr())
		return addr, true
	}
	return 0, false
}
