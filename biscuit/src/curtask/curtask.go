// Package curtask is the "what task is running on this CPU right now"
// cell referenced throughout spec.md's C6 (scheduler) and C7 (rendezvous
// IPC) contracts -- schedule_next, take_current_thread, set_current_thread
// all act on it. The teacher's equivalent (biscuit/src/tinfo) reaches into
// a forked Go runtime's per-goroutine extern (runtime.Gptr/Setgptr) to
// stash a *Tnote_t, because biscuit schedules goroutines rather than
// kernel tasks. RL4 has no forked runtime and exactly one hardware thread
// of control, so the same "single mutable slot, panics on misuse" idiom
// is kept but backed by a plain mutex-protected pointer instead.
//
// This package holds no knowledge of proc.Task's shape -- it stores an
// unsafe.Pointer and lets callers specify the concrete type via generics,
// which is what keeps it a leaf package: proc can depend on curtask
// without curtask depending back on proc.
package curtask

import (
	"sync"
	"unsafe"
)

var (
	mu  sync.Mutex
	cur unsafe.Pointer
)

/// Current returns the task pointer installed by SetCurrent, cast to *T.
/// It panics if no task is currently installed, mirroring the teacher's
/// Current(): "if _p == nil { panic(\"nuts\") }" -- reading the current
/// task outside of a task's execution context is always a bug.
func Current[T any]() *T {
	mu.Lock()
	defer mu.Unlock()
	if cur == nil {
		panic("curtask: no current task installed")
	}
	return (*T)(cur)
}

/// HasCurrent reports whether a task is currently installed, without
/// panicking. Used by code that runs both inside and outside task
/// context (boot, the idle path before any task has been scheduled).
func HasCurrent() bool {
	mu.Lock()
	defer mu.Unlock()
	return cur != nil
}

/// SetCurrent installs t as the current task. Panics on a nil task or if
/// a task is already installed, matching the teacher's exclusive-slot
/// discipline: the scheduler must ClearCurrent (take_current_thread in
/// spec.md terms) before installing a new one.
func SetCurrent[T any](t *T) {
	if t == nil {
		panic("curtask: refusing to install a nil task")
	}
	mu.Lock()
	defer mu.Unlock()
	if cur != nil {
		panic("curtask: a task is already current")
	}
	cur = unsafe.Pointer(t)
}

/// ClearCurrent empties the slot. Panics if nothing is installed.
func ClearCurrent() {
	mu.Lock()
	defer mu.Unlock()
	if cur == nil {
		panic("curtask: no current task to clear")
	}
	cur = nil
}
