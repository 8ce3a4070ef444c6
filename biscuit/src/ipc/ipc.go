// Package ipc is the synchronous rendezvous channel, spec.md's C7: "A
// three-state channel that matches exactly one sender with exactly one
// receiver, with correct handoff of blocked tasks between the scheduler
// and the channel." Grounded directly on original_source/src/ipc.rs's
// Rendezvous enum and its send/receive match arms -- the state machine
// below is a line-for-line translation of that match into Go, using the
// teacher's reader/writer-lock-around-a-tagged-variant idiom (seen
// throughout biscuit, e.g. its Vm_t/Vmregion_t locking) in place of
// Rust's exhaustive enum match.
package ipc

import (
	"sync"

	"ctxframe"
)

// Task is the minimal view of a schedulable task that rendezvous IPC
// needs. Declaring it here rather than importing proc.Task keeps ipc a
// leaf package: proc depends on ipc (for a task's channel handle table),
// and if ipc depended back on proc's concrete Task type the two would
// form an import cycle Go does not allow.
type Task interface {
	// TaskID returns the task's unique, non-zero identifier, used only
	// to tell "the caller" apart from "the peer" in the return values of
	// Send/Receive.
	TaskID() uint64
	// Frame returns the task's current context frame, the same record
	// C1 describes; Send/Receive write rax/rdi into it directly, per
	// spec.md §4.6.
	Frame() *ctxframe.Frame
}

// Error codes returned in rax, per spec.md §4.6 and §6.
const (
	Ok              = 0
	SendWouldBlock  = 1
	RecvWouldBlock  = 2
	InvalidHandle   = 3
)

// Message is a single machine word transferred by a rendezvous exchange.
// spec.md §3: "A Long variant is reserved for future large payloads but
// is unused by the core" -- so only the Short case is represented.
type Message struct {
	Value uint64
}

type state int

const (
	stateEmpty state = iota
	stateSending
	stateReceiving
)

/// Channel is the three-state rendezvous object. All mutations go
/// through Send/Receive under a single mutex (spec.md §4.6: "a single
/// tagged variable protected by a reader/writer lock"); this core has no
/// concurrent readers of channel state that wouldn't also need
/// exclusion, so a plain mutex serves the same contract a true RWMutex
/// would.
type Channel struct {
	mu sync.Mutex

	st state

	// populated when st == stateSending
	sendingTask Task // nil if the sender chose not to block
	sendingMsg  Message
	// populated when st == stateReceiving
	recvTask Task
}

/// NewChannel returns a channel in the Empty state.
func NewChannel() *Channel {
	return &Channel{st: stateEmpty}
}

/// Send implements spec.md §4.6's send(task?, message). task may be nil
/// if the caller chooses not to be tracked while blocked (the core never
/// actually does this, but the contract allows it, mirroring
/// original_source/src/ipc.rs's Option<Box<Thread>>). Of the two returned
/// tasks, at most one is the caller; both nil means the caller was parked.
func (c *Channel) Send(task Task, message Message) (a, b Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.st {
	case stateEmpty:
		c.st = stateSending
		c.sendingTask = task
		c.sendingMsg = message
		return nil, nil

	case stateSending:
		if task != nil {
			task.Frame().Rax = SendWouldBlock
		}
		return task, nil

	case stateReceiving:
		recv := c.recvTask
		c.st = stateEmpty
		c.recvTask = nil
		recv.Frame().Rax = Ok
		recv.Frame().Rdi = message.Value
		if task != nil {
			task.Frame().Rax = Ok
		}
		return recv, task

	default:
		panic("ipc: unreachable channel state")
	}
}

/// Receive implements spec.md §4.6's receive(task). task must not be
/// nil: a receiver always blocks identifiably (there is no "fire and
/// forget" receive in this core's syscall surface).
func (c *Channel) Receive(task Task) (a, b Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.st {
	case stateEmpty:
		c.st = stateReceiving
		c.recvTask = task
		return nil, nil

	case stateSending:
		snd := c.sendingTask
		msg := c.sendingMsg
		c.st = stateEmpty
		c.sendingTask = nil
		task.Frame().Rax = Ok
		task.Frame().Rdi = msg.Value
		if snd != nil {
			snd.Frame().Rax = Ok
		}
		return task, snd

	case stateReceiving:
		task.Frame().Rax = RecvWouldBlock
		return task, nil

	default:
		panic("ipc: unreachable channel state")
	}
}
