package ipc

import (
	"testing"

	"ctxframe"
)

type fakeTask struct {
	id    uint64
	frame ctxframe.Frame
}

func (f *fakeTask) TaskID() uint64          { return f.id }
func (f *fakeTask) Frame() *ctxframe.Frame { return &f.frame }

// TestRendezvousHandoff is spec.md §8 property 4 / scenario S1: a
// receiver parked first, then a sender arrives.
func TestRendezvousHandoff(t *testing.T) {
	c := NewChannel()
	recv := &fakeTask{id: 1}
	send := &fakeTask{id: 2}

	a, b := c.Receive(recv)
	if a != nil || b != nil {
		t.Fatalf("receive on empty channel should park: got (%v, %v)", a, b)
	}

	a, b = c.Send(send, Message{Value: 42})
	if a != recv || b != send {
		t.Fatalf("send onto a receiving channel: got a=%v b=%v, want recv, send", a, b)
	}
	if recv.frame.Rax != Ok || recv.frame.Rdi != 42 {
		t.Fatalf("receiver frame = rax:%d rdi:%d, want 0/42", recv.frame.Rax, recv.frame.Rdi)
	}
	if send.frame.Rax != Ok {
		t.Fatalf("sender frame rax = %d, want 0", send.frame.Rax)
	}
}

// TestSendFirstThenReceive is the symmetric ordering of S1: sender
// parks first, receiver arrives second.
func TestSendFirstThenReceive(t *testing.T) {
	c := NewChannel()
	send := &fakeTask{id: 1}
	recv := &fakeTask{id: 2}

	a, b := c.Send(send, Message{Value: 7})
	if a != nil || b != nil {
		t.Fatalf("send onto an empty channel should park: got (%v, %v)", a, b)
	}

	a, b = c.Receive(recv)
	if a != recv || b != send {
		t.Fatalf("receive onto a sending channel: got a=%v b=%v, want recv, send", a, b)
	}
	if recv.frame.Rax != Ok || recv.frame.Rdi != 7 {
		t.Fatalf("receiver frame = rax:%d rdi:%d, want 0/7", recv.frame.Rax, recv.frame.Rdi)
	}
	if send.frame.Rax != Ok {
		t.Fatalf("sender frame rax = %d, want 0", send.frame.Rax)
	}
}

// TestDoubleSendBlocks is S2: a second sender arrives while one is
// already parked; it must see SendWouldBlock and must NOT disturb the
// first sender's parked state.
func TestDoubleSendBlocks(t *testing.T) {
	c := NewChannel()
	first := &fakeTask{id: 1}
	second := &fakeTask{id: 2}

	c.Send(first, Message{Value: 1})
	a, b := c.Send(second, Message{Value: 2})
	if a != second || b != nil {
		t.Fatalf("double send: got a=%v b=%v, want second, nil", a, b)
	}
	if second.frame.Rax != SendWouldBlock {
		t.Fatalf("second sender rax = %d, want %d", second.frame.Rax, SendWouldBlock)
	}
	if c.st != stateSending || c.sendingTask != first {
		t.Fatal("channel state was disturbed by the blocked second send")
	}
}

// TestDoubleReceiveBlocks mirrors TestDoubleSendBlocks for receivers.
func TestDoubleReceiveBlocks(t *testing.T) {
	c := NewChannel()
	first := &fakeTask{id: 1}
	second := &fakeTask{id: 2}

	c.Receive(first)
	a, b := c.Receive(second)
	if a != second || b != nil {
		t.Fatalf("double receive: got a=%v b=%v, want second, nil", a, b)
	}
	if second.frame.Rax != RecvWouldBlock {
		t.Fatalf("second receiver rax = %d, want %d", second.frame.Rax, RecvWouldBlock)
	}
	if c.st != stateReceiving || c.recvTask != first {
		t.Fatal("channel state was disturbed by the blocked second receive")
	}
}

// TestUnblockedSenderStillParks confirms a nil-tracked sender (the core
// never does this via syscalls, but the contract allows it) still
// transitions the channel correctly without a nil-pointer panic.
func TestUnblockedSenderStillParks(t *testing.T) {
	c := NewChannel()
	a, b := c.Send(nil, Message{Value: 99})
	if a != nil || b != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", a, b)
	}
	recv := &fakeTask{id: 1}
	a, b = c.Receive(recv)
	if a != recv || b != nil {
		t.Fatalf("got a=%v b=%v, want recv, nil (sender untracked)", a, b)
	}
	if recv.frame.Rdi != 99 {
		t.Fatalf("recv rdi = %d, want 99", recv.frame.Rdi)
	}
}

// TestEmptyBetweenTransitions is spec.md §4.8's channel-state
// invariant: Sending -> Receiving never occurs directly.
func TestEmptyBetweenTransitions(t *testing.T) {
	c := NewChannel()
	send := &fakeTask{id: 1}
	recv := &fakeTask{id: 2}
	c.Send(send, Message{Value: 1})
	c.Receive(recv)
	if c.st != stateEmpty {
		t.Fatalf("channel state after a completed rendezvous = %v, want stateEmpty", c.st)
	}
}
