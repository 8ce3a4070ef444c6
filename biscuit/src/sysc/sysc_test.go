package sysc

import (
	"errors"
	"testing"

	"ctxframe"
	"vm"
)

// TestChooseResumeBoundaries is spec.md §8 property 7: "control returns
// via sysretq iff USER_CODE_START <= X < USER_CODE_END."
func TestChooseResumeBoundaries(t *testing.T) {
	cases := []struct {
		rip  uintptr
		want ResumeKind
	}{
		{vm.UserCodeStart - 1, ResumeIret},
		{vm.UserCodeStart, ResumeSysret},
		{vm.UserCodeStart + 1, ResumeSysret},
		{vm.UserCodeEnd - 1, ResumeSysret},
		{vm.UserCodeEnd, ResumeIret},
		{0, ResumeIret},
	}
	for _, c := range cases {
		if got := ChooseResume(c.rip); got != c.want {
			t.Errorf("ChooseResume(%#x) = %v, want %v", c.rip, got, c.want)
		}
	}
}

type fakeDispatcher struct {
	writeCalls []struct {
		ptr uintptr
		n   int
	}
	sendCalls []struct {
		handle int
		value  uint64
	}
	recvCalls []int
	yielded   bool
	failNext  bool
}

func (f *fakeDispatcher) Write(ptr uintptr, n int) error {
	if f.failNext {
		return errors.New("bad handle")
	}
	f.writeCalls = append(f.writeCalls, struct {
		ptr uintptr
		n   int
	}{ptr, n})
	return nil
}

func (f *fakeDispatcher) Send(handle int, value uint64) error {
	if f.failNext {
		return errors.New("bad handle")
	}
	f.sendCalls = append(f.sendCalls, struct {
		handle int
		value  uint64
	}{handle, value})
	return nil
}

func (f *fakeDispatcher) Recv(handle int) error {
	if f.failNext {
		return errors.New("bad handle")
	}
	f.recvCalls = append(f.recvCalls, handle)
	return nil
}

func (f *fakeDispatcher) Yield(addr ctxframe.Addr) {
	f.yielded = true
}

func TestDispatchHello(t *testing.T) {
	fake := &fakeDispatcher{}
	dispatcher = fake
	var frame ctxframe.Frame
	frame.Rip = uint64(vm.UserCodeStart)

	Dispatch(&frame, SysHello, 0, 0, 0, 0x08, 0x10, 0x23, 0x1b)
	if frame.Rax != Ok {
		t.Fatalf("rax = %d, want %d", frame.Rax, Ok)
	}
	if frame.Cs != 0x23 || frame.Ss != 0x1b {
		t.Fatalf("cs/ss = %#x/%#x, want user selectors", frame.Cs, frame.Ss)
	}
}

func TestDispatchWriteSuccess(t *testing.T) {
	fake := &fakeDispatcher{}
	dispatcher = fake
	var frame ctxframe.Frame
	frame.Rip = uint64(vm.UserCodeStart)

	Dispatch(&frame, SysWrite, 0x3000, 5, 0, 0x08, 0x10, 0x23, 0x1b)
	if len(fake.writeCalls) != 1 || fake.writeCalls[0].ptr != 0x3000 || fake.writeCalls[0].n != 5 {
		t.Fatalf("write call = %+v, want ptr=0x3000 n=5", fake.writeCalls)
	}
	if frame.Rax != Ok {
		t.Fatalf("rax = %d, want %d", frame.Rax, Ok)
	}
}

func TestDispatchWriteFailureSetsInvalidHandle(t *testing.T) {
	fake := &fakeDispatcher{failNext: true}
	dispatcher = fake
	var frame ctxframe.Frame
	frame.Rip = uint64(vm.UserCodeStart)

	Dispatch(&frame, SysWrite, 0x3000, 5, 0, 0x08, 0x10, 0x23, 0x1b)
	if frame.Rax != InvalidHandle {
		t.Fatalf("rax = %d, want %d", frame.Rax, InvalidHandle)
	}
}

func TestDispatchYieldCallsDispatcher(t *testing.T) {
	fake := &fakeDispatcher{}
	dispatcher = fake
	var frame ctxframe.Frame
	frame.Rip = uint64(vm.UserCodeStart)

	Dispatch(&frame, SysYield, 0, 0, 0, 0x08, 0x10, 0x23, 0x1b)
	if !fake.yielded {
		t.Fatal("Dispatch(SysYield) did not call Yield")
	}
}

func TestDispatchSetsCsSs_KernelRip(t *testing.T) {
	fake := &fakeDispatcher{}
	dispatcher = fake
	var frame ctxframe.Frame
	frame.Rip = 0x100 // outside the user code window

	Dispatch(&frame, SysHello, 0, 0, 0, 0x08, 0x10, 0x23, 0x1b)
	if frame.Cs != 0x08 || frame.Ss != 0x10 {
		t.Fatalf("cs/ss = %#x/%#x, want kernel selectors", frame.Cs, frame.Ss)
	}
}

func TestDispatchUnknownIDIsNoop(t *testing.T) {
	fake := &fakeDispatcher{}
	dispatcher = fake
	var frame ctxframe.Frame
	frame.Rip = uint64(vm.UserCodeStart)
	frame.Rax = 99

	Dispatch(&frame, 99, 0, 0, 0, 0x08, 0x10, 0x23, 0x1b)
	if len(fake.writeCalls) != 0 || len(fake.sendCalls) != 0 || len(fake.recvCalls) != 0 || fake.yielded {
		t.Fatal("unknown syscall id must have no dispatcher side effects")
	}
}
