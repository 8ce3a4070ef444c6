package ctxframe

import "testing"

func TestFrameSize(t *testing.T) {
	if Bytes != 160 {
		t.Fatalf("CONTEXT_BYTES drifted: got %d, want 160", Bytes)
	}
	if NumWords*8 != Bytes {
		t.Fatalf("NumWords*8 (%d) != Bytes (%d)", NumWords*8, Bytes)
	}
}

func TestFrameWordOrder(t *testing.T) {
	buf := make([]byte, Bytes)
	f := At(buf, 0)
	f.R15 = 15
	f.R14 = 14
	f.R13 = 13
	f.R12 = 12
	f.R11 = 11
	f.R10 = 10
	f.R9 = 9
	f.R8 = 8
	f.Rbp = 100
	f.Rsi = 101
	f.Rdi = 102
	f.Rdx = 103
	f.Rcx = 104
	f.Rbx = 105
	f.Rax = 106
	f.Rip = 0xdead
	f.Cs = 0x08
	f.Rflags = 0x200
	f.Rsp = 0xbeef
	f.Ss = 0x10

	want := [NumWords]uint64{
		15, 14, 13, 12, 11, 10, 9, 8,
		100, 101, 102, 103, 104, 105, 106,
		0xdead, 0x08, 0x200, 0xbeef, 0x10,
	}
	got := f.Words()
	if got != want {
		t.Fatalf("word order mismatch: got %v, want %v", got, want)
	}
}

func TestAtBoundsPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-bounds frame offset")
		}
	}()
	buf := make([]byte, Bytes-1)
	At(buf, 0)
}

func TestAtOffset(t *testing.T) {
	buf := make([]byte, 4*Bytes)
	off := Bytes
	f := At(buf, off)
	f.Rax = 42
	// the frame must alias buf, not a private copy
	raw := At(buf, off)
	if raw.Rax != 42 {
		t.Fatalf("frame at offset does not alias backing buffer")
	}
}
