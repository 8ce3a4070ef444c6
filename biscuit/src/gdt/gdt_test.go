package gdt

import (
	"encoding/binary"
	"testing"
)

func TestSelectors(t *testing.T) {
	tbl := New()
	sels := tbl.Selectors()
	if sels.KernelCS != 0x08 {
		t.Errorf("kernel CS = %#x, want 0x08", sels.KernelCS)
	}
	if sels.KernelSS != 0x10 {
		t.Errorf("kernel SS = %#x, want 0x10", sels.KernelSS)
	}
	if sels.UserCS != 0x23 {
		t.Errorf("user CS = %#x, want 0x23 (spec.md §4.4)", sels.UserCS)
	}
	if sels.UserSS != 0x1B {
		t.Errorf("user SS = %#x, want 0x1B (spec.md §4.4)", sels.UserSS)
	}
}

func TestISTRoundTrip(t *testing.T) {
	tbl := New()
	tbl.IST().SetIST(ISTTimer, 0xcafe000)
	if got := tbl.IST().IST(ISTTimer); got != 0xcafe000 {
		t.Fatalf("IST(timer) = %#x, want 0xcafe000", got)
	}
	// unrelated slots must be unaffected
	if got := tbl.IST().IST(ISTSyscallTemp); got != 0 {
		t.Fatalf("IST(syscall-temp) = %#x, want 0", got)
	}
}

func TestNewPseudoDescriptorPacksWithoutPadding(t *testing.T) {
	d := newPseudoDescriptor(0x1122334455667788, 0xabcd)
	if len(d) != 10 {
		t.Fatalf("pseudoDescriptor length = %d, want 10", len(d))
	}
	if got := binary.LittleEndian.Uint16(d[0:]); got != 0xabcd {
		t.Fatalf("limit = %#x, want 0xabcd", got)
	}
	if got := binary.LittleEndian.Uint64(d[2:]); got != 0x1122334455667788 {
		t.Fatalf("base = %#x, want 0x1122334455667788", got)
	}
}

func TestTSSBaseIsStableAndNonZero(t *testing.T) {
	tbl := New()
	base := tbl.TSSBase()
	if base == 0 {
		t.Fatal("TSSBase returned 0")
	}
	if got := tbl.TSSBase(); got != base {
		t.Fatalf("TSSBase is not stable across calls: %#x != %#x", got, base)
	}
}
