package mem

import (
	"testing"

	"boot"
)

func testInfo() *boot.Info {
	return &boot.Info{
		PhysicalMemoryOffset: 0xffff800000000000,
		MemoryMap: []boot.Region{
			{Start: 0x100000, End: 0x100000 + uintptr(3*PGSIZE), Kind: boot.Usable},
			{Start: 0x200000, End: 0x200000 + uintptr(2*PGSIZE), Kind: boot.Reserved},
			{Start: 0x300000, End: 0x300000 + uintptr(2*PGSIZE), Kind: boot.Usable},
		},
	}
}

func TestAllocExhaustsRegionsInOrder(t *testing.T) {
	fa := NewFrameAllocator(testInfo())
	var got []Pa_t
	for {
		p, ok := fa.Alloc()
		if !ok {
			break
		}
		got = append(got, p)
	}
	// 3 pages from the first usable region, 2 from the second; the
	// reserved region in between must never be handed out.
	if len(got) != 5 {
		t.Fatalf("got %d frames, want 5", len(got))
	}
	for _, p := range got {
		if uintptr(p) >= 0x200000 && uintptr(p) < 0x200000+uintptr(2*PGSIZE) {
			t.Fatalf("allocator handed out a reserved frame: %#x", p)
		}
	}
}

func TestAllocExhaustionReturnsFalse(t *testing.T) {
	info := &boot.Info{MemoryMap: []boot.Region{
		{Start: 0x1000, End: 0x1000 + uintptr(PGSIZE), Kind: boot.Usable},
	}}
	fa := NewFrameAllocator(info)
	if _, ok := fa.Alloc(); !ok {
		t.Fatal("expected one frame to be available")
	}
	if _, ok := fa.Alloc(); ok {
		t.Fatal("expected allocator to be exhausted")
	}
}

func TestAllocIsPageAligned(t *testing.T) {
	fa := NewFrameAllocator(testInfo())
	for i := 0; i < 5; i++ {
		p, ok := fa.Alloc()
		if !ok {
			t.Fatalf("frame %d: allocator exhausted early", i)
		}
		if uintptr(p)&uintptr(PGOFFSET) != 0 {
			t.Fatalf("frame %#x is not page-aligned", p)
		}
	}
}
