// Package mem is the physical frame allocator and page-table-entry flag
// vocabulary for spec.md's C3 (address-space manager). It is a drastic
// simplification of the teacher's original biscuit/src/mem/mem.go: the
// teacher implements a refcounted, per-CPU-cached allocator with
// copy-on-write support, because biscuit is a general-purpose monolithic
// kernel. RL4's core has no demand paging, no COW, and no page reclamation
// (spec.md §4.1: "the only allocator of physical frames; exhaustion
// returns none"), so this package keeps only the bump-allocator idiom and
// the PTE flag constants the recursive page-table copy in biscuit/src/vm
// needs.
package mem

import (
	"sync"
	"unsafe"

	"boot"
	"util"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// PTE_P marks a page as present.
const PTE_P Pa_t = 1 << 0

/// PTE_W marks a page writable.
const PTE_W Pa_t = 1 << 1

/// PTE_U marks a page user-accessible.
const PTE_U Pa_t = 1 << 2

/// PTE_PS indicates a large (huge) page. spec.md §4.1's recursive
/// kernel-L4 clone copies such entries verbatim instead of recursing into
/// them.
const PTE_PS Pa_t = 1 << 7

/// PTE_ADDR extracts the address bits of a PTE.
const PTE_ADDR Pa_t = PGMASK

/// Pa_t represents a physical address.
type Pa_t uintptr

/// Bytepg_t is a byte addressed page.
type Bytepg_t [PGSIZE]uint8

/// Pg_t is a page-table page: 512 page-table entries.
type Pg_t [512]Pa_t

/// Pmap_t is an alias for Pg_t used wherever a page is specifically being
/// treated as a page-table page.
type Pmap_t = Pg_t

/// Pg2bytes converts a page-table page to a byte-addressed view of the
/// same physical page, used when the page instead holds raw data (a user
/// stack or ELF segment bytes, not page-table entries).
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

func pg2pgn(p_pg Pa_t) uintptr {
	return uintptr(p_pg) >> PGSHIFT
}

/// FrameAllocator is a bump allocator over the boot-reported usable
/// physical memory regions, exactly as spec.md §4.1 specifies: "a bump
/// allocator over the usable regions reported by boot info, iterating
/// page-aligned physical addresses. It is the only allocator of physical
/// frames; exhaustion returns none and callers report failure." It never
/// reclaims a frame: spec.md's core has no destruction/reaping (non-goal).
type FrameAllocator struct {
	mu      sync.Mutex
	regions []boot.Region
	ri      int     // index of the region currently being consumed
	next    uintptr // next page-aligned address within regions[ri]

	// physOffset is the boot-reported physical-memory-offset mapping
	// (boot.Info.PhysicalMemoryOffset), needed by Dmap to turn a
	// physical address into a virtual one.
	physOffset uintptr
}

/// NewFrameAllocator builds a bump allocator over info's usable regions.
func NewFrameAllocator(info *boot.Info) *FrameAllocator {
	fa := &FrameAllocator{
		regions:    info.UsableRegions(),
		physOffset: info.PhysicalMemoryOffset,
	}
	if len(fa.regions) > 0 {
		fa.next = uintptr(util.Roundup(int(fa.regions[0].Start), PGSIZE))
	}
	return fa
}

/// Alloc hands out the next page-aligned physical frame, or ok=false once
/// every usable region is exhausted. The returned frame is NOT zeroed;
/// callers that need a zero frame (every user-facing allocation, per
/// spec.md §9 open question 2) must call ZeroFrame themselves.
func (fa *FrameAllocator) Alloc() (p Pa_t, ok bool) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	for fa.ri < len(fa.regions) {
		r := fa.regions[fa.ri]
		if fa.next == 0 {
			fa.next = uintptr(util.Roundup(int(r.Start), PGSIZE))
		}
		if fa.next+uintptr(PGSIZE) <= r.End {
			got := fa.next
			fa.next += uintptr(PGSIZE)
			return Pa_t(got), true
		}
		fa.ri++
		fa.next = 0
	}
	return 0, false
}

/// AllocZeroed allocates a frame and zeroes it before returning, the
/// common case for every allocator caller in this core.
func (fa *FrameAllocator) AllocZeroed() (Pa_t, bool) {
	p, ok := fa.Alloc()
	if !ok {
		return 0, false
	}
	fa.ZeroFrame(p)
	return p, true
}

/// Dmap maps a physical address into a virtual address via the boot
/// collaborator's physical-memory-offset mapping (teacher's Dmap idiom,
/// here parameterized on the boot-supplied offset rather than a package
/// global Vdirect, since RL4 has no forked runtime to stash it in).
func (fa *FrameAllocator) Dmap(p Pa_t) *Pg_t {
	v := fa.physOffset + uintptr(util.Rounddown(int(p), PGSIZE))
	return (*Pg_t)(unsafe.Pointer(v))
}

/// Dmap8 returns a byte-addressed view of the physical frame at p, used by
/// vm's user-copy helpers and the elf loader's segment copy.
func (fa *FrameAllocator) Dmap8(p Pa_t) []uint8 {
	pg := fa.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

/// ZeroFrame zeroes the physical frame at p via the direct map.
func (fa *FrameAllocator) ZeroFrame(p Pa_t) {
	pg := fa.Dmap(p)
	for i := range pg {
		pg[i] = 0
	}
}
