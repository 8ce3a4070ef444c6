// Package vm is the address-space manager, spec.md's C3: "Builds and
// switches 4-level page tables; clones kernel mappings into a fresh user
// space; allocates page-aligned ranges with flags." The teacher's original
// vm package (biscuit/src/vm/as.go) is a general-purpose Vm_t carrying
// copy-on-write vmregions, mmap bookkeeping, and file-backed pages --
// machinery a microkernel core with no demand paging, no mmap, and no
// files has no use for. This file keeps the teacher's locking idiom and
// its Dmap-based page-table-walk style, generalized down to exactly the
// four operations spec.md §4.1 names: init, create_user_space,
// allocate_pages, switch_to.
package vm

import (
	"errors"
	"sync"

	"arch"
	"boot"
	"mem"
)

// ErrOutOfMemory is returned by AllocatePages when the frame allocator is
// exhausted partway through mapping a range. spec.md §4.1: "Returns
// failure on allocator exhaustion; partial mappings on failure are not
// unwound (see §9)." -- callers here must not assume any rollback.
var ErrOutOfMemory = errors.New("vm: frame allocator exhausted")

// pageTableLevels is 4 for long-mode paging: PML4, PDPT, PD, PT.
const pageTableLevels = 4

/// Manager owns the process-wide memory-manager state spec.md §9 calls
/// out as a module-level singleton: "the frame allocator, heap, ... are
/// all module-level singletons initialized exactly once during boot."
type Manager struct {
	mu sync.Mutex

	fa *mem.FrameAllocator

	/// kernelRoot is the physical address of the L4 table the boot
	/// collaborator left active; every user space's kernel-half entries
	/// are copied from here.
	kernelRoot mem.Pa_t
}

const (
	/// HeapStart is the base of the kernel heap the allocator backs
	/// (spec.md §4.1: "installs the kernel heap by allocating backing
	/// frames and mapping them into the active address space").
	HeapStart uintptr = 0xffffa00000000000
	/// HeapSize is the amount of virtual address space reserved for the
	/// kernel heap. The value is a core-internal convenience; the heap
	/// allocator itself is out of scope (spec.md §1).
	HeapSize = 16 * 1024 * 1024
)

// User address-space layout, spec.md §6. UserStackStart deliberately
// lies inside [UserCodeStart, UserCodeEnd) -- spec.md §9 open question 1
// flags the overlap rather than resolving it: "a lower [PT_LOAD] could
// still collide with the later-mapped stack. The source does not detect
// this; specify only that current constants are as listed."
const (
	/// UserCodeStart is the inclusive lower bound PT_LOAD segments must
	/// fall within.
	UserCodeStart uintptr = 0x02000000
	/// UserCodeEnd is the exclusive upper bound PT_LOAD segments must
	/// fall within.
	UserCodeEnd uintptr = 0x05000000
	/// UserStackStart is the base of every user task's 20 KiB stack.
	UserStackStart uintptr = 0x03000000
	/// UserStackSize is the size of a user task's stack.
	UserStackSize = 20 * 1024
	/// UserHeapStart is handed to the user runtime as a heap base hint
	/// (rax at entry); the range is never mapped by the kernel (spec.md
	/// §9 open question 3: "Treat the heap as a reserved-but-unmapped
	/// range; leave mapping to a future component").
	UserHeapStart uintptr = 0x0000028000600000
	/// UserHeapSize is handed to the user runtime as the heap size hint
	/// (rcx at entry).
	UserHeapSize = 4 * 1024 * 1024
)

/// Init takes the physical-memory-offset mapping established by the boot
/// collaborator (spec.md §4.1 "init(boot_info)"), builds the frame
/// allocator, and maps the kernel heap range into the currently active
/// address space. It panics if heap mapping fails, per spec.md §7:
/// "Fatal (panic, halt loop): ... heap init failure."
func Init(info *boot.Info) *Manager {
	m := &Manager{
		fa:         mem.NewFrameAllocator(info),
		kernelRoot: mem.Pa_t(arch.ReadCR3()),
	}
	if err := m.AllocatePages(m.kernelRoot, HeapStart, HeapSize, mem.PTE_P|mem.PTE_W); err != nil {
		panic("vm: kernel heap mapping failed: " + err.Error())
	}
	return m
}

/// Frames exposes the manager's frame allocator to callers that need raw
/// frames outside of a mapped range. Task kernel/user stacks are ordinary
/// Go slices and do not come from here.
func (m *Manager) Frames() *mem.FrameAllocator {
	return m.fa
}

/// KernelRoot returns the physical address of the kernel's own L4 table,
/// the source every CreateUserSpace clone copies from.
func (m *Manager) KernelRoot() mem.Pa_t {
	return m.kernelRoot
}

func pageIndex(va uintptr, level int) int {
	// level 4 = PML4 (bits 39-47) ... level 1 = PT (bits 12-20).
	shift := uint(12 + 9*(level-1))
	return int((va >> shift) & 0x1ff)
}

// walk returns the level-1 PTE slot for va within root, allocating
// intermediate tables as needed (create=true) or failing if an
// intermediate table is absent (create=false). It never itself sets the
// leaf's PRESENT bit; callers fill in the final entry.
func (m *Manager) walk(root mem.Pa_t, va uintptr, create bool) (*mem.Pa_t, bool) {
	table := m.fa.Dmap(root)
	for level := pageTableLevels; level > 1; level-- {
		idx := pageIndex(va, level)
		entry := table[idx]
		if entry&mem.PTE_P == 0 {
			if !create {
				return nil, false
			}
			frame, ok := m.fa.AllocZeroed()
			if !ok {
				return nil, false
			}
			entry = frame | mem.PTE_P | mem.PTE_W | mem.PTE_U
			table[idx] = entry
		}
		if entry&mem.PTE_PS != 0 {
			// huge page terminal above level 1: nothing further to walk.
			return &table[idx], true
		}
		table = m.fa.Dmap(entry & mem.PTE_ADDR)
	}
	idx := pageIndex(va, 1)
	return &table[idx], true
}

/// AllocatePages maps `[start, start+size)` one 4 KiB page at a time into
/// root, each backed by a freshly allocated, zeroed frame, with flags
/// (spec.md §4.1 "allocate_pages(root_phys, start, size, flags)"). On
/// allocator exhaustion it returns ErrOutOfMemory; pages already mapped
/// before the failure are left in place (spec.md §9 open question 4: "no
/// unwind runs").
func (m *Manager) AllocatePages(root mem.Pa_t, start uintptr, size int, flags mem.Pa_t) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := start + uintptr(size)
	for va := start - (start % uintptr(mem.PGSIZE)); va < end; va += uintptr(mem.PGSIZE) {
		frame, ok := m.fa.AllocZeroed()
		if !ok {
			return ErrOutOfMemory
		}
		pte, ok := m.walk(root, va, true)
		if !ok {
			return ErrOutOfMemory
		}
		*pte = frame | flags | mem.PTE_P
	}
	return nil
}

/// CreateUserSpace allocates one fresh L4 frame, zeroes it, then
/// recursively copies entries from the kernel L4 so every kernel virtual
/// address remains valid after a cr3 switch into the new space (spec.md
/// §4.1). cloneLevel gives the new space its own copy of every
/// intermediate table and shares only the leaf and huge-page frames, so
/// page-table changes made later in either space (such as AllocatePages
/// into the new root) do not appear in the other.
func (m *Manager) CreateUserSpace() (mem.Pa_t, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root, ok := m.fa.AllocZeroed()
	if !ok {
		return 0, ErrOutOfMemory
	}
	if err := m.cloneLevel(root, m.kernelRoot, pageTableLevels); err != nil {
		return 0, err
	}
	return root, nil
}

// cloneLevel copies every present entry of src into dst at the given
// paging level. At a non-leaf, non-huge entry it allocates a fresh table
// in the destination and recurses (spec.md: "at a non-leaf non-huge entry
// it allocates a new table, sets it in the destination, and recurses");
// at a huge entry or a level-1 leaf it copies the address and flags
// verbatim, aliasing the same physical frame.
func (m *Manager) cloneLevel(dst, src mem.Pa_t, level int) error {
	dstTable := m.fa.Dmap(dst)
	srcTable := m.fa.Dmap(src)
	for i, entry := range srcTable {
		if entry&mem.PTE_P == 0 {
			continue
		}
		if level == 1 || entry&mem.PTE_PS != 0 {
			dstTable[i] = entry
			continue
		}
		child, ok := m.fa.AllocZeroed()
		if !ok {
			return ErrOutOfMemory
		}
		dstTable[i] = child | (entry &^ mem.PTE_ADDR)
		if err := m.cloneLevel(child, entry&mem.PTE_ADDR, level-1); err != nil {
			return err
		}
	}
	return nil
}

/// SwitchTo writes phys into cr3 (spec.md §4.1 "switch_to(phys_addr)").
/// The caller is responsible for ensuring the new space contains the
/// currently executing kernel code, guaranteed here by CreateUserSpace's
/// kernel-page-copy discipline.
func (m *Manager) SwitchTo(phys mem.Pa_t) {
	arch.WriteCR3(uintptr(phys))
}

/// Translate returns the physical frame currently mapped at va within
/// root, used by the user-copy helpers in userbuf.go and by the ELF
/// loader's segment copy.
func (m *Manager) Translate(root mem.Pa_t, va uintptr) (mem.Pa_t, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pte, ok := m.walk(root, va, false)
	if !ok || *pte&mem.PTE_P == 0 {
		return 0, false
	}
	return *pte & mem.PTE_ADDR, true
}
