// Package elf is the ELF loader, spec.md's C8: "Parse ELF64, validate
// range, allocate and copy PT_LOAD segments into a new user address
// space." The teacher's own devtool (biscuit/src/chentry, formerly
// biscuit/src/kernel) already reaches for the standard library's
// debug/elf to inspect and patch kernel images at build time; this
// package uses the same package for the kernel-resident loader, parsing
// the bytes new_user_task hands it at boot/task-creation time rather
// than a file on disk.
package elf

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"

	"mem"
	"vm"
)

// ErrBadMagic is returned when the first four bytes are not the ELF
// magic, matching spec.md §4.5 step 1's literal message.
var ErrBadMagic = errors.New("Invalid ELF file")

// ErrSegmentOutOfRange is returned when a PT_LOAD segment does not lie
// entirely within [vm.UserCodeStart, vm.UserCodeEnd), matching spec.md
// §4.5 step 4's literal message.
var ErrSegmentOutOfRange = errors.New("ELF segment outside allowed range")

/// Loaded describes a successfully loaded ELF64 executable: its entry
/// point and the user address space it was mapped into.
type Loaded struct {
	Entry uintptr
	Root  mem.Pa_t
}

/// Load validates bin as a 64-bit ELF executable, creates a fresh user
/// address space via mgr, and copies every PT_LOAD segment into it.
/// Steps follow spec.md §4.5 new_user_task 1-4 exactly; step 5 (stack
/// allocation and context setup) is the caller's responsibility (proc),
/// since it concerns task construction rather than the binary image.
func Load(mgr *vm.Manager, bin []byte) (*Loaded, error) {
	if len(bin) < 4 || bin[0] != 0x7f || !bytes.Equal(bin[1:4], []byte("ELF")) {
		return nil, ErrBadMagic
	}

	ef, err := elf.NewFile(bytes.NewReader(bin))
	if err != nil {
		return nil, ErrBadMagic
	}
	if ef.Class != elf.ELFCLASS64 {
		return nil, ErrBadMagic
	}

	root, err := mgr.CreateUserSpace()
	if err != nil {
		return nil, fmt.Errorf("elf: create user space: %w", err)
	}
	mgr.SwitchTo(root)

	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		vaddr := uintptr(prog.Vaddr)
		end := vaddr + uintptr(prog.Memsz)
		if vaddr < vm.UserCodeStart || end > vm.UserCodeEnd || end < vaddr {
			return nil, ErrSegmentOutOfRange
		}

		if err := mgr.AllocatePages(root, vaddr, int(prog.Memsz), mem.PTE_P|mem.PTE_W|mem.PTE_U); err != nil {
			return nil, fmt.Errorf("elf: map segment: %w", err)
		}

		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("elf: read segment: %w", err)
		}
		// Bytes in [Filesz, Memsz) are left zero: AllocatePages backs
		// every page with a freshly zeroed frame (spec.md §9 open
		// question 2).
		if err := mgr.CopyToUser(root, vaddr, data); err != nil {
			return nil, fmt.Errorf("elf: copy segment: %w", err)
		}
	}

	return &Loaded{Entry: uintptr(ef.Entry), Root: root}, nil
}
