package vm

import (
	"errors"

	"mem"
)

// ErrFault is returned by the copy helpers when a requested user virtual
// address range is not (fully) mapped present in the given address space.
var ErrFault = errors.New("vm: user address not mapped")

/// CopyFromUser copies length bytes starting at the user virtual address
/// uva in the address space rooted at root into a freshly returned slice.
/// It walks one page at a time via Manager.Translate so the copy is
/// correct across page boundaries, the same concern the teacher's
/// Userbuf_t addressed with its "at most one page at a time" reads.
func (m *Manager) CopyFromUser(root mem.Pa_t, uva uintptr, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	for len(out) < length {
		page := uva &^ uintptr(mem.PGOFFSET)
		off := int(uva - page)
		n := mem.PGSIZE - off
		if remain := length - len(out); n > remain {
			n = remain
		}
		frame, ok := m.Translate(root, page)
		if !ok {
			return nil, ErrFault
		}
		src := m.fa.Dmap8(frame | mem.Pa_t(off))
		out = append(out, src[:n]...)
		uva += uintptr(n)
	}
	return out, nil
}

/// CopyToUser writes data into the user virtual address uva within root,
/// one page at a time, mirroring CopyFromUser. The ELF loader uses it to
/// place PT_LOAD bytes; the console write syscall reads the user buffer
/// with CopyFromUser instead.
func (m *Manager) CopyToUser(root mem.Pa_t, uva uintptr, data []byte) error {
	written := 0
	for written < len(data) {
		page := uva &^ uintptr(mem.PGOFFSET)
		off := int(uva - page)
		n := mem.PGSIZE - off
		if remain := len(data) - written; n > remain {
			n = remain
		}
		frame, ok := m.Translate(root, page)
		if !ok {
			return ErrFault
		}
		dst := m.fa.Dmap8(frame | mem.Pa_t(off))
		copy(dst[:n], data[written:written+n])
		written += n
		uva += uintptr(n)
	}
	return nil
}
