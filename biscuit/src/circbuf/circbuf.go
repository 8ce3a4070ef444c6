// Package circbuf is a small fixed-capacity ring buffer. The teacher's
// original (biscuit/src/circbuf) backs pipes and TCP sockets: it lazily
// allocates its storage from a mem.Page_i page allocator and moves bytes
// via the fdops.Userio_i copy-to/from-user interface, neither of which
// exists in this core (no files, no sockets, no per-fd user-copy
// abstraction -- console writes go through vm.Manager.CopyFromUser
// directly). What's kept is the ring-buffer index arithmetic itself
// (head/tail counters, Full/Empty/Left/Used, Advhead/Advtail), now backed
// by a plain byte slice supplied by the caller instead of a physical
// page, since console.Sink only ever needs an in-process byte buffer.
package circbuf

// Circbuf_t is a single-producer single-consumer byte ring buffer. It is
// not safe for concurrent use; callers serialize access themselves
// (console.Sink does so with its own mutex).
type Circbuf_t struct {
	Buf   []uint8 // underlying buffer backing memory
	bufsz int     // buffer capacity in bytes
	head  int     // write position
	tail  int     // read position
}

/// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

/// Set installs buf as the ring buffer's backing storage.
func (cb *Circbuf_t) Set(buf []uint8) {
	cb.Buf = buf
	cb.bufsz = len(buf)
	cb.head, cb.tail = 0, 0
}

/// Full returns true when the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

/// Empty reports whether the buffer contains any data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

/// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

/// Used returns the current number of bytes in the buffer.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

/// Write copies as much of src into the buffer as fits, returning the
/// number of bytes actually written.
func (cb *Circbuf_t) Write(src []uint8) int {
	n := 0
	for n < len(src) && !cb.Full() {
		cb.Buf[cb.head%cb.bufsz] = src[n]
		cb.head++
		n++
	}
	return n
}

/// Read copies as much of the buffered data into dst as fits, returning
/// the number of bytes actually read and advancing the tail.
func (cb *Circbuf_t) Read(dst []uint8) int {
	n := 0
	for n < len(dst) && !cb.Empty() {
		dst[n] = cb.Buf[cb.tail%cb.bufsz]
		cb.tail++
		n++
	}
	return n
}

/// Advhead advances the head index allowing previously written bytes to
/// be read, used when a caller writes directly into a slice obtained
/// elsewhere instead of through Write.
func (cb *Circbuf_t) Advhead(sz int) {
	if cb.Left() < sz {
		panic("circbuf: advancing past capacity")
	}
	cb.head += sz
}

/// Advtail advances the tail index after data has been consumed directly.
func (cb *Circbuf_t) Advtail(sz int) {
	if cb.Used() < sz {
		panic("circbuf: advancing past available data")
	}
	cb.tail += sz
}
