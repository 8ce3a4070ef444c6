// Package console is the RL4 kernel's VGA text sink (SPEC_FULL.md's
// ambient logging concern): fmt.Fprintf's destination for every kernel
// diagnostic, and the byte destination of the write(ptr,len) syscall.
// Grounded on circbuf.Circbuf_t for history buffering and on
// golang.org/x/text/runes for the UTF-8 sanitization SPEC_FULL.md's
// DOMAIN STACK section calls for: a write syscall hands over raw user
// bytes, and those are never trusted to be well-formed text before they
// reach the screen.
package console

import (
	"io"
	"sync"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"circbuf"
)

// historyBytes is the size of the scrollback ring buffer for Sink,
// sized generously past a screen's worth of text (vgaCols*vgaRows).
const historyBytes = 16 * 1024

/// Sink is the console's software side: a UTF-8-sanitizing io.Writer
/// backed by a history ring buffer, fanning out to an optional device
/// (a VGA writer in the booted kernel, a bytes.Buffer or nil in tests).
/// Safe for concurrent use; every kernel task may fmt.Fprintf into the
/// same Sink.
type Sink struct {
	mu      sync.Mutex
	history circbuf.Circbuf_t
	device  io.Writer
	xform   transform.Transformer
}

/// NewSink constructs a Sink with a historyBytes-sized scrollback buffer
/// and device as the underlying text destination.
/// device may be nil, in which case writes are sanitized and buffered
/// into history but otherwise discarded -- the state early boot code is
/// in before a real VGA writer exists.
func NewSink(device io.Writer) *Sink {
	s := &Sink{device: device}
	s.history.Set(make([]uint8, historyBytes))
	s.xform = runes.ReplaceIllFormed()
	return s
}

/// SetDevice installs (or replaces) the sink's underlying device, used
/// once the kernel has mapped the real VGA framebuffer and wants to
/// upgrade a history-only Sink into one that also paints the screen.
func (s *Sink) SetDevice(device io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
}

/// Write implements io.Writer: p is run through the UTF-8 sanitizer,
/// appended to the history ring (Circbuf_t is a bounded queue, so bytes
/// stop accumulating once History hasn't been read in a while, the same
/// backpressure circbuf always had), and forwarded to device if one is
/// installed. It always reports having consumed all of p, matching
/// fmt.Fprintf's expectations for a sink that can never meaningfully
/// fail.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// sanitize uses the shared transformer, so it runs under the lock too.
	clean := s.sanitize(p)
	s.history.Write(clean)
	if s.device != nil {
		s.device.Write(clean)
	}
	return len(p), nil
}

// sanitize runs p through the transformer in one shot, growing the
// destination buffer if the transformer reports it ran out of room
// (ErrShortDst), which golang.org/x/text/transform.String-family helpers
// handle the same way internally.
func (s *Sink) sanitize(p []byte) []byte {
	dst := make([]byte, len(p)+utf8MaxExpansion(len(p)))
	for {
		n, _, err := s.xform.Transform(dst, p, true)
		if err == transform.ErrShortDst {
			dst = make([]byte, len(dst)*2)
			continue
		}
		s.xform.Reset()
		return dst[:n]
	}
}

// utf8MaxExpansion bounds how much larger the sanitized output can get
// than the input: replacing a single invalid byte with the 3-byte
// encoding of U+FFFD can at most triple the buffer.
func utf8MaxExpansion(n int) int {
	return 2 * n
}

/// History copies the sink's buffered scrollback into dst, returning the
/// number of bytes copied, the oldest-first ordering Circbuf_t.Read
/// already provides.
func (s *Sink) History(dst []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Read(dst)
}
