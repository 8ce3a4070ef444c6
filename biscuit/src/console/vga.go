package console

import "mem"

// VGA text-mode geometry and the physical address of its framebuffer,
// standard PC platform constants unrelated to anything spec.md defines.
const (
	vgaCols      = 80
	vgaRows      = 25
	vgaPhysBase  = mem.Pa_t(0xb8000)
	vgaAttrWhite = 0x07
)

/// VGAWriter is an io.Writer that paints each byte it receives into the
/// VGA text-mode framebuffer via the kernel's physical direct map,
/// scrolling the screen up a line once the cursor runs off the bottom.
/// It is never exercised by this package's tests: fa.Dmap8 reinterprets
/// a fixed physical address as a live virtual one, which only holds
/// inside the booted kernel's own address space, never inside a hosted
/// test binary (see DESIGN.md's testing-policy note for console).
type VGAWriter struct {
	fa       *mem.FrameAllocator
	row, col int
}

/// NewVGAWriter wraps fa, the kernel's frame allocator and direct-map
/// source, as a VGA text console.
func NewVGAWriter(fa *mem.FrameAllocator) *VGAWriter {
	return &VGAWriter{fa: fa}
}

func (w *VGAWriter) cell() []uint8 {
	return w.fa.Dmap8(vgaPhysBase)[:vgaCols*vgaRows*2]
}

/// Write paints p one byte at a time, handling '\n' as a line break and
/// scrolling the framebuffer up when the cursor passes the last row.
func (w *VGAWriter) Write(p []byte) (int, error) {
	buf := w.cell()
	for _, b := range p {
		if b == '\n' {
			w.row++
			w.col = 0
		} else {
			off := (w.row*vgaCols + w.col) * 2
			buf[off] = b
			buf[off+1] = vgaAttrWhite
			w.col++
			if w.col == vgaCols {
				w.col = 0
				w.row++
			}
		}
		if w.row == vgaRows {
			w.scroll(buf)
			w.row = vgaRows - 1
		}
	}
	return len(p), nil
}

func (w *VGAWriter) scroll(buf []uint8) {
	copy(buf, buf[vgaCols*2:])
	blank := buf[(vgaRows-1)*vgaCols*2:]
	for i := 0; i < len(blank); i += 2 {
		blank[i] = ' '
		blank[i+1] = vgaAttrWhite
	}
}
