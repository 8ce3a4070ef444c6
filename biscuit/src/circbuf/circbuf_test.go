package circbuf

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	var cb Circbuf_t
	cb.Set(make([]uint8, 4))

	if n := cb.Write([]uint8{1, 2, 3}); n != 3 {
		t.Fatalf("Write = %d, want 3", n)
	}
	if cb.Used() != 3 || cb.Left() != 1 {
		t.Fatalf("Used=%d Left=%d, want 3/1", cb.Used(), cb.Left())
	}

	dst := make([]uint8, 2)
	if n := cb.Read(dst); n != 2 || dst[0] != 1 || dst[1] != 2 {
		t.Fatalf("Read = %d %v, want 2 [1 2]", n, dst)
	}
}

func TestWriteStopsAtCapacity(t *testing.T) {
	var cb Circbuf_t
	cb.Set(make([]uint8, 2))
	if n := cb.Write([]uint8{1, 2, 3, 4}); n != 2 {
		t.Fatalf("Write = %d, want 2 (capacity-limited)", n)
	}
	if !cb.Full() {
		t.Fatal("expected buffer to report full")
	}
}

func TestWrapsAroundAfterDrain(t *testing.T) {
	var cb Circbuf_t
	cb.Set(make([]uint8, 3))
	cb.Write([]uint8{1, 2, 3})
	cb.Read(make([]uint8, 2)) // drain 2, tail now at 2, head at 3
	n := cb.Write([]uint8{4, 5})
	if n != 2 {
		t.Fatalf("Write after drain = %d, want 2", n)
	}
	out := make([]uint8, 3)
	got := cb.Read(out)
	if got != 3 {
		t.Fatalf("Read = %d, want 3", got)
	}
	want := []uint8{3, 4, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}
