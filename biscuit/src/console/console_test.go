package console

import (
	"bytes"
	"testing"
)

func TestWriteForwardsCleanText(t *testing.T) {
	var dev bytes.Buffer
	s := NewSink(&dev)

	n, err := s.Write([]byte("hello kernel\n"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if n != len("hello kernel\n") {
		t.Fatalf("Write returned n=%d, want %d", n, len("hello kernel\n"))
	}
	if dev.String() != "hello kernel\n" {
		t.Fatalf("device got %q, want %q", dev.String(), "hello kernel\n")
	}
}

func TestWriteSanitizesInvalidUTF8(t *testing.T) {
	var dev bytes.Buffer
	s := NewSink(&dev)

	// 0xff is never a valid UTF-8 lead byte.
	if _, err := s.Write([]byte{'o', 'k', 0xff, 'o', 'k'}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	got := dev.Bytes()
	if bytes.IndexByte(got, 0xff) >= 0 {
		t.Fatalf("sanitized output still contains the raw invalid byte: %q", got)
	}
	if !bytes.HasPrefix(got, []byte("ok")) || !bytes.HasSuffix(got, []byte("ok")) {
		t.Fatalf("sanitized output dropped valid bytes around the invalid one: %q", got)
	}
}

func TestWriteWithNilDeviceStillBuffersHistory(t *testing.T) {
	s := NewSink(nil)

	if _, err := s.Write([]byte("buffered\n")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	out := make([]byte, 64)
	n := s.History(out)
	if string(out[:n]) != "buffered\n" {
		t.Fatalf("History = %q, want %q", out[:n], "buffered\n")
	}
}

func TestHistoryAccumulatesAcrossWrites(t *testing.T) {
	s := NewSink(nil)
	s.Write([]byte("first "))
	s.Write([]byte("second"))

	out := make([]byte, 64)
	n := s.History(out)
	if string(out[:n]) != "first second" {
		t.Fatalf("History = %q, want %q", out[:n], "first second")
	}
}

func TestSetDeviceRedirectsFutureWrites(t *testing.T) {
	s := NewSink(nil)
	s.Write([]byte("before"))

	var dev bytes.Buffer
	s.SetDevice(&dev)
	s.Write([]byte("after"))

	if dev.String() != "after" {
		t.Fatalf("device got %q, want %q", dev.String(), "after")
	}
}
