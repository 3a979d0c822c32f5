package store

import (
	"testing"

	"github.com/adred-codev/boxbroker/internal/wire"
)

func TestOpenCreateThenLookup(t *testing.T) {
	s := New(4)
	h, err := s.Open("/a", ModeCreate)
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	defer h.Close()

	if _, err := s.Open("/a", 0); err != nil {
		t.Fatalf("reopen without create: %v", err)
	}
}

func TestOpenWithoutCreateFailsOnMissing(t *testing.T) {
	s := New(4)
	if _, err := s.Open("/missing", 0); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPoolFull(t *testing.T) {
	s := New(1)
	h, err := s.Open("/a", ModeCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	if _, err := s.Open("/b", ModeCreate); err != ErrPoolFull {
		t.Fatalf("err = %v, want ErrPoolFull", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(4)
	w, err := s.Open("/a", ModeCreate|ModeAppend)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()

	msg1 := append([]byte("hello"), 0)
	msg2 := append([]byte("world"), 0)

	n, err := w.Write(msg1)
	if err != nil || n != len(msg1) {
		t.Fatalf("write msg1: n=%d err=%v", n, err)
	}
	n, err = w.Write(msg2)
	if err != nil || n != len(msg2) {
		t.Fatalf("write msg2: n=%d err=%v", n, err)
	}

	r, err := s.Open("/a", 0)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	buf := make([]byte, wire.BoxSize)
	n, err = r.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := len(msg1) + len(msg2)
	if n != want {
		t.Fatalf("read n=%d, want %d", n, want)
	}
	got := string(buf[:n])
	wantStr := "hello\x00world\x00"
	if got != wantStr {
		t.Fatalf("read content = %q, want %q", got, wantStr)
	}
}

func TestWriteCapsAtBoxSize(t *testing.T) {
	s := New(4)
	w, err := s.Open("/a", ModeCreate|ModeAppend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	full := make([]byte, wire.BoxSize)
	n, err := w.Write(full)
	if err != nil || n != wire.BoxSize {
		t.Fatalf("fill write: n=%d err=%v", n, err)
	}

	n, err = w.Write([]byte("x"))
	if err != nil {
		t.Fatalf("overflow write: %v", err)
	}
	if n != 0 {
		t.Fatalf("overflow write n=%d, want 0", n)
	}
}

func TestWritePartialWhenNearCapacity(t *testing.T) {
	s := New(4)
	w, err := s.Open("/a", ModeCreate|ModeAppend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	almost := make([]byte, wire.BoxSize-3)
	if _, err := w.Write(almost); err != nil {
		t.Fatalf("fill: %v", err)
	}

	n, err := w.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("partial write: %v", err)
	}
	if n != 3 {
		t.Fatalf("partial write n=%d, want 3", n)
	}
}

func TestUnlinkFreesSlotForReuse(t *testing.T) {
	s := New(1)
	h, err := s.Open("/a", ModeCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	h.Close()

	if err := s.Unlink("/a"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	if _, err := s.Open("/a", ModeCreate); err != nil {
		t.Fatalf("reuse name after unlink: %v", err)
	}
}

func TestUnlinkStillOpenReportsErrStillLinked(t *testing.T) {
	s := New(1)
	h, err := s.Open("/a", ModeCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	if err := s.Unlink("/a"); err != ErrStillLinked {
		t.Fatalf("unlink while open: err = %v, want ErrStillLinked", err)
	}
}

// TestReopenCreateResetsStaleData covers a create against a name whose
// byName mapping is still present because an earlier handle was never
// closed (and so Unlink refused to clear it): the reopened box must start
// empty rather than inherit the old inode's bytes.
func TestReopenCreateResetsStaleData(t *testing.T) {
	s := New(1)
	h, err := s.Open("/a", ModeCreate|ModeAppend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := h.Write(append([]byte("stale"), 0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// h is deliberately never closed, mirroring the leaked-handle bug.

	h2, err := s.Open("/a", ModeCreate)
	if err != nil {
		t.Fatalf("reopen create: %v", err)
	}
	defer h2.Close()

	if got := h2.Len(); got != 0 {
		t.Fatalf("len after reopen create = %d, want 0", got)
	}
	buf := make([]byte, wire.BoxSize)
	n, err := h2.Read(buf)
	if err != nil {
		t.Fatalf("read after reopen create: %v", err)
	}
	if n != 0 {
		t.Fatalf("read after reopen create returned %d bytes, want 0", n)
	}
}

func TestUnlinkMissingReturnsNotFound(t *testing.T) {
	s := New(1)
	if err := s.Unlink("/nope"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendModeStartsAtCurrentLength(t *testing.T) {
	s := New(4)
	w, err := s.Open("/a", ModeCreate|ModeAppend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	msg := append([]byte("abc"), 0)
	w.Write(msg)
	w.Close()

	w2, err := s.Open("/a", ModeAppend)
	if err != nil {
		t.Fatalf("reopen append: %v", err)
	}
	defer w2.Close()
	n, err := w2.Write([]byte("z"))
	if err != nil || n != 1 {
		t.Fatalf("append write: n=%d err=%v", n, err)
	}
	if got := w2.Len(); got != len(msg)+1 {
		t.Fatalf("len = %d, want %d", got, len(msg)+1)
	}
}

// TestHandleZeroIsValid documents that inode index 0 must not be treated
// as an error sentinel.
func TestHandleZeroIsValid(t *testing.T) {
	s := New(4)
	h, err := s.Open("/first", ModeCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()
	if h.inum != 0 {
		t.Fatalf("expected first allocation to land in inode 0, got %d", h.inum)
	}
}
