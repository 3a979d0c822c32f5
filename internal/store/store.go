// Package store implements the byte-log store: a fixed pool of named,
// fixed-capacity append-only byte buffers, trimmed to the subset the
// broker actually needs (no directories, no symlinks, no external copy)
// and built as a value type instead of package globals.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/adred-codev/boxbroker/internal/wire"
)

// Mode composes the open flags accepted by Open.
type Mode int

const (
	// ModeCreate creates the named log if it doesn't already exist. Open
	// fails if the pool is full.
	ModeCreate Mode = 1 << iota
	// ModeTruncate zeroes the length of an existing log.
	ModeTruncate
	// ModeAppend starts the handle's write offset at the log's current
	// length instead of 0.
	ModeAppend
)

var (
	// ErrNotFound is returned by Open when the name doesn't exist and
	// ModeCreate was not given.
	ErrNotFound = errors.New("store: box not found")
	// ErrPoolFull is returned by Open(ModeCreate) when all inodes are in
	// use.
	ErrPoolFull = errors.New("store: inode pool full")
	// ErrStillLinked is returned by Unlink when the log has a single hard
	// link and at least one handle is still open on it. In the broker this
	// happens when a box is removed while a publisher or subscriber
	// session still holds its handle.
	ErrStillLinked = errors.New("store: refusing to unlink a singly-linked open file")
	// ErrBadHandle is returned when a Handle's inode slot was freed out
	// from under it.
	ErrBadHandle = errors.New("store: handle refers to a freed inode")
)

type inode struct {
	mu       sync.RWMutex
	inUse    bool
	name     string
	length   int
	links    int
	openCount int
	data     []byte // lazily allocated, capacity wire.BoxSize
}

// Store owns a fixed pool of inodes, each backing one named byte-log.
type Store struct {
	createMu sync.Mutex // serializes create, mirrors tfs_open_lock
	poolMu   sync.Mutex // protects inode allocation bookkeeping
	inodes   []inode
	byName   map[string]int
}

// New creates a store with capacity for n named logs.
func New(n int) *Store {
	return &Store{
		inodes: make([]inode, n),
		byName: make(map[string]int, n),
	}
}

// Handle is an open reference to a byte-log with its own read/write
// offset, mirroring the original's per-open-file-entry offsets.
type Handle struct {
	store   *Store
	inum    int
	mode    Mode
	offset  int
}

// Open opens name under mode. Handle 0 is a valid handle value; callers
// must not treat it as an error sentinel.
func (s *Store) Open(name string, mode Mode) (*Handle, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.poolMu.Lock()
	inum, ok := s.byName[name]
	s.poolMu.Unlock()

	reopenedOnCreate := false
	if !ok {
		if mode&ModeCreate == 0 {
			return nil, ErrNotFound
		}
		var err error
		inum, err = s.allocate(name)
		if err != nil {
			return nil, err
		}
	} else if mode&ModeCreate != 0 {
		// name already maps to an inode even though this is a create
		// call: a stale mapping survived an earlier Unlink that found
		// the inode still open. A box-create always means "start this
		// box empty", so reset the inode's contents the way a fresh
		// allocate would, regardless of why the old mapping lingered.
		reopenedOnCreate = true
	}

	in := &s.inodes[inum]
	in.mu.Lock()
	if mode&ModeTruncate != 0 || reopenedOnCreate {
		in.length = 0
		in.data = nil
	}
	offset := 0
	if mode&ModeAppend != 0 {
		offset = in.length
	}
	in.openCount++
	in.mu.Unlock()

	return &Handle{store: s, inum: inum, mode: mode, offset: offset}, nil
}

func (s *Store) allocate(name string) (int, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	if _, exists := s.byName[name]; exists {
		return 0, fmt.Errorf("store: %q already exists", name)
	}
	for i := range s.inodes {
		if !s.inodes[i].inUse {
			s.inodes[i] = inode{inUse: true, name: name, links: 1}
			s.byName[name] = i
			return i, nil
		}
	}
	return 0, ErrPoolFull
}

// Write appends bytes to the handle's log starting at its current offset,
// capping at wire.BoxSize. It returns the number of bytes actually
// written, which may be less than len(p) (or zero) if the log is full;
// that is not an error, the caller decides how to react to a short write.
func (h *Handle) Write(p []byte) (int, error) {
	s := h.store
	in := &s.inodes[h.inum]
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.inUse {
		return 0, ErrBadHandle
	}

	room := wire.BoxSize - h.offset
	if room <= 0 {
		return 0, nil
	}
	n := len(p)
	if n > room {
		n = room
	}
	if n == 0 {
		return 0, nil
	}

	if in.data == nil {
		in.data = make([]byte, 0, wire.BoxSize)
	}
	needed := h.offset + n
	if needed > len(in.data) {
		in.data = append(in.data, make([]byte, needed-len(in.data))...)
	}
	copy(in.data[h.offset:needed], p[:n])

	h.offset += n
	if h.offset > in.length {
		in.length = h.offset
	}
	return n, nil
}

// Read reads up to len(buf) bytes starting at the handle's offset and
// advances it. Returns (0, nil) at end of log, matching an ordinary
// short/empty read rather than io.EOF, because the subscriber loop
// distinguishes "nothing new yet" from "box gone" by other means.
func (h *Handle) Read(buf []byte) (int, error) {
	s := h.store
	in := &s.inodes[h.inum]
	in.mu.RLock()
	defer in.mu.RUnlock()

	if !in.inUse {
		return 0, ErrBadHandle
	}

	avail := in.length - h.offset
	if avail <= 0 {
		return 0, nil
	}
	n := len(buf)
	if n > avail {
		n = avail
	}
	copy(buf[:n], in.data[h.offset:h.offset+n])
	h.offset += n
	return n, nil
}

// Len returns the current length of the handle's underlying log.
func (h *Handle) Len() int {
	in := &h.store.inodes[h.inum]
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.length
}

// Close releases the handle. It does not affect the log's link count.
func (h *Handle) Close() error {
	in := &h.store.inodes[h.inum]
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.openCount > 0 {
		in.openCount--
	}
	return nil
}

// Unlink decrements name's hard-link count, freeing the inode and its data
// block once the count reaches zero and no handles remain open.
func (s *Store) Unlink(name string) error {
	s.poolMu.Lock()
	inum, ok := s.byName[name]
	s.poolMu.Unlock()
	if !ok {
		return ErrNotFound
	}

	in := &s.inodes[inum]
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.links <= 1 && in.openCount > 0 {
		return ErrStillLinked
	}

	in.links--
	if in.links <= 0 && in.openCount == 0 {
		in.inUse = false
		in.data = nil
		in.length = 0
		in.links = 0
		s.poolMu.Lock()
		delete(s.byName, name)
		s.poolMu.Unlock()
	}
	return nil
}
