// Package registry implements the box registry: an authoritative table of
// at most MaxNBoxes boxes, grounded on mbroker.c's boxes[]/free_boxes[]
// package-level arrays and box_lookup. Here it is a value owned by the
// broker and shared by reference, not a process global.
package registry

import (
	"errors"
	"sync"

	"github.com/adred-codev/boxbroker/internal/wire"
)

// ErrNotFound is returned by Lookup-dependent operations when no box with
// the given name exists.
var ErrNotFound = errors.New("registry: box not found")

// ErrAlreadyExists is returned by Create when a box with the given name
// already exists.
var ErrAlreadyExists = errors.New("registry: box already exists")

// ErrFull is returned by Create when every slot is occupied.
var ErrFull = errors.New("registry: at capacity")

// Box is a snapshot of one registry slot's public fields.
type Box struct {
	Name         string
	Size         uint64
	NPublishers  uint64
	NSubscribers uint64
}

type slot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	free   bool
	box    Box
}

// Registry is the fixed table of box slots plus the registry-wide lock
// that guards slot allocation/freeing and lookup (mbroker.c's implicit
// free_boxes_lock — made explicit here).
type Registry struct {
	freeBoxesLock sync.Mutex
	slots         []slot
}

// New creates a registry with capacity n (MaxNBoxes = 23).
func New(n int) *Registry {
	r := &Registry{slots: make([]slot, n)}
	for i := range r.slots {
		r.slots[i].free = true
		r.slots[i].cond = sync.NewCond(&r.freeBoxesLock)
	}
	return r
}

// Lookup returns the slot index of the box named name, or -1 if absent.
// Callers wanting to act on the result under lock should hold
// r.freeBoxesLock for the lookup-then-act sequence; Lookup itself takes
// and releases it, so it is only safe standalone for a read that doesn't
// need to be atomic with a following mutation.
func (r *Registry) Lookup(name string) int {
	r.freeBoxesLock.Lock()
	defer r.freeBoxesLock.Unlock()
	return r.lookupLocked(name)
}

// LookupLocked is Lookup for callers that already hold the registry-wide
// lock (via Lock/Unlock) and need to look up a box as part of a larger
// atomic lookup-then-mutate sequence, e.g. box removal or publisher
// admission.
func (r *Registry) LookupLocked(name string) int {
	return r.lookupLocked(name)
}

func (r *Registry) lookupLocked(name string) int {
	for i := range r.slots {
		s := &r.slots[i]
		s.mu.Lock()
		match := !s.free && s.box.Name == name
		s.mu.Unlock()
		if match {
			return i
		}
	}
	return -1
}

// Create allocates the first free slot for name with size=0 (a new box
// starts empty, never at capacity), both counts 0. Returns the slot
// index.
func (r *Registry) Create(name string) (int, error) {
	r.freeBoxesLock.Lock()
	defer r.freeBoxesLock.Unlock()

	if r.lookupLocked(name) != -1 {
		return -1, ErrAlreadyExists
	}
	for i := range r.slots {
		s := &r.slots[i]
		s.mu.Lock()
		if s.free {
			s.free = false
			s.box = Box{Name: name}
			s.mu.Unlock()
			return i, nil
		}
		s.mu.Unlock()
	}
	return -1, ErrFull
}

// Remove frees slot i (the caller must already hold the slot's identity
// via a prior Lookup under the registry-wide lock) and broadcasts on its
// condition variable so waiting subscribers wake and observe the box is
// gone.
func (r *Registry) Remove(i int) {
	s := &r.slots[i]
	s.mu.Lock()
	s.free = true
	s.box = Box{}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// IsFree reports whether slot i is currently free, without taking the
// registry-wide lock; used by session loops that already hold it.
func (r *Registry) IsFree(i int) bool {
	s := &r.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free
}

// Snapshot returns a copy of slot i's box state.
func (r *Registry) Snapshot(i int) Box {
	s := &r.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.box
}

// TryAcquirePublisher sets slot i's publisher count to 1 if currently 0
// and the box isn't full. Returns false if the box already has a
// publisher or is full.
func (r *Registry) TryAcquirePublisher(i int) bool {
	s := &r.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.free {
		return false
	}
	if s.box.NPublishers == 1 || s.box.Size >= wire.BoxSize {
		return false
	}
	s.box.NPublishers = 1
	return true
}

// ReleasePublisher clears slot i's publisher count.
func (r *Registry) ReleasePublisher(i int) {
	s := &r.slots[i]
	s.mu.Lock()
	s.box.NPublishers = 0
	s.mu.Unlock()
}

// AddSubscriber increments slot i's subscriber count.
func (r *Registry) AddSubscriber(i int) {
	s := &r.slots[i]
	s.mu.Lock()
	s.box.NSubscribers++
	s.mu.Unlock()
}

// RemoveSubscriber decrements slot i's subscriber count.
func (r *Registry) RemoveSubscriber(i int) {
	s := &r.slots[i]
	s.mu.Lock()
	if s.box.NSubscribers > 0 {
		s.box.NSubscribers--
	}
	s.mu.Unlock()
}

// GrowAndNotify adds n bytes to slot i's recorded size and broadcasts to
// any subscriber waiting on its condition variable. It returns the slot's
// size after growth. The broadcast is taken under both the slot mutex and
// the registry-wide lock so it can never land in the gap between a
// waiter's last condition check and its Wait call.
func (r *Registry) GrowAndNotify(i int, n int) uint64 {
	r.freeBoxesLock.Lock()
	defer r.freeBoxesLock.Unlock()

	s := &r.slots[i]
	s.mu.Lock()
	s.box.Size += uint64(n)
	size := s.box.Size
	s.cond.Broadcast()
	s.mu.Unlock()
	return size
}

// Wait blocks the calling goroutine on slot i's condition variable. The
// caller must hold the registry-wide lock (r.freeBoxesLock): the condvar
// is associated with freeBoxesLock, not the per-slot mutex, even though
// broadcasts happen under the per-slot mutex. Breaking this pairing loses
// wakeups.
func (r *Registry) Wait(i int) {
	r.slots[i].cond.Wait()
}

// Lock/Unlock expose the registry-wide lock for callers (subscriber
// session loop) that must hold it across a lookup-then-wait sequence.
func (r *Registry) Lock()   { r.freeBoxesLock.Lock() }
func (r *Registry) Unlock() { r.freeBoxesLock.Unlock() }

// List returns a snapshot of every live box, in slot order. The walk
// happens entirely under the registry-wide lock, so the returned set is
// exactly the set of boxes that existed at the moment the walk began.
func (r *Registry) List() []Box {
	r.freeBoxesLock.Lock()
	defer r.freeBoxesLock.Unlock()

	out := make([]Box, 0, len(r.slots))
	for i := range r.slots {
		s := &r.slots[i]
		s.mu.Lock()
		if !s.free {
			out = append(out, s.box)
		}
		s.mu.Unlock()
	}
	return out
}

// Cap returns the registry's fixed slot count (MaxNBoxes).
func (r *Registry) Cap() int {
	return len(r.slots)
}
