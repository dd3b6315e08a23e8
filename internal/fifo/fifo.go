// Package fifo implements the bounded circular queue used to hold frames
// waiting for the transmit message object.
//
// The queue is single producer / single consumer : writePos is only advanced
// by Put and readPos only by Get, so the two sides never write the same index.
// The one exception is the DropOldest policy, where a Put on a full queue
// advances readPos; callers must hold off the consumer while doing so.
package fifo

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrFull = errors.New("fifo full")

// Policy applied by Put when the queue is full
type Policy uint8

const (
	Reject     Policy = iota // refuse the new entry
	DropOldest               // overwrite the oldest unsent entry
)

func (p Policy) String() string {
	switch p {
	case Reject:
		return "reject"
	case DropOldest:
		return "drop-oldest"
	}
	return fmt.Sprintf("unknown policy %d", uint8(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "reject", "":
		return Reject, nil
	case "drop-oldest", "overwrite":
		return DropOldest, nil
	}
	return Reject, fmt.Errorf("invalid overflow policy : %q", s)
}

// A queued frame
type Entry struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

// Circular Fifo of frames
type Fifo struct {
	buffer   []Entry
	writePos atomic.Uint32
	readPos  atomic.Uint32
	policy   Policy
}

// Create a fifo holding up to capacity entries.
// One extra slot is allocated so that writePos == readPos always means empty.
func NewFifo(capacity int, policy Policy) *Fifo {
	if capacity < 1 {
		capacity = 1
	}
	return &Fifo{buffer: make([]Entry, capacity+1), policy: policy}
}

func (f *Fifo) Reset() {
	f.readPos.Store(0)
	f.writePos.Store(0)
}

func (f *Fifo) Cap() int {
	return len(f.buffer) - 1
}

func (f *Fifo) Policy() Policy {
	return f.policy
}

func (f *Fifo) GetSpace() int {
	return f.Cap() - f.GetOccupied()
}

func (f *Fifo) GetOccupied() int {
	sizeOccupied := int(f.writePos.Load()) - int(f.readPos.Load())
	if sizeOccupied < 0 {
		sizeOccupied += len(f.buffer)
	}
	return sizeOccupied
}

func (f *Fifo) next(pos uint32) uint32 {
	pos++
	if int(pos) == len(f.buffer) {
		return 0
	}
	return pos
}

// Put appends an entry at writePos.
// On a full fifo, Reject returns ErrFull and DropOldest discards the entry at
// readPos and reports overwritten.
func (f *Fifo) Put(entry Entry) (overwritten bool, err error) {
	writePos := f.writePos.Load()
	writePosNext := f.next(writePos)
	if writePosNext == f.readPos.Load() {
		if f.policy != DropOldest {
			return false, ErrFull
		}
		f.readPos.Store(f.next(writePosNext))
		overwritten = true
	}
	f.buffer[writePos] = entry
	// Publish only once the entry is written
	f.writePos.Store(writePosNext)
	return overwritten, nil
}

// Get removes the entry at readPos
func (f *Fifo) Get() (Entry, bool) {
	readPos := f.readPos.Load()
	if readPos == f.writePos.Load() {
		return Entry{}, false
	}
	entry := f.buffer[readPos]
	f.readPos.Store(f.next(readPos))
	return entry, true
}
