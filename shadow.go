package mobcan

import (
	"encoding/binary"

	"github.com/mobcan/mobcan/pkg/can"
)

// Words of a receive slot, each one a single register-width access
const (
	wordID = iota
	wordDLC
	wordData0
	wordData1
	slotWords
)

// rxSlot is the software copy of the last frame captured by one receive
// mailbox. Slot i belongs to mailbox i+1 and to bit i of the pending set.
//
// The interrupt handler writes a full slot and then sets its pending bit.
// While the bit is clear the handler may rewrite the slot at any time.
type rxSlot struct {
	words [slotWords]uint32
}

func (s *rxSlot) store(id uint32, dlc uint8, data [8]byte) {
	s.words[wordID] = id
	s.words[wordDLC] = uint32(dlc)
	s.words[wordData0] = binary.LittleEndian.Uint32(data[0:4])
	s.words[wordData1] = binary.LittleEndian.Uint32(data[4:8])
}

func frameFromWords(words [slotWords]uint32) can.Frame {
	frame := can.Frame{ID: words[wordID], DLC: uint8(words[wordDLC])}
	binary.LittleEndian.PutUint32(frame.Data[0:4], words[wordData0])
	binary.LittleEndian.PutUint32(frame.Data[4:8], words[wordData1])
	return frame
}

// capture runs in interrupt context
func (d *Driver) capture(slot int, frame can.Frame) {
	d.slots[slot].store(frame.ID, frame.DLC, frame.Data)
	bit := uint32(1) << slot
	if d.pending&bit != 0 {
		// Previous frame never consumed, hardware keeps the newest
		d.stats.rxOverruns.Add(1)
	}
	d.pending |= bit
	d.stats.rxCaptures.Add(1)
}

// loadWord reads one shared word from mainline. On the target this is a
// plain load; interrupts are held off only for the duration of that load.
func (d *Driver) loadWord(word *uint32) uint32 {
	state := d.ctrl.Disable()
	value := *word
	d.ctrl.Restore(state)
	return value
}

// clearPending is the single read-modify-write of the pending set done by
// mainline
func (d *Driver) clearPending(bit uint32) {
	state := d.ctrl.Disable()
	d.pending &^= bit
	d.ctrl.Restore(state)
}
