package mobcan

import (
	"fmt"
	"math/bits"

	"github.com/mobcan/mobcan/pkg/can"
	log "github.com/sirupsen/logrus"
)

// IsMessageAvailable reports whether any receive slot holds an unread frame
func (d *Driver) IsMessageAvailable() bool {
	return d.loadWord(&d.pending) != 0
}

// Receive returns the oldest unread frame of the highest priority mailbox,
// i.e. the lowest pending slot. The returned ID is the bare identifier.
//
// The copy is optimistic : the pending bit is cleared, the slot copied, then
// the bit checked again. A set bit means the interrupt handler stored a new
// frame during the copy, so the copy is discarded and redone. The caller
// always gets one complete snapshot. If the slot is rewritten during more
// than MaxReadRetries consecutive copies, ErrRetryCeiling is returned and
// the frame stays pending.
func (d *Driver) Receive() (can.Frame, error) {
	if !d.initialized {
		return can.Frame{}, ErrNotInitialized
	}
	pending := d.loadWord(&d.pending)
	if pending == 0 {
		return can.Frame{}, ErrNoMessage
	}
	slot := bits.TrailingZeros32(pending)
	bit := uint32(1) << slot
	var words [slotWords]uint32
	for attempt := 0; ; attempt++ {
		if attempt > d.cfg.MaxReadRetries {
			d.stats.rxRetryCeiling.Add(1)
			log.Errorf("[DRIVER][RX] mailbox %v rewritten during %v consecutive copies, giving up", slot+1, attempt)
			return can.Frame{}, fmt.Errorf("%w : mailbox %v", ErrRetryCeiling, slot+1)
		}
		d.clearPending(bit)
		for i := range words {
			words[i] = d.loadWord(&d.slots[slot].words[i])
			if d.copyHook != nil {
				d.copyHook(slot, i)
			}
		}
		if d.loadWord(&d.pending)&bit == 0 {
			break
		}
		d.stats.rxRetries.Add(1)
	}
	d.stats.rxDelivered.Add(1)
	return frameFromWords(words), nil
}

// ReceiveInto is like Receive but copies the payload into data, which must
// hold 8 bytes. It returns the identifier and the payload length.
func (d *Driver) ReceiveInto(data []byte) (uint32, int, error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("%w : receive buffer of %v bytes", ErrIllegalArgument, len(data))
	}
	frame, err := d.Receive()
	if err != nil {
		return 0, 0, err
	}
	n := copy(data, frame.Payload())
	return frame.ID, n, nil
}
