package mobcan

import (
	"fmt"

	"github.com/mobcan/mobcan/internal/fifo"
	"github.com/mobcan/mobcan/pkg/hw"
	log "github.com/sirupsen/logrus"
)

// State of the transmit mailbox
type TxState uint8

const (
	TxIdle TxState = iota
	TxLoading
	TxTransmitting
	TxDraining
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxLoading:
		return "loading"
	case TxTransmitting:
		return "transmitting"
	case TxDraining:
		return "draining"
	}
	return "unknown"
}

// Transmit sends data with the identifier given to Init
func (d *Driver) Transmit(data []byte) error {
	return d.transmit(d.txID, data)
}

// TransmitID sends data with the given identifier
func (d *Driver) TransmitID(id uint32, data []byte) error {
	if id > d.enc.MaxID() {
		return fmt.Errorf("%w : tx id x%x", ErrInvalidID, id)
	}
	return d.transmit(id, data)
}

// An idle transmit mailbox is loaded directly. Otherwise the frame is queued
// and sent by the interrupt handler once the mailbox is free. When the queue
// is full the configured overflow policy applies : Reject returns
// ErrQueueOverflow, DropOldest replaces the oldest queued frame.
func (d *Driver) transmit(id uint32, data []byte) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	if len(data) > 8 {
		return fmt.Errorf("%w : %v bytes", ErrInvalidLength, len(data))
	}
	entry := fifo.Entry{ID: id, DLC: uint8(len(data))}
	copy(entry.Data[:], data)

	// Deciding between the mailbox and the queue must not interleave with a
	// completion, or an entry queued just after the handler found the queue
	// empty would never be sent.
	state := d.ctrl.Disable()
	if d.txState == TxIdle {
		d.load(entry)
		d.ctrl.Restore(state)
		d.stats.txDirect.Add(1)
		return nil
	}
	overwritten, err := d.queue.Put(entry)
	d.ctrl.Restore(state)

	if err != nil {
		d.stats.txRejected.Add(1)
		log.Warnf("[DRIVER][TX] queue full (%v entries), rejected x%x", d.queue.Cap(), id)
		return fmt.Errorf("%w : %v entries", ErrQueueOverflow, d.queue.Cap())
	}
	if overwritten {
		d.stats.txOverwritten.Add(1)
		log.Warnf("[DRIVER][TX] queue full (%v entries), oldest frame dropped", d.queue.Cap())
	}
	d.stats.txQueued.Add(1)
	return nil
}

// load programs the transmit mailbox and starts transmission.
// Runs with interrupts disabled or in interrupt context.
func (d *Driver) load(entry fifo.Entry) {
	d.txState = TxLoading
	d.ctrl.Write(0, entry.Data[:entry.DLC])
	d.ctrl.Arm(0, hw.MobConfig{
		IDT:  d.enc.ToIDT(entry.ID),
		IDM:  ^uint32(0),
		IDE:  d.enc.Extended(),
		Mode: hw.ModeTransmit,
		DLC:  entry.DLC,
	})
	d.txState = TxTransmitting
}

// drain runs in interrupt context once a transmission completed
func (d *Driver) drain() {
	d.txState = TxDraining
	entry, ok := d.queue.Get()
	if !ok {
		d.txState = TxIdle
		return
	}
	d.load(entry)
	d.stats.txDrained.Add(1)
}

func (d *Driver) TxState() TxState {
	state := d.ctrl.Disable()
	defer d.ctrl.Restore(state)
	return d.txState
}

// Queued returns the number of frames waiting for the transmit mailbox
func (d *Driver) Queued() int {
	return d.queue.GetOccupied()
}
