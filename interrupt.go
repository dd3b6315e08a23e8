package mobcan

import (
	"math/bits"

	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/hw"
)

// HandleInterrupt services every message object with a pending event,
// lowest index first. Init installs it on the controller, which never runs
// it concurrently with itself.
func (d *Driver) HandleInterrupt() {
	d.stats.isrCount.Add(1)
	pending := d.ctrl.Pending()
	for pending != 0 {
		index := bits.TrailingZeros32(pending)
		pending &^= 1 << index
		events := d.ctrl.Status(index)
		switch {
		case index == 0 && events&hw.TxOK != 0:
			d.ctrl.Ack(0, hw.TxOK)
			d.drain()
		case index > 0 && events&hw.RxOK != 0:
			d.receiveMailbox(index)
		default:
			// Not expected on this object, acknowledge so it does not stay pending
			d.ctrl.Ack(index, events)
		}
	}
}

func (d *Driver) receiveMailbox(index int) {
	idt, dlc, data := d.ctrl.Read(index)
	frame := can.Frame{ID: d.enc.FromIDT(idt), DLC: dlc, Data: data}
	d.capture(index-1, frame)
	d.ctrl.Ack(index, hw.RxOK)
	if d.mobs[index].allocated {
		d.arm(index)
	}
	if d.listener != nil {
		d.listener.Handle(frame)
	}
}
