package mobcan

import (
	"fmt"

	"github.com/mobcan/mobcan/internal/fifo"
	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/hw"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultQueueCapacity  = 16
	DefaultMaxReadRetries = 32
	// One pending bit per receive mailbox
	maxRxMailboxes = 32
)

type OverflowPolicy = fifo.Policy

const (
	OverflowReject     = fifo.Reject
	OverflowDropOldest = fifo.DropOldest
)

type Config struct {
	Revision       can.Revision
	Timing         hw.Timing
	QueueCapacity  int
	Overflow       OverflowPolicy
	MaxReadRetries int
}

func DefaultConfig() Config {
	return Config{
		Revision:       can.Rev2B,
		Timing:         hw.DefaultTiming,
		QueueCapacity:  DefaultQueueCapacity,
		Overflow:       OverflowReject,
		MaxReadRetries: DefaultMaxReadRetries,
	}
}

// Driver owns every piece of state shared between mainline code and the
// interrupt handler.
//
// Ownership :
//   - mobs, initialized, txID : mainline only (the handler reads mobs of
//     armed mailboxes)
//   - slots : written by the handler, read by Receive
//   - pending : bits set by the handler, cleared by Receive
//   - queue : writePos by Transmit, readPos by the handler
//   - txState, listener : mainline writes them with interrupts disabled
type Driver struct {
	ctrl hw.Controller
	cfg  Config
	enc  can.Encoding

	initialized bool
	txID        uint32
	mobs        []mailbox

	slots   []rxSlot
	pending uint32

	queue   *fifo.Fifo
	txState TxState

	listener can.FrameListener
	stats    counters

	// Test hook, always nil outside tests. Called after each word copied by
	// Receive to interleave the interrupt handler with a copy in progress.
	copyHook func(slot int, word int)
}

// Create a new driver on top of a controller. Zero fields of cfg take
// their default value.
func NewDriver(ctrl hw.Controller, cfg Config) (*Driver, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("%w : nil controller", ErrIllegalArgument)
	}
	count := ctrl.MobCount()
	if count < 2 || count-1 > maxRxMailboxes {
		return nil, fmt.Errorf("%w : unsupported message object count %v", ErrIllegalArgument, count)
	}
	if cfg.Timing == (hw.Timing{}) {
		cfg.Timing = hw.DefaultTiming
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.MaxReadRetries <= 0 {
		cfg.MaxReadRetries = DefaultMaxReadRetries
	}
	driver := &Driver{
		ctrl:  ctrl,
		cfg:   cfg,
		enc:   can.EncodingFor(cfg.Revision),
		mobs:  make([]mailbox, count),
		slots: make([]rxSlot, count-1),
		queue: fifo.NewFifo(cfg.QueueCapacity, cfg.Overflow),
	}
	return driver, nil
}

// Init resets the controller, programs the bit timing, clears every message
// object, prepares the transmit object with txID, enables interrupts and
// finally enables the controller. It must be called once, before anything else.
func (d *Driver) Init(txID uint32) error {
	if d.initialized {
		return ErrAlreadyInitialized
	}
	if txID > d.enc.MaxID() {
		return fmt.Errorf("%w : tx id x%x", ErrInvalidID, txID)
	}
	d.ctrl.Reset()
	d.ctrl.SetTiming(d.cfg.Timing)
	for i := range d.mobs {
		d.ctrl.Disarm(i)
		d.mobs[i] = mailbox{}
	}
	for i := range d.slots {
		d.slots[i] = rxSlot{}
	}
	d.pending = 0
	d.queue.Reset()
	d.txState = TxIdle
	d.txID = txID
	d.ctrl.Arm(0, hw.MobConfig{
		IDT:  d.enc.ToIDT(txID),
		IDM:  ^uint32(0),
		IDE:  d.enc.Extended(),
		Mode: hw.ModeDisabled,
	})
	d.ctrl.SetHandler(d.HandleInterrupt)
	d.ctrl.EnableInterrupts(hw.RxOK | hw.TxOK)
	d.ctrl.Enable()
	d.initialized = true
	log.Infof("[DRIVER] initialized, revision %v, %v receive mailboxes, tx id x%x, tx queue %v (%v)",
		d.enc.Revision(), len(d.slots), txID, d.queue.Cap(), d.queue.Policy())
	return nil
}

// SetReceiveHandler installs a listener called from interrupt context for
// every captured frame. Frames are still buffered for Receive. The listener
// must return quickly and must not call back into the driver.
func (d *Driver) SetReceiveHandler(listener can.FrameListener) {
	state := d.ctrl.Disable()
	d.listener = listener
	d.ctrl.Restore(state)
}

func (d *Driver) Revision() can.Revision {
	return d.enc.Revision()
}
