// Package hw describes the CAN peripheral seen by the driver: a fixed set of
// message objects (mailboxes) with IDT/IDM/control registers and an 8 byte
// data window, a status register per object and one interrupt line.
//
// Sim is a host model of such a peripheral used by tests and by the mobcan
// command. A target implementation maps the same interface onto device
// registers.
package hw

// Event is the per message object status (CANSTMOB style)
type Event uint8

const (
	RxOK Event = 1 << iota // reception completed
	TxOK                   // transmission completed
)

// Mode of a message object (CONMOB bits)
type Mode uint8

const (
	ModeDisabled Mode = iota
	ModeTransmit
	ModeReceive
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeTransmit:
		return "transmit"
	case ModeReceive:
		return "receive"
	}
	return "unknown"
}

// Timing holds the bit timing registers.
// Defaults are 1 Mbps with a 16 MHz clock.
type Timing struct {
	BT1 uint8
	BT2 uint8
	BT3 uint8
}

var DefaultTiming = Timing{BT1: 0x02, BT2: 0x04, BT3: 0x13}

// MobConfig is what gets written to a message object when it is armed
type MobConfig struct {
	IDT  uint32 // identifier tag, already in register layout
	IDM  uint32 // identifier mask, set bits are compared
	IDE  bool   // extended identifier
	Mode Mode
	DLC  uint8
}

// State is the interrupt state returned by Disable
type State uintptr

// Interrupt is the interrupt line of the peripheral.
// The handler never runs concurrently with itself. Code between Disable and
// Restore never observes a handler half way through.
type Interrupt interface {
	SetHandler(handler func())
	EnableInterrupts(events Event)
	Disable() State
	Restore(state State)
}

// Controller is the register level view of the peripheral
type Controller interface {
	Interrupt
	Reset()
	SetTiming(timing Timing)
	Enable()
	MobCount() int
	Arm(mob int, cfg MobConfig)
	Disarm(mob int)
	// Write fills the data window of a message object
	Write(mob int, data []byte)
	// Read returns the identifier tag, length and data window of a message object
	Read(mob int) (idt uint32, dlc uint8, data [8]byte)
	Status(mob int) Event
	Ack(mob int, events Event)
	// Pending returns a bitmask of message objects with a pending event
	Pending() uint32
}
