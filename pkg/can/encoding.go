package can

import (
	"fmt"
	"strings"
)

// Revision is the CAN protocol revision a controller is configured for.
// It selects the identifier width and how identifiers are laid out in the
// message object IDT/IDM registers.
type Revision uint8

const (
	Rev2A Revision = iota // 11-bit standard identifiers
	Rev2B                 // 29-bit extended identifiers
)

func (r Revision) String() string {
	switch r {
	case Rev2A:
		return "2.0A"
	case Rev2B:
		return "2.0B"
	default:
		return fmt.Sprintf("unknown revision %d", uint8(r))
	}
}

// Parse a revision as written in configuration files, e.g. "2.0A", "2a", "B"
func ParseRevision(s string) (Revision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "2.0A", "2A", "A", "STANDARD":
		return Rev2A, nil
	case "2.0B", "2B", "B", "EXTENDED", "":
		return Rev2B, nil
	}
	return Rev2B, fmt.Errorf("invalid CAN revision : %q", s)
}

// Encoding converts identifiers to and from the register representation
// used by the message objects.
type Encoding interface {
	Revision() Revision
	Extended() bool
	MaxID() uint32
	// ToIDT shifts an identifier (or a mask) into IDT/IDM register layout
	ToIDT(id uint32) uint32
	// FromIDT extracts an identifier from an IDT register value
	FromIDT(idt uint32) uint32
	// WireID returns the identifier as seen on a socketcan style bus,
	// i.e. with the EFF flag for extended identifiers
	WireID(id uint32) uint32
}

type standard struct{}

func (standard) Revision() Revision        { return Rev2A }
func (standard) Extended() bool            { return false }
func (standard) MaxID() uint32             { return CanSffMask }
func (standard) ToIDT(id uint32) uint32    { return (id & CanSffMask) << 21 }
func (standard) FromIDT(idt uint32) uint32 { return idt >> 21 }
func (standard) WireID(id uint32) uint32   { return id & CanSffMask }

type extended struct{}

func (extended) Revision() Revision        { return Rev2B }
func (extended) Extended() bool            { return true }
func (extended) MaxID() uint32             { return CanEffMask }
func (extended) ToIDT(id uint32) uint32    { return (id & CanEffMask) << 3 }
func (extended) FromIDT(idt uint32) uint32 { return idt >> 3 }
func (extended) WireID(id uint32) uint32   { return (id & CanEffMask) | CanEffFlag }

// EncodingFor returns the identifier encoding of the given revision
func EncodingFor(rev Revision) Encoding {
	if rev == Rev2A {
		return standard{}
	}
	return extended{}
}

// EncodingForWire returns the encoding matching a socketcan style identifier
// and the identifier stripped of its flags.
func EncodingForWire(wireID uint32) (Encoding, uint32) {
	if wireID&CanEffFlag != 0 {
		return extended{}, wireID & CanEffMask
	}
	return standard{}, wireID & CanSffMask
}
