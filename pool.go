package mobcan

import (
	"fmt"

	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/hw"
	log "github.com/sirupsen/logrus"
)

// Allocation state of a message object. Identifier 0 is a valid filter,
// allocation is tracked explicitly.
type mailbox struct {
	allocated bool
	id        uint32
	mask      uint32
}

// A registered receive filter
type Filter struct {
	Mailbox int
	ID      uint32
	Mask    uint32
}

// RegisterFilter binds id to the next free receive mailbox, comparing every
// identifier bit. See RegisterFilterMask.
func (d *Driver) RegisterFilter(id uint32) (int, error) {
	return d.RegisterFilterMask(id, d.enc.MaxID())
}

// RegisterFilterMask binds (id, mask) to the next free receive mailbox and
// arms it. Bits cleared in mask are ignored when matching. Mailboxes are
// handed out in call order and a lower mailbox is dispatched first, so
// filters must be registered from highest to lowest priority.
// Returns the mailbox index, or ErrCapacityExceeded once all receive
// mailboxes are taken.
func (d *Driver) RegisterFilterMask(id uint32, mask uint32) (int, error) {
	if !d.initialized {
		return 0, ErrNotInitialized
	}
	if id > d.enc.MaxID() || mask > d.enc.MaxID() {
		return 0, fmt.Errorf("%w : id x%x mask x%x (revision %v)", ErrInvalidID, id, mask, d.enc.Revision())
	}
	index := d.nextFree()
	if index < 0 {
		log.Warnf("[DRIVER][FILTER] no receive mailbox left for x%x, %v in use", id, len(d.slots))
		return 0, ErrCapacityExceeded
	}
	d.mobs[index] = mailbox{allocated: true, id: id, mask: mask}
	// Not armed yet, the handler cannot touch this slot
	d.slots[index-1] = rxSlot{}
	d.arm(index)
	log.Debugf("[DRIVER][FILTER] mailbox %v filters x%x (mask x%x)", index, id, mask)
	return index, nil
}

// Filters returns registered filters, highest priority first
func (d *Driver) Filters() []Filter {
	filters := make([]Filter, 0, len(d.mobs))
	for i := 1; i < len(d.mobs); i++ {
		if d.mobs[i].allocated {
			filters = append(filters, Filter{Mailbox: i, ID: d.mobs[i].id, Mask: d.mobs[i].mask})
		}
	}
	return filters
}

// BusFilters returns the registered filters in wire format, for buses able to
// filter ahead of the controller (see [can.FilterSetter])
func (d *Driver) BusFilters() []can.Filter {
	filters := d.Filters()
	busFilters := make([]can.Filter, 0, len(filters))
	for _, filter := range filters {
		busFilters = append(busFilters, can.Filter{
			ID:   d.enc.WireID(filter.ID),
			Mask: filter.Mask | can.CanEffFlag,
		})
	}
	return busFilters
}

// Free returns the number of receive mailboxes still available
func (d *Driver) Free() int {
	free := 0
	for i := 1; i < len(d.mobs); i++ {
		if !d.mobs[i].allocated {
			free++
		}
	}
	return free
}

func (d *Driver) nextFree() int {
	for i := 1; i < len(d.mobs); i++ {
		if !d.mobs[i].allocated {
			return i
		}
	}
	return -1
}

// Arm a receive mailbox with its filter. Called by mainline on registration
// and by the handler after each capture.
func (d *Driver) arm(index int) {
	mb := d.mobs[index]
	d.ctrl.Arm(index, hw.MobConfig{
		IDT:  d.enc.ToIDT(mb.id),
		IDM:  d.enc.ToIDT(mb.mask),
		IDE:  d.enc.Extended(),
		Mode: hw.ModeReceive,
	})
}
