package mobcan

import (
	"testing"

	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/hw"
	"github.com/stretchr/testify/assert"
)

func TestRegisterFilterAllocationOrder(t *testing.T) {
	driver, sim := newTestDriver(t, DefaultConfig())
	ids := []uint32{0x300, 0x10, 0x1FFFFFFF, 0x42}
	for i, id := range ids {
		index, err := driver.RegisterFilter(id)
		assert.Nil(t, err)
		assert.Equal(t, i+1, index)
		cfg := sim.Config(index)
		assert.Equal(t, hw.ModeReceive, cfg.Mode)
		assert.True(t, cfg.IDE)
		assert.Equal(t, can.EncodingFor(can.Rev2B).ToIDT(id), cfg.IDT)
	}
	filters := driver.Filters()
	assert.Len(t, filters, len(ids))
	for i, filter := range filters {
		assert.Equal(t, ids[i], filter.ID)
		assert.Equal(t, i+1, filter.Mailbox)
		assert.EqualValues(t, can.CanEffMask, filter.Mask)
	}
	assert.Equal(t, sim.MobCount()-1-len(ids), driver.Free())
}

func TestRegisterFilterCapacityExceeded(t *testing.T) {
	driver, sim := newTestDriver(t, DefaultConfig())
	for i := 1; i < sim.MobCount(); i++ {
		index, err := driver.RegisterFilter(uint32(i))
		assert.Nil(t, err)
		assert.Equal(t, i, index)
	}
	before := driver.Filters()
	index, err := driver.RegisterFilter(0x999)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, index)
	assert.Equal(t, before, driver.Filters())
	assert.Equal(t, 0, driver.Free())
	// The transmit mailbox was never handed out
	assert.Equal(t, hw.ModeDisabled, sim.Config(0).Mode)
}

func TestRegisterFilterIdentifierZero(t *testing.T) {
	driver, sim := newTestDriver(t, DefaultConfig())
	index, err := driver.RegisterFilter(0)
	assert.Nil(t, err)
	assert.Equal(t, 1, index)
	// Mailbox 1 holds id 0 and is not mistaken for a free one
	index, err = driver.RegisterFilter(5)
	assert.Nil(t, err)
	assert.Equal(t, 2, index)

	inject(driver, sim, 5, []byte{5})
	inject(driver, sim, 0, []byte{0xAA})
	frame, err := driver.Receive()
	assert.Nil(t, err)
	assert.EqualValues(t, 0, frame.ID)
	assert.Equal(t, []byte{0xAA}, frame.Payload())
	frame, err = driver.Receive()
	assert.Nil(t, err)
	assert.EqualValues(t, 5, frame.ID)
}

func TestRegisterFilterInvalidID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revision = can.Rev2A
	driver, _ := newTestDriver(t, cfg)
	_, err := driver.RegisterFilter(0x800)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = driver.RegisterFilterMask(0x10, 0xFFFF)
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Len(t, driver.Filters(), 0)
}

func TestRegisterFilterMask(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revision = can.Rev2A
	driver, sim := newTestDriver(t, cfg)
	_, err := driver.RegisterFilterMask(0x100, 0x700)
	assert.Nil(t, err)
	inject(driver, sim, 0x1AB, []byte{1})
	inject(driver, sim, 0x2AB, []byte{2})
	frame, err := driver.Receive()
	assert.Nil(t, err)
	assert.EqualValues(t, 0x1AB, frame.ID)
	assert.False(t, driver.IsMessageAvailable())
	assert.EqualValues(t, 1, sim.Dropped())
}

func TestBusFilters(t *testing.T) {
	d, _ := newTestDriver(t, DefaultConfig())
	_, err := d.RegisterFilterMask(0x100, 0xFF00)
	assert.Nil(t, err)
	busFilters := d.BusFilters()
	assert.Len(t, busFilters, 1)
	assert.EqualValues(t, 0x100|can.CanEffFlag, busFilters[0].ID)
	assert.EqualValues(t, 0xFF00|can.CanEffFlag, busFilters[0].Mask)

	cfg := DefaultConfig()
	cfg.Revision = can.Rev2A
	std, _ := newTestDriver(t, cfg)
	_, err = std.RegisterFilter(0x32)
	assert.Nil(t, err)
	busFilters = std.BusFilters()
	assert.EqualValues(t, 0x32, busFilters[0].ID)
	assert.EqualValues(t, can.CanSffMask|can.CanEffFlag, busFilters[0].Mask)
}
