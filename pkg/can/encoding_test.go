package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodingRoundTrip(t *testing.T) {
	for _, rev := range []Revision{Rev2A, Rev2B} {
		enc := EncodingFor(rev)
		assert.Equal(t, rev, enc.Revision())
		for _, id := range []uint32{0, 1, 0x50, 0x100, enc.MaxID()} {
			assert.Equal(t, id, enc.FromIDT(enc.ToIDT(id)), "%v id x%x", rev, id)
		}
	}
}

func TestEncodingRegisterLayout(t *testing.T) {
	assert.EqualValues(t, 0x123<<21, EncodingFor(Rev2A).ToIDT(0x123))
	assert.EqualValues(t, 0x123<<3, EncodingFor(Rev2B).ToIDT(0x123))
	// Bits above the identifier width are discarded
	assert.EqualValues(t, 0, EncodingFor(Rev2A).ToIDT(0x800))
}

func TestEncodingWire(t *testing.T) {
	std := EncodingFor(Rev2A)
	ext := EncodingFor(Rev2B)
	assert.EqualValues(t, 0x7FF, std.WireID(0x7FF))
	assert.EqualValues(t, 0x80000100, ext.WireID(0x100))

	enc, id := EncodingForWire(ext.WireID(0x1ABCDEF))
	assert.True(t, enc.Extended())
	assert.EqualValues(t, 0x1ABCDEF, id)
	enc, id = EncodingForWire(0x32)
	assert.False(t, enc.Extended())
	assert.EqualValues(t, 0x32, id)
}

func TestParseRevision(t *testing.T) {
	rev, err := ParseRevision("2.0A")
	assert.Nil(t, err)
	assert.Equal(t, Rev2A, rev)
	rev, err = ParseRevision(" 2b ")
	assert.Nil(t, err)
	assert.Equal(t, Rev2B, rev)
	_, err = ParseRevision("2.0C")
	assert.NotNil(t, err)
	assert.Equal(t, "2.0A", Rev2A.String())
}

type nopBus struct{ channel string }

func (b *nopBus) Connect(...any) error          { return nil }
func (b *nopBus) Disconnect() error             { return nil }
func (b *nopBus) Send(Frame) error              { return nil }
func (b *nopBus) Subscribe(FrameListener) error { return nil }

func TestNewBus(t *testing.T) {
	RegisterInterface("nop", func(channel string) (Bus, error) { return &nopBus{channel: channel}, nil })
	bus, err := NewBus("nop", "can0")
	assert.Nil(t, err)
	assert.Equal(t, "can0", bus.(*nopBus).channel)
	_, err = NewBus("unknown", "can0")
	assert.NotNil(t, err)
}

func TestFramePayload(t *testing.T) {
	frame := NewFrame(0x10, 0, 3)
	frame.Data = [8]byte{1, 2, 3, 4}
	assert.Equal(t, []byte{1, 2, 3}, frame.Payload())
	frame.DLC = 15
	assert.Len(t, frame.Payload(), 8)
}
