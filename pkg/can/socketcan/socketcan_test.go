package socketcan

import (
	"testing"

	sockcan "github.com/brutella/can"
	"github.com/mobcan/mobcan/pkg/can"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	frames []can.Frame
}

func (r *recorder) Handle(frame can.Frame) {
	r.frames = append(r.frames, frame)
}

func TestFrameConversion(t *testing.T) {
	frame := can.Frame{ID: can.CanEffFlag | 0x1234, DLC: 4, Data: [8]byte{1, 2, 3, 4}}
	converted := toBrutella(frame)
	assert.Equal(t, frame.ID, converted.ID)
	assert.Equal(t, frame.DLC, converted.Length)
	assert.Equal(t, frame, fromBrutella(converted))
}

func TestHandleForwardsToSubscriber(t *testing.T) {
	bus := &SocketcanBus{}
	// No subscriber yet
	bus.Handle(sockcan.Frame{ID: 0x1})
	r := &recorder{}
	bus.rxCallback = r
	bus.Handle(sockcan.Frame{ID: 0x2, Length: 1, Data: [8]byte{7}})
	assert.Len(t, r.frames, 1)
	assert.EqualValues(t, 0x2, r.frames[0].ID)
	assert.Equal(t, []byte{7}, r.frames[0].Payload())
}
