//go:build linux

package socketcanv2

import (
	"testing"
	"time"

	"github.com/mobcan/mobcan/pkg/can"
	"github.com/stretchr/testify/assert"
)

// Tests needing a bus expect a "vcan0" interface and are skipped otherwise :
// ip link add dev vcan0 type vcan && ip link set up vcan0

func newVcan0(t *testing.T) *SocketcanBus {
	t.Helper()
	sock, err := NewSocketCanBus("vcan0")
	if err != nil {
		t.Skipf("vcan0 not available : %v", err)
	}
	return sock.(*SocketcanBus)
}

func TestToRawFilters(t *testing.T) {
	raw := toRawFilters([]can.Filter{{ID: 0x100, Mask: 0x7FF}, {ID: can.CanEffFlag | 0x10, Mask: can.CanEffFlag | can.CanEffMask}})
	assert.Len(t, raw, 2)
	assert.EqualValues(t, 0x100, raw[0].Id)
	assert.EqualValues(t, 0x7FF, raw[0].Mask)
	assert.EqualValues(t, can.CanEffFlag|0x10, raw[1].Id)
}

func TestDisconnectWithoutConnect(t *testing.T) {
	sock := newVcan0(t)
	assert.Nil(t, sock.Disconnect())
}

type frameListener struct {
	frames chan can.Frame
}

func (f *frameListener) Handle(frame can.Frame) {
	f.frames <- frame
}

func TestSendReceiveWithReceiveOwn(t *testing.T) {
	sock := newVcan0(t)
	listener := &frameListener{frames: make(chan can.Frame, 16)}
	assert.Nil(t, sock.Subscribe(listener))
	assert.Nil(t, sock.SetReceiveOwn(true))
	assert.Nil(t, sock.Connect())
	defer sock.Disconnect()
	assert.Nil(t, sock.SetFilters([]can.Filter{{ID: 0x100, Mask: can.CanSffMask}}))

	assert.Nil(t, sock.Send(can.NewFrame(0x200, 0, 0)))
	assert.Nil(t, sock.Send(can.NewFrame(0x100, 0, 1)))
	select {
	case frame := <-listener.frames:
		assert.EqualValues(t, 0x100, frame.ID)
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}
