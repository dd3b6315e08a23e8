//go:build linux

package socketcanv2

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/mobcan/mobcan/pkg/can"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	SocketCANFrameSize = 16
	DefaultRcvTimeout  = 100 * time.Millisecond
)

func init() {
	can.RegisterInterface("socketcanv2", NewSocketCanBus)
}

type CANframe struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

type SocketcanBus struct {
	f          *os.File
	fd         int
	mu         sync.Mutex
	rxCallback can.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Create a new SocketCAN bus. This expects the CAN channel to be up.
// e.g. running "ip a" should show can0 or something similar.
func NewSocketCanBus(channel string) (can.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket : %v", err)
	}
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout %v", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &SocketcanBus{fd: fd}, nil
}

// "Connect" implementation of Bus interface
func (s *SocketcanBus) Connect(...any) error {
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.f = os.NewFile(uintptr(s.fd), fmt.Sprintf("fd %d", s.fd))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processIncoming(ctx)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (s *SocketcanBus) Disconnect() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	return s.f.Close()
}

// "Send" implementation of Bus interface
func (s *SocketcanBus) Send(frame can.Frame) error {
	if s.f == nil {
		return errors.New("error : not connected, abort send")
	}
	canFrame := &CANframe{}
	canFrame.id = frame.ID
	canFrame.dlc = frame.DLC
	canFrame.pad = frame.Flags
	canFrame.data = frame.Data

	rawData := (*(*[SocketCANFrameSize]byte)(unsafe.Pointer(canFrame)))[:]
	n, err := s.f.Write(rawData)
	if err != nil {
		return err
	}
	if n != SocketCANFrameSize {
		return fmt.Errorf("short write : %v bytes", n)
	}
	return nil
}

// process incoming frames. This is meant to be run inside of a goroutine
func (s *SocketcanBus) processIncoming(ctx context.Context) {
	rxFrame := make([]byte, SocketCANFrameSize)
	for {
		select {
		case <-ctx.Done():
			log.Info("[SOCKETCANV2] exiting CAN bus reception, closed")
			return
		default:
			n, err := s.f.Read(rxFrame)
			if errors.Is(err, unix.EAGAIN) || os.IsTimeout(err) {
				continue
			}
			if n != SocketCANFrameSize || err != nil {
				log.Errorf("[SOCKETCANV2] exiting CAN bus reception : %v", err)
				return
			}
			// Direct translation in CANFrame
			frame := (*CANframe)(unsafe.Pointer(&rxFrame[0]))
			s.mu.Lock()
			callback := s.rxCallback
			s.mu.Unlock()
			if callback != nil {
				callback.Handle(can.Frame{ID: frame.id, DLC: frame.dlc, Flags: frame.pad, Data: frame.data})
			}
		}
	}
}

// "Subscribe" implementation of Bus interface
func (s *SocketcanBus) Subscribe(rxCallback can.FrameListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxCallback = rxCallback
	return nil
}

// Enable own reception on the bus. CAN be useful when testing for example
func (s *SocketcanBus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	log.Infof("[SOCKETCANV2] setting option 'CAN_RAW_RECV_OWN_MSGS' to %v on fd %v", enabled, s.fd)
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

// SetFilters installs kernel side acceptance filters (CAN_RAW_FILTER)
func (s *SocketcanBus) SetFilters(filters []can.Filter) error {
	log.Infof("[SOCKETCANV2] setting option 'CAN_RAW_FILTER' on fd %v : %v", s.fd, filters)
	return unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, toRawFilters(filters))
}

func toRawFilters(filters []can.Filter) []unix.CanFilter {
	raw := make([]unix.CanFilter, 0, len(filters))
	for _, filter := range filters {
		raw = append(raw, unix.CanFilter{Id: filter.ID, Mask: filter.Mask})
	}
	return raw
}
