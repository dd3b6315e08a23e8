package hw

import (
	"context"
	"sync"

	"github.com/mobcan/mobcan/pkg/can"
	log "github.com/sirupsen/logrus"
)

const DefaultMobCount = 15

type mob struct {
	cfg    MobConfig
	idt    uint32
	dlc    uint8
	data   [8]byte
	status Event
}

// Sim is a host model of a message object CAN controller.
// Frames handed to Handle (directly or through an attached bus) are matched
// against armed receive objects, lowest index first, exactly like the
// hardware acceptance logic. Transmissions stay in flight until
// CompleteTransmit is called, or are completed automatically after Start.
//
// The interrupt handler runs on whichever goroutine raised the event, with
// the interrupt lock held, so it is serialised against itself and against
// Disable/Restore sections.
type Sim struct {
	irq sync.Mutex

	mu         sync.Mutex
	mobs       []mob
	timing     Timing
	enabled    bool
	interrupts Event
	handler    func()
	bus        can.Bus
	sent       []can.Frame
	dropped    uint32
	txReady    chan struct{}
}

// Create a simulated controller with the given number of message objects
func NewSim(mobCount int) *Sim {
	if mobCount <= 0 {
		mobCount = DefaultMobCount
	}
	return &Sim{mobs: make([]mob, mobCount), txReady: make(chan struct{}, 1)}
}

// Attach subscribes the controller to a bus : received frames are fed to
// the acceptance logic and completed transmissions are sent on it.
func (s *Sim) Attach(bus can.Bus) error {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
	return bus.Subscribe(s)
}

// Start completes transmissions as soon as they are armed, until ctx is done
func (s *Sim) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.txReady:
				for s.CompleteTransmit() {
				}
			}
		}
	}()
}

func (s *Sim) SetHandler(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *Sim) EnableInterrupts(events Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts = events
}

func (s *Sim) Disable() State {
	s.irq.Lock()
	return 1
}

func (s *Sim) Restore(State) {
	s.irq.Unlock()
}

func (s *Sim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mobs {
		s.mobs[i] = mob{}
	}
	s.enabled = false
	s.interrupts = 0
	s.timing = Timing{}
}

func (s *Sim) SetTiming(timing Timing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = timing
}

func (s *Sim) Timing() Timing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timing
}

func (s *Sim) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

func (s *Sim) MobCount() int {
	return len(s.mobs)
}

func (s *Sim) Arm(index int, cfg MobConfig) {
	s.mu.Lock()
	m := &s.mobs[index]
	m.cfg = cfg
	if cfg.Mode == ModeTransmit {
		m.idt = cfg.IDT
		m.dlc = cfg.DLC
	}
	s.mu.Unlock()
	if cfg.Mode == ModeTransmit {
		select {
		case s.txReady <- struct{}{}:
		default:
		}
	}
}

func (s *Sim) Disarm(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobs[index] = mob{}
}

func (s *Sim) Write(index int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.mobs[index].data[:], data)
}

func (s *Sim) Read(index int) (uint32, uint8, [8]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &s.mobs[index]
	return m.idt, m.dlc, m.data
}

func (s *Sim) Status(index int) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobs[index].status
}

func (s *Sim) Ack(index int, events Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobs[index].status &^= events
}

func (s *Sim) Pending() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending uint32
	for i := range s.mobs {
		if s.mobs[i].status != 0 {
			pending |= 1 << i
		}
	}
	return pending
}

// Config returns the current configuration of a message object
func (s *Sim) Config(index int) MobConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobs[index].cfg
}

// Handle implements [can.FrameListener], it is the reception side of the controller
// Remote frames are not accepted, message objects only receive data frames.
func (s *Sim) Handle(frame can.Frame) {
	if frame.ID&can.CanRtrFlag != 0 {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		log.Debugf("[SIM][RX] remote frame x%x dropped", frame.ID)
		return
	}
	enc, id := can.EncodingForWire(frame.ID)
	idt := enc.ToIDT(id)

	s.mu.Lock()
	if !s.enabled {
		s.dropped++
		s.mu.Unlock()
		return
	}
	matched := false
	for i := range s.mobs {
		m := &s.mobs[i]
		if m.cfg.Mode != ModeReceive || m.cfg.IDE != enc.Extended() {
			continue
		}
		if (idt^m.cfg.IDT)&m.cfg.IDM != 0 {
			continue
		}
		m.idt = idt
		m.dlc = frame.DLC
		if m.dlc > 8 {
			m.dlc = 8
		}
		m.data = frame.Data
		// Reception disables the object until it is armed again
		m.cfg.Mode = ModeDisabled
		m.status |= RxOK
		matched = true
		break
	}
	if !matched {
		s.dropped++
	}
	s.mu.Unlock()

	if !matched {
		log.Debugf("[SIM][RX] no message object accepts x%x", frame.ID)
		return
	}
	s.raise(RxOK)
}

// CompleteTransmit finishes the transmission in flight, if any.
// The frame is sent on the attached bus and TxOK is raised.
func (s *Sim) CompleteTransmit() bool {
	s.mu.Lock()
	index := -1
	for i := range s.mobs {
		if s.mobs[i].cfg.Mode == ModeTransmit {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return false
	}
	m := &s.mobs[index]
	enc := can.EncodingFor(can.Rev2A)
	if m.cfg.IDE {
		enc = can.EncodingFor(can.Rev2B)
	}
	frame := can.Frame{ID: enc.WireID(enc.FromIDT(m.idt)), DLC: m.dlc, Data: m.data}
	bus := s.bus
	s.mu.Unlock()

	if bus != nil {
		if err := bus.Send(frame); err != nil {
			log.Warnf("[SIM][TX] failed to send x%x on bus : %v", frame.ID, err)
		}
	}

	s.mu.Lock()
	m.cfg.Mode = ModeDisabled
	m.status |= TxOK
	s.sent = append(s.sent, frame)
	s.mu.Unlock()

	s.raise(TxOK)
	return true
}

// Sent returns all frames transmitted so far
func (s *Sim) Sent() []can.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make([]can.Frame, len(s.sent))
	copy(sent, s.sent)
	return sent
}

// Dropped returns the number of frames no message object accepted
func (s *Sim) Dropped() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Sim) raise(event Event) {
	s.mu.Lock()
	handler := s.handler
	enabled := s.interrupts&event != 0
	s.mu.Unlock()
	if handler == nil || !enabled {
		return
	}
	s.irq.Lock()
	handler()
	s.irq.Unlock()
}
