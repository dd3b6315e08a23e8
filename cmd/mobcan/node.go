package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mobcan/mobcan"
	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/config"
	"github.com/mobcan/mobcan/pkg/hw"
	log "github.com/sirupsen/logrus"
)

// Wakes up the receive loop, called from interrupt context
type notifier chan struct{}

func (n notifier) Handle(can.Frame) {
	select {
	case n <- struct{}{}:
	default:
	}
}

// node is a driver running on a simulated controller attached to a bus
type node struct {
	bus    can.Bus
	sim    *hw.Sim
	driver *mobcan.Driver
	wake   notifier
}

// startNode connects the bus, attaches the controller, initializes the
// driver and registers the configured filters. Transmissions complete
// until ctx is done.
func startNode(ctx context.Context, file *config.File) (*node, error) {
	bus, err := can.NewBus(file.Bus.Interface, file.Bus.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus %v on %v : %w", file.Bus.Interface, file.Bus.Channel, err)
	}
	if err := bus.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to bus : %w", err)
	}
	n := &node{bus: bus, sim: hw.NewSim(file.Mobs), wake: make(notifier, 1)}
	if err := n.setup(ctx, file); err != nil {
		bus.Disconnect()
		return nil, err
	}
	return n, nil
}

func (n *node) setup(ctx context.Context, file *config.File) error {
	if err := n.sim.Attach(n.bus); err != nil {
		return fmt.Errorf("failed to subscribe to bus : %w", err)
	}
	n.sim.Start(ctx)

	driver, err := mobcan.NewDriver(n.sim, file.Driver)
	if err != nil {
		return err
	}
	n.driver = driver
	// Installed first so that no capture goes unnoticed
	driver.SetReceiveHandler(n.wake)
	if err := driver.Init(file.TxID); err != nil {
		return fmt.Errorf("init failed : %w", err)
	}
	for _, filter := range file.Filters {
		var index int
		if filter.HasMask {
			index, err = driver.RegisterFilterMask(filter.ID, filter.Mask)
		} else {
			index, err = driver.RegisterFilter(filter.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to register filter x%x : %w", filter.ID, err)
		}
		log.Infof("[MOBCAN] filter x%x on mailbox %v", filter.ID, index)
	}
	if setter, ok := n.bus.(can.FilterSetter); ok && len(file.Filters) > 0 {
		if err := setter.SetFilters(driver.BusFilters()); err != nil {
			log.Warnf("[MOBCAN] bus side filtering unavailable : %v", err)
		}
	}
	return nil
}

// run hands every received frame to onFrame, and sends its payload back
// when echo is set, until ctx is done
func (n *node) run(ctx context.Context, echo bool, onFrame func(can.Frame)) {
	for {
		n.drain(echo, onFrame)
		select {
		case <-ctx.Done():
			return
		case <-n.wake:
		}
	}
}

func (n *node) drain(echo bool, onFrame func(can.Frame)) {
	for n.driver.IsMessageAvailable() {
		frame, err := n.driver.Receive()
		if errors.Is(err, mobcan.ErrNoMessage) {
			return
		}
		if err != nil {
			log.Errorf("[MOBCAN] receive failed : %v", err)
			continue
		}
		onFrame(frame)
		if echo {
			if err := n.driver.Transmit(frame.Payload()); err != nil {
				log.Warnf("[MOBCAN] echo failed : %v", err)
			}
		}
	}
}

func (n *node) close() error {
	return n.bus.Disconnect()
}
