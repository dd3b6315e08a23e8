package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/can/virtual"
	"github.com/mobcan/mobcan/pkg/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Command line arguments
	configPath := flag.String("c", "", "configuration file path (INI)")
	canInterface := flag.String("i", "", "bus interface override e.g. virtual, socketcan, socketcanv2")
	channel := flag.String("ch", "", "bus channel override e.g. vcan0, localhost:18888")
	echo := flag.Bool("echo", false, "send back every received payload with the transmit id")
	broker := flag.Bool("broker", false, "host a virtual bus broker on the channel address")
	flag.Parse()

	file := config.Default()
	if *configPath != "" {
		var err error
		file, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("[MOBCAN] failed to load configuration %v : %v", *configPath, err)
		}
	}
	if *canInterface != "" {
		file.Bus.Interface = *canInterface
	}
	if *channel != "" {
		file.Bus.Channel = *channel
	}
	log.SetLevel(file.LogLevel)

	if *broker {
		b, err := virtual.NewBroker(file.Bus.Channel)
		if err != nil {
			log.Fatalf("[MOBCAN] failed to start broker : %v", err)
		}
		defer b.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := startNode(ctx, file)
	if err != nil {
		log.Fatalf("[MOBCAN] %v", err)
	}
	defer n.close()
	log.Infof("[MOBCAN] listening on %v (%v), %v free mailboxes", file.Bus.Channel, file.Bus.Interface, n.driver.Free())

	n.run(ctx, *echo, func(frame can.Frame) {
		log.Infof("[MOBCAN] x%x [%v] % X", frame.ID, frame.DLC, frame.Payload())
	})
	log.Infof("[MOBCAN] stopping, stats %+v", n.driver.Stats())
}
