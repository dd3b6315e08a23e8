package virtual

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Broker is a minimal virtualcan server : every message received from a
// client is forwarded to all the other clients.
type Broker struct {
	listener net.Listener
	mu       sync.Mutex
	clients  map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// Start a broker listening on address e.g. localhost:18888 or 127.0.0.1:0
func NewBroker(address string) (*Broker, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	broker := &Broker{listener: listener, clients: map[net.Conn]struct{}{}}
	broker.wg.Add(1)
	go broker.accept()
	log.Infof("[VIRTUAL BROKER] listening on %v", listener.Addr())
	return broker, nil
}

// Addr returns the address clients should connect to
func (b *Broker) Addr() string {
	return b.listener.Addr().String()
}

// Clients returns the number of connected clients
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close stops listening and disconnects every client
func (b *Broker) Close() error {
	err := b.listener.Close()
	b.mu.Lock()
	for conn := range b.clients {
		conn.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return err
}

func (b *Broker) accept() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()
		b.wg.Add(1)
		go b.forward(conn)
	}
}

func (b *Broker) forward(conn net.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
		b.wg.Done()
	}()
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		message := make([]byte, 4+binary.BigEndian.Uint32(header))
		copy(message, header)
		if _, err := io.ReadFull(conn, message[4:]); err != nil {
			return
		}
		b.mu.Lock()
		for other := range b.clients {
			if other == conn {
				continue
			}
			if _, err := other.Write(message); err != nil {
				log.Warnf("[VIRTUAL BROKER] failed to forward to %v : %v", other.RemoteAddr(), err)
			}
		}
		b.mu.Unlock()
	}
}
