// Package receiver owns the UDP broadcast socket. It pulls datagrams as fast
// as the OS delivers them and pushes the raw bytes onto the shared bounded
// queue. No parsing or storage I/O happens here, so a slow consumer can only
// cause queue backlog, never dropped socket reads.
package receiver

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// Receiver reads broadcast datagrams and enqueues raw payloads.
type Receiver struct {
	conn        *net.UDPConn
	out         chan<- []byte
	readTimeout time.Duration
	bufSize     int
	shutdown    chan struct{}
	done        chan struct{}

	received  atomic.Uint64
	truncated atomic.Uint64
}

// New binds the UDP socket for broadcast reception. A bind failure (port in
// use, insufficient privilege) is returned to the caller and is fatal: the
// collector must not run without ingesting.
func New(port int, readTimeout time.Duration, maxDatagramBytes int, out chan<- []byte) (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("receiver: bind udp port %d: %w", port, err)
	}
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	if maxDatagramBytes <= 0 {
		maxDatagramBytes = 2048
	}
	return &Receiver{
		conn:        conn,
		out:         out,
		readTimeout: readTimeout,
		bufSize:     maxDatagramBytes,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the receive loop. Safe to call once.
func (r *Receiver) Start() {
	log.Printf("Receiver: listening for broadcasts on %s", r.conn.LocalAddr())
	go r.loop()
}

// Stop signals the receive loop to exit and closes the socket. It returns
// once the loop has observed the signal; the shared queue is untouched so the
// consumer can drain it afterwards.
func (r *Receiver) Stop() {
	close(r.shutdown)
	// Unblocks a read that is parked inside the deadline window.
	_ = r.conn.SetReadDeadline(time.Now())
	<-r.done
	_ = r.conn.Close()
	log.Println("Receiver: stopped")
}

// Addr returns the bound local address. Useful when the configured port is 0.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Received returns the number of datagrams read since startup.
func (r *Receiver) Received() uint64 {
	return r.received.Load()
}

// loop reads with a bounded deadline so the shutdown signal is observed
// promptly even with no traffic.
func (r *Receiver) loop() {
	defer close(r.done)
	buf := make([]byte, r.bufSize)
	for {
		select {
		case <-r.shutdown:
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(r.readTimeout))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				return
			}
			log.Printf("Receiver: read error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}
		if n == r.bufSize {
			// Payload may have been cut at the buffer boundary; the decoder
			// tolerates truncation, so pass it through but keep count.
			r.truncated.Add(1)
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		r.received.Add(1)

		// Backpressure over silent loss: block until the consumer frees a
		// slot, but keep watching for shutdown.
		select {
		case r.out <- payload:
		case <-r.shutdown:
			return
		}
	}
}
