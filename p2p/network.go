//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"log"
	"net"
	"time"

	"github.com/pkg/errors"
)

// RetryDelay is the delay between connection attempts in Dial.
var RetryDelay = 5 * time.Second

// Dial connects to the peer at addr. The connection is retried
// retries times before giving up.
func Dial(addr string, retries int) (*Conn, error) {
	for attempt := 0; ; attempt++ {
		nc, err := net.Dial("tcp", addr)
		if err == nil {
			log.Printf("p2p: connected to %s\n", addr)
			return NewConn(nc), nil
		}
		if attempt >= retries {
			return nil, errors.Wrapf(err, "connect to %s", addr)
		}
		log.Printf("p2p: connect to %s failed, retrying in %s\n",
			addr, RetryDelay)
		<-time.After(RetryDelay)
	}
}

// Listener accepts peer connections.
type Listener struct {
	listener net.Listener
}

// Listen creates a listener for the TCP address addr.
func Listen(addr string) (*Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		listener: listener,
	}, nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close closes the listener.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Accept waits for the next peer connection.
func (l *Listener) Accept() (*Conn, net.Addr, error) {
	nc, err := l.listener.Accept()
	if err != nil {
		return nil, nil, err
	}
	return NewConn(nc), nc.RemoteAddr(), nil
}

// Serve accepts connections and runs handler for each of them in its
// own goroutine. The handler owns the connection and must close it.
// Serve returns when the listener is closed.
func (l *Listener) Serve(handler func(conn *Conn, addr net.Addr) error) error {
	for {
		conn, addr, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go func() {
			if err := handler(conn, addr); err != nil {
				log.Printf("p2p: %s: %s\n", addr, err)
			}
		}()
	}
}
