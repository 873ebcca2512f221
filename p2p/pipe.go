//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"net"
)

// Pipe creates an in-memory connection pair. Anything sent to the
// first endpoint can be received from the second and vice versa.
// Pipe is used for running both protocol roles in one process.
func Pipe() (*Conn, *Conn) {
	c0, c1 := net.Pipe()
	return NewConn(c0), NewConn(c1)
}
