//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package p2p implements the ordered, buffered byte channel between
// the evaluator and the keymaster.
package p2p

import (
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	numBuffers   = 3
	writeBufSize = 64 * 1024
	readBufSize  = 1024 * 1024

	// MaxDataLen limits the size of a single binary payload.
	MaxDataLen = 64 * 1024 * 1024
)

// ErrTooLarge is returned when a peer announces a payload larger
// than MaxDataLen.
var ErrTooLarge = errors.New("p2p: payload too large")

// Conn implements a protocol connection. The writer side is buffered
// and flushed by a background goroutine. Conn is not safe for
// concurrent use; a session owns its connection exclusively.
type Conn struct {
	conn      io.ReadWriter
	writeBuf  []byte
	writePos  int
	readBuf   []byte
	readStart int
	readEnd   int
	Stats     IOStats

	fromWriter chan []byte
	toWriter   chan []byte
	writerErr  error
}

// IOStats implements I/O statistics.
type IOStats struct {
	Sent    *atomic.Uint64
	Recvd   *atomic.Uint64
	Flushed *atomic.Uint64
}

// NewIOStats creates a new I/O statistics object.
func NewIOStats() IOStats {
	return IOStats{
		Sent:    new(atomic.Uint64),
		Recvd:   new(atomic.Uint64),
		Flushed: new(atomic.Uint64),
	}
}

// Add adds the argument stats to this IOStats and returns the sum.
func (stats IOStats) Add(o IOStats) IOStats {
	result := NewIOStats()
	result.Sent.Store(stats.Sent.Load() + o.Sent.Load())
	result.Recvd.Store(stats.Recvd.Load() + o.Recvd.Load())
	result.Flushed.Store(stats.Flushed.Load() + o.Flushed.Load())
	return result
}

// Sum returns sum of sent and received bytes.
func (stats IOStats) Sum() uint64 {
	return stats.Sent.Load() + stats.Recvd.Load()
}

// NewConn creates a new connection around the argument connection.
func NewConn(conn io.ReadWriter) *Conn {
	c := &Conn{
		conn:       conn,
		readBuf:    make([]byte, readBufSize),
		fromWriter: make(chan []byte, numBuffers),
		toWriter:   make(chan []byte, numBuffers),
		Stats:      NewIOStats(),
	}
	go c.writer()
	c.writeBuf = <-c.fromWriter

	return c
}

func (c *Conn) writer() {
	for i := 0; i < numBuffers; i++ {
		c.fromWriter <- make([]byte, writeBufSize)
	}
	for buf := range c.toWriter {
		if c.writerErr == nil {
			_, c.writerErr = c.conn.Write(buf)
		}
		c.fromWriter <- buf[0:cap(buf)]
	}
	close(c.fromWriter)
}

// Flush flushes any pending data in the connection.
func (c *Conn) Flush() error {
	if c.writePos == 0 {
		return nil
	}
	c.Stats.Sent.Add(uint64(c.writePos))
	c.toWriter <- c.writeBuf[0:c.writePos]

	next := <-c.fromWriter
	if c.writerErr != nil {
		return c.writerErr
	}
	c.writeBuf = next
	c.writePos = 0
	c.Stats.Flushed.Add(1)

	return nil
}

// fill reads at least n bytes into the input buffer. Any unused data
// is moved to the beginning of the buffer.
func (c *Conn) fill(n int) error {
	if c.readStart < c.readEnd {
		copy(c.readBuf[0:], c.readBuf[c.readStart:c.readEnd])
		c.readEnd -= c.readStart
		c.readStart = 0
	} else {
		c.readStart = 0
		c.readEnd = 0
	}
	for c.readEnd < n {
		got, err := c.conn.Read(c.readBuf[c.readEnd:])
		if err != nil {
			return err
		}
		c.Stats.Recvd.Add(uint64(got))
		c.readEnd += got
	}
	return nil
}

// Close flushes any pending data and closes the connection.
func (c *Conn) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	close(c.toWriter)
	for range c.fromWriter {
	}
	if c.writerErr != nil {
		return c.writerErr
	}
	closer, ok := c.conn.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}

// SendByte sends a byte value.
func (c *Conn) SendByte(val byte) error {
	if c.writePos+1 > len(c.writeBuf) {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	c.writeBuf[c.writePos] = val
	c.writePos++
	return nil
}

// SendUint32 sends an uint32 value.
func (c *Conn) SendUint32(val int) error {
	if c.writePos+4 > len(c.writeBuf) {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	c.writeBuf[c.writePos+0] = byte((uint32(val) >> 24) & 0xff)
	c.writeBuf[c.writePos+1] = byte((uint32(val) >> 16) & 0xff)
	c.writeBuf[c.writePos+2] = byte((uint32(val) >> 8) & 0xff)
	c.writeBuf[c.writePos+3] = byte(uint32(val) & 0xff)
	c.writePos += 4
	return nil
}

// SendData sends length-prefixed binary data. Data larger than the
// write buffer is sent in buffer sized chunks.
func (c *Conn) SendData(val []byte) error {
	if len(val) > MaxDataLen {
		return ErrTooLarge
	}
	if err := c.SendUint32(len(val)); err != nil {
		return err
	}
	for len(val) > 0 {
		if c.writePos == len(c.writeBuf) {
			if err := c.Flush(); err != nil {
				return err
			}
		}
		n := copy(c.writeBuf[c.writePos:], val)
		c.writePos += n
		val = val[n:]
	}
	return nil
}

// SendString sends a string value.
func (c *Conn) SendString(val string) error {
	return c.SendData([]byte(val))
}

// ReceiveByte receives a byte value.
func (c *Conn) ReceiveByte() (byte, error) {
	if c.readStart+1 > c.readEnd {
		if err := c.fill(1); err != nil {
			return 0, err
		}
	}
	val := c.readBuf[c.readStart]
	c.readStart++
	return val, nil
}

// ReceiveUint32 receives an uint32 value.
func (c *Conn) ReceiveUint32() (int, error) {
	if c.readStart+4 > c.readEnd {
		if err := c.fill(4); err != nil {
			return 0, err
		}
	}
	buf := c.readBuf[c.readStart:]
	val := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 |
		uint32(buf[3])
	c.readStart += 4

	return int(val), nil
}

// ReceiveData receives length-prefixed binary data.
func (c *Conn) ReceiveData() ([]byte, error) {
	n, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxDataLen {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes", n)
	}
	result := make([]byte, n)
	for pos := 0; pos < n; {
		if c.readStart == c.readEnd {
			want := n - pos
			if want > len(c.readBuf) {
				want = len(c.readBuf)
			}
			if err := c.fill(want); err != nil {
				return nil, err
			}
		}
		got := copy(result[pos:], c.readBuf[c.readStart:c.readEnd])
		c.readStart += got
		pos += got
	}
	return result, nil
}

// ReceiveString receives a string value.
func (c *Conn) ReceiveString() (string, error) {
	data, err := c.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
