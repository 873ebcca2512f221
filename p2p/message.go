//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedMessage is returned when the peer sends a message
	// of another kind than the protocol step expects.
	ErrUnexpectedMessage = errors.New("p2p: unexpected message")

	// ErrMalformedMessage is returned when a message payload can't be
	// decoded.
	ErrMalformedMessage = errors.New("p2p: malformed message")
)

// MaxArrayLen limits the number of ciphertexts in an array message.
const MaxArrayLen = 1 << 16

// Kind defines message kinds.
type Kind byte

// Message kinds.
const (
	KindCiphertext Kind = iota + 1
	KindCiphertextArray
	KindInteger
	KindBoolean
)

var kindNames = map[Kind]string{
	KindCiphertext:      "Ciphertext",
	KindCiphertextArray: "CiphertextArray",
	KindInteger:         "Integer",
	KindBoolean:         "Boolean",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if ok {
		return name
	}
	return fmt.Sprintf("{Kind %d}", k)
}

// Message is a decoded protocol message. The fields matching Kind
// hold the payload.
type Message struct {
	Kind       Kind
	Ciphertext []byte
	Array      [][]byte
	Integer    *big.Int
	Boolean    bool
}

func (m *Message) String() string {
	switch m.Kind {
	case KindCiphertext:
		return fmt.Sprintf("%s[%d]", m.Kind, len(m.Ciphertext))
	case KindCiphertextArray:
		return fmt.Sprintf("%s[%d]", m.Kind, len(m.Array))
	case KindInteger:
		return fmt.Sprintf("%s(%v)", m.Kind, m.Integer)
	case KindBoolean:
		return fmt.Sprintf("%s(%v)", m.Kind, m.Boolean)
	default:
		return m.Kind.String()
	}
}

// SendCiphertext sends a ciphertext message.
func (c *Conn) SendCiphertext(data []byte) error {
	if err := c.SendByte(byte(KindCiphertext)); err != nil {
		return err
	}
	return c.SendData(data)
}

// SendCiphertextArray sends a ciphertext array message.
func (c *Conn) SendCiphertextArray(arr [][]byte) error {
	if len(arr) > MaxArrayLen {
		return ErrTooLarge
	}
	if err := c.SendByte(byte(KindCiphertextArray)); err != nil {
		return err
	}
	if err := c.SendUint32(len(arr)); err != nil {
		return err
	}
	for _, data := range arr {
		if err := c.SendData(data); err != nil {
			return err
		}
	}
	return nil
}

// SendInteger sends a signed integer message.
func (c *Conn) SendInteger(v *big.Int) error {
	if err := c.SendByte(byte(KindInteger)); err != nil {
		return err
	}
	var sign byte
	if v.Sign() < 0 {
		sign = 1
	}
	if err := c.SendByte(sign); err != nil {
		return err
	}
	return c.SendData(v.Bytes())
}

// SendBoolean sends a boolean message.
func (c *Conn) SendBoolean(v bool) error {
	if err := c.SendByte(byte(KindBoolean)); err != nil {
		return err
	}
	var b byte
	if v {
		b = 1
	}
	return c.SendByte(b)
}

// ReceiveMessage flushes any pending output and receives the next
// message.
func (c *Conn) ReceiveMessage() (*Message, error) {
	if err := c.Flush(); err != nil {
		return nil, err
	}
	k, err := c.ReceiveByte()
	if err != nil {
		return nil, err
	}
	msg := &Message{
		Kind: Kind(k),
	}
	switch msg.Kind {
	case KindCiphertext:
		msg.Ciphertext, err = c.ReceiveData()
		if err != nil {
			return nil, err
		}

	case KindCiphertextArray:
		count, err := c.ReceiveUint32()
		if err != nil {
			return nil, err
		}
		if count > MaxArrayLen {
			return nil, errors.Wrapf(ErrTooLarge, "array of %d", count)
		}
		msg.Array = make([][]byte, count)
		for i := 0; i < count; i++ {
			msg.Array[i], err = c.ReceiveData()
			if err != nil {
				return nil, err
			}
		}

	case KindInteger:
		sign, err := c.ReceiveByte()
		if err != nil {
			return nil, err
		}
		if sign > 1 {
			return nil, errors.Wrapf(ErrMalformedMessage, "integer sign %d",
				sign)
		}
		data, err := c.ReceiveData()
		if err != nil {
			return nil, err
		}
		msg.Integer = new(big.Int).SetBytes(data)
		if sign == 1 {
			msg.Integer.Neg(msg.Integer)
		}

	case KindBoolean:
		b, err := c.ReceiveByte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, errors.Wrapf(ErrMalformedMessage, "boolean %d", b)
		}
		msg.Boolean = b == 1

	default:
		return nil, errors.Wrapf(ErrMalformedMessage, "unknown kind %d", k)
	}
	return msg, nil
}

func (c *Conn) expect(kind Kind) (*Message, error) {
	msg, err := c.ReceiveMessage()
	if err != nil {
		return nil, err
	}
	if msg.Kind != kind {
		return nil, errors.Wrapf(ErrUnexpectedMessage, "expected %s, got %s",
			kind, msg.Kind)
	}
	return msg, nil
}

// ReceiveCiphertext receives a ciphertext message.
func (c *Conn) ReceiveCiphertext() ([]byte, error) {
	msg, err := c.expect(KindCiphertext)
	if err != nil {
		return nil, err
	}
	return msg.Ciphertext, nil
}

// ReceiveCiphertextArray receives a ciphertext array message.
func (c *Conn) ReceiveCiphertextArray() ([][]byte, error) {
	msg, err := c.expect(KindCiphertextArray)
	if err != nil {
		return nil, err
	}
	return msg.Array, nil
}

// ReceiveInteger receives an integer message.
func (c *Conn) ReceiveInteger() (*big.Int, error) {
	msg, err := c.expect(KindInteger)
	if err != nil {
		return nil, err
	}
	return msg.Integer, nil
}

// ReceiveBoolean receives a boolean message.
func (c *Conn) ReceiveBoolean() (bool, error) {
	msg, err := c.expect(KindBoolean)
	if err != nil {
		return false, err
	}
	return msg.Boolean, nil
}
