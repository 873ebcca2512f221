//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"math/big"

	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/p2p"
	"github.com/pkg/errors"
)

// Compare compares the evaluator's plaintext x against the
// keymaster's plaintext y and returns x <= y. The keymaster must call
// Keymaster.Compare with y.
func (ev *Evaluator) Compare(x *big.Int) (bool, error) {
	if err := ev.checkOperand("x", x); err != nil {
		return false, err
	}
	ev.begin("compare")

	deltaA, err := ev.compareBits(x, 0)
	if err != nil {
		return false, err
	}
	return ev.reveal(deltaA)
}

// Compare runs the keymaster side of Evaluator.Compare for the
// plaintext y. It returns x <= y unless the session hides the results
// from the keymaster, in which case the result is always false.
func (km *Keymaster) Compare(y *big.Int) (bool, error) {
	if err := km.checkOperand("y", y); err != nil {
		return false, err
	}
	km.begin("compare")

	deltaB, err := km.compareBits(y, 0)
	if err != nil {
		return false, err
	}
	return km.reveal(deltaB)
}

// compareBits runs the evaluator side of the bit comparison of x
// against the keymaster's encrypted bits. The width 0 compares
// operands of their natural bit lengths; the result bit is then
// deltaA xor deltaB = [x <= y]. A positive width fixes the length of
// both bit vectors.
func (ev *Evaluator) compareBits(x *big.Int, width int) (int, error) {
	key := ev.bitKey
	arr, err := ev.conn.ReceiveCiphertextArray()
	if err != nil {
		return 0, err
	}
	y, err := unmarshalArray(key, arr)
	if err != nil {
		return 0, err
	}
	t := len(y)

	if width > 0 && t != width {
		return 0, violation("got %d bits, expected %d", t, width)
	}
	if width == 0 && x.BitLen() != t {
		return ev.compareShortcut(x.BitLen() < t)
	}

	xb := bitsOf(x, t)
	var deltaA int
	if ev.Params.Strategy == Joye {
		deltaA, err = joyeDelta(xb, ev.randomBit)
	} else {
		deltaA, err = ev.randomBit()
	}
	if err != nil {
		return 0, err
	}
	ev.Debugf("t=%d, deltaA=%d\n", t, deltaA)

	var slots []he.Ciphertext
	switch ev.Params.Strategy {
	case Original, ElGamal:
		slots = compareSlots(key, xb, y, deltaA, false)

	case Veugen:
		slots = compareSlots(key, xb, y, deltaA, true)
		err = fillSlots(ev.rand(), key, slots)

	case Joye:
		slots = compareSlots(key, xb, y, deltaA, true)
		slots, err = compactSlots(ev.rand(), key, slots,
			numSlots(Joye, t))
	}
	if err != nil {
		return 0, err
	}
	return deltaA, ev.sendCandidates(key, slots)
}

// compareShortcut answers a comparison of operands with different bit
// lengths. It sends Enc(answer xor deltaA) in place of the candidate
// vector so the keymaster's share stays uniformly random.
func (ev *Evaluator) compareShortcut(answer bool) (int, error) {
	deltaA, err := ev.randomBit()
	if err != nil {
		return 0, err
	}
	v := deltaA
	if answer {
		v ^= 1
	}
	ev.Debugf("bit length shortcut\n")
	c, err := ev.bitKey.Encrypt(ev.rand(), big.NewInt(int64(v)))
	if err != nil {
		return 0, err
	}
	return deltaA, ev.sendCiphertext(c)
}

// sendCandidates blinds, shuffles, and sends the candidate vector.
func (ev *Evaluator) sendCandidates(key he.PublicKey,
	slots []he.Ciphertext) error {

	blinded, err := blind(ev.rand(), key, slots)
	if err != nil {
		return err
	}
	shuffled, err := shuffle(ev.rand(), blinded)
	if err != nil {
		return err
	}
	return ev.conn.SendCiphertextArray(marshalArray(shuffled))
}

// compareBits runs the keymaster side of the bit comparison. It sends
// the bits of y and returns deltaB.
func (km *Keymaster) compareBits(y *big.Int, width int) (int, error) {
	return km.candidateRound(y, width, 0)
}

// candidateRound sends the encrypted bits of y and tests the returned
// candidates for zero. If slots is 0, the candidate vector length
// follows from the strategy.
func (km *Keymaster) candidateRound(y *big.Int, width, slots int) (
	int, error) {

	key := km.bitKey
	yb := bitsOf(y, width)
	arr := make([]he.Ciphertext, len(yb))
	for i, bit := range yb {
		c, err := key.Encrypt(km.rand(), big.NewInt(int64(bit)))
		if err != nil {
			return 0, err
		}
		arr[i] = c
	}
	if err := km.conn.SendCiphertextArray(marshalArray(arr)); err != nil {
		return 0, err
	}

	msg, err := km.conn.ReceiveMessage()
	if err != nil {
		return 0, err
	}
	switch msg.Kind {
	case p2p.KindCiphertext:
		if width > 0 {
			break
		}
		c, err := unmarshal(key, msg.Ciphertext)
		if err != nil {
			return 0, err
		}
		v, err := km.bitPriv.Decrypt(c)
		if err != nil {
			return 0, err
		}
		km.Debugf("bit length shortcut\n")
		return bitValue(v)

	case p2p.KindCiphertextArray:
		if slots == 0 {
			slots = numSlots(km.Params.Strategy, len(yb))
		}
		if len(msg.Array) != slots {
			return 0, violation("got %d candidates, expected %d",
				len(msg.Array), slots)
		}
		candidates, err := unmarshalArray(key, msg.Array)
		if err != nil {
			return 0, err
		}
		var deltaB int
		for _, c := range candidates {
			zero, err := km.bitPriv.IsZero(c)
			if err != nil {
				return 0, err
			}
			if zero {
				deltaB = 1
			}
		}
		km.Debugf("t=%d, deltaB=%d\n", len(yb), deltaB)
		return deltaB, nil
	}
	return 0, errors.Wrapf(p2p.ErrUnexpectedMessage, "got %s", msg.Kind)
}
