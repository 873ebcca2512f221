//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"log"
	"math/big"

	"github.com/markkurossi/hecmp/he"
	"github.com/pkg/errors"
)

// Multiply computes Enc(x*y) mod Domain for the encrypted values x and
// y under the active key. The keymaster must call Keymaster.Multiply.
// The active key must decrypt its whole domain.
func (ev *Evaluator) Multiply(x, y he.Ciphertext) (he.Ciphertext, error) {
	key := ev.active()
	if err := checkMultiply(key); err != nil {
		return nil, err
	}
	if err := ev.checkCiphertexts(x, y); err != nil {
		return nil, err
	}
	ev.begin("multiply")

	a, err := he.RandomInt(ev.rand(), key.Domain())
	if err != nil {
		return nil, err
	}
	b, err := he.RandomInt(ev.rand(), key.Domain())
	if err != nil {
		return nil, err
	}
	xa, err := key.Rerandomize(ev.rand(), key.AddPlain(x, a))
	if err != nil {
		return nil, err
	}
	yb, err := key.Rerandomize(ev.rand(), key.AddPlain(y, b))
	if err != nil {
		return nil, err
	}
	if err := ev.sendCiphertext(xa); err != nil {
		return nil, err
	}
	if err := ev.sendCiphertext(yb); err != nil {
		return nil, err
	}
	p, err := ev.receiveCiphertext(key)
	if err != nil {
		return nil, err
	}

	// (x+a)(y+b) - b*x - a*y - a*b
	ab := new(big.Int).Mul(a, b)
	result := key.Sub(p, key.MulScalar(x, b))
	result = key.Sub(result, key.MulScalar(y, a))
	return key.AddPlain(result, ab.Neg(ab)), nil
}

// Multiply runs the keymaster side of Evaluator.Multiply.
func (km *Keymaster) Multiply() error {
	key := km.active()
	if err := checkMultiply(key); err != nil {
		return err
	}
	km.begin("multiply")

	priv := km.activePriv()
	var operands [2]*big.Int
	for i := range operands {
		c, err := km.receiveCiphertext(key)
		if err != nil {
			return err
		}
		operands[i], err = priv.Decrypt(c)
		if err != nil {
			return err
		}
	}
	p := new(big.Int).Mul(operands[0], operands[1])
	p.Mod(p, key.Domain())
	if err := km.sendActive(p); err != nil {
		return err
	}
	return km.conn.Flush()
}

func checkMultiply(key he.PublicKey) error {
	if key.Bound().Cmp(key.Domain()) != 0 {
		return errors.Wrapf(ErrInvalidInput,
			"multiply not supported with %s", key.Name())
	}
	return nil
}

// Divide computes Enc(floor(x/d)) for the encrypted value x in [0,
// 2^L) under the active key and the public divisor d in (0, 2^L). The
// keymaster must call Keymaster.Divide with the same divisor.
func (ev *Evaluator) Divide(x he.Ciphertext, d *big.Int) (he.Ciphertext, error) {
	if err := ev.checkDivisor(d); err != nil {
		return nil, err
	}
	if err := ev.checkCiphertexts(x); err != nil {
		return nil, err
	}
	ev.begin("divide")
	if ev.Params.FastDivide {
		log.Printf("WARNING: fast divide is enabled: " +
			"results are correct only for exact divisors")
	}

	key := ev.active()
	l := ev.Params.L
	twoL := new(big.Int).Lsh(bigOne, uint(l))

	// x + r must stay below the decryption bound.
	var r *big.Int
	var err error
	if key.Bound().BitLen() > l+ev.Params.Sigma+1 {
		r, err = he.RandomBits(ev.rand(), l+ev.Params.Sigma)
	} else {
		r, err = he.RandomInt(ev.rand(), new(big.Int).Sub(key.Bound(), twoL))
	}
	if err != nil {
		return nil, err
	}
	z, err := key.Rerandomize(ev.rand(), key.AddPlain(x, r))
	if err != nil {
		return nil, err
	}
	if err := ev.sendCiphertext(z); err != nil {
		return nil, err
	}

	// The remainder carry is [z mod d < r mod d] = 1 - [r mod d <= z
	// mod d].
	var le he.Ciphertext
	if !ev.Params.FastDivide {
		deltaA, err := ev.compareBits(new(big.Int).Mod(r, d), 0)
		if err != nil {
			return nil, err
		}
		le, err = ev.receiveLessEqual(deltaA)
		if err != nil {
			return nil, err
		}
	}
	q, err := ev.receiveCiphertext(key)
	if err != nil {
		return nil, err
	}

	sub := new(big.Int).Div(r, d)
	if le != nil {
		q = key.Add(q, le)
		sub.Add(sub, bigOne)
	}
	return key.AddPlain(q, sub.Neg(sub)), nil
}

// Divide runs the keymaster side of Evaluator.Divide for the divisor
// d.
func (km *Keymaster) Divide(d *big.Int) error {
	if err := km.checkDivisor(d); err != nil {
		return err
	}
	km.begin("divide")

	key := km.active()
	zc, err := km.receiveCiphertext(key)
	if err != nil {
		return err
	}
	z, err := km.activePriv().Decrypt(zc)
	if err != nil {
		return err
	}
	if !km.Params.FastDivide {
		deltaB, err := km.compareBits(new(big.Int).Mod(z, d), 0)
		if err != nil {
			return err
		}
		if err := km.sendActive(big.NewInt(int64(deltaB))); err != nil {
			return err
		}
	}
	if err := km.sendActive(new(big.Int).Div(z, d)); err != nil {
		return err
	}
	return km.conn.Flush()
}

func (s *Session) checkDivisor(d *big.Int) error {
	if d == nil || d.Sign() <= 0 || d.BitLen() > s.Params.L {
		return errors.Wrapf(ErrInvalidInput, "divisor %v not in (0, 2^%d)",
			d, s.Params.L)
	}
	return nil
}
