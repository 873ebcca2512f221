//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"math/big"

	"github.com/markkurossi/hecmp/he"
)

// CompareEncrypted compares the encrypted values x and y, both in [0,
// 2^L) under the active key, and returns x <= y. The keymaster must
// call Keymaster.CompareEncrypted.
func (ev *Evaluator) CompareEncrypted(x, y he.Ciphertext) (bool, error) {
	if err := ev.checkCiphertexts(x, y); err != nil {
		return false, err
	}
	ev.begin("compare encrypted")
	v, err := ev.geq(y, x)
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// CompareEncrypted runs the keymaster side of
// Evaluator.CompareEncrypted. It returns x <= y unless the session
// hides the results from the keymaster.
func (km *Keymaster) CompareEncrypted() (bool, error) {
	km.begin("compare encrypted")
	return km.geq()
}

// wrapFree tests if the additive blinding of L+1+sigma bits can't
// wrap around the key's plaintext domain.
func (s *Session) wrapFree(key he.PublicKey) bool {
	return key.Domain().BitLen() > s.Params.L+2+s.Params.Sigma
}

// geq computes [a >= b] from z = a - b + 2^L + r. The bit L of a - b +
// 2^L is floor(z/2^L) - floor(r/2^L) minus the carry from the low
// bits, which is computed with a bit comparison of r mod 2^L and z
// mod 2^L.
func (ev *Evaluator) geq(a, b he.Ciphertext) (int, error) {
	key := ev.active()
	l := uint(ev.Params.L)
	twoL := new(big.Int).Lsh(bigOne, l)

	var r *big.Int
	var err error
	wrapFree := ev.wrapFree(key)
	if wrapFree {
		r, err = he.RandomBits(ev.rand(), ev.Params.L+1+ev.Params.Sigma)
	} else {
		r, err = he.RandomInt(ev.rand(), key.Domain())
	}
	if err != nil {
		return 0, err
	}

	z := key.AddPlain(key.Sub(a, b), new(big.Int).Add(twoL, r))
	z, err = key.Rerandomize(ev.rand(), z)
	if err != nil {
		return 0, err
	}
	if err := ev.sendCiphertext(z); err != nil {
		return 0, err
	}

	if !wrapFree {
		limit := new(big.Int).Lsh(twoL, 1)
		limit.Add(limit, r)
		modified := limit.Cmp(key.Domain()) >= 0
		if err := ev.conn.SendBoolean(modified); err != nil {
			return 0, err
		}
		if modified {
			return ev.geqModified(r)
		}
	}

	alpha := new(big.Int).Mod(r, twoL)
	deltaA, err := ev.compareBits(alpha, 0)
	if err != nil {
		return 0, err
	}
	le, err := ev.receiveLessEqual(deltaA)
	if err != nil {
		return 0, err
	}
	q, err := ev.receiveCiphertext(key)
	if err != nil {
		return 0, err
	}

	// res = q - floor(r/2^L) - (1 - le)
	sub := new(big.Int).Rsh(r, l)
	sub.Add(sub, bigOne)
	res := key.AddPlain(key.Add(q, le), sub.Neg(sub))

	return ev.open(key, res)
}

// receiveLessEqual receives Enc(deltaB) under the active key and
// returns the encrypted comparison result Enc(deltaA xor deltaB).
func (ev *Evaluator) receiveLessEqual(deltaA int) (he.Ciphertext, error) {
	key := ev.active()
	deltaB, err := ev.receiveCiphertext(key)
	if err != nil {
		return nil, err
	}
	return xorKnown(key, deltaA, deltaB), nil
}

// geqModified runs the wraparound safe variant. The keymaster reveals
// encrypted d = [z < (N-1)/2], which is 1 iff the blinding wrapped.
// The evaluator builds candidates for both reference values r and r -
// N and masks the inconsistent path so it can't produce a zero.
func (ev *Evaluator) geqModified(r *big.Int) (int, error) {
	key := ev.active()
	bitKey := ev.bitKey
	l := uint(ev.Params.L)
	twoL := new(big.Int).Lsh(bigOne, l)
	n := key.Domain()

	dBit, err := ev.receiveCiphertext(bitKey)
	if err != nil {
		return 0, err
	}
	dArith, err := ev.receiveCiphertext(key)
	if err != nil {
		return 0, err
	}
	arr, err := ev.conn.ReceiveCiphertextArray()
	if err != nil {
		return 0, err
	}
	beta, err := unmarshalArray(bitKey, arr)
	if err != nil {
		return 0, err
	}
	if len(beta) != ev.Params.L {
		return 0, violation("got %d bits, expected %d", len(beta),
			ev.Params.L)
	}

	rw := new(big.Int).Sub(r, n)
	alpha0 := bitsOf(new(big.Int).Mod(r, twoL), ev.Params.L)
	alpha1 := bitsOf(new(big.Int).Mod(rw, twoL), ev.Params.L)

	deltaA, err := ev.randomBit()
	if err != nil {
		return 0, err
	}
	ev.Debugf("modified: deltaA=%d\n", deltaA)

	sparse := ev.Params.Strategy == Veugen || ev.Params.Strategy == Joye
	path0 := compareSlots(bitKey, alpha0, beta, deltaA, sparse)
	path1 := compareSlots(bitKey, alpha1, beta, deltaA, sparse)

	// Path 0 is valid when d = 0, path 1 when d = 1.
	k := big.NewInt(int64(3*ev.Params.L + 3))
	kd := bitKey.MulScalar(dBit, k)
	slots := make([]he.Ciphertext, 0, len(path0)+len(path1))
	for _, c := range path0 {
		if c != nil {
			c = bitKey.Add(c, kd)
		}
		slots = append(slots, c)
	}
	for _, c := range path1 {
		if c != nil {
			c = bitKey.AddPlain(bitKey.Sub(c, kd), k)
		}
		slots = append(slots, c)
	}
	if err := fillSlots(ev.rand(), bitKey, slots); err != nil {
		return 0, err
	}
	if err := ev.sendCandidates(bitKey, slots); err != nil {
		return 0, err
	}

	le, err := ev.receiveLessEqual(deltaA)
	if err != nil {
		return 0, err
	}
	q, err := ev.receiveCiphertext(key)
	if err != nil {
		return 0, err
	}

	// T = floor(r/2^L) + d*(floor((r-N)/2^L) - floor(r/2^L))
	r0 := new(big.Int).Div(r, twoL)
	r1 := new(big.Int).Div(rw, twoL)
	t := key.AddPlain(key.MulScalar(dArith, new(big.Int).Sub(r1, r0)), r0)

	// res = q - T - (1 - le)
	res := key.AddPlain(key.Sub(key.Add(q, le), t), big.NewInt(-1))

	return ev.open(key, res)
}

// geq runs the keymaster side of Evaluator.geq.
func (km *Keymaster) geq() (bool, error) {
	key := km.active()
	priv := km.activePriv()
	l := uint(km.Params.L)
	twoL := new(big.Int).Lsh(bigOne, l)

	zc, err := km.receiveCiphertext(key)
	if err != nil {
		return false, err
	}
	z, err := priv.Decrypt(zc)
	if err != nil {
		return false, err
	}

	if !km.wrapFree(key) {
		modified, err := km.conn.ReceiveBoolean()
		if err != nil {
			return false, err
		}
		if modified {
			return km.geqModified(z)
		}
	}

	deltaB, err := km.compareBits(new(big.Int).Mod(z, twoL), 0)
	if err != nil {
		return false, err
	}
	if err := km.sendActive(big.NewInt(int64(deltaB))); err != nil {
		return false, err
	}
	if err := km.sendActive(new(big.Int).Rsh(z, l)); err != nil {
		return false, err
	}
	return km.open(key, priv)
}

// geqModified runs the keymaster side of Evaluator.geqModified.
func (km *Keymaster) geqModified(z *big.Int) (bool, error) {
	key := km.active()
	priv := km.activePriv()
	l := uint(km.Params.L)
	twoL := new(big.Int).Lsh(bigOne, l)

	half := new(big.Int).Sub(key.Domain(), bigOne)
	half.Rsh(half, 1)
	var d int64
	if z.Cmp(half) < 0 {
		d = 1
	}
	km.Debugf("modified: d=%d\n", d)

	c, err := km.bitKey.Encrypt(km.rand(), big.NewInt(d))
	if err != nil {
		return false, err
	}
	if err := km.sendCiphertext(c); err != nil {
		return false, err
	}
	if err := km.sendActive(big.NewInt(d)); err != nil {
		return false, err
	}

	deltaB, err := km.candidateRound(new(big.Int).Mod(z, twoL),
		km.Params.L, 2*(km.Params.L+1))
	if err != nil {
		return false, err
	}
	if err := km.sendActive(big.NewInt(int64(deltaB))); err != nil {
		return false, err
	}
	if err := km.sendActive(new(big.Int).Rsh(z, l)); err != nil {
		return false, err
	}
	return km.open(key, priv)
}

// sendActive sends m encrypted under the active key.
func (km *Keymaster) sendActive(m *big.Int) error {
	c, err := km.active().Encrypt(km.rand(), m)
	if err != nil {
		return err
	}
	return km.sendCiphertext(c)
}
