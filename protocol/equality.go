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

// Equals tests if the encrypted values x and y, both in [0, 2^L)
// under the active key, are equal. The keymaster must call
// Keymaster.Equals.
func (ev *Evaluator) Equals(x, y he.Ciphertext) (bool, error) {
	if err := ev.checkCiphertexts(x, y); err != nil {
		return false, err
	}
	ev.begin("equals")

	key := ev.active()
	l := ev.Params.L
	twoL := new(big.Int).Lsh(bigOne, uint(l))

	// r in [2^L, R-2^L) keeps z = x - y + r in (0, R) without wrapping.
	limit := new(big.Int).Lsh(bigOne, uint(l+ev.Params.Sigma+1))
	if key.Bound().Cmp(limit) < 0 {
		limit.Set(key.Bound())
	}
	limit.Sub(limit, new(big.Int).Lsh(twoL, 1))
	r, err := he.RandomInt(ev.rand(), limit)
	if err != nil {
		return false, err
	}
	r.Add(r, twoL)

	z, err := key.Rerandomize(ev.rand(), key.AddPlain(key.Sub(x, y), r))
	if err != nil {
		return false, err
	}
	if err := ev.sendCiphertext(z); err != nil {
		return false, err
	}

	bitKey := ev.bitKey
	arr, err := ev.conn.ReceiveCiphertextArray()
	if err != nil {
		return false, err
	}
	beta, err := unmarshalArray(bitKey, arr)
	if err != nil {
		return false, err
	}
	if len(beta) != l {
		return false, violation("got %d bits, expected %d", len(beta), l)
	}

	deltaA, err := ev.randomBit()
	if err != nil {
		return false, err
	}
	ev.Debugf("deltaA=%d\n", deltaA)

	alpha := bitsOf(new(big.Int).Mod(r, twoL), l)
	slots := equalitySlots(bitKey, alpha, beta, deltaA)
	if err := ev.sendCandidates(bitKey, slots); err != nil {
		return false, err
	}
	return ev.reveal(deltaA)
}

// Equals runs the keymaster side of Evaluator.Equals. It returns x ==
// y unless the session hides the results from the keymaster.
func (km *Keymaster) Equals() (bool, error) {
	km.begin("equals")

	key := km.active()
	l := km.Params.L
	twoL := new(big.Int).Lsh(bigOne, uint(l))

	zc, err := km.receiveCiphertext(key)
	if err != nil {
		return false, err
	}
	z, err := km.activePriv().Decrypt(zc)
	if err != nil {
		return false, err
	}
	deltaB, err := km.candidateRound(new(big.Int).Mod(z, twoL), l, l+1)
	if err != nil {
		return false, err
	}
	return km.reveal(deltaB)
}
