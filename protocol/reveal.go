//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"math/big"

	"github.com/markkurossi/hecmp/he"
	"github.com/pkg/errors"
)

// reveal runs the evaluator side of the shared result reveal. The
// keymaster sends Enc(deltaB) and the evaluator returns the
// decryption of Enc(deltaA xor deltaB).
func (ev *Evaluator) reveal(deltaA int) (bool, error) {
	key := ev.bitKey
	deltaB, err := ev.receiveCiphertext(key)
	if err != nil {
		return false, err
	}
	v, err := ev.open(key, xorKnown(key, deltaA, deltaB))
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// reveal runs the keymaster side of the shared result reveal.
func (km *Keymaster) reveal(deltaB int) (bool, error) {
	key := km.bitKey
	c, err := key.Encrypt(km.rand(), big.NewInt(int64(deltaB)))
	if err != nil {
		return false, err
	}
	if err := km.sendCiphertext(c); err != nil {
		return false, err
	}
	return km.open(key, km.bitPriv)
}

// xorKnown returns Enc(a xor b) for the known bit a and the encrypted
// bit b.
func xorKnown(key he.PublicKey, a int, b he.Ciphertext) he.Ciphertext {
	if a == 0 {
		return b
	}
	return key.Sub(key.One(), b)
}

// open has the keymaster decrypt the encrypted bit c. If the session
// hides results, c is blinded with an additive mask before sending.
func (ev *Evaluator) open(key he.PublicKey, c he.Ciphertext) (int, error) {
	rho := new(big.Int)
	if ev.Params.HideResult {
		var err error
		rho, err = ev.blindingMask(key)
		if err != nil {
			return 0, err
		}
	}
	c, err := key.Rerandomize(ev.rand(), key.AddPlain(c, rho))
	if err != nil {
		return 0, err
	}
	if err := ev.sendCiphertext(c); err != nil {
		return 0, err
	}
	v, err := ev.conn.ReceiveInteger()
	if err != nil {
		return 0, err
	}
	v.Sub(v, rho)
	v.Mod(v, key.Domain())
	result, err := bitValue(v)
	if err != nil {
		return 0, err
	}
	ev.Debugf("result=%d\n", result)
	return result, nil
}

// blindingMask returns the additive mask for hiding a bit from the
// keymaster. The masked value stays below the decryption bound.
func (ev *Evaluator) blindingMask(key he.PublicKey) (*big.Int, error) {
	if key.Bound().Cmp(key.Domain()) == 0 {
		return he.RandomInt(ev.rand(), key.Domain())
	}
	return he.RandomInt(ev.rand(), new(big.Int).Sub(key.Bound(), bigOne))
}

// open runs the keymaster side of Evaluator.open. The decrypted value
// is sent before it is validated so that both parties see a protocol
// violation.
func (km *Keymaster) open(key he.PublicKey, priv he.PrivateKey) (
	bool, error) {

	c, err := km.receiveCiphertext(key)
	if err != nil {
		return false, err
	}
	v, err := priv.Decrypt(c)
	if err != nil {
		return false, err
	}
	if err := km.conn.SendInteger(v); err != nil {
		return false, err
	}
	if err := km.conn.Flush(); err != nil {
		return false, err
	}
	if km.Params.HideResult {
		return false, nil
	}
	bit, err := bitValue(v)
	if err != nil {
		return false, errors.Wrap(err, "keymaster")
	}
	km.Debugf("result=%d\n", bit)
	return bit == 1, nil
}
