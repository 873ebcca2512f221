//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"github.com/google/uuid"
	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/he/dgk"
	"github.com/markkurossi/hecmp/he/elgamal"
	"github.com/markkurossi/hecmp/he/paillier"
	"github.com/markkurossi/hecmp/p2p"
	"github.com/pkg/errors"
)

const (
	flagHideResult byte = 1 << iota
	flagFastDivide
)

// SendKeys sends the session ID, the public keys, and the session
// parameters to the evaluator. The evaluator creates its session with
// ReceiveKeys.
func (km *Keymaster) SendKeys() error {
	if err := km.conn.SendData(km.ID[:]); err != nil {
		return err
	}
	for _, key := range []he.PublicKey{km.bitKey, km.arithKey} {
		data, err := key.Marshal()
		if err != nil {
			return err
		}
		if err := km.conn.SendString(key.Name()); err != nil {
			return err
		}
		if err := km.conn.SendData(data); err != nil {
			return err
		}
	}
	if err := km.conn.SendUint32(km.Params.L); err != nil {
		return err
	}
	if err := km.conn.SendUint32(km.Params.Sigma); err != nil {
		return err
	}
	if err := km.conn.SendByte(byte(km.Params.Strategy)); err != nil {
		return err
	}
	var flags byte
	if km.Params.HideResult {
		flags |= flagHideResult
	}
	if km.Params.FastDivide {
		flags |= flagFastDivide
	}
	if err := km.conn.SendByte(flags); err != nil {
		return err
	}
	return km.conn.Flush()
}

// ReceiveKeys receives the keymaster's session ID, public keys, and
// session parameters, and creates the evaluator session.
func ReceiveKeys(conn *p2p.Conn, config *env.Config) (*Evaluator, error) {
	data, err := conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(data)
	if err != nil {
		return nil, violation("session ID: %v", err)
	}

	var keys [2]he.PublicKey
	for i := range keys {
		keys[i], err = receiveKey(conn)
		if err != nil {
			return nil, err
		}
	}

	var params Params
	params.L, err = conn.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	params.Sigma, err = conn.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	strategy, err := conn.ReceiveByte()
	if err != nil {
		return nil, err
	}
	params.Strategy = Strategy(strategy)
	flags, err := conn.ReceiveByte()
	if err != nil {
		return nil, err
	}
	params.HideResult = flags&flagHideResult != 0
	params.FastDivide = flags&flagFastDivide != 0

	ev, err := NewEvaluator(conn, config, params, keys[0], keys[1])
	if err != nil {
		return nil, err
	}
	ev.ID = id
	return ev, nil
}

func receiveKey(conn *p2p.Conn) (he.PublicKey, error) {
	name, err := conn.ReceiveString()
	if err != nil {
		return nil, err
	}
	data, err := conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	var key he.PublicKey
	switch name {
	case dgk.Name:
		key, err = dgk.UnmarshalPublicKey(data)
	case paillier.Name:
		key, err = paillier.UnmarshalPublicKey(data)
	case elgamal.Name:
		key, err = elgamal.UnmarshalPublicKey(data)
	default:
		return nil, violation("unknown scheme '%s'", name)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrProtocolViolation, "%s key: %v", name, err)
	}
	return key, nil
}
