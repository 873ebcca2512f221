//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"math/big"

	"github.com/google/uuid"
	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/p2p"
	"github.com/pkg/errors"
)

// Evaluator implements the evaluator role. The evaluator holds
// ciphertexts and public keys, and drives all protocols.
type Evaluator struct {
	*Session
}

// NewEvaluator creates a new evaluator session for the connection.
func NewEvaluator(conn *p2p.Conn, config *env.Config, params Params,
	bitKey, arithKey he.PublicKey) (*Evaluator, error) {

	s, err := newSession("Evaluator", conn, config, params, bitKey, arithKey)
	if err != nil {
		return nil, err
	}
	s.ID = uuid.New()
	return &Evaluator{
		Session: s,
	}, nil
}

// Keymaster implements the keymaster role. The keymaster holds the
// private keys and answers the evaluator's protocol steps.
type Keymaster struct {
	*Session
	bitPriv   he.PrivateKey
	arithPriv he.PrivateKey
}

// NewKeymaster creates a new keymaster session for the connection.
func NewKeymaster(conn *p2p.Conn, config *env.Config, params Params,
	bitPriv, arithPriv he.PrivateKey) (*Keymaster, error) {

	if bitPriv == nil || arithPriv == nil {
		return nil, errors.Wrap(ErrInvalidInput, "missing private key")
	}
	s, err := newSession("Keymaster", conn, config, params,
		bitPriv.Public(), arithPriv.Public())
	if err != nil {
		return nil, err
	}
	s.ID = uuid.New()
	return &Keymaster{
		Session:   s,
		bitPriv:   bitPriv,
		arithPriv: arithPriv,
	}, nil
}

func (km *Keymaster) activePriv() he.PrivateKey {
	if km.dgkMode {
		return km.bitPriv
	}
	return km.arithPriv
}

// Encrypt encrypts m with the active key. It is a convenience for
// keymaster side applications that provide the evaluator's
// ciphertext inputs.
func (km *Keymaster) Encrypt(m int64) (he.Ciphertext, error) {
	return km.active().Encrypt(km.rand(), big.NewInt(m))
}

// Decrypt decrypts c with the active key.
func (km *Keymaster) Decrypt(c he.Ciphertext) (*big.Int, error) {
	return km.activePriv().Decrypt(c)
}
