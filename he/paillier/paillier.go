//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package paillier implements the Paillier additively homomorphic
// encryption scheme. Key generation and decryption use the threshold
// Paillier implementation of github.com/niclabs/tcpaillier with the
// keymaster holding all key shares.
package paillier

import (
	"encoding/json"
	"io"
	"math/big"

	"github.com/markkurossi/hecmp/he"
	"github.com/niclabs/tcpaillier"
	"github.com/pkg/errors"
)

// Name is the scheme name.
const Name = "paillier"

const (
	// Number of key shares and the decryption threshold.
	numShares = 2
	threshold = 2
)

var (
	bigOne = big.NewInt(1)

	_ he.PublicKey  = &PublicKey{}
	_ he.PrivateKey = &PrivateKey{}
)

// PublicKey implements a Paillier public key. The plaintext domain
// is Z_N and ciphertexts live in Z_N^2.
type PublicKey struct {
	N *big.Int

	nn      *big.Int
	byteLen int
	zero    *Ciphertext
	one     *Ciphertext
}

// PrivateKey implements a Paillier private key.
type PrivateKey struct {
	PublicKey
	tc     *tcpaillier.PubKey
	shares []*tcpaillier.KeyShare
}

// Ciphertext implements a Paillier ciphertext.
type Ciphertext struct {
	c     *big.Int
	bytes []byte
}

// Bytes implements he.Ciphertext.Bytes.
func (c *Ciphertext) Bytes() []byte {
	return c.bytes
}

// GenerateKey creates a new Paillier key with a bits modulus.
func GenerateKey(bits int) (*PrivateKey, error) {
	shares, pk, err := tcpaillier.NewKey(bits, 1, numShares, threshold)
	if err != nil {
		return nil, err
	}
	key := &PrivateKey{
		PublicKey: PublicKey{
			N: new(big.Int).Set(pk.N),
		},
		tc:     pk,
		shares: shares,
	}
	key.PublicKey.init()
	return key, nil
}

func (key *PublicKey) init() {
	key.nn = new(big.Int).Mul(key.N, key.N)
	key.byteLen = (key.nn.BitLen() + 7) / 8
	key.zero = key.wrap(big.NewInt(1))
	key.one = key.wrap(new(big.Int).Add(key.N, bigOne))
}

func (key *PublicKey) wrap(c *big.Int) *Ciphertext {
	return &Ciphertext{
		c:     c,
		bytes: c.FillBytes(make([]byte, key.byteLen)),
	}
}

func (key *PublicKey) ct(c he.Ciphertext) *big.Int {
	return c.(*Ciphertext).c
}

// Check implements he.PublicKey.Check.
func (key *PublicKey) Check(c he.Ciphertext) error {
	ct, ok := c.(*Ciphertext)
	if !ok {
		return errors.Wrapf(he.ErrInvalidCiphertext, "%T is not a %s ciphertext",
			c, Name)
	}
	if len(ct.bytes) != key.byteLen || ct.c.Sign() == 0 ||
		ct.c.Cmp(key.nn) >= 0 {
		return errors.Wrap(he.ErrInvalidCiphertext, "ciphertext out of range")
	}
	return nil
}

// Name implements he.PublicKey.Name.
func (key *PublicKey) Name() string {
	return Name
}

// Domain implements he.PublicKey.Domain.
func (key *PublicKey) Domain() *big.Int {
	return key.N
}

// Bound implements he.PublicKey.Bound.
func (key *PublicKey) Bound() *big.Int {
	return key.N
}

// plain returns (1+N)^m = 1+m*N mod N^2.
func (key *PublicKey) plain(m *big.Int) *big.Int {
	v := new(big.Int).Mod(m, key.N)
	v.Mul(v, key.N)
	v.Add(v, bigOne)
	return v.Mod(v, key.nn)
}

// noise returns r^N mod N^2 for a random unit r.
func (key *PublicKey) noise(rand io.Reader) (*big.Int, error) {
	for {
		r, err := he.RandomNonZero(rand, key.N)
		if err != nil {
			return nil, err
		}
		if new(big.Int).GCD(nil, nil, r, key.N).Cmp(bigOne) != 0 {
			continue
		}
		return r.Exp(r, key.N, key.nn), nil
	}
}

// Encrypt implements he.PublicKey.Encrypt.
func (key *PublicKey) Encrypt(rand io.Reader, m *big.Int) (
	he.Ciphertext, error) {

	rn, err := key.noise(rand)
	if err != nil {
		return nil, err
	}
	c := key.plain(m)
	c.Mul(c, rn)
	return key.wrap(c.Mod(c, key.nn)), nil
}

// Add implements he.PublicKey.Add.
func (key *PublicKey) Add(a, b he.Ciphertext) he.Ciphertext {
	c := new(big.Int).Mul(key.ct(a), key.ct(b))
	return key.wrap(c.Mod(c, key.nn))
}

// AddPlain implements he.PublicKey.AddPlain.
func (key *PublicKey) AddPlain(a he.Ciphertext, m *big.Int) he.Ciphertext {
	c := key.plain(m)
	c.Mul(c, key.ct(a))
	return key.wrap(c.Mod(c, key.nn))
}

// Sub implements he.PublicKey.Sub.
func (key *PublicKey) Sub(a, b he.Ciphertext) he.Ciphertext {
	c := new(big.Int).ModInverse(key.ct(b), key.nn)
	c.Mul(c, key.ct(a))
	return key.wrap(c.Mod(c, key.nn))
}

// MulScalar implements he.PublicKey.MulScalar.
func (key *PublicKey) MulScalar(a he.Ciphertext, k *big.Int) he.Ciphertext {
	e := new(big.Int).Mod(k, key.N)
	return key.wrap(e.Exp(key.ct(a), e, key.nn))
}

// Rerandomize implements he.PublicKey.Rerandomize.
func (key *PublicKey) Rerandomize(rand io.Reader, a he.Ciphertext) (
	he.Ciphertext, error) {

	rn, err := key.noise(rand)
	if err != nil {
		return nil, err
	}
	rn.Mul(rn, key.ct(a))
	return key.wrap(rn.Mod(rn, key.nn)), nil
}

// Zero implements he.PublicKey.Zero.
func (key *PublicKey) Zero() he.Ciphertext {
	return key.zero
}

// One implements he.PublicKey.One.
func (key *PublicKey) One() he.Ciphertext {
	return key.one
}

// Unmarshal implements he.PublicKey.Unmarshal.
func (key *PublicKey) Unmarshal(data []byte) (he.Ciphertext, error) {
	if len(data) != key.byteLen {
		return nil, he.ErrInvalidCiphertext
	}
	c := new(big.Int).SetBytes(data)
	if c.Sign() == 0 || c.Cmp(key.nn) >= 0 {
		return nil, he.ErrInvalidCiphertext
	}
	return key.wrap(c), nil
}

type wireKey struct {
	N *big.Int
}

// Marshal implements he.PublicKey.Marshal.
func (key *PublicKey) Marshal() ([]byte, error) {
	return json.Marshal(&wireKey{
		N: key.N,
	})
}

// UnmarshalPublicKey decodes a marshaled Paillier public key.
func UnmarshalPublicKey(data []byte) (*PublicKey, error) {
	var w wireKey
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(he.ErrInvalidKey, err.Error())
	}
	if w.N == nil || w.N.BitLen() < 64 || w.N.Bit(0) == 0 {
		return nil, he.ErrInvalidKey
	}
	key := &PublicKey{
		N: w.N,
	}
	key.init()
	return key, nil
}

// Public implements he.PrivateKey.Public.
func (key *PrivateKey) Public() he.PublicKey {
	return &key.PublicKey
}

// Decrypt implements he.PrivateKey.Decrypt. It combines the partial
// decryptions of all key shares.
func (key *PrivateKey) Decrypt(c he.Ciphertext) (*big.Int, error) {
	ct, ok := c.(*Ciphertext)
	if !ok {
		return nil, he.ErrInvalidCiphertext
	}
	var parts []*tcpaillier.DecryptionShare
	for _, share := range key.shares {
		part, err := share.PartialDecrypt(ct.c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	m, err := key.tc.CombineShares(parts...)
	if err != nil {
		return nil, errors.Wrap(he.ErrUnknownPlaintext, err.Error())
	}
	return m, nil
}

// IsZero implements he.PrivateKey.IsZero.
func (key *PrivateKey) IsZero(c he.Ciphertext) (bool, error) {
	m, err := key.Decrypt(c)
	if err != nil {
		return false, err
	}
	return m.Sign() == 0, nil
}
