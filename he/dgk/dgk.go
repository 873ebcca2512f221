//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package dgk implements the Damgård-Geisler-Krøigaard additively
// homomorphic encryption scheme. The plaintext domain is a small
// prime u, which makes the zero test a single exponentiation.
package dgk

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/markkurossi/hecmp/he"
	"github.com/pkg/errors"
)

// Name is the scheme name.
const Name = "dgk"

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)

	_ he.PublicKey  = &PublicKey{}
	_ he.PrivateKey = &PrivateKey{}
)

// PublicKey implements a DGK public key.
type PublicKey struct {
	N *big.Int
	G *big.Int
	H *big.Int
	U *big.Int
	// PlainBits is the plaintext bit length l; U > 2^(l+2).
	PlainBits int
	// RandBits is the security parameter t; the hidden subgroup
	// orders have t bits.
	RandBits int

	byteLen int
	zero    *Ciphertext
	one     *Ciphertext
}

// PrivateKey implements a DGK private key.
type PrivateKey struct {
	PublicKey
	P  *big.Int
	Q  *big.Int
	VP *big.Int
	VQ *big.Int

	tableOnce sync.Once
	baby      map[string]int64
	giant     *big.Int
	steps     int64
}

// Ciphertext implements a DGK ciphertext.
type Ciphertext struct {
	c     *big.Int
	bytes []byte
}

// Bytes implements he.Ciphertext.Bytes.
func (c *Ciphertext) Bytes() []byte {
	return c.bytes
}

func (c *Ciphertext) String() string {
	return fmt.Sprintf("dgk:%x", c.bytes)
}

// GenerateKey creates a new DGK key with a bits modulus, plaintexts
// of l bits, and t bit subgroup orders.
func GenerateKey(rand io.Reader, bits, l, t int) (*PrivateKey, error) {
	if l < 1 || l > 48 {
		return nil, errors.Errorf("dgk: invalid plaintext bits %d", l)
	}
	if t < 16 {
		return nil, errors.Errorf("dgk: invalid security parameter %d", t)
	}
	u := nextPrime(new(big.Int).Lsh(bigOne, uint(l+2)))
	if bits/2 < u.BitLen()+t+16 {
		return nil, errors.Errorf("dgk: modulus %d too small for l=%d, t=%d",
			bits, l, t)
	}

	for {
		vp, err := primeNot(rand, t, nil)
		if err != nil {
			return nil, err
		}
		vq, err := primeNot(rand, t, vp)
		if err != nil {
			return nil, err
		}
		p, err := subgroupPrime(rand, bits/2, u, vp)
		if err != nil {
			return nil, err
		}
		q, err := subgroupPrime(rand, bits-bits/2, u, vq)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)

		gp, err := element(rand, p, u, vp)
		if err != nil {
			return nil, err
		}
		gq, err := element(rand, q, u, vq)
		if err != nil {
			return nil, err
		}
		hp, err := element(rand, p, vp)
		if err != nil {
			return nil, err
		}
		hq, err := element(rand, q, vq)
		if err != nil {
			return nil, err
		}

		key := &PrivateKey{
			PublicKey: PublicKey{
				N:         n,
				G:         crt(gp, gq, p, q),
				H:         crt(hp, hq, p, q),
				U:         u,
				PlainBits: l,
				RandBits:  t,
			},
			P:  p,
			Q:  q,
			VP: vp,
			VQ: vq,
		}
		key.PublicKey.init()
		return key, nil
	}
}

func nextPrime(v *big.Int) *big.Int {
	p := new(big.Int).Set(v)
	if p.Bit(0) == 0 {
		p.Add(p, bigOne)
	}
	for !p.ProbablyPrime(20) {
		p.Add(p, bigTwo)
	}
	return p
}

func primeNot(rand io.Reader, bits int, not *big.Int) (*big.Int, error) {
	for {
		v, err := he.RandomBits(rand, bits)
		if err != nil {
			return nil, err
		}
		v.SetBit(v, bits-1, 1)
		v = nextPrime(v)
		if v.BitLen() != bits {
			continue
		}
		if not != nil && v.Cmp(not) == 0 {
			continue
		}
		return v, nil
	}
}

// subgroupPrime finds a bits-bit prime p = 2*u*v*r + 1.
func subgroupPrime(rand io.Reader, bits int, u, v *big.Int) (*big.Int, error) {
	base := new(big.Int).Mul(u, v)
	base.Lsh(base, 1)
	rbits := bits - base.BitLen()

	for {
		r, err := he.RandomBits(rand, rbits)
		if err != nil {
			return nil, err
		}
		r.SetBit(r, rbits-1, 1)
		p := new(big.Int).Mul(base, r)
		p.Add(p, bigOne)
		if p.BitLen() != bits {
			continue
		}
		if p.ProbablyPrime(20) {
			return p, nil
		}
	}
}

// element finds an element of Z_p^* whose order is exactly the
// product of the prime factors.
func element(rand io.Reader, p *big.Int, factors ...*big.Int) (
	*big.Int, error) {

	order := big.NewInt(1)
	for _, f := range factors {
		order.Mul(order, f)
	}
	e := new(big.Int).Sub(p, bigOne)
	e.Div(e, order)

outer:
	for {
		x, err := he.RandomNonZero(rand, p)
		if err != nil {
			return nil, err
		}
		g := new(big.Int).Exp(x, e, p)
		for _, f := range factors {
			sub := new(big.Int).Div(order, f)
			if new(big.Int).Exp(g, sub, p).Cmp(bigOne) == 0 {
				continue outer
			}
		}
		return g, nil
	}
}

func crt(a, b, p, q *big.Int) *big.Int {
	// x = a + p * ((b - a) * p^-1 mod q)
	pInv := new(big.Int).ModInverse(p, q)
	t := new(big.Int).Sub(b, a)
	t.Mul(t, pInv)
	t.Mod(t, q)
	t.Mul(t, p)
	t.Add(t, a)
	return t
}

func (key *PublicKey) init() {
	key.byteLen = (key.N.BitLen() + 7) / 8
	key.zero = key.wrap(big.NewInt(1))
	key.one = key.wrap(new(big.Int).Set(key.G))
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
		ct.c.Cmp(key.N) >= 0 {
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
	return key.U
}

// Bound implements he.PublicKey.Bound.
func (key *PublicKey) Bound() *big.Int {
	return key.U
}

func (key *PublicKey) reduce(m *big.Int) *big.Int {
	return new(big.Int).Mod(m, key.U)
}

func (key *PublicKey) randomizer(rand io.Reader) (*big.Int, error) {
	r, err := he.RandomBits(rand, key.RandBits*5/2)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Exp(key.H, r, key.N), nil
}

// Encrypt implements he.PublicKey.Encrypt.
func (key *PublicKey) Encrypt(rand io.Reader, m *big.Int) (
	he.Ciphertext, error) {

	hr, err := key.randomizer(rand)
	if err != nil {
		return nil, err
	}
	c := new(big.Int).Exp(key.G, key.reduce(m), key.N)
	c.Mul(c, hr)
	c.Mod(c, key.N)
	return key.wrap(c), nil
}

// Add implements he.PublicKey.Add.
func (key *PublicKey) Add(a, b he.Ciphertext) he.Ciphertext {
	c := new(big.Int).Mul(key.ct(a), key.ct(b))
	return key.wrap(c.Mod(c, key.N))
}

// AddPlain implements he.PublicKey.AddPlain.
func (key *PublicKey) AddPlain(a he.Ciphertext, m *big.Int) he.Ciphertext {
	c := new(big.Int).Exp(key.G, key.reduce(m), key.N)
	c.Mul(c, key.ct(a))
	return key.wrap(c.Mod(c, key.N))
}

// Sub implements he.PublicKey.Sub.
func (key *PublicKey) Sub(a, b he.Ciphertext) he.Ciphertext {
	c := new(big.Int).ModInverse(key.ct(b), key.N)
	c.Mul(c, key.ct(a))
	return key.wrap(c.Mod(c, key.N))
}

// MulScalar implements he.PublicKey.MulScalar.
func (key *PublicKey) MulScalar(a he.Ciphertext, k *big.Int) he.Ciphertext {
	return key.wrap(new(big.Int).Exp(key.ct(a), key.reduce(k), key.N))
}

// Rerandomize implements he.PublicKey.Rerandomize.
func (key *PublicKey) Rerandomize(rand io.Reader, a he.Ciphertext) (
	he.Ciphertext, error) {

	hr, err := key.randomizer(rand)
	if err != nil {
		return nil, err
	}
	c := hr.Mul(hr, key.ct(a))
	return key.wrap(c.Mod(c, key.N)), nil
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
	if c.Sign() == 0 || c.Cmp(key.N) >= 0 {
		return nil, he.ErrInvalidCiphertext
	}
	return key.wrap(c), nil
}

// Marshal implements he.PublicKey.Marshal.
func (key *PublicKey) Marshal() ([]byte, error) {
	return json.Marshal(key)
}

// UnmarshalPublicKey decodes a marshaled DGK public key.
func UnmarshalPublicKey(data []byte) (*PublicKey, error) {
	key := new(PublicKey)
	if err := json.Unmarshal(data, key); err != nil {
		return nil, errors.Wrap(he.ErrInvalidKey, err.Error())
	}
	if key.N == nil || key.G == nil || key.H == nil || key.U == nil ||
		key.N.Sign() <= 0 || key.RandBits <= 0 {
		return nil, he.ErrInvalidKey
	}
	if !key.U.ProbablyPrime(20) {
		return nil, errors.Wrap(he.ErrInvalidKey, "composite plaintext domain")
	}
	key.init()
	return key, nil
}

// Public implements he.PrivateKey.Public.
func (key *PrivateKey) Public() he.PublicKey {
	return &key.PublicKey
}

// IsZero implements he.PrivateKey.IsZero.
func (key *PrivateKey) IsZero(c he.Ciphertext) (bool, error) {
	v, err := key.project(c)
	if err != nil {
		return false, err
	}
	return v.Cmp(bigOne) == 0, nil
}

// project maps c to (g_p^vp)^m mod p.
func (key *PrivateKey) project(c he.Ciphertext) (*big.Int, error) {
	ct, ok := c.(*Ciphertext)
	if !ok {
		return nil, he.ErrInvalidCiphertext
	}
	return new(big.Int).Exp(ct.c, key.VP, key.P), nil
}

func (key *PrivateKey) buildTable() {
	gv := new(big.Int).Exp(key.G, key.VP, key.P)

	m := new(big.Int).Sqrt(key.U)
	m.Add(m, bigOne)
	key.steps = m.Int64()

	key.baby = make(map[string]int64, key.steps)
	v := big.NewInt(1)
	for j := int64(0); j < key.steps; j++ {
		key.baby[string(v.Bytes())] = j
		v.Mul(v, gv)
		v.Mod(v, key.P)
	}
	// giant = gv^-m
	key.giant = new(big.Int).Exp(gv, m, key.P)
	key.giant.ModInverse(key.giant, key.P)
}

// Decrypt implements he.PrivateKey.Decrypt. It solves the discrete
// logarithm in the order u subgroup with baby-step giant-step.
func (key *PrivateKey) Decrypt(c he.Ciphertext) (*big.Int, error) {
	gamma, err := key.project(c)
	if err != nil {
		return nil, err
	}
	key.tableOnce.Do(key.buildTable)

	u := key.U.Int64()
	for i := int64(0); i < key.steps; i++ {
		j, ok := key.baby[string(gamma.Bytes())]
		if ok {
			m := i*key.steps + j
			if m < u {
				return big.NewInt(m), nil
			}
		}
		gamma.Mul(gamma, key.giant)
		gamma.Mod(gamma, key.P)
	}
	return nil, he.ErrUnknownPlaintext
}
