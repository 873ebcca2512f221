//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package elgamal implements exponential ElGamal over the P-256
// curve. Plaintexts are encoded as multiples of the base point so the
// scheme is additively homomorphic. Decryption solves a bounded
// discrete logarithm and recovers plaintexts below 2^MaxBits.
package elgamal

import (
	"crypto/elliptic"
	"encoding/json"
	"io"
	"math/big"
	"sync"

	"github.com/markkurossi/hecmp/he"
	"github.com/pkg/errors"
)

// Name is the scheme name.
const Name = "elgamal"

const pointLen = 33

var (
	curve = elliptic.P256()

	_ he.PublicKey  = &PublicKey{}
	_ he.PrivateKey = &PrivateKey{}
)

// Point is an affine curve point. The point at infinity is (0, 0).
type Point struct {
	X *big.Int
	Y *big.Int
}

func infinity() Point {
	return Point{
		X: new(big.Int),
		Y: new(big.Int),
	}
}

// IsInfinity tests if the point is the point at infinity.
func (p Point) IsInfinity() bool {
	return p.X.Sign() == 0 && p.Y.Sign() == 0
}

func (p Point) add(o Point) Point {
	x, y := curve.Add(p.X, p.Y, o.X, o.Y)
	return Point{X: x, Y: y}
}

func (p Point) neg() Point {
	if p.IsInfinity() {
		return p
	}
	return Point{
		X: p.X,
		Y: new(big.Int).Sub(curve.Params().P, p.Y),
	}
}

func (p Point) mul(k *big.Int) Point {
	k = new(big.Int).Mod(k, curve.Params().N)
	if k.Sign() == 0 || p.IsInfinity() {
		return infinity()
	}
	x, y := curve.ScalarMult(p.X, p.Y, k.Bytes())
	return Point{X: x, Y: y}
}

func baseMul(k *big.Int) Point {
	k = new(big.Int).Mod(k, curve.Params().N)
	if k.Sign() == 0 {
		return infinity()
	}
	x, y := curve.ScalarBaseMult(k.Bytes())
	return Point{X: x, Y: y}
}

func (p Point) encode(buf []byte) {
	if p.IsInfinity() {
		for i := 0; i < pointLen; i++ {
			buf[i] = 0
		}
		return
	}
	copy(buf, elliptic.MarshalCompressed(curve, p.X, p.Y))
}

func decodePoint(data []byte) (Point, error) {
	zero := true
	for _, b := range data {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return infinity(), nil
	}
	x, y := elliptic.UnmarshalCompressed(curve, data)
	if x == nil {
		return Point{}, he.ErrInvalidCiphertext
	}
	return Point{X: x, Y: y}, nil
}

// PublicKey implements an exponential ElGamal public key H = x*G.
type PublicKey struct {
	H       Point
	MaxBits int

	bound *big.Int
	zero  *Ciphertext
	one   *Ciphertext
}

// PrivateKey implements an exponential ElGamal private key.
type PrivateKey struct {
	PublicKey
	X *big.Int

	tableOnce sync.Once
	baby      map[string]int64
	giant     Point
	steps     int64
}

// Ciphertext implements an ElGamal ciphertext (C1, C2) = (r*G,
// m*G + r*H).
type Ciphertext struct {
	C1    Point
	C2    Point
	bytes []byte
}

func newCiphertext(c1, c2 Point) *Ciphertext {
	buf := make([]byte, 2*pointLen)
	c1.encode(buf[:pointLen])
	c2.encode(buf[pointLen:])
	return &Ciphertext{
		C1:    c1,
		C2:    c2,
		bytes: buf,
	}
}

// Bytes implements he.Ciphertext.Bytes.
func (c *Ciphertext) Bytes() []byte {
	return c.bytes
}

// GenerateKey creates a new key that decrypts plaintexts below
// 2^maxBits.
func GenerateKey(rand io.Reader, maxBits int) (*PrivateKey, error) {
	if maxBits < 1 || maxBits > 48 {
		return nil, errors.Errorf("elgamal: invalid plaintext bits %d", maxBits)
	}
	x, err := he.RandomNonZero(rand, curve.Params().N)
	if err != nil {
		return nil, err
	}
	key := &PrivateKey{
		PublicKey: PublicKey{
			H:       baseMul(x),
			MaxBits: maxBits,
		},
		X: x,
	}
	key.PublicKey.init()
	return key, nil
}

func (key *PublicKey) init() {
	key.bound = new(big.Int).Lsh(big.NewInt(1), uint(key.MaxBits))
	key.zero = newCiphertext(infinity(), infinity())
	key.one = newCiphertext(infinity(), baseMul(big.NewInt(1)))
}

func (key *PublicKey) ct(c he.Ciphertext) *Ciphertext {
	return c.(*Ciphertext)
}

// Check implements he.PublicKey.Check.
func (key *PublicKey) Check(c he.Ciphertext) error {
	if _, ok := c.(*Ciphertext); !ok {
		return errors.Wrapf(he.ErrInvalidCiphertext, "%T is not an %s ciphertext",
			c, Name)
	}
	return nil
}

// Name implements he.PublicKey.Name.
func (key *PublicKey) Name() string {
	return Name
}

// Domain implements he.PublicKey.Domain.
func (key *PublicKey) Domain() *big.Int {
	return curve.Params().N
}

// Bound implements he.PublicKey.Bound.
func (key *PublicKey) Bound() *big.Int {
	return key.bound
}

func (key *PublicKey) encryptZero(rand io.Reader) (Point, Point, error) {
	r, err := he.RandomNonZero(rand, curve.Params().N)
	if err != nil {
		return Point{}, Point{}, err
	}
	return baseMul(r), key.H.mul(r), nil
}

// Encrypt implements he.PublicKey.Encrypt.
func (key *PublicKey) Encrypt(rand io.Reader, m *big.Int) (
	he.Ciphertext, error) {

	c1, c2, err := key.encryptZero(rand)
	if err != nil {
		return nil, err
	}
	return newCiphertext(c1, c2.add(baseMul(m))), nil
}

// Add implements he.PublicKey.Add.
func (key *PublicKey) Add(a, b he.Ciphertext) he.Ciphertext {
	ca := key.ct(a)
	cb := key.ct(b)
	return newCiphertext(ca.C1.add(cb.C1), ca.C2.add(cb.C2))
}

// AddPlain implements he.PublicKey.AddPlain.
func (key *PublicKey) AddPlain(a he.Ciphertext, m *big.Int) he.Ciphertext {
	ca := key.ct(a)
	return newCiphertext(ca.C1, ca.C2.add(baseMul(m)))
}

// Sub implements he.PublicKey.Sub.
func (key *PublicKey) Sub(a, b he.Ciphertext) he.Ciphertext {
	ca := key.ct(a)
	cb := key.ct(b)
	return newCiphertext(ca.C1.add(cb.C1.neg()), ca.C2.add(cb.C2.neg()))
}

// MulScalar implements he.PublicKey.MulScalar.
func (key *PublicKey) MulScalar(a he.Ciphertext, k *big.Int) he.Ciphertext {
	ca := key.ct(a)
	return newCiphertext(ca.C1.mul(k), ca.C2.mul(k))
}

// Rerandomize implements he.PublicKey.Rerandomize.
func (key *PublicKey) Rerandomize(rand io.Reader, a he.Ciphertext) (
	he.Ciphertext, error) {

	c1, c2, err := key.encryptZero(rand)
	if err != nil {
		return nil, err
	}
	ca := key.ct(a)
	return newCiphertext(ca.C1.add(c1), ca.C2.add(c2)), nil
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
	if len(data) != 2*pointLen {
		return nil, he.ErrInvalidCiphertext
	}
	c1, err := decodePoint(data[:pointLen])
	if err != nil {
		return nil, err
	}
	c2, err := decodePoint(data[pointLen:])
	if err != nil {
		return nil, err
	}
	return newCiphertext(c1, c2), nil
}

// Marshal implements he.PublicKey.Marshal.
func (key *PublicKey) Marshal() ([]byte, error) {
	return json.Marshal(key)
}

// UnmarshalPublicKey decodes a marshaled ElGamal public key.
func UnmarshalPublicKey(data []byte) (*PublicKey, error) {
	key := new(PublicKey)
	if err := json.Unmarshal(data, key); err != nil {
		return nil, errors.Wrap(he.ErrInvalidKey, err.Error())
	}
	if key.H.X == nil || key.H.Y == nil ||
		!curve.IsOnCurve(key.H.X, key.H.Y) {
		return nil, errors.Wrap(he.ErrInvalidKey, "point not on curve")
	}
	if key.MaxBits < 1 || key.MaxBits > 48 {
		return nil, errors.Wrapf(he.ErrInvalidKey, "invalid plaintext bits %d",
			key.MaxBits)
	}
	key.init()
	return key, nil
}

// Public implements he.PrivateKey.Public.
func (key *PrivateKey) Public() he.PublicKey {
	return &key.PublicKey
}

// point returns m*G = C2 - x*C1.
func (key *PrivateKey) point(c he.Ciphertext) (Point, error) {
	ct, ok := c.(*Ciphertext)
	if !ok {
		return Point{}, he.ErrInvalidCiphertext
	}
	return ct.C2.add(ct.C1.mul(key.X).neg()), nil
}

// IsZero implements he.PrivateKey.IsZero.
func (key *PrivateKey) IsZero(c he.Ciphertext) (bool, error) {
	p, err := key.point(c)
	if err != nil {
		return false, err
	}
	return p.IsInfinity(), nil
}

func (key *PrivateKey) buildTable() {
	key.steps = 1 << ((key.MaxBits + 1) / 2)
	key.baby = make(map[string]int64, key.steps)

	var buf [pointLen]byte
	p := infinity()
	g := baseMul(big.NewInt(1))
	for j := int64(0); j < key.steps; j++ {
		p.encode(buf[:])
		key.baby[string(buf[:])] = j
		p = p.add(g)
	}
	key.giant = baseMul(big.NewInt(key.steps)).neg()
}

// Decrypt implements he.PrivateKey.Decrypt.
func (key *PrivateKey) Decrypt(c he.Ciphertext) (*big.Int, error) {
	gamma, err := key.point(c)
	if err != nil {
		return nil, err
	}
	key.tableOnce.Do(key.buildTable)

	var buf [pointLen]byte
	for i := int64(0); i < key.steps; i++ {
		gamma.encode(buf[:])
		j, ok := key.baby[string(buf[:])]
		if ok {
			m := big.NewInt(i*key.steps + j)
			if m.Cmp(key.bound) < 0 {
				return m, nil
			}
		}
		gamma = gamma.add(key.giant)
	}
	return nil, he.ErrUnknownPlaintext
}
