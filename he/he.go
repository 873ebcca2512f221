//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package he defines the additively homomorphic encryption
// capabilities the comparison protocols need from a scheme.
package he

import (
	crand "crypto/rand"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownPlaintext is returned when a ciphertext does not
	// decrypt to a value in the scheme's recoverable range. It
	// usually means the ciphertext was created under another key.
	ErrUnknownPlaintext = errors.New("he: unknown plaintext")

	// ErrInvalidCiphertext is returned when ciphertext bytes do not
	// encode a valid ciphertext for the key.
	ErrInvalidCiphertext = errors.New("he: invalid ciphertext")

	// ErrInvalidKey is returned when key bytes do not encode a valid
	// public key.
	ErrInvalidKey = errors.New("he: invalid key")
)

// Ciphertext is an opaque ciphertext. Ciphertexts are immutable.
type Ciphertext interface {
	Bytes() []byte
}

// PublicKey implements the homomorphic operations of a scheme. All
// plaintexts are interpreted modulo Domain. Public keys are immutable
// and safe for concurrent use.
type PublicKey interface {
	// Name returns the scheme name.
	Name() string

	// Domain returns the plaintext modulus.
	Domain() *big.Int

	// Bound returns the exclusive upper bound of the plaintexts the
	// private key can recover.
	Bound() *big.Int

	// Check verifies that c is a ciphertext of this key. The
	// homomorphic operations must only be applied to checked
	// ciphertexts.
	Check(c Ciphertext) error

	// Encrypt encrypts m with randomness from rand.
	Encrypt(rand io.Reader, m *big.Int) (Ciphertext, error)

	// Add returns Enc(a+b).
	Add(a, b Ciphertext) Ciphertext

	// AddPlain returns Enc(a+m).
	AddPlain(a Ciphertext, m *big.Int) Ciphertext

	// Sub returns Enc(a-b).
	Sub(a, b Ciphertext) Ciphertext

	// MulScalar returns Enc(a*k).
	MulScalar(a Ciphertext, k *big.Int) Ciphertext

	// Rerandomize returns a fresh encryption of the plaintext of a.
	Rerandomize(rand io.Reader, a Ciphertext) (Ciphertext, error)

	// Zero returns the trivial encryption of 0.
	Zero() Ciphertext

	// One returns the trivial encryption of 1.
	One() Ciphertext

	// Unmarshal decodes ciphertext bytes.
	Unmarshal(data []byte) (Ciphertext, error)

	// Marshal encodes the public key.
	Marshal() ([]byte, error)
}

// PrivateKey implements decryption.
type PrivateKey interface {
	Public() PublicKey

	// Decrypt decrypts c. The result is in [0, Bound).
	Decrypt(c Ciphertext) (*big.Int, error)

	// IsZero tests if c encrypts zero.
	IsZero(c Ciphertext) (bool, error)
}

// RandomInt returns a uniform random value in [0, max).
func RandomInt(rand io.Reader, max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, errors.Errorf("he: invalid random range %v", max)
	}
	return crand.Int(rand, max)
}

// RandomNonZero returns a uniform random value in [1, max).
func RandomNonZero(rand io.Reader, max *big.Int) (*big.Int, error) {
	if max.Cmp(big.NewInt(1)) <= 0 {
		return nil, errors.Errorf("he: invalid random range %v", max)
	}
	v, err := crand.Int(rand, new(big.Int).Sub(max, big.NewInt(1)))
	if err != nil {
		return nil, err
	}
	return v.Add(v, big.NewInt(1)), nil
}

// RandomBits returns a uniform random value with at most bits bits.
func RandomBits(rand io.Reader, bits int) (*big.Int, error) {
	return crand.Int(rand, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
}
