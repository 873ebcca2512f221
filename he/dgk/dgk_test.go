//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dgk

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/markkurossi/hecmp/he"
)

var (
	testKeyOnce sync.Once
	testKey     *PrivateKey
	testKeyErr  error
)

func key(t *testing.T) *PrivateKey {
	testKeyOnce.Do(func() {
		testKey, testKeyErr = GenerateKey(frand.Reader, 256, 8, 40)
	})
	require.NoError(t, testKeyErr)
	return testKey
}

func TestKeyStructure(t *testing.T) {
	k := key(t)

	assert.True(t, k.U.ProbablyPrime(20))
	assert.True(t, k.U.Cmp(new(big.Int).Lsh(big.NewInt(1), 10)) > 0)
	assert.Equal(t, 40, k.VP.BitLen())
	assert.Equal(t, 0, new(big.Int).Mul(k.P, k.Q).Cmp(k.N))

	// h has order vp*vq and g has order u*vp*vq.
	order := new(big.Int).Mul(k.VP, k.VQ)
	assert.Equal(t, 0, new(big.Int).Exp(k.H, order, k.N).Cmp(bigOne))
	order.Mul(order, k.U)
	assert.Equal(t, 0, new(big.Int).Exp(k.G, order, k.N).Cmp(bigOne))
}

func TestEncryptDecrypt(t *testing.T) {
	k := key(t)
	pub := k.Public()

	for _, m := range []int64{0, 1, 2, 17, 255, 1023} {
		c, err := pub.Encrypt(frand.Reader, big.NewInt(m))
		require.NoError(t, err)

		v, err := k.Decrypt(c)
		require.NoError(t, err)
		assert.Equal(t, m, v.Int64())

		zero, err := k.IsZero(c)
		require.NoError(t, err)
		assert.Equal(t, m == 0, zero)
	}

	// u-1 is the largest plaintext.
	last := new(big.Int).Sub(k.U, bigOne)
	c, err := pub.Encrypt(frand.Reader, last)
	require.NoError(t, err)
	v, err := k.Decrypt(c)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(last))
}

func TestHomomorphism(t *testing.T) {
	k := key(t)
	pub := k.Public()

	enc := func(m int64) he.Ciphertext {
		c, err := pub.Encrypt(frand.Reader, big.NewInt(m))
		require.NoError(t, err)
		return c
	}
	dec := func(c he.Ciphertext) int64 {
		v, err := k.Decrypt(c)
		require.NoError(t, err)
		return v.Int64()
	}
	u := k.U.Int64()

	assert.Equal(t, int64(12), dec(pub.Add(enc(5), enc(7))))
	assert.Equal(t, int64(9), dec(pub.AddPlain(enc(5), big.NewInt(4))))
	assert.Equal(t, u-2, dec(pub.Sub(enc(5), enc(7))))
	assert.Equal(t, int64(35), dec(pub.MulScalar(enc(5), big.NewInt(7))))
	assert.Equal(t, u-5, dec(pub.MulScalar(enc(5), big.NewInt(-1))))
	assert.Equal(t, int64(0), dec(pub.Zero()))
	assert.Equal(t, int64(1), dec(pub.One()))
	assert.Equal(t, int64(0), dec(pub.Sub(pub.One(), pub.One())))

	c := enc(3)
	r, err := pub.Rerandomize(frand.Reader, c)
	require.NoError(t, err)
	assert.NotEqual(t, c.Bytes(), r.Bytes())
	assert.Equal(t, int64(3), dec(r))
}

func TestMarshal(t *testing.T) {
	k := key(t)

	data, err := k.Public().Marshal()
	require.NoError(t, err)
	pub, err := UnmarshalPublicKey(data)
	require.NoError(t, err)
	assert.Equal(t, 0, pub.N.Cmp(k.N))
	assert.Equal(t, k.PlainBits, pub.PlainBits)

	c, err := pub.Encrypt(frand.Reader, big.NewInt(42))
	require.NoError(t, err)

	c2, err := k.Public().Unmarshal(c.Bytes())
	require.NoError(t, err)
	v, err := k.Decrypt(c2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	_, err = pub.Unmarshal(c.Bytes()[1:])
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
	_, err = pub.Unmarshal(make([]byte, len(c.Bytes())))
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)

	_, err = UnmarshalPublicKey([]byte(`{"N":1}`))
	assert.ErrorIs(t, err, he.ErrInvalidKey)
}

func TestForeignKey(t *testing.T) {
	k := key(t)
	other, err := GenerateKey(frand.Reader, 256, 8, 40)
	require.NoError(t, err)

	c, err := other.Public().Encrypt(frand.Reader, big.NewInt(7))
	require.NoError(t, err)
	c, err = k.Public().Unmarshal(c.Bytes())
	if err != nil {
		assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
		return
	}
	_, err = k.Decrypt(c)
	assert.ErrorIs(t, err, he.ErrUnknownPlaintext)
}

type otherCiphertext []byte

func (c otherCiphertext) Bytes() []byte {
	return c
}

func TestCheck(t *testing.T) {
	k := key(t)
	pub := k.Public()

	c, err := pub.Encrypt(frand.Reader, big.NewInt(3))
	require.NoError(t, err)
	assert.NoError(t, pub.Check(c))
	assert.NoError(t, pub.Check(pub.Zero()))

	err = pub.Check(otherCiphertext(c.Bytes()))
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)

	_, err = k.Decrypt(otherCiphertext(c.Bytes()))
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
}
