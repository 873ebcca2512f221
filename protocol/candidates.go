//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"io"
	"math/big"

	"github.com/markkurossi/hecmp/he"
)

// bitsOf returns the width lowest bits of v, LSB first. If width is
// 0, it returns v.BitLen() bits.
func bitsOf(v *big.Int, width int) []int {
	if width == 0 {
		width = v.BitLen()
	}
	result := make([]int, width)
	for i := 0; i < width; i++ {
		result[i] = int(v.Bit(i))
	}
	return result
}

// xorVector returns Enc(x_i xor y_i) for the known bits x and the
// encrypted bits y.
func xorVector(key he.PublicKey, x []int, y []he.Ciphertext) []he.Ciphertext {
	result := make([]he.Ciphertext, len(y))
	for i, yi := range y {
		if x[i] == 0 {
			result[i] = yi
		} else {
			result[i] = key.Sub(key.One(), yi)
		}
	}
	return result
}

// higherSums returns for each index i the sum of the xor entries more
// significant than i, and the sum of all entries.
func higherSums(key he.PublicKey, w []he.Ciphertext) (
	[]he.Ciphertext, he.Ciphertext) {

	result := make([]he.Ciphertext, len(w))
	sum := key.Zero()
	for i := len(w) - 1; i >= 0; i-- {
		result[i] = sum
		sum = key.Add(sum, w[i])
	}
	return result, sum
}

// compareSlots computes the comparison candidates for the known bits
// x against the encrypted bits y:
//
//	C_i = 3*S_i + (1 - 2*deltaA) + x_i - y_i
//	C_t = sum(W) + deltaA
//
// A zero exists iff x <= y (deltaA = 0) or x > y (deltaA = 1). If
// sparse is set, the slots where x_i != deltaA are left nil since
// they can't be zero.
func compareSlots(key he.PublicKey, x []int, y []he.Ciphertext, deltaA int,
	sparse bool) []he.Ciphertext {

	w := xorVector(key, x, y)
	s, sum := higherSums(key, w)

	result := make([]he.Ciphertext, len(y)+1)
	for i := range y {
		if sparse && x[i] != deltaA {
			continue
		}
		c := key.MulScalar(s[i], big.NewInt(3))
		c = key.Sub(c, y[i])
		result[i] = key.AddPlain(c, big.NewInt(int64(1-2*deltaA+x[i])))
	}
	result[len(y)] = key.AddPlain(sum, big.NewInt(int64(deltaA)))

	return result
}

// equalitySlots computes the equality candidates for the known bits x
// against the encrypted bits y:
//
//	C_i = 2*S_i - 1 + W_i + K*(1 - deltaA)
//	C_t = sum(W) + K*deltaA
//
// with K = 2t + 2. A zero exists iff x == y (deltaA = 0) or x != y
// (deltaA = 1).
func equalitySlots(key he.PublicKey, x []int, y []he.Ciphertext,
	deltaA int) []he.Ciphertext {

	w := xorVector(key, x, y)
	s, sum := higherSums(key, w)
	k := int64(2*len(y) + 2)

	result := make([]he.Ciphertext, len(y)+1)
	for i := range y {
		c := key.MulScalar(s[i], big.NewInt(2))
		c = key.Add(c, w[i])
		result[i] = key.AddPlain(c, big.NewInt(k*int64(1-deltaA)-1))
	}
	result[len(y)] = key.AddPlain(sum, big.NewInt(k*int64(deltaA)))

	return result
}

// joyeDelta selects deltaA so that at most len(x)/2 bits of x equal
// deltaA. Ties are broken with randomBit.
func joyeDelta(x []int, randomBit func() (int, error)) (int, error) {
	var ones int
	for _, bit := range x {
		ones += bit
	}
	zeros := len(x) - ones
	switch {
	case ones < zeros:
		return 1, nil
	case zeros < ones:
		return 0, nil
	default:
		return randomBit()
	}
}

// randomNonZero returns a fresh encryption of a uniform nonzero
// value.
func randomNonZero(rand io.Reader, key he.PublicKey) (he.Ciphertext, error) {
	v, err := he.RandomNonZero(rand, key.Domain())
	if err != nil {
		return nil, err
	}
	return key.Encrypt(rand, v)
}

// fillSlots replaces nil slots with random nonzero encryptions.
func fillSlots(rand io.Reader, key he.PublicKey, slots []he.Ciphertext) error {
	for i, c := range slots {
		if c != nil {
			continue
		}
		r, err := randomNonZero(rand, key)
		if err != nil {
			return err
		}
		slots[i] = r
	}
	return nil
}

// compactSlots drops the nil slots and pads the result with random
// nonzero encryptions to size slots.
func compactSlots(rand io.Reader, key he.PublicKey, slots []he.Ciphertext,
	size int) ([]he.Ciphertext, error) {

	var result []he.Ciphertext
	for _, c := range slots {
		if c != nil {
			result = append(result, c)
		}
	}
	for len(result) < size {
		r, err := randomNonZero(rand, key)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// numSlots returns the candidate vector length for t bit operands.
func numSlots(strategy Strategy, t int) int {
	if strategy == Joye {
		return t/2 + 1
	}
	return t + 1
}

// blind multiplies each slot with an independent uniform nonzero
// scalar and rerandomizes it. Zero slots stay zero and nonzero slots
// become uniform nonzero values.
func blind(rand io.Reader, key he.PublicKey, slots []he.Ciphertext) (
	[]he.Ciphertext, error) {

	result := make([]he.Ciphertext, len(slots))
	for i, c := range slots {
		k, err := he.RandomNonZero(rand, key.Domain())
		if err != nil {
			return nil, err
		}
		result[i], err = key.Rerandomize(rand, key.MulScalar(c, k))
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// shuffle returns a new slice with the slots in uniformly random
// order.
func shuffle(rand io.Reader, slots []he.Ciphertext) ([]he.Ciphertext, error) {
	result := make([]he.Ciphertext, len(slots))
	copy(result, slots)
	for i := len(result) - 1; i > 0; i-- {
		j, err := he.RandomInt(rand, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, err
		}
		jj := int(j.Int64())
		result[i], result[jj] = result[jj], result[i]
	}
	return result, nil
}
