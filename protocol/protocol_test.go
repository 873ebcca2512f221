//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/p2p"
)

var params8 = Params{
	L:     8,
	Sigma: 8,
}

type pair struct {
	x, y int64
}

var pairs8 = []pair{
	{0, 0}, {0, 1}, {1, 0}, {1, 1}, {5, 5}, {5, 6}, {6, 5},
	{3, 200}, {200, 3}, {127, 128}, {128, 127}, {170, 85}, {85, 170},
	{255, 255}, {254, 255}, {255, 254}, {0, 255}, {255, 0},
}

func randomPairs(n int, l uint) []pair {
	result := make([]pair, n)
	for i := range result {
		result[i] = pair{
			x: int64(frand.Intn(1 << l)),
			y: int64(frand.Intn(1 << l)),
		}
	}
	return result
}

// run runs the evaluator in the calling goroutine and the keymaster
// in a peer goroutine over a pipe.
func run(t *testing.T, params Params, bitPriv, arithPriv he.PrivateKey,
	evaluator func(ev *Evaluator) error,
	keymaster func(km *Keymaster) error) {

	t.Helper()

	c0, c1 := p2p.Pipe()
	done := make(chan error, 1)

	go func() {
		km, err := NewKeymaster(c1, nil, params, bitPriv, arithPriv)
		if err == nil {
			err = keymaster(km)
		}
		done <- err
	}()

	ev, err := NewEvaluator(c0, nil, params, bitPriv.Public(),
		arithPriv.Public())
	require.NoError(t, err)
	err = evaluator(ev)
	kmErr := <-done
	require.NoError(t, err)
	require.NoError(t, kmErr)

	assert.NoError(t, c0.Close())
	assert.NoError(t, c1.Close())
}

func encrypt(t *testing.T, key he.PublicKey, v int64) he.Ciphertext {
	c, err := key.Encrypt(frand.Reader, big.NewInt(v))
	require.NoError(t, err)
	return c
}

func decrypt(t *testing.T, priv he.PrivateKey, c he.Ciphertext) int64 {
	v, err := priv.Decrypt(c)
	require.NoError(t, err)
	return v.Int64()
}

func testCompare(t *testing.T, params Params, bitPriv, arithPriv he.PrivateKey,
	tests []pair) {

	var kmResults []bool
	run(t, params, bitPriv, arithPriv,
		func(ev *Evaluator) error {
			for _, test := range tests {
				result, err := ev.Compare(big.NewInt(test.x))
				if err != nil {
					return err
				}
				assert.Equal(t, test.x <= test.y, result,
					"%s: %d <= %d", params.Strategy, test.x, test.y)
			}
			return nil
		},
		func(km *Keymaster) error {
			for _, test := range tests {
				result, err := km.Compare(big.NewInt(test.y))
				if err != nil {
					return err
				}
				kmResults = append(kmResults, result)
			}
			return nil
		})

	for i, test := range tests {
		assert.Equal(t, test.x <= test.y && !params.HideResult, kmResults[i],
			"keymaster: %d <= %d", test.x, test.y)
	}
}

func TestCompare(t *testing.T) {
	tests := append(pairs8, randomPairs(20, 8)...)
	for _, strategy := range []Strategy{Original, Veugen, Joye} {
		t.Run(strategy.String(), func(t *testing.T) {
			params := params8
			params.Strategy = strategy
			testCompare(t, params, dgk8Key.get(t), paillierKey.get(t), tests)
		})
	}
	t.Run("elgamal", func(t *testing.T) {
		params := params8
		params.Strategy = ElGamal
		testCompare(t, params, elgamalKey.get(t), elgamalKey.get(t), tests)
	})
}

func TestCompareHideResult(t *testing.T) {
	params := params8
	params.HideResult = true
	testCompare(t, params, dgk8Key.get(t), paillierKey.get(t), pairs8)
}

func testCompareEncrypted(t *testing.T, params Params, bitPriv,
	arithPriv he.PrivateKey, dgkMode bool, tests []pair) {

	var kmResults []bool
	run(t, params, bitPriv, arithPriv,
		func(ev *Evaluator) error {
			if err := ev.SetDGKMode(dgkMode); err != nil {
				return err
			}
			key := ev.ActiveKey()
			for _, test := range tests {
				result, err := ev.CompareEncrypted(encrypt(t, key, test.x),
					encrypt(t, key, test.y))
				if err != nil {
					return err
				}
				assert.Equal(t, test.x <= test.y, result,
					"%s: Enc(%d) <= Enc(%d)", key.Name(), test.x, test.y)
			}
			return nil
		},
		func(km *Keymaster) error {
			if err := km.SetDGKMode(dgkMode); err != nil {
				return err
			}
			for range tests {
				result, err := km.CompareEncrypted()
				if err != nil {
					return err
				}
				kmResults = append(kmResults, result)
			}
			return nil
		})

	for i, test := range tests {
		assert.Equal(t, test.x <= test.y && !params.HideResult, kmResults[i],
			"keymaster: Enc(%d) <= Enc(%d)", test.x, test.y)
	}
}

func TestCompareEncrypted(t *testing.T) {
	tests := append(pairs8, randomPairs(20, 8)...)

	for _, strategy := range []Strategy{Original, Veugen, Joye} {
		params := params8
		params.Strategy = strategy

		t.Run("paillier-"+strategy.String(), func(t *testing.T) {
			testCompareEncrypted(t, params, dgk8Key.get(t),
				paillierKey.get(t), false, tests)
		})
		// The DGK domain is too small for the blinding and the
		// comparisons alternate between the fast path and the
		// modified protocol.
		t.Run("dgk-"+strategy.String(), func(t *testing.T) {
			testCompareEncrypted(t, params, dgk8Key.get(t),
				paillierKey.get(t), true, tests)
		})
	}
	t.Run("elgamal", func(t *testing.T) {
		params := params8
		params.Strategy = ElGamal
		testCompareEncrypted(t, params, elgamalKey.get(t), elgamalKey.get(t),
			false, tests)
	})
}

func TestCompareEncryptedHideResult(t *testing.T) {
	params := params8
	params.HideResult = true
	testCompareEncrypted(t, params, dgk8Key.get(t), paillierKey.get(t),
		true, pairs8)

	params.Strategy = ElGamal
	testCompareEncrypted(t, params, elgamalKey.get(t), elgamalKey.get(t),
		false, pairs8)
}

func testEquals(t *testing.T, params Params, bitPriv, arithPriv he.PrivateKey,
	dgkMode bool, tests []pair) {

	run(t, params, bitPriv, arithPriv,
		func(ev *Evaluator) error {
			if err := ev.SetDGKMode(dgkMode); err != nil {
				return err
			}
			key := ev.ActiveKey()
			for _, test := range tests {
				result, err := ev.Equals(encrypt(t, key, test.x),
					encrypt(t, key, test.y))
				if err != nil {
					return err
				}
				assert.Equal(t, test.x == test.y, result,
					"%s: Enc(%d) == Enc(%d)", key.Name(), test.x, test.y)
			}
			return nil
		},
		func(km *Keymaster) error {
			if err := km.SetDGKMode(dgkMode); err != nil {
				return err
			}
			for _, test := range tests {
				result, err := km.Equals()
				if err != nil {
					return err
				}
				assert.Equal(t, test.x == test.y, result)
			}
			return nil
		})
}

func TestEquals(t *testing.T) {
	tests := append(pairs8, randomPairs(10, 8)...)
	for v := int64(0); v < 256; v += 37 {
		tests = append(tests, pair{v, v})
	}

	t.Run("paillier", func(t *testing.T) {
		testEquals(t, params8, dgk8Key.get(t), paillierKey.get(t), false,
			tests)
	})
	t.Run("dgk", func(t *testing.T) {
		testEquals(t, params8, dgk8Key.get(t), paillierKey.get(t), true,
			tests)
	})
	t.Run("elgamal", func(t *testing.T) {
		params := params8
		params.Strategy = ElGamal
		testEquals(t, params, elgamalKey.get(t), elgamalKey.get(t), false,
			tests)
	})
}

func TestMultiply(t *testing.T) {
	tests := []pair{
		{0, 0}, {0, 7}, {1, 1}, {12, 11}, {255, 255}, {128, 2},
	}
	for _, dgkMode := range []bool{false, true} {
		bitPriv := dgk8Key.get(t)
		arithPriv := paillierKey.get(t)
		priv := arithPriv
		if dgkMode {
			priv = bitPriv
		}
		domain := priv.Public().Domain()

		run(t, params8, bitPriv, arithPriv,
			func(ev *Evaluator) error {
				if err := ev.SetDGKMode(dgkMode); err != nil {
					return err
				}
				key := ev.ActiveKey()
				for _, test := range tests {
					c, err := ev.Multiply(encrypt(t, key, test.x),
						encrypt(t, key, test.y))
					if err != nil {
						return err
					}
					expected := big.NewInt(test.x * test.y)
					expected.Mod(expected, domain)
					assert.Equal(t, expected.Int64(), decrypt(t, priv, c),
						"%s: %d*%d", key.Name(), test.x, test.y)
				}
				return nil
			},
			func(km *Keymaster) error {
				if err := km.SetDGKMode(dgkMode); err != nil {
					return err
				}
				for range tests {
					if err := km.Multiply(); err != nil {
						return err
					}
				}
				return nil
			})
	}
}

func testDivide(t *testing.T, params Params, bitPriv, arithPriv he.PrivateKey,
	dgkMode bool, tests []pair) {

	priv := arithPriv
	if dgkMode {
		priv = bitPriv
	}
	run(t, params, bitPriv, arithPriv,
		func(ev *Evaluator) error {
			if err := ev.SetDGKMode(dgkMode); err != nil {
				return err
			}
			key := ev.ActiveKey()
			for _, test := range tests {
				c, err := ev.Divide(encrypt(t, key, test.x), big.NewInt(test.y))
				if err != nil {
					return err
				}
				assert.Equal(t, test.x/test.y, decrypt(t, priv, c),
					"%s: %d/%d", key.Name(), test.x, test.y)
			}
			return nil
		},
		func(km *Keymaster) error {
			if err := km.SetDGKMode(dgkMode); err != nil {
				return err
			}
			for _, test := range tests {
				if err := km.Divide(big.NewInt(test.y)); err != nil {
					return err
				}
			}
			return nil
		})
}

func TestDivide(t *testing.T) {
	var tests []pair
	for _, x := range []int64{0, 1, 2, 9, 100, 127, 128, 200, 255} {
		for _, d := range []int64{1, 2, 3, 4, 7, 10, 128, 255} {
			tests = append(tests, pair{x, d})
		}
	}

	t.Run("paillier", func(t *testing.T) {
		testDivide(t, params8, dgk8Key.get(t), paillierKey.get(t), false,
			tests)
	})
	t.Run("dgk", func(t *testing.T) {
		testDivide(t, params8, dgk8Key.get(t), paillierKey.get(t), true,
			tests)
	})
	t.Run("elgamal", func(t *testing.T) {
		params := params8
		params.Strategy = ElGamal
		testDivide(t, params, elgamalKey.get(t), elgamalKey.get(t), false,
			tests)
	})
}

func TestFastDivide(t *testing.T) {
	params := params8
	params.FastDivide = true

	var tests []pair
	for _, d := range []int64{1, 2, 3, 5, 16, 51} {
		for x := int64(0); x < 256; x += d * 7 {
			tests = append(tests, pair{x, d})
		}
	}
	testDivide(t, params, dgk8Key.get(t), paillierKey.get(t), false, tests)
}

func TestRounds(t *testing.T) {
	tests := randomPairs(8, 8)

	run(t, params8, dgk8Key.get(t), paillierKey.get(t),
		func(ev *Evaluator) error {
			key := ev.ActiveKey()
			for _, test := range tests {
				if err := ev.Continue(true); err != nil {
					return err
				}
				result, err := ev.CompareEncrypted(encrypt(t, key, test.x),
					encrypt(t, key, test.y))
				if err != nil {
					return err
				}
				assert.Equal(t, test.x <= test.y, result)
			}
			return ev.Continue(false)
		},
		func(km *Keymaster) error {
			rounds, err := km.ServeCompareEncrypted()
			assert.Equal(t, len(tests), rounds)
			return err
		})
}

func TestHandshake(t *testing.T) {
	params := params8
	params.Strategy = Joye
	params.HideResult = true

	bitPriv := dgk8Key.get(t)
	arithPriv := paillierKey.get(t)

	c0, c1 := p2p.Pipe()
	done := make(chan error, 1)
	km, err := NewKeymaster(c1, nil, params, bitPriv, arithPriv)
	require.NoError(t, err)

	go func() {
		err := km.SendKeys()
		if err == nil {
			_, err = km.Compare(big.NewInt(100))
		}
		done <- err
	}()

	ev, err := ReceiveKeys(c0, nil)
	require.NoError(t, err)
	assert.Equal(t, km.ID, ev.ID)
	assert.Equal(t, params, ev.Params)
	assert.Equal(t, "dgk", ev.BitKey().Name())
	assert.Equal(t, "paillier", ev.ArithmeticKey().Name())
	assert.Equal(t, 0, ev.BitKey().Domain().Cmp(bitPriv.Public().Domain()))

	result, err := ev.Compare(big.NewInt(99))
	require.NoError(t, err)
	assert.True(t, result)
	require.NoError(t, <-done)
}

func TestSeededSessions(t *testing.T) {
	evRand, err := env.NewSeededRand([]byte("session"), "evaluator")
	require.NoError(t, err)
	kmRand, err := env.NewSeededRand([]byte("session"), "keymaster")
	require.NoError(t, err)

	bitPriv := dgk8Key.get(t)
	arithPriv := paillierKey.get(t)
	c0, c1 := p2p.Pipe()
	done := make(chan error, 1)

	go func() {
		km, err := NewKeymaster(c1, &env.Config{Rand: kmRand}, params8,
			bitPriv, arithPriv)
		if err == nil {
			_, err = km.CompareEncrypted()
		}
		done <- err
	}()

	ev, err := NewEvaluator(c0, &env.Config{Rand: evRand}, params8,
		bitPriv.Public(), arithPriv.Public())
	require.NoError(t, err)
	key := ev.ActiveKey()
	result, err := ev.CompareEncrypted(encrypt(t, key, 17), encrypt(t, key, 16))
	require.NoError(t, err)
	assert.False(t, result)
	require.NoError(t, <-done)
}

// Comparing operands in the DGK domain.
func TestScenarioA(t *testing.T) {
	params := Params{
		L:     16,
		Sigma: 40,
	}
	testCompareEncrypted(t, params, dgk16Key.get(t), paillierKey.get(t), true,
		[]pair{{3, 300}, {300, 3}})
}

// Equality in the Paillier domain.
func TestScenarioB(t *testing.T) {
	testEquals(t, params8, dgk8Key.get(t), paillierKey.get(t), false,
		[]pair{{50, 50}, {49, 50}, {51, 50}})
}

// Multiplication and division.
func TestScenarioC(t *testing.T) {
	params := Params{
		L:     16,
		Sigma: 40,
	}
	priv := paillierKey.get(t)

	run(t, params, dgk16Key.get(t), priv,
		func(ev *Evaluator) error {
			key := ev.ActiveKey()
			c, err := ev.Multiply(encrypt(t, key, 1000), encrypt(t, key, 5))
			if err != nil {
				return err
			}
			assert.Equal(t, int64(5000), decrypt(t, priv, c))

			c, err = ev.Divide(encrypt(t, key, 100), big.NewInt(4))
			if err != nil {
				return err
			}
			assert.Equal(t, int64(25), decrypt(t, priv, c))
			return nil
		},
		func(km *Keymaster) error {
			if err := km.Multiply(); err != nil {
				return err
			}
			return km.Divide(big.NewInt(4))
		})
}

// Operands of different bit lengths skip the candidate vector.
func TestScenarioD(t *testing.T) {
	bitPriv := dgk8Key.get(t)
	ctLen := len(encrypt(t, bitPriv.Public(), 0).Bytes())

	var sent uint64
	run(t, params8, bitPriv, paillierKey.get(t),
		func(ev *Evaluator) error {
			result, err := ev.Compare(big.NewInt(5))
			if err != nil {
				return err
			}
			assert.True(t, result)
			sent = ev.Conn().Stats.Sent.Load()
			return nil
		},
		func(km *Keymaster) error {
			_, err := km.Compare(big.NewInt(20))
			return err
		})

	// The shortcut ciphertext and the reveal ciphertext.
	assert.Equal(t, uint64(2*(1+4+ctLen)), sent)
}

func TestInvalidInput(t *testing.T) {
	bitPriv := dgk8Key.get(t)
	arithPriv := paillierKey.get(t)
	c0, _ := p2p.Pipe()

	ev, err := NewEvaluator(c0, nil, params8, bitPriv.Public(),
		arithPriv.Public())
	require.NoError(t, err)

	_, err = ev.Compare(big.NewInt(256))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ev.Compare(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	x := encrypt(t, ev.ActiveKey(), 10)
	for _, d := range []int64{0, -3, 256} {
		_, err = ev.Divide(x, big.NewInt(d))
		assert.ErrorIs(t, err, ErrInvalidInput, "d=%d", d)
	}
	assert.Zero(t, ev.Conn().Stats.Sent.Load())

	// The DGK domain can't hold 16 bit operands.
	params := params8
	params.L = 16
	ev, err = NewEvaluator(c0, nil, params, bitPriv.Public(),
		arithPriv.Public())
	require.NoError(t, err)
	assert.ErrorIs(t, ev.SetDGKMode(true), ErrInvalidInput)
	assert.False(t, ev.DGKMode())

	params = params8
	params.Strategy = ElGamal
	_, err = NewEvaluator(c0, nil, params, bitPriv.Public(),
		arithPriv.Public())
	assert.ErrorIs(t, err, ErrInvalidInput)

	params.L = 0
	assert.ErrorIs(t, params.Validate(), ErrInvalidInput)
}

func TestMultiplyElGamal(t *testing.T) {
	priv := elgamalKey.get(t)
	params := params8
	params.Strategy = ElGamal
	c0, c1 := p2p.Pipe()

	ev, err := NewEvaluator(c0, nil, params, priv.Public(), priv.Public())
	require.NoError(t, err)
	x := encrypt(t, priv.Public(), 3)
	_, err = ev.Multiply(x, x)
	assert.ErrorIs(t, err, ErrInvalidInput)

	km, err := NewKeymaster(c1, nil, params, priv, priv)
	require.NoError(t, err)
	assert.ErrorIs(t, km.Multiply(), ErrInvalidInput)

	c, err := km.Encrypt(4711)
	require.NoError(t, err)
	v, err := km.Decrypt(c)
	require.NoError(t, err)
	assert.Equal(t, int64(4711), v.Int64())
}

func TestKeymasterDecrypt(t *testing.T) {
	priv := paillierKey.get(t)
	_, c1 := p2p.Pipe()
	km, err := NewKeymaster(c1, nil, params8, dgk8Key.get(t), priv)
	require.NoError(t, err)

	// 2^70 + 5 does not fit in an int64.
	m := new(big.Int).Lsh(bigOne, 70)
	m.Add(m, big.NewInt(5))
	c, err := priv.Public().Encrypt(frand.Reader, m)
	require.NoError(t, err)

	v, err := km.Decrypt(c)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Cmp(v), "got %v", v)
}

func TestForeignCiphertext(t *testing.T) {
	bitPriv := dgk8Key.get(t)
	arithPriv := paillierKey.get(t)
	c0, _ := p2p.Pipe()

	ev, err := NewEvaluator(c0, nil, params8, bitPriv.Public(),
		arithPriv.Public())
	require.NoError(t, err)
	require.NoError(t, ev.SetDGKMode(true))

	pc := encrypt(t, arithPriv.Public(), 10)
	dc := encrypt(t, bitPriv.Public(), 10)

	_, err = ev.CompareEncrypted(pc, pc)
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
	_, err = ev.CompareEncrypted(dc, pc)
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
	_, err = ev.Equals(pc, dc)
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
	_, err = ev.Divide(pc, big.NewInt(3))
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)
	_, err = ev.CompareEncrypted(dc, nil)
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)

	require.NoError(t, ev.SetDGKMode(false))
	_, err = ev.Multiply(pc, dc)
	assert.ErrorIs(t, err, he.ErrInvalidCiphertext)

	assert.Zero(t, ev.Conn().Stats.Sent.Load())
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Original, Veugen, Joye, ElGamal} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	s, err := ParseStrategy("Veugen")
	require.NoError(t, err)
	assert.Equal(t, Veugen, s)

	_, err = ParseStrategy("bitonic")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUnexpectedMessage(t *testing.T) {
	run(t, params8, dgk8Key.get(t), paillierKey.get(t),
		func(ev *Evaluator) error {
			if _, err := ev.conn.ReceiveCiphertextArray(); err != nil {
				return err
			}
			if err := ev.conn.SendBoolean(true); err != nil {
				return err
			}
			return ev.conn.Flush()
		},
		func(km *Keymaster) error {
			_, err := km.Compare(big.NewInt(7))
			assert.ErrorIs(t, err, p2p.ErrUnexpectedMessage)
			return nil
		})
}

func TestNonBinaryShortcut(t *testing.T) {
	run(t, params8, dgk8Key.get(t), paillierKey.get(t),
		func(ev *Evaluator) error {
			if _, err := ev.conn.ReceiveCiphertextArray(); err != nil {
				return err
			}
			c, err := ev.bitKey.Encrypt(frand.Reader, big.NewInt(5))
			if err != nil {
				return err
			}
			if err := ev.sendCiphertext(c); err != nil {
				return err
			}
			return ev.conn.Flush()
		},
		func(km *Keymaster) error {
			_, err := km.Compare(big.NewInt(7))
			assert.ErrorIs(t, err, ErrProtocolViolation)
			return nil
		})
}
