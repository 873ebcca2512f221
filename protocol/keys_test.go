//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/he/dgk"
	"github.com/markkurossi/hecmp/he/elgamal"
	"github.com/markkurossi/hecmp/he/paillier"
)

// testKey generates its key once per test binary.
type testKey struct {
	once sync.Once
	gen  func() (he.PrivateKey, error)
	key  he.PrivateKey
	err  error
}

func (k *testKey) get(t *testing.T) he.PrivateKey {
	t.Helper()
	k.once.Do(func() {
		k.key, k.err = k.gen()
	})
	require.NoError(t, k.err)
	return k.key
}

var (
	dgk8Key = &testKey{
		gen: func() (he.PrivateKey, error) {
			return dgk.GenerateKey(frand.Reader, 256, 8, 40)
		},
	}
	dgk16Key = &testKey{
		gen: func() (he.PrivateKey, error) {
			return dgk.GenerateKey(frand.Reader, 256, 16, 40)
		},
	}
	paillierKey = &testKey{
		gen: func() (he.PrivateKey, error) {
			return paillier.GenerateKey(512)
		},
	}
	elgamalKey = &testKey{
		gen: func() (he.PrivateKey, error) {
			return elgamal.GenerateKey(frand.Reader, 20)
		},
	}
)
