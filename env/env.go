//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package env implements global environment for the comparison
// protocols.
package env

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
	"lukechampine.com/frand"
)

// Config defines the global system configuration. It configures
// system operation for all protocol sessions. Config must not be
// modified after being passed to any session. It is safe for
// concurrent use by multiple sessions as they do not modify it,
// provided that Rand is safe for concurrent use.
type Config struct {
	Rand    io.Reader
	Verbose bool
}

// GetRandom returns the source of entropy for key generation,
// blinding, shuffling, and the protocol coins.
func (config *Config) GetRandom() io.Reader {
	if config != nil && config.Rand != nil {
		return config.Rand
	}
	return frand.Reader
}

// Debugf prints debugging message if verbose output is enabled.
func (config *Config) Debugf(format string, a ...interface{}) {
	if config == nil || !config.Verbose {
		return
	}
	fmt.Printf(format, a...)
}

// NewSeededRand creates a deterministic entropy source from the seed
// and label. The stream is the chacha20 keystream keyed with the
// BLAKE2b digest of the length prefixed seed and the label. Distinct
// labels give independent streams from the same seed. The returned
// reader must not be shared between goroutines.
func NewSeededRand(seed []byte, label string) (io.Reader, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(seed)))
	h.Write(hdr[:])
	h.Write(seed)
	h.Write([]byte(label))
	key := h.Sum(nil)

	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		return nil, err
	}
	return &seeded{
		cipher: cipher,
	}, nil
}

type seeded struct {
	cipher *chacha20.Cipher
}

func (s *seeded) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	s.cipher.XORKeyStream(p, p)
	return len(p), nil
}
