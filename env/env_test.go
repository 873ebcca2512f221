//
// env_test.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package env

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSeededRand(t *testing.T) {
	r0, err := NewSeededRand([]byte("seed"), "evaluator")
	if err != nil {
		t.Fatal(err)
	}
	r1, err := NewSeededRand([]byte("seed"), "evaluator")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := NewSeededRand([]byte("other seed"), "evaluator")
	if err != nil {
		t.Fatal(err)
	}

	var b0, b1, b2 [64]byte
	r0.Read(b0[:])
	r1.Read(b1[:])
	r2.Read(b2[:])

	if !bytes.Equal(b0[:], b1[:]) {
		t.Errorf("same seed produced different streams")
	}
	if bytes.Equal(b0[:], b2[:]) {
		t.Errorf("different seeds produced the same stream")
	}

	// The stream continues and does not repeat the first block.
	r0.Read(b2[:])
	if bytes.Equal(b0[:], b2[:]) {
		t.Errorf("keystream repeated")
	}
}

func TestGetRandom(t *testing.T) {
	var config *Config
	if config.GetRandom() == nil {
		t.Fatalf("nil config has no entropy source")
	}
	r, err := NewSeededRand([]byte{1, 2, 3}, "")
	if err != nil {
		t.Fatal(err)
	}
	config = &Config{
		Rand: r,
	}
	if config.GetRandom() != r {
		t.Errorf("GetRandom ignored configured reader")
	}
}

func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatal(err)
	}
	if s.L != DefaultL || s.Sigma != DefaultSigma ||
		s.Strategy != DefaultStrategy || s.Addr != DefaultAddr {
		t.Errorf("unexpected defaults: %+v", s)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "hecmp.yaml")
	data := []byte(`l: 12
sigma: 20
strategy: joye
dgk:
  bits: 512
  t: 80
fast_divide: true
seed: abc
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	s, err = LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.L != 12 || s.Sigma != 20 || s.Strategy != "joye" {
		t.Errorf("protocol settings not loaded: %+v", s)
	}
	if s.DGKBits != 512 || s.DGKT != 80 {
		t.Errorf("dgk settings not loaded: %+v", s)
	}
	if !s.FastDivide || s.HideResult {
		t.Errorf("flags not loaded: %+v", s)
	}
	if s.PaillierBits != DefaultPaillierBits {
		t.Errorf("default not kept: %+v", s)
	}

	config, err := s.Config("keygen")
	if err != nil {
		t.Fatal(err)
	}
	if config.Rand == nil {
		t.Errorf("seed did not produce a deterministic reader")
	}
}

func TestSeededLabels(t *testing.T) {
	s := &Settings{
		Seed: "bench",
	}
	streams := make(map[string][]byte)
	for _, label := range []string{
		"keygen", "evaluator", "keymaster", "keymaster/1", "keymaster/2",
	} {
		config, err := s.Config(label)
		if err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, 32)
		config.GetRandom().Read(buf)
		for l, b := range streams {
			if bytes.Equal(b, buf) {
				t.Errorf("labels %q and %q share a stream", l, label)
			}
		}
		streams[label] = buf

		again, err := s.Config(label)
		if err != nil {
			t.Fatal(err)
		}
		buf2 := make([]byte, 32)
		again.GetRandom().Read(buf2)
		if !bytes.Equal(buf, buf2) {
			t.Errorf("label %q is not reproducible", label)
		}
	}

	// The seed and label boundary is unambiguous.
	r0, err := NewSeededRand([]byte("ab"), "c")
	if err != nil {
		t.Fatal(err)
	}
	r1, err := NewSeededRand([]byte("a"), "bc")
	if err != nil {
		t.Fatal(err)
	}
	var b0, b1 [32]byte
	r0.Read(b0[:])
	r1.Read(b1[:])
	if bytes.Equal(b0[:], b1[:]) {
		t.Errorf("seed and label boundary is ambiguous")
	}
}
