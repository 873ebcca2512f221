//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package env

import (
	"strings"

	"github.com/spf13/viper"
)

// Settings holds the tunable parameters of a deployment: protocol
// parameters, scheme key sizes, and network address.
type Settings struct {
	L            int
	Sigma        int
	Strategy     string
	DGKBits      int
	DGKT         int
	PaillierBits int
	ElGamalBits  int
	HideResult   bool
	FastDivide   bool
	Addr         string
	Seed         string
	Verbose      bool
}

// Default settings.
const (
	DefaultL            = 16
	DefaultSigma        = 40
	DefaultStrategy     = "original"
	DefaultDGKBits      = 1024
	DefaultDGKT         = 160
	DefaultPaillierBits = 1024
	DefaultElGamalBits  = 40
	DefaultAddr         = ":8080"
)

// LoadSettings loads settings from the configuration file path. If
// path is empty, only defaults and HECMP_* environment variables are
// used.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("l", DefaultL)
	v.SetDefault("sigma", DefaultSigma)
	v.SetDefault("strategy", DefaultStrategy)
	v.SetDefault("dgk.bits", DefaultDGKBits)
	v.SetDefault("dgk.t", DefaultDGKT)
	v.SetDefault("paillier.bits", DefaultPaillierBits)
	v.SetDefault("elgamal.bits", DefaultElGamalBits)
	v.SetDefault("hide_result", false)
	v.SetDefault("fast_divide", false)
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("seed", "")
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("HECMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(path) > 0 {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &Settings{
		L:            v.GetInt("l"),
		Sigma:        v.GetInt("sigma"),
		Strategy:     v.GetString("strategy"),
		DGKBits:      v.GetInt("dgk.bits"),
		DGKT:         v.GetInt("dgk.t"),
		PaillierBits: v.GetInt("paillier.bits"),
		ElGamalBits:  v.GetInt("elgamal.bits"),
		HideResult:   v.GetBool("hide_result"),
		FastDivide:   v.GetBool("fast_divide"),
		Addr:         v.GetString("addr"),
		Seed:         v.GetString("seed"),
		Verbose:      v.GetBool("verbose"),
	}, nil
}

// Config creates the runtime configuration for the settings. With a
// seed, the entropy source is the seeded stream for label. Each
// party and session must use its own label.
func (s *Settings) Config(label string) (*Config, error) {
	config := &Config{
		Verbose: s.Verbose,
	}
	if len(s.Seed) > 0 {
		r, err := NewSeededRand([]byte(s.Seed), label)
		if err != nil {
			return nil, err
		}
		config.Rand = r
	}
	return config, nil
}
