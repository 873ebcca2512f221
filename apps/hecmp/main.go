//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/big"
	"os"

	"github.com/fatih/color"
	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/he/dgk"
	"github.com/markkurossi/hecmp/he/elgamal"
	"github.com/markkurossi/hecmp/he/paillier"
	"github.com/markkurossi/hecmp/protocol"
	"github.com/pkg/profile"
)

func main() {
	keymaster := flag.Bool("k", false, "keymaster mode")
	evaluator := flag.Bool("e", false, "evaluator mode")
	configFile := flag.String("config", "", "configuration `file`")
	op := flag.String("op", opCompareEncrypted,
		"operation: cmp, cmpenc, eq, mul, div, max")
	input := flag.Int64("i", 0, "keymaster input for cmp")
	divisor := flag.Int64("d", 2, "divisor for div")
	dgkMode := flag.Bool("dgk", false, "compute in the DGK domain")
	rounds := flag.Int("n", 100, "benchmark rounds")
	retries := flag.Int("retries", 3, "connection retries")
	cpuprofile := flag.String("cpuprofile", "",
		"write cpu profile to `directory`")
	fVerbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	log.SetFlags(0)

	settings, err := env.LoadSettings(*configFile)
	if err != nil {
		log.Fatalf("could not load settings: %s", err)
	}
	if *fVerbose {
		settings.Verbose = true
	}
	params, err := sessionParams(settings)
	if err != nil {
		log.Fatal(err)
	}

	if len(*cpuprofile) > 0 {
		defer profile.Start(profile.CPUProfile,
			profile.ProfilePath(*cpuprofile)).Stop()
	}

	var args []*big.Int
	for _, arg := range flag.Args() {
		v, ok := new(big.Int).SetString(arg, 0)
		if !ok {
			log.Fatalf("invalid input '%s'", arg)
		}
		args = append(args, v)
	}

	switch {
	case *keymaster:
		err = keymasterMode(settings, params, big.NewInt(*input))

	case *evaluator:
		err = evaluatorMode(settings, &request{
			op:      *op,
			args:    args,
			divisor: big.NewInt(*divisor),
			dgkMode: *dgkMode,
		}, *retries)

	default:
		err = benchmark(settings, params, *op, *dgkMode,
			big.NewInt(*divisor), *rounds)
	}
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func sessionParams(settings *env.Settings) (protocol.Params, error) {
	strategy, err := protocol.ParseStrategy(settings.Strategy)
	if err != nil {
		return protocol.Params{}, err
	}
	params := protocol.Params{
		L:          settings.L,
		Sigma:      settings.Sigma,
		Strategy:   strategy,
		HideResult: settings.HideResult,
		FastDivide: settings.FastDivide,
	}
	return params, params.Validate()
}

// generateKeys creates the bit scheme and arithmetic scheme keys. The
// ElGamal strategy uses one ElGamal key for both.
func generateKeys(settings *env.Settings, params protocol.Params,
	rand io.Reader) (he.PrivateKey, he.PrivateKey, error) {

	if params.Strategy == protocol.ElGamal {
		key, err := elgamal.GenerateKey(rand, settings.ElGamalBits)
		if err != nil {
			return nil, nil, err
		}
		return key, key, nil
	}
	bitKey, err := dgk.GenerateKey(rand, settings.DGKBits, settings.L,
		settings.DGKT)
	if err != nil {
		return nil, nil, err
	}
	arithKey, err := paillier.GenerateKey(settings.PaillierBits)
	if err != nil {
		return nil, nil, err
	}
	return bitKey, arithKey, nil
}

func heading(format string, a ...interface{}) {
	color.Set(color.FgBlue, color.Bold)
	fmt.Printf(format, a...)
	color.Unset()
}
