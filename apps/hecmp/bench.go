//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/markkurossi/hecmp"
	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/p2p"
	"github.com/markkurossi/hecmp/protocol"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"lukechampine.com/frand"
)

// benchmark runs rounds operations with random operands between an
// in-process evaluator and keymaster, and verifies the results.
func benchmark(settings *env.Settings, params protocol.Params, op string,
	dgkMode bool, divisor *big.Int, rounds int) error {

	switch op {
	case opCompareEncrypted, opEquals, opMultiply, opDivide:
	default:
		return errors.Errorf("operation '%s' not supported in benchmark", op)
	}

	keyConfig, err := settings.Config("keygen")
	if err != nil {
		return err
	}
	timing := hecmp.NewTiming()
	bitKey, arithKey, err := generateKeys(settings, params,
		keyConfig.GetRandom())
	if err != nil {
		return err
	}
	timing.Sample("Keygen", bitKey.Public().Name(),
		arithKey.Public().Name())

	p0, p1 := net.Pipe()
	defer p0.Close()
	c0, c1 := p2p.NewConn(p0), p2p.NewConn(p1)

	config, err := settings.Config("evaluator")
	if err != nil {
		return err
	}
	kmConfig, err := settings.Config("keymaster")
	if err != nil {
		return err
	}
	km, err := protocol.NewKeymaster(c1, kmConfig, params, bitKey, arithKey)
	if err != nil {
		return err
	}
	ev, err := protocol.NewEvaluator(c0, config, params, bitKey.Public(),
		arithKey.Public())
	if err != nil {
		return err
	}
	if err := km.SetDGKMode(dgkMode); err != nil {
		return err
	}
	if err := ev.SetDGKMode(dgkMode); err != nil {
		return err
	}
	priv := arithKey
	if dgkMode {
		priv = bitKey
	}

	done := startKeymaster(km, p1)

	heading("Benchmark: %s, %s, L=%d, sigma=%d\n", op, params.Strategy,
		params.L, params.Sigma)

	bar := progressbar.NewOptions(rounds,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(
			fmt.Sprintf("[cyan]%s...[reset]", op)),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	limit := 1 << params.L
	var failures int
	var phases benchPhases
	for i := 0; i < rounds; i++ {
		x := big.NewInt(int64(frand.Intn(limit)))
		y := big.NewInt(int64(frand.Intn(limit)))
		ok, err := benchmarkRound(ev, priv, op, x, y, divisor, &phases)
		if err != nil {
			select {
			case kmErr := <-done:
				if kmErr != nil {
					return errors.Wrap(kmErr, "keymaster")
				}
			default:
			}
			return err
		}
		if !ok {
			failures++
		}
		bar.Add(1)
	}
	fmt.Println()
	sample := timing.Sample("Eval", fmt.Sprintf("%d rounds", rounds))
	phases.record(sample)

	if err := c0.SendString(opDone); err != nil {
		return err
	}
	if err := c0.Flush(); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return errors.Wrap(err, "keymaster")
	}

	timing.Print(os.Stdout, c0.Stats)
	if failures > 0 {
		color.New(color.FgRed, color.Bold).Printf("%d/%d rounds failed\n",
			failures, rounds)
	} else {
		color.New(color.FgGreen).Printf("%d rounds ok\n", rounds)
	}
	return nil
}

// startKeymaster serves the keymaster side of the benchmark. The
// pipe is closed if the keymaster fails so the evaluator does not
// block on it.
func startKeymaster(km *protocol.Keymaster, pipe io.Closer) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := serveKeymaster(km, nil)
		done <- err
		if err != nil {
			pipe.Close()
		}
	}()
	return done
}

// benchPhases accumulates the evaluator time of the benchmark phases
// over all rounds.
type benchPhases struct {
	encrypt  time.Duration
	protocol time.Duration
	verify   time.Duration
}

func (p *benchPhases) record(sample *hecmp.Sample) {
	at := sample.Start.Add(p.encrypt)
	sample.SubSample("Encrypt", at)
	at = at.Add(p.protocol)
	sample.SubSample("Protocol", at)
	sample.SubSample("Verify", at.Add(p.verify))
}

func benchmarkRound(ev *protocol.Evaluator, priv he.PrivateKey, op string,
	x, y, divisor *big.Int, phases *benchPhases) (bool, error) {

	start := time.Now()
	key := ev.ActiveKey()
	ex, err := key.Encrypt(frand.Reader, x)
	if err != nil {
		return false, err
	}
	ey, err := key.Encrypt(frand.Reader, y)
	if err != nil {
		return false, err
	}
	phases.encrypt += time.Since(start)

	start = time.Now()
	if err := ev.Conn().SendString(op); err != nil {
		return false, err
	}
	if op == opDivide {
		if err := ev.Conn().SendInteger(divisor); err != nil {
			return false, err
		}
	}

	var result bool
	var c he.Ciphertext
	var expected *big.Int

	switch op {
	case opCompareEncrypted:
		result, err = ev.CompareEncrypted(ex, ey)
		phases.protocol += time.Since(start)
		return result == (x.Cmp(y) <= 0), err

	case opEquals:
		result, err = ev.Equals(ex, ey)
		phases.protocol += time.Since(start)
		return result == (x.Cmp(y) == 0), err

	case opMultiply:
		c, err = ev.Multiply(ex, ey)
		expected = new(big.Int).Mul(x, y)
		expected.Mod(expected, key.Domain())

	case opDivide:
		c, err = ev.Divide(ex, divisor)
		expected = new(big.Int).Div(x, divisor)

	default:
		return false, errors.Wrapf(errUnknownOp, "'%s'", op)
	}
	phases.protocol += time.Since(start)
	if err != nil {
		return false, err
	}

	start = time.Now()
	defer func() {
		phases.verify += time.Since(start)
	}()
	return checkPlaintext(priv, c, expected)
}

func checkPlaintext(priv he.PrivateKey, c he.Ciphertext, expected *big.Int) (
	bool, error) {

	v, err := priv.Decrypt(c)
	if err != nil {
		return false, err
	}
	return v.Cmp(expected) == 0, nil
}
