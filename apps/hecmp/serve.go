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
	"sync/atomic"

	"github.com/markkurossi/hecmp"
	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/p2p"
	"github.com/markkurossi/hecmp/protocol"
	"github.com/pkg/errors"
)

// Operations. The evaluator names each operation before running it
// so that the keymaster can call the matching protocol.
const (
	opCompare          = "cmp"
	opCompareEncrypted = "cmpenc"
	opEquals           = "eq"
	opMultiply         = "mul"
	opDivide           = "div"
	opMax              = "max"
	opDGKMode          = "dgk"
	opDecrypt          = "decrypt"
	opDone             = ""
)

var errUnknownOp = errors.New("unknown operation")

type request struct {
	op      string
	args    []*big.Int
	divisor *big.Int
	dgkMode bool
}

func keymasterMode(settings *env.Settings, params protocol.Params,
	input *big.Int) error {

	config, err := settings.Config("keygen")
	if err != nil {
		return err
	}
	timing := hecmp.NewTiming()
	bitKey, arithKey, err := generateKeys(settings, params,
		config.GetRandom())
	if err != nil {
		return err
	}
	timing.Sample("Keygen", bitKey.Public().Name(),
		arithKey.Public().Name())
	timing.Print(os.Stdout, p2p.NewIOStats())

	ln, err := p2p.Listen(settings.Addr)
	if err != nil {
		return err
	}
	heading("Listening for connections at %s\n", ln.Addr())

	var sessions atomic.Uint64
	return ln.Serve(func(conn *p2p.Conn, addr net.Addr) error {
		defer conn.Close()
		fmt.Printf("New connection from %s\n", addr)

		config, err := settings.Config(
			fmt.Sprintf("keymaster/%d", sessions.Add(1)))
		if err != nil {
			return err
		}
		km, err := protocol.NewKeymaster(conn, config, params, bitKey,
			arithKey)
		if err != nil {
			return err
		}
		if err := km.SendKeys(); err != nil {
			return err
		}
		err = serveKeymaster(km, input)
		fmt.Printf("Session %s: %s\n", km.ID,
			hecmp.FileSize(conn.Stats.Sum()))
		return err
	})
}

func serveKeymaster(km *protocol.Keymaster, input *big.Int) error {
	conn := km.Conn()
	for {
		op, err := conn.ReceiveString()
		if err != nil {
			return err
		}
		switch op {
		case opDone:
			return nil

		case opDGKMode:
			on, err := conn.ReceiveBoolean()
			if err != nil {
				return err
			}
			err = km.SetDGKMode(on)

		case opCompare:
			_, err = km.Compare(input)

		case opCompareEncrypted:
			_, err = km.CompareEncrypted()

		case opEquals:
			_, err = km.Equals()

		case opMultiply:
			err = km.Multiply()

		case opDivide:
			var d *big.Int
			d, err = conn.ReceiveInteger()
			if err == nil {
				err = km.Divide(d)
			}

		case opMax:
			_, err = km.ServeCompareEncrypted()

		case opDecrypt:
			err = serveDecrypt(km)

		default:
			return errors.Wrapf(errUnknownOp, "'%s'", op)
		}
		if err != nil {
			return err
		}
	}
}

// serveDecrypt reveals an arithmetic result to the evaluator.
func serveDecrypt(km *protocol.Keymaster) error {
	conn := km.Conn()
	data, err := conn.ReceiveCiphertext()
	if err != nil {
		return err
	}
	c, err := km.ActiveKey().Unmarshal(data)
	if err != nil {
		return err
	}
	v, err := km.Decrypt(c)
	if err != nil {
		return err
	}
	if err := conn.SendInteger(v); err != nil {
		return err
	}
	return conn.Flush()
}

func evaluatorMode(settings *env.Settings, req *request, retries int) error {
	config, err := settings.Config("evaluator")
	if err != nil {
		return err
	}
	conn, err := p2p.Dial(settings.Addr, retries)
	if err != nil {
		return err
	}
	defer conn.Close()

	timing := hecmp.NewTiming()
	ev, err := protocol.ReceiveKeys(conn, config)
	if err != nil {
		return err
	}
	timing.Sample("Keys", ev.BitKey().Name(), ev.ArithmeticKey().Name())

	results, err := evaluate(ev, req, config.GetRandom())
	if err != nil {
		return err
	}
	timing.Sample("Eval", req.op)

	if err := conn.SendString(opDone); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}

	heading("Session %s\n", ev.ID)
	timing.Print(os.Stdout, conn.Stats)
	hecmp.PrintResults(os.Stdout, results, 10)
	return nil
}

func evaluate(ev *protocol.Evaluator, req *request, rand io.Reader) (
	[]hecmp.Result, error) {

	conn := ev.Conn()
	if req.dgkMode {
		if err := conn.SendString(opDGKMode); err != nil {
			return nil, err
		}
		if err := conn.SendBoolean(true); err != nil {
			return nil, err
		}
		if err := ev.SetDGKMode(true); err != nil {
			return nil, err
		}
	}
	key := ev.ActiveKey()

	var inputs []he.Ciphertext
	for _, arg := range req.args {
		c, err := key.Encrypt(rand, arg)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, c)
	}

	var results []hecmp.Result
	switch req.op {
	case opCompare:
		for _, x := range req.args {
			if err := conn.SendString(opCompare); err != nil {
				return nil, err
			}
			result, err := ev.Compare(x)
			if err != nil {
				return nil, err
			}
			results = append(results, hecmp.Result{
				Op:    fmt.Sprintf("%v <= y", x),
				Value: result,
			})
		}

	case opCompareEncrypted, opEquals, opMultiply:
		if len(inputs)%2 != 0 {
			return nil, errors.Errorf("%s: expected operand pairs", req.op)
		}
		for i := 0; i < len(inputs); i += 2 {
			if err := conn.SendString(req.op); err != nil {
				return nil, err
			}
			x, y := inputs[i], inputs[i+1]
			label := fmt.Sprintf("%s(%v, %v)", req.op, req.args[i],
				req.args[i+1])

			var value interface{}
			var err error
			switch req.op {
			case opCompareEncrypted:
				value, err = ev.CompareEncrypted(x, y)
			case opEquals:
				value, err = ev.Equals(x, y)
			default:
				var c he.Ciphertext
				c, err = ev.Multiply(x, y)
				if err == nil {
					value, err = reveal(ev, c)
				}
			}
			if err != nil {
				return nil, err
			}
			results = append(results, hecmp.Result{
				Op:    label,
				Value: value,
			})
		}

	case opDivide:
		for i, x := range inputs {
			if err := conn.SendString(opDivide); err != nil {
				return nil, err
			}
			if err := conn.SendInteger(req.divisor); err != nil {
				return nil, err
			}
			c, err := ev.Divide(x, req.divisor)
			if err != nil {
				return nil, err
			}
			value, err := reveal(ev, c)
			if err != nil {
				return nil, err
			}
			results = append(results, hecmp.Result{
				Op:    fmt.Sprintf("%v / %v", req.args[i], req.divisor),
				Value: value,
			})
		}

	case opMax:
		if len(inputs) == 0 {
			return nil, errors.Errorf("%s: no operands", req.op)
		}
		if err := conn.SendString(opMax); err != nil {
			return nil, err
		}
		idx, err := maxIndex(ev, inputs)
		if err != nil {
			return nil, err
		}
		results = append(results, hecmp.Result{
			Op:    "max",
			Value: req.args[idx],
		})

	default:
		return nil, errors.Wrapf(errUnknownOp, "'%s'", req.op)
	}
	return results, nil
}

// maxIndex finds the index of the largest encrypted value with one
// comparison round per value.
func maxIndex(ev *protocol.Evaluator, values []he.Ciphertext) (int, error) {
	var idx int
	for i := 1; i < len(values); i++ {
		if err := ev.Continue(true); err != nil {
			return 0, err
		}
		le, err := ev.CompareEncrypted(values[idx], values[i])
		if err != nil {
			return 0, err
		}
		if le {
			idx = i
		}
	}
	return idx, ev.Continue(false)
}

// reveal has the keymaster decrypt the arithmetic result c.
func reveal(ev *protocol.Evaluator, c he.Ciphertext) (*big.Int, error) {
	conn := ev.Conn()
	if err := conn.SendString(opDecrypt); err != nil {
		return nil, err
	}
	if err := conn.SendCiphertext(c.Bytes()); err != nil {
		return nil, err
	}
	return conn.ReceiveInteger()
}
