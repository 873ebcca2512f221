//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package protocol implements the secure comparison, equality, and
// arithmetic outsourcing protocols between an evaluator, holding
// ciphertexts and public keys, and a keymaster, holding the private
// keys.
//
// All protocols are driven by the evaluator. Both parties must call
// the matching operations in the same order on their sessions. The
// bit lengths of compared plaintexts are visible to the peers through
// the length of the encrypted bit vectors.
package protocol

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/markkurossi/hecmp/env"
	"github.com/markkurossi/hecmp/he"
	"github.com/markkurossi/hecmp/he/elgamal"
	"github.com/markkurossi/hecmp/p2p"
	"github.com/markkurossi/text/superscript"
	"github.com/pkg/errors"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// Strategy selects the candidate vector construction.
type Strategy int

// Candidate vector strategies.
const (
	Original Strategy = iota
	Veugen
	Joye
	ElGamal
)

var strategyNames = map[Strategy]string{
	Original: "original",
	Veugen:   "veugen",
	Joye:     "joye",
	ElGamal:  "elgamal",
}

func (s Strategy) String() string {
	name, ok := strategyNames[s]
	if ok {
		return name
	}
	return fmt.Sprintf("{Strategy %d}", s)
}

// ParseStrategy parses the strategy name.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidInput, "unknown strategy '%s'", name)
}

// Params define the session parameters. Both parties must use the
// same parameters.
type Params struct {
	// L is the plaintext bit length. All operands are in [0, 2^L).
	L int
	// Sigma is the statistical security parameter of the additive
	// blinding.
	Sigma int
	// Strategy selects the candidate vector construction.
	Strategy Strategy
	// HideResult blinds the final decryption so that the keymaster
	// does not learn the results.
	HideResult bool
	// FastDivide skips the carry correction of division. Results are
	// correct only for exact divisors.
	FastDivide bool
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.L < 1 || p.L > 48 {
		return errors.Wrapf(ErrInvalidInput, "invalid bit length %d", p.L)
	}
	if p.Sigma < 1 || p.Sigma > 256 {
		return errors.Wrapf(ErrInvalidInput, "invalid sigma %d", p.Sigma)
	}
	if _, ok := strategyNames[p.Strategy]; !ok {
		return errors.Wrapf(ErrInvalidInput, "invalid strategy %d",
			p.Strategy)
	}
	return nil
}

// Session holds the state shared by all operations of one evaluator
// or keymaster session.
type Session struct {
	ID     uuid.UUID
	Params Params

	conn     *p2p.Conn
	config   *env.Config
	role     string
	bitKey   he.PublicKey
	arithKey he.PublicKey
	dgkMode  bool
	seq      int
}

func newSession(role string, conn *p2p.Conn, config *env.Config,
	params Params, bitKey, arithKey he.PublicKey) (*Session, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if bitKey == nil || arithKey == nil {
		return nil, errors.Wrap(ErrInvalidInput, "missing key")
	}
	if config == nil {
		config = new(env.Config)
	}

	// Blinding by nonzero scalars keeps nonzero candidates nonzero
	// only in a prime order domain.
	domain := bitKey.Domain()
	if !domain.ProbablyPrime(20) {
		return nil, errors.Wrapf(ErrInvalidInput,
			"%s: bit scheme domain is not prime", bitKey.Name())
	}
	// Candidates and their masks are in (-3, 8(L+1)).
	if domain.Cmp(big.NewInt(int64(8*(params.L+1)))) <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput,
			"%s: bit scheme domain too small for L=%d", bitKey.Name(),
			params.L)
	}
	if params.Strategy == ElGamal {
		if bitKey.Name() != elgamal.Name || arithKey.Name() != elgamal.Name {
			return nil, errors.Wrapf(ErrInvalidInput,
				"strategy %s with %s/%s keys", params.Strategy,
				bitKey.Name(), arithKey.Name())
		}
	}

	s := &Session{
		Params:   params,
		conn:     conn,
		config:   config,
		role:     role,
		bitKey:   bitKey,
		arithKey: arithKey,
	}
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s, nil
}

// checkActive verifies the arithmetic operations are possible in the
// active key's domain.
func (s *Session) checkActive() error {
	key := s.active()
	limit := new(big.Int).Lsh(bigOne, uint(s.Params.L+2))
	if key.Domain().Cmp(limit) <= 0 {
		return errors.Wrapf(ErrInvalidInput,
			"%s: domain too small for L=%d", key.Name(), s.Params.L)
	}
	if key.Bound().Cmp(key.Domain()) < 0 {
		// Partial decryption; the blinded values must stay
		// recoverable.
		limit.Lsh(limit, uint(s.Params.Sigma))
		if key.Bound().Cmp(limit) <= 0 {
			return errors.Wrapf(ErrInvalidInput,
				"%s: decryption bound too small for L=%d, sigma=%d",
				key.Name(), s.Params.L, s.Params.Sigma)
		}
	}
	return nil
}

// SetDGKMode selects the bit scheme key as the active key for the
// ciphertext operations. By default the arithmetic key is active.
// Both parties must use the same mode.
func (s *Session) SetDGKMode(on bool) error {
	old := s.dgkMode
	s.dgkMode = on
	if err := s.checkActive(); err != nil {
		s.dgkMode = old
		return err
	}
	return nil
}

// DGKMode tests if the bit scheme key is the active key.
func (s *Session) DGKMode() bool {
	return s.dgkMode
}

// BitKey returns the bit scheme public key.
func (s *Session) BitKey() he.PublicKey {
	return s.bitKey
}

// ArithmeticKey returns the arithmetic scheme public key.
func (s *Session) ArithmeticKey() he.PublicKey {
	return s.arithKey
}

// ActiveKey returns the public key of the ciphertext operations.
func (s *Session) ActiveKey() he.PublicKey {
	return s.active()
}

func (s *Session) active() he.PublicKey {
	if s.dgkMode {
		return s.bitKey
	}
	return s.arithKey
}

// Conn returns the session connection.
func (s *Session) Conn() *p2p.Conn {
	return s.conn
}

// Close closes the session connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Debugf prints debugging message if verbose output is enabled.
func (s *Session) Debugf(format string, a ...interface{}) {
	if !s.config.Verbose {
		return
	}
	id := s.ID.String()
	s.config.Debugf("%s%s %s: %s", s.role, superscript.Itoa(s.seq), id[:8],
		fmt.Sprintf(format, a...))
}

// begin starts a new operation.
func (s *Session) begin(op string) {
	s.seq++
	s.Debugf("%s\n", op)
}

func (s *Session) rand() io.Reader {
	return s.config.GetRandom()
}

func (s *Session) randomBit() (int, error) {
	v, err := he.RandomInt(s.rand(), big.NewInt(2))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func (s *Session) checkOperand(name string, v *big.Int) error {
	if v == nil || v.Sign() < 0 || v.BitLen() > s.Params.L {
		return errors.Wrapf(ErrInvalidInput, "%s=%v not in [0, 2^%d)",
			name, v, s.Params.L)
	}
	return nil
}

// checkCiphertexts verifies that the operands are ciphertexts of the
// active key.
func (s *Session) checkCiphertexts(cts ...he.Ciphertext) error {
	key := s.active()
	for _, c := range cts {
		if c == nil {
			return errors.Wrap(he.ErrInvalidCiphertext, "nil ciphertext")
		}
		if err := key.Check(c); err != nil {
			return err
		}
	}
	return nil
}

// unmarshal decodes ciphertext bytes received from the peer.
func unmarshal(key he.PublicKey, data []byte) (he.Ciphertext, error) {
	c, err := key.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(ErrProtocolViolation, "%s: %v",
			key.Name(), err)
	}
	return c, nil
}

func unmarshalArray(key he.PublicKey, arr [][]byte) ([]he.Ciphertext, error) {
	result := make([]he.Ciphertext, len(arr))
	for i, data := range arr {
		c, err := unmarshal(key, data)
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func marshalArray(arr []he.Ciphertext) [][]byte {
	result := make([][]byte, len(arr))
	for i, c := range arr {
		result[i] = c.Bytes()
	}
	return result
}

func (s *Session) sendCiphertext(c he.Ciphertext) error {
	return s.conn.SendCiphertext(c.Bytes())
}

func (s *Session) receiveCiphertext(key he.PublicKey) (he.Ciphertext, error) {
	data, err := s.conn.ReceiveCiphertext()
	if err != nil {
		return nil, err
	}
	return unmarshal(key, data)
}

// bitValue checks that v is a bit.
func bitValue(v *big.Int) (int, error) {
	if v.Cmp(bigZero) != 0 && v.Cmp(bigOne) != 0 {
		return 0, violation("non-binary value %v", v)
	}
	return int(v.Int64()), nil
}

func violation(format string, a ...interface{}) error {
	return errors.Wrapf(ErrProtocolViolation, format, a...)
}
