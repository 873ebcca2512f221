//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned when an operand, divisor, or key is
	// not valid for the operation. It is detected before any message
	// is sent.
	ErrInvalidInput = errors.New("protocol: invalid input")

	// ErrProtocolViolation is returned when the peer sends a value
	// that the protocol does not allow. The session can't continue
	// after a protocol violation.
	ErrProtocolViolation = errors.New("protocol: protocol violation")
)
