//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package hecmp

import (
	"fmt"
	"io"
	"math/big"
)

// Result is a named protocol result.
type Result struct {
	Op    string
	Value interface{}
}

// PrintResults prints the result values to w. Integer results are
// printed in base.
func PrintResults(w io.Writer, results []Result, base int) {
	if base == 0 {
		base = 10
	}
	for idx, result := range results {
		fmt.Fprintf(w, "Result[%d]: %s: ", idx, result.Op)
		switch v := result.Value.(type) {
		case bool:
			fmt.Fprintf(w, "%v\n", v)

		case *big.Int:
			fmt.Fprintf(w, "%s\n", v.Text(base))

		case int64:
			fmt.Fprintf(w, "%s\n", big.NewInt(v).Text(base))

		case error:
			fmt.Fprintf(w, "error: %s\n", v)

		default:
			fmt.Fprintf(w, "%v\n", v)
		}
	}
}
