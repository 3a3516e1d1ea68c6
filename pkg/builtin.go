package kea

import (
	"fmt"
	"math"
)

// HostFunc is a function provided by the host process, callable from
// language code through an extern declaration.
type HostFunc func(args ...float64) float64

func hostBuiltins(in *Interp) map[string]HostFunc {
	return map[string]HostFunc{
		"sin":   unary(math.Sin),
		"cos":   unary(math.Cos),
		"sqrt":  unary(math.Sqrt),
		"atan2": binary(math.Atan2),

		// putchard prints the char for the given code point, printd the
		// number itself. Both return 0 like every valueless operation.
		"putchard": func(args ...float64) float64 {
			if len(args) > 0 {
				fmt.Fprintf(in.out, "%c", rune(args[0]))
			}

			return 0
		},
		"printd": func(args ...float64) float64 {
			if len(args) > 0 {
				fmt.Fprintf(in.out, "%f\n", args[0])
			}

			return 0
		},
	}
}

func unary(fn func(float64) float64) HostFunc {
	return func(args ...float64) float64 {
		if len(args) < 1 {
			return math.NaN()
		}

		return fn(args[0])
	}
}

func binary(fn func(float64, float64) float64) HostFunc {
	return func(args ...float64) float64 {
		if len(args) < 2 {
			return math.NaN()
		}

		return fn(args[0], args[1])
	}
}
