package typeexpr

import (
	"strconv"
	"strings"
)

var scalarKeywords = []string{
	"bool", "int", "uint", "float", "half", "double",
	"int64_t", "uint64_t", "int32_t", "uint32_t",
	"float16_t", "float32_t", "float64_t",
}

// Shorthand is a decoded vector or matrix keyword such as float3 or
// float4x4. Cols is zero for vectors.
type Shorthand struct {
	Scalar string
	Rows   uint32
	Cols   uint32
}

// IsMatrix reports a matrix shorthand.
func (s Shorthand) IsMatrix() bool { return s.Cols > 0 }

// ParseShorthand decodes "float3", "int2", "float4x4". Sizes must be in
// 1..4. Plain scalars are not shorthands.
func ParseShorthand(name string) (Shorthand, bool) {
	for _, scalar := range scalarKeywords {
		rest, ok := strings.CutPrefix(name, scalar)
		if !ok || rest == "" {
			continue
		}
		rowsText, colsText, isMatrix := strings.Cut(rest, "x")
		rows, ok := dim(rowsText)
		if !ok {
			continue
		}
		if !isMatrix {
			return Shorthand{Scalar: scalar, Rows: rows}, true
		}
		cols, ok := dim(colsText)
		if !ok {
			continue
		}
		return Shorthand{Scalar: scalar, Rows: rows, Cols: cols}, true
	}
	return Shorthand{}, false
}

func dim(s string) (uint32, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n < 1 || n > 4 {
		return 0, false
	}
	return uint32(n), true
}
