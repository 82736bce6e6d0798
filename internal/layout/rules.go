package layout

import (
	"fmt"
	"strings"

	"shaderrefl/internal/entity"
)

// Rules selects how ordinary data is packed.
type Rules uint8

const (
	RulesDefault Rules = iota
	RulesConstantBuffer
	RulesStd140
	RulesStd430
	RulesNatural
	RulesPushConstant
)

var rulesNames = [...]string{
	RulesDefault:        "default",
	RulesConstantBuffer: "cbuffer",
	RulesStd140:         "std140",
	RulesStd430:         "std430",
	RulesNatural:        "natural",
	RulesPushConstant:   "push_constant",
}

func (r Rules) String() string {
	if int(r) < len(rulesNames) {
		return rulesNames[r]
	}
	return fmt.Sprintf("Rules(%d)", r)
}

// ParseRules accepts the names printed by String; "constant_buffer" is an
// alias for cbuffer.
func ParseRules(s string) (Rules, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "":
		return RulesDefault, nil
	case "constant_buffer":
		return RulesConstantBuffer, nil
	}
	for i, n := range rulesNames {
		if n == s {
			return Rules(i), nil // #nosec G115 -- bounded by rulesNames
		}
	}
	return RulesDefault, fmt.Errorf("unknown layout rules %q", s)
}

// MatrixMode is the storage order of matrices.
type MatrixMode uint8

const (
	MatrixDefault MatrixMode = iota
	MatrixRowMajor
	MatrixColumnMajor
)

func (m MatrixMode) String() string {
	switch m {
	case MatrixRowMajor:
		return "row_major"
	case MatrixColumnMajor:
		return "column_major"
	default:
		return "default"
	}
}

// packing is the concrete byte-packing policy of one resolved Rules value.
type packing struct {
	rules Rules
	// minAggregate is the minimum alignment of arrays and structs (16 for
	// cbuffer and std140).
	minAggregate uint64
	// noStraddle keeps vectors inside one 16-byte register.
	noStraddle bool
	// gpuVectors aligns vec2 to 2N and vec3/vec4 to 4N.
	gpuVectors bool
}

func packingFor(r Rules) packing {
	switch r {
	case RulesConstantBuffer:
		return packing{rules: r, minAggregate: 16, noStraddle: true}
	case RulesStd140:
		return packing{rules: r, minAggregate: 16, gpuVectors: true}
	case RulesStd430, RulesPushConstant:
		return packing{rules: r, gpuVectors: true}
	default:
		return packing{rules: RulesNatural}
	}
}

type bytesLayout struct {
	size, align, stride uint64
}

func (p packing) scalar(k entity.ScalarKind) bytesLayout {
	s := uint64(k.ByteSize())
	return bytesLayout{size: s, align: s, stride: s}
}

func (p packing) vectorAlign(n, s uint64) uint64 {
	if !p.gpuVectors {
		return s
	}
	switch n {
	case 1:
		return s
	case 2:
		return 2 * s
	default:
		return 4 * s
	}
}

func (p packing) vector(k entity.ScalarKind, n uint64) bytesLayout {
	s := uint64(k.ByteSize())
	align := p.vectorAlign(n, s)
	size := n * s
	return bytesLayout{size: size, align: align, stride: roundUp(size, align)}
}

// matrix lays out count major vectors of vecLen elements. It returns the
// layout and the stride between major vectors.
func (p packing) matrix(k entity.ScalarKind, count, vecLen uint64) (bytesLayout, uint64) {
	s := uint64(k.ByteSize())
	vecSize := vecLen * s
	vecAlign := p.vectorAlign(vecLen, s)
	var major, align, size uint64
	switch p.rules {
	case RulesConstantBuffer:
		major, align = 16, 16
		size = (count-1)*major + vecSize
	case RulesStd140:
		major, align = 16, 16
		size = count * major
	case RulesStd430, RulesPushConstant:
		major, align = roundUp(vecSize, vecAlign), vecAlign
		size = count * major
	default:
		major, align = vecSize, s
		size = count * major
	}
	return bytesLayout{size: size, align: align, stride: roundUp(size, align)}, major
}

func (p packing) aggregateAlign(a uint64) uint64 {
	return max(a, p.minAggregate, 1)
}

// fieldOffset places a field of the given size at the first legal offset
// at or after acc.
func (p packing) fieldOffset(acc, size, align uint64) uint64 {
	off := roundUp(acc, align)
	if p.noStraddle && size > 0 && size <= 16 && off%16+size > 16 {
		off = roundUp(off, 16)
	}
	return off
}

func roundUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + align - r
	}
	return n
}
