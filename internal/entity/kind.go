package entity

import (
	"fmt"
	"strings"
)

// Kind enumerates entity variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindModule
	KindFunc
	KindVar
	KindTypeVar
	KindType
	KindGeneric
	KindValue
	KindConstraint
	KindAttribute
	KindEntryPoint
	KindConformance
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindModule:
		return "module"
	case KindFunc:
		return "func"
	case KindVar:
		return "var"
	case KindTypeVar:
		return "typevar"
	case KindType:
		return "type"
	case KindGeneric:
		return "generic"
	case KindValue:
		return "value"
	case KindConstraint:
		return "constraint"
	case KindAttribute:
		return "attribute"
	case KindEntryPoint:
		return "entry_point"
	case KindConformance:
		return "conformance"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Shape is the sub-variant of a KindType entity.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeStruct
	ShapeClass
	ShapeInterface
	ShapeEnum
	ShapeArray
	ShapeVector
	ShapeMatrix
	ShapeResource
	ShapeScalar
	ShapeConjunction
	ShapeParameterGroup
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeStruct:
		return "struct"
	case ShapeClass:
		return "class"
	case ShapeInterface:
		return "interface"
	case ShapeEnum:
		return "enum"
	case ShapeArray:
		return "array"
	case ShapeVector:
		return "vector"
	case ShapeMatrix:
		return "matrix"
	case ShapeResource:
		return "resource"
	case ShapeScalar:
		return "scalar"
	case ShapeConjunction:
		return "conjunction"
	case ShapeParameterGroup:
		return "parameter_group"
	default:
		return fmt.Sprintf("Shape(%d)", s)
	}
}

// Nominal reports whether the shape is a user declaration rather than an
// interned structural type.
func (s Shape) Nominal() bool {
	switch s {
	case ShapeStruct, ShapeClass, ShapeInterface, ShapeEnum:
		return true
	}
	return false
}

// ScalarKind describes a scalar element type.
type ScalarKind uint8

const (
	ScalarInvalid ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarUint
	ScalarFloat
	ScalarHalf
	ScalarDouble
	ScalarInt64
	ScalarUint64
)

var scalarNames = [...]string{
	ScalarInvalid: "invalid",
	ScalarBool:    "bool",
	ScalarInt:     "int",
	ScalarUint:    "uint",
	ScalarFloat:   "float",
	ScalarHalf:    "half",
	ScalarDouble:  "double",
	ScalarInt64:   "int64_t",
	ScalarUint64:  "uint64_t",
}

func (k ScalarKind) String() string {
	if int(k) < len(scalarNames) {
		return scalarNames[k]
	}
	return fmt.Sprintf("ScalarKind(%d)", k)
}

// ByteSize is the storage size of one scalar. Bool occupies 4 bytes in
// buffer memory on every GPU target.
func (k ScalarKind) ByteSize() uint32 {
	switch k {
	case ScalarHalf:
		return 2
	case ScalarDouble, ScalarInt64, ScalarUint64:
		return 8
	case ScalarInvalid:
		return 0
	default:
		return 4
	}
}

// ParseScalar maps a scalar keyword to its kind.
func ParseScalar(s string) (ScalarKind, bool) {
	for k := ScalarBool; k <= ScalarUint64; k++ {
		if scalarNames[k] == s {
			return k, true
		}
	}
	switch s {
	case "int32_t":
		return ScalarInt, true
	case "uint32_t":
		return ScalarUint, true
	case "float32_t":
		return ScalarFloat, true
	case "float16_t":
		return ScalarHalf, true
	case "float64_t":
		return ScalarDouble, true
	}
	return ScalarInvalid, false
}

// ResourceShape is the kind of an opaque resource type.
type ResourceShape uint8

const (
	ResTexture1D ResourceShape = iota + 1
	ResTexture2D
	ResTexture3D
	ResTextureCube
	ResTexture2DArray
	ResTypedBuffer
	ResStructuredBuffer
	ResByteAddressBuffer
	ResSampler
	ResAccelerationStructure
	ResSubpassInput
)

var resourceNames = map[ResourceShape]string{
	ResTexture1D:             "Texture1D",
	ResTexture2D:             "Texture2D",
	ResTexture3D:             "Texture3D",
	ResTextureCube:           "TextureCube",
	ResTexture2DArray:        "Texture2DArray",
	ResTypedBuffer:           "Buffer",
	ResStructuredBuffer:      "StructuredBuffer",
	ResByteAddressBuffer:     "ByteAddressBuffer",
	ResSampler:               "SamplerState",
	ResAccelerationStructure: "RaytracingAccelerationStructure",
	ResSubpassInput:          "SubpassInput",
}

func (r ResourceShape) String() string {
	if s, ok := resourceNames[r]; ok {
		return s
	}
	return fmt.Sprintf("ResourceShape(%d)", r)
}

// IsTexture reports texture shapes.
func (r ResourceShape) IsTexture() bool {
	return r >= ResTexture1D && r <= ResTexture2DArray
}

// ResourceAccess is the access mode of a resource.
type ResourceAccess uint8

const (
	AccessRead ResourceAccess = iota
	AccessReadWrite
)

func (a ResourceAccess) String() string {
	if a == AccessReadWrite {
		return "read_write"
	}
	return "read"
}

// ParseResource maps resource type names such as "RWTexture2D" or
// "SamplerState" to shape and access.
func ParseResource(name string) (ResourceShape, ResourceAccess, bool) {
	access := AccessRead
	base := name
	if strings.HasPrefix(name, "RW") {
		access = AccessReadWrite
		base = name[2:]
	}
	for shape, s := range resourceNames {
		if s == base {
			return shape, access, true
		}
	}
	switch base {
	case "Sampler", "SamplerComparisonState":
		return ResSampler, access, true
	case "RWByteAddressBuffer":
		return ResByteAddressBuffer, AccessReadWrite, true
	}
	return 0, 0, false
}

// GroupKind selects the parameter-group flavour.
type GroupKind uint8

const (
	GroupConstantBuffer GroupKind = iota + 1
	GroupParameterBlock
)

func (g GroupKind) String() string {
	switch g {
	case GroupConstantBuffer:
		return "ConstantBuffer"
	case GroupParameterBlock:
		return "ParameterBlock"
	default:
		return fmt.Sprintf("GroupKind(%d)", g)
	}
}

// Stage is a pipeline stage an entry point runs in.
type Stage uint8

const (
	StageNone Stage = iota
	StageVertex
	StageHull
	StageDomain
	StageGeometry
	StageFragment
	StageCompute
	StageRayGeneration
	StageIntersection
	StageAnyHit
	StageClosestHit
	StageMiss
	StageCallable
	StageMesh
	StageAmplification
)

var stageNames = [...]string{
	StageNone:          "none",
	StageVertex:        "vertex",
	StageHull:          "hull",
	StageDomain:        "domain",
	StageGeometry:      "geometry",
	StageFragment:      "fragment",
	StageCompute:       "compute",
	StageRayGeneration: "raygeneration",
	StageIntersection:  "intersection",
	StageAnyHit:        "anyhit",
	StageClosestHit:    "closesthit",
	StageMiss:          "miss",
	StageCallable:      "callable",
	StageMesh:          "mesh",
	StageAmplification: "amplification",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// ParseStage accepts stage names case-insensitively, including "pixel".
func ParseStage(s string) (Stage, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "pixel" {
		return StageFragment, true
	}
	for st := StageVertex; st <= StageAmplification; st++ {
		if stageNames[st] == s {
			return st, true
		}
	}
	return StageNone, false
}

// IsRayTracing reports ray-tracing stages.
func (s Stage) IsRayTracing() bool {
	return s >= StageRayGeneration && s <= StageCallable
}

// ModifierTag is the closed set of declaration modifiers.
type ModifierTag uint8

const (
	ModStatic ModifierTag = iota + 1
	ModConst
	ModUniform
	ModIn
	ModOut
	ModInOut
	ModGroupShared
	ModRowMajor
	ModColumnMajor
	ModPushConstant
	ModSpecializationConstant
	ModShaderRecord
	ModExport
	ModSemantic // payload: Modifier.Semantic
	ModBinding  // payload: Modifier.Binding
)

var modifierNames = [...]string{
	ModStatic:                 "static",
	ModConst:                  "const",
	ModUniform:                "uniform",
	ModIn:                     "in",
	ModOut:                    "out",
	ModInOut:                  "inout",
	ModGroupShared:            "groupshared",
	ModRowMajor:               "row_major",
	ModColumnMajor:            "column_major",
	ModPushConstant:           "push_constant",
	ModSpecializationConstant: "specialization_constant",
	ModShaderRecord:           "shader_record",
	ModExport:                 "export",
	ModSemantic:               "semantic",
	ModBinding:                "binding",
}

func (m ModifierTag) String() string {
	if int(m) < len(modifierNames) && modifierNames[m] != "" {
		return modifierNames[m]
	}
	return fmt.Sprintf("ModifierTag(%d)", m)
}

// ParseModifier maps a keyword modifier. Payload modifiers (semantic,
// binding) are not accepted here.
func ParseModifier(s string) (ModifierTag, bool) {
	for tag := ModStatic; tag < ModSemantic; tag++ {
		if modifierNames[tag] == s {
			return tag, true
		}
	}
	return 0, false
}
