package layout

import (
	"fmt"
	"slices"
	"strings"

	"shaderrefl/internal/entity"
)

// resourceClass groups resource shapes that every target maps the same way.
type resourceClass uint8

const (
	classReadOnly resourceClass = iota + 1
	classReadWrite
	classSampler
	classConstantBuffer
	classParameterBlock
	classAccelerationStructure
	classSubpassInput
	classPushConstant
)

// Target describes a compilation target: which kinds each resource class
// consumes and which packing rules apply by default.
type Target struct {
	Name string
	// HasSpaces is true when parameter blocks and unsized resource arrays
	// can take their own register space / descriptor set.
	HasSpaces bool
	// DefaultRules resolves RulesDefault.
	DefaultRules Rules
	// UniformRules packs ConstantBuffer elements and the default buffer.
	UniformRules Rules
	// PushRules packs push-constant buffers.
	PushRules  Rules
	MatrixMode MatrixMode
	// BufferKind is consumed by the default and implicit uniform buffers;
	// KindNone means ordinary data is passed inline.
	BufferKind Kind
	// PtrSize is the handle size on targets that pass resources as data.
	PtrSize uint64
	// NoDouble rejects 64-bit floats.
	NoDouble bool
	// SpecConstants gives specialization constants their own ids.
	SpecConstants bool
	// MetalVaryings selects MetalAttribute for stage inputs and
	// MetalPayload for ray-tracing payloads.
	MetalVaryings bool

	resources map[resourceClass][]Kind
}

var (
	TargetD3D11 = &Target{
		Name:         "d3d11",
		DefaultRules: RulesConstantBuffer,
		UniformRules: RulesConstantBuffer,
		PushRules:    RulesConstantBuffer,
		MatrixMode:   MatrixColumnMajor,
		BufferKind:   KindD3DConstantBuffer,
		resources: map[resourceClass][]Kind{
			classReadOnly:       {KindD3DShaderResource},
			classReadWrite:      {KindD3DUnorderedAccess},
			classSampler:        {KindD3DSamplerState},
			classConstantBuffer: {KindD3DConstantBuffer},
			classParameterBlock: {KindD3DConstantBuffer},
			classPushConstant:   {KindD3DConstantBuffer},
		},
	}
	TargetD3D12 = &Target{
		Name:         "d3d12",
		HasSpaces:    true,
		DefaultRules: RulesConstantBuffer,
		UniformRules: RulesConstantBuffer,
		PushRules:    RulesConstantBuffer,
		MatrixMode:   MatrixColumnMajor,
		BufferKind:   KindD3DConstantBuffer,
		resources: map[resourceClass][]Kind{
			classReadOnly:              {KindD3DShaderResource},
			classReadWrite:             {KindD3DUnorderedAccess},
			classSampler:               {KindD3DSamplerState},
			classConstantBuffer:        {KindD3DConstantBuffer},
			classParameterBlock:        {KindRegisterSpace},
			classAccelerationStructure: {KindD3DShaderResource},
			classPushConstant:          {KindD3DConstantBuffer},
		},
	}
	TargetVulkan = &Target{
		Name:          "vulkan",
		HasSpaces:     true,
		DefaultRules:  RulesStd140,
		UniformRules:  RulesStd140,
		PushRules:     RulesStd430,
		MatrixMode:    MatrixColumnMajor,
		BufferKind:    KindVKBinding,
		SpecConstants: true,
		resources: map[resourceClass][]Kind{
			classReadOnly:              {KindVKBinding},
			classReadWrite:             {KindVKBinding},
			classSampler:               {KindVKBinding},
			classConstantBuffer:        {KindVKBinding},
			classParameterBlock:        {KindRegisterSpace},
			classAccelerationStructure: {KindVKBinding},
			classSubpassInput:          {KindVKBinding, KindVKSubpassInputAttachment},
			classPushConstant:          {KindVKPushConstantBuffer},
		},
	}
	TargetMetal = &Target{
		Name:          "metal",
		HasSpaces:     true,
		DefaultRules:  RulesStd430,
		UniformRules:  RulesStd430,
		PushRules:     RulesStd430,
		MatrixMode:    MatrixColumnMajor,
		BufferKind:    KindMetalArgumentBufferElement,
		NoDouble:      true,
		MetalVaryings: true,
		resources: map[resourceClass][]Kind{
			classReadOnly:              {KindMetalArgumentBufferElement},
			classReadWrite:             {KindMetalArgumentBufferElement},
			classSampler:               {KindMetalArgumentBufferElement},
			classConstantBuffer:        {KindMetalArgumentBufferElement},
			classParameterBlock:        {KindRegisterSpace},
			classAccelerationStructure: {KindMetalArgumentBufferElement},
			classPushConstant:          {KindMetalArgumentBufferElement},
		},
	}
	TargetWebGPU = &Target{
		Name:         "webgpu",
		HasSpaces:    true,
		DefaultRules: RulesStd140,
		UniformRules: RulesStd140,
		PushRules:    RulesStd140,
		MatrixMode:   MatrixColumnMajor,
		BufferKind:   KindVKBinding,
		resources: map[resourceClass][]Kind{
			classReadOnly:       {KindVKBinding},
			classReadWrite:      {KindVKBinding},
			classSampler:        {KindVKBinding},
			classConstantBuffer: {KindVKBinding},
			classParameterBlock: {KindRegisterSpace},
			classPushConstant:   {KindVKBinding},
		},
	}
	TargetCPU = &Target{
		Name:         "cpu",
		DefaultRules: RulesNatural,
		UniformRules: RulesNatural,
		PushRules:    RulesNatural,
		MatrixMode:   MatrixRowMajor,
		BufferKind:   KindNone,
		PtrSize:      8,
		resources: map[resourceClass][]Kind{
			classReadOnly:              {KindBytes},
			classReadWrite:             {KindBytes},
			classSampler:               {KindBytes},
			classConstantBuffer:        {KindBytes},
			classParameterBlock:        {KindBytes},
			classAccelerationStructure: {KindBytes},
			classPushConstant:          {KindBytes},
		},
	}
)

var targets = []*Target{TargetD3D11, TargetD3D12, TargetVulkan, TargetMetal, TargetWebGPU, TargetCPU}

// Targets returns every known target.
func Targets() []*Target { return slices.Clone(targets) }

// TargetNames returns the names accepted by LookupTarget.
func TargetNames() []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Name
	}
	return out
}

// LookupTarget finds a target by name. "dx11", "dx12", "vk" and "wgpu" are
// accepted as aliases.
func LookupTarget(name string) (*Target, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "dx11":
		name = "d3d11"
	case "dx12":
		name = "d3d12"
	case "vk", "spirv":
		name = "vulkan"
	case "wgpu", "wgsl":
		name = "webgpu"
	case "msl":
		name = "metal"
	}
	for _, t := range targets {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unknown target %q (known: %s)", name, strings.Join(TargetNames(), ", "))
}

func (t *Target) String() string { return t.Name }

// Resolve maps RulesDefault and RulesPushConstant to concrete rules.
func (t *Target) Resolve(r Rules) Rules {
	switch r {
	case RulesDefault:
		return t.DefaultRules
	case RulesPushConstant:
		return t.PushRules
	}
	return r
}

func (t *Target) resourceKinds(res entity.ResourceInfo) ([]Kind, bool) {
	var class resourceClass
	switch {
	case res.Shape == entity.ResSampler:
		class = classSampler
	case res.Shape == entity.ResAccelerationStructure:
		class = classAccelerationStructure
	case res.Shape == entity.ResSubpassInput:
		class = classSubpassInput
	case res.Access == entity.AccessReadWrite:
		class = classReadWrite
	default:
		class = classReadOnly
	}
	kinds, ok := t.resources[class]
	return kinds, ok && len(kinds) > 0
}

func (t *Target) containerKinds(group entity.GroupKind, push bool) []Kind {
	switch {
	case push:
		return t.resources[classPushConstant]
	case group == entity.GroupParameterBlock:
		return t.resources[classParameterBlock]
	default:
		return t.resources[classConstantBuffer]
	}
}

// KindForClass maps an explicit register class to the D3D kind it binds.
// It returns KindNone for RegisterAny and on targets without classes.
func (t *Target) KindForClass(c entity.RegisterClass) Kind {
	if !t.usesRegisterClasses() {
		return KindNone
	}
	switch c {
	case entity.RegisterB:
		return KindD3DConstantBuffer
	case entity.RegisterT:
		return KindD3DShaderResource
	case entity.RegisterU:
		return KindD3DUnorderedAccess
	case entity.RegisterS:
		return KindD3DSamplerState
	}
	return KindNone
}

func (t *Target) usesRegisterClasses() bool { return t.BufferKind == KindD3DConstantBuffer }

func (t *Target) varyingInputKind() Kind {
	if t.MetalVaryings {
		return KindMetalAttribute
	}
	return KindVaryingInput
}

func (t *Target) payloadKind(k Kind) Kind {
	if t.MetalVaryings {
		return KindMetalPayload
	}
	return k
}
