package layout

import (
	"fmt"
	"strings"
)

// Kind is a parameter-passing resource a type or variable consumes.
type Kind uint8

const (
	KindNone Kind = iota
	KindBytes
	KindD3DConstantBuffer
	KindD3DShaderResource
	KindD3DUnorderedAccess
	KindD3DSamplerState
	KindVKBinding
	KindRegisterSpace
	KindVKSpecializationConstant
	KindVKPushConstantBuffer
	KindVaryingInput
	KindVaryingOutput
	KindRTRayPayload
	KindRTHitAttributes
	KindRTCallablePayload
	KindRTShaderRecord
	KindVKSubpassInputAttachment
	KindMetalArgumentBufferElement
	KindMetalAttribute
	KindMetalPayload
	KindMixed

	kindCount
)

var kindNames = [...]string{
	KindNone:                       "none",
	KindBytes:                      "bytes",
	KindD3DConstantBuffer:          "d3d_constant_buffer",
	KindD3DShaderResource:          "d3d_shader_resource",
	KindD3DUnorderedAccess:         "d3d_unordered_access",
	KindD3DSamplerState:            "d3d_sampler_state",
	KindVKBinding:                  "vk_binding",
	KindRegisterSpace:              "register_space",
	KindVKSpecializationConstant:   "vk_specialization_constant",
	KindVKPushConstantBuffer:       "vk_push_constant_buffer",
	KindVaryingInput:               "varying_input",
	KindVaryingOutput:              "varying_output",
	KindRTRayPayload:               "rt_ray_payload",
	KindRTHitAttributes:            "rt_hit_attributes",
	KindRTCallablePayload:          "rt_callable_payload",
	KindRTShaderRecord:             "rt_shader_record",
	KindVKSubpassInputAttachment:   "vk_subpass_input_attachment",
	KindMetalArgumentBufferElement: "metal_argument_buffer_element",
	KindMetalAttribute:             "metal_attribute",
	KindMetalPayload:               "metal_payload",
	KindMixed:                      "mixed",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of String.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := KindNone; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return KindNone, false
}

// MarshalText implements encoding.TextMarshaler for snapshots.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown layout kind %q", b)
	}
	*k = v
	return nil
}

// Kinds lists every real kind (no None, no Mixed) in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-2)
	for k := KindBytes; k < KindMixed; k++ {
		out = append(out, k)
	}
	return out
}

// IsRegister reports kinds that are numbered per register space and
// answer BindingIndex / BindingSpace.
func (k Kind) IsRegister() bool {
	switch k {
	case KindD3DConstantBuffer, KindD3DShaderResource, KindD3DUnorderedAccess, KindD3DSamplerState,
		KindVKBinding, KindVKSubpassInputAttachment, KindMetalArgumentBufferElement, KindVKPushConstantBuffer:
		return true
	}
	return false
}

// IsVarying reports stage input/output kinds.
func (k Kind) IsVarying() bool {
	switch k {
	case KindVaryingInput, KindVaryingOutput, KindMetalAttribute,
		KindRTRayPayload, KindRTHitAttributes, KindRTCallablePayload, KindRTShaderRecord, KindMetalPayload:
		return true
	}
	return false
}

// RegisterClass returns the D3D register letter for D3D kinds, 0 otherwise.
func (k Kind) RegisterClass() byte {
	switch k {
	case KindD3DConstantBuffer:
		return 'b'
	case KindD3DShaderResource:
		return 't'
	case KindD3DUnorderedAccess:
		return 'u'
	case KindD3DSamplerState:
		return 's'
	}
	return 0
}

// kindSet is a per-kind table of sizes or offsets.
type kindSet [kindCount]uint64
