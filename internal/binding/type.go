package binding

import (
	"fmt"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
)

// BindingType is what an application binds to a range.
type BindingType uint8

const (
	TypeUnknown BindingType = iota
	TypeSampler
	TypeTexture
	TypeMutableTexture
	TypeTypedBuffer
	TypeMutableTypedBuffer
	TypeRawBuffer
	TypeMutableRawBuffer
	TypeConstantBuffer
	TypeParameterBlock
	TypePushConstant
	TypeInputRenderTarget
	TypeRayTracingAccelerationStructure
	TypeInlineUniformData
)

var typeNames = [...]string{
	TypeUnknown:                         "unknown",
	TypeSampler:                         "sampler",
	TypeTexture:                         "texture",
	TypeMutableTexture:                  "mutable_texture",
	TypeTypedBuffer:                     "typed_buffer",
	TypeMutableTypedBuffer:              "mutable_typed_buffer",
	TypeRawBuffer:                       "raw_buffer",
	TypeMutableRawBuffer:                "mutable_raw_buffer",
	TypeConstantBuffer:                  "constant_buffer",
	TypeParameterBlock:                  "parameter_block",
	TypePushConstant:                    "push_constant",
	TypeInputRenderTarget:               "input_render_target",
	TypeRayTracingAccelerationStructure: "acceleration_structure",
	TypeInlineUniformData:               "inline_uniform_data",
}

func (t BindingType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("BindingType(%d)", t)
}

// MarshalText implements encoding.TextMarshaler for snapshots.
func (t BindingType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (t *BindingType) UnmarshalText(b []byte) error {
	for i, name := range typeNames {
		if name == string(b) {
			*t = BindingType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown binding type %q", b)
}

type resourceKey struct {
	shape  entity.ResourceShape
	access entity.ResourceAccess
}

var resourceTypes = map[resourceKey]BindingType{
	{entity.ResSampler, entity.AccessRead}:                TypeSampler,
	{entity.ResTexture1D, entity.AccessRead}:              TypeTexture,
	{entity.ResTexture2D, entity.AccessRead}:              TypeTexture,
	{entity.ResTexture3D, entity.AccessRead}:              TypeTexture,
	{entity.ResTextureCube, entity.AccessRead}:            TypeTexture,
	{entity.ResTexture2DArray, entity.AccessRead}:         TypeTexture,
	{entity.ResTexture1D, entity.AccessReadWrite}:         TypeMutableTexture,
	{entity.ResTexture2D, entity.AccessReadWrite}:         TypeMutableTexture,
	{entity.ResTexture3D, entity.AccessReadWrite}:         TypeMutableTexture,
	{entity.ResTexture2DArray, entity.AccessReadWrite}:    TypeMutableTexture,
	{entity.ResTypedBuffer, entity.AccessRead}:            TypeTypedBuffer,
	{entity.ResTypedBuffer, entity.AccessReadWrite}:       TypeMutableTypedBuffer,
	{entity.ResStructuredBuffer, entity.AccessRead}:       TypeRawBuffer,
	{entity.ResStructuredBuffer, entity.AccessReadWrite}:  TypeMutableRawBuffer,
	{entity.ResByteAddressBuffer, entity.AccessRead}:      TypeRawBuffer,
	{entity.ResByteAddressBuffer, entity.AccessReadWrite}: TypeMutableRawBuffer,
	{entity.ResAccelerationStructure, entity.AccessRead}:  TypeRayTracingAccelerationStructure,
	{entity.ResSubpassInput, entity.AccessRead}:           TypeInputRenderTarget,
}

// ResourceType maps a resource to its binding type.
func ResourceType(res entity.ResourceInfo) BindingType {
	return resourceTypes[resourceKey{res.Shape, res.Access}]
}

// GroupType maps a parameter group layout to its binding type on t.
// ParameterBlock degrades to a constant buffer on targets without spaces,
// and push constants are inline data on Metal.
func GroupType(t *layout.Target, l *layout.TypeLayout) BindingType {
	switch {
	case l.Push && t.MetalVaryings:
		return TypeInlineUniformData
	case l.Push:
		return TypePushConstant
	case l.Group == entity.GroupParameterBlock && l.SpaceCreating:
		return TypeParameterBlock
	default:
		return TypeConstantBuffer
	}
}

// descriptorKind reports kinds that are backed by descriptors an
// application writes. Push constants and subpass attachment indices are not.
func descriptorKind(k layout.Kind) bool {
	switch k {
	case layout.KindVKPushConstantBuffer, layout.KindVKSubpassInputAttachment:
		return false
	}
	return k.IsRegister()
}
