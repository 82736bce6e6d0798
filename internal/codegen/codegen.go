// Package codegen turns laid out programs into target code. Every target
// goes through WGSL: the module is written with the computed bindings and
// then handed to naga for SPIR-V, HLSL or MSL.
package codegen

import (
	"context"
	"fmt"
	"math"

	"fortio.org/safecast"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"

	"shaderrefl/internal/layout"
	"shaderrefl/internal/session"
	"shaderrefl/internal/trace"
)

var _ session.CodeGenerator = (*Generator)(nil)

// Generator emits code for every target except the CPU one.
type Generator struct {
	// Tracer defaults to the one carried by the context.
	Tracer trace.Tracer
	// Validate runs naga's IR validation before SPIR-V generation.
	Validate bool
}

// New returns a generator with validation on.
func New() *Generator {
	return &Generator{Validate: true}
}

// Generate implements session.CodeGenerator.
func (g *Generator) Generate(ctx context.Context, pl *layout.ProgramLayout, entryPoint string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pl == nil || pl.Target == nil {
		return nil, fmt.Errorf("codegen: no program layout")
	}
	if pl.Target == layout.TargetCPU {
		return nil, fmt.Errorf("%s: %w", pl.Target.Name, session.ErrNoCodeGenerator)
	}

	tracer := g.Tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	span := trace.Begin(tracer, trace.ScopePass, "emit wgsl", trace.CurrentSpan(ctx))
	span.WithExtra("target", pl.Target.Name)
	src, bindings, err := EmitWGSL(pl, entryPoint)
	if err != nil {
		span.End("failed")
		return nil, err
	}
	span.End(fmt.Sprintf("%d bindings", len(bindings)))

	span = trace.Begin(tracer, trace.ScopePass, "naga", trace.CurrentSpan(ctx))
	span.WithExtra("target", pl.Target.Name)
	out, err := g.translate(pl.Target, src, bindings, entryPoint)
	if err != nil {
		span.End("failed")
		return nil, fmt.Errorf("%s: %w", pl.Target.Name, err)
	}
	span.End(fmt.Sprintf("%d bytes", len(out)))
	return out, nil
}

func (g *Generator) translate(t *layout.Target, src string, bindings []Binding, entryPoint string) ([]byte, error) {
	switch t {
	case layout.TargetWebGPU:
		return []byte(src), nil
	case layout.TargetVulkan:
		opts := naga.DefaultOptions()
		opts.Validate = g.Validate
		return naga.CompileWithOptions(src, opts)
	case layout.TargetD3D11, layout.TargetD3D12:
		module, err := lower(src)
		if err != nil {
			return nil, err
		}
		opts, err := hlslOptions(t, bindings)
		if err != nil {
			return nil, err
		}
		opts.EntryPoint = entryPoint
		code, _, err := hlsl.Compile(module, opts)
		if err != nil {
			return nil, err
		}
		return []byte(code), nil
	case layout.TargetMetal:
		module, err := lower(src)
		if err != nil {
			return nil, err
		}
		opts := msl.DefaultOptions()
		opts.FakeMissingBindings = true
		code, _, err := msl.Compile(module, opts)
		if err != nil {
			return nil, err
		}
		return []byte(code), nil
	}
	return nil, fmt.Errorf("%s: %w", t.Name, session.ErrNoCodeGenerator)
}

func lower(src string) (*ir.Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}
	return module, nil
}

// hlslOptions maps every WGSL group/binding to the register and space the
// layout computed. D3D11 has no spaces, so SM 5.0 is enough there.
func hlslOptions(t *layout.Target, bindings []Binding) (*hlsl.Options, error) {
	opts := hlsl.DefaultOptions()
	opts.FakeMissingBindings = true
	if t == layout.TargetD3D11 {
		opts.ShaderModel = hlsl.ShaderModel5_0
	}
	for _, b := range bindings {
		space, err := safecast.Conv[uint8](b.Set)
		if err != nil {
			return nil, fmt.Errorf("%s: register space %d: %w", b.Name, b.Set, err)
		}
		reg, err := safecast.Conv[uint32](b.Slot)
		if err != nil {
			return nil, fmt.Errorf("%s: register %d: %w", b.Name, b.Slot, err)
		}
		target := hlsl.BindTarget{Space: space, Register: reg}
		if b.Count > 1 && b.Count != layout.UnboundedCount {
			n := uint32(min(b.Count, math.MaxUint32)) //nolint:gosec // clamped
			target.BindingArraySize = &n
		}
		opts.BindingMap[hlsl.ResourceBinding{Group: b.Group, Binding: b.Binding}] = target
	}
	return opts, nil
}
