package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Entity graph
	EntInfo                Code = 1000
	EntNotFound            Code = 1001
	EntAmbiguousName       Code = 1002
	EntArgumentMismatch    Code = 1003
	EntConstraintViolation Code = 1004
	EntWrongKind           Code = 1005

	// Module descriptions
	DscInfo           Code = 2000
	DscParseError     Code = 2001
	DscUnknownKind    Code = 2002
	DscUnresolvedName Code = 2003
	DscBadTypeExpr    Code = 2004
	DscDuplicateDecl  Code = 2005
	DscMissingField   Code = 2006
	DscBadModifier    Code = 2007
	DscBadStage       Code = 2008
	DscIOError        Code = 2009
	DscImportCycle    Code = 2010
	DscMissingModule  Code = 2011
	DscDependency     Code = 2012

	// Linkage
	LnkInfo                       Code = 3000
	LnkDuplicateDefinition        Code = 3001
	LnkUnresolvedReference        Code = 3002
	LnkMultipleEntryPointConflict Code = 3003
	LnkInvalidEntryPoint          Code = 3004
	LnkNotFound                   Code = 3005
	LnkAmbiguousName              Code = 3006

	// Layout
	LayInfo                 Code = 4000
	LayUnsupportedConstruct Code = 4001
	LayCyclicLayout         Code = 4002
	LayTargetMismatch       Code = 4003
	LayBindingOverlap       Code = 4004

	// Binding extraction
	BndInfo           Code = 5000
	BndTargetMismatch Code = 5001

	// Code generation
	GenInfo              Code = 6000
	GenUnsupportedTarget Code = 6001
	GenFailed            Code = 6002

	// Observability
	ObsInfo    Code = 7000
	ObsTimings Code = 7001
	ObsCache   Code = 7002
)

var (
	codeDescription = map[Code]string{
		UnknownCode:                   "Unknown error",
		EntInfo:                       "Entity information",
		EntNotFound:                   "Entity not found",
		EntAmbiguousName:              "Ambiguous name",
		EntArgumentMismatch:           "Generic argument mismatch",
		EntConstraintViolation:        "Generic constraint violated",
		EntWrongKind:                  "Entity has the wrong kind",
		DscInfo:                       "Description information",
		DscParseError:                 "Malformed module description",
		DscUnknownKind:                "Unknown declaration kind",
		DscUnresolvedName:             "Unresolved name",
		DscBadTypeExpr:                "Invalid type expression",
		DscDuplicateDecl:              "Duplicate declaration",
		DscMissingField:               "Missing required field",
		DscBadModifier:                "Unknown modifier",
		DscBadStage:                   "Unknown shader stage",
		DscIOError:                    "Cannot read module description",
		DscImportCycle:                "Import cycle",
		DscMissingModule:              "Imported module not found",
		DscDependency:                 "Dependency has errors",
		LnkInfo:                       "Link information",
		LnkDuplicateDefinition:        "Conflicting definitions",
		LnkUnresolvedReference:        "Unresolved reference",
		LnkMultipleEntryPointConflict: "Entry point linked twice",
		LnkInvalidEntryPoint:          "Invalid entry point",
		LnkNotFound:                   "Name not found in program",
		LnkAmbiguousName:              "Ambiguous name in program",
		LayInfo:                       "Layout information",
		LayUnsupportedConstruct:       "Construct has no layout on this target",
		LayCyclicLayout:               "Cyclic layout",
		LayTargetMismatch:             "Layout belongs to another target",
		LayBindingOverlap:             "Explicit bindings overlap",
		BndInfo:                       "Binding information",
		BndTargetMismatch:             "Binding query for another target",
		GenInfo:                       "Code generation information",
		GenUnsupportedTarget:          "No code generator for target",
		GenFailed:                     "Code generation failed",
		ObsInfo:                       "Observability information",
		ObsTimings:                    "Pipeline timings",
		ObsCache:                      "Snapshot cache unavailable",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("ENT%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("DSC%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("LNK%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("BND%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("GEN%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
