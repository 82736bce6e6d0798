package describe

import "shaderrefl/internal/source"

// Module is one module description. TOML and YAML share the keys; the
// json tags are what sigs.k8s.io/yaml decodes through.
type Module struct {
	Name         string        `toml:"name" json:"name"`
	Imports      []string      `toml:"imports" json:"imports,omitempty"`
	Decls        []Decl        `toml:"decl" json:"decl,omitempty"`
	EntryPoints  []EntryPoint  `toml:"entry_point" json:"entry_point,omitempty"`
	Conformances []Conformance `toml:"conformance" json:"conformance,omitempty"`

	// File is the description file in the loader's FileSet, nil for
	// modules decoded from memory.
	File *source.File `toml:"-" json:"-"`
}

// Decl declares one module-level entity.
type Decl struct {
	Kind string `toml:"kind" json:"kind"`
	Name string `toml:"name" json:"name"`

	// Type is the type of a param; Result the result of a func.
	Type      string   `toml:"type" json:"type,omitempty"`
	Result    string   `toml:"result" json:"result,omitempty"`
	Conforms  []string `toml:"conforms" json:"conforms,omitempty"`
	Modifiers []string `toml:"modifiers" json:"modifiers,omitempty"`
	Semantic  string   `toml:"semantic" json:"semantic,omitempty"`
	Binding   *Binding `toml:"binding" json:"binding,omitempty"`

	Fields     []Field     `toml:"field" json:"field,omitempty"`
	Params     []Field     `toml:"param" json:"param,omitempty"`
	Cases      []EnumCase  `toml:"case" json:"case,omitempty"`
	TypeParams []TypeParam `toml:"type_param" json:"type_param,omitempty"`
	Attributes []Attribute `toml:"attribute" json:"attribute,omitempty"`
}

// Field is a struct field or a function parameter.
type Field struct {
	Name      string   `toml:"name" json:"name"`
	Type      string   `toml:"type" json:"type"`
	Modifiers []string `toml:"modifiers" json:"modifiers,omitempty"`
	Semantic  string   `toml:"semantic" json:"semantic,omitempty"`
	Binding   *Binding `toml:"binding" json:"binding,omitempty"`
}

// EnumCase is one enumerator.
type EnumCase struct {
	Name  string `toml:"name" json:"name"`
	Value int64  `toml:"value" json:"value"`
}

// TypeParam is a generic parameter. A param with Type is a value
// parameter; Conforms lists interface constraints of a type parameter.
type TypeParam struct {
	Name     string   `toml:"name" json:"name"`
	Type     string   `toml:"type" json:"type,omitempty"`
	Conforms []string `toml:"conforms" json:"conforms,omitempty"`
}

// Binding is an explicit register binding. Class is one of b, t, u, s or
// empty for a target-neutral binding index.
type Binding struct {
	Class string `toml:"class" json:"class,omitempty"`
	Index uint32 `toml:"index" json:"index"`
	Space uint32 `toml:"space" json:"space"`
}

// Attribute is a user attribute with type-expression arguments.
type Attribute struct {
	Name string   `toml:"name" json:"name"`
	Args []string `toml:"args" json:"args,omitempty"`
}

// EntryPoint names a func of the module and its stage.
type EntryPoint struct {
	Name  string `toml:"name" json:"name"`
	Stage string `toml:"stage" json:"stage"`
}

// Conformance is a standalone witness that Type conforms to Interface.
type Conformance struct {
	Type      string `toml:"type" json:"type"`
	Interface string `toml:"interface" json:"interface"`
}

// Declaration kinds.
const (
	KindStruct    = "struct"
	KindClass     = "class"
	KindInterface = "interface"
	KindEnum      = "enum"
	KindFunc      = "func"
	KindParam     = "param"
	KindGeneric   = "generic"
)
