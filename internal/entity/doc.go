// Package entity is the target-independent model of reflectable program
// constructs: modules, types, functions, variables, generics and their
// specializations.
//
// All entities live in a Graph arena and are referred to by ID. Structural
// types (vectors, arrays, resources, parameter groups) and constant values
// are interned, so equal types share an ID. Specializing a generic creates
// a new entity that remembers the generic and its arguments; the children
// of a specialization are materialized lazily and see the substituted
// types.
package entity
