// Package link composes modules, entry points and conformance witness
// requests into linkables and links them into a Program.
//
// Composition flattens nested composites, so it is associative. Linking
// checks that every reference stays inside the linked set and that the
// selected entry points are well formed; all problems are reported together
// through a diag.Bag wrapped in *Error.
package link
