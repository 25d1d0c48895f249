// Package script defines the script execution capability consumed by
// source transforms, together with a goja-backed implementation.
package script

// Kind describes where a script body comes from.
type Kind string

const (
	KindInline  Kind = "inline"  // Script body supplied directly
	KindFile    Kind = "file"    // Script body loaded from a file by the caller
	KindIndexed Kind = "indexed" // Script body resolved from a store by the caller
)

// Executor runs a script against a context binding. The binding is exposed
// to the script as the variable "ctx" and the named parameters as "params";
// the returned map is the binding after the script ran, which may be the
// same map mutated in place or a replacement.
type Executor interface {
	Execute(language, source string, kind Kind, params map[string]any, binding map[string]any) (map[string]any, error)
}
