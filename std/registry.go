// Package std holds the standard bindings table: host-provided callables
// with declared arities. The analyser treats the table as a read-only
// registry; the executor marshals arguments and invokes the callables.
package std

import (
	"io"

	"github.com/bramadityaw/elk/runtime"
)

// Caller lets a standard function re-enter the executor to invoke the
// closure or function reference attached to its call site.
type Caller interface {
	// CallClosure runs the attached closure with the given arguments.
	CallClosure(args ...runtime.Value) (runtime.Value, error)
	// CallRef invokes a function reference value.
	CallRef(ref *runtime.FunctionRef, args ...runtime.Value) (runtime.Value, error)
}

// Invocation carries one standard-function call.
type Invocation struct {
	Args []runtime.Value
	// HasClosure is set when the call site attached a closure.
	HasClosure bool
	Caller     Caller
	Stdout     io.Writer
	Stderr     io.Writer
}

// Func is the host callable behind a binding.
type Func func(in *Invocation) (runtime.Value, error)

// Binding declares one standard function.
type Binding struct {
	Name    string
	MinArgs int
	// MaxArgs below zero means unbounded.
	MaxArgs int
	// VariadicStart is the index of the first variadic argument, or -1.
	VariadicStart int
	// AcceptsClosure permits a trailing closure at call sites.
	AcceptsClosure bool
	Func           Func
}

// IsVariadic reports whether the binding accepts a variadic tail.
func (b *Binding) IsVariadic() bool { return b.VariadicStart >= 0 }

// StructBinding declares a host-provided struct used as the fallback for
// `new` when no user struct resolves.
type StructBinding struct {
	Name    string
	Fields  []string
	MinArgs int
	MaxArgs int
}

// Registry is the read-only table of standard bindings the analyser
// resolves against.
type Registry struct {
	functions map[string]*Binding
	structs   map[string]*StructBinding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: map[string]*Binding{},
		structs:   map[string]*StructBinding{},
	}
}

// Register adds or replaces a binding.
func (r *Registry) Register(b *Binding) {
	r.functions[b.Name] = b
}

// RegisterStruct adds or replaces a struct binding.
func (r *Registry) RegisterStruct(b *StructBinding) {
	r.structs[b.Name] = b
}

// Find resolves a function binding by name.
func (r *Registry) Find(name string) (*Binding, bool) {
	b, ok := r.functions[name]
	return b, ok
}

// FindStruct resolves a struct binding by name.
func (r *Registry) FindStruct(name string) (*StructBinding, bool) {
	b, ok := r.structs[name]
	return b, ok
}
