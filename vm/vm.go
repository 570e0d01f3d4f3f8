// Package vm executes pages on an operand stack with a call-frame stack.
// Locals occupy a window of the operand stack starting at the frame base;
// globals of the top-level page persist at the bottom of the stack across
// executions.
package vm

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/process"
	"github.com/bramadityaw/elk/runtime"
	"github.com/bramadityaw/elk/std"
)

// Option configures the executor.
type Option func(*VM)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *VM) { v.log = log }
}

// WithStdout sets the writer root calls stream to.
func WithStdout(w io.Writer) Option {
	return func(v *VM) { v.stdout = w }
}

// WithStderr sets the writer child stderr passes through to.
func WithStderr(w io.Writer) Option {
	return func(v *VM) { v.stderr = w }
}

// WithEnv sets the shell environment surface.
func WithEnv(env *process.Env) Option {
	return func(v *VM) { v.env = env }
}

// frame is one activation record: the page, the instruction offset, the
// base of the locals window on the operand stack, and the call context.
type frame struct {
	page *bytecode.Page
	ip   int
	base int
	// root marks a frame whose tail calls may stream to the shell
	// pipeline.
	root bool
	// global marks the top-level frame, whose locals persist as session
	// globals.
	global bool
	// closure is the snapshot environment of a running closure.
	closure *runtime.ClosureValue
	// attached is the closure value passed alongside this call, invoked
	// by the closure built-in.
	attached *runtime.ClosureValue
}

// VM executes pages. It owns the operand stack, the frame stack, and the
// session globals at the stack bottom.
type VM struct {
	log      *zap.Logger
	env      *process.Env
	bindings *std.Registry
	table    *bytecode.FunctionTable

	stdout io.Writer
	stderr io.Writer

	stack  []runtime.Value
	frames []*frame
}

// New creates an executor resolving user calls through table and standard
// calls through bindings.
func New(table *bytecode.FunctionTable, bindings *std.Registry, opts ...Option) *VM {
	v := &VM{
		log:      zap.NewNop(),
		bindings: bindings,
		table:    table,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.env == nil {
		v.env = process.NewEnv()
	}
	return v
}

// Env exposes the shell environment surface.
func (v *VM) Env() *process.Env { return v.env }

// Execute runs a top-level page and returns its result value. Globals
// beneath the page's base slot count survive for the next execution;
// anything above is leftover from a failed run and is discarded.
func (v *VM) Execute(page *bytecode.Page) (runtime.Value, error) {
	if len(v.stack) > page.BaseSlots {
		v.stack = v.stack[:page.BaseSlots]
	}
	for len(v.stack) < page.BaseSlots {
		v.stack = append(v.stack, runtime.Nil{})
	}
	v.frames = v.frames[:0]
	v.pushFrame(&frame{page: page, base: 0, root: true, global: true})
	if err := v.run(0); err != nil {
		v.frames = v.frames[:0]
		return nil, err
	}
	return v.pop(), nil
}

func (v *VM) pushFrame(f *frame) { v.frames = append(v.frames, f) }

func (v *VM) frame() *frame { return v.frames[len(v.frames)-1] }

func (v *VM) push(value runtime.Value) { v.stack = append(v.stack, value) }

func (v *VM) pop() runtime.Value {
	value := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return value
}

func (v *VM) peek() runtime.Value { return v.stack[len(v.stack)-1] }

// popN removes and returns the top n values in stack order.
func (v *VM) popN(n int) []runtime.Value {
	values := append([]runtime.Value(nil), v.stack[len(v.stack)-n:]...)
	v.stack = v.stack[:len(v.stack)-n]
	return values
}

func (v *VM) drop(n int) { v.stack = v.stack[:len(v.stack)-n] }

// enterFunction pushes a frame for sym with argc arguments already on the
// stack.
func (v *VM) enterFunction(sym *ast.FunctionSymbol, argc int, root bool, attached *runtime.ClosureValue) error {
	page, ok := v.table.Page(sym)
	if !ok {
		return runtime.NewNotFound(sym.FullName())
	}
	v.pushFrame(&frame{
		page:     page,
		base:     len(v.stack) - argc,
		root:     root,
		attached: attached,
	})
	return nil
}

// enterClosure pushes a frame running a closure value, padding missing
// parameters with nil.
func (v *VM) enterClosure(cl *runtime.ClosureValue, argc int) error {
	page, ok := cl.Handle.(*bytecode.Page)
	if !ok {
		return runtime.NewError("closure without a page")
	}
	if argc > cl.Parameters {
		return runtime.NewWrongArguments(cl.Parameters, cl.Parameters, argc)
	}
	base := len(v.stack) - argc
	for i := argc; i < cl.Parameters; i++ {
		v.push(runtime.Nil{})
	}
	v.pushFrame(&frame{page: page, base: base, closure: cl})
	return nil
}

// stdCaller lets standard functions re-enter the executor.
type stdCaller struct {
	vm       *VM
	attached *runtime.ClosureValue
}

func (c *stdCaller) CallClosure(args ...runtime.Value) (runtime.Value, error) {
	if c.attached == nil {
		return nil, runtime.NewExpectedClosure("closure")
	}
	depth := len(c.vm.frames)
	for _, arg := range args {
		c.vm.push(arg)
	}
	if err := c.vm.enterClosure(c.attached, len(args)); err != nil {
		return nil, err
	}
	if err := c.vm.run(depth); err != nil {
		return nil, err
	}
	return c.vm.pop(), nil
}

func (c *stdCaller) CallRef(ref *runtime.FunctionRef, args ...runtime.Value) (runtime.Value, error) {
	merged := append(append([]runtime.Value(nil), ref.Args...), args...)
	return c.vm.callRef(ref, merged, bytecode.ModeValue)
}
