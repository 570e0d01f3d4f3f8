package vm

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/process"
	"github.com/bramadityaw/elk/runtime"
	"github.com/bramadityaw/elk/std"
)

// opCall dispatches a static user-function call: push a frame over the
// arguments already on the stack and jump to the callee's page.
func (v *VM) opCall(f *frame, op bytecode.Op) error {
	idx := v.readU16(f)
	argc := v.readByte(f)
	flags := byte(v.readByte(f))

	var attached *runtime.ClosureValue
	if flags&bytecode.CallFlagClosure != 0 {
		attached = v.pop().(*runtime.ClosureValue)
	}
	ref := v.constAt(f, idx).(*runtime.FunctionRef)
	sym := ref.Handle.(*ast.FunctionSymbol)
	root := op == bytecode.RootCall || (op == bytecode.MaybeRootCall && f.root)
	return v.enterFunction(sym, argc, root, attached)
}

// opCallStd marshals arguments from the stack, invokes the host callable
// and pushes the result.
func (v *VM) opCallStd(f *frame) error {
	idx := v.readU16(f)
	argc := v.readByte(f)
	flags := byte(v.readByte(f))

	var attached *runtime.ClosureValue
	if flags&bytecode.CallFlagClosure != 0 {
		attached = v.pop().(*runtime.ClosureValue)
	}
	name := v.constAt(f, idx).String()
	args := v.popN(argc)
	result, err := v.invokeStd(name, args, attached)
	if err != nil {
		return err
	}
	v.push(result)
	return nil
}

func (v *VM) invokeStd(name string, args []runtime.Value, attached *runtime.ClosureValue) (runtime.Value, error) {
	binding, ok := v.bindings.Find(name)
	if !ok {
		return nil, runtime.NewNotFound(name)
	}
	if len(args) < binding.MinArgs || (binding.MaxArgs >= 0 && len(args) > binding.MaxArgs && !binding.IsVariadic()) {
		return nil, runtime.NewWrongArguments(binding.MinArgs, binding.MaxArgs, len(args))
	}
	return binding.Func(&std.Invocation{
		Args:       args,
		HasClosure: attached != nil,
		Caller:     &stdCaller{vm: v, attached: attached},
		Stdout:     v.stdout,
		Stderr:     v.stderr,
	})
}

// opCallProgram launches an external program. Root execution blocks and
// streams to the host stdout, its exit code becoming the result;
// non-root execution redirects into a pipe value.
func (v *VM) opCallProgram(f *frame, op bytecode.Op) error {
	idx := v.readU16(f)
	argc := v.readByte(f)
	flags := byte(v.readByte(f))

	name := v.constAt(f, idx).String()
	args := flattenArgs(v.popN(argc))
	var piped runtime.Value
	if flags&bytecode.CallFlagPiped != 0 {
		piped = v.pop()
	}
	root := op == bytecode.RootCallProgram || (op == bytecode.MaybeRootCallProgram && f.root)
	return v.launchProgram(name, args, piped, root)
}

// opExecProgram launches the program named by a runtime string.
func (v *VM) opExecProgram(f *frame) error {
	argc := v.readByte(f)
	mode := byte(v.readByte(f))

	args := flattenArgs(v.popN(argc))
	name := v.pop().String()
	var piped runtime.Value
	if mode&bytecode.ModePiped != 0 {
		piped = v.pop()
	}
	root := mode&^bytecode.ModePiped == bytecode.ModeRoot ||
		(mode&^bytecode.ModePiped == bytecode.ModeMaybeRoot && f.root)
	return v.launchProgram(name, args, piped, root)
}

func (v *VM) launchProgram(name string, args []string, piped runtime.Value, root bool) error {
	opts := []process.Option{
		process.WithStdout(v.stdout),
		process.WithStderr(v.stderr),
	}
	ctx := process.New(v.log, v.env, name, args, opts...)
	if piped != nil {
		ctx.SetPipedValue(piped)
	}
	if root {
		code, err := ctx.Start()
		if err != nil {
			return err
		}
		v.push(runtime.Int(code))
		return nil
	}
	pipe, err := ctx.StartWithRedirect()
	if err != nil {
		return err
	}
	v.push(pipe)
	return nil
}

// flattenArgs stringifies program arguments, splicing list values such as
// glob expansions into separate arguments.
func flattenArgs(values []runtime.Value) []string {
	var args []string
	for _, value := range values {
		if list, ok := value.(*runtime.List); ok {
			for _, item := range list.Items {
				args = append(args, item.String())
			}
			continue
		}
		args = append(args, value.String())
	}
	return args
}

// opResolveArguments merges stack arguments with a reference's bound
// arguments, leaving the callable and its materialised argument list.
func (v *VM) opResolveArguments(f *frame) error {
	argc := v.readByte(f)
	args := v.popN(argc)
	value := v.pop()
	ref, ok := value.(*runtime.FunctionRef)
	if !ok {
		return runtime.NewInvalidOperation("call", value.Kind())
	}
	merged := append(append([]runtime.Value(nil), ref.Args...), args...)
	v.push(ref)
	v.push(runtime.NewList(merged...))
	return nil
}

// opDynamicCall invokes the callable materialised by
// ResolveArgumentsDynamically.
func (v *VM) opDynamicCall(f *frame) error {
	mode := byte(v.readByte(f))
	list := v.pop().(*runtime.List)
	ref := v.pop().(*runtime.FunctionRef)
	root := mode == bytecode.ModeRoot || (mode == bytecode.ModeMaybeRoot && f.root)

	if ref.Ref == runtime.RefFunction {
		return v.enterRefFunction(ref, list.Items, root)
	}
	result, err := v.callRefShallow(ref, list.Items, root)
	if err != nil {
		return err
	}
	v.push(result)
	return nil
}

// callRef invokes any reference kind to completion and returns the result.
func (v *VM) callRef(ref *runtime.FunctionRef, args []runtime.Value, mode byte) (runtime.Value, error) {
	if ref.Ref == runtime.RefFunction {
		depth := len(v.frames)
		if err := v.enterRefFunction(ref, args, mode == bytecode.ModeRoot); err != nil {
			return nil, err
		}
		if err := v.run(depth); err != nil {
			return nil, err
		}
		return v.pop(), nil
	}
	return v.callRefShallow(ref, args, mode == bytecode.ModeRoot)
}

// callRefShallow handles the reference kinds that complete without a new
// bytecode frame.
func (v *VM) callRefShallow(ref *runtime.FunctionRef, args []runtime.Value, root bool) (runtime.Value, error) {
	switch ref.Ref {
	case runtime.RefStd:
		return v.invokeStd(ref.Name, args, ref.Closure)
	case runtime.RefProgram:
		if err := v.launchProgram(ref.Name, flattenArgs(args), nil, root); err != nil {
			return nil, err
		}
		return v.pop(), nil
	}
	return nil, runtime.NewInvalidOperation("call", ref.Kind())
}

// enterRefFunction validates a dynamic user call against the symbol's
// arity, fills missing optional parameters with nil, collapses a variadic
// tail, and pushes the frame.
func (v *VM) enterRefFunction(ref *runtime.FunctionRef, args []runtime.Value, root bool) error {
	sym := ref.Handle.(*ast.FunctionSymbol)
	min, max := sym.MinArguments(), sym.MaxArguments()
	if len(args) < min || (len(args) > max && !sym.IsVariadic()) {
		if sym.IsVariadic() {
			max = -1
		}
		return runtime.NewWrongArguments(min, max, len(args))
	}
	params := len(sym.Expr.Parameters)
	if sym.IsVariadic() {
		fixed := params - 1
		for len(args) < fixed {
			args = append(args, runtime.Nil{})
		}
		tail := runtime.NewList(append([]runtime.Value(nil), args[fixed:]...)...)
		args = append(args[:fixed:fixed], tail)
	} else {
		for len(args) < params {
			args = append(args, runtime.Nil{})
		}
	}
	for _, arg := range args {
		v.push(arg)
	}
	return v.enterFunction(sym, len(args), root, ref.Closure)
}

// glob expands the pattern on top of the stack against the filesystem;
// non-matching patterns pass through verbatim.
func (v *VM) glob() error {
	pattern := v.pop().String()
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		v.push(runtime.String(pattern))
		return nil
	}
	v.log.Debug("glob expanded", zap.String("pattern", pattern), zap.Int("matches", len(matches)))
	items := make([]runtime.Value, len(matches))
	for i, match := range matches {
		items[i] = runtime.String(match)
	}
	v.push(runtime.NewList(items...))
	return nil
}

func userHomeDir() (string, error) { return os.UserHomeDir() }
