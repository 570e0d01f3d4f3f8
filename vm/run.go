package vm

import (
	"strings"

	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/runtime"
)

func (v *VM) readByte(f *frame) int {
	b := f.page.Code[f.ip]
	f.ip++
	return int(b)
}

func (v *VM) readU16(f *frame) int {
	n := f.page.ReadU16(f.ip)
	f.ip += 2
	return n
}

func (v *VM) readU32(f *frame) int {
	n := f.page.ReadU32(f.ip)
	f.ip += 4
	return n
}

func (v *VM) constAt(f *frame, idx int) runtime.Value { return f.page.Consts[idx] }

// run dispatches opcodes until the frame stack drops back to depth.
// User-visible failures are typed runtime errors that unwind to Execute.
func (v *VM) run(depth int) error {
	for len(v.frames) > depth {
		f := v.frame()
		op := bytecode.Op(f.page.Code[f.ip])
		f.ip++
		if err := v.dispatch(f, op); err != nil {
			return err
		}
	}
	return nil
}

func (v *VM) dispatch(f *frame, op bytecode.Op) error {
	switch op {
	case bytecode.Nop:

	case bytecode.Pop:
		v.pop()
	case bytecode.PopArgs:
		v.drop(v.readByte(f))
	case bytecode.Unpack:
		return v.unpack(v.readByte(f))
	case bytecode.ExitBlock:
		n := v.readByte(f)
		result := v.pop()
		v.drop(n)
		v.push(result)

	case bytecode.Const:
		v.push(v.constAt(f, v.readU16(f)))
	case bytecode.StructConst:
		v.push(v.constAt(f, v.readU16(f)))

	case bytecode.Load:
		v.push(v.stack[f.base+v.readByte(f)])
	case bytecode.Store:
		v.stack[f.base+v.readByte(f)] = v.peek()
	case bytecode.LoadUpper:
		v.push(f.closure.Captured[v.readByte(f)])
	case bytecode.StoreUpper:
		f.closure.Captured[v.readByte(f)] = v.peek()

	case bytecode.BuildTuple:
		v.push(runtime.Tuple(v.popN(v.readByte(f))))
	case bytecode.BuildList:
		v.push(runtime.NewList(v.popN(v.readByte(f))...))
	case bytecode.BuildListBig:
		v.push(runtime.NewList(v.popN(v.readU32(f))...))
	case bytecode.BuildSet:
		set := runtime.NewSet()
		for _, item := range v.popN(v.readByte(f)) {
			if err := set.Add(item); err != nil {
				return err
			}
		}
		v.push(set)
	case bytecode.BuildDict:
		n := v.readByte(f)
		pairs := v.popN(2 * n)
		dict := runtime.NewDict()
		for i := 0; i < n; i++ {
			if err := dict.Set(pairs[2*i], pairs[2*i+1]); err != nil {
				return err
			}
		}
		v.push(dict)
	case bytecode.BuildRange:
		to, from := v.pop(), v.pop()
		f0, okFrom := from.(runtime.Int)
		t0, okTo := to.(runtime.Int)
		if !okFrom || !okTo {
			return runtime.NewInvalidBinaryOperation("..", from.Kind(), to.Kind())
		}
		v.push(runtime.Range{From: int64(f0), To: int64(t0)})
	case bytecode.BuildString:
		parts := v.popN(v.readByte(f))
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.String())
		}
		v.push(runtime.String(b.String()))
	case bytecode.New:
		idx := v.readU16(f)
		argc := v.readByte(f)
		proto := v.constAt(f, idx).(*runtime.Struct)
		v.push(&runtime.Struct{Name: proto.Name, Fields: proto.Fields, Values: v.popN(argc)})
	case bytecode.Glob:
		return v.glob()
	case bytecode.MakeClosure:
		idx := v.readU16(f)
		n := v.readByte(f)
		proto := v.constAt(f, idx).(*runtime.ClosureValue)
		v.push(&runtime.ClosureValue{
			Handle:     proto.Handle,
			Parameters: proto.Parameters,
			Captured:   v.popN(n),
		})

	case bytecode.Index:
		idx := v.pop()
		obj := v.pop()
		result, err := runtime.Index(obj, idx)
		if err != nil {
			return err
		}
		v.push(result)
	case bytecode.SetIndex:
		value := v.pop()
		idx := v.pop()
		obj := v.pop()
		if err := runtime.SetIndex(obj, idx, value); err != nil {
			return err
		}
		v.push(value)
	case bytecode.GetField:
		name := v.constAt(f, v.readU16(f)).String()
		obj := v.pop()
		instance, ok := obj.(*runtime.Struct)
		if !ok {
			return runtime.NewInvalidOperation("field access", obj.Kind())
		}
		value, found := instance.Field(name)
		if !found {
			return runtime.NewNotFound("field " + name)
		}
		v.push(value)

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div,
		bytecode.Mod, bytecode.Equal, bytecode.NotEqual, bytecode.Greater,
		bytecode.GreaterEqual, bytecode.Less, bytecode.LessEqual,
		bytecode.And, bytecode.Or, bytecode.Contains:
		right := v.pop()
		left := v.pop()
		result, err := runtime.Apply(binaryRuntimeOps[op], left, right)
		if err != nil {
			return err
		}
		v.push(result)
	case bytecode.Negate:
		result, err := runtime.Negate(v.pop())
		if err != nil {
			return err
		}
		v.push(result)
	case bytecode.Not:
		v.push(runtime.Not(v.pop()))

	case bytecode.Jump:
		f.ip += v.readU16(f)
	case bytecode.JumpBackward:
		f.ip -= v.readU16(f)
	case bytecode.JumpIf:
		offset := v.readU16(f)
		if runtime.Truthy(v.peek()) {
			f.ip += offset
		}
	case bytecode.JumpIfNot:
		offset := v.readU16(f)
		if !runtime.Truthy(v.peek()) {
			f.ip += offset
		}
	case bytecode.PopJumpIf:
		offset := v.readU16(f)
		if runtime.Truthy(v.pop()) {
			f.ip += offset
		}
	case bytecode.PopJumpIfNot:
		offset := v.readU16(f)
		if !runtime.Truthy(v.pop()) {
			f.ip += offset
		}
	case bytecode.Ret:
		result := v.pop()
		if !f.global {
			v.stack = v.stack[:f.base]
		}
		v.frames = v.frames[:len(v.frames)-1]
		v.push(result)

	case bytecode.GetIter:
		iter, err := runtime.NewIterator(v.pop())
		if err != nil {
			return err
		}
		v.push(&runtime.IterValue{Iter: iter})
	case bytecode.ForIter:
		offset := v.readU16(f)
		iter := v.peek().(*runtime.IterValue)
		next, ok := iter.Iter.Next()
		if ok {
			v.push(next)
		} else {
			f.ip += offset
		}
	case bytecode.EndFor:
		v.pop()

	case bytecode.Call, bytecode.RootCall, bytecode.MaybeRootCall:
		return v.opCall(f, op)
	case bytecode.CallStd, bytecode.RootCallStd, bytecode.MaybeRootCallStd:
		return v.opCallStd(f)
	case bytecode.CallProgram, bytecode.RootCallProgram, bytecode.MaybeRootCallProgram:
		return v.opCallProgram(f, op)
	case bytecode.ExecProgram:
		return v.opExecProgram(f)
	case bytecode.ResolveArgumentsDynamically:
		return v.opResolveArguments(f)
	case bytecode.DynamicCall:
		return v.opDynamicCall(f)
	case bytecode.PushArgsToRef:
		argc := v.readByte(f)
		args := v.popN(argc)
		ref, ok := v.pop().(*runtime.FunctionRef)
		if !ok {
			return runtime.NewInvalidOperation("bind arguments", v.peek().Kind())
		}
		bound := *ref
		bound.Args = append(append([]runtime.Value(nil), ref.Args...), args...)
		v.push(&bound)
	case bytecode.PushClosureToRef:
		cl, ok := v.pop().(*runtime.ClosureValue)
		if !ok {
			return runtime.NewError("expected a closure value")
		}
		ref, refOk := v.pop().(*runtime.FunctionRef)
		if !refOk {
			return runtime.NewInvalidOperation("attach closure", cl.Kind())
		}
		bound := *ref
		bound.Closure = cl
		v.push(&bound)
	case bytecode.InvokeClosure:
		argc := v.readByte(f)
		if f.attached == nil {
			return runtime.NewExpectedClosure("closure")
		}
		return v.enterClosure(f.attached, argc)

	case bytecode.LoadEnv:
		name := v.constAt(f, v.readU16(f)).String()
		v.push(runtime.String(v.env.Get(name)))
	case bytecode.StoreEnv:
		name := v.constAt(f, v.readU16(f)).String()
		if err := v.env.Set(name, v.peek().String()); err != nil {
			return runtime.NewError("cannot set $%s: %v", name, err)
		}

	case bytecode.Cd:
		argc := v.readByte(f)
		return v.chdir(argc)
	case bytecode.ScriptPath:
		v.push(runtime.String(v.env.ScriptPath()))
	case bytecode.RaiseError:
		return runtime.NewError("%s", v.pop().String())

	default:
		return runtime.NewError("unknown opcode %s", op)
	}
	return nil
}

var binaryRuntimeOps = map[bytecode.Op]runtime.Op{
	bytecode.Add:          runtime.OpAdd,
	bytecode.Sub:          runtime.OpSub,
	bytecode.Mul:          runtime.OpMul,
	bytecode.Div:          runtime.OpDiv,
	bytecode.Mod:          runtime.OpMod,
	bytecode.Equal:        runtime.OpEqual,
	bytecode.NotEqual:     runtime.OpNotEqual,
	bytecode.Greater:      runtime.OpGreater,
	bytecode.GreaterEqual: runtime.OpGreaterEqual,
	bytecode.Less:         runtime.OpLess,
	bytecode.LessEqual:    runtime.OpLessEqual,
	bytecode.And:          runtime.OpAnd,
	bytecode.Or:           runtime.OpOr,
	bytecode.Contains:     runtime.OpContains,
}

func (v *VM) unpack(n int) error {
	var items []runtime.Value
	switch value := v.pop().(type) {
	case *runtime.List:
		items = value.Items
	case runtime.Tuple:
		items = value
	default:
		return runtime.NewInvalidOperation("unpack", value.Kind())
	}
	if len(items) != n {
		return runtime.NewError("cannot unpack %d values into %d names", len(items), n)
	}
	for _, item := range items {
		v.push(item)
	}
	return nil
}

func (v *VM) chdir(argc int) error {
	dir := ""
	if argc == 1 {
		dir = v.pop().String()
	}
	if dir == "" {
		home, err := userHomeDir()
		if err != nil {
			return runtime.NewError("cd: %v", err)
		}
		dir = home
	}
	if err := v.env.Chdir(dir); err != nil {
		return runtime.NewNotFound(dir)
	}
	v.push(runtime.Nil{})
	return nil
}
