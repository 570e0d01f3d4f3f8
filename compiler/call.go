package compiler

import (
	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/runtime"
)

// compileCall picks the opcode family from the analyser-assigned call
// classification. Root variants stream to the enclosing pipeline;
// MaybeRoot variants defer the decision to the running frame.
func (c *Compiler) compileCall(ctx *context, e *ast.Call, tail bool) error {
	switch e.CallType {
	case ast.CallBuiltInCd:
		if err := c.compileAll(ctx, e.Arguments); err != nil {
			return err
		}
		c.emitByte(ctx, bytecode.Cd, byte(len(e.Arguments)))
		return nil
	case ast.CallBuiltInScriptPath:
		c.emit(ctx, bytecode.ScriptPath)
		return nil
	case ast.CallBuiltInError:
		if err := c.compileExpr(ctx, e.Arguments[0], false); err != nil {
			return err
		}
		c.emit(ctx, bytecode.RaiseError)
		return nil
	case ast.CallBuiltInClosure:
		if err := c.compileAll(ctx, e.Arguments); err != nil {
			return err
		}
		c.emitByte(ctx, bytecode.InvokeClosure, byte(len(e.Arguments)))
		return nil
	case ast.CallBuiltInCall:
		return c.compileDynamicCall(ctx, e, tail)
	case ast.CallBuiltInExec:
		return c.compileExec(ctx, e, tail)
	case ast.CallStdFunction:
		return c.compileStdCall(ctx, e, tail)
	case ast.CallFunction:
		return c.compileFunctionCall(ctx, e, tail)
	case ast.CallProgram:
		return c.compileProgramCall(ctx, e, tail)
	}
	return runtime.NewError("call without classification")
}

// callVariant picks between the plain, Root and MaybeRoot opcode of one
// family, laid out in that order.
func callVariant(base bytecode.Op, root, tail bool) bytecode.Op {
	if root {
		return base + 1
	}
	if tail {
		return base + 2
	}
	return base
}

func (c *Compiler) callFlags(ctx *context, e *ast.Call) (byte, error) {
	var flags byte
	if e.Closure != nil {
		if err := c.compileClosureValue(ctx, e.Closure); err != nil {
			return 0, err
		}
		flags |= bytecode.CallFlagClosure
	}
	return flags, nil
}

// emitCall writes a call family opcode with its pool index, argument
// count and flag operands.
func (c *Compiler) emitCall(ctx *context, op bytecode.Op, constIdx, argc int, flags byte) {
	c.emitU16(ctx, op, constIdx)
	ctx.page.Code = append(ctx.page.Code, byte(argc), flags)
}

func (c *Compiler) compileStdCall(ctx *context, e *ast.Call, tail bool) error {
	if err := c.compileAll(ctx, e.Arguments); err != nil {
		return err
	}
	flags, err := c.callFlags(ctx, e)
	if err != nil {
		return err
	}
	idx := ctx.page.AddConst(runtime.String(e.StdName))
	c.emitCall(ctx, callVariant(bytecode.CallStd, e.Root(), tail), idx, len(e.Arguments), flags)
	return nil
}

func (c *Compiler) compileFunctionCall(ctx *context, e *ast.Call, tail bool) error {
	if err := c.compileAll(ctx, e.Arguments); err != nil {
		return err
	}
	flags, err := c.callFlags(ctx, e)
	if err != nil {
		return err
	}
	ref := &runtime.FunctionRef{
		Ref:    runtime.RefFunction,
		Name:   e.FunctionSymbol.FullName(),
		Handle: e.FunctionSymbol,
	}
	idx := ctx.page.AddConst(ref)
	c.emitCall(ctx, callVariant(bytecode.Call, e.Root(), tail), idx, len(e.Arguments), flags)
	return nil
}

func (c *Compiler) compileProgramCall(ctx *context, e *ast.Call, tail bool) error {
	var flags byte
	if e.PipedArgument != nil {
		if err := c.compileExpr(ctx, e.PipedArgument, false); err != nil {
			return err
		}
		flags |= bytecode.CallFlagPiped
	}
	glob := map[int]bool{}
	for _, i := range e.GlobArguments {
		glob[i] = true
	}
	for i, arg := range e.Arguments {
		if err := c.compileExpr(ctx, arg, false); err != nil {
			return err
		}
		if glob[i] {
			c.emit(ctx, bytecode.Glob)
		}
	}
	idx := ctx.page.AddConst(runtime.String(e.Name))
	c.emitCall(ctx, callVariant(bytecode.CallProgram, e.Root(), tail), idx, len(e.Arguments), flags)
	return nil
}

// compileDynamicCall lowers the call built-in: the reference and its
// argument list are materialised on the stack before DynamicCall.
func (c *Compiler) compileDynamicCall(ctx *context, e *ast.Call, tail bool) error {
	if err := c.compileExpr(ctx, e.Arguments[0], false); err != nil {
		return err
	}
	if e.Closure != nil {
		if err := c.compileClosureValue(ctx, e.Closure); err != nil {
			return err
		}
		c.emit(ctx, bytecode.PushClosureToRef)
	}
	rest := e.Arguments[1:]
	if err := c.compileAll(ctx, rest); err != nil {
		return err
	}
	c.emitByte(ctx, bytecode.ResolveArgumentsDynamically, byte(len(rest)))
	c.emitByte(ctx, bytecode.DynamicCall, dynamicMode(e.Root(), tail))
	return nil
}

// compileExec lowers the exec built-in: the program name is a runtime
// string classified at call time.
func (c *Compiler) compileExec(ctx *context, e *ast.Call, tail bool) error {
	mode := dynamicMode(e.Root(), tail)
	if e.PipedArgument != nil {
		if err := c.compileExpr(ctx, e.PipedArgument, false); err != nil {
			return err
		}
		mode |= bytecode.ModePiped
	}
	if err := c.compileAll(ctx, e.Arguments); err != nil {
		return err
	}
	c.emit(ctx, bytecode.ExecProgram)
	ctx.page.Code = append(ctx.page.Code, byte(len(e.Arguments)-1), mode)
	return nil
}

func dynamicMode(root, tail bool) byte {
	if root {
		return bytecode.ModeRoot
	}
	if tail {
		return bytecode.ModeMaybeRoot
	}
	return bytecode.ModeValue
}

// compileClosureValue emits the closure page, the loads of its captured
// variables, and the MakeClosure packaging them into a value.
func (c *Compiler) compileClosureValue(ctx *context, e *ast.Closure) error {
	proto, err := c.compileClosure(ctx, e)
	if err != nil {
		return err
	}
	for _, sym := range e.Captured {
		if idx, ok := ctx.captures[sym]; ok {
			c.emitByte(ctx, bytecode.LoadUpper, byte(idx))
			continue
		}
		slot, ok := ctx.slots[sym]
		if !ok {
			return runtime.NewNotFound(sym.Name)
		}
		c.emitByte(ctx, bytecode.Load, byte(slot))
	}
	idx := ctx.page.AddConst(proto)
	c.emitU16(ctx, bytecode.MakeClosure, idx)
	ctx.page.Code = append(ctx.page.Code, byte(len(e.Captured)))
	return nil
}
