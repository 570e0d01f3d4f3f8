package compiler

import (
	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/runtime"
)

// topLevelStatements drops the declarations compiled through the scope
// walk.
func topLevelStatements(body []ast.Expr) []ast.Expr {
	var rest []ast.Expr
	for _, expr := range body {
		switch expr.(type) {
		case *ast.Module, *ast.Function, *ast.Struct:
		default:
			rest = append(rest, expr)
		}
	}
	return rest
}

// compileExpr lowers one expression, leaving exactly one value on the
// stack. tail marks the result position of a function body, where calls
// compile to their MaybeRoot variants.
func (c *Compiler) compileExpr(ctx *context, expr ast.Expr, tail bool) error {
	switch e := expr.(type) {
	case *ast.Literal:
		value, ok := c.analysis.Constants[e]
		if !ok {
			return runtime.NewError("literal without attached constant")
		}
		c.emitConst(ctx, value)
		return nil
	case *ast.Type:
		c.emitU16(ctx, bytecode.StructConst, ctx.page.AddConst(runtime.TypeValue{Name: e.Name}))
		return nil
	case *ast.Variable:
		return c.compileVariableLoad(ctx, e)
	case *ast.Tuple:
		if err := c.compileAll(ctx, e.Values); err != nil {
			return err
		}
		c.emitByte(ctx, bytecode.BuildTuple, byte(len(e.Values)))
		return nil
	case *ast.List:
		return c.compileList(ctx, e)
	case *ast.Set:
		if err := c.compileAll(ctx, e.Values); err != nil {
			return err
		}
		c.emitByte(ctx, bytecode.BuildSet, byte(len(e.Values)))
		return nil
	case *ast.Dictionary:
		for _, entry := range e.Entries {
			if err := c.compileExpr(ctx, entry.Key, false); err != nil {
				return err
			}
			if err := c.compileExpr(ctx, entry.Value, false); err != nil {
				return err
			}
		}
		c.emitByte(ctx, bytecode.BuildDict, byte(len(e.Entries)))
		return nil
	case *ast.Range:
		if err := c.compileExpr(ctx, e.From, false); err != nil {
			return err
		}
		if err := c.compileExpr(ctx, e.To, false); err != nil {
			return err
		}
		c.emit(ctx, bytecode.BuildRange)
		return nil
	case *ast.StringInterpolation:
		if err := c.compileAll(ctx, e.Segments); err != nil {
			return err
		}
		c.emitByte(ctx, bytecode.BuildString, byte(len(e.Segments)))
		return nil
	case *ast.Indexer:
		if err := c.compileExpr(ctx, e.Object, false); err != nil {
			return err
		}
		if err := c.compileExpr(ctx, e.Index, false); err != nil {
			return err
		}
		c.emit(ctx, bytecode.Index)
		return nil
	case *ast.FieldAccess:
		if err := c.compileExpr(ctx, e.Object, false); err != nil {
			return err
		}
		c.emitU16(ctx, bytecode.GetField, ctx.page.AddConst(runtime.String(e.Field)))
		return nil
	case *ast.Unary:
		if err := c.compileExpr(ctx, e.Operand, false); err != nil {
			return err
		}
		if e.Kind == ast.UnaryNegate {
			c.emit(ctx, bytecode.Negate)
		} else {
			c.emit(ctx, bytecode.Not)
		}
		return nil
	case *ast.Binary:
		return c.compileBinary(ctx, e, tail)
	case *ast.Block:
		return c.compileBlock(ctx, e, tail)
	case *ast.If:
		return c.compileIf(ctx, e, tail)
	case *ast.While:
		return c.compileWhile(ctx, e)
	case *ast.For:
		return c.compileFor(ctx, e)
	case *ast.Keyword:
		return c.compileKeyword(ctx, e)
	case *ast.New:
		return c.compileNew(ctx, e)
	case *ast.Call:
		return c.compileCall(ctx, e, tail)
	case *ast.FunctionReference:
		return c.compileFunctionReference(ctx, e)
	case *ast.Let:
		// A let in value position binds and yields the bound value.
		if err := c.compileLet(ctx, e); err != nil {
			return err
		}
		c.emitByte(ctx, bytecode.Load, byte(ctx.slots[e.Symbols[len(e.Symbols)-1]]))
		return nil
	}
	return runtime.NewError("unhandled expression in generator")
}

func (c *Compiler) compileAll(ctx *context, exprs []ast.Expr) error {
	for _, expr := range exprs {
		if err := c.compileExpr(ctx, expr, false); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileList(ctx *context, e *ast.List) error {
	if err := c.compileAll(ctx, e.Values); err != nil {
		return err
	}
	if len(e.Values) > listBigThreshold {
		c.emit(ctx, bytecode.BuildListBig)
		code := ctx.page.Code
		ctx.page.Code = append(code,
			byte(len(e.Values)>>24), byte(len(e.Values)>>16),
			byte(len(e.Values)>>8), byte(len(e.Values)))
		return nil
	}
	c.emitByte(ctx, bytecode.BuildList, byte(len(e.Values)))
	return nil
}

// compileVariableLoad reads a variable: environment names through LoadEnv,
// captured names through the closure snapshot, everything else from its
// frame slot.
func (c *Compiler) compileVariableLoad(ctx *context, e *ast.Variable) error {
	if len(e.Name) > 0 && e.Name[0] == '$' {
		c.emitU16(ctx, bytecode.LoadEnv, ctx.page.AddConst(runtime.String(e.Name[1:])))
		return nil
	}
	if idx, ok := ctx.captures[e.Symbol]; ok {
		c.emitByte(ctx, bytecode.LoadUpper, byte(idx))
		return nil
	}
	slot, ok := ctx.slots[e.Symbol]
	if !ok {
		return runtime.NewNotFound(e.Name)
	}
	c.emitByte(ctx, bytecode.Load, byte(slot))
	return nil
}

func (c *Compiler) compileBinary(ctx *context, e *ast.Binary, tail bool) error {
	switch e.Kind {
	case ast.BinaryAssign:
		return c.compileAssignment(ctx, e)
	case ast.BinaryPipe:
		// The analyser threaded the left operand into the right-hand call.
		return c.compileExpr(ctx, e.Right, tail)
	case ast.BinaryAnd, ast.BinaryOr:
		return c.compileShortCircuit(ctx, e)
	}
	if err := c.compileExpr(ctx, e.Left, false); err != nil {
		return err
	}
	if err := c.compileExpr(ctx, e.Right, false); err != nil {
		return err
	}
	c.emit(ctx, binaryOps[e.Kind])
	return nil
}

var binaryOps = map[ast.BinaryKind]bytecode.Op{
	ast.BinaryAdd:          bytecode.Add,
	ast.BinarySub:          bytecode.Sub,
	ast.BinaryMul:          bytecode.Mul,
	ast.BinaryDiv:          bytecode.Div,
	ast.BinaryMod:          bytecode.Mod,
	ast.BinaryEqual:        bytecode.Equal,
	ast.BinaryNotEqual:     bytecode.NotEqual,
	ast.BinaryGreater:      bytecode.Greater,
	ast.BinaryGreaterEqual: bytecode.GreaterEqual,
	ast.BinaryLess:         bytecode.Less,
	ast.BinaryLessEqual:    bytecode.LessEqual,
	ast.BinaryIn:           bytecode.Contains,
}

// compileShortCircuit lowers and/or with peeking jumps so the right
// operand only evaluates when it decides the result.
func (c *Compiler) compileShortCircuit(ctx *context, e *ast.Binary) error {
	if err := c.compileExpr(ctx, e.Left, false); err != nil {
		return err
	}
	op := bytecode.JumpIfNot
	if e.Kind == ast.BinaryOr {
		op = bytecode.JumpIf
	}
	skip := c.emitJump(ctx, op)
	c.emit(ctx, bytecode.Pop)
	if err := c.compileExpr(ctx, e.Right, false); err != nil {
		return err
	}
	c.patchJump(ctx, skip)
	return nil
}

// compileAssignment stores through a variable slot, an environment name,
// or an index expression; the assigned value remains as the expression
// result.
func (c *Compiler) compileAssignment(ctx *context, e *ast.Binary) error {
	switch left := e.Left.(type) {
	case *ast.Variable:
		if err := c.compileExpr(ctx, e.Right, false); err != nil {
			return err
		}
		if len(left.Name) > 0 && left.Name[0] == '$' {
			c.emitU16(ctx, bytecode.StoreEnv, ctx.page.AddConst(runtime.String(left.Name[1:])))
			return nil
		}
		if idx, ok := ctx.captures[left.Symbol]; ok {
			c.emitByte(ctx, bytecode.StoreUpper, byte(idx))
			return nil
		}
		slot, ok := ctx.slots[left.Symbol]
		if !ok {
			return runtime.NewNotFound(left.Name)
		}
		c.emitByte(ctx, bytecode.Store, byte(slot))
		return nil
	case *ast.Indexer:
		if err := c.compileExpr(ctx, left.Object, false); err != nil {
			return err
		}
		if err := c.compileExpr(ctx, left.Index, false); err != nil {
			return err
		}
		if err := c.compileExpr(ctx, e.Right, false); err != nil {
			return err
		}
		c.emit(ctx, bytecode.SetIndex)
		return nil
	}
	return runtime.NewInvalidAssignment()
}

// compileBlock establishes a stack watermark: block locals are trimmed
// beneath the block's result on exit.
func (c *Compiler) compileBlock(ctx *context, e *ast.Block, tail bool) error {
	mark := ctx.slotCount
	if err := c.compileBody(ctx, e.Body, true, tail); err != nil {
		return err
	}
	if locals := ctx.slotCount - mark; locals > 0 {
		c.emitByte(ctx, bytecode.ExitBlock, byte(locals))
		ctx.slotCount = mark
	}
	return nil
}

func (c *Compiler) compileIf(ctx *context, e *ast.If, tail bool) error {
	if err := c.compileExpr(ctx, e.Condition, false); err != nil {
		return err
	}
	toElse := c.emitJump(ctx, bytecode.PopJumpIfNot)
	if err := c.compileExpr(ctx, e.Then, tail); err != nil {
		return err
	}
	toEnd := c.emitJump(ctx, bytecode.Jump)
	c.patchJump(ctx, toElse)
	if e.Else != nil {
		if err := c.compileExpr(ctx, e.Else, tail); err != nil {
			return err
		}
	} else {
		c.emitConst(ctx, runtime.Nil{})
	}
	c.patchJump(ctx, toEnd)
	return nil
}

func (c *Compiler) compileWhile(ctx *context, e *ast.While) error {
	start := len(ctx.page.Code)
	lp := &loop{start: start, baseSlots: ctx.slotCount}
	ctx.loops = append(ctx.loops, lp)

	if err := c.compileExpr(ctx, e.Condition, false); err != nil {
		return err
	}
	exit := c.emitJump(ctx, bytecode.PopJumpIfNot)
	if err := c.compileStatement(ctx, e.Body, false, false); err != nil {
		return err
	}
	for _, site := range lp.continues {
		c.patchJump(ctx, site)
	}
	c.emitJumpBackward(ctx, start)
	c.patchJump(ctx, exit)
	for _, site := range lp.breaks {
		c.patchJump(ctx, site)
	}
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
	c.emitConst(ctx, runtime.Nil{})
	return nil
}

// compileFor lowers iteration: the iterator occupies an unnamed stack
// slot, ForIter pushes the loop variable each round and branches past the
// body on exhaustion, and EndFor tears the iterator down.
func (c *Compiler) compileFor(ctx *context, e *ast.For) error {
	if err := c.compileExpr(ctx, e.Iterable, false); err != nil {
		return err
	}
	lp := &loop{baseSlots: ctx.slotCount, vars: len(e.Symbols), iterator: true}
	c.emit(ctx, bytecode.GetIter)
	ctx.slotCount++ // iterator slot
	lp.start = len(ctx.page.Code)
	ctx.loops = append(ctx.loops, lp)

	exit := c.emitJump(ctx, bytecode.ForIter)
	if len(e.Symbols) > 1 {
		c.emitByte(ctx, bytecode.Unpack, byte(len(e.Symbols)))
	}
	for _, sym := range e.Symbols {
		ctx.slots[sym] = ctx.slotCount
		ctx.slotCount++
	}

	if err := c.compileStatement(ctx, e.Body, false, false); err != nil {
		return err
	}

	for _, site := range lp.continues {
		c.patchJump(ctx, site)
	}
	c.emitByte(ctx, bytecode.PopArgs, byte(len(e.Symbols)))
	ctx.slotCount -= len(e.Symbols)
	c.emitJumpBackward(ctx, lp.start)

	c.patchJump(ctx, exit)
	for _, site := range lp.breaks {
		c.patchJump(ctx, site)
	}
	c.emit(ctx, bytecode.EndFor)
	ctx.slotCount-- // iterator slot released
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
	c.emitConst(ctx, runtime.Nil{})
	return nil
}

func (c *Compiler) compileKeyword(ctx *context, e *ast.Keyword) error {
	switch e.Kind {
	case ast.KeywordReturn:
		if e.Value != nil {
			if err := c.compileExpr(ctx, e.Value, false); err != nil {
				return err
			}
		} else {
			c.emitConst(ctx, runtime.Nil{})
		}
		c.emit(ctx, bytecode.Ret)
		// Ret never falls through; push a placeholder for the static
		// stack accounting of the surrounding statement.
		c.emitConst(ctx, runtime.Nil{})
		return nil
	case ast.KeywordBreak, ast.KeywordContinue:
		if len(ctx.loops) == 0 {
			return runtime.NewError("break or continue outside of a loop")
		}
		lp := ctx.loops[len(ctx.loops)-1]
		extras := ctx.slotCount - lp.baseSlots
		if e.Kind == ast.KeywordBreak {
			// Keep the iterator slot for EndFor at the loop exit; drop
			// loop variables and body locals.
			drop := extras
			if lp.iterator {
				drop--
			}
			if drop > 0 {
				c.emitByte(ctx, bytecode.PopArgs, byte(drop))
			}
			lp.breaks = append(lp.breaks, c.emitJump(ctx, bytecode.Jump))
		} else {
			// The continue target expects the iterator and loop variable
			// slots only.
			floor := lp.vars
			if lp.iterator {
				floor++
			}
			if drop := extras - floor; drop > 0 {
				c.emitByte(ctx, bytecode.PopArgs, byte(drop))
			}
			lp.continues = append(lp.continues, c.emitJump(ctx, bytecode.Jump))
		}
		c.emitConst(ctx, runtime.Nil{})
		return nil
	}
	return runtime.NewError("unhandled keyword")
}

func (c *Compiler) compileNew(ctx *context, e *ast.New) error {
	if err := c.compileAll(ctx, e.Arguments); err != nil {
		return err
	}
	proto := &runtime.Struct{Name: e.Symbol.Name, Fields: e.Symbol.Fields}
	idx := ctx.page.AddConst(proto)
	c.emitU16(ctx, bytecode.New, idx)
	ctx.page.Code = append(ctx.page.Code, byte(len(e.Arguments)))
	return nil
}

// compileFunctionReference builds a first-class reference constant.
func (c *Compiler) compileFunctionReference(ctx *context, e *ast.FunctionReference) error {
	var ref *runtime.FunctionRef
	switch e.CallType {
	case ast.CallStdFunction:
		ref = &runtime.FunctionRef{Ref: runtime.RefStd, Name: e.StdName}
	case ast.CallFunction:
		ref = &runtime.FunctionRef{Ref: runtime.RefFunction, Name: e.FunctionSymbol.FullName(), Handle: e.FunctionSymbol}
	default:
		ref = &runtime.FunctionRef{Ref: runtime.RefProgram, Name: e.Name}
	}
	c.emitConst(ctx, ref)
	return nil
}
