// Package compiler lowers analysed expression trees into linear
// instruction pages: constants are interned per page, control flow uses
// forward branches with deferred backpatching, and local slots live on the
// operand stack beneath a per-block watermark.
package compiler

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/bramadityaw/elk/analyzer"
	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/runtime"
)

// listBigThreshold is the element count above which list builders switch
// from the u8-length BuildList to the u32-length BuildListBig.
const listBigThreshold = 255

// Compiler generates pages for one session. Top-level variable slots
// persist across compilations so that interactive inputs share globals.
type Compiler struct {
	log      *zap.Logger
	table    *bytecode.FunctionTable
	analysis *analyzer.Analysis

	globalSlots map[*ast.VariableSymbol]int
	globalCount int

	compiled map[*ast.ModuleScope]bool
}

// New creates a compiler emitting into table.
func New(table *bytecode.FunctionTable, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{
		log:         log,
		table:       table,
		globalSlots: map[*ast.VariableSymbol]int{},
		compiled:    map[*ast.ModuleScope]bool{},
	}
}

// context is the state of one page under construction.
type context struct {
	page      *bytecode.Page
	slots     map[*ast.VariableSymbol]int
	slotCount int
	captures  map[*ast.VariableSymbol]int
	loops     []*loop
	// global marks the top-level page, whose slots persist in the
	// session's global window.
	global bool
}

type loop struct {
	// start is the backward-jump target.
	start int
	// baseSlots is the slot count before the iterator slot.
	baseSlots int
	// vars is the number of loop variable slots, zero for while loops.
	vars      int
	iterator  bool
	breaks    []int
	continues []int
}

// Compile lowers a module: every function reachable through the module's
// scope gets its own page, and the module body becomes the returned
// top-level page.
func (c *Compiler) Compile(module *ast.Module, analysis *analyzer.Analysis) (*bytecode.Page, error) {
	c.analysis = analysis
	// The visited set only breaks cycles within one walk; later inputs may
	// declare new functions in already-seen scopes.
	c.compiled = map[*ast.ModuleScope]bool{}
	if err := c.compileModuleFunctions(module.Scope); err != nil {
		return nil, err
	}

	ctx := &context{
		page:   bytecode.NewPage(module.Name),
		slots:  c.globalSlots,
		global: true,
	}
	ctx.slotCount = c.globalCount
	ctx.page.BaseSlots = c.globalCount

	body := topLevelStatements(module.Body)
	if len(body) == 0 {
		c.emitConst(ctx, runtime.Nil{})
	}
	for i, expr := range body {
		result := i == len(body)-1
		if err := c.compileStatement(ctx, expr, result, result); err != nil {
			return nil, err
		}
	}
	c.emit(ctx, bytecode.Ret)
	c.globalCount = ctx.slotCount
	c.log.Debug("page emitted",
		zap.String("page", ctx.page.Name),
		zap.Uint64("hash", ctx.page.Hash()),
		zap.Int("bytes", len(ctx.page.Code)))
	return ctx.page, nil
}

// compileModuleFunctions emits pages for every analysed function reachable
// through scope, declared and imported, once each.
func (c *Compiler) compileModuleFunctions(scope *ast.ModuleScope) error {
	if scope == nil || c.compiled[scope] {
		return nil
	}
	c.compiled[scope] = true
	for _, sym := range scope.Functions {
		if err := c.compileFunction(sym); err != nil {
			return err
		}
	}
	for _, sym := range scope.ImportedFunctions {
		if err := c.compileFunction(sym); err != nil {
			return err
		}
	}
	for _, sub := range scope.Submodules {
		if err := c.compileModuleFunctions(sub); err != nil {
			return err
		}
	}
	for _, sub := range scope.ImportedSubmodules {
		if err := c.compileModuleFunctions(sub); err != nil {
			return err
		}
	}
	return nil
}

// compileFunction emits exactly one page per function symbol. Call sites
// carry the symbol; the executor resolves the page through the function
// table, which keeps recursion and forward references trivial.
func (c *Compiler) compileFunction(sym *ast.FunctionSymbol) error {
	if sym.Expr == nil || !sym.Expr.Analysed || c.table.Contains(sym) {
		return nil
	}
	fn := sym.Expr
	ctx := &context{
		page:  bytecode.NewPage(sym.FullName()),
		slots: map[*ast.VariableSymbol]int{},
	}
	ctx.page.NumParams = len(fn.Parameters)
	ctx.page.HasClosureParam = fn.HasClosure
	// Bind the page before the body so recursive calls resolve.
	c.table.Bind(sym, ctx.page)

	scope := fn.Body.Scope.(*ast.LocalScope)
	for _, param := range fn.Parameters {
		ctx.slots[scope.Shallow(param.Name)] = ctx.slotCount
		ctx.slotCount++
	}
	if err := c.compileBody(ctx, fn.Body.Body, true, true); err != nil {
		return err
	}
	c.emit(ctx, bytecode.Ret)
	c.log.Debug("page emitted",
		zap.String("page", ctx.page.Name),
		zap.Uint64("hash", ctx.page.Hash()),
		zap.Int("bytes", len(ctx.page.Code)))
	return nil
}

// compileClosure emits the closure's page and returns its prototype.
func (c *Compiler) compileClosure(outer *context, e *ast.Closure) (*runtime.ClosureValue, error) {
	ctx := &context{
		page:     bytecode.NewPage(outer.page.Name + "$closure"),
		slots:    map[*ast.VariableSymbol]int{},
		captures: map[*ast.VariableSymbol]int{},
	}
	ctx.page.NumParams = len(e.Parameters)
	for i, sym := range e.Captured {
		ctx.captures[sym] = i
	}
	for _, sym := range e.Symbols {
		ctx.slots[sym] = ctx.slotCount
		ctx.slotCount++
	}
	if err := c.compileBody(ctx, e.Body.Body, true, true); err != nil {
		return nil, err
	}
	c.emit(ctx, bytecode.Ret)
	return &runtime.ClosureValue{Handle: ctx.page, Parameters: len(e.Parameters)}, nil
}

// compileBody lowers a statement sequence; the final statement's value is
// the body's result when result is set, and compiles in tail position when
// tail is set.
func (c *Compiler) compileBody(ctx *context, body []ast.Expr, result, tail bool) error {
	if len(body) == 0 {
		if result {
			c.emitConst(ctx, runtime.Nil{})
		}
		return nil
	}
	for i, expr := range body {
		last := i == len(body)-1
		if err := c.compileStatement(ctx, expr, last && result, last && tail); err != nil {
			return err
		}
	}
	return nil
}

// compileStatement compiles one statement position. Let bindings leave
// their value on the stack as the new local slot; every other expression
// is popped unless it carries the result.
func (c *Compiler) compileStatement(ctx *context, expr ast.Expr, result, tail bool) error {
	if let, ok := expr.(*ast.Let); ok {
		if err := c.compileLet(ctx, let); err != nil {
			return err
		}
		if result {
			// The binding doubles as the statement value.
			c.emitByte(ctx, bytecode.Load, byte(ctx.slots[let.Symbols[len(let.Symbols)-1]]))
		}
		return nil
	}
	if err := c.compileExpr(ctx, expr, result && tail); err != nil {
		return err
	}
	if !result {
		c.emit(ctx, bytecode.Pop)
	}
	return nil
}

func (c *Compiler) compileLet(ctx *context, e *ast.Let) error {
	if err := c.compileExpr(ctx, e.Value, false); err != nil {
		return err
	}
	if len(e.Symbols) > 1 {
		c.emitByte(ctx, bytecode.Unpack, byte(len(e.Symbols)))
	}
	for _, sym := range e.Symbols {
		ctx.slots[sym] = ctx.slotCount
		ctx.slotCount++
	}
	return nil
}

// emit helpers -------------------------------------------------------------

func (c *Compiler) emit(ctx *context, op bytecode.Op) {
	ctx.page.Code = append(ctx.page.Code, byte(op))
}

func (c *Compiler) emitByte(ctx *context, op bytecode.Op, operand byte) {
	ctx.page.Code = append(ctx.page.Code, byte(op), operand)
}

func (c *Compiler) emitU16(ctx *context, op bytecode.Op, operand int) {
	ctx.page.Code = append(ctx.page.Code, byte(op), 0, 0)
	binary.BigEndian.PutUint16(ctx.page.Code[len(ctx.page.Code)-2:], uint16(operand))
}

func (c *Compiler) emitConst(ctx *context, v runtime.Value) {
	c.emitU16(ctx, bytecode.Const, ctx.page.AddConst(v))
}

// emitJump emits op with a placeholder offset and returns the patch site.
func (c *Compiler) emitJump(ctx *context, op bytecode.Op) int {
	c.emitU16(ctx, op, 0)
	return len(ctx.page.Code) - 2
}

// patchJump points the jump at site to the current emission offset.
// Offsets are relative to the end of the jump instruction.
func (c *Compiler) patchJump(ctx *context, site int) {
	offset := len(ctx.page.Code) - (site + 2)
	binary.BigEndian.PutUint16(ctx.page.Code[site:], uint16(offset))
}

// emitJumpBackward jumps back to target, an absolute code offset.
func (c *Compiler) emitJumpBackward(ctx *context, target int) {
	offset := len(ctx.page.Code) + 3 - target
	c.emitU16(ctx, bytecode.JumpBackward, offset)
}
