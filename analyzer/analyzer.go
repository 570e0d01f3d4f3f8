// Package analyzer walks the parsed expression tree, resolves every name
// against the scope tree and the import relations, classifies every call
// site, validates arities, and populates closure capture sets. Failures
// carry the source position of the last-visited expression.
package analyzer

import (
	"strings"

	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/runtime"
	"github.com/bramadityaw/elk/std"
)

// Analysis is the side table the analyser attaches to a tree: decoded
// literal constants keyed by node.
type Analysis struct {
	Constants map[*ast.Literal]runtime.Value
}

// enclosing identifies the function the analyser is currently inside. A
// non-nil closure names a closure body.
type enclosing struct {
	function *ast.Function
	closure  *ast.Closure
}

// Analyzer resolves one tree at a time against a persistent scope tree.
type Analyzer struct {
	bindings *std.Registry

	analysis *Analysis
	scope    ast.Scope
	stack    []enclosing
	lastPos  ast.Position

	// pipedValue carries the left operand of a pipe into the analysis of
	// the right-hand call.
	pipedValue ast.Expr
}

// New creates an analyser resolving standard calls against bindings.
func New(bindings *std.Registry) *Analyzer {
	if bindings == nil {
		bindings = std.NewRegistry()
	}
	return &Analyzer{bindings: bindings}
}

// LastPosition returns the position of the last visited expression, for
// diagnostic packaging by the driver.
func (a *Analyzer) LastPosition() ast.Position { return a.lastPos }

// Analyze resolves a module tree. Analysing a module marks its scope, and
// marked scopes are never re-entered, which terminates import cycles; the
// entry module itself is always processed so interactive inputs sharing
// one scope keep working.
func (a *Analyzer) Analyze(module *ast.Module) (*Analysis, error) {
	a.analysis = &Analysis{Constants: map[*ast.Literal]runtime.Value{}}
	a.stack = nil
	if err := a.analyzeModule(module, true); err != nil {
		return nil, err
	}
	return a.analysis, nil
}

func (a *Analyzer) analyzeModule(module *ast.Module, force bool) error {
	scope := module.Scope
	if scope == nil {
		scope = ast.NewModuleScope(module.Name, nil)
		module.Scope = scope
	}
	if scope.IsAnalysed && !force {
		return nil
	}
	scope.IsAnalysed = true
	if module.TopScope == nil {
		module.TopScope = ast.NewLocalScope(ast.ScopeBlock, scope)
	}

	previous := a.scope
	a.scope = scope
	defer func() { a.scope = previous }()

	// Hoist declarations so that forward and mutually recursive references
	// resolve.
	for _, expr := range module.Body {
		switch decl := expr.(type) {
		case *ast.Function:
			if decl.Symbol == nil {
				if scope.FindFunction(decl.Name, false) != nil {
					return a.fail(decl, runtime.NewError("duplicate function %s in module %s", decl.Name, scope.Name))
				}
				decl.Symbol = &ast.FunctionSymbol{Name: decl.Name, Expr: decl}
				scope.AddFunction(decl.Symbol)
			}
		case *ast.Struct:
			if decl.Symbol == nil {
				if scope.FindStruct(decl.Name, false) != nil {
					return a.fail(decl, runtime.NewError("duplicate struct %s in module %s", decl.Name, scope.Name))
				}
				decl.Symbol = &ast.StructSymbol{Name: decl.Name, Fields: decl.Fields}
				scope.AddStruct(decl.Symbol)
			}
			if err := a.visitStruct(decl); err != nil {
				return err
			}
		case *ast.Module:
			if decl.Scope == nil {
				decl.Scope = ast.NewModuleScope(decl.Name, scope)
			}
			if scope.FindSubmodule(decl.Name, false) == nil {
				scope.AddSubmodule(decl.Scope)
			}
		}
	}

	// Declared and imported functions are analysed in their defining
	// module's scope.
	for _, sym := range scope.Functions {
		if err := a.analyzeFunctionSymbol(sym); err != nil {
			return err
		}
	}
	for _, sym := range scope.ImportedFunctions {
		if err := a.analyzeFunctionSymbol(sym); err != nil {
			return err
		}
	}

	// Submodules not yet analysed, declared first, then imported.
	for _, expr := range module.Body {
		if sub, ok := expr.(*ast.Module); ok {
			if err := a.analyzeModule(sub, false); err != nil {
				return err
			}
		}
	}
	for _, sub := range scope.Submodules {
		if err := a.analyzeModuleScope(sub); err != nil {
			return err
		}
	}
	for _, sub := range scope.ImportedSubmodules {
		if err := a.analyzeModuleScope(sub); err != nil {
			return err
		}
	}

	// Remaining top-level expressions run under the module's variable
	// scope; every expression but the last runs for its effect, the last
	// carries the module's result.
	a.scope = module.TopScope
	body := statements(module.Body)
	for i, expr := range body {
		expr.SetRoot(i < len(body)-1)
		if err := a.visit(expr); err != nil {
			return err
		}
	}
	return nil
}

// analyzeModuleScope analyses a submodule reached through the scope tree.
// Modules without a retained tree (already lowered, or host-registered)
// only have their members visited.
func (a *Analyzer) analyzeModuleScope(scope *ast.ModuleScope) error {
	if scope.IsAnalysed {
		return nil
	}
	scope.IsAnalysed = true
	previous := a.scope
	a.scope = scope
	defer func() { a.scope = previous }()
	for _, sym := range scope.Functions {
		if err := a.analyzeFunctionSymbol(sym); err != nil {
			return err
		}
	}
	for _, sym := range scope.ImportedFunctions {
		if err := a.analyzeFunctionSymbol(sym); err != nil {
			return err
		}
	}
	for _, sub := range scope.Submodules {
		if err := a.analyzeModuleScope(sub); err != nil {
			return err
		}
	}
	for _, sub := range scope.ImportedSubmodules {
		if err := a.analyzeModuleScope(sub); err != nil {
			return err
		}
	}
	return nil
}

// statements filters out the declarations handled by the hoisting and
// submodule passes.
func statements(body []ast.Expr) []ast.Expr {
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

func (a *Analyzer) analyzeFunctionSymbol(sym *ast.FunctionSymbol) error {
	if sym.Expr == nil || sym.Expr.Analysed {
		return nil
	}
	previous := a.scope
	a.scope = sym.Module
	defer func() { a.scope = previous }()
	return a.visitFunction(sym.Expr)
}

// fail records the failing expression's position before returning err.
func (a *Analyzer) fail(expr ast.Expr, err error) error {
	if expr != nil {
		a.lastPos = expr.Pos()
	}
	return err
}

func (a *Analyzer) visit(expr ast.Expr) error {
	a.lastPos = expr.Pos()
	switch e := expr.(type) {
	case *ast.Module:
		return a.analyzeModule(e, false)
	case *ast.Struct:
		return a.visitStruct(e)
	case *ast.Function:
		return a.visitFunction(e)
	case *ast.Let:
		return a.visitLet(e)
	case *ast.New:
		return a.visitNew(e)
	case *ast.If:
		return a.visitIf(e)
	case *ast.For:
		return a.visitFor(e)
	case *ast.While:
		return a.visitWhile(e)
	case *ast.Tuple:
		return a.visitAll(e.Values)
	case *ast.List:
		return a.visitAll(e.Values)
	case *ast.Set:
		return a.visitAll(e.Values)
	case *ast.Dictionary:
		for _, entry := range e.Entries {
			if err := a.visit(entry.Key); err != nil {
				return err
			}
			if err := a.visit(entry.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.Block:
		return a.visitBlock(e)
	case *ast.Keyword:
		if e.Kind == ast.KeywordReturn && e.Value != nil {
			return a.visit(e.Value)
		}
		return nil
	case *ast.Binary:
		return a.visitBinary(e)
	case *ast.Unary:
		return a.visit(e.Operand)
	case *ast.FieldAccess:
		return a.visit(e.Object)
	case *ast.Range:
		if err := a.visit(e.From); err != nil {
			return err
		}
		return a.visit(e.To)
	case *ast.Indexer:
		if err := a.visit(e.Object); err != nil {
			return err
		}
		return a.visit(e.Index)
	case *ast.Type:
		return nil
	case *ast.Variable:
		return a.visitVariable(e)
	case *ast.Call:
		return a.visitCall(e)
	case *ast.Literal:
		return a.visitLiteral(e)
	case *ast.FunctionReference:
		return a.visitFunctionReference(e)
	case *ast.StringInterpolation:
		return a.visitAll(e.Segments)
	case *ast.Closure:
		return a.visitClosure(e)
	}
	return runtime.NewError("unhandled expression")
}

func (a *Analyzer) visitAll(exprs []ast.Expr) error {
	for _, expr := range exprs {
		if err := a.visit(expr); err != nil {
			return err
		}
	}
	return nil
}

// visitStruct rejects duplicate field names.
func (a *Analyzer) visitStruct(e *ast.Struct) error {
	seen := map[string]bool{}
	for _, field := range e.Fields {
		if seen[field] {
			return a.fail(e, runtime.NewError("duplicate field %s in struct %s", field, e.Name))
		}
		seen[field] = true
	}
	if e.Symbol == nil {
		e.Symbol = &ast.StructSymbol{Name: e.Name, Fields: e.Fields}
		a.scope.Module().AddStruct(e.Symbol)
	}
	return nil
}

func (a *Analyzer) visitFunction(e *ast.Function) error {
	if e.Analysed {
		return nil
	}
	e.Analysed = true
	if e.Symbol == nil {
		e.Symbol = &ast.FunctionSymbol{Name: e.Name, Expr: e}
		a.scope.Module().AddFunction(e.Symbol)
	}
	if err := a.checkParameterOrdering(e); err != nil {
		return a.fail(e, err)
	}

	// Defaults are analysed in the declaring module's scope.
	for _, param := range e.Parameters {
		if param.Default != nil {
			if err := a.visit(param.Default); err != nil {
				return err
			}
		}
	}

	var body *ast.LocalScope
	if e.Body.Scope == nil {
		body = ast.NewLocalScope(ast.ScopeFunction, e.Symbol.Module)
		e.Body.Scope = body
	} else {
		body = e.Body.Scope.(*ast.LocalScope)
	}
	// Each parameter is a variable whose default value is nil within the
	// body.
	for _, param := range e.Parameters {
		if body.Shallow(param.Name) == nil {
			body.AddVariable(&ast.VariableSymbol{Name: param.Name})
		}
	}

	a.stack = append(a.stack, enclosing{function: e})
	defer func() { a.stack = a.stack[:len(a.stack)-1] }()
	return a.visitBlockInScope(e.Body, body)
}

func (a *Analyzer) checkParameterOrdering(e *ast.Function) error {
	seenDefault := false
	for i, param := range e.Parameters {
		if param.Variadic {
			if i != len(e.Parameters)-1 {
				return runtime.NewError("invalid parameter ordering in %s: variadic parameter must be last", e.Name)
			}
			continue
		}
		if param.Default != nil {
			seenDefault = true
		} else if seenDefault {
			return runtime.NewError("invalid parameter ordering in %s: default parameters must be contiguous and trailing", e.Name)
		}
	}
	return nil
}

func (a *Analyzer) visitLet(e *ast.Let) error {
	if err := a.visit(e.Value); err != nil {
		return err
	}
	if len(e.Symbols) == 0 {
		for _, name := range e.Names {
			sym := &ast.VariableSymbol{Name: name}
			e.Symbols = append(e.Symbols, sym)
			a.scope.AddVariable(sym)
		}
	}
	return nil
}

func (a *Analyzer) visitNew(e *ast.New) error {
	if err := a.visitAll(e.Arguments); err != nil {
		return err
	}
	min, max := 0, 0
	module := a.scope.Module().FindModule(e.ModulePath, true)
	if module != nil {
		if sym := module.FindStruct(e.Name, true); sym != nil {
			e.Symbol = sym
			min, max = sym.MinArguments(), sym.MaxArguments()
		}
	}
	if e.Symbol == nil {
		// Fall back to a standard-library struct keyed by the first path
		// element.
		key := e.Name
		if len(e.ModulePath) > 0 {
			key = e.ModulePath[0]
		}
		binding, ok := a.bindings.FindStruct(key)
		if !ok {
			if module == nil {
				return a.fail(e, runtime.NewModuleNotFound(e.ModulePath))
			}
			return a.fail(e, runtime.NewNotFound("struct "+e.Name))
		}
		e.Symbol = &ast.StructSymbol{Name: binding.Name, Fields: binding.Fields}
		min, max = binding.MinArgs, binding.MaxArgs
	}
	if err := checkArity(len(e.Arguments), min, max); err != nil {
		return a.fail(e, err)
	}
	return nil
}

func (a *Analyzer) visitIf(e *ast.If) error {
	if err := a.visit(e.Condition); err != nil {
		return err
	}
	e.Then.SetRoot(e.Root())
	if err := a.visitScoped(e.Then); err != nil {
		return err
	}
	if e.Else != nil {
		e.Else.SetRoot(e.Root())
		return a.visitScoped(e.Else)
	}
	return nil
}

func (a *Analyzer) visitFor(e *ast.For) error {
	if err := a.visit(e.Iterable); err != nil {
		return err
	}
	var body *ast.LocalScope
	if e.Body.Scope == nil {
		body = ast.NewLocalScope(ast.ScopeBlock, a.scope)
		e.Body.Scope = body
	} else {
		body = e.Body.Scope.(*ast.LocalScope)
	}
	// Loop identifiers are nil-initialised variables in the body's scope.
	if len(e.Symbols) == 0 {
		for _, name := range e.Identifiers {
			sym := &ast.VariableSymbol{Name: name}
			e.Symbols = append(e.Symbols, sym)
			body.AddVariable(sym)
		}
	}
	e.Body.SetRoot(true)
	return a.visitBlockInScope(e.Body, body)
}

func (a *Analyzer) visitWhile(e *ast.While) error {
	if err := a.visit(e.Condition); err != nil {
		return err
	}
	e.Body.SetRoot(true)
	return a.visitBlock(e.Body)
}

// visitScoped analyses a branch, pushing a scope when the branch is a
// block.
func (a *Analyzer) visitScoped(expr ast.Expr) error {
	if block, ok := expr.(*ast.Block); ok {
		return a.visitBlock(block)
	}
	return a.visit(expr)
}

func (a *Analyzer) visitBlock(e *ast.Block) error {
	scope := e.Scope
	if scope == nil {
		scope = ast.NewLocalScope(ast.ScopeBlock, a.scope)
		e.Scope = scope
	}
	return a.visitBlockInScope(e, scope)
}

func (a *Analyzer) visitBlockInScope(e *ast.Block, scope ast.Scope) error {
	previous := a.scope
	a.scope = scope
	defer func() { a.scope = previous }()
	for i, expr := range e.Body {
		// The last expression carries the block's value unless the block
		// itself runs for effect only.
		expr.SetRoot(i < len(e.Body)-1 || e.Root())
		if err := a.visit(expr); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) visitBinary(e *ast.Binary) error {
	switch e.Kind {
	case ast.BinaryAssign:
		return a.visitAssignment(e)
	case ast.BinaryPipe:
		return a.visitPipe(e)
	}
	if err := a.visit(e.Left); err != nil {
		return err
	}
	return a.visit(e.Right)
}

// visitAssignment requires the left side to be a known variable or an
// index expression.
func (a *Analyzer) visitAssignment(e *ast.Binary) error {
	if err := a.visit(e.Right); err != nil {
		return err
	}
	switch left := e.Left.(type) {
	case *ast.Variable:
		if strings.HasPrefix(left.Name, "$") {
			return nil
		}
		sym := a.scope.FindVariable(left.Name)
		if sym == nil {
			return a.fail(left, runtime.NewNotFound(left.Name))
		}
		left.Symbol = sym
		a.capture(sym)
		return nil
	case *ast.Indexer:
		if err := a.visit(left.Object); err != nil {
			return err
		}
		return a.visit(left.Index)
	}
	return a.fail(e, runtime.NewInvalidAssignment())
}

// visitPipe threads the left operand as a piped value into the right-hand
// call.
func (a *Analyzer) visitPipe(e *ast.Binary) error {
	if err := a.visit(e.Left); err != nil {
		return err
	}
	call, ok := e.Right.(*ast.Call)
	if !ok {
		return a.fail(e, runtime.NewError("the right side of a pipe must be a call"))
	}
	call.SetRoot(e.Root())
	previous := a.pipedValue
	a.pipedValue = e.Left
	err := a.visit(call)
	a.pipedValue = previous
	return err
}

func (a *Analyzer) visitVariable(e *ast.Variable) error {
	a.lastPos = e.Pos()
	// Dollar-prefixed names address the process environment and skip the
	// scope check.
	if strings.HasPrefix(e.Name, "$") {
		return nil
	}
	sym := a.scope.FindVariable(e.Name)
	if sym == nil {
		return a.fail(e, runtime.NewNotFound(e.Name))
	}
	e.Symbol = sym
	a.capture(sym)
	return nil
}

// capture records sym in the enclosing closure's captured set when sym is
// declared outside the closure's own scope subtree.
func (a *Analyzer) capture(sym *ast.VariableSymbol) {
	if len(a.stack) == 0 {
		return
	}
	top := a.stack[len(a.stack)-1]
	if top.closure == nil {
		return
	}
	boundary := top.closure.Body.Scope
	for s := a.scope; s != nil; s = s.Parent() {
		if local, ok := s.(*ast.LocalScope); ok {
			if local.Shallow(sym.Name) == sym {
				return
			}
		}
		if s == boundary {
			break
		}
	}
	top.closure.CaptureAdd(sym)
}

func (a *Analyzer) visitLiteral(e *ast.Literal) error {
	a.lastPos = e.Pos()
	var value runtime.Value
	switch e.Kind {
	case ast.LiteralInt, ast.LiteralFloat:
		parsed, err := runtime.ParseNumber(e.Raw)
		if err != nil {
			return a.fail(e, err)
		}
		value = parsed
	case ast.LiteralString:
		value = runtime.String(e.Raw)
	case ast.LiteralBool:
		value = runtime.Bool(e.Raw == "true")
	case ast.LiteralNil:
		value = runtime.Nil{}
	}
	a.analysis.Constants[e] = value
	return nil
}

func (a *Analyzer) visitClosure(e *ast.Closure) error {
	var scope *ast.LocalScope
	if e.Body.Scope == nil {
		scope = ast.NewLocalScope(ast.ScopeClosure, a.scope)
		e.Body.Scope = scope
	} else {
		scope = e.Body.Scope.(*ast.LocalScope)
	}
	if len(e.Symbols) == 0 {
		for _, name := range e.Parameters {
			sym := &ast.VariableSymbol{Name: name}
			e.Symbols = append(e.Symbols, sym)
			scope.AddVariable(sym)
		}
	}
	a.stack = append(a.stack, enclosing{function: a.enclosingFunction(), closure: e})
	defer func() { a.stack = a.stack[:len(a.stack)-1] }()
	return a.visitBlockInScope(e.Body, scope)
}

func (a *Analyzer) enclosingFunction() *ast.Function {
	if len(a.stack) == 0 {
		return nil
	}
	return a.stack[len(a.stack)-1].function
}

func checkArity(actual, min, max int) error {
	if actual < min || (max >= 0 && actual > max) {
		return runtime.NewWrongArguments(min, max, actual)
	}
	return nil
}
