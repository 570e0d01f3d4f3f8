package analyzer

import (
	"strings"

	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/runtime"
	"github.com/bramadityaw/elk/std"
)

// Built-in names short-circuit call resolution and are never shadowed.
const (
	builtinCd         = "cd"
	builtinExec       = "exec"
	builtinScriptPath = "scriptPath"
	builtinClosure    = "closure"
	builtinCall       = "call"
	builtinError      = "error"
)

var builtinCallTypes = map[string]ast.CallType{
	builtinCd:         ast.CallBuiltInCd,
	builtinExec:       ast.CallBuiltInExec,
	builtinScriptPath: ast.CallBuiltInScriptPath,
	builtinClosure:    ast.CallBuiltInClosure,
	builtinCall:       ast.CallBuiltInCall,
	builtinError:      ast.CallBuiltInError,
}

// visitCall classifies the call site, resolves its target, validates the
// arity, threads any piped value, and rewrites the variadic tail.
func (a *Analyzer) visitCall(e *ast.Call) error {
	a.lastPos = e.Pos()
	piped := a.pipedValue
	a.pipedValue = nil

	a.classify(e)
	if e.CallType == ast.CallUnclassified {
		if err := a.resolveCall(e); err != nil {
			return a.fail(e, err)
		}
	}

	if err := a.visitAll(e.Arguments); err != nil {
		return err
	}

	// A piped value reaches a program through stdin; every other callee
	// receives it as argument 0. The call built-in keeps its reference
	// first, so the piped value becomes the reference's first argument.
	if piped != nil {
		switch {
		case e.CallType == ast.CallProgram || e.CallType == ast.CallBuiltInExec:
			e.PipedArgument = piped
		case e.CallType == ast.CallBuiltInCall && len(e.Arguments) > 0:
			rest := append([]ast.Expr{piped}, e.Arguments[1:]...)
			e.Arguments = append(e.Arguments[:1:1], rest...)
		default:
			e.Arguments = append([]ast.Expr{piped}, e.Arguments...)
		}
	}

	if err := a.checkCallArity(e); err != nil {
		return a.fail(e, err)
	}
	if err := a.checkClosureLegality(e); err != nil {
		return a.fail(e, err)
	}

	if e.CallType == ast.CallFunction {
		a.materializeDefaults(e)
		a.rewriteVariadicTail(e)
	}
	if e.CallType == ast.CallProgram {
		a.markGlobArguments(e)
	}

	if e.Closure != nil {
		if err := a.visitClosure(e.Closure); err != nil {
			return err
		}
	}
	return nil
}

// classify matches the call against the built-in set.
func (a *Analyzer) classify(e *ast.Call) {
	if len(e.ModulePath) != 0 {
		return
	}
	if callType, ok := builtinCallTypes[e.Name]; ok {
		e.CallType = callType
	}
}

// resolveCall runs the Std → user function → Program ladder.
func (a *Analyzer) resolveCall(e *ast.Call) error {
	if binding, ok := a.findStd(e.ModulePath, e.Name); ok {
		e.CallType = ast.CallStdFunction
		e.StdName = binding.Name
		return nil
	}
	module := a.scope.Module().FindModule(e.ModulePath, true)
	if module == nil {
		if len(e.ModulePath) > 0 {
			return runtime.NewModuleNotFound(e.ModulePath)
		}
		e.CallType = ast.CallProgram
		return nil
	}
	if sym := module.FindFunction(e.Name, true); sym != nil {
		e.CallType = ast.CallFunction
		e.FunctionSymbol = sym
		return nil
	}
	if len(e.ModulePath) > 0 {
		return runtime.NewNotFound(e.Name)
	}
	e.CallType = ast.CallProgram
	return nil
}

// findStd resolves a standard binding for module paths of length at most
// one.
func (a *Analyzer) findStd(path []string, name string) (*std.Binding, bool) {
	if len(path) > 1 {
		return nil, false
	}
	key := name
	if len(path) == 1 {
		key = path[0] + "::" + name
	}
	return a.bindings.Find(key)
}

func (a *Analyzer) checkCallArity(e *ast.Call) error {
	actual := len(e.Arguments)
	switch e.CallType {
	case ast.CallBuiltInCd:
		return checkArity(actual, 0, 1)
	case ast.CallBuiltInExec:
		return checkArity(actual, 1, -1)
	case ast.CallBuiltInScriptPath:
		return checkArity(actual, 0, 0)
	case ast.CallBuiltInClosure:
		return nil
	case ast.CallBuiltInCall:
		return checkArity(actual, 1, -1)
	case ast.CallBuiltInError:
		return checkArity(actual, 1, 1)
	case ast.CallStdFunction:
		binding, _ := a.bindings.Find(e.StdName)
		max := binding.MaxArgs
		if binding.IsVariadic() {
			max = -1
		}
		return checkArity(actual, binding.MinArgs, max)
	case ast.CallFunction:
		sym := e.FunctionSymbol
		max := sym.MaxArguments()
		if sym.IsVariadic() {
			max = -1
		}
		return checkArity(actual, sym.MinArguments(), max)
	}
	// Programs take whatever the OS gives them.
	return nil
}

// checkClosureLegality permits closures on Std and user functions only,
// and the closure built-in only inside a closure-taking function.
func (a *Analyzer) checkClosureLegality(e *ast.Call) error {
	if e.CallType == ast.CallBuiltInClosure {
		fn := a.enclosingFunction()
		if fn == nil || !fn.HasClosure {
			return runtime.NewExpectedClosure(builtinClosure)
		}
	}
	if e.Closure == nil {
		return nil
	}
	switch e.CallType {
	case ast.CallStdFunction:
		binding, _ := a.bindings.Find(e.StdName)
		if !binding.AcceptsClosure {
			return runtime.NewUnexpectedClosure(e.StdName)
		}
	case ast.CallFunction:
		if !e.FunctionSymbol.Expr.HasClosure {
			return runtime.NewUnexpectedClosure(e.FunctionSymbol.Name)
		}
	default:
		return runtime.NewUnexpectedClosure(e.Name)
	}
	return nil
}

// materializeDefaults appends the default expressions of trailing
// parameters the call site left out. Defaults were analysed in the
// declaring module's scope.
func (a *Analyzer) materializeDefaults(e *ast.Call) {
	params := e.FunctionSymbol.Expr.Parameters
	for i := len(e.Arguments); i < len(params); i++ {
		if params[i].Default != nil {
			e.Arguments = append(e.Arguments, params[i].Default)
		}
	}
}

// rewriteVariadicTail collapses the trailing arguments bound to a variadic
// parameter into a single synthesised list.
func (a *Analyzer) rewriteVariadicTail(e *ast.Call) {
	sym := e.FunctionSymbol
	if !sym.IsVariadic() {
		return
	}
	fixed := len(sym.Expr.Parameters) - 1
	tail := append([]ast.Expr(nil), e.Arguments[fixed:]...)
	list := &ast.List{Values: tail}
	list.Position = e.Position
	e.Arguments = append(e.Arguments[:fixed], list)
}

// markGlobArguments flags string-literal program arguments carrying glob
// metacharacters for expansion at call time.
func (a *Analyzer) markGlobArguments(e *ast.Call) {
	for i, arg := range e.Arguments {
		if lit, ok := arg.(*ast.Literal); ok && lit.Kind == ast.LiteralString {
			if strings.ContainsAny(lit.Raw, "*?[") {
				e.GlobArguments = append(e.GlobArguments, i)
			}
		}
	}
}

// visitFunctionReference resolves a first-class callable in the order
// Std → user function → Program fallback.
func (a *Analyzer) visitFunctionReference(e *ast.FunctionReference) error {
	a.lastPos = e.Pos()
	if binding, ok := a.findStd(e.ModulePath, e.Name); ok {
		e.CallType = ast.CallStdFunction
		e.StdName = binding.Name
		return nil
	}
	module := a.scope.Module().FindModule(e.ModulePath, true)
	if module != nil {
		if sym := module.FindFunction(e.Name, true); sym != nil {
			e.CallType = ast.CallFunction
			e.FunctionSymbol = sym
			return nil
		}
	}
	if len(e.ModulePath) > 0 {
		return a.fail(e, runtime.NewModuleNotFound(e.ModulePath))
	}
	e.CallType = ast.CallProgram
	return nil
}
