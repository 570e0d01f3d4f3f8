package ast

// FunctionSymbol is the resolved identity of a user-defined function. The
// analyser registers it in its defining module; the function table maps it
// to a compiled page.
type FunctionSymbol struct {
	Name   string
	Module *ModuleScope
	Expr   *Function
}

// MinArguments returns the number of required parameters.
func (f *FunctionSymbol) MinArguments() int {
	min := 0
	for _, p := range f.Expr.Parameters {
		if p.Default == nil && !p.Variadic {
			min++
		}
	}
	return min
}

// MaxArguments returns the number of declared parameters; a variadic
// function accepts any count at or above MinArguments.
func (f *FunctionSymbol) MaxArguments() int {
	return len(f.Expr.Parameters)
}

// IsVariadic reports whether the last parameter is a rest parameter.
func (f *FunctionSymbol) IsVariadic() bool {
	n := len(f.Expr.Parameters)
	return n > 0 && f.Expr.Parameters[n-1].Variadic
}

// FullName qualifies the function with its module for diagnostics.
func (f *FunctionSymbol) FullName() string {
	if f.Module == nil || f.Module.Name == "" {
		return f.Name
	}
	return f.Module.Name + "::" + f.Name
}

// StructSymbol is the resolved identity of a struct declaration.
type StructSymbol struct {
	Name   string
	Fields []string
	Module *ModuleScope
}

// MinArguments is the constructor arity lower bound.
func (s *StructSymbol) MinArguments() int { return len(s.Fields) }

// MaxArguments is the constructor arity upper bound.
func (s *StructSymbol) MaxArguments() int { return len(s.Fields) }

// VariableSymbol identifies one variable binding in a non-module scope.
type VariableSymbol struct {
	Name string
}
