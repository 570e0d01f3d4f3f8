package ast

// ScopeKind distinguishes the scope tree node kinds.
type ScopeKind int

const (
	ScopeRootModule ScopeKind = iota
	ScopeModule
	ScopeFunction
	ScopeBlock
	ScopeClosure
)

// Scope is one node of the lexical scope tree. The parser constructs the
// tree while reading declarations; the analyser resolves against it.
type Scope interface {
	Kind() ScopeKind
	Parent() Scope
	// Module returns the innermost enclosing module scope.
	Module() *ModuleScope
	// AddVariable binds a variable in this scope.
	AddVariable(sym *VariableSymbol)
	// FindVariable resolves name in this scope or any enclosing non-module
	// scope. Module scopes do not hold variables.
	FindVariable(name string) *VariableSymbol
	// HasVariable reports whether name resolves from this scope.
	HasVariable(name string) bool
}

// LocalScope is a function, block or closure scope holding variables.
type LocalScope struct {
	kind      ScopeKind
	parent    Scope
	variables map[string]*VariableSymbol
}

// NewLocalScope creates a child scope of the given kind under parent.
func NewLocalScope(kind ScopeKind, parent Scope) *LocalScope {
	return &LocalScope{kind: kind, parent: parent, variables: map[string]*VariableSymbol{}}
}

func (s *LocalScope) Kind() ScopeKind { return s.kind }
func (s *LocalScope) Parent() Scope   { return s.parent }

func (s *LocalScope) Module() *ModuleScope {
	for p := s.parent; p != nil; p = p.Parent() {
		if m, ok := p.(*ModuleScope); ok {
			return m
		}
	}
	return nil
}

func (s *LocalScope) AddVariable(sym *VariableSymbol) {
	s.variables[sym.Name] = sym
}

func (s *LocalScope) FindVariable(name string) *VariableSymbol {
	if sym, ok := s.variables[name]; ok {
		return sym
	}
	// Closure and function scopes still see enclosing locals; whether a
	// closure may use them is decided by the analyser's capture pass.
	for p := s.parent; p != nil; p = p.Parent() {
		if _, ok := p.(*ModuleScope); ok {
			return nil
		}
		if local, ok := p.(*LocalScope); ok {
			if sym, found := local.variables[name]; found {
				return sym
			}
		}
	}
	return nil
}

func (s *LocalScope) HasVariable(name string) bool { return s.FindVariable(name) != nil }

// Shallow resolves name in this scope only, without walking parents.
func (s *LocalScope) Shallow(name string) *VariableSymbol { return s.variables[name] }

// ModuleScope owns a module's declarations and import relations.
type ModuleScope struct {
	Name   string
	parent Scope

	Functions  map[string]*FunctionSymbol
	Structs    map[string]*StructSymbol
	Submodules map[string]*ModuleScope

	ImportedFunctions  map[string]*FunctionSymbol
	ImportedStructs    map[string]*StructSymbol
	ImportedSubmodules map[string]*ModuleScope

	// IsAnalysed breaks import cycles: an analysed module is not visited
	// again through imports or submodule walks. The analyser still
	// processes the entry module on every Analyze call.
	IsAnalysed bool
}

// NewModuleScope creates a module scope. A nil parent makes it the root.
func NewModuleScope(name string, parent Scope) *ModuleScope {
	return &ModuleScope{
		Name:               name,
		parent:             parent,
		Functions:          map[string]*FunctionSymbol{},
		Structs:            map[string]*StructSymbol{},
		Submodules:         map[string]*ModuleScope{},
		ImportedFunctions:  map[string]*FunctionSymbol{},
		ImportedStructs:    map[string]*StructSymbol{},
		ImportedSubmodules: map[string]*ModuleScope{},
	}
}

func (m *ModuleScope) Kind() ScopeKind {
	if m.parent == nil {
		return ScopeRootModule
	}
	return ScopeModule
}

func (m *ModuleScope) Parent() Scope        { return m.parent }
func (m *ModuleScope) Module() *ModuleScope { return m }

// Root walks up to the root module scope.
func (m *ModuleScope) Root() *ModuleScope {
	root := m
	for {
		parent := root.parent
		if parent == nil {
			return root
		}
		root = parent.Module()
		if root == nil {
			return m
		}
	}
}

// Module scopes hold no variables; variable symbols belong to the innermost
// enclosing non-module scope.
func (m *ModuleScope) AddVariable(*VariableSymbol)         {}
func (m *ModuleScope) FindVariable(string) *VariableSymbol { return nil }
func (m *ModuleScope) HasVariable(string) bool             { return false }

// AddFunction registers a declared function, replacing any previous
// declaration of the same name.
func (m *ModuleScope) AddFunction(sym *FunctionSymbol) {
	sym.Module = m
	m.Functions[sym.Name] = sym
}

// AddStruct registers a declared struct.
func (m *ModuleScope) AddStruct(sym *StructSymbol) {
	sym.Module = m
	m.Structs[sym.Name] = sym
}

// AddSubmodule registers a declared submodule.
func (m *ModuleScope) AddSubmodule(sub *ModuleScope) {
	sub.parent = m
	m.Submodules[sub.Name] = sub
}

// ImportFunction records an imported function under its own name.
func (m *ModuleScope) ImportFunction(sym *FunctionSymbol) {
	m.ImportedFunctions[sym.Name] = sym
}

// ImportStruct records an imported struct.
func (m *ModuleScope) ImportStruct(sym *StructSymbol) {
	m.ImportedStructs[sym.Name] = sym
}

// ImportSubmodule records an imported module under its name.
func (m *ModuleScope) ImportSubmodule(sub *ModuleScope) {
	m.ImportedSubmodules[sub.Name] = sub
}

// FindSubmodule resolves one step of a module path, declared submodules
// first, then imported ones.
func (m *ModuleScope) FindSubmodule(name string, lookInImports bool) *ModuleScope {
	if sub, ok := m.Submodules[name]; ok {
		return sub
	}
	if lookInImports {
		if sub, ok := m.ImportedSubmodules[name]; ok {
			return sub
		}
	}
	return nil
}

// FindModule resolves a module path starting at this module's root,
// following declared submodules first, then imports, at each step. A nil
// result means the path does not resolve.
func (m *ModuleScope) FindModule(path []string, lookInImports bool) *ModuleScope {
	current := m.Root()
	for _, step := range path {
		next := current.FindSubmodule(step, lookInImports)
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// FindFunction resolves a function by name in this module, consulting
// imports when requested.
func (m *ModuleScope) FindFunction(name string, lookInImports bool) *FunctionSymbol {
	if sym, ok := m.Functions[name]; ok {
		return sym
	}
	if lookInImports {
		if sym, ok := m.ImportedFunctions[name]; ok {
			return sym
		}
	}
	return nil
}

// FindStruct resolves a struct by name in this module, consulting imports
// when requested.
func (m *ModuleScope) FindStruct(name string, lookInImports bool) *StructSymbol {
	if sym, ok := m.Structs[name]; ok {
		return sym
	}
	if lookInImports {
		if sym, ok := m.ImportedStructs[name]; ok {
			return sym
		}
	}
	return nil
}
