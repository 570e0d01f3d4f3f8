package ast

// Position locates an expression in the originating script.
type Position struct {
	Line   int `yaml:"line"`
	Column int `yaml:"column"`
}

// Expr is the closed set of expression nodes produced by the parser and
// consumed by the analyser and the instruction generator. Every node embeds
// Base, which carries the source position and the root flag.
type Expr interface {
	Pos() Position
	Root() bool
	SetRoot(bool)
	node()
}

// Base holds the attributes shared by all expression nodes.
type Base struct {
	Position Position
	// IsRoot marks an expression whose value is discarded, or, for a call,
	// may be redirected to the enclosing shell pipeline.
	IsRoot bool
}

func (b *Base) Pos() Position  { return b.Position }
func (b *Base) Root() bool     { return b.IsRoot }
func (b *Base) SetRoot(v bool) { b.IsRoot = v }
func (b *Base) node()          {}

// BinaryKind enumerates the binary operators.
type BinaryKind int

const (
	BinaryAssign BinaryKind = iota
	BinaryPipe
	BinaryAdd
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryEqual
	BinaryNotEqual
	BinaryGreater
	BinaryGreaterEqual
	BinaryLess
	BinaryLessEqual
	BinaryAnd
	BinaryOr
	BinaryIn
)

// UnaryKind enumerates the unary operators.
type UnaryKind int

const (
	UnaryNegate UnaryKind = iota
	UnaryNot
)

// KeywordKind enumerates the control keywords.
type KeywordKind int

const (
	KeywordBreak KeywordKind = iota
	KeywordContinue
	KeywordReturn
)

// LiteralKind tags the raw token form of a literal.
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
	LiteralNil
)

// CallType is the analyser-assigned classification of a call site. The
// generator picks the opcode family from it.
type CallType int

const (
	CallUnclassified CallType = iota
	CallBuiltInCd
	CallBuiltInExec
	CallBuiltInScriptPath
	CallBuiltInClosure
	CallBuiltInCall
	CallBuiltInError
	CallStdFunction
	CallFunction
	CallProgram
)

// Module is a script module: the top level of a file or a named submodule.
// The parser pre-builds the module's scope (declarations and imports); the
// analyser fills it in.
type Module struct {
	Base
	Name string
	Body []Expr
	// Scope is the module scope owning declarations and imports.
	Scope *ModuleScope
	// TopScope holds the module's top-level variable bindings; module
	// scopes themselves hold no variables. Interactive sessions share one
	// TopScope across inputs.
	TopScope *LocalScope
}

// Struct declares a record type with ordered fields.
type Struct struct {
	Base
	Name   string
	Fields []string
	Symbol *StructSymbol
}

// Parameter is a single formal parameter of a function declaration.
type Parameter struct {
	Name string
	// Default is the default value expression, nil when the parameter is
	// required.
	Default Expr
	// Variadic marks the trailing rest parameter.
	Variadic bool
}

// Function declares a named function in a module.
type Function struct {
	Base
	Name       string
	Parameters []Parameter
	// HasClosure is set when the signature declares a trailing closure.
	HasClosure bool
	Body       *Block
	Symbol     *FunctionSymbol
	// Analysed keeps a function from being visited twice when both its
	// home module and an importer are analysed.
	Analysed bool
}

// Let binds one or more names to the value of an expression. More than one
// name unpacks a tuple or list.
type Let struct {
	Base
	Names []string
	Value Expr
	// Symbols are attached by the analyser, one per name.
	Symbols []*VariableSymbol
}

// New instantiates a struct resolved through a module path.
type New struct {
	Base
	ModulePath []string
	Name       string
	Arguments  []Expr
	// Symbol is the resolved struct, attached by the analyser. Standard
	// library structs resolve to a module-less symbol.
	Symbol *StructSymbol
}

// If is a conditional with an optional else branch.
type If struct {
	Base
	Condition Expr
	Then      Expr
	Else      Expr
}

// For iterates over the value of an iterable expression, binding one or
// more loop identifiers per element.
type For struct {
	Base
	Identifiers []string
	Iterable    Expr
	Body        *Block
	Symbols     []*VariableSymbol
}

// While loops for as long as the condition holds.
type While struct {
	Base
	Condition Expr
	Body      *Block
}

// Tuple is a fixed-shape sequence of values.
type Tuple struct {
	Base
	Values []Expr
}

// List is a mutable ordered collection.
type List struct {
	Base
	Values []Expr
}

// Set is a collection of unique values.
type Set struct {
	Base
	Values []Expr
}

// Dictionary is a mutable key/value collection.
type Dictionary struct {
	Base
	Entries []DictionaryEntry
}

// DictionaryEntry is one key/value pair of a dictionary literal.
type DictionaryEntry struct {
	Key   Expr
	Value Expr
}

// Block is a brace-delimited sequence of expressions with its own scope.
// The last expression carries the block's value.
type Block struct {
	Base
	Body  []Expr
	Scope Scope
}

// Keyword is break, continue or return, with an optional value for return.
type Keyword struct {
	Base
	Kind  KeywordKind
	Value Expr
}

// Binary applies a binary operator. Assignment and pipe receive special
// treatment by the analyser.
type Binary struct {
	Base
	Kind  BinaryKind
	Left  Expr
	Right Expr
}

// Unary applies a unary operator.
type Unary struct {
	Base
	Kind    UnaryKind
	Operand Expr
}

// FieldAccess reads a named field of a struct instance.
type FieldAccess struct {
	Base
	Object Expr
	Field  string
}

// Range is a half-open integer range a..b.
type Range struct {
	Base
	From Expr
	To   Expr
}

// Indexer reads an element of a list, tuple, dictionary or string.
type Indexer struct {
	Base
	Object Expr
	Index  Expr
}

// Type names a runtime type, e.g. in a cast call.
type Type struct {
	Base
	Name string
}

// Variable references a variable by name. Names starting with '$' address
// the process environment and bypass scope resolution.
type Variable struct {
	Base
	Name   string
	Symbol *VariableSymbol
}

// Call invokes a callable addressed by a module path and a name. The
// analyser assigns the classification and resolved target.
type Call struct {
	Base
	ModulePath []string
	Name       string
	Arguments  []Expr
	// Closure is a trailing closure attached to the call, or nil.
	Closure *Closure

	// Analysed attachments.
	CallType       CallType
	FunctionSymbol *FunctionSymbol
	StdName        string
	// PipedArgument holds the left operand of a pipe when the callee is an
	// external program; for other callees the analyser inserts the operand
	// as argument 0 instead.
	PipedArgument Expr
	// GlobArguments marks argument indexes subject to glob expansion.
	GlobArguments []int
}

// Literal is a constant token. The analyser attaches the decoded runtime
// constant to the side table of the analysis.
type Literal struct {
	Base
	Kind LiteralKind
	Raw  string
}

// FunctionReference is a first-class reference to a callable, written &name.
type FunctionReference struct {
	Base
	ModulePath []string
	Name       string

	// Analysed attachments.
	CallType       CallType
	FunctionSymbol *FunctionSymbol
	StdName        string
}

// StringInterpolation concatenates literal and interpolated segments.
type StringInterpolation struct {
	Base
	Segments []Expr
}

// Closure is an anonymous function body with captured variables, attached
// to a call site.
type Closure struct {
	Base
	Parameters []string
	Body       *Block
	Symbols    []*VariableSymbol
	// Captured is the set of enclosing-scope variables referenced inside
	// the body, populated by the analyser in reference order.
	Captured []*VariableSymbol
}

// CaptureAdd records sym in the closure's captured set, once.
func (c *Closure) CaptureAdd(sym *VariableSymbol) {
	for _, existing := range c.Captured {
		if existing == sym {
			return
		}
	}
	c.Captured = append(c.Captured, sym)
}
