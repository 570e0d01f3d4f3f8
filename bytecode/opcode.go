// Package bytecode defines the instruction set and the page artefacts the
// generator emits and the executor runs.
package bytecode

// Op is one instruction opcode. Operands follow the opcode byte inline;
// jump offsets are relative.
type Op byte

const (
	Nop Op = iota

	// Stack manipulation.
	Pop
	// PopArgs drops the u8 operand count of values.
	PopArgs
	// Unpack replaces a tuple or list on top with its u8 operand count of
	// elements.
	Unpack
	// ExitBlock trims the u8 operand count of block locals beneath the
	// block's result value.
	ExitBlock

	// Constants.
	// Const pushes the u16-indexed pool constant.
	Const

	// Local and closed-over access. Load/Store address frame slots; the
	// Upper variants address the snapshot of the running closure.
	Load
	Store
	LoadUpper
	StoreUpper

	// Structural builders.
	BuildTuple
	// BuildList takes a u8 length; BuildListBig a u32 length.
	BuildList
	BuildListBig
	BuildSet
	BuildDict
	BuildRange
	// BuildString concatenates the u8 operand count of segments.
	BuildString
	// New instantiates the u16-indexed struct constant from u8 arguments.
	New
	// StructConst pushes the u16-indexed struct type constant.
	StructConst
	// Glob expands the string on top against the filesystem.
	Glob
	// MakeClosure packages the u16-indexed closure prototype with a
	// snapshot of the u8 operand count of captured values.
	MakeClosure

	// Element access.
	Index
	SetIndex
	// GetField reads the u16-indexed field name from a struct instance.
	GetField

	// Arithmetic and logic.
	Add
	Sub
	Mul
	Div
	Mod
	Negate
	Not
	Equal
	NotEqual
	Greater
	GreaterEqual
	Less
	LessEqual
	And
	Or
	Contains

	// Control flow. Jump offsets are u16, relative to the following
	// instruction; JumpBackward subtracts. JumpIf/JumpIfNot peek the
	// condition, the PopJump variants consume it.
	Jump
	JumpBackward
	JumpIf
	JumpIfNot
	PopJumpIf
	PopJumpIfNot
	Ret

	// Iteration.
	GetIter
	// ForIter advances the iterator on top: it pushes the next element, or
	// branches forward by the u16 offset on exhaustion.
	ForIter
	EndFor

	// Calls. Operands: u16 pool index of the callee, u8 argument count,
	// u8 flags. Root variants mark the callee frame root; MaybeRoot
	// variants propagate the caller frame's root flag.
	Call
	RootCall
	MaybeRootCall
	CallStd
	RootCallStd
	MaybeRootCallStd
	CallProgram
	RootCallProgram
	MaybeRootCallProgram
	// ExecProgram launches the program named by a runtime string: operands
	// are u8 argument count and u8 call mode.
	ExecProgram
	// ResolveArgumentsDynamically merges the u8 operand count of stack
	// arguments with the bound arguments of the reference beneath them.
	ResolveArgumentsDynamically
	// DynamicCall invokes the reference and argument list materialised by
	// ResolveArgumentsDynamically; the u8 operand is the call mode.
	DynamicCall
	// PushArgsToRef binds the u8 operand count of arguments to the
	// reference beneath them.
	PushArgsToRef
	// PushClosureToRef attaches the closure value on top to the reference
	// beneath it.
	PushClosureToRef
	// InvokeClosure calls the closure attached to the current frame with
	// the u8 operand count of arguments.
	InvokeClosure

	// Environment variables. Both take the u16 pool index of the name;
	// StoreEnv keeps the stored value on the stack.
	LoadEnv
	StoreEnv

	// Shell built-ins.
	// Cd changes the launch directory; the u8 operand is 0 or 1 arguments.
	Cd
	// ScriptPath pushes the executing script's directory.
	ScriptPath
	// RaiseError raises a user runtime error from the value on top.
	RaiseError
)

// Call flags. CallFlagClosure marks a call site with an attached closure
// value pushed above the arguments; CallFlagPiped marks a program call
// with a piped-in value pushed beneath them.
const (
	CallFlagClosure byte = 1 << iota
	CallFlagPiped
)

// Call modes for ExecProgram and DynamicCall.
const (
	ModeValue byte = iota
	ModeRoot
	ModeMaybeRoot
)

// ModePiped marks an ExecProgram mode byte whose call carries a piped-in
// value beneath the arguments.
const ModePiped byte = 0x80

var opNames = map[Op]string{
	Nop: "Nop", Pop: "Pop", PopArgs: "PopArgs", Unpack: "Unpack",
	ExitBlock: "ExitBlock", Const: "Const", Load: "Load", Store: "Store",
	LoadUpper: "LoadUpper", StoreUpper: "StoreUpper",
	BuildTuple: "BuildTuple", BuildList: "BuildList", BuildListBig: "BuildListBig",
	BuildSet: "BuildSet", BuildDict: "BuildDict", BuildRange: "BuildRange",
	BuildString: "BuildString", New: "New", StructConst: "StructConst",
	Glob: "Glob", MakeClosure: "MakeClosure",
	Index: "Index", SetIndex: "SetIndex", GetField: "GetField",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod",
	Negate: "Negate", Not: "Not", Equal: "Equal", NotEqual: "NotEqual",
	Greater: "Greater", GreaterEqual: "GreaterEqual", Less: "Less",
	LessEqual: "LessEqual", And: "And", Or: "Or", Contains: "Contains",
	Jump: "Jump", JumpBackward: "JumpBackward", JumpIf: "JumpIf",
	JumpIfNot: "JumpIfNot", PopJumpIf: "PopJumpIf", PopJumpIfNot: "PopJumpIfNot",
	Ret: "Ret", GetIter: "GetIter", ForIter: "ForIter", EndFor: "EndFor",
	Call: "Call", RootCall: "RootCall", MaybeRootCall: "MaybeRootCall",
	CallStd: "CallStd", RootCallStd: "RootCallStd", MaybeRootCallStd: "MaybeRootCallStd",
	CallProgram: "CallProgram", RootCallProgram: "RootCallProgram",
	MaybeRootCallProgram: "MaybeRootCallProgram", ExecProgram: "ExecProgram",
	ResolveArgumentsDynamically: "ResolveArgumentsDynamically",
	DynamicCall:                 "DynamicCall",
	PushArgsToRef:               "PushArgsToRef",
	PushClosureToRef:            "PushClosureToRef",
	InvokeClosure:               "InvokeClosure",
	LoadEnv: "LoadEnv", StoreEnv: "StoreEnv",
	Cd: "Cd", ScriptPath: "ScriptPath", RaiseError: "RaiseError",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "Op?"
}
