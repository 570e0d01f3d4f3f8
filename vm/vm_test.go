package vm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramadityaw/elk/analyzer"
	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/compiler"
	"github.com/bramadityaw/elk/runtime"
	"github.com/bramadityaw/elk/std"
	"github.com/bramadityaw/elk/vm"
)

// Tree builders standing in for the external parser.

func intLit(raw string) *ast.Literal  { return &ast.Literal{Kind: ast.LiteralInt, Raw: raw} }
func strLit(raw string) *ast.Literal  { return &ast.Literal{Kind: ast.LiteralString, Raw: raw} }
func boolLit(raw string) *ast.Literal { return &ast.Literal{Kind: ast.LiteralBool, Raw: raw} }

func variable(name string) *ast.Variable { return &ast.Variable{Name: name} }

func letExpr(name string, value ast.Expr) *ast.Let {
	return &ast.Let{Names: []string{name}, Value: value}
}

func binary(kind ast.BinaryKind, left, right ast.Expr) *ast.Binary {
	return &ast.Binary{Kind: kind, Left: left, Right: right}
}

func call(name string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Name: name, Arguments: args}
}

func block(body ...ast.Expr) *ast.Block { return &ast.Block{Body: body} }

func list(values ...ast.Expr) *ast.List { return &ast.List{Values: values} }

func module(body ...ast.Expr) *ast.Module { return &ast.Module{Body: body} }

func run(t *testing.T, m *ast.Module) (runtime.Value, error) {
	t.Helper()
	analysis, err := analyzer.New(std.Default()).Analyze(m)
	require.NoError(t, err)
	table := bytecode.NewFunctionTable()
	page, err := compiler.New(table, nil).Compile(m, analysis)
	require.NoError(t, err)
	return vm.New(table, std.Default()).Execute(page)
}

func runOK(t *testing.T, m *ast.Module) runtime.Value {
	t.Helper()
	result, err := run(t, m)
	require.NoError(t, err)
	return result
}

func TestArithmetic(t *testing.T) {
	// let x = 1 + 2; x
	result := runOK(t, module(
		letExpr("x", binary(ast.BinaryAdd, intLit("1"), intLit("2"))),
		variable("x"),
	))
	assert.Equal(t, runtime.Int(3), result)
}

func TestListIndexing(t *testing.T) {
	// let xs = [10, 20, 30]; xs[1]
	result := runOK(t, module(
		letExpr("xs", list(intLit("10"), intLit("20"), intLit("30"))),
		&ast.Indexer{Object: variable("xs"), Index: intLit("1")},
	))
	assert.Equal(t, runtime.Int(20), result)

	// xs[5] raises not found naming the index.
	_, err := run(t, module(
		letExpr("xs", list(intLit("10"), intLit("20"), intLit("30"))),
		&ast.Indexer{Object: variable("xs"), Index: intLit("5")},
	))
	require.Error(t, err)
	var rerr *runtime.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, runtime.ErrNotFound, rerr.Kind())
	assert.Contains(t, rerr.Error(), "5")
}

func sumFn() *ast.Function {
	fn := &ast.Function{
		Name: "sum",
		Parameters: []ast.Parameter{
			{Name: "a"},
			{Name: "b", Default: intLit("5")},
			{Name: "rest", Variadic: true},
		},
	}
	fn.Body = block(binary(ast.BinaryAdd,
		binary(ast.BinaryAdd, variable("a"), variable("b")),
		call("len", variable("rest"))))
	return fn
}

func TestDefaultsAndVariadicTail(t *testing.T) {
	assert.Equal(t, runtime.Int(6), runOK(t, module(sumFn(), call("sum", intLit("1")))))
	assert.Equal(t, runtime.Int(5), runOK(t, module(sumFn(),
		call("sum", intLit("1"), intLit("2"), intLit("3"), intLit("4")))))
}

func TestRecursionPreservesOperandStack(t *testing.T) {
	// fn fact(n) => if n <= 1 { 1 } else { n * fact(n - 1) }; fact(5)
	fact := &ast.Function{Name: "fact", Parameters: []ast.Parameter{{Name: "n"}}}
	fact.Body = block(&ast.If{
		Condition: binary(ast.BinaryLessEqual, variable("n"), intLit("1")),
		Then:      intLit("1"),
		Else: binary(ast.BinaryMul, variable("n"),
			call("fact", binary(ast.BinarySub, variable("n"), intLit("1")))),
	})
	result := runOK(t, module(fact, call("fact", intLit("5"))))
	assert.Equal(t, runtime.Int(120), result)
}

func TestPipeIntoStdMapWithClosure(t *testing.T) {
	// [1, 2, 3] | map => &x: x * 2
	closure := &ast.Closure{Parameters: []string{"x"}}
	closure.Body = block(binary(ast.BinaryMul, variable("x"), intLit("2")))
	mapCall := call("map")
	mapCall.Closure = closure

	result := runOK(t, module(binary(ast.BinaryPipe,
		list(intLit("1"), intLit("2"), intLit("3")), mapCall)))
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.Int(2), runtime.Int(4), runtime.Int(6)),
		result,
	))
}

func TestClosureCapturesOuterVariable(t *testing.T) {
	closure := &ast.Closure{Parameters: []string{"x"}}
	closure.Body = block(binary(ast.BinaryAdd, variable("x"), variable("n")))
	mapCall := call("map", list(intLit("1"), intLit("2")))
	mapCall.Closure = closure

	result := runOK(t, module(letExpr("n", intLit("10")), mapCall))
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.Int(11), runtime.Int(12)),
		result,
	))
}

func TestWhileLoop(t *testing.T) {
	// let i = 0; let total = 0;
	// while i < 5 { total = total + i; i = i + 1 }; total
	result := runOK(t, module(
		letExpr("i", intLit("0")),
		letExpr("total", intLit("0")),
		&ast.While{
			Condition: binary(ast.BinaryLess, variable("i"), intLit("5")),
			Body: block(
				binary(ast.BinaryAssign, variable("total"),
					binary(ast.BinaryAdd, variable("total"), variable("i"))),
				binary(ast.BinaryAssign, variable("i"),
					binary(ast.BinaryAdd, variable("i"), intLit("1"))),
			),
		},
		variable("total"),
	))
	assert.Equal(t, runtime.Int(10), result)
}

func TestForLoopOverRange(t *testing.T) {
	// let total = 0; for n in 1..5 { total = total + n }; total
	forLoop := &ast.For{
		Identifiers: []string{"n"},
		Iterable:    &ast.Range{From: intLit("1"), To: intLit("5")},
	}
	forLoop.Body = block(binary(ast.BinaryAssign, variable("total"),
		binary(ast.BinaryAdd, variable("total"), variable("n"))))

	result := runOK(t, module(
		letExpr("total", intLit("0")),
		forLoop,
		variable("total"),
	))
	assert.Equal(t, runtime.Int(10), result)
}

func TestForLoopBreakAndContinue(t *testing.T) {
	// for n in 1..10 { if n == 3 { continue }; if n == 5 { break };
	//   total = total + n }; total  -> 1 + 2 + 4
	forLoop := &ast.For{
		Identifiers: []string{"n"},
		Iterable:    &ast.Range{From: intLit("1"), To: intLit("10")},
	}
	forLoop.Body = block(
		&ast.If{
			Condition: binary(ast.BinaryEqual, variable("n"), intLit("3")),
			Then:      &ast.Keyword{Kind: ast.KeywordContinue},
		},
		&ast.If{
			Condition: binary(ast.BinaryEqual, variable("n"), intLit("5")),
			Then:      &ast.Keyword{Kind: ast.KeywordBreak},
		},
		binary(ast.BinaryAssign, variable("total"),
			binary(ast.BinaryAdd, variable("total"), variable("n"))),
	)
	result := runOK(t, module(
		letExpr("total", intLit("0")),
		forLoop,
		variable("total"),
	))
	assert.Equal(t, runtime.Int(7), result)
}

func TestStringInterpolationAndBuilders(t *testing.T) {
	// "v=${1 + 1}" via segments, plus the dict builder.
	interp := &ast.StringInterpolation{Segments: []ast.Expr{
		strLit("v="),
		binary(ast.BinaryAdd, intLit("1"), intLit("1")),
	}}
	assert.Equal(t, runtime.String("v=2"), runOK(t, module(interp)))

	dict := &ast.Dictionary{Entries: []ast.DictionaryEntry{
		{Key: strLit("a"), Value: intLit("1")},
	}}
	result := runOK(t, module(&ast.Indexer{Object: dict, Index: strLit("a")}))
	assert.Equal(t, runtime.Int(1), result)
}

func TestIndexedAssignment(t *testing.T) {
	// let xs = [1, 2]; xs[0] = 9; xs[0]
	result := runOK(t, module(
		letExpr("xs", list(intLit("1"), intLit("2"))),
		binary(ast.BinaryAssign,
			&ast.Indexer{Object: variable("xs"), Index: intLit("0")},
			intLit("9")),
		&ast.Indexer{Object: variable("xs"), Index: intLit("0")},
	))
	assert.Equal(t, runtime.Int(9), result)
}

func TestStructNewAndFieldAccess(t *testing.T) {
	// struct Point { x, y }; let p = new Point(1, 2); p.y
	result := runOK(t, module(
		&ast.Struct{Name: "Point", Fields: []string{"x", "y"}},
		letExpr("p", &ast.New{Name: "Point", Arguments: []ast.Expr{intLit("1"), intLit("2")}}),
		&ast.FieldAccess{Object: variable("p"), Field: "y"},
	))
	assert.Equal(t, runtime.Int(2), result)
}

func TestTupleUnpack(t *testing.T) {
	// let (a, b) = (1, 2); b
	result := runOK(t, module(
		&ast.Let{Names: []string{"a", "b"}, Value: &ast.Tuple{Values: []ast.Expr{intLit("1"), intLit("2")}}},
		variable("b"),
	))
	assert.Equal(t, runtime.Int(2), result)
}

func TestShortCircuit(t *testing.T) {
	// false and error("boom") must not raise.
	result := runOK(t, module(
		binary(ast.BinaryAnd, boolLit("false"), call("error", strLit("boom"))),
	))
	assert.Equal(t, runtime.Bool(false), result)
}

func TestCallBuiltinWithReference(t *testing.T) {
	// fn double(x) => x * 2; call(&double, 21)
	double := &ast.Function{Name: "double", Parameters: []ast.Parameter{{Name: "x"}}}
	double.Body = block(binary(ast.BinaryMul, variable("x"), intLit("2")))
	result := runOK(t, module(
		double,
		call("call", &ast.FunctionReference{Name: "double"}, intLit("21")),
	))
	assert.Equal(t, runtime.Int(42), result)
}

func TestErrorBuiltinRaises(t *testing.T) {
	_, err := run(t, module(call("error", strLit("boom"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestProgramExitCodeAndShellVariable(t *testing.T) {
	// sh -c "exit 7" at the root: the exit code is the result and ? is set.
	m := module(
		call("sh", strLit("-c"), strLit("exit 7")),
		&ast.Variable{Name: "$?"},
	)
	analysis, err := analyzer.New(std.Default()).Analyze(m)
	require.NoError(t, err)
	table := bytecode.NewFunctionTable()
	page, err := compiler.New(table, nil).Compile(m, analysis)
	require.NoError(t, err)

	machine := vm.New(table, std.Default())
	result, err := machine.Execute(page)
	require.NoError(t, err)
	assert.Equal(t, runtime.String("7"), result)
	assert.Equal(t, 7, machine.Env().LastExit())
}

func TestProgramPipeline(t *testing.T) {
	// printf 'a\nb\n' | lines: the producer runs redirected and its lines
	// surface as a list.
	pipe := binary(ast.BinaryPipe,
		call("printf", strLit(`a\nb\n`)),
		call("lines"))
	result := runOK(t, module(pipe))
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.String("a"), runtime.String("b")),
		result,
	))
}

func TestMissingProgramIsNotFound(t *testing.T) {
	_, err := run(t, module(
		letExpr("x", call("definitely-not-a-real-binary-xyz")),
		variable("x"),
	))
	require.Error(t, err)
	var rerr *runtime.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, runtime.ErrNotFound, rerr.Kind())
	assert.Contains(t, rerr.Error(), "definitely-not-a-real-binary-xyz")
}

func TestExecBuiltin(t *testing.T) {
	// let out = exec("printf", "hi") | lines; out[0]
	pipe := binary(ast.BinaryPipe,
		call("exec", strLit("printf"), strLit("hi")),
		call("lines"))
	result := runOK(t, module(
		letExpr("out", pipe),
		&ast.Indexer{Object: variable("out"), Index: intLit("0")},
	))
	assert.Equal(t, runtime.String("hi"), result)
}
