package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramadityaw/elk/analyzer"
	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/std"
)

func intLit(raw string) *ast.Literal {
	return &ast.Literal{Kind: ast.LiteralInt, Raw: raw}
}

func variable(name string) *ast.Variable {
	return &ast.Variable{Name: name}
}

func compile(t *testing.T, m *ast.Module) (*bytecode.Page, *bytecode.FunctionTable) {
	t.Helper()
	analysis, err := analyzer.New(std.Default()).Analyze(m)
	require.NoError(t, err)
	table := bytecode.NewFunctionTable()
	page, err := New(table, nil).Compile(m, analysis)
	require.NoError(t, err)
	return page, table
}

func TestRecursiveFunctionGetsOnePage(t *testing.T) {
	// fn fact(n) => if n <= 1 { 1 } else { n * fact(n - 1) }
	fact := &ast.Function{
		Name:       "fact",
		Parameters: []ast.Parameter{{Name: "n"}},
	}
	fact.Body = &ast.Block{Body: []ast.Expr{
		&ast.If{
			Condition: &ast.Binary{Kind: ast.BinaryLessEqual, Left: variable("n"), Right: intLit("1")},
			Then:      intLit("1"),
			Else: &ast.Binary{
				Kind: ast.BinaryMul,
				Left: variable("n"),
				Right: &ast.Call{Name: "fact", Arguments: []ast.Expr{
					&ast.Binary{Kind: ast.BinarySub, Left: variable("n"), Right: intLit("1")},
				}},
			},
		},
	}}
	m := &ast.Module{Body: []ast.Expr{
		fact,
		&ast.Call{Name: "fact", Arguments: []ast.Expr{intLit("5")}},
	}}

	_, table := compile(t, m)
	page, ok := table.Page(fact.Symbol)
	require.True(t, ok)
	assert.Equal(t, 1, page.NumParams)

	// A second lookup of the symbol returns the same page.
	recompiled, _ := table.Page(fact.Symbol)
	assert.Same(t, page, recompiled)

	listing := page.Disassemble()
	assert.Contains(t, listing, "PopJumpIfNot")
	assert.Contains(t, listing, "Call")
	assert.Contains(t, listing, "Ret")
}

func TestListBuilderThreshold(t *testing.T) {
	small := make([]ast.Expr, 255)
	for i := range small {
		small[i] = intLit(fmt.Sprintf("%d", i))
	}
	page, _ := compile(t, &ast.Module{Body: []ast.Expr{&ast.List{Values: small}}})
	assert.Contains(t, page.Disassemble(), "BuildList 255")
	assert.NotContains(t, page.Disassemble(), "BuildListBig")

	big := make([]ast.Expr, 256)
	for i := range big {
		big[i] = intLit(fmt.Sprintf("%d", i))
	}
	page, _ = compile(t, &ast.Module{Body: []ast.Expr{&ast.List{Values: big}}})
	assert.Contains(t, page.Disassemble(), "BuildListBig 256")
}

func TestJumpBackpatching(t *testing.T) {
	// while false { 1 }: the loop lowers to a conditional exit branch and a
	// backward jump.
	m := &ast.Module{Body: []ast.Expr{
		&ast.While{
			Condition: &ast.Literal{Kind: ast.LiteralBool, Raw: "false"},
			Body:      &ast.Block{Body: []ast.Expr{intLit("1")}},
		},
	}}
	page, _ := compile(t, m)
	listing := page.Disassemble()
	assert.Contains(t, listing, "PopJumpIfNot")
	assert.Contains(t, listing, "JumpBackward")

	// Decode the exit jump and check it lands forward, inside the page.
	code := page.Code
	for offset := 0; offset < len(code); {
		op := bytecode.Op(code[offset])
		if op == bytecode.PopJumpIfNot {
			target := offset + 3 + page.ReadU16(offset+1)
			assert.Less(t, target, len(code))
			assert.Greater(t, target, offset)
		}
		offset++
		for _, width := range bytecode.OperandWidths(op) {
			offset += width
		}
	}
}

func TestGlobalSlotsPersistAcrossCompilations(t *testing.T) {
	table := bytecode.NewFunctionTable()
	c := New(table, nil)
	a := analyzer.New(std.Default())

	scope := ast.NewModuleScope("", nil)
	top := ast.NewLocalScope(ast.ScopeBlock, scope)

	first := &ast.Module{Scope: scope, TopScope: top, Body: []ast.Expr{
		&ast.Let{Names: []string{"x"}, Value: intLit("1")},
	}}
	analysis, err := a.Analyze(first)
	require.NoError(t, err)
	page1, err := c.Compile(first, analysis)
	require.NoError(t, err)
	assert.Equal(t, 0, page1.BaseSlots)

	second := &ast.Module{Scope: scope, TopScope: top, Body: []ast.Expr{
		&ast.Binary{Kind: ast.BinaryAdd, Left: variable("x"), Right: intLit("1")},
	}}
	analysis, err = a.Analyze(second)
	require.NoError(t, err)
	page2, err := c.Compile(second, analysis)
	require.NoError(t, err)
	assert.Equal(t, 1, page2.BaseSlots)
}

func TestClosureCompilesToOwnPageWithCaptures(t *testing.T) {
	closure := &ast.Closure{Parameters: []string{"x"}}
	closure.Body = &ast.Block{Body: []ast.Expr{
		&ast.Binary{Kind: ast.BinaryAdd, Left: variable("x"), Right: variable("n")},
	}}
	mapCall := &ast.Call{Name: "map", Arguments: []ast.Expr{&ast.List{Values: []ast.Expr{intLit("1")}}}}
	mapCall.Closure = closure

	m := &ast.Module{Body: []ast.Expr{
		&ast.Let{Names: []string{"n"}, Value: intLit("10")},
		mapCall,
	}}
	page, _ := compile(t, m)
	listing := page.Disassemble()
	assert.Contains(t, listing, "MakeClosure")
	// The captured variable is loaded at the creation site.
	assert.Contains(t, listing, "Load")
	assert.Contains(t, listing, "CallStd")
}
