package elk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/runtime"
)

func intLit(raw string) *ast.Literal {
	return &ast.Literal{Kind: ast.LiteralInt, Raw: raw}
}

func TestSessionPersistsGlobalsAcrossInputs(t *testing.T) {
	session := NewSession()

	_, err := session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Let{Names: []string{"x"}, Value: intLit("41")},
	}})
	require.NoError(t, err)

	result, err := session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Binary{Kind: ast.BinaryAdd, Left: &ast.Variable{Name: "x"}, Right: intLit("1")},
	}})
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(42), result)
}

func TestSessionPersistsFunctionsAcrossInputs(t *testing.T) {
	session := NewSession()

	double := &ast.Function{Name: "double", Parameters: []ast.Parameter{{Name: "n"}}}
	double.Body = &ast.Block{Body: []ast.Expr{
		&ast.Binary{Kind: ast.BinaryMul, Left: &ast.Variable{Name: "n"}, Right: intLit("2")},
	}}
	_, err := session.Execute(&ast.Module{Body: []ast.Expr{double}})
	require.NoError(t, err)

	result, err := session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Call{Name: "double", Arguments: []ast.Expr{intLit("21")}},
	}})
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(42), result)
}

func TestDiagnosticCarriesPosition(t *testing.T) {
	session := NewSession()
	_, err := session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Variable{
			Base: ast.Base{Position: ast.Position{Line: 3, Column: 9}},
			Name: "missing",
		},
	}})
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, runtime.ErrNotFound, diag.Kind)
	assert.Equal(t, 3, diag.Position.Line)
	assert.Contains(t, diag.Error(), "3:9")
}

func TestSessionRecoversAfterFailedInput(t *testing.T) {
	session := NewSession()

	_, err := session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Let{Names: []string{"x"}, Value: intLit("1")},
	}})
	require.NoError(t, err)

	_, err = session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Variable{Name: "missing"},
	}})
	require.Error(t, err)

	result, err := session.Execute(&ast.Module{Body: []ast.Expr{
		&ast.Variable{Name: "x"},
	}})
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(1), result)
}

// litParser turns any source into a single integer literal, standing in
// for the external parser.
type litParser struct{}

func (litParser) Parse(name, source string) (*ast.Module, error) {
	return &ast.Module{Body: []ast.Expr{
		&ast.Literal{Kind: ast.LiteralInt, Raw: source},
	}}, nil
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.elk")
	require.NoError(t, os.WriteFile(path, []byte("42"), 0o644))

	session := NewSession(WithParser(litParser{}))
	result, err := session.RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(42), result)
	assert.Equal(t, dir, session.Env().ScriptPath())
}

func TestRunFileMissingScript(t *testing.T) {
	session := NewSession(WithParser(litParser{}))
	_, err := session.RunFile(context.Background(), filepath.Join(t.TempDir(), "nope.elk"))
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, runtime.ErrNotFound, diag.Kind)
}
