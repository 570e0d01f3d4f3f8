package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bramadityaw/elk/runtime"
)

func TestAddConstDeduplicatesScalars(t *testing.T) {
	page := NewPage("test")
	a := page.AddConst(runtime.Int(1))
	b := page.AddConst(runtime.Int(1))
	c := page.AddConst(runtime.Int(2))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	// Reference constants are never merged.
	r1 := page.AddConst(&runtime.FunctionRef{Name: "f"})
	r2 := page.AddConst(&runtime.FunctionRef{Name: "f"})
	assert.NotEqual(t, r1, r2)
}

func TestPageHashIdentity(t *testing.T) {
	a := NewPage("a")
	a.Code = []byte{byte(Const), 0, 0, byte(Ret)}
	b := NewPage("b")
	b.Code = []byte{byte(Const), 0, 0, byte(Ret)}
	c := NewPage("c")
	c.Code = []byte{byte(Nop), byte(Ret)}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	// Hash is computed once and stable.
	assert.Equal(t, a.Hash(), a.Hash())
}

func TestDisassemble(t *testing.T) {
	page := NewPage("main")
	idx := page.AddConst(runtime.Int(42))
	page.Code = []byte{byte(Const), 0, byte(idx), byte(Pop), byte(Ret)}
	out := page.Disassemble()
	assert.Contains(t, out, "Const")
	assert.Contains(t, out, "Pop")
	assert.Contains(t, out, "Ret")
}

func TestOperandWidths(t *testing.T) {
	assert.Equal(t, []int{2, 1, 1}, OperandWidths(Call))
	assert.Equal(t, []int{2}, OperandWidths(Jump))
	assert.Equal(t, []int{1}, OperandWidths(Load))
	assert.Equal(t, []int{4}, OperandWidths(BuildListBig))
	assert.Nil(t, OperandWidths(Ret))
}
