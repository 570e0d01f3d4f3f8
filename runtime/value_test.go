package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	tests := []struct {
		description string
		op          Op
		left        Value
		right       Value
		expect      Value
	}{
		{description: "int addition", op: OpAdd, left: Int(1), right: Int(2), expect: Int(3)},
		{description: "mixed addition promotes to float", op: OpAdd, left: Int(1), right: Float(2.5), expect: Float(3.5)},
		{description: "string concatenation", op: OpAdd, left: String("a"), right: String("b"), expect: String("ab")},
		{description: "string repetition", op: OpMul, left: String("ab"), right: Int(2), expect: String("abab")},
		{description: "list concatenation", op: OpAdd, left: NewList(Int(1)), right: NewList(Int(2)), expect: NewList(Int(1), Int(2))},
		{description: "integer division truncates", op: OpDiv, left: Int(7), right: Int(2), expect: Int(3)},
		{description: "modulo", op: OpMod, left: Int(7), right: Int(3), expect: Int(1)},
		{description: "comparison", op: OpLess, left: Int(1), right: Int(2), expect: Bool(true)},
		{description: "equality over element-wise lists", op: OpEqual, left: NewList(Int(1), Int(2)), right: NewList(Int(1), Int(2)), expect: Bool(true)},
		{description: "int in range", op: OpContains, left: Int(3), right: Range{From: 1, To: 5}, expect: Bool(true)},
		{description: "substring", op: OpContains, left: String("el"), right: String("shell"), expect: Bool(true)},
	}
	for _, tc := range tests {
		actual, err := Apply(tc.op, tc.left, tc.right)
		if !assert.NoError(t, err, tc.description) {
			continue
		}
		assert.True(t, Equal(tc.expect, actual), tc.description)
	}
}

func TestApplyInvalidOperation(t *testing.T) {
	_, err := Apply(OpSub, String("a"), Int(1))
	if assert.Error(t, err) {
		assert.Equal(t, ErrInvalidOperation, err.(*Error).Kind())
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := Apply(OpDiv, Int(1), Int(0))
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(Nil{}))
	assert.False(t, Truthy(Bool(false)))
	assert.True(t, Truthy(Int(0)))
	assert.True(t, Truthy(String("")))
	assert.True(t, Truthy(NewList()))
}

func TestConvert(t *testing.T) {
	tests := []struct {
		description string
		value       Value
		typeName    string
		expect      Value
		wantErr     bool
	}{
		{description: "string to int", value: String("42"), typeName: "int", expect: Int(42)},
		{description: "float to int truncates", value: Float(3.9), typeName: "int", expect: Int(3)},
		{description: "int to string", value: Int(7), typeName: "string", expect: String("7")},
		{description: "range to list", value: Range{From: 0, To: 3}, typeName: "list", expect: NewList(Int(0), Int(1), Int(2))},
		{description: "garbage to int fails", value: String("abc"), typeName: "int", wantErr: true},
		{description: "unknown type fails", value: Int(1), typeName: "widget", wantErr: true},
	}
	for _, tc := range tests {
		actual, err := Convert(tc.value, tc.typeName)
		if tc.wantErr {
			if assert.Error(t, err, tc.description) {
				assert.Equal(t, ErrInvalidCast, err.(*Error).Kind(), tc.description)
			}
			continue
		}
		if assert.NoError(t, err, tc.description) {
			assert.True(t, Equal(tc.expect, actual), tc.description)
		}
	}
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber("12")
	assert.NoError(t, err)
	assert.Equal(t, Int(12), v)

	v, err = ParseNumber("1.5")
	assert.NoError(t, err)
	assert.Equal(t, Float(1.5), v)

	_, err = ParseNumber("12x")
	if assert.Error(t, err) {
		assert.Equal(t, ErrInvalidNumberLiteral, err.(*Error).Kind())
	}
}

func TestIndex(t *testing.T) {
	list := NewList(Int(10), Int(20), Int(30))

	v, err := Index(list, Int(1))
	assert.NoError(t, err)
	assert.Equal(t, Int(20), v)

	v, err = Index(list, Int(-1))
	assert.NoError(t, err)
	assert.Equal(t, Int(30), v)

	_, err = Index(list, Int(5))
	if assert.Error(t, err) {
		assert.Equal(t, ErrNotFound, err.(*Error).Kind())
		assert.Contains(t, err.Error(), "5")
	}

	v, err = Index(list, Range{From: 1, To: 3})
	assert.NoError(t, err)
	assert.True(t, Equal(NewList(Int(20), Int(30)), v))

	v, err = Index(String("shell"), Int(1))
	assert.NoError(t, err)
	assert.Equal(t, String("h"), v)
}

func TestSetIndex(t *testing.T) {
	list := NewList(Int(1), Int(2))
	assert.NoError(t, SetIndex(list, Int(0), Int(9)))
	assert.Equal(t, Int(9), list.Items[0])

	dict := NewDict()
	assert.NoError(t, SetIndex(dict, String("k"), Int(1)))
	v, ok := dict.Get(String("k"))
	assert.True(t, ok)
	assert.Equal(t, Int(1), v)

	err := SetIndex(Int(1), Int(0), Int(0))
	assert.Error(t, err)
}

func TestIterators(t *testing.T) {
	iter, err := NewIterator(Range{From: 0, To: 3})
	assert.NoError(t, err)
	var got []Value
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.True(t, Equal(NewList(got...), NewList(Int(0), Int(1), Int(2))))

	_, err = NewIterator(Int(1))
	assert.Error(t, err)
}

func TestDictPreservesInsertionOrder(t *testing.T) {
	dict := NewDict()
	assert.NoError(t, dict.Set(String("b"), Int(1)))
	assert.NoError(t, dict.Set(String("a"), Int(2)))
	assert.Equal(t, []Value{String("b"), String("a")}, dict.Keys())
	assert.Error(t, dict.Set(NewList(), Int(0)))
}
