package std

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramadityaw/elk/runtime"
)

// doublingCaller stands in for the executor: the attached closure doubles
// its argument.
type doublingCaller struct{}

func (doublingCaller) CallClosure(args ...runtime.Value) (runtime.Value, error) {
	n := args[0].(runtime.Int)
	return n * 2, nil
}

func (doublingCaller) CallRef(ref *runtime.FunctionRef, args ...runtime.Value) (runtime.Value, error) {
	return args[0], nil
}

func invoke(t *testing.T, name string, closure bool, args ...runtime.Value) (runtime.Value, error) {
	t.Helper()
	binding, ok := Default().Find(name)
	require.True(t, ok, "missing binding %s", name)
	return binding.Func(&Invocation{
		Args:       args,
		HasClosure: closure,
		Caller:     doublingCaller{},
		Stdout:     &bytes.Buffer{},
		Stderr:     &bytes.Buffer{},
	})
}

func TestLen(t *testing.T) {
	tests := []struct {
		description string
		arg         runtime.Value
		expect      runtime.Int
	}{
		{description: "string runes", arg: runtime.String("héllo"), expect: 5},
		{description: "list items", arg: runtime.NewList(runtime.Int(1), runtime.Int(2)), expect: 2},
		{description: "range span", arg: runtime.Range{From: 2, To: 6}, expect: 4},
	}
	for _, tc := range tests {
		v, err := invoke(t, "len", false, tc.arg)
		require.NoError(t, err, tc.description)
		assert.Equal(t, tc.expect, v, tc.description)
	}

	_, err := invoke(t, "len", false, runtime.Int(1))
	assert.Error(t, err)
}

func TestMapAppliesClosure(t *testing.T) {
	v, err := invoke(t, "map", true, runtime.NewList(runtime.Int(1), runtime.Int(2)))
	require.NoError(t, err)
	assert.True(t, runtime.Equal(runtime.NewList(runtime.Int(2), runtime.Int(4)), v))
}

// positiveCaller keeps elements above zero.
type positiveCaller struct{ doublingCaller }

func (positiveCaller) CallClosure(args ...runtime.Value) (runtime.Value, error) {
	return runtime.Bool(args[0].(runtime.Int) > 0), nil
}

func TestFilterKeepsTruthyResults(t *testing.T) {
	binding, ok := Default().Find("filter")
	require.True(t, ok)
	v, err := binding.Func(&Invocation{
		Args:       []runtime.Value{runtime.NewList(runtime.Int(-1), runtime.Int(3))},
		HasClosure: true,
		Caller:     positiveCaller{},
	})
	require.NoError(t, err)
	assert.True(t, runtime.Equal(runtime.NewList(runtime.Int(3)), v))
}

func TestSplitJoin(t *testing.T) {
	v, err := invoke(t, "split", false, runtime.String("a,b"), runtime.String(","))
	require.NoError(t, err)
	assert.True(t, runtime.Equal(runtime.NewList(runtime.String("a"), runtime.String("b")), v))

	v, err = invoke(t, "join", false,
		runtime.NewList(runtime.String("a"), runtime.String("b")), runtime.String("-"))
	require.NoError(t, err)
	assert.Equal(t, runtime.String("a-b"), v)
}

func TestLines(t *testing.T) {
	v, err := invoke(t, "lines", false, runtime.String("a\nb\n"))
	require.NoError(t, err)
	assert.True(t, runtime.Equal(runtime.NewList(runtime.String("a"), runtime.String("b")), v))
}

func TestCasts(t *testing.T) {
	v, err := invoke(t, "int", false, runtime.String("41"))
	require.NoError(t, err)
	assert.Equal(t, runtime.Int(41), v)

	_, err = invoke(t, "int", false, runtime.String("nope"))
	require.Error(t, err)
	assert.Equal(t, runtime.ErrInvalidCast, err.(*runtime.Error).Kind())
}

func TestPrintln(t *testing.T) {
	out := &bytes.Buffer{}
	binding, _ := Default().Find("println")
	_, err := binding.Func(&Invocation{
		Args:   []runtime.Value{runtime.String("hi"), runtime.Int(2)},
		Stdout: out,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi 2\n", out.String())
}

func TestBindingArities(t *testing.T) {
	reg := Default()
	mapBinding, ok := reg.Find("map")
	require.True(t, ok)
	assert.True(t, mapBinding.AcceptsClosure)
	assert.Equal(t, 1, mapBinding.MinArgs)

	lenBinding, _ := reg.Find("len")
	assert.False(t, lenBinding.AcceptsClosure)
	assert.False(t, lenBinding.IsVariadic())

	printBinding, _ := reg.Find("print")
	assert.True(t, printBinding.IsVariadic())
}
